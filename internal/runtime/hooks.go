package runtime

import (
	"time"

	loggingpkg "github.com/drblury/nodeflow/internal/runtime/logging"
)

// StepContext describes one handler step to hooks.
type StepContext struct {
	// NodeID is the identity assigned by the handshake.
	NodeID string
	// Kind tells wire messages from injected events.
	Kind EventKind
	// PayloadType is the wire tag of the message; empty for injected events.
	PayloadType string
	// Src and MsgID are taken from the message envelope, when there is one.
	Src   string
	MsgID *uint64
	// StartedAt is when the step began.
	StartedAt time.Time
	// Duration is how long the step took (only set in OnStepDone and OnStepError).
	Duration time.Duration
	// Sequence counts steps from 1, across both event kinds.
	Sequence uint64
}

// StepHooks defines callbacks around every handler step.
// All hooks are optional - nil hooks are simply not called.
type StepHooks struct {
	// OnStepStart is called before the handler sees the event.
	OnStepStart func(ctx StepContext)

	// OnStepDone is called when the step returned without error.
	OnStepDone func(ctx StepContext)

	// OnStepError is called when the step failed or panicked. The node
	// terminates right after.
	OnStepError func(ctx StepContext, err error)
}

// Merge combines two StepHooks, creating a new StepHooks that calls both.
// The hooks from 'other' are called after the hooks from 'h'.
func (h StepHooks) Merge(other StepHooks) StepHooks {
	return StepHooks{
		OnStepStart: chainHooks(h.OnStepStart, other.OnStepStart),
		OnStepDone:  chainHooks(h.OnStepDone, other.OnStepDone),
		OnStepError: chainErrorHooks(h.OnStepError, other.OnStepError),
	}
}

func chainHooks(a, b func(StepContext)) func(StepContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx StepContext) {
		a(ctx)
		b(ctx)
	}
}

func chainErrorHooks(a, b func(StepContext, error)) func(StepContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx StepContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

func (h StepHooks) start(ctx StepContext) {
	if h.OnStepStart != nil {
		h.OnStepStart(ctx)
	}
}

func (h StepHooks) finish(ctx StepContext, err error) {
	if err != nil {
		if h.OnStepError != nil {
			h.OnStepError(ctx, err)
		}
		return
	}
	if h.OnStepDone != nil {
		h.OnStepDone(ctx)
	}
}

// LoggingHooks returns pre-built hooks that log every step at debug level
// and failures at error level.
func LoggingHooks(logger loggingpkg.Logger) StepHooks {
	return StepHooks{
		OnStepStart: func(ctx StepContext) {
			logger.Debug("Step started", stepFields(ctx))
		},
		OnStepDone: func(ctx StepContext) {
			fields := stepFields(ctx)
			fields["duration_ms"] = ctx.Duration.Milliseconds()
			logger.Debug("Step completed", fields)
		},
		OnStepError: func(ctx StepContext, err error) {
			fields := stepFields(ctx)
			fields["duration_ms"] = ctx.Duration.Milliseconds()
			logger.Error("Step failed", err, fields)
		},
	}
}

// MetricsHooks returns pre-built hooks that record step metrics.
func MetricsHooks(metrics *NodeMetrics) StepHooks {
	return StepHooks{
		OnStepDone: func(ctx StepContext) {
			metrics.RecordStep(ctx.Kind, ctx.PayloadType, ctx.Duration, nil)
		},
		OnStepError: func(ctx StepContext, err error) {
			metrics.RecordStep(ctx.Kind, ctx.PayloadType, ctx.Duration, err)
		},
	}
}

func stepFields(ctx StepContext) loggingpkg.LogFields {
	fields := loggingpkg.LogFields{
		"node_id":  ctx.NodeID,
		"kind":     ctx.Kind.String(),
		"sequence": ctx.Sequence,
	}
	if ctx.Kind == EventMessage {
		fields["type"] = ctx.PayloadType
		fields["src"] = ctx.Src
		if ctx.MsgID != nil {
			fields["msg_id"] = *ctx.MsgID
		}
	}
	return fields
}
