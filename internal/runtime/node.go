package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	envelopepkg "github.com/drblury/nodeflow/internal/runtime/envelope"
	errspkg "github.com/drblury/nodeflow/internal/runtime/errors"
	idspkg "github.com/drblury/nodeflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/nodeflow/internal/runtime/logging"
	transportpkg "github.com/drblury/nodeflow/internal/runtime/transport"
)

// State is the lifecycle phase of a node.
type State int32

const (
	AwaitingInit State = iota
	Running
	Terminated
)

func (s State) String() string {
	switch s {
	case AwaitingInit:
		return "awaiting_init"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Node drives one handler over the stdio wire: handshake first, then one
// Step per event until both feeds end or something fails.
type Node[S any, P envelopepkg.Payload, T any] struct {
	union   *envelopepkg.Union[P]
	factory Factory[S, P, T]
	opts    options

	state atomic.Int32
	ran   atomic.Bool
}

// NewNode validates its arguments and applies opts. The node does nothing
// until Run.
func NewNode[S any, P envelopepkg.Payload, T any](union *envelopepkg.Union[P], factory Factory[S, P, T], opts ...Option) (*Node[S, P, T], error) {
	if union == nil {
		return nil, errspkg.ErrUnionRequired
	}
	if factory == nil {
		return nil, errspkg.ErrHandlerRequired
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.metricsAddr != "" && o.metrics == nil {
		o.metrics = NewNodeMetrics(prometheus.NewRegistry())
	}
	if o.metrics != nil {
		o.hooks = o.hooks.Merge(MetricsHooks(o.metrics))
	}
	return &Node[S, P, T]{union: union, factory: factory, opts: o}, nil
}

// Run builds a node and runs it to completion. It returns nil on a clean end
// of input, ctx.Err() on cancellation and otherwise an error wrapping one of
// ErrMalformedInput, ErrProtocolViolation, ErrHandler or ErrIO.
func Run[S any, P envelopepkg.Payload, T any](ctx context.Context, union *envelopepkg.Union[P], state S, factory Factory[S, P, T], opts ...Option) error {
	node, err := NewNode(union, factory, opts...)
	if err != nil {
		return err
	}
	return node.Run(ctx, state)
}

// State reports the current lifecycle phase.
func (n *Node[S, P, T]) State() State {
	return State(n.state.Load())
}

// Run performs the handshake, builds the handler from state and dispatches
// events until termination. A node runs at most once.
func (n *Node[S, P, T]) Run(ctx context.Context, state S) error {
	if !n.ran.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: node already ran", errspkg.ErrProtocolViolation)
	}
	defer n.state.Store(int32(Terminated))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := n.opts.logger
	stdio := transportpkg.NewStdio(n.opts.in, n.opts.out, loggingpkg.NewWatermillAdapter(logger))
	defer stdio.Publisher.Close()
	defer stdio.Subscriber.Close()

	if n.opts.metrics != nil {
		if err := n.opts.metrics.Register(); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
	}
	if n.opts.metricsAddr != "" {
		stop, err := startMetricsServer(n.opts.metricsAddr, n.opts.metricsPath, n.opts.metrics, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	lines, err := stdio.Subscriber.Subscribe(ctx, transportpkg.TopicStdin)
	if err != nil {
		return fmt.Errorf("%w: %w", errspkg.ErrIO, err)
	}

	hs, err := n.handshake(ctx, lines, stdio)
	if err != nil {
		return err
	}
	logger = logger.With(loggingpkg.LogFields{"node_id": hs.NodeID})
	logger.Info("Handshake complete", loggingpkg.LogFields{"node_ids": hs.NodeIDs})

	inj := newInjector[T](n.opts.injectionBuffer)
	defer inj.Close()

	handler, err := n.factory(ctx, state, hs.Clone(), inj)
	if err != nil {
		return fmt.Errorf("%w: build handler: %w", errspkg.ErrHandler, err)
	}
	if handler == nil {
		return fmt.Errorf("%w: factory returned no handler", errspkg.ErrHandler)
	}

	out := newOutput[P](hs, idspkg.NewAllocator(), stdio.Publisher, n.opts.metrics, logger)
	n.state.Store(int32(Running))

	err = n.dispatch(ctx, handler, out, newEventSource(n.union, lines, stdio.Subscriber, inj))
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Node terminated", err, nil)
	} else {
		logger.Info("Node terminated", nil)
	}
	return err
}

func (n *Node[S, P, T]) handshake(ctx context.Context, lines <-chan *message.Message, stdio transportpkg.Transport) (envelopepkg.Init, error) {
	var hs envelopepkg.Init

	msg, err := receive(ctx, lines, stdio.Subscriber)
	if err != nil {
		return hs, err
	}
	if msg == nil {
		return hs, fmt.Errorf("%w: input ended before init", errspkg.ErrProtocolViolation)
	}

	tag, err := envelopepkg.PeekType(msg.Payload)
	if err != nil {
		msg.Nack()
		return hs, fmt.Errorf("line %s: %w", lineOf(msg), err)
	}
	if tag != envelopepkg.TypeInit {
		msg.Nack()
		return hs, fmt.Errorf("%w: line %s: first message has type %q, want %q", errspkg.ErrProtocolViolation, lineOf(msg), tag, envelopepkg.TypeInit)
	}

	req, err := envelopepkg.DecodeInit(msg.Payload)
	if err != nil {
		msg.Nack()
		return hs, fmt.Errorf("line %s: %w", lineOf(msg), err)
	}
	if req.Body.Payload.NodeID == "" {
		msg.Nack()
		return hs, fmt.Errorf("%w: line %s: init without node_id", errspkg.ErrMalformedInput, lineOf(msg))
	}
	hs = req.Body.Payload.Clone()

	ack := envelopepkg.Respond(req, nil, &envelopepkg.InitOk{})
	ack.Src = hs.NodeID
	data, err := envelopepkg.Encode(ack)
	if err != nil {
		msg.Nack()
		return hs, fmt.Errorf("%w: encode init_ok: %w", errspkg.ErrIO, err)
	}
	if err := publishLine(stdio.Publisher, data); err != nil {
		msg.Nack()
		return hs, err
	}
	msg.Ack()
	return hs, nil
}

func (n *Node[S, P, T]) dispatch(ctx context.Context, handler Handler[P, T], out *Output[P], src *eventSource[P, T]) error {
	var seq uint64
	for {
		event, ok, err := src.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		seq++
		if err := n.step(ctx, handler, event, out, seq); err != nil {
			src.settle(false)
			return err
		}
		src.settle(true)
	}
}

func (n *Node[S, P, T]) step(ctx context.Context, handler Handler[P, T], event Event[P, T], out *Output[P], seq uint64) error {
	sc := StepContext{
		NodeID:    out.NodeID(),
		Kind:      event.Kind(),
		StartedAt: time.Now(),
		Sequence:  seq,
	}
	attrs := []attribute.KeyValue{
		attribute.String("node.id", sc.NodeID),
		attribute.String("event.kind", sc.Kind.String()),
		attribute.Int64("step.sequence", int64(seq)),
	}
	if env, ok := event.Message(); ok {
		sc.PayloadType = env.PayloadType()
		sc.Src = env.Src
		sc.MsgID = env.Body.MsgID
		attrs = append(attrs,
			attribute.String("message.type", sc.PayloadType),
			attribute.String("message.src", sc.Src),
		)
	}

	ctx, span := otel.Tracer(n.opts.tracerName).Start(ctx, "Step",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	n.opts.hooks.start(sc)
	err := invoke(ctx, handler, event, out)
	sc.Duration = time.Since(sc.StartedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	n.opts.hooks.finish(sc, err)
	return err
}

func invoke[P envelopepkg.Payload, T any](ctx context.Context, handler Handler[P, T], event Event[P, T], out *Output[P]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic in step: %v", errspkg.ErrHandler, r)
		}
	}()

	if err := handler.Step(ctx, event, out); err != nil {
		return fmt.Errorf("%w: %w", errspkg.ErrHandler, err)
	}
	return nil
}

// receive returns the next line, nil at end of input, or the read error.
func receive(ctx context.Context, lines <-chan *message.Message, sub *transportpkg.Subscriber) (*message.Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-lines:
		if ok {
			return msg, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := sub.Err(); err != nil {
			return nil, fmt.Errorf("%w: read input: %w", errspkg.ErrIO, err)
		}
		return nil, nil
	}
}

func lineOf(msg *message.Message) string {
	return msg.Metadata.Get(transportpkg.MetadataLine)
}
