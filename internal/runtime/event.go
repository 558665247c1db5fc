package runtime

import (
	envelopepkg "github.com/drblury/nodeflow/internal/runtime/envelope"
)

// EventKind discriminates the two origins of work a handler can receive.
type EventKind int

const (
	// EventMessage carries an envelope read from the wire.
	EventMessage EventKind = iota + 1
	// EventInjected carries a value sent through the node's Injector.
	EventInjected
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventInjected:
		return "injected"
	default:
		return "unknown"
	}
}

// Event is the unit of work handed to a Handler: either a wire message with
// payload union P or an injected value of type T. Use Kind, or the comma-ok
// accessors, to tell them apart.
type Event[P envelopepkg.Payload, T any] struct {
	kind     EventKind
	message  envelopepkg.Envelope[P]
	injected T
}

// MessageEvent wraps a wire envelope.
func MessageEvent[P envelopepkg.Payload, T any](env envelopepkg.Envelope[P]) Event[P, T] {
	return Event[P, T]{kind: EventMessage, message: env}
}

// InjectedEvent wraps a locally produced value.
func InjectedEvent[P envelopepkg.Payload, T any](value T) Event[P, T] {
	return Event[P, T]{kind: EventInjected, injected: value}
}

func (e Event[P, T]) Kind() EventKind {
	return e.kind
}

// Message returns the envelope when e came from the wire.
func (e Event[P, T]) Message() (envelopepkg.Envelope[P], bool) {
	return e.message, e.kind == EventMessage
}

// Injected returns the value when e was injected.
func (e Event[P, T]) Injected() (T, bool) {
	return e.injected, e.kind == EventInjected
}
