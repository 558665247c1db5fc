package runtime

import (
	"context"

	envelopepkg "github.com/drblury/nodeflow/internal/runtime/envelope"
)

// Handler is a node's state machine. The runtime is its only caller and never
// overlaps two Step calls, so implementations need no locking for state that
// only Step touches. A non-nil error ends the node.
type Handler[P envelopepkg.Payload, T any] interface {
	Step(ctx context.Context, event Event[P, T], out *Output[P]) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[P envelopepkg.Payload, T any] func(ctx context.Context, event Event[P, T], out *Output[P]) error

func (f HandlerFunc[P, T]) Step(ctx context.Context, event Event[P, T], out *Output[P]) error {
	return f(ctx, event, out)
}

// Factory builds the handler once the handshake has completed. state is the
// opaque startup value passed to Run; init carries the node identity. The
// injector may be kept and shared with producer goroutines, or ignored.
type Factory[S any, P envelopepkg.Payload, T any] func(ctx context.Context, state S, init envelopepkg.Init, inj *Injector[T]) (Handler[P, T], error)

// NoInjection is the injected type of nodes that only answer requests.
type NoInjection struct{}
