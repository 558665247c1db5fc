package runtime

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	envelopepkg "github.com/drblury/nodeflow/internal/runtime/envelope"
	errspkg "github.com/drblury/nodeflow/internal/runtime/errors"
	transportpkg "github.com/drblury/nodeflow/internal/runtime/transport"
)

// eventSource merges the wire feed and the injected feed into one stream of
// events. Order is kept within each feed, not across them.
type eventSource[P envelopepkg.Payload, T any] struct {
	union    *envelopepkg.Union[P]
	lines    <-chan *message.Message
	sub      *transportpkg.Subscriber
	inj      *Injector[T]
	injected <-chan T

	// pending is the line handed out by the last Next, held until settle.
	pending *message.Message
}

func newEventSource[P envelopepkg.Payload, T any](union *envelopepkg.Union[P], lines <-chan *message.Message, sub *transportpkg.Subscriber, inj *Injector[T]) *eventSource[P, T] {
	return &eventSource[P, T]{
		union:    union,
		lines:    lines,
		sub:      sub,
		inj:      inj,
		injected: inj.events(),
	}
}

// Next blocks until either feed yields. ok is false once stdin has ended and
// the injector is closed and drained. The reader does not move past a wire
// line until settle is called for it.
func (s *eventSource[P, T]) Next(ctx context.Context) (event Event[P, T], ok bool, err error) {
	if s.pending != nil {
		s.settle(true)
	}

	for s.lines != nil || s.injected != nil {
		if err := ctx.Err(); err != nil {
			return event, false, err
		}

		select {
		case <-ctx.Done():
			return event, false, ctx.Err()

		case msg, open := <-s.lines:
			if !open {
				if err := s.closeLines(ctx); err != nil {
					return event, false, err
				}
				continue
			}
			env, err := s.decode(msg)
			if err != nil {
				msg.Nack()
				return event, false, err
			}
			s.pending = msg
			return MessageEvent[P, T](env), true, nil

		case v, open := <-s.injected:
			if !open {
				s.injected = nil
				continue
			}
			return InjectedEvent[P](v), true, nil
		}
	}
	return event, false, nil
}

// settle acks the pending line after a successful step, or nacks it so the
// reader stops.
func (s *eventSource[P, T]) settle(success bool) {
	if s.pending == nil {
		return
	}
	if success {
		s.pending.Ack()
	} else {
		s.pending.Nack()
	}
	s.pending = nil
}

// closeLines handles the end of the wire feed: a read error is fatal, a clean
// end seals the injector.
func (s *eventSource[P, T]) closeLines(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.sub.Err(); err != nil {
		return fmt.Errorf("%w: read input: %w", errspkg.ErrIO, err)
	}
	s.lines = nil
	s.inj.Close()
	return nil
}

func (s *eventSource[P, T]) decode(msg *message.Message) (envelopepkg.Envelope[P], error) {
	tag, err := envelopepkg.PeekType(msg.Payload)
	if err != nil {
		return envelopepkg.Envelope[P]{}, fmt.Errorf("line %s: %w", lineOf(msg), err)
	}
	if tag == envelopepkg.TypeInit {
		return envelopepkg.Envelope[P]{}, fmt.Errorf("%w: line %s: init received twice", errspkg.ErrProtocolViolation, lineOf(msg))
	}
	env, err := s.union.Decode(msg.Payload)
	if err != nil {
		return env, fmt.Errorf("line %s: %w", lineOf(msg), err)
	}
	return env, nil
}
