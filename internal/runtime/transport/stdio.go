package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	idspkg "github.com/drblury/nodeflow/internal/runtime/ids"
)

// Topics served by the stdio transport. A node has exactly one inbound and
// one outbound stream.
const (
	TopicStdin  = "stdin"
	TopicStdout = "stdout"
)

// Metadata keys set on every inbound line.
const (
	MetadataLine  = "nodeflow_line"
	MetadataTopic = "nodeflow_topic"
)

var (
	ErrAlreadySubscribed = errors.New("stdio: input already subscribed")
	ErrUnknownTopic      = errors.New("stdio: unknown topic")
	ErrPublisherClosed   = errors.New("stdio: publisher is closed")
	ErrMultilinePayload  = errors.New("stdio: payload spans multiple lines")
)

// Transport combines the stdio publisher and subscriber of one node.
type Transport struct {
	Publisher  *Publisher
	Subscriber *Subscriber
}

// NewStdio wires a transport over the given streams.
func NewStdio(in io.Reader, out io.Writer, logger watermill.LoggerAdapter) Transport {
	return Transport{
		Publisher:  NewPublisher(out, logger),
		Subscriber: NewSubscriber(in, logger),
	}
}

// Publisher writes each message payload as one newline-terminated line.
// Publish is safe for concurrent use; every line reaches the writer in a
// single Write call, so lines from different callers never interleave.
type Publisher struct {
	w      io.Writer
	logger watermill.LoggerAdapter

	mu     sync.Mutex
	closed bool
}

// NewPublisher returns a publisher writing to w.
func NewPublisher(w io.Writer, logger watermill.LoggerAdapter) *Publisher {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Publisher{w: w, logger: logger}
}

// Publish writes the messages in order. Only TopicStdout is accepted.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	if topic != TopicStdout {
		return fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}

	for _, msg := range messages {
		if bytes.IndexByte(msg.Payload, '\n') >= 0 {
			return ErrMultilinePayload
		}

		line := make([]byte, 0, len(msg.Payload)+1)
		line = append(line, msg.Payload...)
		line = append(line, '\n')

		n, err := p.w.Write(line)
		if err == nil && n < len(line) {
			err = io.ErrShortWrite
		}
		if err != nil {
			return err
		}
		if f, ok := p.w.(interface{ Flush() error }); ok {
			if err := f.Flush(); err != nil {
				return err
			}
		}
		p.logger.Trace("Line written", watermill.LogFields{"uuid": msg.UUID, "bytes": len(line)})
	}
	return nil
}

// Close makes further Publish calls fail. The underlying writer is left open.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Subscriber turns lines read from r into messages. The next line is read
// only after the previous message is acked, which keeps the inbound order
// and lets the consumer apply back-pressure. A nack stops the reader.
type Subscriber struct {
	r      io.Reader
	logger watermill.LoggerAdapter

	subscribed bool
	mu         sync.Mutex
	err        error

	closeOnce sync.Once
	closing   chan struct{}
}

// NewSubscriber returns a subscriber reading from r.
func NewSubscriber(r io.Reader, logger watermill.LoggerAdapter) *Subscriber {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Subscriber{r: r, logger: logger, closing: make(chan struct{})}
}

// Subscribe starts the reader. The input can be consumed once, so a second
// call fails. The returned channel is closed at end of input, on a read
// error (see Err), after a nack, or when ctx or the subscriber is closed.
func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if topic != TopicStdin {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}

	s.mu.Lock()
	if s.subscribed {
		s.mu.Unlock()
		return nil, ErrAlreadySubscribed
	}
	s.subscribed = true
	s.mu.Unlock()

	out := make(chan *message.Message)
	go s.read(ctx, out)
	return out, nil
}

// Err reports the read error that closed the channel, if any. End of input
// is not an error.
func (s *Subscriber) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops delivery. A reader blocked in Read stays blocked until the
// stream yields, but no further message is emitted.
func (s *Subscriber) Close() error {
	s.closeOnce.Do(func() { close(s.closing) })
	return nil
}

func (s *Subscriber) read(ctx context.Context, out chan<- *message.Message) {
	defer close(out)

	reader := bufio.NewReader(s.r)
	lineNo := 0

	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
			line = bytes.TrimRight(line, "\r\n")
			if len(bytes.TrimSpace(line)) == 0 {
				s.logger.Debug("Skipping blank line", watermill.LogFields{"line": lineNo})
			} else if !s.deliver(ctx, out, line, lineNo) {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
				s.logger.Error("Failed to read input", err, watermill.LogFields{"line": lineNo})
			}
			return
		}
	}
}

func (s *Subscriber) deliver(ctx context.Context, out chan<- *message.Message, line []byte, lineNo int) bool {
	msg := message.NewMessage(idspkg.CreateULID(), line)
	msg.Metadata.Set(MetadataLine, strconv.Itoa(lineNo))
	msg.Metadata.Set(MetadataTopic, TopicStdin)
	msg.SetContext(ctx)

	select {
	case out <- msg:
	case <-ctx.Done():
		return false
	case <-s.closing:
		return false
	}

	select {
	case <-msg.Acked():
		return true
	case <-msg.Nacked():
		s.logger.Debug("Line nacked, stopping input", watermill.LogFields{"uuid": msg.UUID, "line": lineNo})
		return false
	case <-ctx.Done():
		return false
	case <-s.closing:
		return false
	}
}

var (
	_ message.Publisher  = (*Publisher)(nil)
	_ message.Subscriber = (*Subscriber)(nil)
)
