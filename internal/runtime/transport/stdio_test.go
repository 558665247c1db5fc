package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed early")
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func requireClosed(t *testing.T, ch <-chan *message.Message) {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.False(t, ok, "expected closed channel, got %v", msg)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestSubscriberDeliversLinesInOrder(t *testing.T) {
	in := strings.NewReader("{\"a\":1}\n\n{\"a\":2}\r\n{\"a\":3}")
	sub := NewSubscriber(in, watermill.NopLogger{})

	ch, err := sub.Subscribe(context.Background(), TopicStdin)
	require.NoError(t, err)

	for i, want := range []string{`{"a":1}`, `{"a":2}`, `{"a":3}`} {
		msg := receive(t, ch)
		assert.Equal(t, want, string(msg.Payload))
		assert.Len(t, msg.UUID, 26)
		assert.Equal(t, TopicStdin, msg.Metadata.Get(MetadataTopic))
		if i == 0 {
			assert.Equal(t, "1", msg.Metadata.Get(MetadataLine))
		}
		msg.Ack()
	}
	requireClosed(t, ch)
	assert.NoError(t, sub.Err())
}

func TestSubscriberWaitsForAck(t *testing.T) {
	sub := NewSubscriber(strings.NewReader("one\ntwo\n"), nil)
	ch, err := sub.Subscribe(context.Background(), TopicStdin)
	require.NoError(t, err)

	first := receive(t, ch)
	select {
	case msg := <-ch:
		t.Fatalf("second line delivered before ack: %v", msg)
	case <-time.After(50 * time.Millisecond):
	}

	first.Ack()
	second := receive(t, ch)
	assert.Equal(t, "two", string(second.Payload))
	second.Ack()
	requireClosed(t, ch)
}

func TestSubscriberStopsOnNack(t *testing.T) {
	sub := NewSubscriber(strings.NewReader("one\ntwo\n"), nil)
	ch, err := sub.Subscribe(context.Background(), TopicStdin)
	require.NoError(t, err)

	receive(t, ch).Nack()
	requireClosed(t, ch)
}

func TestSubscriberStopsOnContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub := NewSubscriber(pr, nil)
	ch, err := sub.Subscribe(ctx, TopicStdin)
	require.NoError(t, err)

	go func() { _, _ = pw.Write([]byte("line\n")) }()
	receive(t, ch)
	cancel()
	requireClosed(t, ch)
}

func TestSubscriberStopsOnClose(t *testing.T) {
	sub := NewSubscriber(strings.NewReader("one\n"), nil)
	ch, err := sub.Subscribe(context.Background(), TopicStdin)
	require.NoError(t, err)

	receive(t, ch)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	requireClosed(t, ch)
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestSubscriberRecordsReadError(t *testing.T) {
	boom := errors.New("disk on fire")
	sub := NewSubscriber(failingReader{err: boom}, nil)
	ch, err := sub.Subscribe(context.Background(), TopicStdin)
	require.NoError(t, err)

	requireClosed(t, ch)
	assert.ErrorIs(t, sub.Err(), boom)
}

func TestSubscriberSingleUse(t *testing.T) {
	sub := NewSubscriber(strings.NewReader(""), nil)

	_, err := sub.Subscribe(context.Background(), "other")
	assert.ErrorIs(t, err, ErrUnknownTopic)

	_, err = sub.Subscribe(context.Background(), TopicStdin)
	require.NoError(t, err)
	_, err = sub.Subscribe(context.Background(), TopicStdin)
	assert.ErrorIs(t, err, ErrAlreadySubscribed)
}

func TestPublisherWritesOneLinePerMessage(t *testing.T) {
	var buf bytes.Buffer
	pub := NewPublisher(&buf, watermill.NopLogger{})

	err := pub.Publish(TopicStdout,
		message.NewMessage("1", []byte(`{"a":1}`)),
		message.NewMessage("2", []byte(`{"a":2}`)),
	)
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":1}\n{\"a\":2}\n", buf.String())
}

func TestPublisherRejects(t *testing.T) {
	var buf bytes.Buffer
	pub := NewPublisher(&buf, nil)

	assert.ErrorIs(t, pub.Publish("stderr", message.NewMessage("1", []byte("x"))), ErrUnknownTopic)
	assert.ErrorIs(t, pub.Publish(TopicStdout, message.NewMessage("1", []byte("a\nb"))), ErrMultilinePayload)

	require.NoError(t, pub.Close())
	assert.ErrorIs(t, pub.Publish(TopicStdout, message.NewMessage("1", []byte("x"))), ErrPublisherClosed)
	assert.Empty(t, buf.String())
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) - 1, nil }

type errWriter struct{ err error }

func (w errWriter) Write([]byte) (int, error) { return 0, w.err }

func TestPublisherSurfacesWriteErrors(t *testing.T) {
	assert.ErrorIs(t, NewPublisher(shortWriter{}, nil).Publish(TopicStdout, message.NewMessage("1", []byte("x"))), io.ErrShortWrite)

	boom := errors.New("broken pipe")
	assert.ErrorIs(t, NewPublisher(errWriter{err: boom}, nil).Publish(TopicStdout, message.NewMessage("1", []byte("x"))), boom)
}

type recordingWriter struct {
	mu     sync.Mutex
	writes [][]byte
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, append([]byte(nil), p...))
	return len(p), nil
}

func TestPublisherConcurrentWritesStayAtomic(t *testing.T) {
	w := &recordingWriter{}
	pub := NewPublisher(w, nil)

	const goroutines = 8
	const perGoroutine = 50
	payload := []byte(strings.Repeat("x", 512))

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				assert.NoError(t, pub.Publish(TopicStdout, message.NewMessage("id", payload)))
			}
		}()
	}
	wg.Wait()

	require.Len(t, w.writes, goroutines*perGoroutine)
	for _, line := range w.writes {
		require.Equal(t, len(payload)+1, len(line))
		require.Equal(t, byte('\n'), line[len(line)-1])
	}
}

func TestNewStdio(t *testing.T) {
	tr := NewStdio(strings.NewReader(""), io.Discard, nil)
	assert.NotNil(t, tr.Publisher)
	assert.NotNil(t, tr.Subscriber)
}
