package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	envelopepkg "github.com/drblury/nodeflow/internal/runtime/envelope"
	jsoncodec "github.com/drblury/nodeflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/nodeflow/internal/runtime/logging"
)

// nodeMsg is the payload union of the test node.
type nodeMsg interface {
	envelopepkg.Payload
	isNodeMsg()
}

type echoReq struct {
	Echo string `json:"echo"`
}

type echoOk struct {
	Echo string `json:"echo"`
}

type failReq struct{}

type panicReq struct{}

type gossip struct {
	Seq int `json:"seq"`
}

func (*echoReq) Type() string  { return "echo" }
func (*echoOk) Type() string   { return "echo_ok" }
func (*failReq) Type() string  { return "fail" }
func (*panicReq) Type() string { return "panic" }
func (*gossip) Type() string   { return "gossip" }

func (*echoReq) isNodeMsg()  {}
func (*echoOk) isNodeMsg()   {}
func (*failReq) isNodeMsg()  {}
func (*panicReq) isNodeMsg() {}
func (*gossip) isNodeMsg()   {}

var (
	testUnion = envelopepkg.MustUnion[nodeMsg](&echoReq{}, &echoOk{}, &failReq{}, &panicReq{}, &gossip{})

	errStepFailed = errors.New("step failed")
)

type echoState struct{}

func echoStep(ctx context.Context, ev Event[nodeMsg, NoInjection], out *Output[nodeMsg]) error {
	env, ok := ev.Message()
	if !ok {
		return errors.New("unexpected injected event")
	}
	switch p := env.Body.Payload.(type) {
	case *echoReq:
		return out.Reply(env, &echoOk{Echo: p.Echo})
	case *failReq:
		return errStepFailed
	case *panicReq:
		panic("boom")
	}
	return nil
}

var echoFactory Factory[echoState, nodeMsg, NoInjection] = func(context.Context, echoState, envelopepkg.Init, *Injector[NoInjection]) (Handler[nodeMsg, NoInjection], error) {
	return HandlerFunc[nodeMsg, NoInjection](echoStep), nil
}

func initLine(msgID uint64, nodeID string, nodeIDs ...string) string {
	ids, _ := jsoncodec.Marshal(nodeIDs)
	return fmt.Sprintf(`{"src":"c1","dest":%q,"body":{"type":"init","msg_id":%d,"node_id":%q,"node_ids":%s}}`, nodeID, msgID, nodeID, ids)
}

func echoLine(msgID uint64, text string) string {
	return fmt.Sprintf(`{"src":"c1","dest":"n1","body":{"type":"echo","msg_id":%d,"echo":%q}}`, msgID, text)
}

func input(lines ...string) io.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}

// wireLine is the decoded shape of an output line; numbers come back as float64.
type wireLine struct {
	Src  string         `json:"src"`
	Dest string         `json:"dest"`
	Body map[string]any `json:"body"`
}

func (w wireLine) typ() string {
	s, _ := w.Body["type"].(string)
	return s
}

func (w wireLine) num(key string) uint64 {
	f, _ := w.Body[key].(float64)
	return uint64(f)
}

func parseOutput(t *testing.T, raw string) []wireLine {
	t.Helper()
	var lines []wireLine
	for _, l := range strings.Split(strings.TrimRight(raw, "\n"), "\n") {
		if l == "" {
			continue
		}
		var w wireLine
		require.NoError(t, jsoncodec.Unmarshal([]byte(l), &w), "line %q", l)
		lines = append(lines, w)
	}
	return lines
}

// syncBuffer is a bytes.Buffer safe to read while the node writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }

type capturingLogger struct {
	mu     sync.Mutex
	debugs []string
	infos  []string
	errors []string
}

func (c *capturingLogger) With(loggingpkg.LogFields) loggingpkg.Logger { return c }

func (c *capturingLogger) Debug(msg string, _ loggingpkg.LogFields) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debugs = append(c.debugs, msg)
}

func (c *capturingLogger) Info(msg string, _ loggingpkg.LogFields) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.infos = append(c.infos, msg)
}

func (c *capturingLogger) Error(msg string, _ error, _ loggingpkg.LogFields) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, msg)
}

func (c *capturingLogger) Trace(string, loggingpkg.LogFields) {}
