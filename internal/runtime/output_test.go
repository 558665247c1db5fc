package runtime

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	envelopepkg "github.com/drblury/nodeflow/internal/runtime/envelope"
	errspkg "github.com/drblury/nodeflow/internal/runtime/errors"
	idspkg "github.com/drblury/nodeflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/nodeflow/internal/runtime/logging"
	transportpkg "github.com/drblury/nodeflow/internal/runtime/transport"
)

func newTestOutput(w *bytes.Buffer) *Output[nodeMsg] {
	hs := envelopepkg.Init{NodeID: "n1", NodeIDs: []string{"n1", "n2"}}
	return newOutput[nodeMsg](hs, idspkg.NewAllocator(), transportpkg.NewPublisher(w, nil), nil, loggingpkg.NewNopLogger())
}

func TestOutput_Identity(t *testing.T) {
	out := newTestOutput(&bytes.Buffer{})
	assert.Equal(t, "n1", out.NodeID())
	assert.Equal(t, []string{"n1", "n2"}, out.NodeIDs())

	ids := out.NodeIDs()
	ids[0] = "changed"
	assert.Equal(t, "n1", out.NodeIDs()[0])
	assert.Equal(t, uint64(1), out.IDs().Peek())
}

func TestOutput_SendAndReply(t *testing.T) {
	var buf bytes.Buffer
	out := newTestOutput(&buf)

	id, err := out.Send("n2", &gossip{Seq: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	req := envelopepkg.Envelope[nodeMsg]{Src: "c1", Dest: "n1", Body: envelopepkg.Body[nodeMsg]{MsgID: envelopepkg.ID(40), Payload: &echoReq{Echo: "x"}}}
	require.NoError(t, out.Reply(req, &echoOk{Echo: "x"}))

	lines := parseOutput(t, buf.String())
	require.Len(t, lines, 2)

	assert.Equal(t, "n1", lines[0].Src)
	assert.Equal(t, "n2", lines[0].Dest)
	assert.Equal(t, uint64(1), lines[0].num("msg_id"))
	assert.NotContains(t, lines[0].Body, "in_reply_to")

	assert.Equal(t, "c1", lines[1].Dest)
	assert.Equal(t, "echo_ok", lines[1].typ())
	assert.Equal(t, uint64(40), lines[1].num("in_reply_to"))
	assert.Equal(t, uint64(2), lines[1].num("msg_id"))
}

func TestOutput_EmitErrors(t *testing.T) {
	var buf bytes.Buffer
	out := newTestOutput(&buf)

	err := out.Emit(envelopepkg.Envelope[nodeMsg]{Src: "n1", Dest: "c1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, errspkg.ErrIO)
	assert.Empty(t, buf.String())

	hs := envelopepkg.Init{NodeID: "n1"}
	broken := newOutput[nodeMsg](hs, idspkg.NewAllocator(), transportpkg.NewPublisher(failingWriter{err: errors.New("closed")}, nil), nil, loggingpkg.NewNopLogger())
	_, err = broken.Send("c1", &echoOk{})
	assert.ErrorIs(t, err, errspkg.ErrIO)
}
