package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"

	envelopepkg "github.com/drblury/nodeflow/internal/runtime/envelope"
)

func TestEvent_Accessors(t *testing.T) {
	env := envelopepkg.Envelope[nodeMsg]{Src: "c1", Dest: "n1", Body: envelopepkg.Body[nodeMsg]{Payload: &echoReq{Echo: "x"}}}

	msg := MessageEvent[nodeMsg, tick](env)
	assert.Equal(t, EventMessage, msg.Kind())
	got, ok := msg.Message()
	assert.True(t, ok)
	assert.Equal(t, "c1", got.Src)
	_, ok = msg.Injected()
	assert.False(t, ok)

	inj := InjectedEvent[nodeMsg](tick{n: 4})
	assert.Equal(t, EventInjected, inj.Kind())
	v, ok := inj.Injected()
	assert.True(t, ok)
	assert.Equal(t, 4, v.n)
	_, ok = inj.Message()
	assert.False(t, ok)
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "message", EventMessage.String())
	assert.Equal(t, "injected", EventInjected.String())
	assert.Equal(t, "unknown", EventKind(0).String())
}
