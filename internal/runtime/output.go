package runtime

import (
	"fmt"
	"slices"

	"github.com/ThreeDotsLabs/watermill/message"

	envelopepkg "github.com/drblury/nodeflow/internal/runtime/envelope"
	errspkg "github.com/drblury/nodeflow/internal/runtime/errors"
	idspkg "github.com/drblury/nodeflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/nodeflow/internal/runtime/logging"
	transportpkg "github.com/drblury/nodeflow/internal/runtime/transport"
)

// Output is the node's handle on stdout. It stamps outgoing messages with
// this node's id and with ids from the node's allocator. It is safe to use
// from producer goroutines as well as from Step.
type Output[P envelopepkg.Payload] struct {
	nodeID  string
	nodeIDs []string

	ids       *idspkg.Allocator
	publisher message.Publisher
	metrics   *NodeMetrics
	logger    loggingpkg.Logger
}

func newOutput[P envelopepkg.Payload](hs envelopepkg.Init, alloc *idspkg.Allocator, pub message.Publisher, metrics *NodeMetrics, logger loggingpkg.Logger) *Output[P] {
	return &Output[P]{
		nodeID:    hs.NodeID,
		nodeIDs:   slices.Clone(hs.NodeIDs),
		ids:       alloc,
		publisher: pub,
		metrics:   metrics,
		logger:    logger,
	}
}

// NodeID is the identity assigned by the handshake.
func (o *Output[P]) NodeID() string {
	return o.nodeID
}

// NodeIDs lists every cluster member, this node included.
func (o *Output[P]) NodeIDs() []string {
	return slices.Clone(o.nodeIDs)
}

// IDs exposes the node's message id allocator.
func (o *Output[P]) IDs() *idspkg.Allocator {
	return o.ids
}

// Reply answers req with payload. The reply carries in_reply_to = req's
// msg_id and a fresh msg_id of its own.
func (o *Output[P]) Reply(req envelopepkg.Envelope[P], payload P) error {
	reply := req.Reply(o.ids)
	reply.Src = o.nodeID
	reply.Body.Payload = payload
	return o.Emit(reply)
}

// Send starts a new exchange with dest and returns the msg_id it used, so
// the caller can match the eventual reply.
func (o *Output[P]) Send(dest string, payload P) (uint64, error) {
	id := o.ids.Next()
	env := envelopepkg.Envelope[P]{
		Src:  o.nodeID,
		Dest: dest,
		Body: envelopepkg.Body[P]{MsgID: envelopepkg.ID(id), Payload: payload},
	}
	return id, o.Emit(env)
}

// Emit writes env as is. Encoding problems are returned unwrapped since they
// come from the handler's payload; write failures wrap ErrIO.
func (o *Output[P]) Emit(env envelopepkg.Envelope[P]) error {
	data, err := envelopepkg.Encode(env)
	if err != nil {
		return err
	}
	if err := publishLine(o.publisher, data); err != nil {
		return err
	}

	tag := env.PayloadType()
	o.metrics.observeSent(tag)
	o.logger.Trace("Message sent", loggingpkg.LogFields{"dest": env.Dest, "type": tag})
	return nil
}

func publishLine(pub message.Publisher, data []byte) error {
	msg := message.NewMessage(idspkg.CreateULID(), data)
	if err := pub.Publish(transportpkg.TopicStdout, msg); err != nil {
		return fmt.Errorf("%w: %w", errspkg.ErrIO, err)
	}
	return nil
}
