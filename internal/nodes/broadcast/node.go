package broadcast

import (
	"context"
	"fmt"
	"slices"

	"github.com/drblury/nodeflow"
)

// Node holds the values seen so far, in arrival order, and the last
// topology the orchestrator sent.
type Node struct {
	id        string
	messages  []int
	neighbors []string
	logger    nodeflow.Logger
}

// NewFactory returns the factory Run uses to build the node after the
// handshake.
func NewFactory(logger nodeflow.Logger) nodeflow.Factory[struct{}, Msg, nodeflow.NoInjection] {
	if logger == nil {
		logger = nodeflow.NewNopLogger()
	}
	return func(_ context.Context, _ struct{}, hs nodeflow.Init, _ *nodeflow.Injector[nodeflow.NoInjection]) (nodeflow.Handler[Msg, nodeflow.NoInjection], error) {
		return &Node{id: hs.NodeID, logger: logger.With(nodeflow.LogFields{"node": "broadcast"})}, nil
	}
}

// Run serves the store node until stdin ends.
func Run(ctx context.Context, logger nodeflow.Logger, opts ...nodeflow.Option) error {
	return nodeflow.Run(ctx, Union, struct{}{}, NewFactory(logger), opts...)
}

func (n *Node) Step(_ context.Context, ev nodeflow.Event[Msg, nodeflow.NoInjection], out *nodeflow.Output[Msg]) error {
	env, ok := ev.Message()
	if !ok {
		return fmt.Errorf("broadcast: unexpected %s event", ev.Kind())
	}

	switch p := env.Body.Payload.(type) {
	case *Broadcast:
		n.messages = append(n.messages, p.Message)
		return out.Reply(env, &BroadcastOk{})
	case *Read:
		return out.Reply(env, &ReadOk{Messages: n.Messages()})
	case *Topology:
		n.neighbors = p.Topology[n.id]
		n.logger.Debug("Topology updated", nodeflow.LogFields{"neighbors": n.neighbors})
		return out.Reply(env, &TopologyOk{})
	case *BroadcastOk, *ReadOk, *TopologyOk:
		return nil
	default:
		return fmt.Errorf("broadcast: unhandled payload %s", env.PayloadType())
	}
}

// Messages returns the stored values in arrival order, never nil.
func (n *Node) Messages() []int {
	return append(make([]int, 0, len(n.messages)), n.messages...)
}

// Neighbors returns this node's entry of the last topology.
func (n *Node) Neighbors() []string {
	return slices.Clone(n.neighbors)
}
