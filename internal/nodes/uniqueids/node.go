package uniqueids

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/drblury/nodeflow"
)

// Strategy selects how ids are minted.
type Strategy string

const (
	// StrategyCounter yields "<node_id>-<msg_id>" where msg_id is the id of
	// the reply carrying it. Node ids are unique in the cluster and msg_ids
	// never repeat within a node.
	StrategyCounter Strategy = "counter"
	// StrategyULID yields a monotonic ULID.
	StrategyULID Strategy = "ulid"
)

// ParseStrategy maps a flag value to a Strategy. Empty selects the counter.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyCounter:
		return StrategyCounter, nil
	case StrategyULID:
		return StrategyULID, nil
	default:
		return "", fmt.Errorf("uniqueids: unknown id strategy %q", s)
	}
}

// Node answers generate requests.
type Node struct {
	id       string
	strategy Strategy
}

// Factory builds the node; the startup state is the id strategy.
func Factory(_ context.Context, strategy Strategy, hs nodeflow.Init, _ *nodeflow.Injector[nodeflow.NoInjection]) (nodeflow.Handler[Msg, nodeflow.NoInjection], error) {
	if strategy == "" {
		strategy = StrategyCounter
	}
	if strategy != StrategyCounter && strategy != StrategyULID {
		return nil, fmt.Errorf("uniqueids: unknown id strategy %q", strategy)
	}
	return &Node{id: hs.NodeID, strategy: strategy}, nil
}

// Run serves the id node until stdin ends.
func Run(ctx context.Context, strategy Strategy, opts ...nodeflow.Option) error {
	return nodeflow.Run(ctx, Union, strategy, Factory, opts...)
}

func (n *Node) Step(_ context.Context, ev nodeflow.Event[Msg, nodeflow.NoInjection], out *nodeflow.Output[Msg]) error {
	env, ok := ev.Message()
	if !ok {
		return fmt.Errorf("uniqueids: unexpected %s event", ev.Kind())
	}

	switch env.Body.Payload.(type) {
	case *Generate:
		reply := env.Reply(out.IDs())
		reply.Src = out.NodeID()
		reply.Body.Payload = &GenerateOk{ID: n.mint(*reply.Body.MsgID)}
		return out.Emit(reply)
	case *GenerateOk:
		return nil
	default:
		return fmt.Errorf("uniqueids: unhandled payload %s", env.PayloadType())
	}
}

func (n *Node) mint(msgID uint64) string {
	if n.strategy == StrategyULID {
		return nodeflow.CreateULID()
	}
	return n.id + "-" + strconv.FormatUint(msgID, 10)
}
