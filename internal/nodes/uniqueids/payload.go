// Package uniqueids implements a node that hands out cluster-wide unique ids
// without coordinating with its peers.
package uniqueids

import "github.com/drblury/nodeflow"

// Msg is the payload union of the id node.
type Msg interface {
	nodeflow.Payload
	isMsg()
}

type Generate struct{}

type GenerateOk struct {
	ID string `json:"id"`
}

func (*Generate) Type() string   { return "generate" }
func (*GenerateOk) Type() string { return "generate_ok" }

func (*Generate) isMsg()   {}
func (*GenerateOk) isMsg() {}

var Union = nodeflow.MustUnion[Msg](&Generate{}, &GenerateOk{})
