// Package broadcast implements a single-node message store: it records every
// broadcast value and returns them on read. It answers topology updates but
// does not forward broadcasts to its neighbours.
package broadcast

import "github.com/drblury/nodeflow"

// Msg is the payload union of the store node.
type Msg interface {
	nodeflow.Payload
	isMsg()
}

type Broadcast struct {
	Message int `json:"message"`
}

type BroadcastOk struct{}

type Read struct{}

type ReadOk struct {
	Messages []int `json:"messages"`
}

type Topology struct {
	Topology map[string][]string `json:"topology"`
}

type TopologyOk struct{}

func (*Broadcast) Type() string   { return "broadcast" }
func (*BroadcastOk) Type() string { return "broadcast_ok" }
func (*Read) Type() string        { return "read" }
func (*ReadOk) Type() string      { return "read_ok" }
func (*Topology) Type() string    { return "topology" }
func (*TopologyOk) Type() string  { return "topology_ok" }

func (*Broadcast) isMsg()   {}
func (*BroadcastOk) isMsg() {}
func (*Read) isMsg()        {}
func (*ReadOk) isMsg()      {}
func (*Topology) isMsg()    {}
func (*TopologyOk) isMsg()  {}

// Union decodes every message the store node understands.
var Union = nodeflow.MustUnion[Msg](
	&Broadcast{},
	&BroadcastOk{},
	&Read{},
	&ReadOk{},
	&Topology{},
	&TopologyOk{},
)
