package envelope

import "slices"

// Wire tags of the handshake. No node union may register them.
const (
	TypeInit   = "init"
	TypeInitOk = "init_ok"
)

// Init is the handshake payload: the node's own id and the cluster membership.
type Init struct {
	NodeID  string   `json:"node_id"`
	NodeIDs []string `json:"node_ids"`
}

func (*Init) Type() string { return TypeInit }

// Peers returns the other members of the cluster, in handshake order.
func (i *Init) Peers() []string {
	peers := make([]string, 0, len(i.NodeIDs))
	for _, id := range i.NodeIDs {
		if id != i.NodeID {
			peers = append(peers, id)
		}
	}
	return peers
}

// Clone returns a deep copy so handler state never aliases handshake data.
func (i *Init) Clone() Init {
	return Init{NodeID: i.NodeID, NodeIDs: slices.Clone(i.NodeIDs)}
}

// InitOk acknowledges the handshake.
type InitOk struct{}

func (*InitOk) Type() string { return TypeInitOk }

var initUnion, _ = newUnion[*Init](true, &Init{})

// DecodeInit parses a handshake line. Callers check the type with PeekType
// first; this only fails on malformed input.
func DecodeInit(line []byte) (Envelope[*Init], error) {
	return initUnion.Decode(line)
}
