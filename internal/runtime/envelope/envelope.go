// Package envelope implements the wire format spoken with the orchestrator:
// one JSON document per line carrying src, dest and a body whose "type" tag
// selects a variant of a closed payload union.
package envelope

import (
	"reflect"

	idspkg "github.com/drblury/nodeflow/internal/runtime/ids"
)

// Payload is implemented by every variant of a node's payload union. Type
// returns the snake_case wire tag of the variant.
type Payload interface {
	Type() string
}

// Body carries the correlation metadata next to the payload. A nil MsgID
// marks a fire-and-forget message; a nil InReplyTo marks a request.
type Body[P Payload] struct {
	MsgID     *uint64
	InReplyTo *uint64
	Payload   P
}

// Envelope is one complete wire message.
type Envelope[P Payload] struct {
	Src  string
	Dest string
	Body Body[P]
}

// ID returns a pointer to v, for filling MsgID and InReplyTo.
func ID(v uint64) *uint64 {
	return &v
}

// PayloadType returns the wire tag of the payload, or "" when it is unset.
func (e Envelope[P]) PayloadType() string {
	if isNil(e.Body.Payload) {
		return ""
	}
	return e.Body.Payload.Type()
}

// Reply builds the answer to e: src and dest swapped, in_reply_to set to e's
// msg_id, and a fresh msg_id taken from alloc when alloc is non-nil. The
// request payload is carried over; callers replace it before emitting.
func (e Envelope[P]) Reply(alloc *idspkg.Allocator) Envelope[P] {
	return Respond(e, alloc, e.Body.Payload)
}

// Respond is Reply for a payload drawn from a different union than the
// request, as with init and init_ok.
func Respond[Q Payload, P Payload](req Envelope[P], alloc *idspkg.Allocator, payload Q) Envelope[Q] {
	reply := Envelope[Q]{
		Src:  req.Dest,
		Dest: req.Src,
		Body: Body[Q]{Payload: payload},
	}
	if req.Body.MsgID != nil {
		reply.Body.InReplyTo = ID(*req.Body.MsgID)
	}
	if alloc != nil {
		reply.Body.MsgID = ID(alloc.Next())
	}
	return reply
}

func isNil(p any) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}
