package envelope

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"

	errspkg "github.com/drblury/nodeflow/internal/runtime/errors"
	jsoncodec "github.com/drblury/nodeflow/internal/runtime/jsoncodec"
)

var tagPattern = regexp.MustCompile(`^[a-z][a-z0-9]*(_[a-z0-9]+)*$`)

// Reserved body fields; payload structs must not declare them.
const (
	fieldType      = "type"
	fieldMsgID     = "msg_id"
	fieldInReplyTo = "in_reply_to"
)

// Union is the closed set of payload variants a node understands, keyed by
// their wire tag. It decodes lines into envelopes and encodes them back.
type Union[P Payload] struct {
	factories map[string]func() P
	tags      []string
}

// NewUnion registers the given prototypes. Each must be a non-nil pointer to
// a struct whose Type tag is unique, snake_case and not reserved by the init
// handshake.
func NewUnion[P Payload](variants ...P) (*Union[P], error) {
	return newUnion(false, variants...)
}

// MustUnion is NewUnion for package-level variables.
func MustUnion[P Payload](variants ...P) *Union[P] {
	u, err := NewUnion(variants...)
	if err != nil {
		panic(err)
	}
	return u
}

func newUnion[P Payload](allowReserved bool, variants ...P) (*Union[P], error) {
	if len(variants) == 0 {
		return nil, errspkg.ErrVariantRequired
	}

	u := &Union[P]{factories: make(map[string]func() P, len(variants))}
	for _, variant := range variants {
		factory, err := prototypeFactory(variant)
		if err != nil {
			return nil, err
		}

		tag := variant.Type()
		if !tagPattern.MatchString(tag) {
			return nil, fmt.Errorf("%w: %q", errspkg.ErrInvalidVariantTag, tag)
		}
		if !allowReserved && (tag == TypeInit || tag == TypeInitOk) {
			return nil, fmt.Errorf("%w: %q", errspkg.ErrReservedVariantTag, tag)
		}
		if _, dup := u.factories[tag]; dup {
			return nil, fmt.Errorf("%w: %q", errspkg.ErrDuplicateVariantTag, tag)
		}

		u.factories[tag] = factory
		u.tags = append(u.tags, tag)
	}
	sort.Strings(u.tags)
	return u, nil
}

func prototypeFactory[P Payload](variant P) (func() P, error) {
	v := reflect.ValueOf(variant)
	if !v.IsValid() || v.Kind() != reflect.Ptr || v.IsNil() {
		return nil, fmt.Errorf("%w: got %T", errspkg.ErrVariantPointerNeeded, variant)
	}
	elem := v.Type().Elem()
	return func() P {
		return reflect.New(elem).Interface().(P)
	}, nil
}

// Tags lists the registered wire tags in sorted order.
func (u *Union[P]) Tags() []string {
	out := make([]string, len(u.tags))
	copy(out, u.tags)
	return out
}

// Has reports whether tag belongs to the union.
func (u *Union[P]) Has(tag string) bool {
	_, ok := u.factories[tag]
	return ok
}

type wireEnvelope struct {
	Src  string          `json:"src"`
	Dest string          `json:"dest"`
	Body json.RawMessage `json:"body"`
}

type wireHeader struct {
	Type      string  `json:"type"`
	MsgID     *uint64 `json:"msg_id"`
	InReplyTo *uint64 `json:"in_reply_to"`
}

// Decode parses one line. Every failure wraps ErrMalformedInput: invalid
// JSON, a missing src, dest, body or body type, or a type outside the union.
func (u *Union[P]) Decode(line []byte) (Envelope[P], error) {
	var env Envelope[P]

	wire, hdr, err := decodeWire(line)
	if err != nil {
		return env, err
	}

	factory, ok := u.factories[hdr.Type]
	if !ok {
		return env, fmt.Errorf("%w: unknown payload type %q", errspkg.ErrMalformedInput, hdr.Type)
	}
	payload := factory()
	if err := jsoncodec.Unmarshal(wire.Body, payload); err != nil {
		return env, fmt.Errorf("%w: %s body: %w", errspkg.ErrMalformedInput, hdr.Type, err)
	}

	env.Src = wire.Src
	env.Dest = wire.Dest
	env.Body = Body[P]{MsgID: hdr.MsgID, InReplyTo: hdr.InReplyTo, Payload: payload}
	return env, nil
}

// Encode renders env as a single JSON document without a trailing newline.
// Body keys are sorted so the output is deterministic.
func (u *Union[P]) Encode(env Envelope[P]) ([]byte, error) {
	return Encode(env)
}

// Encode renders any envelope; see Union.Encode.
func Encode[P Payload](env Envelope[P]) ([]byte, error) {
	body, err := encodeBody(env.Body)
	if err != nil {
		return nil, err
	}
	return jsoncodec.Marshal(wireEnvelope{Src: env.Src, Dest: env.Dest, Body: body})
}

func encodeBody[P Payload](b Body[P]) (json.RawMessage, error) {
	if isNil(b.Payload) {
		return nil, fmt.Errorf("envelope: body has no payload")
	}
	tag := b.Payload.Type()

	raw, err := jsoncodec.Marshal(b.Payload)
	if err != nil {
		return nil, fmt.Errorf("envelope: encode %s payload: %w", tag, err)
	}
	fields := map[string]json.RawMessage{}
	if err := jsoncodec.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("envelope: %s payload must encode as a JSON object: %w", tag, err)
	}

	if fields[fieldType], err = jsoncodec.Marshal(tag); err != nil {
		return nil, err
	}
	if b.MsgID != nil {
		fields[fieldMsgID], _ = jsoncodec.Marshal(*b.MsgID)
	}
	if b.InReplyTo != nil {
		fields[fieldInReplyTo], _ = jsoncodec.Marshal(*b.InReplyTo)
	}
	return jsoncodec.Marshal(fields)
}

func decodeWire(line []byte) (wireEnvelope, wireHeader, error) {
	var wire wireEnvelope
	var hdr wireHeader

	if err := jsoncodec.Unmarshal(line, &wire); err != nil {
		return wire, hdr, fmt.Errorf("%w: %w", errspkg.ErrMalformedInput, err)
	}
	switch {
	case wire.Src == "":
		return wire, hdr, fmt.Errorf("%w: missing src", errspkg.ErrMalformedInput)
	case wire.Dest == "":
		return wire, hdr, fmt.Errorf("%w: missing dest", errspkg.ErrMalformedInput)
	case len(wire.Body) == 0 || string(wire.Body) == "null":
		return wire, hdr, fmt.Errorf("%w: missing body", errspkg.ErrMalformedInput)
	}

	if err := jsoncodec.Unmarshal(wire.Body, &hdr); err != nil {
		return wire, hdr, fmt.Errorf("%w: body: %w", errspkg.ErrMalformedInput, err)
	}
	if hdr.Type == "" {
		return wire, hdr, fmt.Errorf("%w: missing body type", errspkg.ErrMalformedInput)
	}
	return wire, hdr, nil
}

// PeekType validates the envelope fields of line and returns its body type
// without decoding the payload.
func PeekType(line []byte) (string, error) {
	_, hdr, err := decodeWire(line)
	return hdr.Type, err
}
