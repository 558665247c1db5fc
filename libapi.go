package nodeflow

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	runtimepkg "github.com/drblury/nodeflow/internal/runtime"
	configpkg "github.com/drblury/nodeflow/internal/runtime/config"
	envelopepkg "github.com/drblury/nodeflow/internal/runtime/envelope"
	errspkg "github.com/drblury/nodeflow/internal/runtime/errors"
	idspkg "github.com/drblury/nodeflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/nodeflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/nodeflow/internal/runtime/logging"
)

type (
	Config                = configpkg.Config
	ConfigValidationError = errspkg.ConfigValidationError

	Payload                          = envelopepkg.Payload
	Envelope[P Payload]              = envelopepkg.Envelope[P]
	Body[P Payload]                  = envelopepkg.Body[P]
	Union[P Payload]                 = envelopepkg.Union[P]
	Init                             = envelopepkg.Init
	Allocator                        = idspkg.Allocator
	Event[P Payload, T any]          = runtimepkg.Event[P, T]
	EventKind                        = runtimepkg.EventKind
	Injector[T any]                  = runtimepkg.Injector[T]
	Output[P Payload]                = runtimepkg.Output[P]
	Handler[P Payload, T any]        = runtimepkg.Handler[P, T]
	HandlerFunc[P Payload, T any]    = runtimepkg.HandlerFunc[P, T]
	Factory[S any, P Payload, T any] = runtimepkg.Factory[S, P, T]
	Node[S any, P Payload, T any]    = runtimepkg.Node[S, P, T]
	NoInjection                      = runtimepkg.NoInjection
	State                            = runtimepkg.State
	Option                           = runtimepkg.Option

	LogFields = loggingpkg.LogFields
	Logger    = loggingpkg.Logger

	// Step lifecycle hooks
	StepContext = runtimepkg.StepContext
	StepHooks   = runtimepkg.StepHooks

	NodeMetrics = runtimepkg.NodeMetrics
)

// Lifecycle phases of a node.
const (
	AwaitingInit = runtimepkg.AwaitingInit
	Running      = runtimepkg.Running
	Terminated   = runtimepkg.Terminated
)

// Origins of an Event.
const (
	EventMessage  = runtimepkg.EventMessage
	EventInjected = runtimepkg.EventInjected
)

var (
	WithInput           = runtimepkg.WithInput
	WithOutput          = runtimepkg.WithOutput
	WithLogger          = runtimepkg.WithLogger
	WithHooks           = runtimepkg.WithHooks
	WithMetrics         = runtimepkg.WithMetrics
	WithMetricsServer   = runtimepkg.WithMetricsServer
	WithInjectionBuffer = runtimepkg.WithInjectionBuffer
	WithTracerName      = runtimepkg.WithTracerName
	WithConfig          = runtimepkg.WithConfig

	LoggingHooks = runtimepkg.LoggingHooks
	MetricsHooks = runtimepkg.MetricsHooks

	DefaultConfig  = configpkg.Default
	LoadConfigFile = configpkg.LoadFile
	ValidateConfig = configpkg.ValidateConfig

	NewLogger     = loggingpkg.New
	NewSlogLogger = loggingpkg.NewSlogLogger
	NewNopLogger  = loggingpkg.NewNopLogger
	ParseLogLevel = loggingpkg.ParseLevel
	NewAllocator  = idspkg.NewAllocator
	CreateULID    = idspkg.CreateULID
	PeekType      = envelopepkg.PeekType
	DecodeInit    = envelopepkg.DecodeInit

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal

	ErrMalformedInput       = errspkg.ErrMalformedInput
	ErrProtocolViolation    = errspkg.ErrProtocolViolation
	ErrHandler              = errspkg.ErrHandler
	ErrIO                   = errspkg.ErrIO
	ErrHandlerRequired      = errspkg.ErrHandlerRequired
	ErrUnionRequired        = errspkg.ErrUnionRequired
	ErrVariantRequired      = errspkg.ErrVariantRequired
	ErrVariantPointerNeeded = errspkg.ErrVariantPointerNeeded
	ErrInvalidVariantTag    = errspkg.ErrInvalidVariantTag
	ErrDuplicateVariantTag  = errspkg.ErrDuplicateVariantTag
	ErrReservedVariantTag   = errspkg.ErrReservedVariantTag
	ErrInjectorClosed       = errspkg.ErrInjectorClosed
	ErrInjectorFull         = errspkg.ErrInjectorFull
	ErrConfigRequired       = errspkg.ErrConfigRequired
)

// Wire tags of the handshake.
const (
	TypeInit   = envelopepkg.TypeInit
	TypeInitOk = envelopepkg.TypeInitOk
)

func NewUnion[P Payload](variants ...P) (*Union[P], error) {
	return envelopepkg.NewUnion(variants...)
}

func MustUnion[P Payload](variants ...P) *Union[P] {
	return envelopepkg.MustUnion(variants...)
}

func Run[S any, P Payload, T any](ctx context.Context, union *Union[P], state S, factory Factory[S, P, T], opts ...Option) error {
	return runtimepkg.Run(ctx, union, state, factory, opts...)
}

func NewNode[S any, P Payload, T any](union *Union[P], factory Factory[S, P, T], opts ...Option) (*Node[S, P, T], error) {
	return runtimepkg.NewNode(union, factory, opts...)
}

func MessageEvent[P Payload, T any](env Envelope[P]) Event[P, T] {
	return runtimepkg.MessageEvent[P, T](env)
}

func InjectedEvent[P Payload, T any](value T) Event[P, T] {
	return runtimepkg.InjectedEvent[P, T](value)
}

// Respond answers req with a payload of another union.
func Respond[Q Payload, P Payload](req Envelope[P], alloc *Allocator, payload Q) Envelope[Q] {
	return envelopepkg.Respond(req, alloc, payload)
}

// Tick injects next() into inj every interval until ctx ends or inj closes.
func Tick[T any](ctx context.Context, inj *Injector[T], every time.Duration, next func() T) {
	runtimepkg.Tick(ctx, inj, every, next)
}

// NewNodeMetrics creates node metrics on registry; nil selects the default registry.
func NewNodeMetrics(registry *prometheus.Registry) *NodeMetrics {
	return runtimepkg.NewNodeMetrics(registry)
}

// ID returns a pointer to v for MsgID and InReplyTo.
func ID(v uint64) *uint64 {
	return envelopepkg.ID(v)
}
