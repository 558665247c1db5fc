package errors

import (
	sterrors "errors"
	"fmt"
)

// Fatal error classes surfaced by the node runtime. Every one of them ends the
// node; callers match them with errors.Is.
var (
	ErrMalformedInput    = sterrors.New("nodeflow: malformed input")
	ErrProtocolViolation = sterrors.New("nodeflow: protocol violation")
	ErrHandler           = sterrors.New("nodeflow: handler failed")
	ErrIO                = sterrors.New("nodeflow: i/o failure")
)

var (
	ErrHandlerRequired      = sterrors.New("nodeflow: handler factory is required")
	ErrUnionRequired        = sterrors.New("nodeflow: payload union is required")
	ErrVariantRequired      = sterrors.New("nodeflow: payload union needs at least one variant")
	ErrVariantPointerNeeded = sterrors.New("nodeflow: payload variant must be a non-nil pointer")
	ErrInvalidVariantTag    = sterrors.New("nodeflow: payload type tag must be lowercase snake case")
	ErrDuplicateVariantTag  = sterrors.New("nodeflow: payload type tag registered twice")
	ErrReservedVariantTag   = sterrors.New("nodeflow: payload type tag is reserved")
	ErrInjectorClosed       = sterrors.New("nodeflow: injector is closed")
	ErrInjectorFull         = sterrors.New("nodeflow: injection queue is full")
	ErrConfigRequired       = sterrors.New("nodeflow: configuration is required")
)

// ConfigValidationError wraps the joined validation failures of a node config.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("nodeflow: invalid configuration: %v", e.Err)
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError returns nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
