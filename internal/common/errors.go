package common

import "fmt"

// Validation error codes shared by the engine and the HTTP bridge.
const (
	CodeInvalidID              = "invalid_id"
	CodeInvalidBadge           = "invalid_badge"
	CodeInvalidTrigger         = "invalid_trigger"
	CodeInvalidCategory        = "invalid_category"
	CodeUnknownActionCategory  = "unknown_action_category"
	CodeReservedActionCategory = "reserved_action_category"
	CodeIDMismatch             = "id_mismatch"
	CodeInvalidRequest         = "invalid_request"
)

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s with id '%s' not found", e.Resource, e.ID)
}

// Is reports whether target is a NotFoundError for the same resource.
// An empty resource on the target matches any resource.
func (e *NotFoundError) Is(target error) bool {
	t, ok := target.(*NotFoundError)
	if !ok {
		return false
	}
	return t.Resource == "" || t.Resource == e.Resource
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError indicates invalid input data. Code classifies the failure.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Message
}

// Is matches any ValidationError carrying the same code, so sentinel values
// can be compared with errors.Is regardless of their message.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Code == e.Code
}

// NewValidationError creates a new ValidationError.
func NewValidationError(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

// UnauthorizedError indicates missing or invalid authentication.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	if e.Message == "" {
		return "unauthorized"
	}
	return e.Message
}

// NewUnauthorizedError creates a new UnauthorizedError.
func NewUnauthorizedError(message string) *UnauthorizedError {
	return &UnauthorizedError{Message: message}
}

// PermissionError indicates the host refused the notification capability.
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string {
	if e.Message == "" {
		return "permission denied"
	}
	return e.Message
}

// Is matches any PermissionError.
func (e *PermissionError) Is(target error) bool {
	_, ok := target.(*PermissionError)
	return ok
}

// NewPermissionError creates a new PermissionError.
func NewPermissionError(message string) *PermissionError {
	return &PermissionError{Message: message}
}

// HostError wraps a failure reported by the host notification center,
// tagged with the operation that produced it.
type HostError struct {
	Op  string
	Err error
}

func (e *HostError) Error() string {
	return fmt.Sprintf("host %s: %v", e.Op, e.Err)
}

func (e *HostError) Unwrap() error {
	return e.Err
}

// NewHostError creates a new HostError.
func NewHostError(op string, err error) *HostError {
	return &HostError{Op: op, Err: err}
}
