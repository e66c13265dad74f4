package hoplite

import "fmt"

// Error codes for specific failure types
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeCycle         = "CYCLE_DETECTED"
	ErrCodeToolNotFound  = "TOOL_NOT_FOUND"
	ErrCodeFetch         = "FETCH_ERROR"
	ErrCodeCache         = "CACHE_ERROR"
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
	ErrCodeInternal      = "INTERNAL_ERROR"
)

// HopliteError is a custom error type for toolkit-specific errors.
type HopliteError struct {
	Code    string // A machine-readable error code (e.g., ErrCodeToolNotFound)
	Message string // A human-readable message
	Stage   string // The stage where the error occurred (e.g., "planning", "execution")
	Cause   error  // The underlying error, if any
}

// Error implements the error interface.
func (e *HopliteError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Stage, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Stage, e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error, allowing for error chaining.
func (e *HopliteError) Unwrap() error {
	return e.Cause
}

// NewError creates a new HopliteError.
func NewError(code, stage, message string, cause error) *HopliteError {
	return &HopliteError{
		Code:    code,
		Stage:   stage,
		Message: message,
		Cause:   cause,
	}
}

// IsHopliteError reports whether err is a *HopliteError.
func IsHopliteError(err error) bool {
	_, ok := err.(*HopliteError)
	return ok
}

// Specific error constructors

func NewValidationError(stage, message string, cause error) *HopliteError {
	return NewError(ErrCodeValidation, stage, message, cause)
}

func NewCycleError(stage, message string) *HopliteError {
	return NewError(ErrCodeCycle, stage, message, nil)
}

func NewToolNotFoundError(stage, toolName string) *HopliteError {
	return NewError(ErrCodeToolNotFound, stage, fmt.Sprintf("tool '%s' not found", toolName), nil)
}

func NewFetchError(stage, message string, cause error) *HopliteError {
	return NewError(ErrCodeFetch, stage, message, cause)
}

func NewCacheError(stage, operation string, cause error) *HopliteError {
	return NewError(ErrCodeCache, stage, fmt.Sprintf("cache operation '%s' failed", operation), cause)
}

func NewConfigurationError(message string, cause error) *HopliteError {
	return NewError(ErrCodeConfiguration, "initialization", message, cause)
}

func NewInternalError(stage, message string, cause error) *HopliteError {
	return NewError(ErrCodeInternal, stage, message, cause)
}
