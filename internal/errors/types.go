// Package errors provides the structured error type shared by slotter's
// packages together with a small handler that routes errors to a logger.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeSecurity   ErrorType = "security"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeRender     ErrorType = "render"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// SlotterError is a structured error type with context.
type SlotterError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	FilePath    string
	Recoverable bool
}

// Error implements the error interface.
func (e *SlotterError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}
	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)
	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *SlotterError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a SlotterError with the same type and code.
func (e *SlotterError) Is(target error) bool {
	var t *SlotterError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *SlotterError) WithContext(key string, value interface{}) *SlotterError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithFile records the file the error relates to.
func (e *SlotterError) WithFile(path string) *SlotterError {
	e.FilePath = path

	return e
}

// WithComponent adds component context.
func (e *SlotterError) WithComponent(component string) *SlotterError {
	e.Component = component

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *SlotterError {
	return &SlotterError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string) *SlotterError {
	return &SlotterError{
		Type:    ErrorTypeSecurity,
		Code:    code,
		Message: message,
	}
}

// NewRenderError creates an error for a value that failed to render.
func NewRenderError(code, message string, cause error) *SlotterError {
	return &SlotterError{
		Type:        ErrorTypeRender,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *SlotterError {
	return &SlotterError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *SlotterError {
	return &SlotterError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *SlotterError {
	return &SlotterError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var se *SlotterError
	if errors.As(err, &se) {
		return se.Recoverable
	}

	return false
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

// IsRenderError checks if an error came from rendering a value.
func IsRenderError(err error) bool {
	return hasType(err, ErrorTypeRender)
}

// Code returns the code of the first SlotterError in err's chain, or "".
func Code(err error) string {
	var se *SlotterError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

func hasType(err error, typ ErrorType) bool {
	var se *SlotterError
	if errors.As(err, &se) {
		return se.Type == typ
	}

	return false
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err at a level chosen from its type. Recoverable errors are
// warnings, everything else is an error.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var se *SlotterError
	if !errors.As(err, &se) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	fields := []interface{}{"type", se.Type, "code", se.Code}
	if se.Component != "" {
		fields = append(fields, "component", se.Component)
	}
	if se.FilePath != "" {
		fields = append(fields, "file", se.FilePath)
	}

	if se.Recoverable {
		h.logger.Warn(ctx, err, "Recoverable error occurred", fields...)
		return
	}
	h.logger.Error(ctx, err, "Error occurred", fields...)
}

// Common error codes.
const (
	ErrCodePatternGroups     = "ERR_PATTERN_GROUPS"
	ErrCodeInvalidPattern    = "ERR_INVALID_PATTERN"
	ErrCodeInvalidTag        = "ERR_INVALID_TAG"
	ErrCodeComponentNotFound = "ERR_COMPONENT_NOT_FOUND"
	ErrCodeInvalidComponent  = "ERR_INVALID_COMPONENT"
	ErrCodeDocumentInvalid   = "ERR_DOCUMENT_INVALID"
	ErrCodeRenderFailed      = "ERR_RENDER_FAILED"
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound      = "ERR_FILE_NOT_FOUND"
	ErrCodeInvalidOrigin     = "ERR_INVALID_ORIGIN"
	ErrCodeMountNotFound     = "ERR_MOUNT_NOT_FOUND"
	ErrCodeNotInteractive    = "ERR_NOT_INTERACTIVE"
	ErrCodeTemplateClosed    = "ERR_TEMPLATE_CLOSED"
	ErrCodeInternalError     = "ERR_INTERNAL"
)

// ErrPatternGroups reports a value pattern without a capture group for the name.
func ErrPatternGroups(pattern string) *SlotterError {
	return NewValidationError(
		ErrCodePatternGroups,
		"value pattern has no capture group for the value name: "+pattern,
	)
}

// ErrInvalidTag reports an element tag that cannot be used for a wrapper or host.
func ErrInvalidTag(tag string) *SlotterError {
	return NewValidationError(ErrCodeInvalidTag, "invalid element tag: "+tag)
}

// ErrComponentNotFound creates a component not found error.
func ErrComponentNotFound(name string) *SlotterError {
	return NewValidationError(ErrCodeComponentNotFound, "component not found: "+name)
}

// ErrRenderFailed wraps a failure while rendering the named value.
func ErrRenderFailed(name string, cause error) *SlotterError {
	return NewRenderError(ErrCodeRenderFailed, "render failed for value: "+name, cause).
		WithContext("value", name)
}

// ErrInvalidOrigin creates an invalid origin security error.
func ErrInvalidOrigin(origin string) *SlotterError {
	return NewSecurityError(ErrCodeInvalidOrigin, "invalid origin: "+origin)
}
