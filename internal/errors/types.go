// Package errors provides the structured error type used across ni.
//
// Boot failures, route registration mistakes and configuration problems are
// all reported as *NiError values carrying a type, a stable code and the
// underlying cause, so callers can branch with errors.As / errors.Is
// without parsing messages.
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
	ErrorTypeBoot         ErrorType = "boot"
	ErrorTypeRegistration ErrorType = "registration"
	ErrorTypeConfig       ErrorType = "config"
	ErrorTypeIO           ErrorType = "io"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeInternal     ErrorType = "internal"
)

// NiError is a structured error type with context.
type NiError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Context map[string]interface{}
	// Kind is the artifact collection involved, if any
	Kind string
	// Path is the file or URL path involved, if any
	Path string
}

// Error implements the error interface.
func (e *NiError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Kind != "" {
		parts = append(parts, "kind:"+e.Kind)
	}

	if e.Path != "" {
		parts = append(parts, e.Path)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *NiError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison on type and code.
func (e *NiError) Is(target error) bool {
	var t *NiError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *NiError) WithContext(key string, value interface{}) *NiError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPath records the file or URL path involved.
func (e *NiError) WithPath(path string) *NiError {
	e.Path = path

	return e
}

// WithKind records the artifact collection involved.
func (e *NiError) WithKind(kind string) *NiError {
	e.Kind = kind

	return e
}

// Error creation functions

// NewBootError creates a fatal boot error.
func NewBootError(code, message string, cause error) *NiError {
	return &NiError{
		Type:    ErrorTypeBoot,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewRegistrationError creates a route registration error.
func NewRegistrationError(code, message string) *NiError {
	return &NiError{
		Type:    ErrorTypeRegistration,
		Code:    code,
		Message: message,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *NiError {
	return &NiError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *NiError {
	return &NiError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *NiError {
	return &NiError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsBootError checks if an error happened while booting.
func IsBootError(err error) bool {
	return hasType(err, ErrorTypeBoot)
}

// IsRegistrationError checks if an error comes from route registration.
func IsRegistrationError(err error) bool {
	return hasType(err, ErrorTypeRegistration)
}

// IsConfigError checks if an error is configuration-related.
func IsConfigError(err error) bool {
	return hasType(err, ErrorTypeConfig)
}

func hasType(err error, t ErrorType) bool {
	var ne *NiError
	if errors.As(err, &ne) {
		return ne.Type == t
	}

	return false
}

// ErrorHandler provides centralized error reporting for the outer layers
// (CLI and transport). Core packages return errors and never log them.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs an error with fields taken from its structure.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var ne *NiError
	if !errors.As(err, &ne) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	fields := []interface{}{"type", string(ne.Type), "code", ne.Code}
	if ne.Kind != "" {
		fields = append(fields, "kind", ne.Kind)
	}
	if ne.Path != "" {
		fields = append(fields, "path", ne.Path)
	}

	switch ne.Type {
	case ErrorTypeValidation:
		h.logger.Warn(ctx, err, "Validation error occurred", fields...)
	case ErrorTypeBoot:
		h.logger.Error(ctx, err, "Boot failed", fields...)
	default:
		h.logger.Error(ctx, err, "Error occurred", fields...)
	}
}

// Common error codes.
const (
	ErrCodeRootNotSet       = "ERR_ROOT_NOT_SET"
	ErrCodeAlreadyBooted    = "ERR_ALREADY_BOOTED"
	ErrCodeModuleNotFound   = "ERR_MODULE_NOT_FOUND"
	ErrCodeModuleLoad       = "ERR_MODULE_LOAD"
	ErrCodeNotController    = "ERR_NOT_CONTROLLER"
	ErrCodeTemplateRead     = "ERR_TEMPLATE_READ"
	ErrCodeMissingDest      = "ERR_MISSING_DESTINATION"
	ErrCodeBadMatcher       = "ERR_BAD_MATCHER"
	ErrCodeTableFrozen      = "ERR_TABLE_FROZEN"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeValidationFailed = "ERR_VALIDATION_FAILED"
	ErrCodeTemplateNotFound = "ERR_TEMPLATE_NOT_FOUND"
	ErrCodeTemplateCompile  = "ERR_TEMPLATE_COMPILE"
	ErrCodeInternalError    = "ERR_INTERNAL"
)

// FieldValidationError reports one invalid configuration field.
type FieldValidationError struct {
	FieldName    string
	FieldValue   interface{}
	ErrorMessage string
}

// Error implements the error interface.
func (fve *FieldValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", fve.FieldName, fve.ErrorMessage)
}

// ValidationErrorCollection represents a collection of validation errors.
type ValidationErrorCollection struct {
	Errors []*FieldValidationError
}

// Error implements the error interface.
func (vec *ValidationErrorCollection) Error() string {
	if len(vec.Errors) == 0 {
		return "no validation errors"
	}
	if len(vec.Errors) == 1 {
		return vec.Errors[0].Error()
	}

	return fmt.Sprintf("validation failed with %d errors", len(vec.Errors))
}

// AddField adds a field validation error to the collection.
func (vec *ValidationErrorCollection) AddField(field string, value interface{}, message string) {
	vec.Errors = append(vec.Errors, &FieldValidationError{
		FieldName:    field,
		FieldValue:   value,
		ErrorMessage: message,
	})
}

// HasErrors returns true if there are any validation errors.
func (vec *ValidationErrorCollection) HasErrors() bool {
	return len(vec.Errors) > 0
}

// ToNiError converts the validation collection to a NiError, or nil when
// the collection is empty.
func (vec *ValidationErrorCollection) ToNiError() *NiError {
	if !vec.HasErrors() {
		return nil
	}

	messages := make([]string, 0, len(vec.Errors))
	ctx := make(map[string]interface{}, len(vec.Errors))
	for _, err := range vec.Errors {
		messages = append(messages, err.Error())
		ctx[err.FieldName] = err.FieldValue
	}

	return &NiError{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeValidationFailed,
		Message: strings.Join(messages, "; "),
		Context: ctx,
	}
}

// Helper functions for common errors

// ErrModuleNotFound reports a code file with no compiled module behind it.
func ErrModuleNotFound(kind, name, path string) *NiError {
	return NewBootError(
		ErrCodeModuleNotFound,
		"no compiled module registered for "+name+
			"; the binary's main package must import the package that registers it",
		nil,
	).WithKind(kind).WithPath(path)
}

// ErrModuleLoad wraps a failing module factory.
func ErrModuleLoad(kind, name, path string, cause error) *NiError {
	return NewBootError(ErrCodeModuleLoad, "loading module "+name, cause).
		WithKind(kind).
		WithPath(path)
}

// ErrTemplateRead wraps a failing template read.
func ErrTemplateRead(path string, cause error) *NiError {
	return NewBootError(ErrCodeTemplateRead, "reading template", cause).
		WithKind("views").
		WithPath(path)
}

// ErrMissingDestination reports a non-predicate route without destination.
func ErrMissingDestination(matcher string) *NiError {
	return NewRegistrationError(
		ErrCodeMissingDest,
		"route "+matcher+" needs a destination unless its matcher is a predicate",
	)
}
