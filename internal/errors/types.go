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
	ErrorTypeManifest   ErrorType = "manifest"
	ErrorTypeEntry      ErrorType = "entry"
	ErrorTypeFetch      ErrorType = "fetch"
	ErrorTypeTemplate   ErrorType = "template"
	ErrorTypeScript     ErrorType = "script"
	ErrorTypeSecurity   ErrorType = "security"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// SnippetError is a structured error type with context.
type SnippetError struct {
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
func (e *SnippetError) Error() string {
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
func (e *SnippetError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *SnippetError) Is(target error) bool {
	var t *SnippetError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *SnippetError) WithContext(key string, value interface{}) *SnippetError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPath adds the path of the file the error relates to.
func (e *SnippetError) WithPath(filePath string) *SnippetError {
	e.FilePath = filePath

	return e
}

// WithComponent adds component context.
func (e *SnippetError) WithComponent(component string) *SnippetError {
	e.Component = component

	return e
}

// Error creation functions

// NewManifestError creates an error for an unusable project manifest.
func NewManifestError(code, message string, cause error) *SnippetError {
	return &SnippetError{
		Type:        ErrorTypeManifest,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewEntryError creates an error for a single manifest entry that was skipped.
func NewEntryError(code, message string) *SnippetError {
	return &SnippetError{
		Type:        ErrorTypeEntry,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewFetchError creates an error for a failed project file fetch.
func NewFetchError(code, message string, cause error) *SnippetError {
	return &SnippetError{
		Type:        ErrorTypeFetch,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewTemplateError creates an error for a failed template fetch.
func NewTemplateError(code, message string, cause error) *SnippetError {
	return &SnippetError{
		Type:        ErrorTypeTemplate,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewScriptError creates an error for a companion script that failed to import or run.
func NewScriptError(code, message string, cause error) *SnippetError {
	return &SnippetError{
		Type:        ErrorTypeScript,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string) *SnippetError {
	return &SnippetError{
		Type:        ErrorTypeSecurity,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *SnippetError {
	return &SnippetError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// Error recovery and handling utilities

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var te *SnippetError
	if errors.As(err, &te) {
		return te.Recoverable
	}

	return false
}

// IsType reports whether err is a SnippetError of the given type.
func IsType(err error, t ErrorType) bool {
	var te *SnippetError
	if errors.As(err, &te) {
		return te.Type == t
	}

	return false
}

// IsTemplateError checks if an error came from the template loader.
func IsTemplateError(err error) bool {
	return IsType(err, ErrorTypeTemplate)
}

// IsSecurityError checks if an error is security-related.
func IsSecurityError(err error) bool {
	return IsType(err, ErrorTypeSecurity)
}

// ErrorHandler logs errors at a level matching their type.
type ErrorHandler struct {
	logger Logger
}

// Logger is the subset of logging.Logger the handler needs.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err with msg. Recoverable errors are warnings, everything else
// is an error. The type, code and file of a SnippetError are added to fields.
func (h *ErrorHandler) Handle(ctx context.Context, err error, msg string, fields ...interface{}) {
	if err == nil || h.logger == nil {
		return
	}

	var te *SnippetError
	if !errors.As(err, &te) {
		h.logger.Error(ctx, err, msg, fields...)
		return
	}

	fields = append(fields, "type", string(te.Type), "code", te.Code)
	if te.Component != "" {
		fields = append(fields, "component", te.Component)
	}
	if te.FilePath != "" {
		fields = append(fields, "file", te.FilePath)
	}

	switch {
	case te.Type == ErrorTypeSecurity:
		h.logger.Error(ctx, err, msg, append(fields, "security", true)...)
	case IsRecoverable(err):
		h.logger.Warn(ctx, err, msg, fields...)
	default:
		h.logger.Error(ctx, err, msg, fields...)
	}
}

// Common error codes.
const (
	ErrCodeManifestFetch    = "ERR_MANIFEST_FETCH"
	ErrCodeManifestParse    = "ERR_MANIFEST_PARSE"
	ErrCodeManifestEmpty    = "ERR_MANIFEST_EMPTY"
	ErrCodeMalformedName    = "ERR_MALFORMED_NAME"
	ErrCodeUnsupportedExt   = "ERR_UNSUPPORTED_EXTENSION"
	ErrCodeFileNotFound     = "ERR_FILE_NOT_FOUND"
	ErrCodeFileFetch        = "ERR_FILE_FETCH"
	ErrCodeCountMismatch    = "ERR_COUNT_MISMATCH"
	ErrCodeTemplateFetch    = "ERR_TEMPLATE_FETCH"
	ErrCodeScriptImport     = "ERR_SCRIPT_IMPORT"
	ErrCodeScriptRun        = "ERR_SCRIPT_RUN"
	ErrCodeInvalidPath      = "ERR_INVALID_PATH"
	ErrCodePathTraversal    = "ERR_PATH_TRAVERSAL"
	ErrCodeInvalidOrigin    = "ERR_INVALID_ORIGIN"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeInternalError    = "ERR_INTERNAL"
	ErrCodeValidationFailed = "ERR_VALIDATION_FAILED"
)

// FieldValidationError describes a single invalid configuration field.
type FieldValidationError struct {
	FieldName    string
	FieldValue   interface{}
	ErrorMessage string
}

// Error implements the error interface.
func (fve *FieldValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", fve.FieldName, fve.ErrorMessage)
}

// NewFieldValidationError creates a new field validation error.
func NewFieldValidationError(field string, value interface{}, message string) *FieldValidationError {
	return &FieldValidationError{
		FieldName:    field,
		FieldValue:   value,
		ErrorMessage: message,
	}
}
