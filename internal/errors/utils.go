package errors

import (
	"errors"
)

// Wrap wraps an error with additional context, creating a SnippetError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *SnippetError {
	if err == nil {
		return nil
	}

	// If it's already a SnippetError, preserve its properties but update the message
	var te *SnippetError
	if errors.As(err, &te) {
		return &SnippetError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       te,
			Context:     te.Context,
			Component:   te.Component,
			FilePath:    te.FilePath,
			Recoverable: te.Recoverable,
		}
	}

	return &SnippetError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeManifest || errType == ErrorTypeEntry,
	}
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, code, message string) *SnippetError {
	return Wrap(err, ErrorTypeConfig, code, message)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(err error, code, message string) *SnippetError {
	return Wrap(err, ErrorTypeInternal, code, message)
}

// GetErrorContext extracts context information from a SnippetError
func GetErrorContext(err error) map[string]interface{} {
	var te *SnippetError
	if !errors.As(err, &te) {
		return nil
	}

	ctx := make(map[string]interface{}, len(te.Context)+4)
	for k, v := range te.Context {
		ctx[k] = v
	}
	ctx["type"] = string(te.Type)
	ctx["code"] = te.Code
	if te.Component != "" {
		ctx["component"] = te.Component
	}
	if te.FilePath != "" {
		ctx["file"] = te.FilePath
	}

	return ctx
}

// CombineErrors joins the non-nil errors, returning nil when there are none
func CombineErrors(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}

	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return errors.Join(nonNil...)
	}
}
