// Package errors provides shared error types for Wikipedia lookups.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// NotFoundError indicates a page does not exist in a language edition.
type NotFoundError struct {
	Language string // "en", "es", ...
	Title    string // title as requested by the caller
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Page '%s' does not exist", e.Title)
}

// NewNotFoundError creates a NotFoundError for a page lookup.
func NewNotFoundError(language, title string) *NotFoundError {
	return &NotFoundError{
		Language: language,
		Title:    title,
	}
}

// AmbiguousError indicates the title resolved to a disambiguation page.
type AmbiguousError struct {
	Language string
	Title    string
	Options  []string // candidate pages listed on the disambiguation page
}

func (e *AmbiguousError) Error() string {
	if len(e.Options) == 0 {
		return fmt.Sprintf("'%s' is a disambiguation page", e.Title)
	}
	opts := e.Options
	if len(opts) > 5 {
		opts = opts[:5]
	}
	return fmt.Sprintf("'%s' is a disambiguation page, try one of: %s", e.Title, strings.Join(opts, ", "))
}

// NewAmbiguousError creates an AmbiguousError.
func NewAmbiguousError(language, title string, options []string) *AmbiguousError {
	return &AmbiguousError{
		Language: language,
		Title:    title,
		Options:  options,
	}
}

// ValidationError indicates invalid input parameters.
type ValidationError struct {
	Field   string // field name that failed validation
	Value   string // the invalid value
	Message string // human-readable error message
}

func (e *ValidationError) Error() string {
	if e.Field != "" && e.Value != "" {
		return fmt.Sprintf("validation failed for %s=%q: %s", e.Field, e.Value, e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, value, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// APIError is an error payload returned by the MediaWiki API itself.
type APIError struct {
	Code string // e.g. "invalidtitle", "maxlag"
	Info string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wikipedia API error (%s): %s", e.Code, e.Info)
}

// IsNotFound returns true if err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return stderrors.As(err, &target)
}

// IsAmbiguous returns true if err is or wraps an AmbiguousError.
func IsAmbiguous(err error) bool {
	var target *AmbiguousError
	return stderrors.As(err, &target)
}

// IsValidation returns true if err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return stderrors.As(err, &target)
}

// Code returns a short label for err, used as a metrics dimension.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case IsNotFound(err):
		return "not_found"
	case IsAmbiguous(err):
		return "ambiguous"
	case IsValidation(err):
		return "validation"
	case stderrors.As(err, new(*APIError)):
		return "api"
	default:
		return "transport"
	}
}
