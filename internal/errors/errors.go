// Package errors provides centralized error handling with category and
// context metadata for the storage engine.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"time"
)

// ErrorCategory represents the type of error for better categorization
type ErrorCategory string

const (
	CategoryDatabase        ErrorCategory = "database"
	CategoryFileIO          ErrorCategory = "file-io"
	CategoryValidation      ErrorCategory = "validation"
	CategoryNotFound        ErrorCategory = "not-found"
	CategoryConflict        ErrorCategory = "conflict"
	CategoryImageProcessing ErrorCategory = "image-processing"
	CategoryMaintenance     ErrorCategory = "maintenance"
	CategoryConfiguration   ErrorCategory = "configuration"
	CategoryState           ErrorCategory = "state"
	CategoryRetry           ErrorCategory = "retry"
	CategoryGeneric         ErrorCategory = "generic"
)

// ErrNotFound is the sentinel absence value surfaced at every public
// boundary when an entity or asset does not exist. Callers test it with
// errors.Is rather than inspecting messages.
var ErrNotFound = stderrors.New("not found")

// EnhancedError wraps an error with additional context and metadata
type EnhancedError struct {
	Err       error          // Original error
	Component string         // Component where the error occurred
	Category  ErrorCategory  // Error category for better grouping
	Context   map[string]any // Additional context data
	Timestamp time.Time      // When the error occurred
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	if ee.Component != "" {
		return fmt.Sprintf("%s: %s", ee.Component, ee.Err.Error())
	}
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is implements error type checking. Two enhanced errors match when their
// categories match; otherwise matching falls through to the wrapped error.
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return stderrors.Is(ee.Err, target)
}

// GetCategory returns the error category
func (ee *EnhancedError) GetCategory() ErrorCategory {
	return ee.Category
}

// GetContext returns a copy of the error context to prevent external
// modification.
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.Context == nil {
		return nil
	}
	contextCopy := make(map[string]any, len(ee.Context))
	maps.Copy(contextCopy, ee.Context)
	return contextCopy
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New creates a new error builder wrapping err
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf creates a new formatted error builder
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component where the error occurred
func (b *ErrorBuilder) Component(component string) *ErrorBuilder {
	b.component = component
	return b
}

// Category sets the error category
func (b *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	b.category = category
	return b
}

// Context adds a key-value pair to the error context
func (b *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if b.context == nil {
		b.context = make(map[string]any)
	}
	b.context[key] = value
	return b
}

// Build creates the final enhanced error
func (b *ErrorBuilder) Build() *EnhancedError {
	category := b.category
	if category == "" {
		category = CategoryGeneric
	}
	return &EnhancedError{
		Err:       b.err,
		Component: b.component,
		Category:  category,
		Context:   b.context,
		Timestamp: time.Now(),
	}
}

// NotFound builds an enhanced not-found error for the given entity kind and id.
func NotFound(component, kind string, id any) *EnhancedError {
	return New(fmt.Errorf("%s %v: %w", kind, id, ErrNotFound)).
		Component(component).
		Category(CategoryNotFound).
		Context("kind", kind).
		Context("id", id).
		Build()
}

// IsNotFound reports whether err represents an absence, at any wrap depth.
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}

// IsConflict reports whether err is an integrity violation (uniqueness or
// check constraint) that should surface as a user-facing naming conflict.
func IsConflict(err error) bool {
	var ee *EnhancedError
	if stderrors.As(err, &ee) {
		return ee.Category == CategoryConflict
	}
	return false
}

// Standard library passthroughs so callers only import this package.

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Join returns an error that wraps the given errors
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
