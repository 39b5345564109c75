// Package errors annotates the errors raised across the service with the
// component they came from, a coarse category and structured context, so
// telemetry and metrics can group failures without parsing message text.
// It also re-exports the standard library helpers, making it a drop-in
// replacement for the stdlib errors package.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sync/atomic"
)

// ErrorCategory groups errors by failure mode rather than call site.
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryNetwork       ErrorCategory = "network"
	CategoryDatabase      ErrorCategory = "database"
	CategoryHTTP          ErrorCategory = "http-request"
	CategoryConfiguration ErrorCategory = "configuration"
	CategorySystem        ErrorCategory = "system-resource"
	CategoryGeneric       ErrorCategory = "generic"
	CategoryNotFound      ErrorCategory = "not-found"

	// Domain specific categories
	CategoryVisitAggregation ErrorCategory = "visit-aggregation" // visit stitching and completeness tracking
	CategoryReportGeneration ErrorCategory = "report-generation" // CSV report assembly
)

// Priority values accepted by ErrorBuilder.Priority.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// ComponentUnknown is reported when no component was set and none could
// be derived from the call stack.
const ComponentUnknown = "unknown"

// EnhancedError is an error annotated with reporting metadata. Once
// built it is immutable apart from the reported flag, so it can be
// passed between goroutines without further locking.
type EnhancedError struct {
	Err      error         // wrapped error
	Category ErrorCategory // failure mode, CategoryGeneric when unclassified

	component string
	priority  string
	context   map[string]any
	reported  atomic.Bool
}

// Error implements the error interface.
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap exposes the wrapped error to the stdlib errors helpers.
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches two enhanced errors by category, and otherwise defers to
// the wrapped error chain.
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return Is(ee.Err, target)
}

// GetComponent returns the component the error was attributed to.
func (ee *EnhancedError) GetComponent() string {
	if ee.component == "" {
		return ComponentUnknown
	}
	return ee.component
}

// GetCategory returns the category as a plain string, for metric labels.
func (ee *EnhancedError) GetCategory() string {
	return string(ee.Category)
}

// GetPriority returns the explicit priority, or "" when none was set.
func (ee *EnhancedError) GetPriority() string {
	return ee.priority
}

// GetContext returns a copy of the structured context. Handing out a
// copy keeps reporters from mutating the error after the fact.
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.context == nil {
		return nil
	}
	cp := make(map[string]any, len(ee.context))
	maps.Copy(cp, ee.context)
	return cp
}

// MarkReported records that telemetry has sent this error.
func (ee *EnhancedError) MarkReported() {
	ee.reported.Store(true)
}

// IsReported reports whether telemetry has already sent this error.
func (ee *EnhancedError) IsReported() bool {
	return ee.reported.Load()
}

// ErrorBuilder assembles an EnhancedError step by step.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	priority  string
	context   map[string]any
}

// New starts building an enhanced error around err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf starts building an enhanced error from a formatted message.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component names the component the error belongs to. Left unset, it is
// derived from the call stack when reporting is active.
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category assigns the failure mode.
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Priority overrides the reporting priority. Unrecognised non-empty
// values fall back to medium rather than silently dropping the override.
func (eb *ErrorBuilder) Priority(priority string) *ErrorBuilder {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		eb.priority = priority
	case "":
	default:
		eb.priority = PriorityMedium
	}
	return eb
}

// Context attaches a key/value pair to the error.
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Build finalises the error. While no telemetry reporter or hook is
// registered this is just a struct allocation; stack inspection and
// category heuristics only run when someone is listening.
func (eb *ErrorBuilder) Build() *EnhancedError {
	ee := &EnhancedError{
		Err:       eb.err,
		Category:  eb.category,
		component: eb.component,
		priority:  eb.priority,
		context:   eb.context,
	}

	if !reportingActive.Load() {
		if ee.Category == "" {
			ee.Category = CategoryGeneric
		}
		return ee
	}

	if ee.component == "" {
		ee.component = callerComponent()
	}
	if ee.Category == "" {
		ee.Category = detectCategory(ee.Err, ee.component)
	}

	notifyHooks(ee)
	reportToTelemetry(ee)
	return ee
}

// Standard library passthroughs, so callers need only this package.

// NewStd builds a plain error from a message, like the stdlib errors.New.
func NewStd(text string) error {
	return stderrors.New(text)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree matching target's type.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap returns the result of calling Unwrap on err, if any.
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join combines multiple errors into one.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// IsCategory reports whether err carries the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	return As(err, &ee) && ee.Category == category
}

// IsNotFound reports whether err marks a missing resource. Lookups use
// it to tell expected misses apart from real failures.
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}
