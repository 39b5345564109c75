// Package errors - delivery of built errors to the error tracker
package errors

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter receives built errors for delivery to an external
// error tracker.
type TelemetryReporter interface {
	ReportError(ee *EnhancedError)
	IsEnabled() bool
}

// reportingActive caches whether any reporter or hook is registered, so
// Build can skip stack inspection when nobody is listening.
var reportingActive atomic.Bool

var activeReporter TelemetryReporter

// SetTelemetryReporter installs the reporter that receives built errors.
// Passing nil turns reporting off.
func SetTelemetryReporter(reporter TelemetryReporter) {
	activeReporter = reporter
	updateActiveReporting()
}

// updateActiveReporting recomputes the fast-path flag after a reporter
// or hook registration change.
func updateActiveReporting() {
	enabled := hasHooks()
	if activeReporter != nil && activeReporter.IsEnabled() {
		enabled = true
	}
	reportingActive.Store(enabled)
}

// reportToTelemetry hands a freshly built error to the active reporter.
func reportToTelemetry(ee *EnhancedError) {
	if activeReporter != nil && activeReporter.IsEnabled() {
		activeReporter.ReportError(ee)
	}
}

// SentryReporter forwards enhanced errors to Sentry, scrubbing message
// text and context values before they leave the process.
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a Sentry-backed reporter.
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// IsEnabled reports whether events will actually be sent.
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError sends one event per built error. Errors already marked as
// reported are skipped, so re-wrapping does not produce duplicates.
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}

	component := ee.GetComponent()
	title := errorTitle(ee, component)
	message := scrub(fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error()))
	level := categoryLevel(ee.Category)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_title", title)
		scope.SetTag("component", component)
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("error_type", fmt.Sprintf("%T", ee.Err))
		scope.SetLevel(level)
		// Group by what failed and where, not by message text.
		scope.SetFingerprint([]string{title, component, string(ee.Category)})

		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = scrub(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}

		event := sentry.NewEvent()
		event.Message = message
		event.Level = level
		// The exception type is what Sentry shows as the issue title.
		event.Exception = []sentry.Exception{{Type: title, Value: message}}
		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

// categoryTitles maps categories to the human readable form used in
// issue titles.
var categoryTitles = map[ErrorCategory]string{
	CategoryValidation:       "Validation Error",
	CategoryNetwork:          "Network Error",
	CategoryDatabase:         "Database Error",
	CategoryFileIO:           "File I/O Error",
	CategoryConfiguration:    "Configuration Error",
	CategorySystem:           "System Error",
	CategoryVisitAggregation: "Visit Aggregation Error",
	CategoryReportGeneration: "Report Generation Error",
}

// errorTitle builds the issue title from component, category and the
// operation context, e.g. "Datastore Database Error Fetch Recordings".
func errorTitle(ee *EnhancedError, component string) string {
	var parts []string
	if component != "" && component != ComponentUnknown {
		parts = append(parts, capitalize(component))
	}
	if title, ok := categoryTitles[ee.Category]; ok {
		parts = append(parts, title)
	} else if ee.Category != "" {
		parts = append(parts, string(ee.Category))
	}
	if operation, ok := ee.GetContext()["operation"].(string); ok {
		if words := titleWords(operation); words != "" {
			parts = append(parts, words)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%T", ee.Err)
	}
	return strings.Join(parts, " ")
}

// titleWords turns an operation name like "fetch_recordings" into
// "Fetch Recordings".
func titleWords(operation string) string {
	operation = strings.NewReplacer("_", " ", "-", " ").Replace(operation)
	words := strings.Fields(operation)
	for i, word := range words {
		words[i] = capitalize(word)
	}
	return strings.Join(words, " ")
}

// capitalize upper-cases the first rune. strings.Title is deprecated and
// overkill for single words.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// categoryLevel maps failure modes to Sentry severity. Transient
// conditions report as warnings, data and environment problems as
// errors.
func categoryLevel(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryNetwork, CategoryFileIO, CategoryHTTP:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

// PrivacyScrubber removes sensitive detail from outgoing message text.
type PrivacyScrubber func(string) string

var privacyScrubber PrivacyScrubber

// SetPrivacyScrubber installs the scrubber applied to outgoing messages.
// The telemetry package installs the full one during init; without it a
// basic pattern scrub still runs.
func SetPrivacyScrubber(scrubber PrivacyScrubber) {
	privacyScrubber = scrubber
}

func scrub(message string) string {
	if privacyScrubber != nil {
		return privacyScrubber(message)
	}
	return basicURLScrub(message)
}

// Fallback scrub patterns, applied when no full scrubber is installed.
var (
	urlQueryRegex   = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	queryParamRegex = regexp.MustCompile(`[?&]([^=\s]+)=([^&\s]+)`)

	credentialRegexes = []*regexp.Regexp{
		regexp.MustCompile(`api[_-]?key[=:]\S+`),
		regexp.MustCompile(`token[=:]\S+`),
		regexp.MustCompile(`auth[=:]\S+`),
		regexp.MustCompile(`key[=:][0-9a-fA-F]{8,}`),
		regexp.MustCompile(`[0-9a-fA-F]{32,}`), // long hex runs are likely keys
	}

	identifierRegexes = []*regexp.Regexp{
		regexp.MustCompile(`device[_-]?id[=:]\S+`),
		regexp.MustCompile(`user[_-]?id[=:]\S+`),
		regexp.MustCompile(`group[_-]?id[=:]\S+`),
		regexp.MustCompile(`client[_-]?id[=:]\S+`),
	}
)

// basicURLScrub strips query strings, credential-shaped tokens and
// device or account identifiers from a message.
func basicURLScrub(message string) string {
	scrubbed := urlQueryRegex.ReplaceAllString(message, "$1?[REDACTED]")
	scrubbed = queryParamRegex.ReplaceAllString(scrubbed, "?[REDACTED]")
	for _, re := range credentialRegexes {
		scrubbed = re.ReplaceAllString(scrubbed, "[API_KEY_REDACTED]")
	}
	for _, re := range identifierRegexes {
		scrubbed = re.ReplaceAllString(scrubbed, "[ID_REDACTED]")
	}
	return scrubbed
}
