// Package errors - component and category detection for unlabelled errors
package errors

import (
	"runtime"
	"strings"
)

// componentNames maps source package names to the component tag used in
// reports. Packages not listed report under their own name, which is
// usually right anyway.
var componentNames = map[string]string{
	"datastore":     "datastore",
	"visits":        "visits",
	"report":        "report",
	"conf":          "configuration",
	"secrets":       "configuration",
	"telemetry":     "telemetry",
	"privacy":       "telemetry",
	"logging":       "logging",
	"observability": "observability",
	"metrics":       "observability",
	"api":           "api",
	"cmd":           "cli",
	"query":         "cli",
	"server":        "cli",
}

// callerComponent walks the stack for the nearest frame outside this
// package and maps its package name to a component tag.
func callerComponent() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs) // skip runtime.Callers and callerComponent
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if fn := frame.Function; fn != "" && !strings.Contains(fn, "/internal/errors.") {
			if pkg := packageName(fn); pkg != "" {
				if component, ok := componentNames[pkg]; ok {
					return component
				}
				return pkg
			}
		}
		if !more {
			break
		}
	}
	return ComponentUnknown
}

// packageName extracts the bare package name from a fully qualified
// function name such as ".../internal/visits.(*Engine).Run".
func packageName(funcName string) string {
	if i := strings.LastIndex(funcName, "/"); i >= 0 {
		funcName = funcName[i+1:]
	}
	if i := strings.Index(funcName, "."); i > 0 {
		return funcName[:i]
	}
	return ""
}

// categoryHints pairs message substrings with the category they imply.
// Entries are checked in order, so the storage hints come before the
// looser domain ones.
var categoryHints = []struct {
	keywords []string
	category ErrorCategory
}{
	{[]string{"database", "sql", "record"}, CategoryDatabase},
	{[]string{"file", "read", "open"}, CategoryFileIO},
	{[]string{"connection", "timeout"}, CategoryNetwork},
	{[]string{"validation", "mismatch", "invalid"}, CategoryValidation},
	{[]string{"visit"}, CategoryVisitAggregation},
	{[]string{"report"}, CategoryReportGeneration},
}

// componentCategories maps a component to its usual failure mode, used
// when the message itself gives no hint.
var componentCategories = map[string]ErrorCategory{
	"datastore":     CategoryDatabase,
	"api":           CategoryHTTP,
	"visits":        CategoryVisitAggregation,
	"report":        CategoryReportGeneration,
	"configuration": CategoryConfiguration,
}

// detectCategory guesses a category for an unclassified error from its
// message text, falling back to the component it came from.
func detectCategory(err error, component string) ErrorCategory {
	var ee *EnhancedError
	if As(err, &ee) && ee.Category != "" {
		return ee.Category
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range categoryHints {
		for _, keyword := range hint.keywords {
			if strings.Contains(msg, keyword) {
				return hint.category
			}
		}
	}

	if category, ok := componentCategories[component]; ok {
		return category
	}
	return CategoryGeneric
}
