package errors

import (
	"fmt"
	"testing"
)

func TestBuildWithoutReportingSkipsAttribution(t *testing.T) {
	SetTelemetryReporter(nil)
	ClearErrorHooks()

	// With reporting inactive Build must not walk the call stack, so
	// component and category stay at their unclassified defaults.
	ee := New(NewStd("scan failed")).Build()

	if ee.Err.Error() != "scan failed" {
		t.Errorf("message = %q, want scan failed", ee.Err.Error())
	}
	if ee.GetComponent() != ComponentUnknown {
		t.Errorf("component = %q, want %q", ee.GetComponent(), ComponentUnknown)
	}
	if ee.Category != CategoryGeneric {
		t.Errorf("category = %q, want %q", ee.Category, CategoryGeneric)
	}
}

func TestBuilderSetsMetadata(t *testing.T) {
	SetTelemetryReporter(nil)
	ClearErrorHooks()

	ee := Newf("device %d has no recordings", 42).
		Component("visits").
		Category(CategoryVisitAggregation).
		Priority(PriorityHigh).
		Context("device_id", 42).
		Build()

	if ee.GetComponent() != "visits" {
		t.Errorf("component = %q, want visits", ee.GetComponent())
	}
	if ee.Category != CategoryVisitAggregation {
		t.Errorf("category = %q, want %q", ee.Category, CategoryVisitAggregation)
	}
	if ee.GetPriority() != PriorityHigh {
		t.Errorf("priority = %q, want high", ee.GetPriority())
	}
	if got := ee.GetContext()["device_id"]; got != 42 {
		t.Errorf("context device_id = %v, want 42", got)
	}
}

func TestInvalidPriorityFallsBackToMedium(t *testing.T) {
	ee := Newf("boom").Priority("urgent").Build()
	if ee.GetPriority() != PriorityMedium {
		t.Errorf("priority = %q, want medium fallback", ee.GetPriority())
	}
}

func TestIsCategoryAndUnwrap(t *testing.T) {
	base := NewStd("row not found")
	ee := New(base).Category(CategoryNotFound).Build()

	if !IsNotFound(ee) {
		t.Error("IsNotFound should report true for CategoryNotFound errors")
	}
	if IsCategory(ee, CategoryDatabase) {
		t.Error("IsCategory should not match a different category")
	}
	if !Is(ee, base) {
		t.Error("enhanced error should unwrap to its base error")
	}

	wrapped := fmt.Errorf("outer: %w", ee)
	if !IsNotFound(wrapped) {
		t.Error("IsNotFound should see through fmt.Errorf wrapping")
	}
}

func TestErrorHooksObserveBuiltErrors(t *testing.T) {
	SetTelemetryReporter(nil)
	ClearErrorHooks()
	t.Cleanup(ClearErrorHooks)

	var seen []*EnhancedError
	AddErrorHook(func(ee *EnhancedError) {
		seen = append(seen, ee)
	})

	Newf("first").Component("datastore").Category(CategoryDatabase).Build()
	Newf("second").Component("report").Category(CategoryReportGeneration).Build()

	if len(seen) != 2 {
		t.Fatalf("hook observed %d errors, want 2", len(seen))
	}
	if seen[0].GetComponent() != "datastore" || seen[1].GetComponent() != "report" {
		t.Errorf("hook saw components %q and %q", seen[0].GetComponent(), seen[1].GetComponent())
	}
}

func TestDetectCategoryHeuristics(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		component string
		want      ErrorCategory
	}{
		{"sql error", NewStd("sql: no rows in result set"), "", CategoryDatabase},
		{"file error", NewStd("failed to open config"), "", CategoryFileIO},
		{"validation error", NewStd("invalid offset"), "", CategoryValidation},
		{"visit error", NewStd("visit stitching failed"), "", CategoryVisitAggregation},
		{"component fallback", NewStd("boom"), "datastore", CategoryDatabase},
		{"unknown", NewStd("boom"), "", CategoryGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectCategory(tt.err, tt.component); got != tt.want {
				t.Errorf("detectCategory() = %q, want %q", got, tt.want)
			}
		})
	}
}

// basicURLScrub is the fallback when no PrivacyScrubber hook is
// installed, so it has to hold the no-identifiers line on its own.
func TestBasicURLScrubRedactsSensitiveText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "url query string",
			in:   "fetch failed at https://api.example.com?api_key=secret123&token=abc",
			want: "fetch failed at https://api.example.com?[REDACTED]",
		},
		{
			name: "bare credential",
			in:   "config rejected: api_key=secret123 is invalid",
			want: "config rejected: [API_KEY_REDACTED] is invalid",
		},
		{
			name: "device and user identifiers",
			in:   "fetch failed for device_id=1337 requested by user_id=7",
			want: "fetch failed for [ID_REDACTED] requested by [ID_REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := basicURLScrub(tt.in); got != tt.want {
				t.Errorf("basicURLScrub(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
