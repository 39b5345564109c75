//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// BenchmarkLoop flags b.N iteration, replaced by b.Loop in Go 1.24. The
// benchmarks in this repo use b.Loop: per-iteration setup stays out of the
// measurement and the compiler cannot elide the body.
//
//	for i := 0; i < b.N; i++ { ... }  ->  for b.Loop() { ... }
func BenchmarkLoop(m dsl.Matcher) {
	// No Suggest: the loop variable may be used in the body.
	m.Match(`for $i := 0; $i < $b.N; $i++ { $*body }`).
		Where(m["b"].Type.Is(`*testing.B`)).
		Report("use for $b.Loop() instead of iterating to $b.N (Go 1.24+)")

	m.Match(`for range $b.N { $*body }`).
		Where(m["b"].Type.Is(`*testing.B`)).
		Report("use for $b.Loop() instead of ranging over $b.N (Go 1.24+)")
}

// TestContext flags context.Background in tests. t.Context is canceled
// when the test finishes, so goroutines holding it shut down instead of
// leaking into later tests (Go 1.24+). Container lifecycles that must
// outlive t.Cleanup are the one place Background stays.
func TestContext(m dsl.Matcher) {
	m.Match(
		`$ctx := context.Background()`,
		`$ctx = context.Background()`,
		`$ctx := context.TODO()`,
		`$ctx = context.TODO()`,
	).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("prefer t.Context() in tests; it is canceled when the test ends (Go 1.24+)")
}
