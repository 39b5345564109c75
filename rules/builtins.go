//go:build ruleguard

// Package gorules holds the ruleguard lint rules for this repo. Each rule
// flags a pattern that a builtin or stdlib addition has since replaced;
// run them with ruleguard's -rules flag or through golangci-lint.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// MinMaxBuiltin flags math.Min/math.Max forced through float64 for integer
// arguments. The min and max builtins work on any ordered type (Go 1.21+).
func MinMaxBuiltin(m dsl.Matcher) {
	m.Match(
		`int(math.Min(float64($a), float64($b)))`,
		`int64(math.Min(float64($a), float64($b)))`,
		`int32(math.Min(float64($a), float64($b)))`,
	).
		Report("use the min builtin instead of converting through float64 (Go 1.21+)").
		Suggest(`min($a, $b)`)

	m.Match(
		`int(math.Max(float64($a), float64($b)))`,
		`int64(math.Max(float64($a), float64($b)))`,
		`int32(math.Max(float64($a), float64($b)))`,
	).
		Report("use the max builtin instead of converting through float64 (Go 1.21+)").
		Suggest(`max($a, $b)`)
}

// ClearBuiltin flags delete-in-range loops. clear empties the map in one
// call and also resets slice elements (Go 1.21+).
func ClearBuiltin(m dsl.Matcher) {
	m.Match(
		`for $k := range $m { delete($m, $k) }`,
		`for $k, _ := range $m { delete($m, $k) }`,
	).
		Report("use clear($m) instead of deleting keys in a loop (Go 1.21+)").
		Suggest(`clear($m)`)
}

// RangeOverInteger flags counting loops from zero that range-over-int
// expresses directly (Go 1.22+). Benchmark b.N loops are excluded; those
// belong to the BenchmarkLoop rule.
func RangeOverInteger(m dsl.Matcher) {
	m.Match(`for $i := 0; $i < $n; $i++ { $*body }`).
		Where(!m["n"].Text.Matches(`.*\.N$`)).
		Report("use for $i := range $n (Go 1.22+)").
		Suggest(`for $i := range $n { $body }`)
}

// AppendWithoutValues flags append calls that append nothing.
func AppendWithoutValues(m dsl.Matcher) {
	m.Match(`append($s)`).
		Report("append with no values has no effect; did you forget the values?")
}
