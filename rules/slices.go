//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// SortSlices flags sort package calls that the generic slices package
// replaces without the reflection overhead (Go 1.21+).
//
//	sort.Ints(xs)                                   ->  slices.Sort(xs)
//	sort.Slice(xs, func(i, j int) bool {
//	    return xs[i] < xs[j]
//	})                                              ->  slices.Sort(xs)
func SortSlices(m dsl.Matcher) {
	m.Match(`sort.Ints($s)`).
		Report("use slices.Sort($s) instead of sort.Ints (Go 1.21+)").
		Suggest(`slices.Sort($s)`)

	m.Match(`sort.Strings($s)`).
		Report("use slices.Sort($s) instead of sort.Strings (Go 1.21+)").
		Suggest(`slices.Sort($s)`)

	m.Match(`sort.Float64s($s)`).
		Report("use slices.Sort($s) instead of sort.Float64s (Go 1.21+)").
		Suggest(`slices.Sort($s)`)

	m.Match(`sort.Slice($s, func($i, $j int) bool { return $s[$i] < $s[$j] })`).
		Report("use slices.Sort($s) instead of sort.Slice with a natural-order comparator (Go 1.21+)").
		Suggest(`slices.Sort($s)`)
}

// SortedMapKeys flags the collect-keys-then-sort loop that the maps and
// slices iterator APIs reduce to one expression (Go 1.23+).
//
//	ids := make([]uint, 0, len(set))
//	for id := range set {
//	    ids = append(ids, id)
//	}
//	slices.Sort(ids)
//
// becomes
//
//	ids := slices.Sorted(maps.Keys(set))
func SortedMapKeys(m dsl.Matcher) {
	m.Match(`for $k := range $m { $ks = append($ks, $k) }`).
		Where(m["m"].Type.Underlying().Is(`map[$_]$_`)).
		Report("collect map keys with slices.Collect(maps.Keys($m)), or slices.Sorted to collect and sort (Go 1.23+)")
}

// CloneLoop flags manual slice copy idioms that slices.Clone names
// directly (Go 1.21+).
func CloneLoop(m dsl.Matcher) {
	m.Match(`append([]$t{}, $s...)`).
		Report("use slices.Clone($s) instead of append to an empty literal (Go 1.21+)").
		Suggest(`slices.Clone($s)`)

	m.Match(`append($s[:0:0], $s...)`).
		Report("use slices.Clone($s) instead of the three-index append trick (Go 1.21+)").
		Suggest(`slices.Clone($s)`)
}
