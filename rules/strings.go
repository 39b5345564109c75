//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// CutPrefixSuffix flags the HasPrefix-then-TrimPrefix pairing that
// strings.CutPrefix collapses into one call with an ok result (Go 1.20+).
//
//	if strings.HasPrefix(s, p) {
//	    s = strings.TrimPrefix(s, p)
//	    ...
//	}
//
// becomes
//
//	if rest, ok := strings.CutPrefix(s, p); ok {
//	    ...
//	}
func CutPrefixSuffix(m dsl.Matcher) {
	m.Match(`if strings.HasPrefix($s, $p) { $s = strings.TrimPrefix($s, $p); $*_ }`).
		Report("use strings.CutPrefix($s, $p) instead of HasPrefix followed by TrimPrefix (Go 1.20+)")

	m.Match(`if strings.HasPrefix($s, $p) { $v := strings.TrimPrefix($s, $p); $*_ }`).
		Report("use strings.CutPrefix($s, $p) instead of HasPrefix followed by TrimPrefix (Go 1.20+)")

	m.Match(`if strings.HasSuffix($s, $p) { $s = strings.TrimSuffix($s, $p); $*_ }`).
		Report("use strings.CutSuffix($s, $p) instead of HasSuffix followed by TrimSuffix (Go 1.20+)")

	m.Match(`if strings.HasSuffix($s, $p) { $v := strings.TrimSuffix($s, $p); $*_ }`).
		Report("use strings.CutSuffix($s, $p) instead of HasSuffix followed by TrimSuffix (Go 1.20+)")
}

// SplitIteration flags ranging over strings.Split when the slice is never
// kept. The Seq variants added in Go 1.24 skip the allocation.
func SplitIteration(m dsl.Matcher) {
	m.Match(`for $_, $part := range strings.Split($s, $sep) { $*body }`).
		Report("use strings.SplitSeq($s, $sep) to iterate without allocating the slice (Go 1.24+)")

	m.Match(`for $_, $part := range strings.Fields($s) { $*body }`).
		Report("use strings.FieldsSeq($s) to iterate without allocating the slice (Go 1.24+)")
}
