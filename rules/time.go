//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// LayoutConstants flags magic layout strings that have named constants
// since Go 1.20. The report date and clock columns use these layouts, so
// the named forms keep call sites searchable.
//
//	t.Format("2006-01-02")      ->  t.Format(time.DateOnly)
//	t.Format("15:04:05")        ->  t.Format(time.TimeOnly)
//	time.Parse("2006-01-02", s) ->  time.Parse(time.DateOnly, s)
func LayoutConstants(m dsl.Matcher) {
	m.Match(`$t.Format("2006-01-02")`).
		Report("use time.DateOnly instead of the literal layout (Go 1.20+)").
		Suggest(`$t.Format(time.DateOnly)`)

	m.Match(`time.Parse("2006-01-02", $s)`).
		Report("use time.DateOnly instead of the literal layout (Go 1.20+)").
		Suggest(`time.Parse(time.DateOnly, $s)`)

	m.Match(`$t.Format("15:04:05")`).
		Report("use time.TimeOnly instead of the literal layout (Go 1.20+)").
		Suggest(`$t.Format(time.TimeOnly)`)

	m.Match(`time.Parse("15:04:05", $s)`).
		Report("use time.TimeOnly instead of the literal layout (Go 1.20+)").
		Suggest(`time.Parse(time.TimeOnly, $s)`)

	m.Match(`$t.Format("2006-01-02 15:04:05")`).
		Report("use time.DateTime instead of the literal layout (Go 1.20+)").
		Suggest(`$t.Format(time.DateTime)`)

	m.Match(`time.Parse("2006-01-02 15:04:05", $s)`).
		Report("use time.DateTime instead of the literal layout (Go 1.20+)").
		Suggest(`time.Parse(time.DateTime, $s)`)
}

// SinceUntil flags manual arithmetic against time.Now that the time package
// already names.
func SinceUntil(m dsl.Matcher) {
	m.Match(`time.Now().Sub($x)`).
		Report("use time.Since($x)").
		Suggest(`time.Since($x)`)

	m.Match(`$x.Sub(time.Now())`).
		Report("use time.Until($x)").
		Suggest(`time.Until($x)`)
}

// DeferredSince flags time.Since evaluated at defer time rather than at
// function exit, which always measures roughly zero. The query timing
// helpers wrap the call in a closure for this reason.
//
//	defer log.Println(time.Since(start))            // measures nothing
//	defer func() { log.Println(time.Since(start)) }()
func DeferredSince(m dsl.Matcher) {
	m.Match(`defer $fn(time.Since($t))`).
		Report("time.Since($t) runs when the defer is queued, not at exit; wrap the call in a closure")

	m.Match(`defer $fn(time.Since($t), $*_)`).
		Report("time.Since($t) runs when the defer is queued, not at exit; wrap the call in a closure")

	m.Match(`defer $fn($*_, time.Since($t))`).
		Report("time.Since($t) runs when the defer is queued, not at exit; wrap the call in a closure")
}
