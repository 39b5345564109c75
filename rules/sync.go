//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo flags the manual Add/Done dance that sync.WaitGroup.Go
// replaces in Go 1.25. The method pairs the increment with the goroutine,
// so a forgotten Done can no longer hang Wait.
//
//	wg.Add(1)
//	go func() {
//	    defer wg.Done()
//	    work()
//	}()
//
// becomes
//
//	wg.Go(work)
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`).
		Where(m["wg"].Type.Is(`*sync.WaitGroup`) || m["wg"].Type.Is(`sync.WaitGroup`)).
		Report("use $wg.Go(func() { $body }) instead of pairing Add(1) with a deferred Done (Go 1.25+)").
		Suggest(`$wg.Go(func() { $body })`)

	m.Match(`$wg.Add(1); go func($p $t) { defer $p.Done(); $*body }($wg)`).
		Where(m["wg"].Type.Is(`*sync.WaitGroup`) || m["wg"].Type.Is(`sync.WaitGroup`)).
		Report("use $wg.Go(func() { $body }) instead of pairing Add(1) with a deferred Done (Go 1.25+)")
}
