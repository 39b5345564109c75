//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// HostPortFormat flags fmt.Sprintf used to build host:port addresses.
// net.JoinHostPort brackets IPv6 hosts; Sprintf produces addresses that
// fail to dial the moment a device reports an IPv6 address.
//
// Only integer ports are flagged. "%s:%s" formatting is too common for
// cache keys and identifiers to report safely.
func HostPortFormat(m dsl.Matcher) {
	m.Match(
		`fmt.Sprintf("%s:%d", $host, $port)`,
		`fmt.Sprintf("%v:%d", $host, $port)`,
	).
		Report("use net.JoinHostPort($host, strconv.Itoa($port)); Sprintf breaks on IPv6 hosts")
}

// UseBeforeErrorCheck flags file handles used before the open error is
// checked. The handle is nil on error, and since Go 1.25 the compiler no
// longer reorders the nil check in a way that happened to hide the panic.
//
//	f, err := os.Open(path)
//	n := f.Name()          // panics when err != nil
//	if err != nil { ... }
func UseBeforeErrorCheck(m dsl.Matcher) {
	m.Match(
		`$f, $err := os.Open($path); $_ := $f.$method($*_); if $err != nil { $*_ }`,
		`$f, $err := os.Create($path); $_ := $f.$method($*_); if $err != nil { $*_ }`,
		`$f, $err := os.OpenFile($*_); $_ := $f.$method($*_); if $err != nil { $*_ }`,
	).
		Report("$f is nil when $err != nil; check the error before calling $f.$method")
}
