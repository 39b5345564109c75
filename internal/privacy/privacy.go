// Package privacy scrubs sensitive values out of text destined for
// telemetry. URLs and database credentials keep their debugging shape while
// losing anything identifying.
package privacy

import (
	"crypto/sha256"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// Pre-compiled patterns, these run on every outgoing telemetry event.
var (
	// urlPattern finds URLs in free-form text.
	urlPattern = regexp.MustCompile(`\b(?:https?)://\S+`)

	// dsnCredentialPattern matches the user:password prefix of a go-sql
	// driver DSN such as "fullnoise:secret@tcp(db:3306)/fullnoise".
	dsnCredentialPattern = regexp.MustCompile(`\b([\w.-]+):([^@\s/]+)@tcp\(`)
)

// ScrubMessage removes or anonymizes sensitive information in a telemetry
// message. Database credentials are masked in place and URLs are replaced
// with anonymized stand-ins that stay stable across events.
func ScrubMessage(message string) string {
	message = SanitizeDSN(message)
	return urlPattern.ReplaceAllStringFunc(message, anonymizeURL)
}

// SanitizeDSN masks the password of any database DSN in the string, keeping
// user, host and database visible for debugging.
func SanitizeDSN(s string) string {
	return dsnCredentialPattern.ReplaceAllString(s, "$1:***@tcp(")
}

// anonymizeURL replaces a URL with a stable hash stand-in. The hash input
// keeps the URL's coarse shape (scheme, host class, port, path shape), so
// repeated events for the same endpoint collapse to the same stand-in
// while the actual host and path stay unrecoverable.
func anonymizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		// Unparseable text still gets a stable stand-in.
		sum := sha256.Sum256([]byte(rawURL))
		return fmt.Sprintf("url-hash-%x", sum[:8])
	}

	parts := make([]string, 0, 4)
	if parsed.Scheme != "" {
		parts = append(parts, parsed.Scheme)
	}
	if host := parsed.Hostname(); host != "" {
		parts = append(parts, hostClass(host))
	}
	if port := parsed.Port(); port != "" {
		parts = append(parts, "port-"+port)
	}
	if parsed.Path != "" && parsed.Path != "/" {
		parts = append(parts, pathShape(parsed.Path))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return fmt.Sprintf("url-%x", sum[:12])
}

// hostClass reduces a hostname to a coarse label: loopback, private or
// public address, or the bare TLD for domain names.
func hostClass(host string) string {
	if host == "localhost" {
		return "loopback"
	}

	if ip := net.ParseIP(host); ip != nil {
		switch {
		case ip.IsLoopback():
			return "loopback"
		case ip.IsPrivate(), ip.IsLinkLocalUnicast(), ip.IsMulticast():
			return "private-net"
		default:
			return "public"
		}
	}

	if i := strings.LastIndex(host, "."); i >= 0 && i < len(host)-1 {
		return "domain-" + host[i+1:]
	}
	return "bare-host"
}

// pathShape keeps the shape of a path while hiding its values: route
// words stay readable, IDs collapse to "digits", everything else is
// hashed per segment.
func pathShape(path string) string {
	segments := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return "root"
	}

	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch {
		case isRouteWord(seg):
			out = append(out, strings.ToLower(seg))
		case allDigits(seg):
			out = append(out, "digits")
		default:
			sum := sha256.Sum256([]byte(seg))
			out = append(out, fmt.Sprintf("seg-%x", sum[:4]))
		}
	}
	return strings.Join(out, "/")
}

// isRouteWord reports whether a path segment is one of the service's
// public route words, which carry no user data and are safe to keep
// readable.
func isRouteWord(segment string) bool {
	switch strings.ToLower(segment) {
	case "api", "v1", "visits", "recording", "recordings", "report", "healthz", "metrics":
		return true
	}
	return false
}

// allDigits reports whether s is entirely decimal digits, like a record ID.
func allDigits(s string) bool {
	return s != "" && !strings.ContainsFunc(s, func(r rune) bool { return r < '0' || r > '9' })
}
