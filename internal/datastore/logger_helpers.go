// Package datastore - SQL introspection for query logging and metrics
package datastore

import (
	"regexp"
	"strings"
)

// sqlUnknown labels statements whose operation or table could not be
// parsed, keeping metric label cardinality bounded.
const sqlUnknown = "unknown"

// sqlPatterns pairs each statement kind with the regex that captures the
// table it touches. Ordered by how often the store issues them.
var sqlPatterns = []struct {
	operation string
	re        *regexp.Regexp
}{
	{"select", regexp.MustCompile(`(?i)^\s*SELECT\s+.*?\s+FROM\s+['"\x60]?(\w+)['"\x60]?`)},
	{"insert", regexp.MustCompile(`(?i)^\s*INSERT\s+INTO\s+['"\x60]?(\w+)['"\x60]?`)},
	{"update", regexp.MustCompile(`(?i)^\s*UPDATE\s+['"\x60]?(\w+)['"\x60]?`)},
	{"delete", regexp.MustCompile(`(?i)^\s*DELETE\s+FROM\s+['"\x60]?(\w+)['"\x60]?`)},
	{"create", regexp.MustCompile(`(?i)^\s*CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?['"\x60]?(\w+)['"\x60]?`)},
	{"drop", regexp.MustCompile(`(?i)^\s*DROP\s+TABLE\s+(?:IF\s+EXISTS\s+)?['"\x60]?(\w+)['"\x60]?`)},
	{"alter", regexp.MustCompile(`(?i)^\s*ALTER\s+TABLE\s+['"\x60]?(\w+)['"\x60]?`)},
}

// parseSQLOperation extracts the operation kind and target table from a
// statement, for use as metric labels.
func parseSQLOperation(sql string) (operation, table string) {
	sql = strings.TrimSpace(sql)
	for _, p := range sqlPatterns {
		if m := p.re.FindStringSubmatch(sql); len(m) > 1 {
			return p.operation, m[1]
		}
	}
	return sqlUnknown, sqlUnknown
}

// errorClasses pairs driver message fragments with the label recorded
// for the failure. First match wins, so the specific constraint classes
// come before the broad connection and timeout ones.
var errorClasses = []struct {
	fragments []string
	label     string
}{
	{[]string{"unique constraint", "duplicate key"}, "constraint_violation"},
	{[]string{"deadlock"}, "deadlock"},
	{[]string{"foreign key"}, "foreign_key_violation"},
	{[]string{"not null"}, "null_violation"},
	{[]string{"database is locked"}, "database_locked"},
	{[]string{"connection"}, "connection_error"},
	{[]string{"timeout", "context deadline"}, "timeout"},
	{[]string{"context canceled"}, "cancelled"},
	{[]string{"syntax"}, "syntax_error"},
	{[]string{"permission", "denied"}, "permission_denied"},
	{[]string{"disk full", "no space"}, "disk_full"},
}

// categorizeError maps a database error onto a coarse class label. The
// MySQL and SQLite drivers word these differently, hence the fragment
// lists.
func categorizeError(err error) string {
	if err == nil {
		return "none"
	}
	msg := strings.ToLower(err.Error())
	for _, class := range errorClasses {
		for _, fragment := range class.fragments {
			if strings.Contains(msg, fragment) {
				return class.label
			}
		}
	}
	return "other"
}
