// Package datastore - shortcuts for the error shapes the store raises
package datastore

import (
	"fmt"

	"github.com/TheCacophonyProject/Full-Noise/internal/errors"
)

// dbError wraps a driver error as a datastore database error. Extra
// context comes as alternating key/value pairs; a trailing key without
// a value is dropped.
func dbError(err error, operation, priority string, kv ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	if priority != "" {
		builder = builder.Priority(priority)
	}
	for ; len(kv) >= 2; kv = kv[2:] {
		if key, ok := kv[0].(string); ok {
			builder = builder.Context(key, kv[1])
		}
	}
	return builder.Build()
}

// validationError reports a rejected input before any query runs, naming
// the offending field and the value it held.
func validationError(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", fmt.Sprintf("%v", value)).
		Build()
}
