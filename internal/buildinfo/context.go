// Package buildinfo carries the metadata injected through ldflags at
// build time, kept apart from user configuration.
package buildinfo

// UnknownValue stands in for build metadata the build did not inject.
const UnknownValue = "unknown"

// Context is the injected build metadata.
type Context struct {
	Version   string // git tag or commit
	BuildDate string
	SystemID  string // anonymous identifier used by telemetry
}

// NewContext wraps the raw ldflags values.
func NewContext(version, buildDate, systemID string) *Context {
	return &Context{
		Version:   version,
		BuildDate: buildDate,
		SystemID:  systemID,
	}
}

// The getters tolerate a nil receiver and missing values, so startup
// never has to care whether the binary was built with ldflags set.

func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

func (c *Context) GetSystemID() string {
	if c == nil || c.SystemID == "" {
		return UnknownValue
	}
	return c.SystemID
}
