// Package buildinfo carries build-time metadata separate from user configuration.
package buildinfo

import (
	"fmt"
	"runtime"

	"github.com/google/uuid"
)

// UnknownValue is reported for metadata missing from the build.
const UnknownValue = "unknown"

// BuildInfo gives read access to build metadata.
type BuildInfo interface {
	GetVersion() string
	GetBuildDate() string
	GetSystemID() string
}

// Context holds the metadata injected at startup via ldflags.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string

	// SystemID identifies this process in error reports
	SystemID string
}

// NewContext returns build metadata. An empty systemID gets a random one.
func NewContext(version, buildDate, systemID string) *Context {
	if systemID == "" {
		systemID = uuid.NewString()
	}
	return &Context{
		Version:   version,
		BuildDate: buildDate,
		SystemID:  systemID,
	}
}

func valueOr(v string) string {
	if v == "" {
		return UnknownValue
	}
	return v
}

// GetVersion implements BuildInfo.
func (c *Context) GetVersion() string {
	if c == nil {
		return UnknownValue
	}
	return valueOr(c.Version)
}

// GetBuildDate implements BuildInfo.
func (c *Context) GetBuildDate() string {
	if c == nil {
		return UnknownValue
	}
	return valueOr(c.BuildDate)
}

// GetSystemID implements BuildInfo.
func (c *Context) GetSystemID() string {
	if c == nil {
		return UnknownValue
	}
	return valueOr(c.SystemID)
}

// Release is the release name reported to telemetry.
func Release(b BuildInfo) string {
	return "fieldwatch@" + b.GetVersion()
}

// String renders the version line printed by the version command.
func String(b BuildInfo) string {
	return fmt.Sprintf("fieldwatch %s (built %s, %s %s/%s)",
		b.GetVersion(), b.GetBuildDate(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
