// Package version holds the build-time version string, overridable via
// -ldflags "-X github.com/danshapiro/ralf/internal/version.Version=...".
package version

// Version is the ralf release version. It defaults to a development
// placeholder; release builds override it at link time.
var Version = "0.1.0-dev"
