// Package version holds build metadata injected via ldflags.
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
)

// String renders "version (commit)" for startup logs and health output.
func String() string {
	return Version + " (" + Commit + ")"
}
