package version

import "fmt"

var (
	// Version is the release version of this build. Release builds inject
	// the git tag via ldflags; anything else reports a dev build.
	Version = "0.0.0-dev"
	// Commit is the short git commit the binaries were built from.
	Commit = "none"
	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"
)

// Short returns the bare version string.
func Short() string {
	return Version
}

// Full returns the version with commit and build time, as printed by the
// `version` subcommand and startup logs.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}
