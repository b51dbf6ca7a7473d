// Package version holds build-time identifiers injected via -ldflags.
package version

// Version, Commit and BuildTime are overridden at build time with:
//
//	go build -ldflags "-X github.com/zvukmeta/tagscan/internal/version.Version=1.2.3 ..."
var (
	Version   = "0.1.0-dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// Short returns the semantic version string alone.
func Short() string {
	return Version
}

// Full returns the version alongside the commit and build time it was built from.
func Full() string {
	return "version: " + Version + ", commit: " + Commit + ", built at: " + BuildTime
}
