// Package buildinfo carries version metadata stamped in at build time
// via -ldflags "-X github.com/layer5one/elysia/internal/buildinfo.Version=...".
package buildinfo

var (
	// Version is the semantic version of this build.
	Version = "dev"

	// Commit is the short git hash the binary was built from.
	Commit = "unknown"

	// Date is the UTC build timestamp.
	Date = "unknown"
)
