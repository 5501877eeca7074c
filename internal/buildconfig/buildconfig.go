package buildconfig

// Set at build time via -ldflags "-X .../buildconfig.version=... -X .../buildconfig.commit=..."
var (
	version = "dev"
	commit  = "unknown"
)

func Version() string { return version }

func Commit() string { return commit }

// VersionInfo returns the build identity for diagnostics endpoints.
func VersionInfo() map[string]string {
	return map[string]string{
		"version": version,
		"commit":  commit,
	}
}
