package version

// Version represents the current version of marketsearch
const Version = "0.4.0"

// BuildVersion returns the version string for display
func BuildVersion() string {
	return "marketsearch version " + Version
}

// APIVersion returns just the version number for API responses
func APIVersion() string {
	return Version
}

// UserAgent is sent on every backend request.
func UserAgent() string {
	return "marketsearch/" + Version
}
