package buildinfo

var (
	// GitCommit is set by govvv at build time.
	GitCommit = "n/a"
	// GitSummary is set by govvv at build time.
	GitSummary = "n/a"
	// BuildDate is set by govvv at build time.
	BuildDate = "n/a"
	// Version is set by govvv at build time.
	Version = "n/a"
)

// Summary is the git information baked into the binary.
type Summary struct {
	GitCommit  string `json:"git_commit"`
	GitSummary string `json:"git_summary"`
	BuildDate  string `json:"build_date"`
	Version    string `json:"version"`
}

// GetSummary returns the binary's build information.
func GetSummary() Summary {
	return Summary{
		GitCommit:  GitCommit,
		GitSummary: GitSummary,
		BuildDate:  BuildDate,
		Version:    Version,
	}
}
