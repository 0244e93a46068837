// Package agentversion holds build information, set with -ldflags -X.
package agentversion

import "fmt"

var (
	version   string
	commit    string
	buildTime string
)

// Version returns agent version.
func Version() string {
	if version == "" {
		return "dev"
	}
	return version
}

// Commit returns the git commit the agent was built from.
func Commit() string {
	if commit == "" {
		return "unknown"
	}
	return commit
}

// BuildTime returns when the agent was built.
func BuildTime() string {
	if buildTime == "" {
		return "unknown"
	}
	return buildTime
}

// String formats all build information on one line.
func String() string {
	return fmt.Sprintf("version: %s, commit: %s, built: %s", Version(), Commit(), BuildTime())
}
