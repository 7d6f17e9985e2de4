package instance

import (
	"os"
	"strings"
)

const defaultID = "agent-0"

// GetID identifies this agent process: CREWSYNC_AGENT_ID, else the host
// name, else a fixed default.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv("CREWSYNC_AGENT_ID")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return defaultID
}
