package instance

import (
	"os"
	"strings"
)

// ID names the running process in logs. Platform-provided identifiers win
// over the container hostname.
func ID() string {
	for _, key := range []string{"STOREFRONT_INSTANCE_ID", "DYNO", "K_REVISION", "HOSTNAME"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	return "local"
}
