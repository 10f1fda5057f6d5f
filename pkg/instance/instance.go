package instance

import (
	"os"

	"github.com/vendorr/vendorr-edge/pkg/env"
)

// GetID returns the edge instance identifier. VENDORR_INSTANCE_ID wins, then
// the platform dyno name, then the hostname.
func GetID() string {
	if id := env.First("VENDORR_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "edge-0"
}
