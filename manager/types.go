package manager

import "github.com/guileen/respool/pool"

// Stats is a read-only snapshot of manager state
type Stats struct {
	Pool            pool.Stats     `json:"pool"`
	ActiveResources int            `json:"active_resources"`
	ResourcesByKind map[string]int `json:"resources_by_kind"`
	UptimeSeconds   float64        `json:"uptime_seconds"`
}
