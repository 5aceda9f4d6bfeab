package models

import "time"

// SystemMetrics is a point-in-time summary of service activity.
type SystemMetrics struct {
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	Allocations              map[string]uint64 `json:"allocations"`
	Notifications            map[string]uint64 `json:"notifications"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}
