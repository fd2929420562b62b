package models

import "time"

// SystemMetrics is a lightweight process snapshot exposed on /health.
type SystemMetrics struct {
	CacheHitRatio float64   `json:"cache_hit_ratio"`
	RequestsTotal uint64    `json:"requests_total"`
	Goroutines    int       `json:"goroutines"`
	GeneratedAt   time.Time `json:"generated_at"`
}
