package models

import "time"

// SystemMetrics is a lightweight aggregate snapshot served to the admin
// dashboard alongside the Prometheus scrape endpoint.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	PaymentsRecorded         uint64    `json:"payments_recorded"`
	NotificationsDelivered   uint64    `json:"notifications_delivered"`
	NotificationsFailed      uint64    `json:"notifications_failed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
