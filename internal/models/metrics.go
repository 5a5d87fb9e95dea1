package models

import "time"

// SystemMetrics is a point-in-time summary of the process counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	BookingsCreated          uint64    `json:"bookings_created"`
	BookingsCancelled        uint64    `json:"bookings_cancelled"`
	CapacityRejections       uint64    `json:"capacity_rejections"`
	WaitlistPromotions       uint64    `json:"waitlist_promotions"`
	WaitlistOffersExpired    uint64    `json:"waitlist_offers_expired"`
	NotificationsSent        uint64    `json:"notifications_sent"`
	NotificationsFailed      uint64    `json:"notifications_failed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
