package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "churchsite", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "churchsite", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	// Uploads counts upload attempts by section and outcome
	// (uploaded|reused|rejected|failed).
	Uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "churchsite", Name: "uploads_total", Help: "Asset upload attempts by section and outcome."},
		[]string{"section", "outcome"},
	)
	UploadedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "churchsite", Name: "uploaded_bytes_total", Help: "Bytes written to the blob store by section."},
		[]string{"section"},
	)
	HashRecordFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "churchsite", Name: "hash_record_failures_total", Help: "Failed asset hash lookups or writes (dedup degraded)."},
	)
	SectionSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "churchsite", Name: "section_saves_total", Help: "Section save attempts by section and outcome."},
		[]string{"section", "outcome"},
	)
	ContactNotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "churchsite", Name: "contact_notifications_total", Help: "Contact message notifications by outcome."},
		[]string{"outcome"},
	)
	EditorSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "churchsite", Name: "editor_sessions", Help: "Open editor sessions."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(Uploads)
	reg.MustRegister(UploadedBytes)
	reg.MustRegister(HashRecordFailures)
	reg.MustRegister(SectionSaves)
	reg.MustRegister(ContactNotifications)
	reg.MustRegister(EditorSessions)
}
