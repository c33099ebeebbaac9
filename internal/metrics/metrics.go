package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the bot's Prometheus collectors.
type Metrics struct {
	Events            *prometheus.CounterVec
	EventErrors       *prometheus.CounterVec
	ChallengesIssued  prometheus.Counter
	ChallengesFailed  prometheus.Counter
	ChallengesExpired prometheus.Counter
	Verifications     *prometheus.CounterVec
	CleanupDeletes    *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_events_total",
			Help: "Inbound events by kind.",
		}, []string{"kind"}),
		EventErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_event_errors_total",
			Help: "Events whose handling failed, by kind.",
		}, []string{"kind"}),
		ChallengesIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "bot_challenges_issued_total",
			Help: "Challenge messages sent to new members.",
		}),
		ChallengesFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "bot_challenge_send_failures_total",
			Help: "Challenges that could not be sent.",
		}),
		ChallengesExpired: f.NewCounter(prometheus.CounterOpts{
			Name: "bot_challenges_expired_total",
			Help: "Unanswered challenges removed after their deadline.",
		}),
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_verifications_total",
			Help: "Challenge responses by result (verified, rejected, failed).",
		}, []string{"result"}),
		CleanupDeletes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_cleanup_deletes_total",
			Help: "Delayed message deletions by result (ok, failed).",
		}, []string{"result"}),
	}
}

// NewUnregistered returns collectors that are not exported anywhere.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
