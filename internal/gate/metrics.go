package gate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeAdmitted             = "admitted"
	outcomeDenied               = "denied"
	outcomeDirectoryUnavailable = "directory_unavailable"
	outcomeError                = "error"
)

var (
	signInsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placement_sign_ins_total",
			Help: "Sign-in attempts by outcome",
		},
		[]string{"outcome", "role"},
	)

	sessionVerifyFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "placement_session_verify_failures_total",
			Help: "Session tokens presented that failed verification",
		},
	)

	sessionRefreshesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "placement_session_refreshes_total",
			Help: "Session tokens re-issued before expiry",
		},
	)
)
