package auth

import (
	"time"

	"github.com/jrsteele09/go-magic-auth/internal/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Flow names used as metric and log labels.
const (
	FlowInvitePractitioner = "invite_practitioner"
	FlowCreateClient       = "create_client"
	FlowLogin              = "login"
	FlowEstablishSession   = "establish_session"
	FlowRefresh            = "refresh"
	FlowRevoke             = "revoke"
)

const outcomeSuccess = "success"

// Metrics counts flow outcomes and records flow latency.
type Metrics struct {
	flows    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the flow collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		flows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "magicauth",
			Name:      "flow_total",
			Help:      "Session flows handled, by flow and outcome.",
		}, []string{"flow", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "magicauth",
			Name:      "flow_duration_seconds",
			Help:      "Session flow latency, including store and mail calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"flow"}),
	}

	for _, c := range []prometheus.Collector{m.flows, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Mark(err, errors.ErrConfig, "[NewMetrics]")
		}
	}
	return m, nil
}

func (m *Metrics) observe(flow, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.flows.WithLabelValues(flow, outcome).Inc()
	m.duration.WithLabelValues(flow).Observe(elapsed.Seconds())
}

// Outcome classifies err into a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, errors.ErrValidation):
		return "validation"
	case errors.Is(err, errors.ErrConflict):
		return "conflict"
	case errors.Is(err, errors.ErrNotFound):
		return "not_found"
	case errors.Is(err, errors.ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, errors.ErrDelivery):
		return "delivery"
	case errors.Is(err, errors.ErrStore):
		return "store"
	default:
		return "error"
	}
}
