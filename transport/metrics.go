package transport

import (
	"strconv"

	"github.com/jrsteele09/rally-session/identity"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeRefreshed    = "refreshed"
	outcomeReused       = "reused"
	outcomeRejected     = "rejected"
	outcomeNetworkError = "network_error"
	outcomeCancelled    = "cancelled"
)

// Metrics counts refreshes and retries per identity class.
type Metrics struct {
	Refreshes *prometheus.CounterVec
	Retries   *prometheus.CounterVec
}

// NewMetrics creates the transport counters and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rally",
			Subsystem: "session",
			Name:      "refresh_total",
			Help:      "Token refreshes triggered by a 401, by identity class and outcome.",
		}, []string{"class", "outcome"}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rally",
			Subsystem: "session",
			Name:      "retry_total",
			Help:      "Requests retried after a refresh, by identity class and retry status code.",
		}, []string{"class", "status"}),
	}
	if reg != nil {
		reg.MustRegister(m.Refreshes, m.Retries)
	}
	return m
}

func (m *Metrics) refresh(class identity.Class, outcome string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(class.String(), outcome).Inc()
}

func (m *Metrics) retry(class identity.Class, status int) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.Retries.WithLabelValues(class.String(), label).Inc()
}
