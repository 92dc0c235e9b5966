package hooks

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/protogate/protogate/internal/core"
)

// Metrics counts completed and failed calls through prometheus. One
// instance serves both the response and the error side; the prometheus
// primitives handle concurrent updates.
type Metrics struct {
	Prio      int
	completed *prometheus.CounterVec
	errors    *prometheus.CounterVec
}

// NewMetrics creates the hook and registers its collectors.
func NewMetrics(reg prometheus.Registerer, prio int) (*Metrics, error) {
	m := &Metrics{
		Prio: prio,
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "protogate_requests_total",
			Help: "Completed requests by success flag.",
		}, []string{"success"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "protogate_request_errors_total",
			Help: "Failed requests by error kind.",
		}, []string{"kind"}),
	}
	if err := reg.Register(m.completed); err != nil {
		return nil, err
	}
	if err := reg.Register(m.errors); err != nil {
		return nil, err
	}
	return m, nil
}

// Name returns "metrics".
func (*Metrics) Name() string { return "metrics" }

// Priority implements the hook contracts.
func (m *Metrics) Priority() int { return m.Prio }

// HandleResponse counts a completed call.
func (m *Metrics) HandleResponse(_ context.Context, resp *core.Response) (*core.Response, error) {
	if resp.Success {
		m.completed.WithLabelValues("true").Inc()
	} else {
		m.completed.WithLabelValues("false").Inc()
	}
	return resp, nil
}

// HandleError counts a failed call and re-raises: metrics never
// recover.
func (m *Metrics) HandleError(_ context.Context, e *core.Error) (*core.Response, error) {
	m.errors.WithLabelValues(string(e.Kind)).Inc()
	return nil, e
}
