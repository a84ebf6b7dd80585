package cdengine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports the health of a world. A nil *Metrics records nothing.
// Label values are bounded.
type Metrics struct {
	stepDuration        prometheus.Histogram
	schedulerIterations prometheus.Histogram
	contacts            *prometheus.CounterVec // kind: collision, trigger
	schedulerCaps       prometheus.Counter
	rollbacks           prometheus.Counter
	bodyContacts        prometheus.Counter
	bodies              prometheus.Gauge
	colliders           prometheus.Gauge
}

// NewMetrics registers the world metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		stepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cdengine_step_duration_seconds",
			Help:    "Time spent in World.Step",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025},
		}),
		schedulerIterations: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cdengine_scheduler_iterations",
			Help:    "Collision scheduler iterations per frame",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 100},
		}),
		contacts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cdengine_contacts_total",
			Help: "Collider contacts resolved by the scheduler",
		}, []string{"kind"}),
		schedulerCaps: factory.NewCounter(prometheus.CounterOpts{
			Name: "cdengine_scheduler_cap_total",
			Help: "Frames whose collision scheduler hit the iteration cap",
		}),
		rollbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "cdengine_rollbacks_total",
			Help: "Body ticks rolled back after exhausting their sub-steps",
		}),
		bodyContacts: factory.NewCounter(prometheus.CounterOpts{
			Name: "cdengine_body_contacts_total",
			Help: "Body contacts with static geometry",
		}),
		bodies: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cdengine_bodies",
			Help: "Current number of rigid bodies",
		}),
		colliders: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cdengine_colliders",
			Help: "Current number of colliders",
		}),
	}
}

func (m *Metrics) observeFrame(report FrameReport) {
	if m == nil {
		return
	}
	m.schedulerIterations.Observe(float64(report.Iterations))
	if report.CapReached {
		m.schedulerCaps.Inc()
	}
}

func (m *Metrics) observeContact(trigger bool) {
	if m == nil {
		return
	}
	if trigger {
		m.contacts.WithLabelValues("trigger").Inc()
		return
	}
	m.contacts.WithLabelValues("collision").Inc()
}

func (m *Metrics) observeTick(result TickResult) {
	if m == nil {
		return
	}
	m.bodyContacts.Add(float64(result.Contacts))
	if !result.Solved {
		m.rollbacks.Inc()
	}
}

func (m *Metrics) observeStep(d time.Duration, bodies, colliders int) {
	if m == nil {
		return
	}
	m.stepDuration.Observe(d.Seconds())
	m.bodies.Set(float64(bodies))
	m.colliders.Set(float64(colliders))
}
