// Package metrics exposes the session activity of the agent to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/visarisk/agent/internal/models"
)

const DefaultNamespace = "visarisk"

type Config struct {
	Namespace string
	Subsystem string
	Registry  prometheus.Registerer
}

type Option func(*Config)

func WithNamespace(namespace string) Option {
	return func(c *Config) {
		if len(namespace) > 0 {
			c.Namespace = namespace
		}
	}
}

func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Metrics records login, registration and logout outcomes as well as the
// current session state. It satisfies auth.Recorder.
type Metrics struct {
	logins        *prometheus.CounterVec
	registrations *prometheus.CounterVec
	logouts       prometheus.Counter
	state         *prometheus.GaugeVec
	transitions   *prometheus.CounterVec

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var stateKinds = []models.StateKind{
	models.StateUnknown,
	models.StateUnauthenticated,
	models.StateAuthenticated,
	models.StatePending,
}

func New(opts ...Option) *Metrics {
	config := Config{
		Namespace: DefaultNamespace,
		Subsystem: "session",
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	m := &Metrics{
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "logins_total",
			Help:      "Login attempts by result",
		}, []string{"result"}),

		registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "registrations_total",
			Help:      "Registration attempts by result",
		}, []string{"result"}),

		logouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "logouts_total",
			Help:      "Completed logouts",
		}),

		state: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "state",
			Help:      "1 for the current session state, 0 otherwise",
		}, []string{"state"}),

		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "state_transitions_total",
			Help:      "Published session states by target state",
		}, []string{"state"}),
	}

	m.requests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Requests served by the local web app",
	}, []string{"route", "status"})

	m.duration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: config.Namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Request handling duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	m.ObserveState(models.UnknownState())

	return m
}

func (m *Metrics) ObserveLogin(result string) {
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRegistration(result string) {
	m.registrations.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveLogout() {
	m.logouts.Inc()
}

func (m *Metrics) ObserveState(state models.SessionState) {
	for _, kind := range stateKinds {
		value := 0.0
		if kind == state.Kind {
			value = 1
		}
		m.state.WithLabelValues(kind.String()).Set(value)
	}
	m.transitions.WithLabelValues(state.Kind.String()).Inc()
}

// ObserveRequest records one handled request. route is the matched route
// pattern, never the raw path, to keep cardinality bounded.
func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	if len(route) == 0 {
		route = "unmatched"
	}
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route).Observe(elapsed.Seconds())
}
