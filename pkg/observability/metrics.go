package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lyoneil/Botpress/pkg/domain"
)

const namespace = "botpress"

// Metrics holds the collectors fed by the lifecycle hooks.
type Metrics struct {
	Dispatches       *prometheus.HistogramVec
	Middleware       *prometheus.HistogramVec
	NodeVisits       *prometheus.CounterVec
	Transitions      *prometheus.CounterVec
	Instructions     *prometheus.HistogramVec
	InstructionFails *prometheus.CounterVec
	Evaluations      *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg (nil skips registration).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Dispatches: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of event dispatches by direction and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"bot_id", "direction", "outcome"}),
		Middleware: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "middleware_duration_seconds",
			Help:      "Duration of middleware handlers by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"direction", "middleware", "outcome"}),
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Total number of flow node visits.",
		}, []string{"bot_id", "flow", "node"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Total number of flow transitions.",
		}, []string{"bot_id", "flow"}),
		Instructions: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "instruction_duration_seconds",
			Help:      "Duration of instruction executions by kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		InstructionFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instruction_errors_total",
			Help:      "Total number of instructions that returned an error.",
		}, []string{"kind"}),
		Evaluations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Duration of sandboxed expression evaluations by tier.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"tier", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.Dispatches, m.Middleware, m.NodeVisits, m.Transitions,
			m.Instructions, m.InstructionFails, m.Evaluations)
	}
	return m
}

// Hooks returns the lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDispatch: func(_ context.Context, e *domain.DispatchEvent) {
			m.Dispatches.WithLabelValues(e.BotID, string(e.Direction), e.Outcome).Observe(e.Duration.Seconds())
		},
		OnMiddleware: func(_ context.Context, e *domain.MiddlewareEvent) {
			m.Middleware.WithLabelValues(string(e.Direction), e.Name, e.Outcome).Observe(e.Duration.Seconds())
		},
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(e.BotID, e.Flow, e.Node).Inc()
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.Transitions.WithLabelValues(e.BotID, e.FromFlow).Inc()
		},
		OnInstruction: func(_ context.Context, e *domain.InstructionEvent) {
			m.Instructions.WithLabelValues(e.Kind).Observe(e.Duration.Seconds())
			if e.Err != nil {
				m.InstructionFails.WithLabelValues(e.Kind).Inc()
			}
		},
		OnEvaluation: func(_ context.Context, e *domain.EvaluationEvent) {
			result := "ok"
			if e.Err != nil {
				result = "error"
			}
			m.Evaluations.WithLabelValues(e.Tier, result).Observe(e.Duration.Seconds())
		},
	}
}
