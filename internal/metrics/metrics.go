// Package metrics exports engine lifecycle events to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/director/internal/governor"
	"github.com/aretw0/director/pkg/domain"
)

const namespace = "director"

// Collector owns the director metrics.
type Collector struct {
	reg prometheus.Registerer

	interventions *prometheus.CounterVec
	verifications *prometheus.CounterVec
	cache         *prometheus.CounterVec
	degradations  *prometheus.CounterVec
	duration      prometheus.Histogram
}

// NewCollector registers the director metrics with reg, or with the default
// registerer when reg is nil. Registering twice reuses the existing metrics.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{reg: reg}

	var err error
	if c.interventions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "interventions_total",
		Help:      "Directives emitted, by intervention category.",
	}, []string{"intervention"})); err != nil {
		return nil, err
	}
	if c.verifications, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifications_total",
		Help:      "Verified claims and entities, by verdict.",
	}, []string{"verdict"})); err != nil {
		return nil, err
	}
	if c.cache, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verdict_cache_lookups_total",
		Help:      "Verdict cache lookups, by result.",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if c.degradations, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "degradations_total",
		Help:      "Evaluations that ran with reduced capability, by reason.",
	}, []string{"reason"})); err != nil {
		return nil, err
	}
	if c.duration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "evaluate_duration_seconds",
		Help:      "Latency of Evaluate calls.",
		Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 15},
	})); err != nil {
		return nil, err
	}
	return c, nil
}

// register adds col to reg, returning the already registered collector of
// the same shape if there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, col C) (C, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return col, err
	}
	return col, nil
}

// Hooks returns lifecycle hooks that record every event.
func (c *Collector) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnEvaluate: func(_ context.Context, e *domain.EvaluateEvent) {
			c.interventions.WithLabelValues(string(e.Intervention)).Inc()
			c.duration.Observe(e.Duration.Seconds())
		},
		OnVerification: func(_ context.Context, e *domain.VerificationEvent) {
			c.verifications.WithLabelValues(string(e.Verdict)).Inc()
			result := "miss"
			if e.CacheHit {
				result = "hit"
			}
			c.cache.WithLabelValues(result).Inc()
		},
		OnDegradation: func(_ context.Context, e *domain.DegradationEvent) {
			c.degradations.WithLabelValues(string(e.Reason)).Inc()
		},
	}
}

// WatchBudget exports the governor usage as gauges.
func (c *Collector) WatchBudget(g *governor.Governor) error {
	for _, m := range []struct {
		name, help string
		value      func(governor.Usage) int
	}{
		{"budget_minute_used", "External calls made within the last minute.", func(u governor.Usage) int { return u.Minute.Used }},
		{"budget_daily_used", "External calls made within the last 24 hours.", func(u governor.Usage) int { return u.Daily.Used }},
		{"budget_daily_remaining", "External calls left today; -1 when unlimited.", func(u governor.Usage) int {
			if u.Daily.Limit == 0 {
				return -1
			}
			return u.Daily.Remaining
		}},
	} {
		gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      m.name,
			Help:      m.help,
		}, func() float64 { return float64(m.value(g.Usage())) })
		if _, err := register(c.reg, gauge); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the metrics of gatherer, or of the default gatherer when nil.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
