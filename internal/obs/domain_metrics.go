package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PriceResolutionsTotal counts price resolution outcomes.
	PriceResolutionsTotal *prometheus.CounterVec
	// PriceResolutionDuration records resolution latency in milliseconds.
	PriceResolutionDuration *prometheus.HistogramVec
	// QuoteCacheTotal counts quote cache operations by outcome.
	QuoteCacheTotal *prometheus.CounterVec
	// ModifiersAppliedPerQuote records how many modifiers adjusted a quote.
	ModifiersAppliedPerQuote prometheus.Histogram
	// EvaluatorFaultsTotal counts condition trees that failed to evaluate.
	EvaluatorFaultsTotal prometheus.Counter
	// BatchResolutionSize records batch quote request sizes.
	BatchResolutionSize prometheus.Histogram
	// CacheInvalidationsTotal counts invalidation requests by scope.
	CacheInvalidationsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PriceResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_resolutions_total",
			Help:      "Count of price resolution outcomes.",
		}, []string{"result"})
		PriceResolutionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "price_resolution_duration_ms",
			Help:      "Price resolution latency in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"cache"})
		QuoteCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_cache_total",
			Help:      "Count of quote cache operations by outcome.",
		}, []string{"op", "result"})
		ModifiersAppliedPerQuote = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "modifiers_applied_per_quote",
			Help:      "Number of modifiers that adjusted a quote.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		})
		EvaluatorFaultsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluator_faults_total",
			Help:      "Number of modifier condition trees that failed to evaluate.",
		})
		BatchResolutionSize = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_resolution_size",
			Help:      "Item counts of batch quote requests.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		})
		CacheInvalidationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Count of quote cache invalidation requests by scope.",
		}, []string{"scope"})

		mustRegisterCollector(reg, PriceResolutionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PriceResolutionsTotal = v
			}
		})
		mustRegisterCollector(reg, PriceResolutionDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				PriceResolutionDuration = v
			}
		})
		mustRegisterCollector(reg, QuoteCacheTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuoteCacheTotal = v
			}
		})
		mustRegisterCollector(reg, ModifiersAppliedPerQuote, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				ModifiersAppliedPerQuote = v
			}
		})
		mustRegisterCollector(reg, EvaluatorFaultsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				EvaluatorFaultsTotal = v
			}
		})
		mustRegisterCollector(reg, BatchResolutionSize, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				BatchResolutionSize = v
			}
		})
		mustRegisterCollector(reg, CacheInvalidationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CacheInvalidationsTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
