package metrics

import (
	"errors"
	"time"

	"github.com/Borislavv/notion-widget-cache/pkg/prometheus/metrics/keyword"
	"github.com/Borislavv/notion-widget-cache/pkg/prometheus/metrics/validator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var MetricRegisterErrorMessage = "failed to register metric counter"

type Meter interface {
	IncTotal(path string, method string, status string)
	IncStatus(path string, method string, status string)
	ObserveResponseTime(path string, method string, dur time.Duration)

	IncCacheLookup(tier string, result string)
	IncCacheBackendError(op string)
	IncUpstreamCall(result string)
	IncFallback(reason string)
}

type Metrics struct {
	totalRequestsCounter    *prometheus.CounterVec
	totalResponsesCounter   *prometheus.CounterVec
	responseStatusesCounter *prometheus.CounterVec
	responseTimeMsCounter   *prometheus.HistogramVec

	cacheLookupsCounter       *prometheus.CounterVec
	cacheBackendErrorsCounter *prometheus.CounterVec
	upstreamCallsCounter      *prometheus.CounterVec
	fallbacksCounter          *prometheus.CounterVec
}

// New creates and registers all collectors in reg (prometheus.DefaultRegisterer in production).
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		totalRequestsCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: keyword.TotalHttpRequestsMetricName,
				Help: "Number of all requests.",
			},
			[]string{"path", "method"},
		),
		totalResponsesCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: keyword.TotalHttpResponsesMetricName,
				Help: "Number of all responses.",
			},
			[]string{"path", "method", "status"},
		),
		responseStatusesCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: keyword.HttpResponseStatusesMetricName,
				Help: "Status of HTTP response",
			},
			[]string{"path", "method", "status"},
		),
		responseTimeMsCounter: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    keyword.HttpResponseTimeMsMetricName,
			Help:    "Duration of HTTP requests in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"path", "method"}),
		cacheLookupsCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: keyword.CacheLookupsMetricName,
				Help: "Widget cache lookups by tier and result.",
			},
			[]string{"tier", "result"},
		),
		cacheBackendErrorsCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: keyword.CacheBackendErrorsMetricName,
				Help: "Shared cache store failures by operation.",
			},
			[]string{"op"},
		),
		upstreamCallsCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: keyword.UpstreamCallsMetricName,
				Help: "Content API calls by result.",
			},
			[]string{"result"},
		),
		fallbacksCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: keyword.FallbacksMetricName,
				Help: "Fallback content served by reason.",
			},
			[]string{"reason"},
		),
	}

	for _, collector := range []prometheus.Collector{
		m.totalRequestsCounter,
		m.totalResponsesCounter,
		m.responseStatusesCounter,
		m.responseTimeMsCounter,
		m.cacheLookupsCounter,
		m.cacheBackendErrorsCounter,
		m.upstreamCallsCounter,
		m.fallbacksCounter,
	} {
		if err := reg.Register(collector); err != nil {
			log.Err(err).Msg(MetricRegisterErrorMessage)
			return nil, errors.New(MetricRegisterErrorMessage)
		}
	}

	return m, nil
}

// IncTotal method is increments request/response total counters and depends on
// *status* argument (numeric or empty string available).
// If the *status* argument is empty string then will be used request_counter,
// in other way will be used response_counter.
func (m *Metrics) IncTotal(path string, method string, status string) {
	if status != "" {
		if err := validator.ValidateStrStatusCode(status); err != nil {
			log.Err(err).Str("status", status).Msg("[metrics] invalid status code")
			return
		}
		m.totalResponsesCounter.With(
			prometheus.Labels{
				"path":   path,
				"method": method,
				"status": status,
			},
		).Inc()
		return
	}
	m.totalRequestsCounter.With(
		prometheus.Labels{
			"path":   path,
			"method": method,
		},
	).Inc()
}

func (m *Metrics) IncStatus(path string, method string, status string) {
	if err := validator.ValidateStrStatusCode(status); err != nil {
		log.Err(err).Str("status", status).Msg("[metrics] invalid status code")
		return
	}

	m.responseStatusesCounter.With(
		prometheus.Labels{
			"path":   path,
			"method": method,
			"status": status,
		},
	).Inc()
}

func (m *Metrics) ObserveResponseTime(path string, method string, dur time.Duration) {
	m.responseTimeMsCounter.WithLabelValues(path, method).Observe(float64(dur) / float64(time.Millisecond))
}

func (m *Metrics) IncCacheLookup(tier string, result string) {
	m.cacheLookupsCounter.WithLabelValues(tier, result).Inc()
}

func (m *Metrics) IncCacheBackendError(op string) {
	m.cacheBackendErrorsCounter.WithLabelValues(op).Inc()
}

func (m *Metrics) IncUpstreamCall(result string) {
	m.upstreamCallsCounter.WithLabelValues(result).Inc()
}

func (m *Metrics) IncFallback(reason string) {
	m.fallbacksCounter.WithLabelValues(reason).Inc()
}
