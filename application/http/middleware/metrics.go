package middleware

import (
	"strconv"
	"time"

	"webstack/application/http/dispatch"
	"webstack/application/http/semantic"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

type startKey struct{}

// Metrics counts requests, their duration and the errors offered to middleware.
type Metrics struct {
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	exceptions *prometheus.CounterVec
	clock      clock.Clock
}

var (
	_ dispatch.RequestProcessor   = (*Metrics)(nil)
	_ dispatch.ExceptionProcessor = (*Metrics)(nil)
	_ dispatch.ResponseProcessor  = (*Metrics)(nil)
)

// NewMetrics registers the collectors on reg. Collectors that are already
// registered are reused, so the chain can be loaded again.
func NewMetrics(reg prometheus.Registerer, clk clock.Clock) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webstack_requests_total",
			Help: "Requests answered, by method and status code.",
		}, []string{"method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "webstack_request_duration_seconds",
			Help:    "Time spent in the pipeline, by method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		exceptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webstack_exceptions_total",
			Help: "Errors offered to exception middleware, by kind.",
		}, []string{"kind"}),
		clock: clk,
	}

	var err error
	if m.requests, err = register(reg, m.requests); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.exceptions, err = register(reg, m.exceptions); err != nil {
		return nil, err
	}

	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, errors.Wrap(err, "registering metrics")
}

func (m *Metrics) Name() string { return "metrics" }

func (m *Metrics) ProcessRequest(r *semantic.Request) (semantic.Response, error) {
	r.WithValue(startKey{}, m.clock.Now())
	return nil, nil
}

func (m *Metrics) ProcessException(_ *semantic.Request, err error) semantic.Response {
	m.exceptions.WithLabelValues(semantic.KindOf(err).String()).Inc()
	return nil
}

func (m *Metrics) ProcessResponse(r *semantic.Request, resp semantic.Response) (semantic.Response, error) {
	method := methodLabel(r.Method())
	m.requests.WithLabelValues(method, strconv.Itoa(resp.StatusCode())).Inc()

	if start, ok := r.Context().Value(startKey{}).(time.Time); ok {
		m.duration.WithLabelValues(method).Observe(m.clock.Since(start).Seconds())
	}

	return resp, nil
}

// otherMethod labels every method outside the RFC 9110 set, so clients
// cannot grow the label space.
const otherMethod = "other"

var knownMethods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true, "DELETE": true,
	"CONNECT": true, "OPTIONS": true, "TRACE": true, "PATCH": true,
}

func methodLabel(method string) string {
	if knownMethods[method] {
		return method
	}
	return otherMethod
}
