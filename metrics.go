package main

import (
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/go-pluto/courier/session"
)

// Structs

type CourierMetrics struct {
	Session *session.Metrics
}

// Functions

// NewCourierMetrics builds the session counters, Prometheus-backed
// when an exposition address is configured and discarding
// otherwise.
func NewCourierMetrics(prometheusAddr string) *CourierMetrics {

	if prometheusAddr == "" {
		return &CourierMetrics{Session: session.NewNopMetrics()}
	}

	return &CourierMetrics{
		Session: &session.Metrics{
			Commands: prometheus.NewCounterFrom(prom.CounterOpts{
				Namespace: "courier",
				Subsystem: "session",
				Name:      "commands_total",
				Help:      "Number of commands sent",
			}, nil),
			Responses: prometheus.NewCounterFrom(prom.CounterOpts{
				Namespace: "courier",
				Subsystem: "session",
				Name:      "responses_total",
				Help:      "Number of responses received",
			}, nil),
			Timeouts: prometheus.NewCounterFrom(prom.CounterOpts{
				Namespace: "courier",
				Subsystem: "session",
				Name:      "timeouts_total",
				Help:      "Number of inactivity timeouts",
			}, nil),
			TLSRetries: prometheus.NewCounterFrom(prom.CounterOpts{
				Namespace: "courier",
				Subsystem: "session",
				Name:      "tls_retries_total",
				Help:      "Number of TLS version fallback retries",
			}, nil),
			ConnectionLosses: prometheus.NewCounterFrom(prom.CounterOpts{
				Namespace: "courier",
				Subsystem: "session",
				Name:      "connection_losses_total",
				Help:      "Number of lost connections",
			}, nil),
		},
	}
}

func runPromHTTP(logger log.Logger, addr string) {

	if addr == "" {
		level.Debug(logger).Log("msg", "prometheus addr is empty, not exposing prometheus metrics")
		return
	}

	http.Handle("/metrics", promhttp.Handler())

	level.Info(logger).Log("msg", "prometheus handler listening", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		level.Warn(logger).Log("msg", "failed to serve prometheus metrics", "err", err)
	}
}
