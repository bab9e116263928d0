package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	registry *prometheus.Registry

	forwarded         *prometheus.CounterVec
	trustChecks       prometheus.Counter
	incompatibilities prometheus.Counter
	joins             *prometheus.CounterVec
	dropped           prometheus.Counter
	sessions          prometheus.Gauge
	clients           prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		forwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "synctrust",
			Subsystem: "relay",
			Name:      "events_forwarded_total",
			Help:      "Number of events queued for clients, by kind",
		}, []string{"kind"}),
		trustChecks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "synctrust",
			Subsystem: "relay",
			Name:      "trust_checks_total",
			Help:      "Number of trust checks started by joiners",
		}),
		incompatibilities: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "synctrust",
			Subsystem: "relay",
			Name:      "protocol_incompatibilities_total",
			Help:      "Number of joiners refused for a protocol version mismatch",
		}),
		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "synctrust",
			Subsystem: "relay",
			Name:      "joins_total",
			Help:      "Number of join outcomes, by result",
		}, []string{"result"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "synctrust",
			Subsystem: "relay",
			Name:      "events_dropped_total",
			Help:      "Number of events dropped because a client queue was full",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "synctrust",
			Subsystem: "relay",
			Name:      "sessions",
			Help:      "Number of live sessions",
		}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "synctrust",
			Subsystem: "relay",
			Name:      "clients",
			Help:      "Number of authenticated client instances",
		}),
	}
	m.registry.MustRegister(
		m.forwarded,
		m.trustChecks,
		m.incompatibilities,
		m.joins,
		m.dropped,
		m.sessions,
		m.clients,
	)
	return m
}
