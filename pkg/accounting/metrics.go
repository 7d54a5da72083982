// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

package accounting

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the prometheus collectors for session accounting. The
// spec's Non-goals exclude packet routing and cross-restart persistence,
// never observability, so this is carried regardless (ambient stack).
type Metrics struct {
	SessionsActive   prometheus.Gauge
	OctetsRecv       prometheus.Counter
	OctetsXmit       prometheus.Counter
	UpdatesSent      prometheus.Counter
	UpdatesSuppressed prometheus.Counter
}

// NewMetrics creates a Metrics with its collectors registered against reg.
// cmd/mpd's serve command registers it against a fresh prometheus.Registry
// and serves that registry at /metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mpd",
			Subsystem: "accounting",
			Name:      "sessions_active",
			Help:      "Number of sessions with an open accounting record.",
		}),
		OctetsRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mpd",
			Subsystem: "accounting",
			Name:      "octets_recv_total",
			Help:      "Cumulative octets received across all accounted sessions.",
		}),
		OctetsXmit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mpd",
			Subsystem: "accounting",
			Name:      "octets_xmit_total",
			Help:      "Cumulative octets transmitted across all accounted sessions.",
		}),
		UpdatesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mpd",
			Subsystem: "accounting",
			Name:      "updates_sent_total",
			Help:      "Accounting Interim-Update events dispatched to backends.",
		}),
		UpdatesSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mpd",
			Subsystem: "accounting",
			Name:      "updates_suppressed_total",
			Help:      "Accounting Interim-Update events suppressed by the octet-delta threshold.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.SessionsActive, m.OctetsRecv, m.OctetsXmit, m.UpdatesSent, m.UpdatesSuppressed)
	}
	return m
}

// observe records one event's octet counters and, for Update events,
// whether it was suppressed.
func (m *Metrics) observe(recvDelta, xmitDelta uint64, suppressed bool) {
	if m == nil {
		return
	}
	m.OctetsRecv.Add(float64(recvDelta))
	m.OctetsXmit.Add(float64(xmitDelta))
	if suppressed {
		m.UpdatesSuppressed.Inc()
	} else {
		m.UpdatesSent.Inc()
	}
}
