package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/clstr-dispatch/core/transport"
)

// transportMetrics implements transport.TransportMetrics using Prometheus.
type transportMetrics struct {
	sendersCreated *prometheus.CounterVec
	sendersFailed  *prometheus.CounterVec
	sendersClosed  *prometheus.CounterVec
	sendersOpen    *prometheus.GaugeVec
}

// NewTransportMetrics creates a Prometheus implementation of TransportMetrics.
func NewTransportMetrics(reg prometheus.Registerer) transport.TransportMetrics {
	return newTransportMetrics(reg)
}

func newTransportMetrics(reg prometheus.Registerer) *transportMetrics {
	m := &transportMetrics{
		sendersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clstr_transport_senders_created_total",
			Help: "Total number of senders dialed",
		}, []string{"transport"}),

		sendersFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clstr_transport_sender_create_failures_total",
			Help: "Total number of failed sender dials",
		}, []string{"transport"}),

		sendersClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clstr_transport_senders_closed_total",
			Help: "Total number of senders closed",
		}, []string{"transport"}),

		sendersOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "clstr_transport_senders_open",
			Help: "Number of cached senders",
		}, []string{"transport"}),
	}

	reg.MustRegister(
		m.sendersCreated,
		m.sendersFailed,
		m.sendersClosed,
		m.sendersOpen,
	)

	return m
}

func (m *transportMetrics) SenderCreated(t string) {
	m.sendersCreated.WithLabelValues(t).Inc()
}

func (m *transportMetrics) SenderCreateFailed(t string) {
	m.sendersFailed.WithLabelValues(t).Inc()
}

func (m *transportMetrics) SenderClosed(t string) {
	m.sendersClosed.WithLabelValues(t).Inc()
}

func (m *transportMetrics) SendersOpen(t string, count int) {
	m.sendersOpen.WithLabelValues(t).Set(float64(count))
}

var _ transport.TransportMetrics = (*transportMetrics)(nil)
