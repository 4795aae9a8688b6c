package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Manager holds the service metrics on a private registry.
// All recording methods accept a nil receiver.
type Manager struct {
	Registry         *prometheus.Registry
	Transitions      *prometheus.CounterVec   // Workflow status changes by entity and target
	OTPVerifications *prometheus.CounterVec   // Delivery OTP checks by entity and result
	CheckoutLines    *prometheus.CounterVec   // Cart lines materialized or skipped
	Notifications    *prometheus.CounterVec   // Email outcomes by kind and result
	RequestLatency   *prometheus.HistogramVec // HTTP latency by route
}

// New registers every collector under the given namespace
func New(namespace string) *Manager {
	m := &Manager{
		Registry: prometheus.NewRegistry(),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_transitions_total",
			Help:      "Order and prescription status changes.",
		}, []string{"entity", "to"}),
		OTPVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_otp_verifications_total",
			Help:      "Delivery OTP confirmation attempts by result.",
		}, []string{"entity", "result"}),
		CheckoutLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_lines_total",
			Help:      "Cart lines turned into orders or skipped.",
		}, []string{"result"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Email notifications by kind and final result.",
		}, []string{"kind", "result"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	m.Registry.MustRegister(
		m.Transitions,
		m.OTPVerifications,
		m.CheckoutLines,
		m.Notifications,
		m.RequestLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Manager) Transition(entity, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(entity, to).Inc()
}

func (m *Manager) OTPVerification(entity, result string) {
	if m == nil {
		return
	}
	m.OTPVerifications.WithLabelValues(entity, result).Inc()
}

func (m *Manager) CheckoutLine(result string) {
	if m == nil {
		return
	}
	m.CheckoutLines.WithLabelValues(result).Inc()
}

func (m *Manager) Notification(kind string, err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.Notifications.WithLabelValues(kind, result).Inc()
}
