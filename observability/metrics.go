package observability

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ringwire"

// SenderMetrics are the collectors updated by the drain loop. A nil
// *SenderMetrics records nothing.
type SenderMetrics struct {
	sent         *prometheus.CounterVec
	failures     *prometheus.CounterVec
	lastSent     *prometheus.GaugeVec
	sendDuration *prometheus.HistogramVec
}

// NewSenderMetrics creates the sender collectors and registers them on reg.
// Collectors already registered on reg by an earlier call are reused.
// A nil reg leaves the collectors unregistered.
func NewSenderMetrics(reg prometheus.Registerer) (*SenderMetrics, error) {
	m := &SenderMetrics{
		sent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sender",
				Name:      "messages_sent_total",
				Help:      "Messages forwarded to the transport.",
			},
			[]string{"topic"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sender",
				Name:      "send_failures_total",
				Help:      "Transport send failures, by the action the error policy took.",
			},
			[]string{"topic", "action"},
		),
		lastSent: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "sender",
				Name:      "last_sent_sequence",
				Help:      "Highest sequence forwarded to the transport.",
			},
			[]string{"topic"},
		),
		sendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "sender",
				Name:      "send_duration_seconds",
				Help:      "Duration of a single transport send.",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"topic"},
		),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.sent, err = register(reg, m.sent); err != nil {
		return nil, err
	}
	if m.failures, err = register(reg, m.failures); err != nil {
		return nil, err
	}
	if m.lastSent, err = register(reg, m.lastSent); err != nil {
		return nil, err
	}
	if m.sendDuration, err = register(reg, m.sendDuration); err != nil {
		return nil, err
	}

	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}

		return c, err
	}

	return c, nil
}

// ObserveSent records a successful send of seq on topic.
func (m *SenderMetrics) ObserveSent(topic int32, seq int64, d time.Duration) {
	if m == nil {
		return
	}
	label := topicLabel(topic)
	m.sent.WithLabelValues(label).Inc()
	m.lastSent.WithLabelValues(label).Set(float64(seq))
	m.sendDuration.WithLabelValues(label).Observe(d.Seconds())
}

// ObserveFailure records a failed send. dropped reports whether the error
// policy skipped the message rather than stopping the sender.
func (m *SenderMetrics) ObserveFailure(topic int32, dropped bool) {
	if m == nil {
		return
	}
	action := "propagated"
	if dropped {
		action = "dropped"
	}
	m.failures.WithLabelValues(topicLabel(topic), action).Inc()
}

func topicLabel(topic int32) string {
	return strconv.FormatInt(int64(topic), 10)
}
