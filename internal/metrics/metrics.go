package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mescon/timr/internal/domain"
	"github.com/mescon/timr/internal/eventbus"
	"github.com/mescon/timr/internal/logger"
)

// MetricsService exposes Prometheus metrics for timr
type MetricsService struct {
	eventBus *eventbus.EventBus
	gatherer prometheus.Gatherer

	// Counters
	ticksTotal         prometheus.Counter
	lifecycleTotal     *prometheus.CounterVec
	finishedTotal      prometheus.Counter
	notificationsTotal *prometheus.CounterVec

	// Gauges
	timers *prometheus.GaugeVec

	// Internal tracking: last known status per timer ID
	mu       sync.Mutex
	statuses map[string]string
}

// NewMetricsService creates the metrics and registers them with reg. A nil reg selects
// the global Prometheus registry.
func NewMetricsService(eb *eventbus.EventBus, reg *prometheus.Registry) *MetricsService {
	m := &MetricsService{
		eventBus: eb,
		statuses: make(map[string]string),

		ticksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "timr_ticks_total",
				Help: "Total number of timer ticks",
			},
		),

		lifecycleTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timr_lifecycle_events_total",
				Help: "Total number of timer lifecycle events by event type",
			},
			[]string{"event"},
		),

		finishedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "timr_finished_total",
				Help: "Total number of countdowns that ran to zero",
			},
		),

		notificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timr_notifications_total",
				Help: "Total number of finish notifications by outcome",
			},
			[]string{"outcome"}, // sent, failed
		),

		timers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "timr_timers",
				Help: "Number of timers held, by status",
			},
			[]string{"status"},
		),
	}

	collectors := []prometheus.Collector{
		m.ticksTotal,
		m.lifecycleTotal,
		m.finishedTotal,
		m.notificationsTotal,
		m.timers,
	}
	if eb != nil {
		collectors = append(collectors, prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "timr_eventbus_dropped_total",
				Help: "Events dropped because a subscriber buffer was full",
			},
			func() float64 { return float64(eb.Dropped()) },
		))
	}

	if reg == nil {
		prometheus.MustRegister(collectors...)
		m.gatherer = prometheus.DefaultGatherer
	} else {
		reg.MustRegister(collectors...)
		m.gatherer = reg
	}
	return m
}

// Start subscribes to events and updates metrics. A single subscription keeps the
// events of one timer in publish order.
func (m *MetricsService) Start() {
	m.eventBus.SubscribeAll(m.handleEvent)

	logger.Infof("Metrics service started")
}

// Handler returns the Prometheus HTTP handler for /metrics endpoint
func (m *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordNotification counts one finish notification attempt.
func (m *MetricsService) RecordNotification(sent bool) {
	if sent {
		m.notificationsTotal.WithLabelValues("sent").Inc()
		return
	}
	m.notificationsTotal.WithLabelValues("failed").Inc()
}

// Event handlers

func (m *MetricsService) handleEvent(event domain.Event) {
	if event.EventType == domain.TimerTick {
		m.ticksTotal.Inc()
		return
	}
	m.handleLifecycle(event)
}

func (m *MetricsService) handleLifecycle(event domain.Event) {
	m.lifecycleTotal.WithLabelValues(string(event.EventType)).Inc()
	if event.EventType == domain.TimerFinished {
		m.finishedTotal.Inc()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prev, known := m.statuses[event.TimerID]
	if event.EventType == domain.TimerDestroyed {
		if known {
			m.timers.WithLabelValues(prev).Dec()
			delete(m.statuses, event.TimerID)
		}
		return
	}
	if known && prev == event.Status {
		return
	}
	if known {
		m.timers.WithLabelValues(prev).Dec()
	}
	m.timers.WithLabelValues(event.Status).Inc()
	m.statuses[event.TimerID] = event.Status
}
