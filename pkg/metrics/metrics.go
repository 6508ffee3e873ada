package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qieqieplus/meeting-client/pkg/meeting"
)

// Manager owns the Prometheus registry of the client.
type Manager struct {
	registry *prometheus.Registry

	uptime        prometheus.Gauge
	transitions   *prometheus.CounterVec
	currentState  *prometheus.GaugeVec
	failures      prometheus.Counter
	audioStarts   prometheus.Counter
	commands      *prometheus.CounterVec
	settingWrites *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	wsClients     prometheus.Gauge
}

func NewManager() *Manager {
	m := &Manager{registry: prometheus.NewRegistry()}
	m.init()
	m.register()
	return m
}

func (m *Manager) init() {
	m.uptime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "meeting_client_uptime_seconds",
		Help: "Time since the client started",
	})
	m.transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meeting_client_state_transitions_total",
			Help: "Connection state transitions by target state",
		},
		[]string{"state"},
	)
	m.currentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "meeting_client_state",
			Help: "1 for the current connection state, 0 otherwise",
		},
		[]string{"state"},
	)
	m.failures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meeting_client_failures_total",
		Help: "Meeting failures reported to the user",
	})
	m.audioStarts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meeting_client_audio_routing_starts_total",
		Help: "Times audio routing was started for a live call",
	})
	m.commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meeting_client_commands_total",
			Help: "User commands by kind and result",
		},
		[]string{"command", "status"},
	)
	m.settingWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meeting_client_setting_writes_total",
			Help: "Settings written through the API",
		},
		[]string{"key"},
	)
	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meeting_client_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)
	m.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meeting_client_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	m.wsClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "meeting_client_ws_clients",
		Help: "Connected view stream clients",
	})
}

func (m *Manager) register() {
	m.registry.MustRegister(
		m.uptime,
		m.transitions,
		m.currentState,
		m.failures,
		m.audioStarts,
		m.commands,
		m.settingWrites,
		m.httpRequests,
		m.httpDuration,
		m.wsClients,
	)
	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Manager) SetUptime(start time.Time) {
	m.uptime.Set(time.Since(start).Seconds())
}

// RecordTransition is meant to be used as the controller's transition hook.
func (m *Manager) RecordTransition(s meeting.State) {
	kind := s.Kind()
	m.transitions.WithLabelValues(kind.String()).Inc()
	for k := meeting.KindDisconnected; k <= meeting.KindFailure; k++ {
		v := 0.0
		if k == kind {
			v = 1
		}
		m.currentState.WithLabelValues(k.String()).Set(v)
	}
	if kind == meeting.KindFailure {
		m.failures.Inc()
	}
}

func (m *Manager) RecordAudioStart() {
	m.audioStarts.Inc()
}

func (m *Manager) RecordCommand(command string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.commands.WithLabelValues(command, status).Inc()
}

func (m *Manager) RecordSettingWrite(key string) {
	m.settingWrites.WithLabelValues(key).Inc()
}

func (m *Manager) WSClientConnected()    { m.wsClients.Inc() }
func (m *Manager) WSClientDisconnected() { m.wsClients.Dec() }

// HTTPMiddleware records request counts and latencies.
func (m *Manager) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(ww, r)

		m.httpRequests.WithLabelValues(r.Method, http.StatusText(ww.statusCode)).Inc()
		m.httpDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}
