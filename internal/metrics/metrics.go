package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tasks_auth"

// Metrics groups the collectors of the auth service. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	logins       prometheus.Counter
	refreshes    *prometheus.CounterVec
	authentics   *prometheus.CounterVec
	revoked      prometheus.Counter
	swept        prometheus.Counter
	HTTPDuration *prometheus.HistogramVec
	HTTPRequests *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		logins: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Sessions started by login or registration.",
		}),
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Refresh token exchanges by result.",
		}, []string{"result"}),
		authentics: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authenticate_total",
			Help:      "Access token checks by result.",
		}, []string{"result"}),
		revoked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_revoked_total",
			Help:      "Sessions revoked by logout-all or reuse detection.",
		}),
		swept: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_swept_total",
			Help:      "Expired sessions removed by the sweeper.",
		}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method", "status"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"path", "method", "status"}),
	}
}

func (m *Metrics) Login() {
	if m == nil {
		return
	}
	m.logins.Inc()
}

func (m *Metrics) Refresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) Authenticate(result string) {
	if m == nil {
		return
	}
	m.authentics.WithLabelValues(result).Inc()
}

func (m *Metrics) SessionsRevoked(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.revoked.Add(float64(n))
}

func (m *Metrics) SessionsSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.swept.Add(float64(n))
}
