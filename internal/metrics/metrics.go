// Package metrics defines the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Search kinds.
const (
	SearchPhone = "phone"
	SearchName  = "name"
)

// Metrics tracks directory and auth activity. A nil *Metrics records nothing.
type Metrics struct {
	Registrations    prometheus.Counter
	Searches         *prometheus.CounterVec
	SpamReports      prometheus.Counter
	ContactsImported prometheus.Counter
	OTPIssued        prometheus.Counter
	RequestDuration  *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers all collectors with reg and returns them.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Registrations: f.NewCounter(prometheus.CounterOpts{
			Name: "authentic_caller_registrations_total",
			Help: "Total number of self-registered accounts",
		}),
		Searches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "authentic_caller_searches_total",
			Help: "Directory searches by query kind",
		}, []string{"kind"}),
		SpamReports: f.NewCounter(prometheus.CounterOpts{
			Name: "authentic_caller_spam_reports_total",
			Help: "Total number of accepted spam reports",
		}),
		ContactsImported: f.NewCounter(prometheus.CounterOpts{
			Name: "authentic_caller_contacts_imported_total",
			Help: "Address book entries stored by uploads",
		}),
		OTPIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "authentic_caller_otp_issued_total",
			Help: "One-time password reset codes issued",
		}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authentic_caller_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "method", "status"}),
		gatherer: reg,
	}
}

// IncRegistration records a new account.
func (m *Metrics) IncRegistration() {
	if m == nil {
		return
	}
	m.Registrations.Inc()
}

// IncSearch records a search of the given kind.
func (m *Metrics) IncSearch(kind string) {
	if m == nil {
		return
	}
	m.Searches.WithLabelValues(kind).Inc()
}

// IncSpamReport records an accepted spam report.
func (m *Metrics) IncSpamReport() {
	if m == nil {
		return
	}
	m.SpamReports.Inc()
}

// AddImported records n stored address book entries.
func (m *Metrics) AddImported(n int) {
	if m == nil {
		return
	}
	m.ContactsImported.Add(float64(n))
}

// IncOTPIssued records an issued one-time code.
func (m *Metrics) IncOTPIssued() {
	if m == nil {
		return
	}
	m.OTPIssued.Inc()
}

// ObserveRequest records the latency of one HTTP request.
// Call with time.Now() taken before the handler ran.
func (m *Metrics) ObserveRequest(route, method string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
