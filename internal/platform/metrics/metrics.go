package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	CredentialsMinted   prometheus.Counter
	AttestationFailures *prometheus.CounterVec
	Revocations         prometheus.Counter
	Verifications       *prometheus.CounterVec
	AnchorRuns          *prometheus.CounterVec
	RevokedSetSize      prometheus.Gauge
	EndpointLatency     *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CredentialsMinted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agetoken_credentials_minted_total",
			Help: "Total number of credentials minted",
		}),
		AttestationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agetoken_attestation_failures_total",
			Help: "Total number of failed device attestations, labeled by reason",
		}, []string{"reason"}),
		Revocations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agetoken_revocations_total",
			Help: "Total number of credential hashes added to the revocation set",
		}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agetoken_verifications_total",
			Help: "Total number of credential verifications, labeled by result",
		}, []string{"result"}),
		AnchorRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agetoken_anchor_runs_total",
			Help: "Total number of ledger anchor cycles, labeled by result",
		}, []string{"result"}),
		RevokedSetSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "agetoken_revoked_set_size",
			Help: "Current number of entries in the revocation accumulator",
		}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agetoken_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

// IncrementCredentialsMinted increments the minted credentials counter.
func (m *Metrics) IncrementCredentialsMinted() {
	if m != nil {
		m.CredentialsMinted.Inc()
	}
}

// IncrementAttestationFailures increments the attestation failure counter for a reason.
func (m *Metrics) IncrementAttestationFailures(reason string) {
	if m != nil {
		m.AttestationFailures.WithLabelValues(reason).Inc()
	}
}

// IncrementRevocations increments the revocation counter.
func (m *Metrics) IncrementRevocations() {
	if m != nil {
		m.Revocations.Inc()
	}
}

// IncrementVerifications increments the verification counter for a result
// (accepted, signature_invalid, credential_expired, credential_revoked, ...).
func (m *Metrics) IncrementVerifications(result string) {
	if m != nil {
		m.Verifications.WithLabelValues(result).Inc()
	}
}

// IncrementAnchorRuns records an anchor cycle outcome (published, skipped, failed).
func (m *Metrics) IncrementAnchorRuns(result string) {
	if m != nil {
		m.AnchorRuns.WithLabelValues(result).Inc()
	}
}

// SetRevokedSetSize records the current accumulator size.
func (m *Metrics) SetRevokedSetSize(n int) {
	if m != nil {
		m.RevokedSetSize.Set(float64(n))
	}
}

// ObserveEndpointLatency records the latency of an endpoint in seconds.
func (m *Metrics) ObserveEndpointLatency(endpoint string, seconds float64) {
	if m != nil {
		m.EndpointLatency.WithLabelValues(endpoint).Observe(seconds)
	}
}
