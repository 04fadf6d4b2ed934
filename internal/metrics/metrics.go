package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/permgate/permgate/internal/core"
)

// Ensure Metrics implements core.Recorder at compile time
var _ core.Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Token Metrics
	TokensIssuedTotal       *prometheus.CounterVec
	TokensReusedTotal       *prometheus.CounterVec
	TokensRevokedTotal      *prometheus.CounterVec
	TokensRefreshedTotal    *prometheus.CounterVec
	TokenValidationTotal    *prometheus.CounterVec
	TokensActive            *prometheus.GaugeVec
	TokenGenerationDuration *prometheus.HistogramVec
	TokenValidationDuration prometheus.Histogram

	// Client Authentication Metrics
	ClientAuthTotal *prometheus.CounterVec

	// Authorization Endpoint Metrics
	AuthorizationRequestsTotal *prometheus.CounterVec
	ConsentsGrantedTotal       prometheus.Counter

	// UMA Metrics
	TicketExchangesTotal   *prometheus.CounterVec
	TicketExchangeDuration prometheus.Histogram
	PolicyDecisionsTotal   *prometheus.CounterVec

	// Device Flow Metrics
	DeviceCodesTotal          *prometheus.CounterVec
	DeviceCodeValidationTotal *prometheus.CounterVec

	// JWKS Resolution Metrics
	JWKSResolutionsTotal *prometheus.CounterVec

	// HTTP Request Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Database Query Metrics
	DatabaseQueryErrorsTotal *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag.
// If enabled=true, returns Prometheus-based Metrics.
// If enabled=false, returns NoopMetrics (zero overhead).
// Uses sync.Once to ensure Prometheus metrics are only registered once.
func Init(enabled bool) core.Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

// initMetrics creates and registers all Prometheus metrics
func initMetrics() *Metrics {
	m := &Metrics{
		// Token Metrics
		TokensIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_issued_total",
				Help: "Total number of tokens issued",
			},
			[]string{
				"token_type",
				"grant_type",
			}, // token_type: access, refresh, rpt
		),
		TokensReusedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_reused_total",
				Help: "Total number of issuances satisfied by the reuse lookup",
			},
			[]string{"grant_type"},
		),
		TokensRevokedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_revoked_total",
				Help: "Total number of tokens revoked",
			},
			[]string{"reason"}, // client_request, rotation, cascade
		),
		TokensRefreshedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_refreshed_total",
				Help: "Total number of token refresh attempts",
			},
			[]string{"result"}, // success, error
		),
		TokenValidationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_token_validation_total",
				Help: "Total number of token validations",
			},
			[]string{"result"}, // success, invalid, expired, revoked, unknown
		),
		TokensActive: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "oauth_tokens_active",
				Help: "Current number of active tokens",
			},
			[]string{"token_type"}, // access, refresh, rpt
		),
		TokenGenerationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oauth_token_generation_duration_seconds",
				Help:    "Time taken to generate tokens",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"grant_type"},
		),
		TokenValidationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "oauth_token_validation_duration_seconds",
				Help:    "Time taken to validate tokens",
				Buckets: prometheus.DefBuckets,
			},
		),

		// Client Authentication Metrics
		ClientAuthTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_client_authentications_total",
				Help: "Total number of client authentication attempts",
			},
			[]string{
				"method",
				"result",
			}, // method: client_secret_basic, client_secret_post, private_key_jwt, tls_client_auth
		),

		// Authorization Endpoint Metrics
		AuthorizationRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_authorization_requests_total",
				Help: "Total number of authorization endpoint requests",
			},
			[]string{
				"flow",
				"result",
			}, // flow: authorization_code, implicit, hybrid; result: success, consent_required, rejected, error
		),
		ConsentsGrantedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "oauth_consents_granted_total",
				Help: "Total number of consents granted by resource owners",
			},
		),

		// UMA Metrics
		TicketExchangesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uma_ticket_exchanges_total",
				Help: "Total number of uma-ticket grant exchanges",
			},
			[]string{"result"}, // authorized, request_submitted, need_info, request_denied, invalid_ticket, expired_ticket, internal_error
		),
		TicketExchangeDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "uma_ticket_exchange_duration_seconds",
				Help:    "Time taken to evaluate and exchange a permission ticket",
				Buckets: prometheus.DefBuckets,
			},
		),
		PolicyDecisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uma_policy_decisions_total",
				Help: "Total number of policy evaluation outcomes",
			},
			[]string{"outcome"}, // authorized, not_authorized, request_submitted, need_info
		),

		// Device Flow Metrics
		DeviceCodesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_device_codes_total",
				Help: "Total number of device codes generated",
			},
			[]string{"result"}, // success, error
		),
		DeviceCodeValidationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_device_code_validation_total",
				Help: "Total number of device code validations",
			},
			[]string{"result"}, // success, expired, invalid, pending
		),

		// JWKS Resolution Metrics
		JWKSResolutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jwks_resolutions_total",
				Help: "Total number of external JWKS resolutions",
			},
			[]string{"authority", "cache"}, // cache: hit, miss
		),

		// HTTP Request Metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request latency in seconds",
				Buckets: []float64{
					0.001,
					0.005,
					0.010,
					0.025,
					0.050,
					0.100,
					0.250,
					0.500,
					1.0,
					2.5,
					5.0,
					10.0,
				},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being served",
			},
		),

		// Database Query Metrics
		DatabaseQueryErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_query_errors_total",
				Help: "Total number of database query errors during metric collection",
			},
			[]string{"operation"},
		),
	}

	return m
}
