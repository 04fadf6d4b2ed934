package core

import "time"

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Token operations
	RecordTokenIssued(tokenType, grantType string, generationTime time.Duration)
	RecordTokenReused(grantType string)
	RecordTokenRevoked(tokenType, reason string)
	RecordTokenRefresh(success bool)
	RecordTokenValidation(result string, duration time.Duration)

	// Client authentication
	RecordClientAuthentication(method string, success bool)

	// Authorization endpoint
	RecordAuthorizationRequest(flow, result string)
	RecordConsentGranted()

	// UMA
	RecordTicketExchange(result string, duration time.Duration)
	RecordPolicyDecision(outcome string)

	// Device flow
	RecordDeviceCodeGenerated(success bool)
	RecordDeviceCodeValidation(result string)

	// JWKS resolution
	RecordJWKSResolution(authority string, cacheHit bool)

	// Gauge setters (for periodic updates)
	SetActiveTokensCount(tokenType string, count int)

	// Database operations
	RecordDatabaseQueryError(operation string)
}
