package metrics

import "time"

const (
	resultSuccess = "success"
	resultError   = "error"
	resultFailure = "failure"
)

// RecordTokenIssued records token issuance
func (m *Metrics) RecordTokenIssued(tokenType, grantType string, generationTime time.Duration) {
	m.TokensIssuedTotal.WithLabelValues(tokenType, grantType).Inc()
	m.TokensActive.WithLabelValues(tokenType).Inc()
	m.TokenGenerationDuration.WithLabelValues(grantType).Observe(generationTime.Seconds())
}

// RecordTokenReused records an issuance satisfied by the reuse lookup
func (m *Metrics) RecordTokenReused(grantType string) {
	m.TokensReusedTotal.WithLabelValues(grantType).Inc()
}

// RecordTokenRevoked records token revocation
func (m *Metrics) RecordTokenRevoked(tokenType, reason string) {
	m.TokensRevokedTotal.WithLabelValues(reason).Inc()
	m.TokensActive.WithLabelValues(tokenType).Dec()
}

// RecordTokenRefresh records a token refresh attempt
func (m *Metrics) RecordTokenRefresh(success bool) {
	result := resultSuccess
	if !success {
		result = resultError
	}
	m.TokensRefreshedTotal.WithLabelValues(result).Inc()
}

// RecordTokenValidation records token validation
func (m *Metrics) RecordTokenValidation(result string, duration time.Duration) {
	m.TokenValidationTotal.WithLabelValues(result).Inc()
	m.TokenValidationDuration.Observe(duration.Seconds())
}

// RecordClientAuthentication records a client authentication attempt
func (m *Metrics) RecordClientAuthentication(method string, success bool) {
	result := resultSuccess
	if !success {
		result = resultFailure
	}
	m.ClientAuthTotal.WithLabelValues(method, result).Inc()
}

// RecordAuthorizationRequest records an authorization endpoint request
func (m *Metrics) RecordAuthorizationRequest(flow, result string) {
	m.AuthorizationRequestsTotal.WithLabelValues(flow, result).Inc()
}

// RecordConsentGranted records a resource-owner consent grant
func (m *Metrics) RecordConsentGranted() {
	m.ConsentsGrantedTotal.Inc()
}

// RecordTicketExchange records a uma-ticket grant exchange
func (m *Metrics) RecordTicketExchange(result string, duration time.Duration) {
	m.TicketExchangesTotal.WithLabelValues(result).Inc()
	m.TicketExchangeDuration.Observe(duration.Seconds())
}

// RecordPolicyDecision records a policy evaluation outcome
func (m *Metrics) RecordPolicyDecision(outcome string) {
	m.PolicyDecisionsTotal.WithLabelValues(outcome).Inc()
}

// RecordDeviceCodeGenerated records device code generation
func (m *Metrics) RecordDeviceCodeGenerated(success bool) {
	result := resultSuccess
	if !success {
		result = resultError
	}
	m.DeviceCodesTotal.WithLabelValues(result).Inc()
}

// RecordDeviceCodeValidation records device code validation result
func (m *Metrics) RecordDeviceCodeValidation(result string) {
	// result: success, expired, invalid, pending
	m.DeviceCodeValidationTotal.WithLabelValues(result).Inc()
}

// RecordJWKSResolution records an external JWKS resolution
func (m *Metrics) RecordJWKSResolution(authority string, cacheHit bool) {
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	m.JWKSResolutionsTotal.WithLabelValues(authority, cache).Inc()
}

// SetActiveTokensCount sets the current count of active tokens (for periodic updates)
func (m *Metrics) SetActiveTokensCount(tokenType string, count int) {
	m.TokensActive.WithLabelValues(tokenType).Set(float64(count))
}

// RecordDatabaseQueryError records a database query error during metric collection
func (m *Metrics) RecordDatabaseQueryError(operation string) {
	m.DatabaseQueryErrorsTotal.WithLabelValues(operation).Inc()
}
