package metrics

import (
	"time"

	"github.com/permgate/permgate/internal/core"
)

// Ensure NoopMetrics implements core.Recorder at compile time
var _ core.Recorder = (*NoopMetrics)(nil)

// NoopMetrics is a no-op recorder used when metrics are disabled.
type NoopMetrics struct{}

// NewNoopMetrics creates a new no-op metrics recorder
func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordTokenIssued(tokenType, grantType string, generationTime time.Duration) {
}
func (n *NoopMetrics) RecordTokenReused(grantType string)                          {}
func (n *NoopMetrics) RecordTokenRevoked(tokenType, reason string)                 {}
func (n *NoopMetrics) RecordTokenRefresh(success bool)                             {}
func (n *NoopMetrics) RecordTokenValidation(result string, duration time.Duration) {}
func (n *NoopMetrics) RecordClientAuthentication(method string, success bool)      {}
func (n *NoopMetrics) RecordAuthorizationRequest(flow, result string)              {}
func (n *NoopMetrics) RecordConsentGranted()                                       {}
func (n *NoopMetrics) RecordTicketExchange(result string, duration time.Duration)  {}
func (n *NoopMetrics) RecordPolicyDecision(outcome string)                         {}
func (n *NoopMetrics) RecordDeviceCodeGenerated(success bool)                      {}
func (n *NoopMetrics) RecordDeviceCodeValidation(result string)                    {}
func (n *NoopMetrics) RecordJWKSResolution(authority string, cacheHit bool)        {}
func (n *NoopMetrics) SetActiveTokensCount(tokenType string, count int)            {}
func (n *NoopMetrics) RecordDatabaseQueryError(operation string)                   {}
