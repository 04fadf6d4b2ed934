package util

import (
	"crypto/sha256"
	"encoding/base64"
)

// ComputeSessionState derives the OIDC session-management session_state
// value binding a client, the caller's origin, and the browser session.
// Returns "" unless all three inputs are present.
func ComputeSessionState(clientID, originURL, sessionID string, saltLen int) (string, error) {
	if clientID == "" || originURL == "" || sessionID == "" {
		return "", nil
	}
	salt, err := RandomHex(saltLen)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(clientID + originURL + sessionID + salt))
	return base64.RawURLEncoding.EncodeToString(sum[:]) + "==." + salt, nil
}

// ValidateSessionState recomputes a session_state value against its embedded
// salt and reports whether it matches.
func ValidateSessionState(sessionState, clientID, originURL, sessionID string) bool {
	const sep = "==."
	idx := len(sessionState)
	for i := 0; i+len(sep) <= len(sessionState); i++ {
		if sessionState[i:i+len(sep)] == sep {
			idx = i
			break
		}
	}
	if idx == len(sessionState) {
		return false
	}
	salt := sessionState[idx+len(sep):]
	sum := sha256.Sum256([]byte(clientID + originURL + sessionID + salt))
	return base64.RawURLEncoding.EncodeToString(sum[:])+sep+salt == sessionState
}
