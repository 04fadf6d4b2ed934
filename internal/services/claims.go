package services

import (
	"strings"

	"github.com/permgate/permgate/internal/models"
	"github.com/permgate/permgate/internal/store"
)

// machineIdentityPrefix marks synthetic client_credentials subjects. Machine
// identities have no user record, so claim derivation short-circuits.
const machineIdentityPrefix = "client:"

// IsMachineIdentity reports whether a subject names a client acting for
// itself rather than a resource owner.
func IsMachineIdentity(subject string) bool {
	return strings.HasPrefix(subject, machineIdentityPrefix)
}

// deriveClaims resolves the claim names unlocked by the granted scopes and
// fills them from the current user record. Always called at issuance and
// refresh time rather than copied from older tokens, so attribute changes
// propagate into newly minted tokens.
func deriveClaims(s *store.Store, subject, scopes string) (models.JSONMap, error) {
	if IsMachineIdentity(subject) {
		return models.JSONMap{"sub": subject}, nil
	}

	scopeRecords, err := s.GetScopes(strings.Fields(scopes))
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, 8)
	seen := make(map[string]bool)
	for _, sc := range scopeRecords {
		for _, claim := range sc.Claims {
			if !seen[claim] {
				seen[claim] = true
				names = append(names, claim)
			}
		}
	}

	user, err := s.GetUser(subject)
	if err != nil {
		return nil, err
	}
	return models.JSONMap(user.Claims(names)), nil
}
