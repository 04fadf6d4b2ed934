package services

import (
	"context"
	"testing"
	"time"

	"github.com/permgate/permgate/internal/models"
	"github.com/permgate/permgate/internal/policy"
	"github.com/permgate/permgate/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test infrastructure

func newUMATestEnv(t *testing.T) (*store.Store, *UMAService, *TokenService) {
	t.Helper()
	s, cfg, ts := newTokenTestEnv(t)
	validator := policy.NewValidator(s, nil, ts.events, ts.metrics)
	us := NewUMAService(s, cfg, ts.provider, validator, ts.events, ts.metrics)
	return s, us, ts
}

func createUMAClient(t *testing.T, s *store.Store) *models.Client {
	t.Helper()
	return createTestClient(t, s, "urn:ietf:params:oauth:grant-type:uma-ticket", "read write")
}

// createOpenResource registers a resource set with no policies. Requests
// against it authorize unconditionally.
func createOpenResource(t *testing.T, s *store.Store, owner string) *models.ResourceSet {
	t.Helper()
	rs := &models.ResourceSet{
		ID:      uuid.New().String(),
		OwnerID: owner,
		Name:    "open resource",
		Scopes:  models.StringArray{"read", "write"},
	}
	require.NoError(t, s.CreateResourceSet(rs))
	return rs
}

func createTicket(t *testing.T, s *store.Store, expiresAt time.Time, lines ...models.TicketLine) *models.Ticket {
	t.Helper()
	ticket := &models.Ticket{
		ID:        uuid.New().String(),
		Lines:     lines,
		ExpiresAt: expiresAt,
	}
	require.NoError(t, s.CreateTicket(ticket))
	return ticket
}

// Ticket lifecycle

func TestExchangeTicket_TicketStates(t *testing.T) {
	s, us, _ := newUMATestEnv(t)
	client := createUMAClient(t, s)
	owner := createTestUser(t, s, "rs-owner", "pw")
	rs := createOpenResource(t, s, owner.ID)
	ctx := context.Background()

	t.Run("unknown ticket", func(t *testing.T) {
		_, err := us.ExchangeTicket(ctx, client, "no-such-ticket", "")
		assert.ErrorIs(t, err, ErrInvalidTicket)
	})

	t.Run("expired ticket", func(t *testing.T) {
		ticket := createTicket(t, s, time.Now().Add(-time.Minute),
			models.TicketLine{ResourceSetID: rs.ID, Scopes: "read"})
		_, err := us.ExchangeTicket(ctx, client, ticket.ID, "")
		assert.ErrorIs(t, err, ErrExpiredTicket)
	})

	t.Run("missing ticket parameter", func(t *testing.T) {
		_, err := us.ExchangeTicket(ctx, client, "", "")
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("grant not enabled for client", func(t *testing.T) {
		plain := createTestClient(t, s, "client_credentials", "read")
		ticket := createTicket(t, s, time.Now().Add(time.Minute),
			models.TicketLine{ResourceSetID: rs.ID, Scopes: "read"})
		_, err := us.ExchangeTicket(ctx, plain, ticket.ID, "")
		assert.ErrorIs(t, err, ErrInvalidGrant)
	})
}

func TestExchangeTicket_OpenResourceMintsRPT(t *testing.T) {
	s, us, ts := newUMATestEnv(t)
	client := createUMAClient(t, s)
	owner := createTestUser(t, s, "open-owner", "pw")
	rs := createOpenResource(t, s, owner.ID)
	ctx := context.Background()

	ticket := createTicket(t, s, time.Now().Add(time.Minute),
		models.TicketLine{ResourceSetID: rs.ID, Scopes: "read write"})

	result, err := us.ExchangeTicket(ctx, client, ticket.ID, "")
	require.NoError(t, err)
	assert.Equal(t, policy.Authorized, result.Outcome)
	require.NotNil(t, result.RPT)
	assert.Equal(t, models.TokenCategoryRPT, result.RPT.TokenCategory)
	assert.NotEmpty(t, result.RPT.Token)

	// The RPT is a first-class token: it validates like any other.
	validated, err := ts.ValidateToken(ctx, result.RPT.Token)
	require.NoError(t, err)
	assert.Equal(t, client.ClientID, validated.ClientID)

	// The RPT carries the granted permission lines in its "ticket" claim.
	perms, ok := validated.Claims["ticket"]
	require.True(t, ok, "rpt must embed its permission lines")
	assert.NotEmpty(t, perms)

	t.Run("consumed ticket cannot be redeemed twice", func(t *testing.T) {
		_, err := us.ExchangeTicket(ctx, client, ticket.ID, "")
		assert.ErrorIs(t, err, ErrInvalidTicket)
	})
}

func TestExchangeTicket_PolicyOutcomes(t *testing.T) {
	s, us, _ := newUMATestEnv(t)
	client := createUMAClient(t, s)
	owner := createTestUser(t, s, "policy-owner", "pw")
	ctx := context.Background()

	t.Run("need_info keeps the ticket alive", func(t *testing.T) {
		rs := &models.ResourceSet{
			ID:      uuid.New().String(),
			OwnerID: owner.ID,
			Name:    "claim gated",
			Scopes:  models.StringArray{"read"},
			Policies: []models.Policy{{
				Rules: []models.PolicyRule{{
					Scopes:         models.StringArray{"read"},
					Claims:         models.ClaimList{{Type: "role", Value: "admin"}},
					OpenIDProvider: "https://idp.example",
				}},
			}},
		}
		require.NoError(t, s.CreateResourceSet(rs))
		ticket := createTicket(t, s, time.Now().Add(time.Minute),
			models.TicketLine{ResourceSetID: rs.ID, Scopes: "read"})

		result, err := us.ExchangeTicket(ctx, client, ticket.ID, "")
		require.NoError(t, err)
		assert.Equal(t, policy.NeedInfo, result.Outcome)
		assert.Nil(t, result.RPT)
		require.Len(t, result.RequiredClaims, 1)
		assert.Equal(t, "role", result.RequiredClaims[0].Type)
		assert.Equal(t, "https://idp.example", result.RequiredClaims[0].Issuer)

		// Ticket survives a need_info outcome for the retry.
		_, err = s.GetTicket(ticket.ID)
		assert.NoError(t, err)
	})

	t.Run("client allow-list denies other clients", func(t *testing.T) {
		rs := &models.ResourceSet{
			ID:      uuid.New().String(),
			OwnerID: owner.ID,
			Name:    "client gated",
			Scopes:  models.StringArray{"read"},
			Policies: []models.Policy{{
				Rules: []models.PolicyRule{{
					Scopes:           models.StringArray{"read"},
					ClientIDsAllowed: models.StringArray{"someone-else"},
				}},
			}},
		}
		require.NoError(t, s.CreateResourceSet(rs))
		ticket := createTicket(t, s, time.Now().Add(time.Minute),
			models.TicketLine{ResourceSetID: rs.ID, Scopes: "read"})

		_, err := us.ExchangeTicket(ctx, client, ticket.ID, "")
		assert.ErrorIs(t, err, ErrRequestDenied)
	})

	t.Run("owner consent gate submits the request", func(t *testing.T) {
		rs := &models.ResourceSet{
			ID:      uuid.New().String(),
			OwnerID: owner.ID,
			Name:    "consent gated",
			Scopes:  models.StringArray{"read"},
			Policies: []models.Policy{{
				Rules: []models.PolicyRule{{
					Scopes:                       models.StringArray{"read"},
					IsResourceOwnerConsentNeeded: true,
				}},
			}},
		}
		require.NoError(t, s.CreateResourceSet(rs))

		// Pending approval: RequestSubmitted still mints an RPT so the
		// requesting party can poll the resource.
		ticket := createTicket(t, s, time.Now().Add(time.Minute),
			models.TicketLine{ResourceSetID: rs.ID, Scopes: "read"})
		result, err := us.ExchangeTicket(ctx, client, ticket.ID, "")
		require.NoError(t, err)
		assert.Equal(t, policy.RequestSubmitted, result.Outcome)
		require.NotNil(t, result.RPT)

		// Approved ticket authorizes outright.
		approved := &models.Ticket{
			ID:               uuid.New().String(),
			Lines:            []models.TicketLine{{ResourceSetID: rs.ID, Scopes: "read"}},
			IsAuthorizedByRO: true,
			ExpiresAt:        time.Now().Add(time.Minute),
		}
		require.NoError(t, s.CreateTicket(approved))
		result, err = us.ExchangeTicket(ctx, client, approved.ID, "")
		require.NoError(t, err)
		assert.Equal(t, policy.Authorized, result.Outcome)
	})

	t.Run("every line must authorize", func(t *testing.T) {
		open := createOpenResource(t, s, owner.ID)
		gated := &models.ResourceSet{
			ID:      uuid.New().String(),
			OwnerID: owner.ID,
			Name:    "gated line",
			Scopes:  models.StringArray{"read"},
			Policies: []models.Policy{{
				Rules: []models.PolicyRule{{
					Scopes:           models.StringArray{"read"},
					ClientIDsAllowed: models.StringArray{"someone-else"},
				}},
			}},
		}
		require.NoError(t, s.CreateResourceSet(gated))

		ticket := createTicket(t, s, time.Now().Add(time.Minute),
			models.TicketLine{ResourceSetID: open.ID, Scopes: "read", Position: 0},
			models.TicketLine{ResourceSetID: gated.ID, Scopes: "read", Position: 1})

		_, err := us.ExchangeTicket(ctx, client, ticket.ID, "")
		assert.ErrorIs(t, err, ErrRequestDenied, "one denied line denies the whole ticket")
	})
}

func TestExchangeTicket_RPTScopesAndPermissions(t *testing.T) {
	s, us, ts := newUMATestEnv(t)
	client := createUMAClient(t, s)
	owner := createTestUser(t, s, "perm-owner", "pw")
	docs := createOpenResource(t, s, owner.ID)
	ctx := context.Background()

	ticket := createTicket(t, s, time.Now().Add(time.Minute),
		models.TicketLine{ResourceSetID: docs.ID, Scopes: "read"})

	result, err := us.ExchangeTicket(ctx, client, ticket.ID, "")
	require.NoError(t, err)
	require.NotNil(t, result.RPT)
	assert.Equal(t, "read", result.RPT.Scopes)

	validated, err := ts.ValidateToken(ctx, result.RPT.Token)
	require.NoError(t, err)

	perms, ok := validated.Claims["ticket"].([]any)
	require.True(t, ok)
	require.Len(t, perms, 1)
	line, ok := perms[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, docs.ID, line["resource_set_id"])
}
