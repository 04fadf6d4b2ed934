package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/permgate/permgate/internal/config"
	"github.com/permgate/permgate/internal/core"
	"github.com/permgate/permgate/internal/events"
	"github.com/permgate/permgate/internal/models"
	"github.com/permgate/permgate/internal/policy"
	"github.com/permgate/permgate/internal/store"
	"github.com/permgate/permgate/internal/token"
)

// UMAService runs the uma-ticket grant: ticket lookup, policy evaluation,
// RPT minting, and ticket consumption.
type UMAService struct {
	store     *store.Store
	config    *config.Config
	provider  *token.Provider
	validator *policy.Validator
	events    *events.Publisher
	metrics   core.Recorder
}

func NewUMAService(
	s *store.Store,
	cfg *config.Config,
	provider *token.Provider,
	validator *policy.Validator,
	publisher *events.Publisher,
	m core.Recorder,
) *UMAService {
	return &UMAService{
		store:     s,
		config:    cfg,
		provider:  provider,
		validator: validator,
		events:    publisher,
		metrics:   m,
	}
}

// TicketExchangeResult is the outcome of an uma-ticket grant. On success RPT
// is set; a NeedInfo outcome instead carries the claims the caller must
// obtain and retry with.
type TicketExchangeResult struct {
	RPT            *models.GrantedToken
	Outcome        policy.Outcome
	RequiredClaims []policy.RequiredClaim
}

// ExchangeTicket redeems a permission ticket for an RPT. Authorized and
// RequestSubmitted both mint an RPT and consume the ticket; NotAuthorized
// returns ErrRequestDenied; NeedInfo returns the required-claims detail
// without consuming the ticket.
func (s *UMAService) ExchangeTicket(
	ctx context.Context,
	client *models.Client,
	ticketID, claimToken string,
) (*TicketExchangeResult, error) {
	start := time.Now()

	if ticketID == "" {
		return nil, fmt.Errorf("%w: ticket is required", ErrInvalidRequest)
	}
	if !client.HasGrantType(GrantTypeUMATicket) {
		return nil, fmt.Errorf("%w: uma-ticket grant not enabled for client", ErrInvalidGrant)
	}

	ticket, err := s.store.GetTicket(ticketID)
	if err != nil {
		s.metrics.RecordTicketExchange("invalid_ticket", time.Since(start))
		return nil, ErrInvalidTicket
	}
	if ticket.IsExpired() {
		s.metrics.RecordTicketExchange("expired_ticket", time.Since(start))
		return nil, ErrExpiredTicket
	}

	result, err := s.validator.Evaluate(ctx, ticket, client.ClientID, claimToken)
	if err != nil {
		if errors.Is(err, policy.ErrEmptyTicket) || errors.Is(err, policy.ErrResourceSetMissing) {
			s.metrics.RecordTicketExchange("internal_error", time.Since(start))
			return nil, fmt.Errorf("%w: %v", ErrInternal, err)
		}
		return nil, err
	}

	switch result.Outcome {
	case policy.Authorized, policy.RequestSubmitted:
		rpt, err := s.mintRPT(ctx, client, ticket)
		if err != nil {
			return nil, err
		}
		s.metrics.RecordTicketExchange(result.Outcome.String(), time.Since(start))
		return &TicketExchangeResult{RPT: rpt, Outcome: result.Outcome}, nil

	case policy.NeedInfo:
		s.metrics.RecordTicketExchange("need_info", time.Since(start))
		return &TicketExchangeResult{
			Outcome:        policy.NeedInfo,
			RequiredClaims: result.RequiredClaims,
		}, nil

	default:
		s.metrics.RecordTicketExchange("request_denied", time.Since(start))
		return nil, ErrRequestDenied
	}
}

// mintRPT generates and persists the requesting-party token, then removes
// the consumed ticket. A concurrent exchange of the same ticket loses the
// conditional delete and gets ErrInvalidTicket.
func (s *UMAService) mintRPT(
	ctx context.Context,
	client *models.Client,
	ticket *models.Ticket,
) (*models.GrantedToken, error) {
	lines := make([]token.PermissionLine, 0, len(ticket.Lines))
	scopeSet := make(map[string]bool)
	for _, line := range ticket.Lines {
		scopes := strings.Fields(line.Scopes)
		lines = append(lines, token.PermissionLine{
			ResourceSetID: line.ResourceSetID,
			Scopes:        scopes,
		})
		for _, sc := range scopes {
			scopeSet[sc] = true
		}
	}
	allScopes := make([]string, 0, len(scopeSet))
	for sc := range scopeSet {
		allScopes = append(allScopes, sc)
	}
	scopes := strings.Join(allScopes, " ")

	subject := machineIdentityPrefix + client.ClientID
	result, err := s.provider.GenerateRPT(
		ctx, subject, client.ClientID, scopes, lines,
		client.TokenLifetime(s.config.JWTExpiration),
	)
	if err != nil {
		return nil, fmt.Errorf("rpt generation failed: %w", err)
	}

	granted := &models.GrantedToken{
		ID:            uuid.New().String(),
		Token:         result.TokenString,
		TokenType:     result.TokenType,
		TokenCategory: models.TokenCategoryRPT,
		Status:        models.TokenStatusActive,
		UserID:        subject,
		ClientID:      client.ClientID,
		Scopes:        scopes,
		GrantType:     GrantTypeUMATicket,
		ExpiresAt:     result.ExpiresAt,
	}
	if err := s.store.AddToken(granted); err != nil {
		return nil, fmt.Errorf("failed to save rpt: %w", err)
	}

	// Consume the ticket exactly once.
	if err := s.store.RemoveTicket(ticket.ID); err != nil {
		if errors.Is(err, store.ErrTicketAlreadyConsumed) {
			_ = s.store.RevokeToken(granted.ID)
			return nil, ErrInvalidTicket
		}
		return nil, err
	}

	s.metrics.RecordTokenIssued(models.TokenCategoryRPT, GrantTypeUMATicket, 0)
	s.events.Publish(ctx, events.Event{
		Type:     models.EventRPTGranted,
		Severity: models.SeverityInfo,
		ActorID:  subject,
		ClientID: client.ClientID,
		TargetID: granted.ID,
		Details: models.EventDetails{
			"scopes":    scopes,
			"ticket_id": ticket.ID,
		},
	})
	s.events.Publish(ctx, events.Event{
		Type:     models.EventTicketConsumed,
		Severity: models.SeverityInfo,
		ClientID: client.ClientID,
		TargetID: ticket.ID,
	})

	return granted, nil
}
