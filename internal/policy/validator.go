package policy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/permgate/permgate/internal/core"
	"github.com/permgate/permgate/internal/events"
	"github.com/permgate/permgate/internal/jwks"
	"github.com/permgate/permgate/internal/models"
	"github.com/permgate/permgate/internal/store"
)

var (
	// ErrEmptyTicket indicates a ticket with no lines reached evaluation
	ErrEmptyTicket = errors.New("ticket has no lines")

	// ErrResourceSetMissing indicates a ticket references a resource set that
	// no longer exists. Treated as a server consistency fault, never as a
	// policy denial.
	ErrResourceSetMissing = errors.New("ticket references unknown resource set")
)

// Validator evaluates a permission ticket against the policies of the
// resource sets it references. Every line must authorize (AND across lines);
// within one resource, the first rule that fully authorizes wins (OR across
// rules). A resource with no policy rules is open.
type Validator struct {
	store    *store.Store
	resolver *jwks.Resolver
	events   *events.Publisher
	metrics  core.Recorder
}

func NewValidator(s *store.Store, r *jwks.Resolver, p *events.Publisher, m core.Recorder) *Validator {
	return &Validator{store: s, resolver: r, events: p, metrics: m}
}

// Evaluate decides whether clientID may be granted the scopes a ticket asks
// for. claimToken is the optional claims-bearing ID token supplied by the
// requesting party; rules that require claims return NeedInfo when it is
// absent or unusable.
func (v *Validator) Evaluate(
	ctx context.Context,
	ticket *models.Ticket,
	clientID, claimToken string,
) (Result, error) {
	if len(ticket.Lines) == 0 {
		return Result{}, ErrEmptyTicket
	}

	ids := make([]string, 0, len(ticket.Lines))
	for _, line := range ticket.Lines {
		ids = append(ids, line.ResourceSetID)
	}
	resourceSets, err := v.store.GetResourceSets(ids)
	if err != nil {
		return Result{}, err
	}

	for _, line := range ticket.Lines {
		rs, ok := resourceSets[line.ResourceSetID]
		if !ok {
			return Result{}, fmt.Errorf("%w: %s", ErrResourceSetMissing, line.ResourceSetID)
		}

		result := v.evaluateLine(ctx, ticket, line, rs, clientID, claimToken)
		if result.Outcome != Authorized {
			v.publishOutcome(ctx, ticket, clientID, rs.ID, result.Outcome)
			v.metrics.RecordPolicyDecision(result.Outcome.String())
			return result, nil
		}
	}

	v.metrics.RecordPolicyDecision(Authorized.String())
	return authorized(), nil
}

// evaluateLine evaluates one ticket line against its resource's policies.
func (v *Validator) evaluateLine(
	ctx context.Context,
	ticket *models.Ticket,
	line models.TicketLine,
	rs *models.ResourceSet,
	clientID, claimToken string,
) Result {
	rules := 0
	for _, p := range rs.Policies {
		rules += len(p.Rules)
	}
	if rules == 0 {
		// Open resource.
		return authorized()
	}

	requested := strings.Fields(line.Scopes)

	// First rule that fully authorizes wins. A NeedInfo or RequestSubmitted
	// from an earlier rule is kept as the answer only when no later rule
	// authorizes outright.
	var pending *Result
	for _, p := range rs.Policies {
		for _, rule := range p.Rules {
			result := v.evaluateRule(ctx, ticket, rule, requested, clientID, claimToken)
			if result.Outcome == Authorized {
				return result
			}
			if pending == nil && result.Outcome != NotAuthorized {
				r := result
				pending = &r
			}
		}
	}
	if pending != nil {
		return *pending
	}
	return notAuthorized()
}

// evaluateRule applies one rule's checks in order: scope containment, client
// allow-list, required claims, resource-owner consent gate.
func (v *Validator) evaluateRule(
	ctx context.Context,
	ticket *models.Ticket,
	rule models.PolicyRule,
	requestedScopes []string,
	clientID, claimToken string,
) Result {
	allowed := make(map[string]bool, len(rule.Scopes))
	for _, s := range rule.Scopes {
		allowed[s] = true
	}
	for _, s := range requestedScopes {
		if !allowed[s] {
			return notAuthorized()
		}
	}

	if len(rule.ClientIDsAllowed) > 0 {
		permitted := false
		for _, id := range rule.ClientIDsAllowed {
			if id == clientID {
				permitted = true
				break
			}
		}
		if !permitted {
			return notAuthorized()
		}
	}

	if len(rule.Claims) > 0 {
		if result, ok := v.checkClaims(ctx, rule, claimToken); !ok {
			return result
		}
	}

	if rule.IsResourceOwnerConsentNeeded && !ticket.IsAuthorizedByRO {
		return submitted()
	}

	return authorized()
}

// checkClaims verifies the claim token against the rule's OpenID provider and
// matches each required claim. Returns ok=true when every claim matched.
func (v *Validator) checkClaims(
	ctx context.Context,
	rule models.PolicyRule,
	claimToken string,
) (Result, bool) {
	if claimToken == "" || !looksLikeJWT(claimToken) {
		return needInfo(requiredClaims(rule)), false
	}

	parsed, err := jwt.Parse(claimToken, v.resolver.Keyfunc(ctx, rule.OpenIDProvider))
	if err != nil || !parsed.Valid {
		log.Printf("[Policy] claim token rejected for provider %s: %v", rule.OpenIDProvider, err)
		return needInfo(requiredClaims(rule)), false
	}
	payload, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return needInfo(requiredClaims(rule)), false
	}

	for _, required := range rule.Claims {
		value, present := payload[required.Type]
		if !present || !claimMatches(value, required.Value) {
			return notAuthorized(), false
		}
	}
	return authorized(), true
}

// claimMatches compares a decoded claim value with the expected one.
// Array-valued claims match when any element equals the expected value.
func claimMatches(value any, expected string) bool {
	switch v := value.(type) {
	case string:
		return v == expected
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == expected {
				return true
			}
		}
		return false
	default:
		return fmt.Sprintf("%v", v) == expected
	}
}

func requiredClaims(rule models.PolicyRule) []RequiredClaim {
	out := make([]RequiredClaim, 0, len(rule.Claims))
	for _, c := range rule.Claims {
		out = append(out, RequiredClaim{
			Type:         c.Type,
			FriendlyName: c.Type,
			Issuer:       rule.OpenIDProvider,
		})
	}
	return out
}

// looksLikeJWT reports whether a compact serialization has the three-part
// JWS shape a claim token must have.
func looksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}

func (v *Validator) publishOutcome(
	ctx context.Context,
	ticket *models.Ticket,
	clientID, resourceSetID string,
	outcome Outcome,
) {
	var eventType models.EventType
	switch outcome {
	case NotAuthorized:
		eventType = models.EventAuthorizationPolicyDenied
	case NeedInfo:
		eventType = models.EventAuthorizationPolicyNeedInfo
	case RequestSubmitted:
		eventType = models.EventAuthorizationPolicySubmitted
	default:
		return
	}
	v.events.Publish(ctx, events.Event{
		Type:     eventType,
		Severity: models.SeverityWarning,
		ClientID: clientID,
		TargetID: resourceSetID,
		Details: models.EventDetails{
			"ticket_id": ticket.ID,
			"outcome":   outcome.String(),
		},
	})
}
