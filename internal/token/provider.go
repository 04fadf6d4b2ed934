package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/permgate/permgate/internal/config"
)

// Provider generates and validates the server's own JWTs. Access, refresh
// and requesting-party tokens are all HS256-signed with the server secret;
// the "type" claim keeps the categories apart at validation time.
type Provider struct {
	config *config.Config
	parser *Parser
}

// NewProvider creates a token provider bound to the server configuration.
func NewProvider(cfg *config.Config) *Provider {
	return &Provider{config: cfg, parser: NewParser(cfg)}
}

// generateJWT creates a signed JWT with the given claims and expiration.
func (p *Provider) generateJWT(
	subject, clientID, scopes, tokenType string,
	expiresAt time.Time,
	extra map[string]any,
) (*Result, error) {
	claims := jwt.MapClaims{
		"user_id":   subject,
		"client_id": clientID,
		"scope":     scopes,
		"type":      tokenType,
		"exp":       expiresAt.Unix(),
		"iat":       time.Now().Unix(),
		"iss":       p.config.BaseURL,
		"sub":       subject,
		"jti":       uuid.New().String(),
	}
	for k, v := range extra {
		if _, reserved := claims[k]; !reserved {
			claims[k] = v
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(p.config.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}

	return &Result{
		TokenString: tokenString,
		TokenType:   TokenTypeBearer,
		ExpiresAt:   expiresAt,
		Claims:      claims,
		Success:     true,
	}, nil
}

// GenerateToken creates an access token. lifetime <= 0 falls back to the
// server default; clients may register a shorter per-client lifetime.
func (p *Provider) GenerateToken(
	ctx context.Context,
	subject, clientID, scopes string,
	lifetime time.Duration,
) (*Result, error) {
	if lifetime <= 0 {
		lifetime = p.config.JWTExpiration
	}
	expiresAt := time.Now().Add(lifetime)
	return p.generateJWT(subject, clientID, scopes, typeAccess, expiresAt, nil)
}

// GenerateRefreshToken creates a refresh token with the longer refresh expiry.
func (p *Provider) GenerateRefreshToken(
	ctx context.Context,
	subject, clientID, scopes string,
) (*Result, error) {
	expiresAt := time.Now().Add(p.config.RefreshTokenExpiration)
	return p.generateJWT(subject, clientID, scopes, typeRefresh, expiresAt, nil)
}

// GenerateRPT creates a requesting-party token carrying the authorized
// permission lines under the "ticket" claim.
func (p *Provider) GenerateRPT(
	ctx context.Context,
	subject, clientID, scopes string,
	lines []PermissionLine,
	lifetime time.Duration,
) (*Result, error) {
	if lifetime <= 0 {
		lifetime = p.config.JWTExpiration
	}
	expiresAt := time.Now().Add(lifetime)
	return p.generateJWT(subject, clientID, scopes, typeRPT, expiresAt, map[string]any{
		"ticket": lines,
	})
}

// ValidateToken verifies an access token or RPT signed by this server.
func (p *Provider) ValidateToken(
	ctx context.Context,
	tokenString string,
) (*ValidationResult, error) {
	claims, err := p.parse(tokenString)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	tokenType, _ := claims["type"].(string)
	if tokenType != typeAccess && tokenType != typeRPT {
		return nil, ErrInvalidToken
	}
	return p.toValidationResult(claims, ErrInvalidToken)
}

// ValidateRefreshToken verifies a refresh token signed by this server.
func (p *Provider) ValidateRefreshToken(
	ctx context.Context,
	tokenString string,
) (*ValidationResult, error) {
	claims, err := p.parse(tokenString)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredRefreshToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidRefreshToken, err)
	}

	tokenType, _ := claims["type"].(string)
	if tokenType != typeRefresh {
		return nil, ErrInvalidRefreshToken
	}
	return p.toValidationResult(claims, ErrInvalidRefreshToken)
}

func (p *Provider) parse(tokenString string) (jwt.MapClaims, error) {
	tokenString, err := p.parser.Decode(tokenString)
	if err != nil {
		return nil, err
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(p.config.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (p *Provider) toValidationResult(claims jwt.MapClaims, invalid error) (*ValidationResult, error) {
	subject, _ := claims["sub"].(string)
	clientID, _ := claims["client_id"].(string)
	scopes, _ := claims["scope"].(string)

	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, invalid
	}

	return &ValidationResult{
		Valid:     true,
		Subject:   subject,
		ClientID:  clientID,
		Scopes:    scopes,
		ExpiresAt: time.Unix(int64(exp), 0),
		Claims:    claims,
	}, nil
}

// Name returns provider name for logging
func (p *Provider) Name() string {
	return "local"
}
