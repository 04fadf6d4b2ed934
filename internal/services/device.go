package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/permgate/permgate/internal/config"
	"github.com/permgate/permgate/internal/core"
	"github.com/permgate/permgate/internal/events"
	"github.com/permgate/permgate/internal/models"
	"github.com/permgate/permgate/internal/store"
	"github.com/permgate/permgate/internal/util"
)

var (
	ErrDeviceCodeNotFound = errors.New("device code not found")
	ErrDeviceCodeExpired  = errors.New("device code expired")
	ErrUserCodeNotFound   = errors.New("user code not found")
)

// DeviceService manages the device authorization grant (RFC 8628).
type DeviceService struct {
	store   *store.Store
	config  *config.Config
	events  *events.Publisher
	metrics core.Recorder
}

func NewDeviceService(s *store.Store, cfg *config.Config, p *events.Publisher, m core.Recorder) *DeviceService {
	return &DeviceService{store: s, config: cfg, events: p, metrics: m}
}

// GenerateDeviceCode creates a new device authorization for a client.
func (s *DeviceService) GenerateDeviceCode(
	ctx context.Context,
	client *models.Client,
	scope string,
) (*models.DeviceCode, error) {
	if !client.HasGrantType(GrantTypeDeviceCode) {
		s.metrics.RecordDeviceCodeGenerated(false)
		return nil, fmt.Errorf("%w: device_code grant not enabled for client", ErrInvalidGrant)
	}
	if scope != "" && !client.AllowsScopes(scope) {
		s.metrics.RecordDeviceCodeGenerated(false)
		return nil, ErrInvalidScope
	}
	if scope == "" {
		scope = client.Scopes
	}

	// Cryptographically secure device code (20 bytes = 40 hex chars)
	codeBytes, err := util.RandomBytes(20)
	if err != nil {
		return nil, fmt.Errorf("failed to generate device code: %w", err)
	}
	deviceCodePlaintext := hex.EncodeToString(codeBytes)

	salt, err := util.RandomHex(20)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	deviceCodeHash := util.PBKDF2Hex(deviceCodePlaintext, salt)
	deviceCodeID := deviceCodePlaintext[len(deviceCodePlaintext)-8:] // last 8 chars for indexing

	deviceCode := &models.DeviceCode{
		DeviceCode:     deviceCodePlaintext, // set in struct but not saved (gorm:"-")
		DeviceCodeHash: deviceCodeHash,
		DeviceCodeSalt: salt,
		DeviceCodeID:   deviceCodeID,
		UserCode:       generateUserCode(),
		ClientID:       client.ClientID,
		Scopes:         scope,
		ExpiresAt:      time.Now().Add(s.config.DeviceCodeExpiration),
		Interval:       s.config.PollingInterval,
		Authorized:     false,
	}

	if err := s.store.CreateDeviceCode(deviceCode); err != nil {
		s.metrics.RecordDeviceCodeGenerated(false)
		return nil, err
	}

	s.metrics.RecordDeviceCodeGenerated(true)
	s.events.Publish(ctx, events.Event{
		Type:     models.EventDeviceCodeGenerated,
		Severity: models.SeverityInfo,
		ClientID: client.ClientID,
		TargetID: deviceCode.UserCode,
		Details: models.EventDetails{
			"scopes": scope,
		},
	})

	return deviceCode, nil
}

// GetDeviceCode retrieves a device authorization by its plaintext code.
func (s *DeviceService) GetDeviceCode(deviceCode string) (*models.DeviceCode, error) {
	// 1. Validate device code length (40 hex characters)
	if len(deviceCode) != 40 {
		return nil, ErrDeviceCodeNotFound
	}

	// 2. Hex characters only (prevents injection and invalid input)
	for _, x := range []byte(deviceCode) {
		if x < '0' || (x > '9' && x < 'a') || x > 'f' {
			return nil, ErrDeviceCodeNotFound
		}
	}

	// 3. Indexed lookup via the code suffix
	deviceCodeID := deviceCode[len(deviceCode)-8:]
	candidates, err := s.store.GetDeviceCodesByID(deviceCodeID)
	if err != nil {
		return nil, ErrDeviceCodeNotFound
	}

	// 4. Verify hash for each candidate using constant-time comparison
	for i := range candidates {
		dc := &candidates[i]
		tempHash := util.PBKDF2Hex(deviceCode, dc.DeviceCodeSalt)

		if subtle.ConstantTimeCompare([]byte(dc.DeviceCodeHash), []byte(tempHash)) == 1 {
			if dc.IsExpired() {
				_ = s.store.DeleteDeviceCode(dc.ID)
				return nil, ErrDeviceCodeExpired
			}

			dc.DeviceCode = deviceCode
			return dc, nil
		}
	}

	return nil, ErrDeviceCodeNotFound
}

// GetDeviceCodeByUserCode retrieves a device authorization by user code.
func (s *DeviceService) GetDeviceCodeByUserCode(userCode string) (*models.DeviceCode, error) {
	// Normalize user code (uppercase, remove dashes)
	userCode = strings.ToUpper(strings.ReplaceAll(userCode, "-", ""))

	dc, err := s.store.GetDeviceCodeByUserCode(userCode)
	if err != nil {
		return nil, ErrUserCodeNotFound
	}

	if dc.IsExpired() {
		_ = s.store.DeleteDeviceCode(dc.ID)
		return nil, ErrDeviceCodeExpired
	}

	return dc, nil
}

// AuthorizeDeviceCode marks a device authorization approved by a user.
func (s *DeviceService) AuthorizeDeviceCode(ctx context.Context, userCode, userID string) error {
	dc, err := s.GetDeviceCodeByUserCode(userCode)
	if err != nil {
		return err
	}

	if err := s.store.AuthorizeDeviceCode(dc.UserCode, userID); err != nil {
		return err
	}

	s.events.Publish(ctx, events.Event{
		Type:     models.EventDeviceCodeAuthorized,
		Severity: models.SeverityInfo,
		ActorID:  userID,
		ClientID: dc.ClientID,
		TargetID: dc.UserCode,
	})
	return nil
}

// GetClientNameByUserCode retrieves the client name associated with a user code.
func (s *DeviceService) GetClientNameByUserCode(userCode string) (string, error) {
	dc, err := s.GetDeviceCodeByUserCode(userCode)
	if err != nil {
		return "", err
	}

	client, err := s.store.GetClient(dc.ClientID)
	if err != nil {
		return "", err
	}

	return client.ClientName, nil
}

// generateUserCode creates a user-friendly code like "ABCD-EFGH"
// Avoids confusing characters: 0, O, 1, I, L
func generateUserCode() string {
	const charset = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	code := make([]byte, 8)

	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		code[i] = charset[n.Int64()]
	}

	// Format as XXXX-XXXX but store without dash
	return string(code)
}

// FormatUserCode formats a user code for display (e.g., "ABCDEFGH" -> "ABCD-EFGH")
func FormatUserCode(code string) string {
	if len(code) != 8 {
		return code
	}
	return code[:4] + "-" + code[4:]
}
