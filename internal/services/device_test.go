package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Device code generation

func TestGenerateDeviceCode(t *testing.T) {
	s, _, ts := newTokenTestEnv(t)
	client := createTestClient(
		t, s, "urn:ietf:params:oauth:grant-type:device_code", "read write")
	ctx := context.Background()

	t.Run("shape of the generated codes", func(t *testing.T) {
		dc, err := ts.deviceService.GenerateDeviceCode(ctx, client, "read")
		require.NoError(t, err)

		assert.Len(t, dc.DeviceCode, 40, "device code is 20 random bytes hex-encoded")
		assert.Len(t, dc.UserCode, 8)
		for _, r := range dc.UserCode {
			assert.NotContains(t, "0O1IL", string(r), "user code avoids ambiguous characters")
		}
		assert.Equal(t, "read", dc.Scopes)
		assert.False(t, dc.Authorized)
	})

	t.Run("empty scope falls back to the client registration", func(t *testing.T) {
		dc, err := ts.deviceService.GenerateDeviceCode(ctx, client, "")
		require.NoError(t, err)
		assert.Equal(t, "read write", dc.Scopes)
	})

	t.Run("grant not enabled", func(t *testing.T) {
		plain := createTestClient(t, s, "client_credentials", "read")
		_, err := ts.deviceService.GenerateDeviceCode(ctx, plain, "read")
		assert.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("scope outside registration", func(t *testing.T) {
		_, err := ts.deviceService.GenerateDeviceCode(ctx, client, "admin")
		assert.ErrorIs(t, err, ErrInvalidScope)
	})
}

// User code handling

func TestAuthorizeDeviceCode_UserCodeNormalization(t *testing.T) {
	s, _, ts := newTokenTestEnv(t)
	client := createTestClient(
		t, s, "urn:ietf:params:oauth:grant-type:device_code", "read")
	user := createTestUser(t, s, "device-user", "pw")
	ctx := context.Background()

	dc, err := ts.deviceService.GenerateDeviceCode(ctx, client, "read")
	require.NoError(t, err)

	// The display form (dashed, any case) must resolve to the stored code.
	display := strings.ToLower(FormatUserCode(dc.UserCode))
	require.NoError(t, ts.deviceService.AuthorizeDeviceCode(ctx, display, user.ID))

	stored, err := ts.deviceService.GetDeviceCodeByUserCode(dc.UserCode)
	require.NoError(t, err)
	assert.True(t, stored.Authorized)
	assert.Equal(t, user.ID, stored.UserID)
}

func TestAuthorizeDeviceCode_Failures(t *testing.T) {
	s, cfg, ts := newTokenTestEnv(t)
	client := createTestClient(
		t, s, "urn:ietf:params:oauth:grant-type:device_code", "read")
	user := createTestUser(t, s, "late-user", "pw")
	ctx := context.Background()

	t.Run("unknown user code", func(t *testing.T) {
		err := ts.deviceService.AuthorizeDeviceCode(ctx, "ZZZZ-ZZZZ", user.ID)
		assert.ErrorIs(t, err, ErrUserCodeNotFound)
	})

	t.Run("expired device code", func(t *testing.T) {
		cfg.DeviceCodeExpiration = -time.Minute
		dc, err := ts.deviceService.GenerateDeviceCode(ctx, client, "read")
		require.NoError(t, err)
		cfg.DeviceCodeExpiration = 30 * time.Minute

		err = ts.deviceService.AuthorizeDeviceCode(ctx, dc.UserCode, user.ID)
		assert.ErrorIs(t, err, ErrDeviceCodeExpired)
	})
}

func TestFormatUserCode(t *testing.T) {
	assert.Equal(t, "ABCD-EFGH", FormatUserCode("ABCDEFGH"))
	assert.Equal(t, "SHORT", FormatUserCode("SHORT"), "unexpected lengths pass through")
}
