package token

import "errors"

var (
	// ErrTokenGeneration indicates token generation failed
	ErrTokenGeneration = errors.New("failed to generate token")

	// ErrInvalidToken indicates the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates the token has expired
	ErrExpiredToken = errors.New("token expired")

	// Refresh token specific errors

	// ErrInvalidRefreshToken indicates the refresh token is invalid
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrExpiredRefreshToken indicates the refresh token has expired
	ErrExpiredRefreshToken = errors.New("refresh token expired")

	// ErrInvalidScope indicates scope validation failed
	ErrInvalidScope = errors.New("invalid scope")

	// ID token / encryption errors

	// ErrNoEncryptionKey indicates the client requested an encrypted ID
	// token but registered no usable public key
	ErrNoEncryptionKey = errors.New("no encryption key registered for client")

	// ErrIDTokenEncryption indicates JWE encryption of the ID token failed
	ErrIDTokenEncryption = errors.New("failed to encrypt id token")

	// ErrNoDecryptionKey indicates an encrypted token was presented but no
	// server encryption key is configured
	ErrNoDecryptionKey = errors.New("no decryption key configured")
)
