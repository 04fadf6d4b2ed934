package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters for stored device-code hashes. Unlike the server's
// signed tokens, device codes are plain random strings presented over
// polling, so they get a salted slow hash rather than a bare digest.
const (
	pbkdf2Iterations = 10000
	pbkdf2KeyLength  = 50
)

// RandomBytes returns length cryptographically secure random bytes.
func RandomBytes(length int64) ([]byte, error) {
	buf := make([]byte, length)
	_, err := rand.Read(buf)
	return buf, err
}

// RandomHex returns a random lowercase hex string of exactly the given
// length. Used for device-code and session-state salts.
func RandomHex(length int) (string, error) {
	buf, err := RandomBytes(int64((length + 1) / 2))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(buf)[:length], nil
}

// PBKDF2Hex derives the stored form of a device code, hex-encoded.
func PBKDF2Hex(value, salt string) string {
	key := pbkdf2.Key([]byte(value), []byte(salt), pbkdf2Iterations, pbkdf2KeyLength, sha256.New)
	return hex.EncodeToString(key)
}

// SHA256Hex returns the SHA-256 hash of s as a lowercase hex string.
// Intended for use with high-entropy, unguessable values (e.g., randomly
// generated tokens); for such inputs, a salt is not required for security.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
