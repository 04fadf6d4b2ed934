package cache

import "errors"

// Sentinel errors shared by every cache backend. Callers branch on
// ErrCacheMiss to distinguish an absent key from a broken backend; the
// other two always wrap the underlying cause.
var (
	ErrCacheMiss        = errors.New("cache: key not found")
	ErrCacheUnavailable = errors.New("cache: backend unavailable")
	ErrInvalidValue     = errors.New("cache: value cannot be decoded")
)
