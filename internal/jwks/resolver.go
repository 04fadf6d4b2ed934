package jwks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/permgate/permgate/internal/cache"
	"github.com/permgate/permgate/internal/core"
)

var (
	// ErrDiscoveryFailed indicates the OpenID discovery document could not
	// be fetched or parsed
	ErrDiscoveryFailed = errors.New("openid discovery failed")

	// ErrKeyNotFound indicates no key in the provider's JWKS matched the
	// token's kid
	ErrKeyNotFound = errors.New("no matching key in provider jwks")
)

type discoveryDocument struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// Resolver resolves signing keys for external OpenID providers. Discovery
// documents are cached per authority; the JWKS itself is auto-refreshed by
// the underlying jwk.Cache. Concurrent resolutions of the same authority
// serialize on a per-authority lock so only one fetch goes out; different
// authorities resolve in parallel.
type Resolver struct {
	jwkCache  *jwk.Cache
	discovery cache.Cache[string]
	client    *http.Client
	refresh   time.Duration
	metrics   core.Recorder

	mu          sync.Mutex
	authorities map[string]*sync.Mutex
	registered  map[string]bool
}

// NewResolver creates a resolver. discoveryCache holds authority → jwks_uri
// mappings so repeated resolutions skip the discovery round-trip.
func NewResolver(
	ctx context.Context,
	discoveryCache cache.Cache[string],
	fetchTimeout, refreshInterval time.Duration,
	metrics core.Recorder,
) *Resolver {
	return &Resolver{
		jwkCache:    jwk.NewCache(ctx),
		discovery:   discoveryCache,
		client:      &http.Client{Timeout: fetchTimeout},
		refresh:     refreshInterval,
		metrics:     metrics,
		authorities: make(map[string]*sync.Mutex),
		registered:  make(map[string]bool),
	}
}

func (r *Resolver) authorityLock(authority string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.authorities[authority]
	if !ok {
		lock = &sync.Mutex{}
		r.authorities[authority] = lock
	}
	return lock
}

// jwksURI resolves the authority's jwks_uri, via the discovery cache when warm.
func (r *Resolver) jwksURI(ctx context.Context, authority string) (string, error) {
	if uri, err := r.discovery.Get(ctx, authority); err == nil {
		r.metrics.RecordJWKSResolution(authority, true)
		return uri, nil
	}

	wellKnown := strings.TrimRight(authority, "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnown, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDiscoveryFailed, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDiscoveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: discovery returned %d", ErrDiscoveryFailed, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDiscoveryFailed, err)
	}
	var doc discoveryDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDiscoveryFailed, err)
	}
	if doc.JWKSURI == "" {
		return "", fmt.Errorf("%w: document has no jwks_uri", ErrDiscoveryFailed)
	}

	if err := r.discovery.Set(ctx, authority, doc.JWKSURI, r.refresh); err != nil {
		log.Printf("[JWKS] failed to cache discovery for %s: %v", authority, err)
	}
	r.metrics.RecordJWKSResolution(authority, false)
	return doc.JWKSURI, nil
}

// KeySet returns the current key set for an authority, fetching and
// registering it on first use.
func (r *Resolver) KeySet(ctx context.Context, authority string) (jwk.Set, error) {
	lock := r.authorityLock(authority)
	lock.Lock()
	defer lock.Unlock()

	uri, err := r.jwksURI(ctx, authority)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	needsRegister := !r.registered[uri]
	if needsRegister {
		r.registered[uri] = true
	}
	r.mu.Unlock()

	if needsRegister {
		if err := r.jwkCache.Register(uri, jwk.WithMinRefreshInterval(r.refresh)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDiscoveryFailed, err)
		}
	}
	set, err := r.jwkCache.Get(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscoveryFailed, err)
	}
	return set, nil
}

// Keyfunc returns a jwt.Keyfunc that resolves the verification key for
// tokens issued by the given authority, matched by kid.
func (r *Resolver) Keyfunc(ctx context.Context, authority string) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		set, err := r.KeySet(ctx, authority)
		if err != nil {
			return nil, err
		}
		kid, _ := t.Header["kid"].(string)
		if kid != "" {
			key, ok := set.LookupKeyID(kid)
			if !ok {
				return nil, ErrKeyNotFound
			}
			var raw any
			if err := key.Raw(&raw); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrKeyNotFound, err)
			}
			return raw, nil
		}
		// No kid: single-key sets are unambiguous.
		if set.Len() == 1 {
			key, _ := set.Key(0)
			var raw any
			if err := key.Raw(&raw); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrKeyNotFound, err)
			}
			return raw, nil
		}
		return nil, ErrKeyNotFound
	}
}
