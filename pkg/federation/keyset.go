// Package federation bridges physical events across separate enclave
// processes through the EnclaveLink boundary, which the scheduling
// core never imports directly. A Bridge publishes and receives
// JWT-signed Envelopes over Redis Pub/Sub, fire-and-forget, so a remote
// peer's SchedulePhysical call can wake a local AsyncChannel.
package federation

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// KeySet manages the signing keys a Bridge uses to authenticate outgoing
// Envelopes and verify incoming ones, with rotation so a long-lived
// enclave process doesn't sign under one key forever.
type KeySet interface {
	// Sign creates a signed token for claims under the current active key.
	Sign(ctx context.Context, claims jwt.Claims) (string, error)
	// KeyFunc returns the verification key for a token, keyed by kid.
	KeyFunc() jwt.Keyfunc
}

// signingKey pairs a private key with the time it was issued, so
// expiry is judged against a real clock instead of map size.
type signingKey struct {
	priv     ed25519.PrivateKey
	issuedAt time.Time
}

// InMemoryKeySet holds Ed25519 keys in memory, keyed by kid, rotating
// the active signing key on a fixed interval and expiring retired keys
// once they are older than keyTTL. A background goroutine drives both,
// the same periodic-sweep shape this codebase uses for idempotency-cache
// expiry: a ticker that wakes, locks, and clears out anything past its
// deadline. Suitable for a single enclave process; a multi-replica
// deployment would back this with a shared store instead.
type InMemoryKeySet struct {
	mu         sync.RWMutex
	currentKID string
	keys       map[string]signingKey

	rotationInterval time.Duration
	keyTTL           time.Duration

	stop chan struct{}
	once sync.Once
}

// defaultRotationInterval and defaultKeyTTL back NewInMemoryKeySet's
// zero-config constructor: rotate hourly, keep a retired key verifiable
// until a day after it was issued so in-flight envelopes signed just
// before a rotation still verify.
const (
	defaultRotationInterval = time.Hour
	defaultKeyTTL           = 24 * time.Hour
)

// NewInMemoryKeySet constructs a key set with one freshly generated key
// and the default rotation policy (hourly rotation, 24h key retention).
func NewInMemoryKeySet() (*InMemoryKeySet, error) {
	return NewInMemoryKeySetWithPolicy(defaultRotationInterval, defaultKeyTTL)
}

// NewInMemoryKeySetWithPolicy constructs a key set that rotates its
// active signing key every rotationInterval and, at each rotation, forgets
// any retired key issued more than keyTTL ago, so a retired key stays
// verifiable for at most keyTTL after its issue time plus one interval.
func NewInMemoryKeySetWithPolicy(rotationInterval, keyTTL time.Duration) (*InMemoryKeySet, error) {
	ks := &InMemoryKeySet{
		keys:             make(map[string]signingKey),
		rotationInterval: rotationInterval,
		keyTTL:           keyTTL,
		stop:             make(chan struct{}),
	}
	if err := ks.Rotate(); err != nil {
		return nil, err
	}
	go ks.rotateOnSchedule()
	return ks, nil
}

// rotateOnSchedule is the background sweep: on every tick it rotates to
// a fresh signing key and expires anything older than keyTTL, until
// Close stops it.
func (ks *InMemoryKeySet) rotateOnSchedule() {
	ticker := time.NewTicker(ks.rotationInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ks.stop:
			return
		case <-ticker.C:
			if err := ks.Rotate(); err != nil {
				continue
			}
			ks.expireOlderThan(ks.keyTTL)
		}
	}
}

// Rotate generates a new Ed25519 key and makes it the active signing
// key. Safe to call directly (e.g. on suspected key compromise) ahead of
// the next scheduled rotation.
func (ks *InMemoryKeySet) Rotate() error {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("federation: generate key: %w", err)
	}
	now := time.Now()
	kid := fmt.Sprintf("enclave-key-%d", now.UnixNano())

	ks.mu.Lock()
	ks.keys[kid] = signingKey{priv: priv, issuedAt: now}
	ks.currentKID = kid
	ks.mu.Unlock()
	return nil
}

// expireOlderThan drops every key issued more than ttl ago, except the
// currently active one regardless of its age.
func (ks *InMemoryKeySet) expireOlderThan(ttl time.Duration) {
	cutoff := time.Now().Add(-ttl)
	ks.mu.Lock()
	defer ks.mu.Unlock()
	for kid, key := range ks.keys {
		if kid != ks.currentKID && key.issuedAt.Before(cutoff) {
			delete(ks.keys, kid)
		}
	}
}

// Close stops the background rotation goroutine. Safe to call more than
// once; a KeySet left unclosed simply keeps rotating until the process
// exits.
func (ks *InMemoryKeySet) Close() {
	ks.once.Do(func() { close(ks.stop) })
}

func (ks *InMemoryKeySet) Sign(ctx context.Context, claims jwt.Claims) (string, error) {
	ks.mu.RLock()
	kid := ks.currentKID
	key, ok := ks.keys[kid]
	ks.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("federation: no active signing key")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = kid
	return token.SignedString(key.priv)
}

func (ks *InMemoryKeySet) KeyFunc() jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("federation: unexpected signing method %v", token.Header["alg"])
		}
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("federation: token missing kid header")
		}
		ks.mu.RLock()
		defer ks.mu.RUnlock()
		key, ok := ks.keys[kid]
		if !ok {
			return nil, fmt.Errorf("federation: unknown kid %q", kid)
		}
		return key.priv.Public(), nil
	}
}
