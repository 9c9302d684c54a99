package federation

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/blake2b"

	"github.com/mindburn-labs/reactorcore/pkg/reactor"
)

// EnvelopeClaims carries a physical event's identity across the wire as
// signed JWT claims, so a receiving enclave can authenticate the sender
// before ever touching the payload. ValueHash lets the receiver detect
// transport corruption independent of JWT's own signature check.
type EnvelopeClaims struct {
	jwt.RegisteredClaims
	EnclaveID      string `json:"enclave_id"`
	ActionName     string `json:"action_name"`
	TagOffsetNanos int64  `json:"tag_offset_ns"`
	TagMicrostep   uint32 `json:"tag_microstep"`
	ValueHash      string `json:"value_hash"`
}

// Envelope is one physical event in flight between enclaves: a signed
// token plus the raw value bytes it attests to. The core's
// reactor.PhysicalAction[T] is generic; federation only ever sees the
// encoded bytes a caller produced for T, since EnclaveLink is specified
// purely as an external-collaborator boundary.
type Envelope struct {
	Token string
	Value []byte
}

// Tag recovers the envelope's logical tag from its (unverified) claims.
// Callers needing an authenticated tag should call Verify first and read
// the returned claims instead.
func (e Envelope) Tag() (reactor.Tag, error) {
	claims, _, err := parseUnverified(e.Token)
	if err != nil {
		return reactor.Tag{}, err
	}
	return reactor.Tag{Offset: time.Duration(claims.TagOffsetNanos), Microstep: claims.TagMicrostep}, nil
}

func valueHash(value []byte) string {
	sum := blake2b.Sum256(value)
	return hex.EncodeToString(sum[:])
}

// NewEnvelope signs an Envelope for actionName/tag/value using enclaveID
// as the issuer identity, under keys.
func NewEnvelope(keys KeySet, enclaveID, actionName string, tag reactor.Tag, value []byte, ttl time.Duration) (Envelope, error) {
	now := time.Now().UTC()
	claims := EnvelopeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    enclaveID,
		},
		EnclaveID:      enclaveID,
		ActionName:     actionName,
		TagOffsetNanos: int64(tag.Offset),
		TagMicrostep:   tag.Microstep,
		ValueHash:      valueHash(value),
	}
	token, err := keys.Sign(context.Background(), claims)
	if err != nil {
		return Envelope{}, fmt.Errorf("federation: sign envelope: %w", err)
	}
	return Envelope{Token: token, Value: value}, nil
}

// Verify authenticates env against keys and confirms its ValueHash
// matches env.Value, returning the trusted claims. Bridge.Subscribe calls
// it on every received message before invoking its handler.
func Verify(keys KeySet, env Envelope) (*EnvelopeClaims, error) {
	claims := &EnvelopeClaims{}
	token, err := jwt.ParseWithClaims(env.Token, claims, keys.KeyFunc())
	if err != nil {
		return nil, fmt.Errorf("federation: verify envelope: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("federation: envelope signature invalid")
	}
	if claims.ValueHash != valueHash(env.Value) {
		return nil, fmt.Errorf("federation: envelope value hash mismatch")
	}
	return claims, nil
}

func parseUnverified(tokenString string) (*EnvelopeClaims, *jwt.Token, error) {
	parser := jwt.NewParser()
	claims := &EnvelopeClaims{}
	token, _, err := parser.ParseUnverified(tokenString, claims)
	if err != nil {
		return nil, nil, fmt.Errorf("federation: parse envelope: %w", err)
	}
	return claims, token, nil
}
