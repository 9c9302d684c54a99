package federation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mindburn-labs/reactorcore/pkg/reactor"
)

// EnclaveLink is the boundary a remote federation peer publishes
// through: publish a physical event so some other enclave process can
// observe it. The scheduling core never imports this package, and no
// other package in this module wires a concrete Bridge in.
type EnclaveLink interface {
	Publish(ctx context.Context, actionName string, tag reactor.Tag, value []byte) error
	Close() error
}

// Bridge is the Redis-backed EnclaveLink: fire-and-forget Pub/Sub,
// honoring the runtime's no-backpressure rule for unbounded channels.
// The Redis client wiring is adapted from a rate-limiting token-bucket
// store elsewhere in this codebase, repurposed from rate limiting, which
// the no-backpressure rule forbids applying to scheduling traffic, to
// plain fan-out publish/subscribe.
type Bridge struct {
	client    *redis.Client
	enclaveID string
	keys      KeySet
	ttl       time.Duration
	logger    *slog.Logger
}

// NewBridge wraps an already-configured Redis client. enclaveID is this
// process's identity, stamped as the issuer of every Envelope it signs.
func NewBridge(client *redis.Client, enclaveID string, keys KeySet, ttl time.Duration) *Bridge {
	return &Bridge{
		client:    client,
		enclaveID: enclaveID,
		keys:      keys,
		ttl:       ttl,
		logger:    slog.Default().With("component", "federation", "enclave", enclaveID),
	}
}

func channelFor(actionName string) string {
	return "reactorcore.federation." + actionName
}

// Publish signs and publishes value for actionName/tag to the Redis
// channel other enclaves subscribe to. Never blocks on a slow or absent
// subscriber: Redis Pub/Sub drops messages nobody is listening for,
// which is exactly the unbounded-channel contract this link needs.
func (b *Bridge) Publish(ctx context.Context, actionName string, tag reactor.Tag, value []byte) error {
	env, err := NewEnvelope(b.keys, b.enclaveID, actionName, tag, value, b.ttl)
	if err != nil {
		return fmt.Errorf("federation: publish %s: %w", actionName, err)
	}
	payload, err := encodeWireEnvelope(env)
	if err != nil {
		return fmt.Errorf("federation: publish %s: %w", actionName, err)
	}
	if err := b.client.Publish(ctx, channelFor(actionName), payload).Err(); err != nil {
		return fmt.Errorf("federation: publish %s: %w", actionName, err)
	}
	return nil
}

// Subscribe listens for Envelopes published for actionName, verifies
// each against peerKeys, and invokes handler with the authenticated
// claims and value. Subscribe blocks until ctx is cancelled or the
// subscription errors; callers run it in its own goroutine, typically
// feeding handler results into a local AsyncChannel via
// reactor.SchedulePhysical.
func (b *Bridge) Subscribe(ctx context.Context, actionName string, peerKeys KeySet, handler func(*EnvelopeClaims, []byte)) error {
	sub := b.client.Subscribe(ctx, channelFor(actionName))
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			env, err := decodeWireEnvelope(msg.Payload)
			if err != nil {
				b.logger.Warn("dropping malformed envelope", "action", actionName, "error", err)
				continue
			}
			claims, err := Verify(peerKeys, env)
			if err != nil {
				b.logger.Warn("dropping unverifiable envelope", "action", actionName, "error", err)
				continue
			}
			handler(claims, env.Value)
		}
	}
}

// Close releases the underlying Redis client.
func (b *Bridge) Close() error { return b.client.Close() }

var _ EnclaveLink = (*Bridge)(nil)
