package reactor

import (
	"container/heap"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gowebpki/jcs"
	"golang.org/x/crypto/blake2b"
)

// levelHeap is a min-heap of pending levels, used so KeySet.Next can pop
// the lowest-level bucket in O(log n) regardless of how sparse the level
// space is.
type levelHeap []Level

func (h levelHeap) Len() int            { return len(h) }
func (h levelHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h levelHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *levelHeap) Push(x interface{}) { *h = append(*h, x.(Level)) }
func (h *levelHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// KeySet is the scheduler's per-tag precedence container: it
// groups pending reaction keys by Level and hands them out lowest-level
// bucket first, so process_tag can drain a tag strictly in dependency
// order while still batching same-level reactions for parallel dispatch.
type KeySet struct {
	buckets map[Level]map[ReactionKey]struct{}
	levels  levelHeap
}

// NewKeySet constructs an empty KeySet.
func NewKeySet() *KeySet {
	ks := &KeySet{buckets: make(map[Level]map[ReactionKey]struct{})}
	heap.Init(&ks.levels)
	return ks
}

// LevelKey bundles a level with the reaction key assigned to it, the
// shape every constructor/merge operation below accepts.
type LevelKey struct {
	Level Level
	Key   ReactionKey
}

// KeySetFromPairs constructs a KeySet pre-loaded with the given
// (level, key) pairs. Used at startup/shutdown to seed the initial
// reaction set, and by the scheduler to build the set for a popped
// ScheduledEvent.
func KeySetFromPairs(pairs ...LevelKey) *KeySet {
	ks := NewKeySet()
	for _, p := range pairs {
		ks.add(p.Level, p.Key)
	}
	return ks
}

// Pair builds a (level, key) pair for use with KeySetFromPairs/ExtendAbove.
func Pair(level Level, key ReactionKey) LevelKey { return LevelKey{Level: level, Key: key} }

func (ks *KeySet) add(level Level, key ReactionKey) {
	bucket, ok := ks.buckets[level]
	if !ok {
		bucket = make(map[ReactionKey]struct{})
		ks.buckets[level] = bucket
		heap.Push(&ks.levels, level)
	}
	bucket[key] = struct{}{}
}

// Next pops the lowest-pending level's bucket, returning its reaction keys
// and true, or (0, nil, false) once the set is exhausted. Within a bucket,
// keys are distinct: each reaction appears once per tag even if it was
// merged in from multiple effects.
func (ks *KeySet) Next() (Level, []ReactionKey, bool) {
	for ks.levels.Len() > 0 && len(ks.buckets[ks.levels[0]]) == 0 {
		heap.Pop(&ks.levels)
	}
	if ks.levels.Len() == 0 {
		return 0, nil, false
	}
	level := heap.Pop(&ks.levels).(Level)
	bucket := ks.buckets[level]
	delete(ks.buckets, level)

	keys := make([]ReactionKey, 0, len(bucket))
	for k := range bucket {
		keys = append(keys, k)
	}
	return level, keys, true
}

// ExtendAbove merges additional (level, key) pairs into the set, dropping
// any whose level is <= minLevel. This is the same-tag feedback rule: a
// reaction at level L has already begun (or finished) executing in this
// tag, so a write that would re-trigger it or anything at or below its
// level is impossible for a legal graph, and is silently dropped rather
// than re-queued. The static level assignment already guarantees no
// legal graph produces such an edge.
func (ks *KeySet) ExtendAbove(minLevel Level, pairs ...LevelKey) {
	for _, p := range pairs {
		if p.Level <= minLevel {
			continue
		}
		ks.add(p.Level, p.Key)
	}
}

// Empty reports whether the set has no pending reactions left.
func (ks *KeySet) Empty() bool {
	for ks.levels.Len() > 0 && len(ks.buckets[ks.levels[0]]) == 0 {
		heap.Pop(&ks.levels)
	}
	return ks.levels.Len() == 0
}

// keySetWire is the canonical shape SnapshotHash hashes: a sorted slice
// of (level, keys) entries so two KeySets holding the same pending
// reactions hash identically regardless of map iteration order.
type keySetWire struct {
	Level Level         `json:"level"`
	Keys  []ReactionKey `json:"keys"`
}

// SnapshotHash returns a deterministic content hash of the set's current
// pending contents: same (level, key) membership always hashes to the
// same value, independent of insertion order. Intended for
// replay-divergence detection (comparing a live run's per-tag KeySet
// against one recorded earlier), not for production dispatch.
func (ks *KeySet) SnapshotHash() (string, error) {
	levels := make([]Level, 0, len(ks.buckets))
	for l := range ks.buckets {
		levels = append(levels, l)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	wire := make([]keySetWire, 0, len(levels))
	for _, l := range levels {
		bucket := ks.buckets[l]
		keys := make([]ReactionKey, 0, len(bucket))
		for k := range bucket {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		wire = append(wire, keySetWire{Level: l, Keys: keys})
	}

	raw, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("reactor: marshal keyset snapshot: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("reactor: canonicalize keyset snapshot: %w", err)
	}
	sum := blake2b.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}
