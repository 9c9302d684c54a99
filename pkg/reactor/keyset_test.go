package reactor_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/mindburn-labs/reactorcore/pkg/reactor"
)

func TestKeySetDrainsLowestLevelFirst(t *testing.T) {
	ks := reactor.KeySetFromPairs(
		reactor.Pair(2, 20),
		reactor.Pair(0, 1),
		reactor.Pair(1, 10),
		reactor.Pair(0, 2),
	)

	level, keys, ok := ks.Next()
	require.True(t, ok)
	require.Equal(t, reactor.Level(0), level)
	require.ElementsMatch(t, []reactor.ReactionKey{1, 2}, keys)

	level, keys, ok = ks.Next()
	require.True(t, ok)
	require.Equal(t, reactor.Level(1), level)
	require.ElementsMatch(t, []reactor.ReactionKey{10}, keys)

	level, keys, ok = ks.Next()
	require.True(t, ok)
	require.Equal(t, reactor.Level(2), level)
	require.ElementsMatch(t, []reactor.ReactionKey{20}, keys)

	_, _, ok = ks.Next()
	require.False(t, ok)
}

func TestKeySetDedupesWithinBucket(t *testing.T) {
	ks := reactor.KeySetFromPairs(reactor.Pair(0, 1), reactor.Pair(0, 1), reactor.Pair(0, 1))
	_, keys, ok := ks.Next()
	require.True(t, ok)
	require.Equal(t, []reactor.ReactionKey{1}, keys)
}

func TestKeySetExtendAboveDropsAtOrBelowMinLevel(t *testing.T) {
	ks := reactor.NewKeySet()
	ks.ExtendAbove(2, reactor.Pair(0, 1), reactor.Pair(2, 2), reactor.Pair(3, 3))
	level, keys, ok := ks.Next()
	require.True(t, ok)
	require.Equal(t, reactor.Level(3), level)
	require.Equal(t, []reactor.ReactionKey{3}, keys)
	require.True(t, ks.Empty())
}

func TestKeySetEmpty(t *testing.T) {
	ks := reactor.NewKeySet()
	require.True(t, ks.Empty())
	ks.ExtendAbove(-1, reactor.Pair(0, 1))
	require.False(t, ks.Empty())
}

func TestKeySetSnapshotHashIsOrderIndependent(t *testing.T) {
	a := reactor.KeySetFromPairs(reactor.Pair(0, 1), reactor.Pair(1, 2), reactor.Pair(0, 3))
	b := reactor.KeySetFromPairs(reactor.Pair(0, 3), reactor.Pair(0, 1), reactor.Pair(1, 2))

	hashA, err := a.SnapshotHash()
	require.NoError(t, err)
	hashB, err := b.SnapshotHash()
	require.NoError(t, err)
	require.Equal(t, hashA, hashB)
}

func TestKeySetSnapshotHashChangesWithContent(t *testing.T) {
	a := reactor.KeySetFromPairs(reactor.Pair(0, 1))
	b := reactor.KeySetFromPairs(reactor.Pair(0, 2))

	hashA, err := a.SnapshotHash()
	require.NoError(t, err)
	hashB, err := b.SnapshotHash()
	require.NoError(t, err)
	require.NotEqual(t, hashA, hashB)
}

// TestKeySetLevelsAreMonotonicallyIncreasing is the property-based check
// that Next always returns buckets in strictly increasing level order,
// for arbitrary (level, key) input sets.
func TestKeySetLevelsAreMonotonicallyIncreasing(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("levels pop in strictly increasing order", prop.ForAll(
		func(levels []int8, keys []int8) bool {
			n := len(levels)
			if len(keys) < n {
				n = len(keys)
			}
			pairs := make([]reactor.LevelKey, 0, n)
			for i := 0; i < n; i++ {
				pairs = append(pairs, reactor.Pair(reactor.Level(levels[i]), reactor.ReactionKey(keys[i])))
			}
			ks := reactor.KeySetFromPairs(pairs...)

			last := reactor.Level(-1 << 30)
			first := true
			for {
				level, _, ok := ks.Next()
				if !ok {
					break
				}
				if !first && level <= last {
					return false
				}
				first = false
				last = level
			}
			return true
		},
		gen.SliceOf(gen.Int8()),
		gen.SliceOf(gen.Int8()),
	))

	properties.TestingRun(t)
}
