package shuffle

import (
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("en-%03d", i)
	}
	return ids
}

func TestSeed(t *testing.T) {
	assert.Equal(t, uint32(0), Seed("", ""))
	assert.Equal(t, uint32(97*31+98), Seed("a", "b"))
	assert.Equal(t, Seed("ab", ""), Seed("a", "b"), "seed is over the concatenation")

	long := Seed("usr-V1StGXR8_Z5jdHi6B-myT", "ds-4f90d13a42")
	assert.Less(t, long, uint32(1<<31))
}

func TestSeed_UTF16CodeUnits(t *testing.T) {
	// U+1F600 is a surrogate pair in UTF-16: 0xD83D 0xDE00.
	want := uint32((0xD83D*31 + 0xDE00) % (1 << 31))
	assert.Equal(t, want, Seed("\U0001F600", ""))
}

func TestLCG(t *testing.T) {
	g := NewLCG(0)
	assert.InDelta(t, 1013904223.0/(1<<31), g.Next(), 1e-12)

	g = NewLCG(12345)
	for range 1000 {
		v := g.Next()
		require.GreaterOrEqual(t, v, 0.0)
		require.Less(t, v, 1.0)
	}
}

func TestOrder_IsBijection(t *testing.T) {
	ids := makeIDs(137)
	order := Order("usr-1", "ds-1", ids)

	require.Len(t, order, len(ids))
	assert.ElementsMatch(t, ids, order)
}

func TestOrder_Deterministic(t *testing.T) {
	ids := makeIDs(50)
	assert.Equal(t, Order("usr-1", "ds-1", ids), Order("usr-1", "ds-1", ids))
}

func TestOrder_DiffersBetweenUsers(t *testing.T) {
	ids := makeIDs(20)
	assert.NotEqual(t, Order("usr-alice", "ds-1", ids), Order("usr-bob", "ds-1", ids))
}

func TestOrder_DiffersBetweenDatasets(t *testing.T) {
	ids := makeIDs(20)
	assert.NotEqual(t, Order("usr-alice", "ds-1", ids), Order("usr-alice", "ds-2", ids))
}

func TestOrder_DoesNotModifyInput(t *testing.T) {
	ids := makeIDs(30)
	original := slices.Clone(ids)

	_ = Order("usr-1", "ds-1", ids)
	assert.Equal(t, original, ids)
}

func TestOrder_EmptyKeyIsIdentity(t *testing.T) {
	ids := makeIDs(10)
	assert.Equal(t, ids, Order("", "", ids))
}

func TestOrder_SmallInputs(t *testing.T) {
	assert.Empty(t, Order("u", "d", nil))
	assert.Equal(t, []string{"only"}, Order("u", "d", []string{"only"}))
}

func TestOrder_ChangedIDSetReshuffles(t *testing.T) {
	ids := makeIDs(40)
	full := Order("usr-1", "ds-1", ids)
	subset := Order("usr-1", "ds-1", ids[:39])

	assert.NotEqual(t, full[:39], subset)
}

func TestPositions(t *testing.T) {
	pos := Positions([]string{"c", "a", "b"})
	assert.Equal(t, map[string]int{"c": 0, "a": 1, "b": 2}, pos)
}
