package shuffle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_MissThenHit(t *testing.T) {
	c := NewCache(time.Minute, 0)
	ctx := context.Background()
	key := Key{UserID: "usr-1", DatasetID: "ds-1", Filter: "all", Total: 25}

	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return makeIDs(25), nil
	}

	pos, hit, err := c.Positions(ctx, key, nil, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, pos, 25)

	again, hit, err := c.Positions(ctx, key, nil, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, pos, again)
	assert.Equal(t, 1, calls)

	// The cached positions agree with a fresh shuffle.
	assert.Equal(t, Positions(Order("usr-1", "ds-1", makeIDs(25))), pos)
}

func TestCache_KeyIncludesFilterAndTotal(t *testing.T) {
	c := NewCache(0, 0)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return makeIDs(5), nil
	}

	base := Key{UserID: "usr-1", DatasetID: "ds-1", Filter: "all", Total: 5}
	_, _, _ = c.Positions(ctx, base, nil, load)

	filtered := base
	filtered.Filter = "1,2"
	_, hit, _ := c.Positions(ctx, filtered, nil, load)
	assert.False(t, hit)

	grown := base
	grown.Total = 6
	_, hit, _ = c.Positions(ctx, grown, nil, load)
	assert.False(t, hit)

	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, c.Len())
}

func TestCache_LoadErrorNotCached(t *testing.T) {
	c := NewCache(0, 0)
	ctx := context.Background()
	key := Key{UserID: "usr-1", DatasetID: "ds-1", Filter: "all", Total: 3}

	boom := errors.New("database is locked")
	_, _, err := c.Positions(ctx, key, nil, func(context.Context) ([]string, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

func TestCache_InvalidateDataset(t *testing.T) {
	c := NewCache(0, 0)
	ctx := context.Background()
	load := func(context.Context) ([]string, error) { return makeIDs(3), nil }

	_, _, _ = c.Positions(ctx, Key{UserID: "usr-1", DatasetID: "ds-1", Filter: "all", Total: 3}, nil, load)
	_, _, _ = c.Positions(ctx, Key{UserID: "usr-2", DatasetID: "ds-1", Filter: "all", Total: 3}, nil, load)
	_, _, _ = c.Positions(ctx, Key{UserID: "usr-1", DatasetID: "ds-2", Filter: "all", Total: 3}, nil, load)

	c.InvalidateDataset("ds-1")
	assert.Equal(t, 1, c.Len())
}

func TestCache_ChangedIDSetSameSizeRecomputes(t *testing.T) {
	c := NewCache(0, 0)
	ctx := context.Background()
	key := Key{UserID: "usr-1", DatasetID: "ds-1", Filter: "all", Total: 3}

	ids := []string{"en-a", "en-b", "en-c"}
	load := func(context.Context) ([]string, error) { return ids, nil }

	_, hit, err := c.Positions(ctx, key, []string{"en-a"}, load)
	require.NoError(t, err)
	assert.False(t, hit)

	_, hit, err = c.Positions(ctx, key, []string{"en-b", "en-c"}, load)
	require.NoError(t, err)
	assert.True(t, hit)

	ids = []string{"en-a", "en-b", "en-d"}
	pos, hit, err := c.Positions(ctx, key, []string{"en-d"}, load)
	require.NoError(t, err)
	assert.False(t, hit, "an id outside the cached set forces a reload")
	assert.Equal(t, Positions(Order("usr-1", "ds-1", ids)), pos)

	_, hit, err = c.Positions(ctx, key, []string{"en-d"}, load)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestKey_String(t *testing.T) {
	k := Key{UserID: "usr-1", DatasetID: "ds-1", Filter: "1,2", Total: 40}
	assert.Equal(t, "usr-1|ds-1|1,2|40", k.String())
}
