package shuffle

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// Default lifetimes for cached permutations.
const (
	DefaultTTL             = 10 * time.Minute
	DefaultCleanupInterval = 20 * time.Minute
)

// Key identifies one permutation. Total narrows the key to one size of the
// filtered id set; Positions also checks the ids being placed, so a set that
// changed at the same size is still recomputed.
type Key struct {
	UserID    string
	DatasetID string
	Filter    string
	Total     int
}

func (k Key) String() string {
	return strings.Join([]string{k.UserID, k.DatasetID, k.Filter, strconv.Itoa(k.Total)}, "|")
}

// Cache memoizes permutations so page loads do not reshuffle the full
// filtered id list on every request.
type Cache struct {
	items *cache.Cache
}

// NewCache creates a permutation cache. Zero durations use the defaults.
func NewCache(ttl, cleanup time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cleanup <= 0 {
		cleanup = DefaultCleanupInterval
	}
	return &Cache{items: cache.New(ttl, cleanup)}
}

// Positions returns the position of every id in the user's permutation,
// computing it from load on a miss. A cached permutation that lacks any of
// placed is treated as a miss and replaced. The second return reports a
// cache hit.
func (c *Cache) Positions(ctx context.Context, key Key, placed []string, load func(ctx context.Context) ([]string, error)) (map[string]int, bool, error) {
	k := key.String()
	if cached, found := c.items.Get(k); found {
		if pos, ok := cached.(map[string]int); ok && covers(pos, placed) {
			return pos, true, nil
		}
	}

	ids, err := load(ctx)
	if err != nil {
		return nil, false, err
	}

	pos := Positions(Order(key.UserID, key.DatasetID, ids))
	c.items.Set(k, pos, cache.DefaultExpiration)
	return pos, false, nil
}

func covers(pos map[string]int, ids []string) bool {
	for _, id := range ids {
		if _, ok := pos[id]; !ok {
			return false
		}
	}
	return true
}

// InvalidateDataset drops every cached permutation for the dataset.
func (c *Cache) InvalidateDataset(datasetID string) {
	for k := range c.items.Items() {
		parts := strings.SplitN(k, "|", 3)
		if len(parts) >= 2 && parts[1] == datasetID {
			c.items.Delete(k)
		}
	}
}

// Len returns the number of cached permutations, including expired ones not yet cleaned up.
func (c *Cache) Len() int {
	return c.items.ItemCount()
}
