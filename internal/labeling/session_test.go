package labeling

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentilabel/sentilabel-server/internal/scorefilter"
)

func TestSessionRegistry_OpenSeedsOnce(t *testing.T) {
	r := NewSessionRegistry(time.Minute)

	state := r.Open("usr-1", "ds1", 4)
	assert.Equal(t, 4, state.Page)
	assert.Equal(t, scorefilter.All(), state.Filter)

	state = r.Open("usr-1", "ds1", 9)
	assert.Equal(t, 4, state.Page, "existing session is not reseeded")
}

func TestSessionRegistry_CommitRequiresLatestGeneration(t *testing.T) {
	r := NewSessionRegistry(time.Minute)

	older := r.Begin("usr-1", "ds1")
	newer := r.Begin("usr-1", "ds1")
	require.Greater(t, newer, older)

	assert.False(t, r.Commit("usr-1", "ds1", older, 3, scorefilter.All()))
	assert.True(t, r.Commit("usr-1", "ds1", newer, 1, scorefilter.Set{"2"}))

	state, ok := r.Lookup("usr-1", "ds1")
	require.True(t, ok)
	assert.Equal(t, 1, state.Page)
	assert.Equal(t, scorefilter.Set{"2"}, state.Filter)
	assert.True(t, r.IsCurrent("usr-1", "ds1", newer))
}

func TestSessionRegistry_GenerationsAreUnique(t *testing.T) {
	r := NewSessionRegistry(time.Minute)

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		seen = map[uint64]bool{}
	)
	for range 50 {
		wg.Go(func() {
			gen := r.Begin("usr-1", "ds1")
			mu.Lock()
			seen[gen] = true
			mu.Unlock()
		})
	}
	wg.Wait()

	assert.Len(t, seen, 50)
	assert.Equal(t, 1, r.Len())
}

func TestSessionRegistry_Forget(t *testing.T) {
	r := NewSessionRegistry(time.Minute)
	r.Open("usr-1", "ds1", 0)
	r.Open("usr-2", "ds1", 0)
	r.Open("usr-1", "ds2", 0)

	r.Forget("usr-1", "ds2")
	_, ok := r.Lookup("usr-1", "ds2")
	assert.False(t, ok)

	r.ForgetDataset("ds1")
	assert.Zero(t, r.Len())
}

func TestSessionRegistry_Expires(t *testing.T) {
	r := NewSessionRegistry(20 * time.Millisecond)
	r.Open("usr-1", "ds1", 2)

	assert.Eventually(t, func() bool {
		_, ok := r.Lookup("usr-1", "ds1")
		return !ok
	}, time.Second, 10*time.Millisecond)
}
