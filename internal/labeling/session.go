package labeling

import (
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/sentilabel/sentilabel-server/internal/scorefilter"
)

// DefaultSessionTTL is how long an idle labeling session is remembered.
const DefaultSessionTTL = 30 * time.Minute

// SessionState is a snapshot of one user's position in one dataset.
type SessionState struct {
	Filter     scorefilter.Set
	Page       int
	Generation uint64
}

type session struct {
	mu    sync.Mutex
	state SessionState
}

// SessionRegistry holds the live labeling session per (user, dataset).
//
// Every page load takes a new generation; a load whose generation is no
// longer the latest when it finishes is stale and must not move the session.
// Entries expire after the TTL without access. Expiry only loses the filter:
// the page is persisted through ProgressTracker and reseeds the session.
type SessionRegistry struct {
	items *cache.Cache
	mu    sync.Mutex // serializes session creation
}

// NewSessionRegistry creates a registry whose sessions expire after ttl of inactivity.
func NewSessionRegistry(ttl time.Duration) *SessionRegistry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionRegistry{
		items: cache.New(ttl, ttl*2),
	}
}

func sessionKey(userID, datasetID string) string {
	return userID + "|" + datasetID
}

// get returns the session and slides its expiry. create controls whether a
// missing session is created from seed.
func (r *SessionRegistry) get(userID, datasetID string, create bool, seed SessionState) *session {
	key := sessionKey(userID, datasetID)
	if v, found := r.items.Get(key); found {
		s := v.(*session)
		r.items.Set(key, s, cache.DefaultExpiration)
		return s
	}
	if !create {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, found := r.items.Get(key); found {
		return v.(*session)
	}

	if seed.Filter == nil {
		seed.Filter = scorefilter.All()
	}
	s := &session{state: seed}
	r.items.Set(key, s, cache.DefaultExpiration)
	return s
}

// Lookup returns the current state, if a session exists.
func (r *SessionRegistry) Lookup(userID, datasetID string) (SessionState, bool) {
	s := r.get(userID, datasetID, false, SessionState{})
	if s == nil {
		return SessionState{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, true
}

// Open returns the session state, creating it at page with the "all" filter
// when none exists.
func (r *SessionRegistry) Open(userID, datasetID string, page int) SessionState {
	s := r.get(userID, datasetID, true, SessionState{Page: page})
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Begin starts a page load and returns its generation.
func (r *SessionRegistry) Begin(userID, datasetID string) uint64 {
	s := r.get(userID, datasetID, true, SessionState{})
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Generation++
	return s.state.Generation
}

// Commit records the page and filter a load resolved to, but only when gen
// is still the latest generation. It reports whether the load was current.
func (r *SessionRegistry) Commit(userID, datasetID string, gen uint64, page int, filter scorefilter.Set) bool {
	s := r.get(userID, datasetID, true, SessionState{})
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Generation != gen {
		return false
	}
	s.state.Page = page
	s.state.Filter = filter
	return true
}

// IsCurrent reports whether gen is the latest generation.
func (r *SessionRegistry) IsCurrent(userID, datasetID string, gen uint64) bool {
	s := r.get(userID, datasetID, false, SessionState{})
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Generation == gen
}

// Forget drops the session, for example after the dataset is deleted.
func (r *SessionRegistry) Forget(userID, datasetID string) {
	r.items.Delete(sessionKey(userID, datasetID))
}

// ForgetDataset drops every session on the dataset.
func (r *SessionRegistry) ForgetDataset(datasetID string) {
	suffix := "|" + datasetID
	for k := range r.items.Items() {
		if strings.HasSuffix(k, suffix) {
			r.items.Delete(k)
		}
	}
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	return r.items.ItemCount()
}
