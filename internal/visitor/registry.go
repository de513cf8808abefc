package visitor

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/m3connect/portal/internal/identity"
	"github.com/m3connect/portal/internal/obs"
	"github.com/m3connect/portal/internal/recovery"
	"github.com/m3connect/portal/internal/storage"
)

// ProviderFactory builds the identity client for a new visitor id.
type ProviderFactory func(visitorID string) identity.Provider

// Registry is a bounded set of live visitors. The least recently used
// visitor is closed when the bound is reached.
type Registry struct {
	mu          sync.Mutex
	cache       *lru.Cache[string, *Visitor]
	newProvider ProviderFactory
	profiles    storage.ProfileStore
	guard       recovery.Guard
	settings    Settings

	// evicted is filled by the LRU callback while mu is held; the visitors
	// are closed once mu is released.
	evicted []*Visitor
	closing sync.WaitGroup
}

func NewRegistry(size int, newProvider ProviderFactory, profiles storage.ProfileStore, guard recovery.Guard, settings Settings) (*Registry, error) {
	if guard == nil {
		guard = recovery.NewMemoryGuard(0)
	}
	r := &Registry{
		newProvider: newProvider,
		profiles:    profiles,
		guard:       guard,
		settings:    settings,
	}
	cache, err := lru.NewWithEvict(size, func(_ string, v *Visitor) {
		r.evicted = append(r.evicted, v)
	})
	if err != nil {
		return nil, fmt.Errorf("visitor registry: %w", err)
	}
	r.cache = cache
	return r, nil
}

// takeEvictedLocked hands over the visitors evicted so far.
func (r *Registry) takeEvictedLocked() []*Visitor {
	out := r.evicted
	r.evicted = nil
	return out
}

// closeInBackground closes evicted visitors without holding the registry,
// since a visitor in the middle of a page load keeps its lock until the
// identity provider answers.
func (r *Registry) closeInBackground(visitors []*Visitor) {
	for _, v := range visitors {
		r.closing.Add(1)
		go func(v *Visitor) {
			defer r.closing.Done()
			v.Close()
		}(v)
	}
}

// Get returns the visitor for id, creating it when unknown.
func (r *Registry) Get(id string) *Visitor {
	r.mu.Lock()
	if v, ok := r.cache.Get(id); ok {
		r.mu.Unlock()
		return v
	}
	v := newVisitor(id, r.newProvider(id), r.profiles, r.guard, r.settings)
	r.cache.Add(id, v)
	obs.SetActiveVisitors(r.cache.Len())
	evicted := r.takeEvictedLocked()
	r.mu.Unlock()

	r.closeInBackground(evicted)
	return v
}

// Lookup returns the visitor for id without creating one.
func (r *Registry) Lookup(id string) (*Visitor, bool) {
	return r.cache.Get(id)
}

// Len is the number of live visitors.
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Close closes every visitor.
func (r *Registry) Close() {
	r.mu.Lock()
	r.cache.Purge()
	obs.SetActiveVisitors(0)
	evicted := r.takeEvictedLocked()
	r.mu.Unlock()

	r.closeInBackground(evicted)
	r.closing.Wait()
}
