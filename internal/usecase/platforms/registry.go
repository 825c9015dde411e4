package platforms

import (
	"sync"

	"rateKit/internal/domain"
)

// oauthCapable and refreshCapable let an adapter opt out of a capability it
// implements but has no client credentials for.
type oauthCapable interface {
	OAuthEnabled() bool
}

type refreshCapable interface {
	CanRefresh() bool
}

// Registry is the dispatch table from platform identifier to adapter
// capabilities. Lookups copy out under the read lock; no lock is held while an
// adapter performs I/O.
type Registry struct {
	mu         sync.RWMutex
	adapters   map[domain.Platform]domain.Adapter
	oauth      map[domain.Platform]domain.OAuthProvider
	refreshers map[domain.Platform]domain.TokenRefresher
}

func NewRegistry() *Registry {
	return &Registry{
		adapters:   make(map[domain.Platform]domain.Adapter),
		oauth:      make(map[domain.Platform]domain.OAuthProvider),
		refreshers: make(map[domain.Platform]domain.TokenRefresher),
	}
}

// Register adds an adapter and whatever optional capabilities it provides.
// Registering nil for a platform removes it.
func (r *Registry) Register(platform domain.Platform, adapter domain.Adapter) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if adapter == nil {
		delete(r.adapters, platform)
		delete(r.oauth, platform)
		delete(r.refreshers, platform)
		return
	}
	r.adapters[platform] = adapter

	delete(r.oauth, platform)
	if p, ok := adapter.(domain.OAuthProvider); ok {
		if c, ok := adapter.(oauthCapable); !ok || c.OAuthEnabled() {
			r.oauth[platform] = p
		}
	}

	delete(r.refreshers, platform)
	if tr, ok := adapter.(domain.TokenRefresher); ok {
		if c, ok := adapter.(refreshCapable); !ok || c.CanRefresh() {
			r.refreshers[platform] = tr
		}
	}
}

func (r *Registry) Adapter(platform domain.Platform) (domain.Adapter, error) {
	r.mu.RLock()
	a, ok := r.adapters[platform]
	r.mu.RUnlock()
	if !ok {
		return nil, &domain.UnsupportedPlatformError{Platform: string(platform)}
	}
	return a, nil
}

// Resolve parses a raw identifier and returns its adapter.
func (r *Registry) Resolve(raw string) (domain.Platform, domain.Adapter, error) {
	platform, err := domain.ParsePlatform(raw)
	if err != nil {
		return "", nil, err
	}
	a, err := r.Adapter(platform)
	if err != nil {
		return "", nil, err
	}
	return platform, a, nil
}

func (r *Registry) OAuth(platform domain.Platform) (domain.OAuthProvider, error) {
	r.mu.RLock()
	p, ok := r.oauth[platform]
	r.mu.RUnlock()
	if !ok {
		return nil, &domain.UnsupportedPlatformError{Platform: string(platform)}
	}
	return p, nil
}

func (r *Registry) Refresher(platform domain.Platform) (domain.TokenRefresher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tr, ok := r.refreshers[platform]
	return tr, ok
}

// Platforms lists registered platforms in canonical order.
func (r *Registry) Platforms() []domain.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Platform, 0, len(r.adapters))
	for _, p := range domain.AllPlatforms {
		if _, ok := r.adapters[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
