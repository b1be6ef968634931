package auth

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ProviderPool keeps one Provider per session token for the process
// lifetime. Entries expire after ttl and are closed when evicted.
type ProviderPool struct {
	backend     IdentityBackend
	opts        []ProviderOption
	cache       *expirable.LRU[string, *Provider]
	unsubscribe func()
	mu          sync.Mutex
}

// NewProviderPool returns a pool holding at most size providers.
func NewProviderPool(backend IdentityBackend, size int, ttl time.Duration, opts ...ProviderOption) *ProviderPool {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	pp := &ProviderPool{
		backend: backend,
		opts:    opts,
	}
	pp.cache = expirable.NewLRU[string, *Provider](size, func(_ string, p *Provider) {
		p.Close()
	}, ttl)

	pp.unsubscribe = backend.OnSessionChange(func(evt SessionEvent) {
		switch evt.Type {
		case SessionSignedOut, SessionExpired:
			pp.Remove(evt.Token)
		}
	})

	return pp
}

// Get returns the provider for token, creating it on first use. Anonymous
// requests get a fresh provider that is not pooled.
func (pp *ProviderPool) Get(token string) *Provider {
	if token == "" {
		return NewProvider(pp.backend, "", pp.opts...)
	}

	pp.mu.Lock()
	defer pp.mu.Unlock()

	if p, ok := pp.cache.Get(token); ok {
		return p
	}

	p := NewProvider(pp.backend, token, pp.opts...)
	pp.cache.Add(token, p)
	return p
}

// Remove drops and closes the provider for token.
func (pp *ProviderPool) Remove(token string) {
	if token == "" {
		return
	}
	pp.cache.Remove(token)
}

func (pp *ProviderPool) Len() int {
	return pp.cache.Len()
}

// Close closes every pooled provider and stops listening to the backend.
func (pp *ProviderPool) Close() {
	if pp.unsubscribe != nil {
		pp.unsubscribe()
	}
	pp.cache.Purge()
}
