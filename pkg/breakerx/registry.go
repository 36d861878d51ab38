package breakerx

import (
	"sort"
	"sync"

	"github.com/Abraxas-365/drugcontent/pkg/errx"
)

var ErrUnknown = breakerErrors.Register("UNKNOWN", errx.TypeNotFound, "No circuit breaker with that name")

// Registry hands out one breaker per downstream dependency name.
type Registry struct {
	mu       sync.Mutex
	defaults Options
	breakers map[string]*Breaker
}

func NewRegistry(defaults Options) *Registry {
	return &Registry{defaults: defaults, breakers: make(map[string]*Breaker)}
}

// Get returns the breaker for name, creating it with the registry defaults.
func (r *Registry) Get(name string) *Breaker {
	return r.GetWith(name, r.defaults)
}

// GetWith returns the breaker for name, creating it with opts. Options are
// ignored when the breaker already exists.
func (r *Registry) GetWith(name string, opts Options) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := New(name, opts)
	r.breakers[name] = b
	return b
}

// Lookup returns an existing breaker.
func (r *Registry) Lookup(name string) (*Breaker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	if !ok {
		return nil, breakerErrors.New(ErrUnknown).WithDetail("breaker", name)
	}
	return b, nil
}

// Stats snapshots every breaker, sorted by name.
func (r *Registry) Stats() []Stats {
	r.mu.Lock()
	names := make([]string, 0, len(r.breakers))
	for n := range r.breakers {
		names = append(names, n)
	}
	r.mu.Unlock()
	sort.Strings(names)

	out := make([]Stats, 0, len(names))
	for _, n := range names {
		b, err := r.Lookup(n)
		if err == nil {
			out = append(out, b.Stats())
		}
	}
	return out
}

// Reset closes the named breaker.
func (r *Registry) Reset(name string) error {
	b, err := r.Lookup(name)
	if err != nil {
		return err
	}
	b.Reset()
	return nil
}

// ResetAll closes every breaker.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.breakers {
		b.Reset()
	}
}
