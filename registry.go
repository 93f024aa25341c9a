package facade

import (
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Catalog supplies entry points keyed by facade identity.
type Catalog interface {
	EntryPoints(facade string) []*EntryPoint
}

// Registry is a Catalog built at startup. Registration order within a facade
// is the order the router tries entry points.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string][]*EntryPoint
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string][]*EntryPoint)}
}

// Register appends eps to facade. Nothing is registered if any entry point
// repeats an owner and signature already present in the facade or in eps.
func (r *Registry) Register(facade string, eps ...*EntryPoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing := r.entries[facade]
	seen := lo.SliceToMap(existing, func(ep *EntryPoint) (string, struct{}) {
		return ep.Signature(), struct{}{}
	})
	for _, ep := range eps {
		sig := ep.Signature()
		if _, ok := seen[sig]; ok {
			return fmt.Errorf("%w: facade %q: %s", ErrDuplicateEntryPoint, facade, sig)
		}
		seen[sig] = struct{}{}
	}

	if _, ok := r.entries[facade]; !ok {
		r.order = append(r.order, facade)
	}
	r.entries[facade] = append(slices.Clip(existing), eps...)
	return nil
}

// EntryPoints implements Catalog. It returns a copy.
func (r *Registry) EntryPoints(facade string) []*EntryPoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.entries[facade])
}

// Facades returns registered facade identities in first-registration order.
func (r *Registry) Facades() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}
