package oauth

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sakif/authcore/internal/apperror"
)

// Registry holds verifiers keyed by name. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	verifiers map[string]Verifier
}

func NewRegistry() *Registry {
	return &Registry{verifiers: make(map[string]Verifier)}
}

// Register adds v under v.Name(). A name can only be registered once;
// a second registration fails with apperror.DuplicateProvider.
func (r *Registry) Register(v Verifier) error {
	name := v.Name()
	if name == "" {
		return apperror.ValidationFailed("provider", "oauth: verifier name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.verifiers[name]; ok {
		return apperror.WithCode(
			apperror.Conflict("oauth provider", name),
			apperror.DuplicateProvider,
		)
	}
	r.verifiers[name] = v
	return nil
}

// Lookup returns the verifier registered under name, or an error carrying
// apperror.UnknownProvider.
func (r *Registry) Lookup(name string) (Verifier, error) {
	r.mu.RLock()
	v, ok := r.verifiers[name]
	r.mu.RUnlock()

	if !ok {
		return nil, apperror.Auth(apperror.UnknownProvider,
			fmt.Sprintf("no oauth provider registered as %q", name))
	}
	return v, nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.verifiers))
	for n := range r.verifiers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
