package vcs

import (
	stderrors "errors"
	"fmt"
	"sync"

	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
)

// Registry dispatches on a unit's Kind tag to the matching backend.
type Registry struct {
	mu      sync.RWMutex
	clients map[Kind]Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[Kind]Client)}
}

// Register installs the backend for kind, replacing any previous one.
func (r *Registry) Register(kind Kind, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[kind] = c
}

// For returns the backend for kind.
func (r *Registry) For(kind Kind) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[kind]
	if !ok {
		return nil, errors.ConfigError(fmt.Sprintf("no version-control backend registered for %q", kind)).Build()
	}
	return c, nil
}

// Close closes every registered backend.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for kind, c := range r.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s backend: %w", kind, err))
		}
	}
	return stderrors.Join(errs...)
}
