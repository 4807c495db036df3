package providers

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
)

var (
	// ErrProviderNotFound is returned when a provider is not registered
	ErrProviderNotFound = errors.New("provider not found")
)

// Registry holds the immutable provider catalog. Descriptors are loaded once
// at startup and only read afterwards, so access needs no locking.
type Registry struct {
	descriptors []Descriptor
	byID        map[string]Descriptor
	lookupEnv   func(string) (string, bool)
	logger      *zap.Logger
}

// RegistryOption customizes a Registry
type RegistryOption func(*Registry)

// WithEnvLookup overrides credential resolution, used in tests
func WithEnvLookup(lookup func(string) (string, bool)) RegistryOption {
	return func(r *Registry) {
		r.lookupEnv = lookup
	}
}

// NewRegistry creates a registry over the given descriptors, sorted by
// priority ascending. The input slice is copied.
func NewRegistry(descriptors []Descriptor, logger *zap.Logger, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		descriptors: make([]Descriptor, len(descriptors)),
		byID:        make(map[string]Descriptor, len(descriptors)),
		lookupEnv:   os.LookupEnv,
		logger:      logger,
	}
	copy(r.descriptors, descriptors)

	sort.SliceStable(r.descriptors, func(i, j int) bool {
		return r.descriptors[i].Priority < r.descriptors[j].Priority
	})

	for _, d := range r.descriptors {
		if d.ID == "" {
			return nil, errors.New("provider id cannot be empty")
		}
		if _, exists := r.byID[d.ID]; exists {
			return nil, fmt.Errorf("provider %s registered twice", d.ID)
		}
		if len(d.Models) == 0 {
			return nil, fmt.Errorf("provider %s declares no models", d.ID)
		}
		r.byID[d.ID] = d
	}

	for _, o := range opts {
		o(r)
	}

	return r, nil
}

// List returns all descriptors sorted by priority ascending. The returned
// slice is a copy; calling List twice yields identical ordered output.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Get retrieves a descriptor by id
func (r *Registry) Get(id string) (Descriptor, error) {
	d, ok := r.byID[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrProviderNotFound, id)
	}
	return d, nil
}

// HasCredential reports whether the descriptor's credential env var holds a
// non-empty value
func (r *Registry) HasCredential(d Descriptor) bool {
	v, ok := r.lookupEnv(d.CredentialEnv)
	return ok && v != ""
}

// Credential returns the descriptor's API key, empty when absent
func (r *Registry) Credential(d Descriptor) string {
	v, _ := r.lookupEnv(d.CredentialEnv)
	return v
}

// Count returns the number of registered providers
func (r *Registry) Count() int {
	return len(r.descriptors)
}
