// Package chipreg implements the Chip Registry (spec §4.2): a name→handler
// mapping with dynamic discovery and module-prefix lookup fallback.
//
// The source's "dynamic discovery" walks dotted Python package namespaces
// and registers any function decorated as a chip. Go has no runtime
// decorator/annotation mechanism, so discovery here follows the teacher's
// provider pattern (runtime/toolregistry/provider.Handler): a chip Provider
// declares its chips explicitly via a Chips() method, and Discover walks a
// set of Providers instead of package roots.
package chipreg

import (
	"context"
	"sort"
	"sync"

	"github.com/reasonchip/reasonchip/internal/rcerrors"
)

type (
	// Handler is the async function bound to a chip name. It accepts
	// exactly one structured argument and returns exactly one structured
	// value (spec §3 "Chip" invariant).
	Handler func(ctx context.Context, params map[string]any) (map[string]any, error)

	// Schema describes the shape a chip's request or response must take.
	// ReasonChip validates against it with go-playground/validator tags
	// projected onto a decoded map (see internal/chipreg/schema.go).
	Schema struct {
		// Fields maps a field name to validator tag constraints
		// ("required", "gte=0", "oneof=a b", ...). Empty means "no
		// constraints beyond being present in the map when required".
		Fields map[string]FieldSpec
	}

	// FieldSpec describes one schema field.
	FieldSpec struct {
		Required bool
		Tag      string // go-playground/validator tag, e.g. "gte=0,lte=100"
	}

	// Entry is a registered chip: its handler and declared schemas.
	Entry struct {
		Name            string
		Handler         Handler
		RequestSchema   Schema
		ResponseSchema  Schema
	}

	// ChipDef is one chip a Provider wants registered.
	ChipDef struct {
		Name           string
		Handler        Handler
		RequestSchema  Schema
		ResponseSchema Schema
	}

	// Provider groups a set of related chips under a common module prefix
	// (e.g. "redis" for redis.redis_execute), mirroring the source's
	// package-namespace discovery.
	Provider interface {
		// ModulePrefix is prepended (with a dot) to each chip's bare name
		// for the fallback lookup path (spec §4.2).
		ModulePrefix() string
		Chips() []ChipDef
	}
)

// Registry is the name→chip mapping. Immutable after startup: Discover
// happens once, then only Lookup is called (spec §5 "Shared-resource
// policy").
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*Entry
	prefixes []string
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds a single chip. Collisions are fatal (spec §4.2): a second
// registration under the same name returns an error instead of overwriting.
func (r *Registry) Register(name string, h Handler, req, resp Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return rcerrors.New(rcerrors.KindValidation, "chip %q already registered", name)
	}
	r.entries[name] = &Entry{Name: name, Handler: h, RequestSchema: req, ResponseSchema: resp}
	return nil
}

// Discover eagerly registers every chip declared by each provider, and
// records the provider's module prefix for fallback lookups.
func (r *Registry) Discover(providers ...Provider) error {
	for _, p := range providers {
		prefix := p.ModulePrefix()
		if prefix != "" {
			r.mu.Lock()
			r.prefixes = append(r.prefixes, prefix)
			r.mu.Unlock()
		}
		for _, def := range p.Chips() {
			name := def.Name
			if prefix != "" {
				name = prefix + "." + def.Name
			}
			if err := r.Register(name, def.Handler, def.RequestSchema, def.ResponseSchema); err != nil {
				return err
			}
		}
	}
	return nil
}

// Lookup resolves a chip by bare or already-qualified name. It first tries
// the exact name; on failure it tries each configured module prefix in
// registration order (e.g. bare "redis_execute" reached as
// "redis.redis_execute").
func (r *Registry) Lookup(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[name]; ok {
		return e, true
	}
	for _, prefix := range r.prefixes {
		if e, ok := r.entries[prefix+"."+name]; ok {
			return e, true
		}
	}
	return nil, false
}

// Has reports whether name resolves to a registered chip, for load-time
// reference validation (spec §4.5 Engine.load invariant (ii)).
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Names returns every exactly-registered chip name, sorted, for debugging
// and `reasonchip worker --list-chips`-style introspection.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
