package capability

import (
	"fmt"
	"sort"
)

// Registry is the immutable mapping from action name to Descriptor. It is
// built once at start-up by a Builder and then passed by value of its
// pointer into the components that need it; it has no mutators, so it is
// safe to share without locking.
type Registry struct {
	descriptors map[string]Descriptor
	names       []string
}

// Lookup retrieves a descriptor by action name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	descriptor, exists := r.descriptors[name]
	return descriptor, exists
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, exists := r.descriptors[name]
	return exists
}

// Names returns the registered action names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Descriptors returns every descriptor, sorted by name.
func (r *Registry) Descriptors() []Descriptor {
	descriptors := make([]Descriptor, 0, len(r.names))
	for _, name := range r.names {
		descriptors = append(descriptors, r.descriptors[name])
	}
	return descriptors
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	return len(r.names)
}

// Tiers returns the tier table of the registry: every registered name
// mapped to its assigned tier.
func (r *Registry) Tiers() map[string]Tier {
	tiers := make(map[string]Tier, len(r.descriptors))
	for name, descriptor := range r.descriptors {
		tiers[name] = descriptor.Tier
	}
	return tiers
}

// Builder accumulates descriptors before the registry is frozen.
type Builder struct {
	descriptors map[string]Descriptor
	disabled    map[string]bool
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		descriptors: make(map[string]Descriptor),
		disabled:    make(map[string]bool),
	}
}

// Register adds a capability under descriptor.Name. The descriptor's Tier
// is ignored: tiers are assigned from the tier table passed to Build.
func (b *Builder) Register(descriptor Descriptor) error {
	if descriptor.Name == "" {
		return fmt.Errorf("capability name is required")
	}
	if descriptor.Capability == nil {
		return fmt.Errorf("capability '%s' has no handler", descriptor.Name)
	}
	if _, exists := b.descriptors[descriptor.Name]; exists {
		return fmt.Errorf("capability '%s' is already registered", descriptor.Name)
	}
	b.descriptors[descriptor.Name] = descriptor
	return nil
}

// MustRegister adds a capability, panicking if it fails.
func (b *Builder) MustRegister(descriptor Descriptor) {
	if err := b.Register(descriptor); err != nil {
		panic(err)
	}
}

// Disable excludes names from the built registry. Unknown names are ignored.
func (b *Builder) Disable(names ...string) {
	for _, name := range names {
		b.disabled[name] = true
	}
}

// Build freezes the registered capabilities into a Registry. Each
// capability receives its tier from tiers; names absent from the table
// default to TierSafe.
func (b *Builder) Build(tiers map[string]Tier) *Registry {
	registry := &Registry{descriptors: make(map[string]Descriptor, len(b.descriptors))}
	for name, descriptor := range b.descriptors {
		if b.disabled[name] {
			continue
		}
		descriptor.Tier = tiers[name]
		registry.descriptors[name] = descriptor
		registry.names = append(registry.names, name)
	}
	sort.Strings(registry.names)
	return registry
}
