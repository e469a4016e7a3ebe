package plugin

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Provider offers one constructor under a namespace. Name identifies the
// provider in logs and orders competing candidates; it defaults to Namespace.
// Type is the type New returns. When it is set, registries of capabilities
// Type does not satisfy skip the provider without calling New.
type Provider struct {
	Namespace string
	Name      string
	Type      reflect.Type
	// New runs while discovery holds the resolving Registry and a process
	// wide discovery lock. It must not call Get, MustGet or Register on any
	// Registry; doing so deadlocks. Resolve dependencies before adding the
	// provider, or lazily after the constructor returned.
	New func() (any, error)
}

// Provide builds a typed Provider from a constructor.
func Provide[T any](namespace, name string, fn func() (T, error)) Provider {
	return Provider{
		Namespace: namespace,
		Name:      name,
		Type:      reflect.TypeFor[T](),
		New: func() (any, error) {
			v, err := fn()
			if err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

// Locator is a provider that can produce several capabilities. Locate
// returns an instance of capability, or false if it has none. Locate runs
// under the same locks as Provider.New and must not call into any Registry.
// It may be asked more than once per discovery when several candidates
// compete for an id.
type Locator interface {
	Locate(capability reflect.Type) (any, bool)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(capability reflect.Type) (any, bool)

func (f LocatorFunc) Locate(capability reflect.Type) (any, bool) { return f(capability) }

type locatorEntry struct {
	namespace string
	name      string
	loc       Locator
}

// Catalog is the static table discovery searches. It is filled at program
// start and passed to every Registry that needs it.
type Catalog struct {
	mu        sync.RWMutex
	providers []Provider
	locators  []locatorEntry
}

func NewCatalog() *Catalog { return &Catalog{} }

// Add appends providers. Providers without a namespace or constructor are
// rejected.
func (c *Catalog) Add(providers ...Provider) error {
	for _, p := range providers {
		if p.Namespace == "" {
			return fmt.Errorf("plugin: provider %q has no namespace", p.Name)
		}
		if p.New == nil {
			return fmt.Errorf("plugin: provider %q has no constructor", p.Namespace)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range providers {
		if p.Name == "" {
			p.Name = p.Namespace
		}
		c.providers = append(c.providers, p)
	}
	return nil
}

// AddLocator registers a locator for every capability under namespace.
func (c *Catalog) AddLocator(namespace, name string, loc Locator) error {
	if namespace == "" || loc == nil {
		return fmt.Errorf("plugin: locator needs a namespace and an implementation")
	}
	if name == "" {
		name = namespace
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locators = append(c.locators, locatorEntry{namespace: namespace, name: name, loc: loc})
	return nil
}

type candidate struct {
	name string
	// known is set when the provider's type is known to satisfy the
	// capability.
	known bool
	// locator is set for AddLocator entries.
	locator bool
	make    func() (any, error)
}

// candidates lists the constructors under id for capability, sorted by
// provider name.
func (c *Catalog) candidates(id string, capability reflect.Type) []candidate {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []candidate
	for _, p := range c.providers {
		if !inNamespace(p.Namespace, id) {
			continue
		}
		if p.Type != nil && !p.Type.AssignableTo(capability) {
			continue
		}
		out = append(out, candidate{name: p.Name, known: p.Type != nil, make: p.New})
	}
	for _, e := range c.locators {
		if !inNamespace(e.namespace, id) {
			continue
		}
		loc := e.loc
		out = append(out, candidate{name: e.name, locator: true, make: func() (any, error) {
			v, ok := loc.Locate(capability)
			if !ok {
				return nil, errNotProvided
			}
			return v, nil
		}})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].name < out[b].name })
	return out
}

func inNamespace(ns, id string) bool {
	return ns == id || strings.HasPrefix(ns, id+".")
}
