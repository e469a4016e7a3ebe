package plugin

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"github.com/codewandler/clstr-dispatch/core/reflector"
)

// discoveryMu serializes discovery across all registries of the process.
var discoveryMu sync.Mutex

var errNotProvided = errors.New("capability not provided")

type Options struct {
	Log     *slog.Logger
	Metrics PluginMetrics
}

// Registry maps type ids to instances of capability T.
type Registry[T any] struct {
	capability reflector.TypeInfo
	ctype      reflect.Type
	catalog    *Catalog
	log        *slog.Logger
	metrics    PluginMetrics

	mu        sync.Mutex
	instances map[string]T
}

// NewRegistry creates a registry for T. catalog may be nil, then only
// registered instances resolve.
func NewRegistry[T any](catalog *Catalog, opts ...Options) *Registry[T] {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.Log == nil {
		o.Log = slog.Default()
	}
	if o.Metrics == nil {
		o.Metrics = NopPluginMetrics()
	}
	capability := reflector.TypeInfoFor[T]()
	return &Registry[T]{
		capability: capability,
		ctype:      reflect.TypeFor[T](),
		catalog:    catalog,
		log:        o.Log.With(slog.String("capability", capability.Short)),
		metrics:    o.Metrics,
		instances:  make(map[string]T),
	}
}

// Capability returns the fully qualified name of T.
func (r *Registry[T]) Capability() string { return r.capability.Name }

// Register associates typeID with instance, replacing any earlier instance.
func (r *Registry[T]) Register(typeID string, instance T) {
	r.mu.Lock()
	_, replaced := r.instances[typeID]
	r.instances[typeID] = instance
	r.mu.Unlock()

	if replaced {
		r.metrics.Overridden(r.capability.Name)
		r.log.Info("replaced registered instance",
			slog.String("type_id", typeID),
			slog.String("instance", fmt.Sprintf("%T", instance)),
		)
	}
}

// Get returns the instance for typeID, discovering it in the catalog on first
// use. Discovery failures return a *PluginError and are not cached.
func (r *Registry[T]) Get(typeID string) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.instances[typeID]; ok {
		return v, nil
	}

	v, err := r.discover(typeID)
	r.metrics.Resolved(r.capability.Name, err == nil)
	if err != nil {
		return v, err
	}
	r.instances[typeID] = v
	return v, nil
}

// MustGet is Get for startup code that cannot continue without the instance.
func (r *Registry[T]) MustGet(typeID string) T {
	v, err := r.Get(typeID)
	if err != nil {
		panic(err)
	}
	return v
}

// Names returns the ids that currently have an instance, sorted.
func (r *Registry[T]) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.instances))
	for id := range r.instances {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}

func (r *Registry[T]) fail(typeID, reason string, err error) *PluginError {
	return &PluginError{Capability: r.capability.Name, TypeID: typeID, Reason: reason, Err: err}
}

// discover must be called with r.mu held. Candidates are tried in provider
// name order; the first that yields a T wins.
func (r *Registry[T]) discover(typeID string) (T, error) {
	var zero T
	if r.catalog == nil || typeID == "" {
		return zero, r.fail(typeID, "no implementation registered", nil)
	}

	discoveryMu.Lock()
	defer discoveryMu.Unlock()

	candidates := r.catalog.candidates(typeID, r.ctype)
	for i, c := range candidates {
		v, err := instantiate[T](c)
		if errors.Is(err, errNotProvided) {
			continue
		}
		if err != nil {
			return zero, r.fail(typeID, "instantiation of "+c.name+" failed", err)
		}

		var others []string
		for _, o := range candidates[i+1:] {
			if o.known || (o.locator && serves[T](o)) {
				others = append(others, o.name)
			}
		}
		if len(others) > 0 {
			r.metrics.Ambiguous(r.capability.Name)
			r.log.Warn("several implementations found, using the first",
				slog.String("type_id", typeID),
				slog.String("selected", c.name),
				slog.Any("ignored", others),
			)
		}
		r.log.Debug("discovered implementation",
			slog.String("type_id", typeID),
			slog.String("provider", c.name),
		)
		return v, nil
	}

	return zero, r.fail(typeID, "no implementation found", nil)
}

// serves reports whether c yields a T. The instance is discarded.
func serves[T any](c candidate) bool {
	_, err := instantiate[T](c)
	return err == nil
}

func instantiate[T any](c candidate) (v T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("constructor panicked: %v", rec)
		}
	}()

	raw, err := c.make()
	if err != nil {
		return v, err
	}
	typed, ok := raw.(T)
	if !ok || raw == nil {
		// the provider serves other capabilities
		return v, errNotProvided
	}
	return typed, nil
}
