// Package reflector names Go types. The plugin registry uses it to derive the
// capability name of the values it hands out.
package reflector

import (
	"path"
	"reflect"
	"sync"
)

// maxCacheSize bounds the name cache; the cache is reset when it is reached.
const maxCacheSize = 1024

var (
	muCache sync.RWMutex
	cache   = make(map[reflect.Type]TypeInfo)
)

// TypeInfo describes a type by name.
type TypeInfo struct {
	// Name is the fully qualified name, "pkg/path.TypeName". Unnamed types use
	// their Go syntax, e.g. "func(string) error".
	Name string
	// Short is the package name plus type name, "transport.Factory".
	Short string
	Type  reflect.Type
	// Pointer is set when the inspected type was a pointer; Type and the
	// names then describe the element type.
	Pointer bool
}

// IsInterface reports whether the described type is an interface type.
func (ti TypeInfo) IsInterface() bool {
	return ti.Type != nil && ti.Type.Kind() == reflect.Interface
}

// TypeInfoOf returns TypeInfo for the dynamic type of x.
func TypeInfoOf(x any) TypeInfo {
	return TypeInfoForType(reflect.TypeOf(x))
}

// TypeInfoFor returns TypeInfo for T. Interface types are described as
// themselves.
func TypeInfoFor[T any]() TypeInfo {
	return TypeInfoForType(reflect.TypeFor[T]())
}

// TypeInfoForType returns the cached TypeInfo for t. It is safe for
// concurrent use.
func TypeInfoForType(t reflect.Type) TypeInfo {
	if t == nil {
		return TypeInfo{}
	}

	muCache.RLock()
	ti, ok := cache[t]
	muCache.RUnlock()
	if ok {
		return ti
	}

	ti = describe(t)

	muCache.Lock()
	defer muCache.Unlock()
	if existing, ok := cache[t]; ok {
		return existing
	}
	if len(cache) >= maxCacheSize {
		cache = make(map[reflect.Type]TypeInfo)
	}
	cache[t] = ti
	return ti
}

func describe(t reflect.Type) TypeInfo {
	ti := TypeInfo{}
	if t.Kind() == reflect.Pointer {
		ti.Pointer = true
		t = t.Elem()
	}
	ti.Type = t

	if t.Name() == "" {
		ti.Name = t.String()
		ti.Short = ti.Name
		return ti
	}
	if t.PkgPath() == "" {
		// predeclared types such as string or error
		ti.Name = t.Name()
		ti.Short = t.Name()
		return ti
	}
	ti.Name = t.PkgPath() + "." + t.Name()
	ti.Short = path.Base(t.PkgPath()) + "." + t.Name()
	return ti
}
