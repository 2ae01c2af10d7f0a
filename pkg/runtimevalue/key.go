// Package runtimevalue implements the typed key/value attributes attached
// to a proxy (SeatId, TargetId, PublicPath, ...). Keys are registered once
// at process start in a write-once, process-wide registry; looking up an
// unregistered key is treated as a configuration error rather than a
// silent nil, matching the rest of this codebase's fail-fast posture for
// programmer faults.
package runtimevalue

import (
	"fmt"
	"sync"
)

// Codec converts a value of type T to and from its string wire form, used
// both for the environment variable rendering and for API/JSON exposure.
type Codec[T any] struct {
	Encode func(T) string
	Decode func(string) (T, error)
}

// StringCodec is the identity codec for string-typed runtime values.
var StringCodec = Codec[string]{
	Encode: func(v string) string { return v },
	Decode: func(s string) (string, error) { return s, nil },
}

// BoolCodec encodes bool values as "true"/"false".
var BoolCodec = Codec[bool]{
	Encode: func(v bool) string {
		if v {
			return "true"
		}
		return "false"
	},
	Decode: func(s string) (bool, error) {
		switch s {
		case "true":
			return true, nil
		case "false":
			return false, nil
		default:
			return false, fmt.Errorf("runtimevalue: invalid bool literal %q", s)
		}
	},
}

// Key is the type-erased interface every RuntimeValueKey[T] satisfies, so
// the registry and the Proxy builder can hold keys of different T
// uniformly.
type Key interface {
	Name() string
	EnvVarName() string
	IncludeInAPI() bool
}

// RuntimeValueKey is a globally unique, typed key for a value attached to
// a Proxy. Construct one with NewKey and register it with a Registry
// during startup; the zero value is not usable.
type RuntimeValueKey[T any] struct {
	name         string
	envVarName   string
	includeInAPI bool
	codec        Codec[T]
}

// NewKey builds a runtime value key. It does not register the key — call
// Registry.Register to make it resolvable by name.
func NewKey[T any](name, envVarName string, includeInAPI bool, codec Codec[T]) *RuntimeValueKey[T] {
	return &RuntimeValueKey[T]{
		name:         name,
		envVarName:   envVarName,
		includeInAPI: includeInAPI,
		codec:        codec,
	}
}

func (k *RuntimeValueKey[T]) Name() string         { return k.name }
func (k *RuntimeValueKey[T]) EnvVarName() string    { return k.envVarName }
func (k *RuntimeValueKey[T]) IncludeInAPI() bool    { return k.includeInAPI }
func (k *RuntimeValueKey[T]) EncodeValue(v T) string { return k.codec.Encode(v) }
func (k *RuntimeValueKey[T]) DecodeValue(s string) (T, error) { return k.codec.Decode(s) }

// Registry is the process-wide, write-once table of registered keys,
// indexed by name. Register is expected to run only during startup;
// Lookup after startup treats a miss as a caller bug.
type Registry struct {
	mu   sync.RWMutex
	keys map[string]Key
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{keys: make(map[string]Key)}
}

// Register adds a key to the registry. It panics on a duplicate name —
// duplicate registration is always a startup wiring bug, never a
// runtime condition to recover from.
func (r *Registry) Register(k Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.keys[k.Name()]; exists {
		panic(fmt.Sprintf("runtimevalue: duplicate key registration for %q", k.Name()))
	}
	r.keys[k.Name()] = k
}

// Lookup resolves a key by name. A miss is a programmer fault: the
// caller asked for a key nothing ever registered.
func (r *Registry) Lookup(name string) (Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[name]
	if !ok {
		return nil, fmt.Errorf("runtimevalue: unknown key %q", name)
	}
	return k, nil
}

// MustLookup is Lookup but panics on a miss, for call sites that can only
// ever be reached after startup registration has completed.
func (r *Registry) MustLookup(name string) Key {
	k, err := r.Lookup(name)
	if err != nil {
		panic(err)
	}
	return k
}
