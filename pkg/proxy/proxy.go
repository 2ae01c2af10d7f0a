// Package proxy models the user-facing Proxy: its status, its single
// container, and the typed runtime values attached to it. A Proxy is an
// immutable snapshot; mutation always produces a new snapshot via
// Builder rather than an in-place edit.
package proxy

import (
	"encoding/json"
	"time"

	"proxysharing/pkg/runtimevalue"
)

// Status is the lifecycle state of a user-facing proxy.
type Status string

const (
	StatusNew      Status = "New"
	StatusStarting Status = "Starting"
	StatusUp       Status = "Up"
	StatusStopping Status = "Stopping"
	StatusStopped  Status = "Stopped"
	StatusPaused   Status = "Paused"
)

// Container is the proxy's sole logical container slot. Multi-container
// proxies are a non-goal for sharing; a shared proxy has exactly one.
type Container struct {
	ID string `json:"id"`
}

// RuntimeValueHolder is the capability interface for anything that
// carries typed runtime values. Proxy implements it; other holders
// (e.g. a spec's default-value set) could too.
type RuntimeValueHolder interface {
	GetRuntimeValues() map[string]string
	Get(key runtimevalue.Key) (string, bool)
}

// Proxy is the user-facing session object. It is immutable: every field
// is set at construction or via Builder.Build, never mutated in place.
type Proxy struct {
	ID          string
	SpecID      string
	UserID      string
	Status      Status
	CreatedTs   time.Time
	StartupTs   time.Time
	Container   Container
	TargetID    string
	Targets     []string
	DisplayName string

	// runtimeValues stores the raw string wire form for every attached
	// key, keyed by key name. Typed access goes through Get/GetTyped.
	runtimeValues map[string]string
}

// GetRuntimeValues returns a defensive copy of the raw runtime value map.
func (p *Proxy) GetRuntimeValues() map[string]string {
	out := make(map[string]string, len(p.runtimeValues))
	for k, v := range p.runtimeValues {
		out[k] = v
	}
	return out
}

// Get returns the raw string form of a runtime value by key, and whether
// it was present.
func (p *Proxy) Get(key runtimevalue.Key) (string, bool) {
	v, ok := p.runtimeValues[key.Name()]
	return v, ok
}

// GetTyped decodes a runtime value through its key's codec.
func GetTyped[T any](p *Proxy, key *runtimevalue.RuntimeValueKey[T]) (T, bool, error) {
	var zero T
	raw, ok := p.Get(key)
	if !ok {
		return zero, false, nil
	}
	v, err := key.DecodeValue(raw)
	if err != nil {
		return zero, true, err
	}
	return v, true, nil
}

// IsTerminal reports whether the status can no longer transition except
// via the monotonic cycle back through Stopped.
func (s Status) IsTerminal() bool {
	return s == StatusStopped
}

// IsStoppingOrStopped reports whether the status indicates the proxy is
// being torn down or already gone — the condition the Dispatcher polls
// for during a seat wait to detect out-of-band cancellation.
func (s Status) IsStoppingOrStopped() bool {
	return s == StatusStopping || s == StatusStopped
}

// jsonProxy is the wire shape for Proxy: id, status, timestamps,
// userId, specId, displayName, containers, and only the runtime values
// whose key has IncludeInAPI()=true survive a round trip.
type jsonProxy struct {
	ID            string            `json:"id"`
	SpecID        string            `json:"specId"`
	UserID        string            `json:"userId"`
	Status        Status            `json:"status"`
	CreatedTs     time.Time         `json:"createdTs"`
	StartupTs     time.Time         `json:"startupTs,omitempty"`
	DisplayName   string            `json:"displayName,omitempty"`
	Containers    []Container       `json:"containers"`
	TargetID      string            `json:"targetId,omitempty"`
	Targets       []string          `json:"targets,omitempty"`
	RuntimeValues map[string]string `json:"runtimeValues,omitempty"`
}

// MarshalJSON drops runtime values whose key is not API-visible. The
// set of qualifying keys is the fixed core set in apiVisibleValues; no
// registry is consulted.
func (p *Proxy) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonProxy{
		ID:            p.ID,
		SpecID:        p.SpecID,
		UserID:        p.UserID,
		Status:        p.Status,
		CreatedTs:     p.CreatedTs,
		StartupTs:     p.StartupTs,
		DisplayName:   p.DisplayName,
		Containers:    []Container{p.Container},
		TargetID:      p.TargetID,
		Targets:       p.Targets,
		RuntimeValues: apiVisibleValues(p.runtimeValues),
	})
}

// apiVisibleValues filters runtimeValues down to the keys registered as
// API-visible in the core registry. Custom spec-defined keys registered
// elsewhere are not considered here; callers serializing through a
// richer registry should filter before calling MarshalJSON, or rely on
// this default (core keys only) which is correct for the dispatcher's
// own payloads.
func apiVisibleValues(raw map[string]string) map[string]string {
	visible := map[string]struct{}{
		runtimevalue.TargetId.Name():   {},
		runtimevalue.PublicPath.Name(): {},
	}
	out := make(map[string]string)
	for k, v := range raw {
		if _, ok := visible[k]; ok {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// UnmarshalJSON restores a Proxy from its API wire form. Runtime values
// not present on the wire (because IncludeInAPI=false) are simply absent
// from the reconstructed map — they are dropped by design, not an error.
func (p *Proxy) UnmarshalJSON(data []byte) error {
	var j jsonProxy
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	p.ID = j.ID
	p.SpecID = j.SpecID
	p.UserID = j.UserID
	p.Status = j.Status
	p.CreatedTs = j.CreatedTs
	p.StartupTs = j.StartupTs
	p.DisplayName = j.DisplayName
	if len(j.Containers) > 0 {
		p.Container = j.Containers[0]
	}
	p.TargetID = j.TargetID
	p.Targets = j.Targets
	p.runtimeValues = j.RuntimeValues
	if p.runtimeValues == nil {
		p.runtimeValues = make(map[string]string)
	}
	return nil
}
