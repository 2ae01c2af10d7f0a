package proxy

import (
	"strings"
	"time"

	"proxysharing/pkg/runtimevalue"
)

// Builder constructs a new Proxy snapshot from an existing one. It
// never mutates the source Proxy.
type Builder struct {
	p Proxy
}

// NewBuilder starts a Builder seeded from src. src is left untouched.
func NewBuilder(src *Proxy) *Builder {
	b := &Builder{p: *src}
	b.p.runtimeValues = src.GetRuntimeValues()
	b.p.Targets = append([]string(nil), src.Targets...)
	return b
}

// New starts a Builder for a brand new proxy with no prior snapshot.
func New(id, specID, userID string) *Builder {
	return &Builder{p: Proxy{
		ID:            id,
		SpecID:        specID,
		UserID:        userID,
		Status:        StatusNew,
		CreatedTs:     time.Now(),
		runtimeValues: make(map[string]string),
	}}
}

func (b *Builder) WithStatus(s Status) *Builder {
	b.p.Status = s
	return b
}

func (b *Builder) WithStartupTs(t time.Time) *Builder {
	b.p.StartupTs = t
	return b
}

func (b *Builder) WithTargetID(id string) *Builder {
	b.p.TargetID = id
	return b
}

func (b *Builder) AppendTargets(targets ...string) *Builder {
	b.p.Targets = append(b.p.Targets, targets...)
	return b
}

func (b *Builder) WithContainerID(id string) *Builder {
	b.p.Container.ID = id
	return b
}

func (b *Builder) WithDisplayName(name string) *Builder {
	b.p.DisplayName = name
	return b
}

// SetValue attaches a typed runtime value under its key's name.
func SetValue[T any](b *Builder, key *runtimevalue.RuntimeValueKey[T], value T) *Builder {
	if b.p.runtimeValues == nil {
		b.p.runtimeValues = make(map[string]string)
	}
	b.p.runtimeValues[key.Name()] = key.EncodeValue(value)
	return b
}

// ReplaceInValue replaces every occurrence of old with new inside the
// current string value of key, if the key is present. Intentionally a
// naive substring substitution — collateral replacement included if
// old happens to occur outside the intended segment.
func ReplaceInValue(b *Builder, key *runtimevalue.RuntimeValueKey[string], old, new string) *Builder {
	raw, ok := b.p.runtimeValues[key.Name()]
	if !ok {
		return b
	}
	b.p.runtimeValues[key.Name()] = strings.ReplaceAll(raw, old, new)
	return b
}

// Build finalizes the snapshot.
func (b *Builder) Build() *Proxy {
	out := b.p
	out.runtimeValues = make(map[string]string, len(b.p.runtimeValues))
	for k, v := range b.p.runtimeValues {
		out.runtimeValues[k] = v
	}
	out.Targets = append([]string(nil), b.p.Targets...)
	return &out
}
