package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Mux combines several tool sources into one. When two sources expose the
// same name, the source passed first wins.
type Mux struct {
	sources []Caller
}

// Merge returns a Caller over all sources. Nil sources are skipped.
func Merge(sources ...Caller) *Mux {
	m := &Mux{}
	for _, s := range sources {
		if s != nil {
			m.sources = append(m.sources, s)
		}
	}
	return m
}

// Descriptors lists every visible tool once, in source order.
func (m *Mux) Descriptors() []Descriptor {
	seen := make(map[string]bool)
	var out []Descriptor
	for _, s := range m.sources {
		for _, d := range s.Descriptors() {
			if seen[d.Name] {
				continue
			}
			seen[d.Name] = true
			out = append(out, d)
		}
	}
	return out
}

// Call routes to the first source that provides name.
func (m *Mux) Call(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	for _, s := range m.sources {
		for _, d := range s.Descriptors() {
			if d.Name == name {
				return s.Call(ctx, name, args)
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
}

var _ Caller = (*Mux)(nil)
