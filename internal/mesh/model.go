// Package mesh holds mesh snapshots: faces, the models built from them,
// and the set arithmetic used to diff and replay edits.
package mesh

import (
	"encoding/json"
	"strings"

	"MeshChain/internal/hash"
)

// Model is an immutable snapshot of a mesh: a set of faces.
// Faces keep the order in which they were first seen; that order is the
// canonical encoding order and therefore part of the model's identity.
type Model struct {
	faces []Face   // faces in canonical order, duplicates removed
	keys  []string // keys[i] is faces[i].String()
	hash  string   // hash is the digest of the canonical encoding
}

// NewModel builds a model from faces. Repeated faces collapse onto their
// first occurrence.
func NewModel(faces []Face) Model {
	m := Model{
		faces: make([]Face, 0, len(faces)),
		keys:  make([]string, 0, len(faces)),
	}

	seen := make(map[string]struct{}, len(faces))
	for _, f := range faces {
		key := f.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		m.faces = append(m.faces, append(Face{}, f...))
		m.keys = append(m.keys, key)
	}

	m.hash = hash.Sum(m.String())

	return m
}

// Empty returns the model with no faces.
func Empty() Model {
	return NewModel(nil)
}

// Faces returns a copy of the model's faces in canonical order.
func (m Model) Faces() []Face {
	out := make([]Face, len(m.faces))
	for i, f := range m.faces {
		out[i] = append(Face{}, f...)
	}
	return out
}

// Len returns the number of faces.
func (m Model) Len() int {
	return len(m.faces)
}

// Contains reports whether f is one of the model's faces.
func (m Model) Contains(f Face) bool {
	key := f.String()
	for _, k := range m.keys {
		if k == key {
			return true
		}
	}
	return false
}

// String returns the canonical encoding: face strings joined by ", ".
func (m Model) String() string {
	return strings.Join(m.keys, ", ")
}

// Hash returns the content digest of the canonical encoding.
func (m Model) Hash() string {
	if m.hash == "" {
		return hash.Sum(m.String())
	}
	return m.hash
}

// SameFaces reports whether m and o contain the same faces, ignoring order.
func (m Model) SameFaces(o Model) bool {
	if len(m.keys) != len(o.keys) {
		return false
	}

	set := keySet(o.keys)
	for _, k := range m.keys {
		if _, ok := set[k]; !ok {
			return false
		}
	}

	return true
}

// Apply returns (m ∪ added) − removed. New faces are appended after the
// existing ones.
func (m Model) Apply(added, removed Model) Model {
	drop := keySet(removed.keys)

	faces := make([]Face, 0, len(m.faces)+len(added.faces))
	for i, f := range m.faces {
		if _, ok := drop[m.keys[i]]; !ok {
			faces = append(faces, f)
		}
	}
	for i, f := range added.faces {
		if _, ok := drop[added.keys[i]]; !ok {
			faces = append(faces, f)
		}
	}

	return NewModel(faces)
}

// Diff returns the faces added to and removed from old to produce next.
func Diff(old, next Model) (added, removed Model) {
	return minus(next, old), minus(old, next)
}

// minus returns the faces of a that are not in b, in a's order.
func minus(a, b Model) Model {
	drop := keySet(b.keys)

	var faces []Face
	for i, f := range a.faces {
		if _, ok := drop[a.keys[i]]; !ok {
			faces = append(faces, f)
		}
	}

	return NewModel(faces)
}

// keySet indexes face keys for membership tests.
func keySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// modelJSON is the wire shape of a model.
type modelJSON struct {
	Faces []Face `json:"faces"`
}

// MarshalJSON encodes the model as {"faces": [[{x,y,z}, ...], ...]}.
func (m Model) MarshalJSON() ([]byte, error) {
	faces := m.faces
	if faces == nil {
		faces = []Face{}
	}
	return json.Marshal(modelJSON{Faces: faces})
}

// UnmarshalJSON decodes the wire shape and recomputes the digest.
func (m *Model) UnmarshalJSON(data []byte) error {
	var raw modelJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = NewModel(raw.Faces)

	return nil
}
