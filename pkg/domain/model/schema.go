package model

import (
	"slices"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gridcore/pkg/domain/types"
)

// Schema is the ordered, validated field set of a table. Apart from column
// visibility it is immutable once built.
type Schema struct {
	fields   []FieldDescriptor
	index    map[string]int
	keyField string
	graph    *DependencyGraph

	mu         sync.RWMutex
	visibility map[string]types.Visibility
}

// NewSchema validates fields and builds a schema. Names must be unique and
// non-empty, at most one field may be the key, kinds and visibilities must be
// known and the dependency graph must be acyclic.
func NewSchema(fields ...FieldDescriptor) (*Schema, error) {
	if len(fields) == 0 {
		return nil, goerr.Wrap(ErrConfiguration, "schema has no fields")
	}

	s := &Schema{
		fields:     slices.Clone(fields),
		index:      make(map[string]int, len(fields)),
		visibility: make(map[string]types.Visibility, len(fields)),
	}

	for i, f := range s.fields {
		if f.Name == "" {
			return nil, goerr.Wrap(ErrConfiguration, "field name is empty", goerr.V("index", i))
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, goerr.Wrap(ErrConfiguration, "duplicated field name", goerr.V(FieldNameKey, f.Name))
		}
		if f.Kind != "" && !f.Kind.IsValid() {
			return nil, goerr.Wrap(ErrConfiguration, "unknown field kind",
				goerr.V(FieldNameKey, f.Name), goerr.V("kind", f.Kind))
		}
		vis := f.Visibility.Normalize()
		if !vis.IsValid() {
			return nil, goerr.Wrap(ErrConfiguration, "unknown visibility",
				goerr.V(FieldNameKey, f.Name), goerr.V("visibility", f.Visibility))
		}
		if f.Key {
			if s.keyField != "" {
				return nil, goerr.Wrap(ErrConfiguration, "more than one key field",
					goerr.V(FieldNameKey, f.Name), goerr.V("key_field", s.keyField))
			}
			s.keyField = f.Name
		}
		if f.Title == "" {
			s.fields[i].Title = f.Name
		}
		s.index[f.Name] = i
		s.visibility[f.Name] = vis
	}

	graph, err := BuildDependencyGraph(s.fields)
	if err != nil {
		return nil, err
	}
	s.graph = graph

	return s, nil
}

// Fields returns a copy of the descriptors in schema order
func (s *Schema) Fields() []FieldDescriptor {
	return slices.Clone(s.fields)
}

// Names returns the field names in schema order
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Field returns the descriptor of name
func (s *Schema) Field(name string) (FieldDescriptor, bool) {
	i, ok := s.index[name]
	if !ok {
		return FieldDescriptor{}, false
	}
	return s.fields[i], true
}

// KeyField returns the key field name, or "" when the table has none
func (s *Schema) KeyField() string {
	return s.keyField
}

// KeyOf returns the key value of r as a string
func (s *Schema) KeyOf(r Record) (string, error) {
	if s.keyField == "" {
		return "", goerr.Wrap(ErrNoKeyField, "record key requested")
	}
	return r.String(s.keyField), nil
}

// Graph returns the dependency graph built from the schema
func (s *Schema) Graph() *DependencyGraph {
	return s.graph
}

// ColumnList returns the names of listed fields, in schema order
func (s *Schema) ColumnList() []string {
	var out []string
	for _, f := range s.fields {
		if f.IsListed() {
			out = append(out, f.Name)
		}
	}
	return out
}

// VisibleColumns returns the listed fields that are not hidden
func (s *Schema) VisibleColumns() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, f := range s.fields {
		if f.IsListed() && s.visibility[f.Name] != types.VisibilityHidden {
			out = append(out, f.Name)
		}
	}
	return out
}

// Visibility returns the current visibility of a column
func (s *Schema) Visibility(name string) types.Visibility {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visibility[name]
}

// SetVisibility changes the visibility of a column. Fixed columns never change.
// It reports whether anything changed.
func (s *Schema) SetVisibility(name string, v types.Visibility) (bool, error) {
	if _, ok := s.index[name]; !ok {
		return false, goerr.Wrap(ErrUnknownField, "cannot change visibility", goerr.V(FieldNameKey, name))
	}
	v = v.Normalize()
	if !v.IsValid() || v == types.VisibilityFixed {
		return false, goerr.Wrap(ErrConfiguration, "visibility can only be switched between visible and hidden",
			goerr.V(FieldNameKey, name), goerr.V("visibility", v))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.visibility[name]
	if cur == types.VisibilityFixed || cur == v {
		return false, nil
	}
	s.visibility[name] = v
	return true, nil
}
