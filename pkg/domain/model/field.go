package model

import (
	"strings"

	"github.com/secmon-lab/gridcore/pkg/domain/types"
)

// FieldDescriptor is the schema entry of one column and form field.
// Nil *bool flags take the defaults of the original widget: Create, Edit,
// List and Sortable default to true, Searchable to true when toolbar search is on.
type FieldDescriptor struct {
	Name       string
	Title      string
	InputTitle string
	Kind       types.FieldKind
	Key        bool
	Options    OptionsSource
	// DependsOn is a comma separated list of master field names
	DependsOn string
	// Cacheable lets dependent re-resolution read the response cache
	Cacheable  bool
	Visibility types.Visibility
	Width      string

	Sortable   *bool
	Searchable *bool
	Create     *bool
	Edit       *bool
	List       *bool
	Required   bool

	DefaultValue any
	// Values maps checkbox values to labels, e.g. {"0": "Passive", "1": "Active"}
	Values map[string]string
	// Display overrides the cell text of this field
	Display func(Record) string
	Explain string
}

// Bool returns a pointer to b, for the optional flags of FieldDescriptor
func Bool(b bool) *bool {
	return &b
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// EffectiveKind returns Kind, inferring select when options are set and text otherwise
func (f FieldDescriptor) EffectiveKind() types.FieldKind {
	if f.Kind != "" {
		return f.Kind
	}
	if f.Options != nil {
		return types.FieldKindSelect
	}
	return types.FieldKindText
}

// FormKind returns the kind of input rendered in forms. Key fields are always hidden.
func (f FieldDescriptor) FormKind() types.FieldKind {
	if f.Key {
		return types.FieldKindHidden
	}
	return f.EffectiveKind()
}

// IsSortable reports whether the column takes part in sorting
func (f FieldDescriptor) IsSortable() bool {
	return boolOr(f.Sortable, true)
}

// IsSearchable reports whether the search row shows an input for the column
func (f FieldDescriptor) IsSearchable() bool {
	return boolOr(f.Searchable, true)
}

// IsListed reports whether the field is a table column
func (f FieldDescriptor) IsListed() bool {
	return boolOr(f.List, true)
}

// IncludedIn applies the inclusion rule of a form kind. For create forms,
// fields with Create=false and auto-generated keys (key fields without an
// explicit Create=true) are left out; for edit forms, Edit=false fields are,
// except the key.
func (f FieldDescriptor) IncludedIn(kind types.FormKind) bool {
	switch kind {
	case types.FormCreate:
		if f.Key {
			return boolOr(f.Create, false)
		}
		return boolOr(f.Create, true)
	case types.FormEdit:
		// the edit payload must carry the key
		return f.Key || boolOr(f.Edit, true)
	default:
		return true
	}
}

// Masters parses DependsOn: names are trimmed and empty segments dropped
func (f FieldDescriptor) Masters() []string {
	return ParseDependsOn(f.DependsOn)
}

// HasDependencies reports whether the field depends on any master
func (f FieldDescriptor) HasDependencies() bool {
	return len(f.Masters()) > 0
}

// Label returns the form label of the field
func (f FieldDescriptor) Label() string {
	if f.InputTitle != "" {
		return f.InputTitle
	}
	if f.Title != "" {
		return f.Title
	}
	return f.Name
}

// ParseDependsOn splits a CSV master list
func ParseDependsOn(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			out = append(out, name)
		}
	}
	return out
}
