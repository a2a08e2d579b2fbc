package types

import "fmt"

// FieldKind represents the input kind of a field. The set is closed: every kind
// has exactly one input variant in the form layer.
type FieldKind string

const (
	FieldKindText        FieldKind = "text"
	FieldKindTextarea    FieldKind = "textarea"
	FieldKindPassword    FieldKind = "password"
	FieldKindNumber      FieldKind = "number"
	FieldKindEmail       FieldKind = "email"
	FieldKindDate        FieldKind = "date"
	FieldKindDateTime    FieldKind = "datetime-local"
	FieldKindHidden      FieldKind = "hidden"
	FieldKindSelect      FieldKind = "select"
	FieldKindMultiSelect FieldKind = "multiselect"
	FieldKindRadio       FieldKind = "radio"
	FieldKindDatalist    FieldKind = "datalist"
	FieldKindCheckbox    FieldKind = "checkbox"
	FieldKindFile        FieldKind = "file"
)

// AllFieldKinds returns all valid field kinds
func AllFieldKinds() []FieldKind {
	return []FieldKind{
		FieldKindText,
		FieldKindTextarea,
		FieldKindPassword,
		FieldKindNumber,
		FieldKindEmail,
		FieldKindDate,
		FieldKindDateTime,
		FieldKindHidden,
		FieldKindSelect,
		FieldKindMultiSelect,
		FieldKindRadio,
		FieldKindDatalist,
		FieldKindCheckbox,
		FieldKindFile,
	}
}

// IsValid checks if the field kind is valid
func (k FieldKind) IsValid() bool {
	switch k {
	case FieldKindText,
		FieldKindTextarea,
		FieldKindPassword,
		FieldKindNumber,
		FieldKindEmail,
		FieldKindDate,
		FieldKindDateTime,
		FieldKindHidden,
		FieldKindSelect,
		FieldKindMultiSelect,
		FieldKindRadio,
		FieldKindDatalist,
		FieldKindCheckbox,
		FieldKindFile:
		return true
	default:
		return false
	}
}

// HasOptions reports whether inputs of this kind carry a selectable option list
func (k FieldKind) HasOptions() bool {
	switch k {
	case FieldKindSelect, FieldKindMultiSelect, FieldKindRadio, FieldKindDatalist:
		return true
	default:
		return false
	}
}

// String returns the string representation of the field kind
func (k FieldKind) String() string {
	return string(k)
}

// ParseFieldKind parses a string into a FieldKind
func ParseFieldKind(s string) (FieldKind, error) {
	kind := FieldKind(s)
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid field kind: %s", s)
	}
	return kind, nil
}
