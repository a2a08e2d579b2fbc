package types

import "fmt"

// FormKind distinguishes the two generated forms
type FormKind string

const (
	FormCreate FormKind = "create"
	FormEdit   FormKind = "edit"
)

// IsValid checks if the form kind is valid
func (k FormKind) IsValid() bool {
	return k == FormCreate || k == FormEdit
}

// String returns the string representation of the form kind
func (k FormKind) String() string {
	return string(k)
}

// ParseFormKind parses a string into a FormKind
func ParseFormKind(s string) (FormKind, error) {
	k := FormKind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("invalid form kind: %s", s)
	}
	return k, nil
}
