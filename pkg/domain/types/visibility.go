package types

import "fmt"

// Visibility is the column visibility of a field
type Visibility string

const (
	VisibilityVisible Visibility = "visible"
	VisibilityHidden  Visibility = "hidden"
	// VisibilityFixed columns are always shown and cannot be toggled
	VisibilityFixed Visibility = "fixed"
)

// IsValid checks if the visibility is valid
func (v Visibility) IsValid() bool {
	switch v {
	case VisibilityVisible, VisibilityHidden, VisibilityFixed:
		return true
	default:
		return false
	}
}

// Normalize returns the visibility, treating empty as VisibilityVisible
func (v Visibility) Normalize() Visibility {
	if v == "" {
		return VisibilityVisible
	}
	return v
}

// String returns the string representation of the visibility
func (v Visibility) String() string {
	return string(v)
}

// ParseVisibility parses a string into a Visibility; empty means visible
func ParseVisibility(s string) (Visibility, error) {
	v := Visibility(s).Normalize()
	if !v.IsValid() {
		return "", fmt.Errorf("invalid visibility: %s", s)
	}
	return v, nil
}
