package types

import (
	"fmt"
	"strings"
)

// SortDirection is the direction of one sort key
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// IsValid checks if the sort direction is valid
func (d SortDirection) IsValid() bool {
	return d == SortAsc || d == SortDesc
}

// String returns the string representation of the sort direction
func (d SortDirection) String() string {
	return string(d)
}

// ParseSortDirection parses a direction case-insensitively
func ParseSortDirection(s string) (SortDirection, error) {
	d := SortDirection(strings.ToUpper(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", fmt.Errorf("invalid sort direction: %s", s)
	}
	return d, nil
}
