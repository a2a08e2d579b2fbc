package types

import "fmt"

// ChangeType is the kind of a real-time record change message
type ChangeType string

const (
	ChangeRecordAdded   ChangeType = "record_added"
	ChangeRecordUpdated ChangeType = "record_updated"
	ChangeRecordDeleted ChangeType = "record_deleted"
	ChangeRefresh       ChangeType = "refresh"
)

// IsValid checks if the change type is valid
func (c ChangeType) IsValid() bool {
	switch c {
	case ChangeRecordAdded, ChangeRecordUpdated, ChangeRecordDeleted, ChangeRefresh:
		return true
	default:
		return false
	}
}

// String returns the string representation of the change type
func (c ChangeType) String() string {
	return string(c)
}

// ParseChangeType parses a string into a ChangeType
func ParseChangeType(s string) (ChangeType, error) {
	c := ChangeType(s)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid change type: %s", s)
	}
	return c, nil
}
