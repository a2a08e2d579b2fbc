package model

import "github.com/secmon-lab/gridcore/pkg/domain/types"

// Column is a table header as handed to a view
type Column struct {
	Name     string
	Title    string
	Sortable bool
	// Direction is empty when the column is not sorted
	Direction  types.SortDirection
	Visibility types.Visibility
}

// Row is one rendered record. Texts holds the display text of every column.
type Row struct {
	Key      string
	Record   Record
	Texts    map[string]string
	Selected bool
}

// Change is one message of the record change feed
type Change struct {
	Type      types.ChangeType `json:"type"`
	Record    Record           `json:"record,omitempty"`
	RecordKey string           `json:"recordKey,omitempty"`
}
