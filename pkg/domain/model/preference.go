package model

import (
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/secmon-lab/gridcore/pkg/domain/types"
)

// Preference keys stored under a table prefix
const (
	PrefColumnSettings = "column-settings"
	PrefTableState     = "table-state"
)

// ColumnSetting is the persisted state of one column
type ColumnSetting struct {
	Visibility types.Visibility `json:"visibility"`
	Width      string           `json:"width,omitempty"`
}

// ColumnSettings maps column names to their persisted state
type ColumnSettings map[string]ColumnSetting

// SavedTableState is the persisted sort list and page size
type SavedTableState struct {
	Sorting  Sorting `json:"sorting"`
	PageSize int     `json:"pageSize"`
}

// PreferencePrefix returns the stable storage prefix of a table,
// "ftable#<hash>" where the hash covers the table ID and the field names.
// Preferences written by the browser widget for the same table share it.
func PreferencePrefix(tableID string, fieldNames []string) string {
	var b strings.Builder
	if tableID != "" {
		b.WriteString(tableID)
		b.WriteString("#")
	}
	b.WriteString(strings.Join(fieldNames, "$"))
	b.WriteString("#c")
	b.WriteString(strconv.Itoa(len(fieldNames)))
	return "ftable#" + strconv.Itoa(int(stringHash(b.String())))
}

// stringHash is the 32 bit "hash*31 + c" over UTF-16 code units
func stringHash(s string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	return h
}
