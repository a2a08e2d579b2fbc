package types

// EventKind enumerates the events a table emits
type EventKind string

const (
	EventRecordsLoaded    EventKind = "records_loaded"
	EventFormCreated      EventKind = "form_created"
	EventFormClosed       EventKind = "form_closed"
	EventRecordAdded      EventKind = "record_added"
	EventRecordUpdated    EventKind = "record_updated"
	EventRecordDeleted    EventKind = "record_deleted"
	EventSelectionChanged EventKind = "selection_changed"
	EventBulkDeleted      EventKind = "bulk_deleted"
	EventColumnVisibility EventKind = "column_visibility_changed"
)

// AllEventKinds returns all valid event kinds
func AllEventKinds() []EventKind {
	return []EventKind{
		EventRecordsLoaded,
		EventFormCreated,
		EventFormClosed,
		EventRecordAdded,
		EventRecordUpdated,
		EventRecordDeleted,
		EventSelectionChanged,
		EventBulkDeleted,
		EventColumnVisibility,
	}
}

// IsValid checks if the event kind is valid
func (k EventKind) IsValid() bool {
	for _, v := range AllEventKinds() {
		if v == k {
			return true
		}
	}
	return false
}

// String returns the string representation of the event kind
func (k EventKind) String() string {
	return string(k)
}
