package interfaces

// Repository bundles the persistence of the backend
type Repository interface {
	Record() RecordRepository
	Preference() PreferenceStore
	Close() error
}
