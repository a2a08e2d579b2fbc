package memory

import (
	"github.com/secmon-lab/gridcore/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory keeps records and preferences in process. It backs tests and the
// demo backend.
type Memory struct {
	record     *recordRepository
	preference *preferenceStore
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		record:     newRecordRepository(),
		preference: newPreferenceStore(),
	}
}

func (m *Memory) Record() interfaces.RecordRepository {
	return m.record
}

func (m *Memory) Preference() interfaces.PreferenceStore {
	return m.preference
}

func (m *Memory) Close() error {
	return nil
}
