package interfaces

import (
	"context"

	"github.com/secmon-lab/gridcore/pkg/domain/model"
)

// RecordRepository stores the rows served by the backend, per table
type RecordRepository interface {
	// List returns one page of records matching q and the total match count
	List(ctx context.Context, table string, q model.ListQuery) ([]model.Record, int, error)

	// Get returns model.ErrRecordNotFound when key does not exist
	Get(ctx context.Context, table, key string) (model.Record, error)

	// Put creates or replaces the record stored under key
	Put(ctx context.Context, table, key string, record model.Record) error

	// Delete returns model.ErrRecordNotFound when key does not exist
	Delete(ctx context.Context, table, key string) error
}

// ChangeSink applies record change messages to a live table
type ChangeSink interface {
	AddRecord(record model.Record) error
	UpdateRecord(record model.Record) error
	RemoveRecord(key string) error
	Reload(ctx context.Context) error
}
