package sqlite

import (
	"context"
	"database/sql"
	_ "embed"

	"github.com/Masterminds/squirrel"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gridcore/pkg/domain/interfaces"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLite stores records as JSON documents, one row per record, and sorts
// and searches them with json_extract.
type SQLite struct {
	db         *sql.DB
	record     *recordRepository
	preference *preferenceStore
}

var _ interfaces.Repository = &SQLite{}

// New opens or creates the database at path. ":memory:" gives a private
// in-process database.
func New(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}
	// every connection to ":memory:" is a separate database
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to connect to sqlite database", goerr.V("path", path))
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to apply schema", goerr.V("path", path))
	}

	qb := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)
	return &SQLite{
		db:         db,
		record:     &recordRepository{db: db, qb: qb},
		preference: &preferenceStore{db: db, qb: qb},
	}, nil
}

func (s *SQLite) Record() interfaces.RecordRepository {
	return s.record
}

func (s *SQLite) Preference() interfaces.PreferenceStore {
	return s.preference
}

func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return goerr.Wrap(err, "failed to close sqlite database")
	}
	return nil
}
