package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/m-mizutani/goerr/v2"
)

type preferenceStore struct {
	db *sql.DB
	qb squirrel.StatementBuilderType
}

func (s *preferenceStore) Get(ctx context.Context, key string) (string, bool, error) {
	stmt, args, err := s.qb.Select("value").From("preferences").Where(squirrel.Eq{"pref_key": key}).ToSql()
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to build preference query")
	}

	var value string
	err = s.db.QueryRowContext(ctx, stmt, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to get preference", goerr.V("key", key))
	}
	return value, true, nil
}

func (s *preferenceStore) Set(ctx context.Context, key, value string) error {
	stmt, args, err := s.qb.Insert("preferences").
		Columns("pref_key", "value").
		Values(key, value).
		Suffix("ON CONFLICT(pref_key) DO UPDATE SET value = excluded.value").
		ToSql()
	if err != nil {
		return goerr.Wrap(err, "failed to build preference upsert")
	}
	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return goerr.Wrap(err, "failed to set preference", goerr.V("key", key))
	}
	return nil
}

func (s *preferenceStore) Delete(ctx context.Context, key string) error {
	stmt, args, err := s.qb.Delete("preferences").Where(squirrel.Eq{"pref_key": key}).ToSql()
	if err != nil {
		return goerr.Wrap(err, "failed to build preference delete")
	}
	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return goerr.Wrap(err, "failed to delete preference", goerr.V("key", key))
	}
	return nil
}
