package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
	"github.com/secmon-lab/gridcore/pkg/domain/types"
)

type recordRepository struct {
	db *sql.DB
	qb squirrel.StatementBuilderType
}

func (r *recordRepository) List(ctx context.Context, table string, q model.ListQuery) ([]model.Record, int, error) {
	cond := squirrel.And{squirrel.Eq{"table_id": table}}
	for _, field := range slices.Sorted(maps.Keys(q.Search)) {
		cond = append(cond, squirrel.Expr(
			`CAST(json_extract(data, ?) AS TEXT) LIKE ? ESCAPE '\'`,
			jsonPath(field), "%"+escapeLike(q.Search[field])+"%",
		))
	}

	countSQL, countArgs, err := r.qb.Select("COUNT(*)").From("records").Where(cond).ToSql()
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to build count query")
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, goerr.Wrap(err, "failed to count records", goerr.V(model.TableIDKey, table))
	}

	query := r.qb.Select("data").From("records").Where(cond)
	for _, s := range q.Sorting {
		dir := "ASC"
		if s.Direction == types.SortDesc {
			dir = "DESC"
		}
		query = query.OrderByClause("json_extract(data, ?) "+dir, jsonPath(s.Field))
	}
	query = query.OrderBy("rowid")
	switch {
	case q.PageSize > 0:
		query = query.Limit(uint64(q.PageSize)).Offset(uint64(q.StartIndex))
	case q.StartIndex > 0:
		query = query.Suffix("LIMIT -1 OFFSET ?", q.StartIndex)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to build list query")
	}
	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to list records", goerr.V(model.TableIDKey, table))
	}
	defer rows.Close()

	records := []model.Record{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, 0, goerr.Wrap(err, "failed to scan record")
		}
		record, err := decodeRecord(data)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, goerr.Wrap(err, "failed to iterate records")
	}
	return records, total, nil
}

func (r *recordRepository) Get(ctx context.Context, table, key string) (model.Record, error) {
	stmt, args, err := r.qb.Select("data").From("records").
		Where(squirrel.Eq{"table_id": table, "record_key": key}).ToSql()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build get query")
	}

	var data string
	err = r.db.QueryRowContext(ctx, stmt, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(model.ErrRecordNotFound, "record not found",
			goerr.V(model.TableIDKey, table), goerr.V(model.RecordKeyKey, key))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get record", goerr.V(model.RecordKeyKey, key))
	}
	return decodeRecord(data)
}

func (r *recordRepository) Put(ctx context.Context, table, key string, record model.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return goerr.Wrap(err, "failed to encode record", goerr.V(model.RecordKeyKey, key))
	}

	stmt, args, err := r.qb.Insert("records").
		Columns("table_id", "record_key", "data").
		Values(table, key, string(data)).
		Suffix("ON CONFLICT(table_id, record_key) DO UPDATE SET data = excluded.data").
		ToSql()
	if err != nil {
		return goerr.Wrap(err, "failed to build put query")
	}
	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		return goerr.Wrap(err, "failed to put record", goerr.V(model.TableIDKey, table), goerr.V(model.RecordKeyKey, key))
	}
	return nil
}

func (r *recordRepository) Delete(ctx context.Context, table, key string) error {
	stmt, args, err := r.qb.Delete("records").
		Where(squirrel.Eq{"table_id": table, "record_key": key}).ToSql()
	if err != nil {
		return goerr.Wrap(err, "failed to build delete query")
	}
	res, err := r.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return goerr.Wrap(err, "failed to delete record", goerr.V(model.RecordKeyKey, key))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return goerr.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return goerr.Wrap(model.ErrRecordNotFound, "record not found",
			goerr.V(model.TableIDKey, table), goerr.V(model.RecordKeyKey, key))
	}
	return nil
}

func decodeRecord(data string) (model.Record, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var record model.Record
	if err := dec.Decode(&record); err != nil {
		return nil, goerr.Wrap(err, "failed to decode stored record")
	}
	return record, nil
}

// jsonPath quotes field so that names with dots address one member
func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
