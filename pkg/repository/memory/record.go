package memory

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
	"github.com/secmon-lab/gridcore/pkg/domain/types"
)

// recordKey is a composite key for stored records (table + record key)
type recordKey struct {
	table string
	key   string
}

type storedRecord struct {
	record model.Record
	seq    int64
}

type recordRepository struct {
	mu      sync.RWMutex
	records map[recordKey]*storedRecord
	nextSeq int64
}

func newRecordRepository() *recordRepository {
	return &recordRepository{
		records: make(map[recordKey]*storedRecord),
	}
}

func (r *recordRepository) List(ctx context.Context, table string, q model.ListQuery) ([]model.Record, int, error) {
	r.mu.RLock()
	var matched []*storedRecord
	for k, s := range r.records {
		if k.table == table && matchSearch(s.record, q.Search) {
			matched = append(matched, s)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *storedRecord) int {
		for _, s := range q.Sorting {
			c := compareValues(a.record[s.Field], b.record[s.Field])
			if s.Direction == types.SortDesc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return cmp.Compare(a.seq, b.seq)
	})

	total := len(matched)
	start := min(q.StartIndex, total)
	end := total
	if q.PageSize > 0 {
		end = min(start+q.PageSize, total)
	}

	out := make([]model.Record, 0, end-start)
	for _, s := range matched[start:end] {
		out = append(out, s.record.Clone())
	}
	return out, total, nil
}

func (r *recordRepository) Get(ctx context.Context, table, key string) (model.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.records[recordKey{table: table, key: key}]
	if !exists {
		return nil, goerr.Wrap(model.ErrRecordNotFound, "record not found",
			goerr.V(model.TableIDKey, table), goerr.V(model.RecordKeyKey, key))
	}
	return s.record.Clone(), nil
}

func (r *recordRepository) Put(ctx context.Context, table, key string, record model.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := recordKey{table: table, key: key}
	if s, exists := r.records[k]; exists {
		s.record = record.Clone()
		return nil
	}
	r.nextSeq++
	r.records[k] = &storedRecord{record: record.Clone(), seq: r.nextSeq}
	return nil
}

func (r *recordRepository) Delete(ctx context.Context, table, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := recordKey{table: table, key: key}
	if _, exists := r.records[k]; !exists {
		return goerr.Wrap(model.ErrRecordNotFound, "record not found",
			goerr.V(model.TableIDKey, table), goerr.V(model.RecordKeyKey, key))
	}
	delete(r.records, k)
	return nil
}

// matchSearch is a case insensitive substring match on every searched field
func matchSearch(record model.Record, search map[string]string) bool {
	for field, term := range search {
		value := strings.ToLower(model.ValueString(record[field]))
		if !strings.Contains(value, strings.ToLower(term)) {
			return false
		}
	}
	return true
}

// compareValues orders numbers numerically and everything else as text
func compareValues(a, b any) int {
	as, bs := model.ValueString(a), model.ValueString(b)
	af, aerr := strconv.ParseFloat(as, 64)
	bf, berr := strconv.ParseFloat(bs, 64)
	if aerr == nil && berr == nil {
		return cmp.Compare(af, bf)
	}
	return strings.Compare(as, bs)
}
