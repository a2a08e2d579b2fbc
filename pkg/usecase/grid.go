package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gridcore/pkg/domain/interfaces"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
	"github.com/secmon-lab/gridcore/pkg/domain/types"
	"github.com/secmon-lab/gridcore/pkg/utils/logging"
)

// ChangeNotifier receives every change a GridService stores
type ChangeNotifier func(ctx context.Context, table string, change model.Change)

// GridService serves one grid from a record repository: the server side of
// the list, create, update, delete and options endpoints.
type GridService struct {
	grid     *model.Grid
	schema   *model.Schema
	repo     interfaces.RecordRepository
	forms    *FormAssembler
	notifier ChangeNotifier
}

// GridServiceOption configures a GridService
type GridServiceOption func(*GridService)

// WithChangeNotifier publishes stored changes, typically to the record feed
func WithChangeNotifier(fn ChangeNotifier) GridServiceOption {
	return func(s *GridService) {
		s.notifier = fn
	}
}

// NewGridService validates grid and binds it to repo
func NewGridService(grid *model.Grid, repo interfaces.RecordRepository, opts ...GridServiceOption) (*GridService, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	schema, err := grid.ServerSchema()
	if err != nil {
		return nil, err
	}

	s := &GridService{
		grid:     grid,
		schema:   schema,
		repo:     repo,
		forms:    NewFormAssembler(schema, NewOptionsResolver(nil, nil)),
		notifier: func(context.Context, string, model.Change) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Grid returns the served definition
func (s *GridService) Grid() *model.Grid { return s.grid }

// Schema returns the server schema
func (s *GridService) Schema() *model.Schema { return s.schema }

// List returns one page. Sorting on unknown or unsortable fields and search
// on unknown fields are dropped.
func (s *GridService) List(ctx context.Context, q model.ListQuery) (*model.ListResponse, error) {
	var sorting model.Sorting
	for _, spec := range q.Sorting {
		if f, ok := s.schema.Field(spec.Field); ok && f.IsSortable() {
			sorting = append(sorting, spec)
		}
	}
	q.Sorting = sorting
	for field := range q.Search {
		if _, ok := s.schema.Field(field); !ok {
			delete(q.Search, field)
		}
	}

	records, total, err := s.repo.List(ctx, s.grid.ID, q)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list records", goerr.V(model.TableIDKey, s.grid.ID))
	}
	return model.NewListResponse(records, total), nil
}

// Create validates data as a create form and stores it. An empty key is
// generated.
func (s *GridService) Create(ctx context.Context, data model.Record) (model.Record, error) {
	record, err := s.validate(ctx, types.FormCreate, data)
	if err != nil {
		return nil, err
	}

	keyField := s.schema.KeyField()
	key := data.String(keyField)
	if key == "" {
		key = uuid.NewString()
	}
	record[keyField] = key

	switch _, err := s.repo.Get(ctx, s.grid.ID, key); {
	case err == nil:
		return nil, goerr.Wrap(model.ErrValidation, "record already exists",
			goerr.V(model.TableIDKey, s.grid.ID), goerr.V(model.RecordKeyKey, key))
	case !errors.Is(err, model.ErrRecordNotFound):
		return nil, err
	}
	if err := s.repo.Put(ctx, s.grid.ID, key, record); err != nil {
		return nil, err
	}

	logging.From(ctx).Info("record created", slog.String("table", s.grid.ID), slog.String("key", key))
	s.notifier(ctx, s.grid.ID, model.Change{Type: types.ChangeRecordAdded, Record: record.Clone(), RecordKey: key})
	return record, nil
}

// Update validates data as an edit form and merges it over the stored record
func (s *GridService) Update(ctx context.Context, data model.Record) (model.Record, error) {
	key, err := s.schema.KeyOf(data)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, goerr.Wrap(model.ErrNoKeyField, "update without key", goerr.V(model.TableIDKey, s.grid.ID))
	}
	current, err := s.repo.Get(ctx, s.grid.ID, key)
	if err != nil {
		return nil, err
	}

	patch, err := s.validate(ctx, types.FormEdit, current.Merge(data))
	if err != nil {
		return nil, err
	}
	record := current.Merge(patch)
	if err := s.repo.Put(ctx, s.grid.ID, key, record); err != nil {
		return nil, err
	}

	logging.From(ctx).Info("record updated", slog.String("table", s.grid.ID), slog.String("key", key))
	s.notifier(ctx, s.grid.ID, model.Change{Type: types.ChangeRecordUpdated, Record: record.Clone(), RecordKey: key})
	return record, nil
}

// Delete removes the record stored under key
func (s *GridService) Delete(ctx context.Context, key string) error {
	if key == "" {
		return goerr.Wrap(model.ErrNoKeyField, "delete without key", goerr.V(model.TableIDKey, s.grid.ID))
	}
	if err := s.repo.Delete(ctx, s.grid.ID, key); err != nil {
		return err
	}

	logging.From(ctx).Info("record deleted", slog.String("table", s.grid.ID), slog.String("key", key))
	s.notifier(ctx, s.grid.ID, model.Change{Type: types.ChangeRecordDeleted, RecordKey: key})
	return nil
}

// Options returns the options of field for the given master values
func (s *GridService) Options(ctx context.Context, field string, values map[string]string) (model.ResolvedOptions, error) {
	f, ok := s.schema.Field(field)
	if !ok || f.Options == nil {
		return nil, goerr.Wrap(model.ErrUnknownField, "field has no options",
			goerr.V(model.TableIDKey, s.grid.ID), goerr.V(model.FieldNameKey, field))
	}
	return s.forms.resolver.Resolve(ctx, f, &model.ProviderContext{DependedValues: values}), nil
}

// validate runs data through a form of kind and returns the normalised
// values. Number fields are stored as numbers.
func (s *GridService) validate(ctx context.Context, kind types.FormKind, data model.Record) (model.Record, error) {
	form, err := s.forms.Build(ctx, kind, data)
	if err != nil {
		return nil, err
	}
	defer form.Close()

	if err := form.Validate(); err != nil {
		return nil, err
	}

	out := make(model.Record)
	for name, v := range form.Data() {
		f, _ := s.schema.Field(name)
		if f.EffectiveKind() == types.FieldKindNumber && !f.Key {
			out[name] = toNumber(v)
			continue
		}
		out[name] = v
	}
	return out, nil
}

func toNumber(v any) any {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return v
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return v
}
