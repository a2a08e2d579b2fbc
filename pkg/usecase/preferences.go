package usecase

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gridcore/pkg/domain/interfaces"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
)

// Preferences persists column settings and the sort list and page size of
// one table under its stable prefix.
type Preferences struct {
	store  interfaces.PreferenceStore
	prefix string
}

// NewPreferences binds store to a table identified by its ID and field names
func NewPreferences(store interfaces.PreferenceStore, tableID string, fieldNames []string) *Preferences {
	return &Preferences{
		store:  store,
		prefix: model.PreferencePrefix(tableID, fieldNames),
	}
}

// Prefix returns the storage prefix
func (p *Preferences) Prefix() string {
	return p.prefix
}

func (p *Preferences) key(name string) string {
	return p.prefix + name
}

// ColumnSettings returns the saved column settings, or nil when none are saved
func (p *Preferences) ColumnSettings(ctx context.Context) (model.ColumnSettings, error) {
	var settings model.ColumnSettings
	ok, err := p.load(ctx, model.PrefColumnSettings, &settings)
	if err != nil || !ok {
		return nil, err
	}
	return settings, nil
}

// SaveColumnSettings stores column settings
func (p *Preferences) SaveColumnSettings(ctx context.Context, settings model.ColumnSettings) error {
	return p.save(ctx, model.PrefColumnSettings, settings)
}

// TableState returns the saved sort list and page size, or nil when none are saved
func (p *Preferences) TableState(ctx context.Context) (*model.SavedTableState, error) {
	var st model.SavedTableState
	ok, err := p.load(ctx, model.PrefTableState, &st)
	if err != nil || !ok {
		return nil, err
	}
	return &st, nil
}

// SaveTableState stores the sort list and page size
func (p *Preferences) SaveTableState(ctx context.Context, st model.SavedTableState) error {
	return p.save(ctx, model.PrefTableState, st)
}

// Reset removes every preference of the table
func (p *Preferences) Reset(ctx context.Context) error {
	for _, name := range []string{model.PrefColumnSettings, model.PrefTableState} {
		if err := p.store.Delete(ctx, p.key(name)); err != nil {
			return goerr.Wrap(err, "failed to delete preference", goerr.V("key", p.key(name)))
		}
	}
	return nil
}

func (p *Preferences) load(ctx context.Context, name string, v any) (bool, error) {
	raw, ok, err := p.store.Get(ctx, p.key(name))
	if err != nil {
		return false, goerr.Wrap(err, "failed to read preference", goerr.V("key", p.key(name)))
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, goerr.Wrap(err, "failed to decode preference", goerr.V("key", p.key(name)))
	}
	return true, nil
}

func (p *Preferences) save(ctx context.Context, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return goerr.Wrap(err, "failed to encode preference", goerr.V("key", p.key(name)))
	}
	if err := p.store.Set(ctx, p.key(name), string(raw)); err != nil {
		return goerr.Wrap(err, "failed to write preference", goerr.V("key", p.key(name)))
	}
	return nil
}
