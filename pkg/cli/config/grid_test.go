package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gridcore/pkg/cli/config"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
	"github.com/secmon-lab/gridcore/pkg/domain/types"
)

const peopleTOML = `
[[table]]
id = "people"
title = "People"
paging = true
page_size = 25
page_sizes = [10, 25]
sorting = true
default_sorting = "name ASC"
search_debounce = "200ms"
list_cache_ttl = "0s"
loading_delay = "0s"

  [[table.field]]
  name = "id"
  key = true

  [[table.field]]
  name = "name"
  title = "Name"
  required = true

  [[table.field]]
  name = "active"
  type = "checkbox"
  values = { "0" = "Passive", "1" = "Active" }
  sortable = false

  [[table.field]]
  name = "country"

    [[table.field.option]]
    value = "JP"
    text = "Japan"

    [[table.field.option]]
    value = "US"

  [[table.field]]
  name = "city"
  depends_on = "country"
  cacheable = true

    [[table.field.option]]
    value = "tokyo"
    when = "JP"

    [[table.field.option]]
    value = "nyc"
    when = "US"

[[table]]
id = "notes"

  [[table.field]]
  name = "id"
  key = true
`

func TestParseGrids(t *testing.T) {
	grids, err := config.ParseGrids([]byte(peopleTOML))
	gt.NoError(t, err).Required()
	gt.Array(t, grids).Length(2)

	people := grids[0]
	gt.Value(t, people.ID).Equal("people")
	gt.Value(t, people.Config.PageSize).Equal(25)
	gt.Value(t, people.Config.PageSizes).Equal([]int{10, 25})
	gt.Value(t, people.Config.DefaultSorting).Equal("name ASC")
	gt.Value(t, people.Config.SearchDebounce).Equal(200 * time.Millisecond)
	gt.Value(t, people.Config.CacheTTL()).Equal(time.Duration(0))
	gt.Value(t, people.Config.IndicatorDelay()).Equal(time.Duration(0))
	gt.Array(t, people.Fields).Length(5)

	active := people.Fields[2]
	gt.Value(t, active.Kind).Equal(types.FieldKindCheckbox)
	gt.Value(t, active.Values["1"]).Equal("Active")
	gt.Bool(t, active.IsSortable()).False()

	city := people.Fields[4]
	gt.Value(t, city.DependsOn).Equal("country")
	gt.Bool(t, city.Cacheable).True()
	gt.Value(t, people.Options["city"]).Equal([]model.GridOption{
		{Value: "tokyo", When: "JP"},
		{Value: "nyc", When: "US"},
	})
	gt.Value(t, people.Options["country"][0].Text).Equal("Japan")

	gt.Value(t, grids[1].ID).Equal("notes")
	gt.Value(t, grids[1].Config.ListCacheTTL).Equal((*time.Duration)(nil))
	gt.Value(t, grids[1].Config.CacheTTL()).Equal(model.DefaultListCacheTTL)
}

func TestParseGrids_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "broken TOML",
			content: `[[table]`,
			wantErr: config.ErrInvalidConfig,
		},
		{
			name:    "no table",
			content: `title = "x"`,
			wantErr: config.ErrInvalidConfig,
		},
		{
			name: "duplicate table",
			content: `
[[table]]
id = "a"
  [[table.field]]
  name = "id"
  key = true
[[table]]
id = "a"
  [[table.field]]
  name = "id"
  key = true
`,
			wantErr: config.ErrDuplicateTableID,
		},
		{
			name: "duplicate field",
			content: `
[[table]]
id = "a"
  [[table.field]]
  name = "id"
  key = true
  [[table.field]]
  name = "id"
`,
			wantErr: config.ErrDuplicateFieldID,
		},
		{
			name: "unknown field type",
			content: `
[[table]]
id = "a"
  [[table.field]]
  name = "id"
  key = true
  type = "slider"
`,
			wantErr: config.ErrInvalidFieldType,
		},
		{
			name: "select without options",
			content: `
[[table]]
id = "a"
  [[table.field]]
  name = "id"
  key = true
  [[table.field]]
  name = "kind"
  type = "select"
`,
			wantErr: config.ErrMissingOptions,
		},
		{
			name: "duplicate option",
			content: `
[[table]]
id = "a"
  [[table.field]]
  name = "id"
  key = true
  [[table.field]]
  name = "kind"
    [[table.field.option]]
    value = "x"
    [[table.field.option]]
    value = "x"
`,
			wantErr: config.ErrDuplicateOptionID,
		},
		{
			name: "no key field",
			content: `
[[table]]
id = "a"
  [[table.field]]
  name = "name"
`,
			wantErr: model.ErrNoKeyField,
		},
		{
			name: "bad duration",
			content: `
[[table]]
id = "a"
search_debounce = "soon"
  [[table.field]]
  name = "id"
  key = true
`,
			wantErr: config.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.ParseGrids([]byte(tt.content))
			gt.Error(t, err).Is(tt.wantErr)
		})
	}
}

func TestLoadGridFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.toml")
	gt.NoError(t, os.WriteFile(path, []byte(peopleTOML), 0o600)).Required()

	grids, err := config.LoadGridFile(path)
	gt.NoError(t, err).Required()
	gt.Array(t, grids).Length(2)

	_, err = config.LoadGridFile(filepath.Join(t.TempDir(), "missing.toml"))
	gt.Error(t, err).Is(config.ErrConfigNotFound)
}
