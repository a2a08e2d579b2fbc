package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
	"github.com/secmon-lab/gridcore/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

// GridFile is the TOML form of one or more grid definitions
type GridFile struct {
	Tables []TableDef `toml:"table"`
}

// TableDef is one [[table]] entry
type TableDef struct {
	ID    string `toml:"id"`
	Title string `toml:"title"`

	Paging              bool   `toml:"paging"`
	PageSize            int    `toml:"page_size"`
	PageSizes           []int  `toml:"page_sizes"`
	Sorting             bool   `toml:"sorting"`
	MultiSorting        bool   `toml:"multi_sorting"`
	DefaultSorting      string `toml:"default_sorting"`
	ToolbarSearch       bool   `toml:"toolbar_search"`
	SearchDebounce      string `toml:"search_debounce"`
	ListCacheTTL        string `toml:"list_cache_ttl"`
	LoadingDelay        string `toml:"loading_delay"`
	Selecting           bool   `toml:"selecting"`
	MultiSelect         bool   `toml:"multi_select"`
	SaveUserPreferences bool   `toml:"save_user_preferences"`

	Fields []FieldDef `toml:"field"`
}

// FieldDef is one [[table.field]] entry
type FieldDef struct {
	Name       string            `toml:"name"`
	Title      string            `toml:"title"`
	InputTitle string            `toml:"input_title"`
	Type       string            `toml:"type"`
	Key        bool              `toml:"key"`
	DependsOn  string            `toml:"depends_on"`
	Cacheable  bool              `toml:"cacheable"`
	Visibility string            `toml:"visibility"`
	Width      string            `toml:"width"`
	Sortable   *bool             `toml:"sortable"`
	Searchable *bool             `toml:"searchable"`
	Create     *bool             `toml:"create"`
	Edit       *bool             `toml:"edit"`
	List       *bool             `toml:"list"`
	Required   bool              `toml:"required"`
	Default    any               `toml:"default"`
	Values     map[string]string `toml:"values"`
	Explain    string            `toml:"explain"`
	Options    []OptionDef       `toml:"option"`
}

// OptionDef is one [[table.field.option]] entry. When restricts the option to
// one value of the field's master.
type OptionDef struct {
	Value string `toml:"value"`
	Text  string `toml:"text"`
	When  string `toml:"when"`
}

// LoadGridFile reads and validates the grid definitions at path
func LoadGridFile(path string) ([]*model.Grid, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "grid definition file does not exist", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read grid definition file", goerr.V(ConfigPathKey, path))
	}

	grids, err := ParseGrids(data)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load grid definitions", goerr.V(ConfigPathKey, path))
	}
	return grids, nil
}

// ParseGrids decodes TOML grid definitions and validates every grid
func ParseGrids(data []byte) ([]*model.Grid, error) {
	var file GridFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse TOML", goerr.V("cause", err.Error()))
	}
	if len(file.Tables) == 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "no table is defined")
	}

	seen := make(map[string]struct{}, len(file.Tables))
	grids := make([]*model.Grid, 0, len(file.Tables))
	for _, def := range file.Tables {
		if _, dup := seen[def.ID]; dup {
			return nil, goerr.Wrap(ErrDuplicateTableID, "table is defined twice", goerr.V(TableIDKey, def.ID))
		}
		seen[def.ID] = struct{}{}

		g, err := def.ToGrid()
		if err != nil {
			return nil, err
		}
		grids = append(grids, g)
	}
	return grids, nil
}

// ToGrid converts the definition into a validated grid
func (d *TableDef) ToGrid() (*model.Grid, error) {
	if d.ID == "" {
		return nil, goerr.Wrap(ErrMissingName, "table id is required")
	}

	cfg := model.TableConfig{
		Paging:              d.Paging,
		PageSize:            d.PageSize,
		PageSizes:           d.PageSizes,
		Sorting:             d.Sorting,
		MultiSorting:        d.MultiSorting,
		DefaultSorting:      d.DefaultSorting,
		ToolbarSearch:       d.ToolbarSearch,
		Selecting:           d.Selecting,
		MultiSelect:         d.MultiSelect,
		SaveUserPreferences: d.SaveUserPreferences,
	}
	var err error
	if cfg.SearchDebounce, err = parseDuration(d.SearchDebounce); err != nil {
		return nil, goerr.Wrap(err, "invalid search_debounce", goerr.V(TableIDKey, d.ID))
	}
	if cfg.ListCacheTTL, err = parseOptionalDuration(d.ListCacheTTL); err != nil {
		return nil, goerr.Wrap(err, "invalid list_cache_ttl", goerr.V(TableIDKey, d.ID))
	}
	if cfg.LoadingDelay, err = parseOptionalDuration(d.LoadingDelay); err != nil {
		return nil, goerr.Wrap(err, "invalid loading_delay", goerr.V(TableIDKey, d.ID))
	}

	g := &model.Grid{
		ID:      d.ID,
		Title:   d.Title,
		Config:  cfg,
		Options: make(map[string][]model.GridOption),
	}

	names := make(map[string]struct{}, len(d.Fields))
	for i, fd := range d.Fields {
		f, opts, err := fd.toField(i)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid field", goerr.V(TableIDKey, d.ID))
		}
		if _, dup := names[f.Name]; dup {
			return nil, goerr.Wrap(ErrDuplicateFieldID, "field is defined twice",
				goerr.V(TableIDKey, d.ID), goerr.V(FieldIDKey, f.Name))
		}
		names[f.Name] = struct{}{}

		g.Fields = append(g.Fields, f)
		if len(opts) > 0 {
			g.Options[f.Name] = opts
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	if _, err := g.ClientConfig("").Normalize(); err != nil {
		return nil, goerr.Wrap(err, "invalid table settings", goerr.V(TableIDKey, d.ID))
	}
	return g, nil
}

func (fd *FieldDef) toField(index int) (model.FieldDescriptor, []model.GridOption, error) {
	if fd.Name == "" {
		return model.FieldDescriptor{}, nil, goerr.Wrap(ErrMissingName, "field name is required", goerr.V(FieldIndexKey, index))
	}

	f := model.FieldDescriptor{
		Name:         fd.Name,
		Title:        fd.Title,
		InputTitle:   fd.InputTitle,
		Key:          fd.Key,
		DependsOn:    fd.DependsOn,
		Cacheable:    fd.Cacheable,
		Width:        fd.Width,
		Sortable:     fd.Sortable,
		Searchable:   fd.Searchable,
		Create:       fd.Create,
		Edit:         fd.Edit,
		List:         fd.List,
		Required:     fd.Required,
		DefaultValue: fd.Default,
		Values:       fd.Values,
		Explain:      fd.Explain,
	}

	if fd.Type != "" {
		kind, err := types.ParseFieldKind(fd.Type)
		if err != nil {
			return f, nil, goerr.Wrap(ErrInvalidFieldType, "unknown field type",
				goerr.V(FieldIDKey, fd.Name), goerr.V(FieldTypeKey, fd.Type))
		}
		f.Kind = kind
	}
	vis, err := types.ParseVisibility(fd.Visibility)
	if err != nil {
		return f, nil, goerr.Wrap(ErrInvalidConfig, "unknown visibility",
			goerr.V(FieldIDKey, fd.Name), goerr.V("visibility", fd.Visibility))
	}
	f.Visibility = vis

	if f.Kind.HasOptions() && len(fd.Options) == 0 {
		return f, nil, goerr.Wrap(ErrMissingOptions, "field has no options",
			goerr.V(FieldIDKey, fd.Name), goerr.V(FieldTypeKey, fd.Type))
	}

	opts := make([]model.GridOption, 0, len(fd.Options))
	values := make(map[[2]string]struct{}, len(fd.Options))
	for i, od := range fd.Options {
		if od.Value == "" {
			return f, nil, goerr.Wrap(ErrMissingName, "option value is required",
				goerr.V(FieldIDKey, fd.Name), goerr.V(OptionIndexKey, i))
		}
		k := [2]string{od.When, od.Value}
		if _, dup := values[k]; dup {
			return f, nil, goerr.Wrap(ErrDuplicateOptionID, "option is defined twice",
				goerr.V(FieldIDKey, fd.Name), goerr.V(OptionIDKey, od.Value))
		}
		values[k] = struct{}{}
		opts = append(opts, model.GridOption{Value: od.Value, Text: od.Text, When: od.When})
	}

	return f, opts, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, goerr.Wrap(ErrInvalidConfig, "invalid duration", goerr.V("value", s))
	}
	return d, nil
}

// parseOptionalDuration keeps an absent setting nil so that an explicit "0s"
// stays distinguishable from the default
func parseOptionalDuration(s string) (*time.Duration, error) {
	if s == "" {
		return nil, nil
	}
	d, err := parseDuration(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Grid holds the CLI flag naming the grid definition file
type Grid struct {
	path string
}

// Flags returns CLI flags for grid definitions
func (g *Grid) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "grid",
			Aliases:     []string{"g"},
			Usage:       "Grid definition file (TOML)",
			Required:    true,
			Sources:     cli.EnvVars("GRIDCORE_GRID"),
			Destination: &g.path,
		},
	}
}

// Path returns the configured definition file
func (g *Grid) Path() string {
	return g.path
}

// Configure loads the grid definitions
func (g *Grid) Configure() ([]*model.Grid, error) {
	return LoadGridFile(g.path)
}
