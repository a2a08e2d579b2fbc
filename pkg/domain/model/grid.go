package model

import (
	"context"
	"net/url"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// GridOption is one option a backend serves for a field. When restricts the
// option to one value of the field's first master; it is empty for fields
// without dependencies.
type GridOption struct {
	Value string
	Text  string
	When  string
}

// Grid is a table definition shared by the backend and its clients
type Grid struct {
	ID     string
	Title  string
	Fields []FieldDescriptor
	Config TableConfig
	// Options holds the served options of select like fields, by field name
	Options map[string][]GridOption
}

// Grid endpoints, relative to the API root
const (
	GridListPath    = "/list"
	GridCreatePath  = "/create"
	GridUpdatePath  = "/update"
	GridDeletePath  = "/delete"
	GridOptionsPath = "/options/"
	GridFeedPath    = "/ws"
)

// Validate builds both schemas once to report definition errors
func (g *Grid) Validate() error {
	if g.ID == "" {
		return goerr.Wrap(ErrConfiguration, "grid ID is empty")
	}
	schema, err := g.ServerSchema()
	if err != nil {
		return err
	}
	if schema.KeyField() == "" {
		return goerr.Wrap(ErrNoKeyField, "grid has no key field", goerr.V(TableIDKey, g.ID))
	}
	for name := range g.Options {
		if _, ok := schema.Field(name); !ok {
			return goerr.Wrap(ErrUnknownField, "options for an unknown field",
				goerr.V(TableIDKey, g.ID), goerr.V(FieldNameKey, name))
		}
	}
	return nil
}

// ServerSchema returns the schema resolved in process by the backend:
// independent fields get their options as a static list, dependent fields a
// provider filtering on the master value.
func (g *Grid) ServerSchema() (*Schema, error) {
	fields := make([]FieldDescriptor, len(g.Fields))
	for i, f := range g.Fields {
		opts, ok := g.Options[f.Name]
		if ok {
			if f.HasDependencies() {
				f.Options = g.dependentProvider(f.Masters()[0], opts)
			} else {
				f.Options = toStatic(opts)
			}
		}
		fields[i] = f
	}
	return NewSchema(fields...)
}

// ClientSchema returns the schema a remote client uses: option fields point
// at the options endpoint under apiRoot, with the master values as query.
func (g *Grid) ClientSchema(apiRoot string) (*Schema, error) {
	fields := make([]FieldDescriptor, len(g.Fields))
	for i, f := range g.Fields {
		if _, ok := g.Options[f.Name]; ok {
			endpoint := g.Endpoint(apiRoot, GridOptionsPath+url.PathEscape(f.Name))
			if f.HasDependencies() {
				masters := f.Masters()
				f.Options = ProviderFunc(func(ctx context.Context, pc *ProviderContext) (ProviderResult, error) {
					q := url.Values{}
					for _, m := range masters {
						q.Set(m, pc.DependsOnValue(m))
					}
					return ResultURL(endpoint + "?" + q.Encode()), nil
				})
			} else {
				f.Options = URLSource(endpoint)
			}
		}
		fields[i] = f
	}
	return NewSchema(fields...)
}

// ClientConfig returns the table configuration of a remote client, with the
// four actions pointing at the grid endpoints under apiRoot
func (g *Grid) ClientConfig(apiRoot string) TableConfig {
	cfg := g.Config
	cfg.ID = g.ID
	cfg.Actions = Actions{
		List:   ListAction{URL: g.Endpoint(apiRoot, GridListPath)},
		Create: RecordAction{URL: g.Endpoint(apiRoot, GridCreatePath)},
		Update: RecordAction{URL: g.Endpoint(apiRoot, GridUpdatePath)},
		Delete: RecordAction{URL: g.Endpoint(apiRoot, GridDeletePath)},
	}
	return cfg
}

// Endpoint joins apiRoot, the grid ID and path
func (g *Grid) Endpoint(apiRoot, path string) string {
	return strings.TrimSuffix(apiRoot, "/") + "/" + url.PathEscape(g.ID) + path
}

// FilterOptions returns the options offered when the first master has value
// masterValue. Options without When are always offered.
func FilterOptions(opts []GridOption, masterValue string) ResolvedOptions {
	out := ResolvedOptions{}
	for _, o := range opts {
		if o.When != "" && o.When != masterValue {
			continue
		}
		out = append(out, Option{Value: o.Value, DisplayText: o.label()})
	}
	return out
}

func (g *Grid) dependentProvider(master string, opts []GridOption) ProviderFunc {
	return func(ctx context.Context, pc *ProviderContext) (ProviderResult, error) {
		return ResultOptions(FilterOptions(opts, pc.DependsOnValue(master))...), nil
	}
}

func toStatic(opts []GridOption) StaticOptions {
	return StaticOptions(FilterOptions(opts, ""))
}

func (o GridOption) label() string {
	if o.Text != "" {
		return o.Text
	}
	return o.Value
}
