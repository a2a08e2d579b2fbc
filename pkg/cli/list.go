package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gridcore/pkg/cli/config"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
	"github.com/secmon-lab/gridcore/pkg/repository/sqlite"
	"github.com/secmon-lab/gridcore/pkg/service/realtime"
	"github.com/secmon-lab/gridcore/pkg/service/transport"
	"github.com/secmon-lab/gridcore/pkg/usecase"
	"github.com/secmon-lab/gridcore/pkg/utils/logging"
	"github.com/secmon-lab/gridcore/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

type listOptions struct {
	baseURL     string
	table       string
	page        int
	pageSize    int
	sort        string
	search      []string
	watch       bool
	preferences string
}

func cmdList() *cli.Command {
	var gridCfg config.Grid
	var opts listOptions

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "Root URL of a gridcore server (e.g. http://localhost:8080)",
			Required:    true,
			Sources:     cli.EnvVars("GRIDCORE_BASE_URL"),
			Destination: &opts.baseURL,
		},
		&cli.StringFlag{
			Name:        "table",
			Aliases:     []string{"t"},
			Usage:       "Table ID; optional when the definition file has one table",
			Destination: &opts.table,
		},
		&cli.IntFlag{
			Name:        "page",
			Usage:       "Page number",
			Value:       1,
			Destination: &opts.page,
		},
		&cli.IntFlag{
			Name:        "page-size",
			Usage:       "Records per page (0 keeps the table setting)",
			Destination: &opts.pageSize,
		},
		&cli.StringFlag{
			Name:        "sort",
			Usage:       `Sort list, e.g. "name ASC, age DESC"`,
			Destination: &opts.sort,
		},
		&cli.StringSliceFlag{
			Name:        "search",
			Usage:       "Search term as field=term (repeatable)",
			Destination: &opts.search,
		},
		&cli.BoolFlag{
			Name:        "watch",
			Aliases:     []string{"w"},
			Usage:       "Keep following the record change feed and redraw on changes",
			Destination: &opts.watch,
		},
		&cli.StringFlag{
			Name:        "preferences",
			Usage:       "SQLite file that keeps sorting, page size and column settings between runs",
			Sources:     cli.EnvVars("GRIDCORE_PREFERENCES"),
			Destination: &opts.preferences,
		},
	}
	flags = append(flags, gridCfg.Flags()...)

	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "Load one page of a remote grid and print it",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			grids, err := gridCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load grid definitions")
			}
			grid, err := pickGrid(grids, opts.table)
			if err != nil {
				return err
			}
			return runList(ctx, os.Stdout, grid, opts)
		},
	}
}

func pickGrid(grids []*model.Grid, id string) (*model.Grid, error) {
	if id == "" {
		if len(grids) == 1 {
			return grids[0], nil
		}
		return nil, goerr.New("--table is required when several tables are defined")
	}
	for _, g := range grids {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, goerr.New("table is not defined", goerr.V("table", id))
}

func runList(ctx context.Context, w io.Writer, grid *model.Grid, opts listOptions) error {
	apiRoot := strings.TrimSuffix(opts.baseURL, "/") + "/api"
	schema, err := grid.ClientSchema(apiRoot)
	if err != nil {
		return goerr.Wrap(err, "failed to build schema", goerr.V("table", grid.ID))
	}

	cfg := grid.ClientConfig(apiRoot)
	var sorting model.Sorting
	if opts.sort != "" {
		if sorting, err = model.ParseSorting(opts.sort); err != nil {
			return goerr.Wrap(err, "invalid sort", goerr.V("sort", opts.sort))
		}
		cfg.Sorting = true
		cfg.MultiSorting = true
	}
	if len(opts.search) > 0 {
		cfg.ToolbarSearch = true
	}
	if opts.pageSize > 0 {
		cfg.Paging = true
		cfg.PageSize = opts.pageSize
		if len(cfg.PageSizes) == 0 {
			cfg.PageSizes = slices.Clone(model.DefaultPageSizes)
		}
		if !slices.Contains(cfg.PageSizes, opts.pageSize) {
			cfg.PageSizes = append(cfg.PageSizes, opts.pageSize)
		}
	}

	view := newTerminalView(w, opts.watch)
	tableOpts := []usecase.TableOption{
		usecase.WithView(view),
		usecase.WithTransport(transport.New()),
	}
	if opts.preferences != "" {
		store, err := sqlite.New(ctx, opts.preferences)
		if err != nil {
			return goerr.Wrap(err, "failed to open preferences", goerr.V("path", opts.preferences))
		}
		defer safe.Close(ctx, store)
		cfg.SaveUserPreferences = true
		tableOpts = append(tableOpts, usecase.WithPreferenceStore(store.Preference()))
	}

	table, err := usecase.NewTable(ctx, cfg, schema, tableOpts...)
	if err != nil {
		return goerr.Wrap(err, "failed to create table", goerr.V("table", grid.ID))
	}
	defer table.Destroy()

	if len(sorting) > 0 {
		table.SetSorting(ctx, sorting)
	}
	if err := loadPage(ctx, table, opts); err != nil {
		return err
	}
	table.WaitBackground()
	table.RefreshDisplayValues()

	if !opts.watch {
		view.Print()
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	feedURL := "ws" + strings.TrimPrefix(grid.Endpoint(apiRoot, model.GridFeedPath), "http")
	logging.From(ctx).Info("Watching record feed", "url", feedURL)
	return realtime.New(feedURL, table).Run(ctx)
}

func loadPage(ctx context.Context, table *usecase.Table, opts listOptions) error {
	for _, expr := range opts.search {
		field, term, ok := strings.Cut(expr, "=")
		if !ok {
			return goerr.New("search must be field=term", goerr.V("search", expr))
		}
		if err := table.SetSearch(ctx, strings.TrimSpace(field), term); err != nil {
			return err
		}
	}
	if len(opts.search) > 0 {
		if err := table.FlushSearch(ctx); err != nil {
			return err
		}
	} else if err := table.Load(ctx, nil); err != nil {
		return err
	}

	if opts.page > 1 {
		if err := table.ChangePage(ctx, opts.page); err != nil {
			return err
		}
	}
	return nil
}
