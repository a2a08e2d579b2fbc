package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gridcore/pkg/cli/config"
	"github.com/secmon-lab/gridcore/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdValidate() *cli.Command {
	var gridCfg config.Grid

	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate grid definitions: fields, options and dependency graph",
		Flags:   gridCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			grids, err := gridCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "grid definition validation failed")
			}

			for _, g := range grids {
				schema, err := g.ServerSchema()
				if err != nil {
					return goerr.Wrap(err, "grid definition validation failed", goerr.V("table", g.ID))
				}
				logger.Info("Grid validated",
					"id", g.ID,
					"title", g.Title,
					"field_count", len(g.Fields),
					"key", schema.KeyField(),
					"dependents", schema.Graph().Dependents(),
				)
			}

			logger.Info("Grid definition validation passed",
				"path", gridCfg.Path(),
				"grid_count", len(grids),
			)
			return nil
		},
	}
}
