package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/secmon-lab/gridcore/pkg/cli/config"
	httpctrl "github.com/secmon-lab/gridcore/pkg/controller/http"
	"github.com/secmon-lab/gridcore/pkg/usecase"
	"github.com/secmon-lab/gridcore/pkg/utils/logging"
	"github.com/secmon-lab/gridcore/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var origins []string
	var gridCfg config.Grid
	var repoCfg config.Repository

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("GRIDCORE_ADDR"),
			Destination: &addr,
		},
		&cli.StringSliceFlag{
			Name:        "allowed-origin",
			Usage:       "Host pattern of a foreign page allowed to open the change feed (repeatable)",
			Sources:     cli.EnvVars("GRIDCORE_ALLOWED_ORIGINS"),
			Destination: &origins,
		},
	}
	flags = append(flags, gridCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Serve grids over the list/create/update/delete envelope API",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			grids, err := gridCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load grid definitions")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer safe.Close(ctx, repo)

			hub := httpctrl.NewHub()
			services := make([]*usecase.GridService, 0, len(grids))
			for _, g := range grids {
				svc, err := usecase.NewGridService(g, repo.Record(), usecase.WithChangeNotifier(hub.Publish))
				if err != nil {
					return goerr.Wrap(err, "failed to set up grid", goerr.V("table", g.ID))
				}
				services = append(services, svc)
				logging.Default().Info("Serving grid", "table", g.ID, "fields", len(g.Fields))
			}

			httpHandler, err := httpctrl.New(services,
				httpctrl.WithHub(hub),
				httpctrl.WithOriginPatterns(origins...),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create http server")
			}
			server := &http.Server{
				Addr:              addr,
				Handler:           httpHandler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				logging.Default().Info("Context cancelled, shutting down")
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)
			}

			// feed connections are hijacked, so Shutdown does not wait for them
			hub.Close()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logging.Default().Info("Server shutdown completed")
			return nil
		},
	}
}
