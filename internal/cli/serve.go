package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lucasfdcampos/lead-scraper/internal/api"
)

var serveOpts struct {
	addr    string
	workers int
}

func init() {
	serveCmd.Flags().StringVar(&serveOpts.addr, "addr", "", "Listen address (default $ADDR or :8080).")
	serveCmd.Flags().IntVar(&serveOpts.workers, "workers", 1, "Locations walked at once in a us_latino sweep.")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [--addr :8080]",
	Short: "Serves the scrape HTTP API.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := serveOpts.addr
		if addr == "" {
			addr = cfg.Addr
		}

		a := newApp(cfg, serveOpts.workers)
		a.connect(cmd.Context())
		defer a.close()

		var (
			redis api.CacheDeleter
			mongo api.QueryLister
			tasks api.TaskStore
		)
		if a.redis != nil {
			redis = a.redis
		}
		if a.mongo != nil {
			mongo, tasks = a.mongo, a.mongo
		}
		h := api.NewHandler(a.run, redis, mongo).WithTasks(tasks, a.processPending)
		srv := api.NewServer(addr, h)

		errc := make(chan error, 1)
		go func() { errc <- srv.Start() }()

		select {
		case err := <-errc:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-cmd.Context().Done():
		}

		zap.L().Info("shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			zap.L().Warn("shutdown error", zap.Error(err))
		}
		zap.L().Info("bye")
		return nil
	},
}
