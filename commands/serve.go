package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"newhome-tracker/api"
	"newhome-tracker/metrics"
	"newhome-tracker/services"
	"newhome-tracker/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog API and front end while harvesting on a schedule",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Bool("no-harvest", false, "serve only; do not start the harvester")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		logError("%v", err)
		return err
	}
	defer a.logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := a.openStore(ctx)
	if err != nil {
		a.logger.Error("Failed to open store: %v", err)
		return err
	}
	defer store.Close()

	m := metrics.New()
	var cache storage.PlansCache
	if c := a.openCache(ctx); c != nil {
		defer c.Close()
		cache = c
	}

	noHarvest, _ := cmd.Flags().GetBool("no-harvest")
	if !noHarvest {
		reg, browser, err := a.registry()
		if err != nil {
			a.logger.Error("Failed to build extractors: %v", err)
			return err
		}
		defer browser.Close()

		opts := []services.HarvesterOption{services.WithInterval(a.cfg.HarvestInterval), services.WithMetrics(m)}
		if cache != nil {
			opts = append(opts, services.WithPlansCache(cache))
		}
		h := services.NewHarvester(reg, store, services.NewChangeDetector(a.logger, nil), a.logger, opts...)
		// The harvester gets its own context so shutdown lets an in-flight cycle finish.
		h.Start(context.Background())
		defer h.Stop()
	}

	apiOpts := []api.Option{api.WithMetrics(m)}
	if cache != nil {
		apiOpts = append(apiOpts, api.WithPlansCache(cache))
	}
	srv := api.NewServer(store, a.logger, api.Config{
		StaticRoot:      a.cfg.StaticRoot,
		FrontendOrigins: splitOrigins(a.cfg.FrontendOrigin),
		ChangeWindow:    a.cfg.ChangeWindow,
	}, apiOpts...)

	httpSrv := &http.Server{
		Addr:              a.cfg.APIAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("[api] Listening on %s", a.cfg.APIAddr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("[api] Server failed: %v", err)
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("[api] Shutdown: %v", err)
	}
	return nil
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
