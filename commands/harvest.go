package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"newhome-tracker/services"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Run the harvester without the API",
	Long: `Run harvest cycles against the configured store.

With --once a single cycle runs and the command exits; the exit status is
non-zero only when the cycle could not run at all.`,
	RunE: runHarvest,
}

func init() {
	harvestCmd.Flags().Bool("once", false, "run a single cycle and exit")
	rootCmd.AddCommand(harvestCmd)
}

func runHarvest(cmd *cobra.Command, _ []string) error {
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

	reg, browser, err := a.registry()
	if err != nil {
		a.logger.Error("Failed to build extractors: %v", err)
		return err
	}
	defer browser.Close()

	opts := []services.HarvesterOption{services.WithInterval(a.cfg.HarvestInterval)}
	if c := a.openCache(ctx); c != nil {
		defer c.Close()
		opts = append(opts, services.WithPlansCache(c))
	}
	h := services.NewHarvester(reg, store, services.NewChangeDetector(a.logger, nil), a.logger, opts...)

	once, _ := cmd.Flags().GetBool("once")
	if once {
		report := h.RunCycle(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d extractors (%d empty, %d failed), %d records, %d new, %d updated, %d price changes, %d malformed\n",
			report.RunID, report.Extractors, report.Empty, report.Failed, report.Records,
			report.Created, report.Updated, report.PriceChanges, report.Malformed)
		return report.Err
	}

	h.Start(context.Background())
	<-ctx.Done()
	a.logger.Info("Interrupted, waiting for the current cycle to finish")
	h.Stop()
	return nil
}
