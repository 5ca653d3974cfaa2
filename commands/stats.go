package commands

import (
	"github.com/spf13/cobra"

	"newhome-tracker/services"
	"newhome-tracker/storage"
	"newhome-tracker/utils"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print a summary of the stored catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd)
		if err != nil {
			logError("%v", err)
			return err
		}
		defer a.logger.Sync()

		ctx := cmd.Context()
		store, err := a.openStore(ctx)
		if err != nil {
			a.logger.Error("Failed to open store: %v", err)
			return err
		}
		defer store.Close()

		listings, err := store.ListAllListings(ctx)
		if err != nil {
			return err
		}
		recent, err := storage.RecentlyChangedIDs(ctx, store, utils.RealClock{}.Now().Add(-a.cfg.ChangeWindow))
		if err != nil {
			return err
		}

		svc := services.NewInsightService(a.logger)
		svc.Print(cmd.OutOrStdout(), svc.Generate(listings, recent))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
