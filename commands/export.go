package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"newhome-tracker/storage"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the stored catalog to CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd)
		if err != nil {
			logError("%v", err)
			return err
		}
		defer a.logger.Sync()

		path, _ := cmd.Flags().GetString("csv")
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

		var exporter *storage.CSVExporter
		if path == "-" {
			exporter, err = storage.NewCSVExporterWriter(cmd.OutOrStdout())
		} else {
			exporter, err = storage.NewCSVExporter(path)
		}
		if err != nil {
			return err
		}
		if err := exporter.Write(listings); err != nil {
			_ = exporter.Close()
			return err
		}
		if err := exporter.Close(); err != nil {
			return err
		}
		if path != "-" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d listings to %s\n", len(listings), path)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("csv", "output/catalog.csv", `CSV output path ("-" for stdout)`)
	rootCmd.AddCommand(exportCmd)
}
