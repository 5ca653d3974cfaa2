package commands

import (
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"newhome-tracker/scraper"
)

type extractorEntry struct {
	Key       string `yaml:"key"`
	Builder   string `yaml:"builder"`
	Community string `yaml:"community"`
	Kind      string `yaml:"kind"`
}

var extractorsCmd = &cobra.Command{
	Use:   "extractors",
	Short: "List the enabled extractors as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd)
		if err != nil {
			logError("%v", err)
			return err
		}
		reg, browser, err := a.registry()
		if err != nil {
			return err
		}
		defer browser.Close()
		return writeExtractors(cmd.OutOrStdout(), reg)
	},
}

func init() {
	rootCmd.AddCommand(extractorsCmd)
}

func writeExtractors(w io.Writer, reg *scraper.Registry) error {
	entries := make([]extractorEntry, 0, reg.Len())
	for _, e := range reg.Extractors() {
		k := e.Key()
		entries = append(entries, extractorEntry{Key: k.String(), Builder: k.Builder, Community: k.Community, Kind: k.Kind})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"extractors": entries}); err != nil {
		return err
	}
	return enc.Close()
}
