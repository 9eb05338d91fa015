package main

import (
	"errors"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/stopsearch-cli/internal/config"
	"github.com/sells-group/stopsearch-cli/internal/report"
	"github.com/sells-group/stopsearch-cli/internal/stats"
)

var (
	statsDir       string
	statsCensus    string
	statsReference string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Compute subset shares and per-1,000 rates from a fetch report and a census table",
	RunE: func(cmd *cobra.Command, args []string) error {
		if statsCensus != "" {
			cfg.Census.Path = statsCensus
		}
		if statsReference != "" {
			cfg.Census.ReferenceGroup = statsReference
		}
		dir := statsDir
		if dir == "" {
			dir = cfg.Export.Dir
		}
		return runStats(cfg, dir, cmd.OutOrStdout())
	},
}

// runStats reads the fetch report in dir, computes stats against the census
// file, prints them as YAML and stores them back into the report.
func runStats(c *config.Config, dir string, out io.Writer) error {
	if err := c.Validate("stats"); err != nil {
		return err
	}

	rep, err := report.Read(report.Path(dir, "fetch"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return eris.Wrapf(err, "stats: no fetch report in %s; run fetch first", dir)
		}
		return err
	}

	summaries, err := summarize(c, rep)
	if err != nil {
		return err
	}
	rep.Stats = summaries

	data, err := yaml.Marshal(map[string][]stats.Summary{"stats": summaries})
	if err != nil {
		return eris.Wrap(err, "stats: marshal")
	}
	if _, err := out.Write(data); err != nil {
		return eris.Wrap(err, "stats: write output")
	}

	path, err := rep.Write(dir)
	if err != nil {
		return err
	}
	zap.L().Info("stats stored in report", zap.String("path", path), zap.Int("subsets", len(summaries)))
	return nil
}

func init() {
	statsCmd.Flags().StringVar(&statsDir, "dir", "", "directory holding report.yaml (default export.dir)")
	statsCmd.Flags().StringVar(&statsCensus, "census", "", "census CSV or XLSX (default census.path)")
	statsCmd.Flags().StringVar(&statsReference, "reference", "", "reference subset for ratios (default census.reference_group)")
	rootCmd.AddCommand(statsCmd)
}
