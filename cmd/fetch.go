package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/stopsearch-cli/internal/census"
	"github.com/sells-group/stopsearch-cli/internal/config"
	"github.com/sells-group/stopsearch-cli/internal/export"
	"github.com/sells-group/stopsearch-cli/internal/fetcher"
	"github.com/sells-group/stopsearch-cli/internal/metrics"
	"github.com/sells-group/stopsearch-cli/internal/monitoring"
	"github.com/sells-group/stopsearch-cli/internal/pipeline"
	"github.com/sells-group/stopsearch-cli/internal/police"
	"github.com/sells-group/stopsearch-cli/internal/report"
	"github.com/sells-group/stopsearch-cli/internal/spatial"
	"github.com/sells-group/stopsearch-cli/internal/stats"
)

// allLayer is the layer holding the whole geo-tagged table.
const allLayer = "all"

var (
	fetchYear        int
	fetchMonths      string
	fetchOut         string
	fetchFormats     string
	fetchPostGIS     bool
	fetchConcurrency int
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch a year of records, derive subsets and export them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts, err := fetchOptionsFromFlags(cfg)
		if err != nil {
			return err
		}

		sinks, closeSinks, err := openSinks(ctx, cfg, opts.Dir, opts.Formats, fetchPostGIS)
		if err != nil {
			return err
		}
		defer closeSinks()

		rep, err := runFetch(ctx, cfg, opts, newFetcher(cfg), sinks, metrics.New())
		if rep != nil {
			if path, werr := rep.Write(opts.Dir); werr != nil {
				zap.L().Error("write report", zap.Error(werr))
			} else {
				zap.L().Info("report written", zap.String("path", path))
			}
			monitoring.NewAlerter(cfg.Monitoring).Check(context.WithoutCancel(ctx), rep)
		}
		return err
	},
}

type fetchOptions struct {
	Year        int
	Months      []int
	Dir         string
	Formats     []string
	Concurrency int
}

func fetchOptionsFromFlags(c *config.Config) (fetchOptions, error) {
	if fetchConcurrency > 0 {
		c.Fetch.Concurrency = fetchConcurrency
	}
	if err := c.Validate("fetch"); err != nil {
		return fetchOptions{}, err
	}
	if fetchYear < 1000 || fetchYear > 9999 {
		return fetchOptions{}, eris.Errorf("fetch: --year must be a 4-digit year, got %d", fetchYear)
	}
	months, err := parseMonths(fetchMonths)
	if err != nil {
		return fetchOptions{}, eris.Wrap(err, "fetch: --months")
	}

	opts := fetchOptions{
		Year:        fetchYear,
		Months:      months,
		Dir:         c.Export.Dir,
		Formats:     c.Export.Formats,
		Concurrency: c.Fetch.Concurrency,
	}
	if fetchOut != "" {
		opts.Dir = fetchOut
	}
	if fetchFormats != "" {
		opts.Formats = splitList(fetchFormats)
	}
	return opts, nil
}

// runFetch runs the whole acquisition: monthly fetches, accumulation,
// geo-tagging, subsets, optional census stats and export. The report is
// returned even when the run fails part way.
func runFetch(ctx context.Context, c *config.Config, opts fetchOptions, f fetcher.Fetcher, sinks []export.Sink, rec *metrics.Recorder) (*report.Report, error) {
	log := zap.L().With(zap.String("component", "fetch"), zap.Int("year", opts.Year))
	rep := report.New("fetch", opts.Year)
	defer rep.Finish()

	client := police.NewClient(f, police.Options{
		BaseURL: c.Police.BaseURL,
		Polygon: c.Polygon(),
		Timeout: fetchTimeout(c),
	})

	year, err := pipeline.FetchYear(ctx, client, opts.Year, pipeline.Options{
		Months:      opts.Months,
		Concurrency: opts.Concurrency,
		Observer:    rec,
	})
	rep.AddYear(year)
	if err != nil {
		return rep, err
	}

	tbl := spatial.FromTable(year.Table)
	subsets, err := spatial.Subsets(tbl, c.Subsets)
	if err != nil {
		return rep, err
	}
	rep.AddSpatial(tbl, subsets)
	log.Info("spatial table built",
		zap.Int("rows", tbl.Len()),
		zap.Int("skipped", tbl.Skipped()),
		zap.Int("subsets", len(subsets)),
	)

	if c.Census.Path != "" {
		summaries, err := summarize(c, rep)
		if err != nil {
			log.Warn("stats skipped", zap.Error(err))
		} else {
			rep.Stats = summaries
		}
	}

	layers := make([]export.Layer, 0, len(subsets)+1)
	layers = append(layers, export.RecordLayer(allLayer, tbl.All()))
	for _, s := range subsets {
		layers = append(layers, export.RecordLayer(s.Name, s.View))
	}
	res, err := export.Run(ctx, sinks, layers)
	rep.AddExport(res)
	if err != nil {
		return rep, eris.Wrap(err, "fetch: export")
	}

	log.Info("fetch complete",
		zap.Int("records", len(year.Table)),
		zap.Ints("failed_months", year.FailedMonths()),
		zap.Int("layers_written", res.Written),
	)
	return rep, nil
}

// summarize computes subset stats against the configured census file.
func summarize(c *config.Config, rep *report.Report) ([]stats.Summary, error) {
	pop, err := census.Load(c.Census.Path)
	if err != nil {
		return nil, err
	}
	out, err := stats.Summarize(rep.SpatialRows, rep.Counts(), pop, c.Census.ReferenceGroup)
	if errors.Is(err, stats.ErrZeroDenominator) {
		return nil, eris.Wrap(err, "stats: no geo-tagged records")
	}
	return out, err
}

func init() {
	fetchCmd.Flags().IntVar(&fetchYear, "year", 0, "year to fetch (YYYY)")
	fetchCmd.Flags().StringVar(&fetchMonths, "months", "", "months to fetch, e.g. 1-12 or 1,4,7 (default all)")
	fetchCmd.Flags().StringVar(&fetchOut, "out", "", "output directory (default from config)")
	fetchCmd.Flags().StringVar(&fetchFormats, "formats", "", "comma-separated formats: geojson,shp,gpkg,postgis (default from config)")
	fetchCmd.Flags().BoolVar(&fetchPostGIS, "postgis", false, "also load layers into PostGIS")
	fetchCmd.Flags().IntVar(&fetchConcurrency, "concurrency", 0, "concurrent month fetches, 1..12 (default from config)")
	_ = fetchCmd.MarkFlagRequired("year")
	rootCmd.AddCommand(fetchCmd)
}
