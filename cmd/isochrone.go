package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/stopsearch-cli/internal/config"
	"github.com/sells-group/stopsearch-cli/internal/export"
	"github.com/sells-group/stopsearch-cli/internal/fetcher"
	"github.com/sells-group/stopsearch-cli/internal/isochrone"
	"github.com/sells-group/stopsearch-cli/internal/report"
)

var (
	isoLng     float64
	isoLat     float64
	isoMinutes string
	isoName    string
	isoOut     string
	isoFormats string
	isoPostGIS bool
)

var isochroneCmd = &cobra.Command{
	Use:   "isochrone",
	Short: "Fetch travel-time isochrones around an origin and export each contour",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts, err := isochroneOptionsFromFlags(cmd, cfg)
		if err != nil {
			return err
		}

		sinks, closeSinks, err := openSinks(ctx, cfg, opts.Dir, opts.Formats, isoPostGIS)
		if err != nil {
			return err
		}
		defer closeSinks()

		rep, err := runIsochrone(ctx, cfg, opts, newFetcher(cfg), sinks)
		if rep != nil {
			if _, werr := rep.Write(opts.Dir); werr != nil {
				zap.L().Error("write report", zap.Error(werr))
			}
		}
		return err
	},
}

type isochroneOptions struct {
	Lng, Lat float64
	Minutes  []int
	Name     string
	Dir      string
	Formats  []string
}

func isochroneOptionsFromFlags(cmd *cobra.Command, c *config.Config) (isochroneOptions, error) {
	if err := c.Validate("isochrone"); err != nil {
		return isochroneOptions{}, err
	}
	opts := isochroneOptions{
		Lng:     c.Isochrone.Lng,
		Lat:     c.Isochrone.Lat,
		Minutes: c.Isochrone.Minutes,
		Name:    isoName,
		Dir:     c.Export.Dir,
		Formats: c.Export.Formats,
	}
	if cmd.Flags().Changed("lng") {
		opts.Lng = isoLng
	}
	if cmd.Flags().Changed("lat") {
		opts.Lat = isoLat
	}
	if isoMinutes != "" {
		m, err := parseInts(isoMinutes)
		if err != nil {
			return isochroneOptions{}, eris.Wrap(err, "isochrone: --minutes")
		}
		opts.Minutes = m
	}
	if isoOut != "" {
		opts.Dir = isoOut
	}
	if isoFormats != "" {
		opts.Formats = splitList(isoFormats)
	}
	if err := export.ValidateLayerName(opts.Name); err != nil {
		return isochroneOptions{}, err
	}
	for _, m := range opts.Minutes {
		if err := export.ValidateLayerName(contourLayerName(opts.Name, m)); err != nil {
			return isochroneOptions{}, eris.Wrap(err, "isochrone: --name too long for per-contour layers")
		}
	}
	return opts, nil
}

func contourLayerName(name string, minutes int) string {
	return fmt.Sprintf("%s_%d", name, minutes)
}

// runIsochrone fetches the contours, writes them as one combined layer plus
// one layer per contour (<name>_<minutes>), and returns the run report.
func runIsochrone(ctx context.Context, c *config.Config, opts isochroneOptions, f fetcher.Fetcher, sinks []export.Sink) (*report.Report, error) {
	rep := report.New("isochrone", 0)
	defer rep.Finish()

	client := isochrone.NewClient(f, isochrone.Options{
		BaseURL: c.Isochrone.BaseURL,
		Token:   c.Isochrone.Token,
		Profile: c.Isochrone.Profile,
		Timeout: fetchTimeout(c),
	})

	fc, err := client.Fetch(ctx, opts.Lng, opts.Lat, opts.Minutes)
	if err != nil {
		return rep, err
	}
	contours, err := isochrone.Split(fc)
	if err != nil {
		return rep, err
	}

	layers := []export.Layer{export.ContourLayer(opts.Name, contours)}
	for _, ct := range contours {
		rep.Contours = append(rep.Contours, ct.Minutes)
		layers = append(layers, export.ContourLayer(
			contourLayerName(opts.Name, ct.Minutes),
			[]isochrone.Contour{ct},
		))
	}

	res, err := export.Run(ctx, sinks, layers)
	rep.AddExport(res)
	if err != nil {
		return rep, eris.Wrap(err, "isochrone: export")
	}
	zap.L().Info("isochrones exported",
		zap.Ints("contours", rep.Contours),
		zap.Int("layers_written", res.Written),
	)
	return rep, nil
}

func init() {
	isochroneCmd.Flags().Float64Var(&isoLng, "lng", 0, "origin longitude (default from config)")
	isochroneCmd.Flags().Float64Var(&isoLat, "lat", 0, "origin latitude (default from config)")
	isochroneCmd.Flags().StringVar(&isoMinutes, "minutes", "", "comma-separated contour minutes, e.g. 5,10 (default from config)")
	isochroneCmd.Flags().StringVar(&isoName, "name", "isochrone", "layer name prefix")
	isochroneCmd.Flags().StringVar(&isoOut, "out", "", "output directory (default from config)")
	isochroneCmd.Flags().StringVar(&isoFormats, "formats", "", "comma-separated formats (default from config)")
	isochroneCmd.Flags().BoolVar(&isoPostGIS, "postgis", false, "also load layers into PostGIS")
	rootCmd.AddCommand(isochroneCmd)
}
