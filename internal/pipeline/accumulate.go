// Package pipeline runs the monthly fetches of a year and concatenates the
// results in month order.
package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/stopsearch-cli/internal/model"
	"github.com/sells-group/stopsearch-cli/internal/police"
)

// ErrNoData is returned when every requested month failed.
var ErrNoData = eris.New("pipeline: no month could be fetched")

// MonthSource fetches one month of normalized records.
type MonthSource interface {
	FetchMonth(ctx context.Context, year, month int) (*police.MonthBatch, error)
}

// Observer receives per-month outcomes. metrics.Recorder implements it.
type Observer interface {
	ObserveFetch(month int, d time.Duration, err error)
	ObserveBatch(month, normalized, skipped int)
}

// Options configures FetchYear.
type Options struct {
	// Months to fetch; nil means 1..12.
	Months []int
	// Concurrency bounds in-flight fetches (1..12). Default 4.
	Concurrency int
	Observer    Observer
}

// MonthResult reports what one month contributed.
type MonthResult struct {
	Month   int                   `yaml:"month" json:"month"`
	Records int                   `yaml:"records" json:"records"`
	Stats   police.NormalizeStats `yaml:"stats" json:"stats"`
	// Seconds spent fetching the month, retries included.
	Seconds float64 `yaml:"seconds" json:"seconds"`
	Err     error   `yaml:"-" json:"-"`
	Error   string  `yaml:"error,omitempty" json:"error,omitempty"`
}

// Failed reports whether the month was omitted.
func (m MonthResult) Failed() bool { return m.Err != nil }

// YearResult is the annual table plus per-month accounting.
type YearResult struct {
	Year   int
	Table  model.Table
	Months []MonthResult
	Stats  police.NormalizeStats
}

// FailedMonths lists the months that were omitted.
func (y *YearResult) FailedMonths() []int {
	var out []int
	for _, m := range y.Months {
		if m.Failed() {
			out = append(out, m.Month)
		}
	}
	return out
}

// AllMonths returns 1..12.
func AllMonths() []int {
	return []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
}

// FetchYear fetches the requested months concurrently and concatenates them
// in the order of opts.Months. Each result lands in its own slot, so the
// output never depends on completion order. A month that fails is omitted
// with a warning; ErrNoData is returned only if all of them fail.
func FetchYear(ctx context.Context, src MonthSource, year int, opts Options) (*YearResult, error) {
	months := opts.Months
	if len(months) == 0 {
		months = AllMonths()
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = 4
	}
	if limit > 12 {
		limit = 12
	}

	log := zap.L().With(zap.String("component", "pipeline.fetch_year"), zap.Int("year", year))

	batches := make([]*police.MonthBatch, len(months))
	errs := make([]error, len(months))
	took := make([]time.Duration, len(months))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, month := range months {
		g.Go(func() error {
			start := time.Now()
			b, err := src.FetchMonth(gctx, year, month)
			took[i] = time.Since(start)
			if opts.Observer != nil {
				opts.Observer.ObserveFetch(month, took[i], err)
			}
			if err != nil {
				// Cancellation of the whole run is not a per-month failure.
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn("month fetch failed, omitting", zap.Int("month", month), zap.Error(err))
				errs[i] = err
				failed.Add(1)
				return nil
			}
			batches[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &YearResult{Year: year, Months: make([]MonthResult, len(months))}
	tables := make([]model.Table, len(months))
	for i, month := range months {
		mr := MonthResult{Month: month, Seconds: took[i].Seconds(), Err: errs[i]}
		if errs[i] != nil {
			mr.Error = errs[i].Error()
		}
		if b := batches[i]; b != nil {
			tables[i] = b.Records
			mr.Records = len(b.Records)
			mr.Stats = b.Stats
			res.Stats.Add(b.Stats)
			if opts.Observer != nil {
				opts.Observer.ObserveBatch(month, b.Stats.Normalized, b.Stats.Skipped)
			}
		}
		res.Months[i] = mr
		log.Info("month accounted",
			zap.Int("month", month),
			zap.Int("records", mr.Records),
			zap.Int("skipped", mr.Stats.Skipped),
			zap.Bool("failed", mr.Failed()),
		)
	}
	res.Table = Accumulate(tables)

	if int(failed.Load()) == len(months) {
		return res, ErrNoData
	}
	return res, nil
}

// Accumulate concatenates tables in slice order without sorting or
// deduplication.
func Accumulate(tables []model.Table) model.Table {
	n := 0
	for _, t := range tables {
		n += len(t)
	}
	out := make(model.Table, 0, n)
	for _, t := range tables {
		out = append(out, t...)
	}
	return out
}
