package police

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/stopsearch-cli/internal/fetcher"
	"github.com/sells-group/stopsearch-cli/internal/model"
)

// DefaultBaseURL is the public data.police.uk API root.
const DefaultBaseURL = "https://data.police.uk/api"

// Options configures a Client.
type Options struct {
	BaseURL string
	Polygon Polygon
	// Timeout bounds one month's fetch including retries. 0 means no
	// deadline beyond the caller's context.
	Timeout time.Duration
}

// MonthBatch is one month of normalized records.
type MonthBatch struct {
	Year    int
	Month   int
	Records model.Table
	Stats   NormalizeStats
}

// Client fetches stop-and-search records inside a fixed polygon.
type Client struct {
	fetcher fetcher.Fetcher
	opts    Options
}

// NewClient creates a Client. The polygon is fixed for the client's lifetime.
func NewClient(f fetcher.Fetcher, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	return &Client{fetcher: f, opts: opts}
}

// Polygon returns the query boundary.
func (c *Client) Polygon() Polygon { return c.opts.Polygon }

// FetchMonth downloads and normalizes one month. A non-2xx status or a body
// that is not a JSON array is an error; individual bad records are skipped
// and counted in the batch stats.
func (c *Client) FetchMonth(ctx context.Context, year, month int) (*MonthBatch, error) {
	u, err := BuildQuery(c.opts.BaseURL, c.opts.Polygon, year, month)
	if err != nil {
		return nil, err
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	log := zap.L().With(
		zap.String("component", "police.client"),
		zap.Int("year", year),
		zap.Int("month", month),
	)

	body, err := c.fetcher.Download(ctx, u)
	if err != nil {
		return nil, eris.Wrapf(err, "police: fetch %04d-%02d", year, month)
	}
	defer body.Close() //nolint:errcheck

	undecodable := 0
	raws, err := fetcher.DecodeJSONArray[RawRecord](body, func(idx int, err error) {
		undecodable++
		log.Debug("police: undecodable record", zap.Int("index", idx), zap.Error(err))
	})
	if err != nil {
		return nil, eris.Wrapf(err, "police: decode %04d-%02d", year, month)
	}

	recs, stats := NormalizeAll(raws)
	stats.Total += undecodable
	stats.Skipped += undecodable
	for i := range recs {
		recs[i].Month = month
	}

	log.Debug("police: month fetched",
		zap.Int("records", stats.Normalized),
		zap.Int("skipped", stats.Skipped),
	)

	return &MonthBatch{Year: year, Month: month, Records: recs, Stats: stats}, nil
}
