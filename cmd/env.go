package main

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/stopsearch-cli/internal/config"
	"github.com/sells-group/stopsearch-cli/internal/db"
	"github.com/sells-group/stopsearch-cli/internal/export"
	"github.com/sells-group/stopsearch-cli/internal/fetcher"
	"github.com/sells-group/stopsearch-cli/internal/resilience"
)

// newFetcher builds the shared HTTP fetcher from the fetch settings. The
// configured rate replaces the default limit for the records API host.
func newFetcher(c *config.Config) *fetcher.HTTPFetcher {
	limiters := fetcher.DefaultRateLimiters()
	if c.Fetch.RatePerSec > 0 {
		if u, err := url.Parse(c.Police.BaseURL); err == nil && u.Host != "" {
			burst := c.Fetch.Burst
			if burst <= 0 {
				burst = int(c.Fetch.RatePerSec)
			}
			limiters[u.Host] = rate.NewLimiter(rate.Limit(c.Fetch.RatePerSec), max(burst, 1))
		}
	}

	retry := resilience.FromSettings(c.Fetch.MaxRetries, c.Fetch.InitialBackoffMs)
	retry.OnRetry = resilience.RetryLogger("http", "download")

	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    c.Fetch.UserAgent,
		Timeout:      fetchTimeout(c),
		Retry:        retry,
		RateLimiters: limiters,
	})
}

func fetchTimeout(c *config.Config) time.Duration {
	if c.Fetch.TimeoutSecs <= 0 {
		return 0
	}
	return time.Duration(c.Fetch.TimeoutSecs) * time.Second
}

// openSinks builds the file sinks for formats and, when withPostGIS is set,
// a PostGIS sink. The returned func releases the database pool.
func openSinks(ctx context.Context, c *config.Config, dir string, formats []string, withPostGIS bool) ([]export.Sink, func(), error) {
	sinks, err := export.FileSinks(dir, formats)
	if err != nil {
		return nil, nil, err
	}
	for _, f := range formats {
		if strings.EqualFold(strings.TrimSpace(f), export.FormatPostGIS) {
			withPostGIS = true
		}
	}
	if !withPostGIS {
		return sinks, func() {}, nil
	}

	if err := c.Validate("postgis"); err != nil {
		return nil, nil, err
	}
	pool, err := db.Open(ctx, c.Export.PostGISURL, c.Export.Pool)
	if err != nil {
		return nil, nil, err
	}
	sinks = append(sinks, export.NewPostGISSink(pool, c.Export.PostGISSchema))
	return sinks, pool.Close, nil
}

// parseMonths accepts "1-12", "3", "1,4,7" or a mix such as "1-3,12".
func parseMonths(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	seen := make(map[int]bool)
	var out []int
	add := func(m int) error {
		if m < 1 || m > 12 {
			return eris.Errorf("month %d out of range 1..12", m)
		}
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
		return nil
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")
		a, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, eris.Errorf("invalid month %q", part)
		}
		if !isRange {
			if err := add(a); err != nil {
				return nil, err
			}
			continue
		}
		b, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil || b < a {
			return nil, eris.Errorf("invalid month range %q", part)
		}
		for m := a; m <= b; m++ {
			if err := add(m); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// parseInts parses a comma-separated list such as "5,10".
func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, eris.Errorf("invalid number %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
