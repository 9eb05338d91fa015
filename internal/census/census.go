// Package census loads pre-supplied population counts per group.
package census

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/stopsearch-cli/internal/fetcher"
)

// Population maps a normalized group key to its resident count.
type Population struct {
	counts map[string]int
	order  []string
}

// Key normalizes a group name for lookup: lower case, spaces and hyphens
// folded to underscores.
func Key(name string) string {
	k := strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(k)
}

// NewPopulation builds a Population from a map.
func NewPopulation(counts map[string]int) Population {
	p := Population{counts: make(map[string]int, len(counts))}
	for name, n := range counts {
		p.set(name, n)
	}
	return p
}

func (p *Population) set(name string, n int) {
	k := Key(name)
	if _, ok := p.counts[k]; !ok {
		p.order = append(p.order, k)
	}
	p.counts[k] = n
}

// Get returns the count for a group.
func (p Population) Get(group string) (int, bool) {
	n, ok := p.counts[Key(group)]
	return n, ok
}

// Groups returns group keys in load order.
func (p Population) Groups() []string {
	return append([]string(nil), p.order...)
}

// Len returns the number of groups.
func (p Population) Len() int { return len(p.counts) }

// Load reads a two-column group/population table from a .csv or .xlsx file.
// The header row must name a "group" column and a "population" column.
func Load(path string) (Population, error) {
	var rows [][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		r, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
		if err != nil {
			return Population{}, eris.Wrap(err, "census: load")
		}
		rows = r
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return Population{}, eris.Wrapf(err, "census: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		r, err := fetcher.ReadCSV(f, fetcher.CSVOptions{TrimSpace: true, Comment: '#'})
		if err != nil {
			return Population{}, eris.Wrap(err, "census: load")
		}
		rows = r
	default:
		return Population{}, eris.Errorf("census: unsupported file type %q", filepath.Ext(path))
	}
	return parseRows(rows)
}

func parseRows(rows [][]string) (Population, error) {
	if len(rows) == 0 {
		return Population{}, eris.New("census: empty table")
	}
	groupCol, popCol := -1, -1
	for i, h := range rows[0] {
		switch Key(h) {
		case "group", "ethnic_group", "ethnicity":
			groupCol = i
		case "population", "count", "residents":
			popCol = i
		}
	}
	if groupCol < 0 || popCol < 0 {
		return Population{}, eris.Errorf("census: header %v lacks group/population columns", rows[0])
	}

	p := Population{counts: map[string]int{}}
	for i, row := range rows[1:] {
		if groupCol >= len(row) || popCol >= len(row) {
			return Population{}, eris.Errorf("census: row %d is short", i+2)
		}
		n, err := strconv.Atoi(strings.ReplaceAll(row[popCol], ",", ""))
		if err != nil || n < 0 {
			return Population{}, eris.Errorf("census: row %d population %q is not a count", i+2, row[popCol])
		}
		p.set(row[groupCol], n)
	}
	return p, nil
}
