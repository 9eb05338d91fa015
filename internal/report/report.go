// Package report records what a run fetched, filtered and exported, and
// writes it as YAML next to the exported layers.
package report

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/stopsearch-cli/internal/export"
	"github.com/sells-group/stopsearch-cli/internal/pipeline"
	"github.com/sells-group/stopsearch-cli/internal/police"
	"github.com/sells-group/stopsearch-cli/internal/spatial"
	"github.com/sells-group/stopsearch-cli/internal/stats"
)

// FileName is the report written into the output directory.
const FileName = "report.yaml"

// Report is the record of one run.
type Report struct {
	RunID      string    `yaml:"run_id" json:"run_id"`
	Command    string    `yaml:"command" json:"command"`
	Year       int       `yaml:"year,omitempty" json:"year,omitempty"`
	StartedAt  time.Time `yaml:"started_at" json:"started_at"`
	FinishedAt time.Time `yaml:"finished_at,omitempty" json:"finished_at,omitempty"`

	Months       []pipeline.MonthResult `yaml:"months,omitempty" json:"months,omitempty"`
	FailedMonths []int                  `yaml:"failed_months,omitempty" json:"failed_months,omitempty"`
	Totals       police.NormalizeStats  `yaml:"totals" json:"totals"`

	SpatialRows    int `yaml:"spatial_rows" json:"spatial_rows"`
	SpatialSkipped int `yaml:"spatial_skipped" json:"spatial_skipped"`

	Subsets []Subset        `yaml:"subsets,omitempty" json:"subsets,omitempty"`
	Stats   []stats.Summary `yaml:"stats,omitempty" json:"stats,omitempty"`

	Contours []int `yaml:"contours,omitempty" json:"contours,omitempty"`

	LayersWritten  int              `yaml:"layers_written" json:"layers_written"`
	ExportFailures []export.Failure `yaml:"export_failures,omitempty" json:"export_failures,omitempty"`
}

// Subset is a named subset size.
type Subset struct {
	Name  string `yaml:"name" json:"name"`
	Count int    `yaml:"count" json:"count"`
}

// New starts a report for command.
func New(command string, year int) *Report {
	return &Report{
		RunID:     uuid.New().String(),
		Command:   command,
		Year:      year,
		StartedAt: time.Now().UTC(),
	}
}

// AddYear records the per-month outcome of a FetchYear run.
func (r *Report) AddYear(y *pipeline.YearResult) {
	if y == nil {
		return
	}
	r.Months = y.Months
	r.FailedMonths = y.FailedMonths()
	r.Totals = y.Stats
}

// AddSpatial records the spatial table and subset sizes.
func (r *Report) AddSpatial(t *spatial.Table, subsets []spatial.NamedView) {
	r.SpatialRows = t.Len()
	r.SpatialSkipped = t.Skipped()
	r.Subsets = r.Subsets[:0]
	for _, s := range subsets {
		r.Subsets = append(r.Subsets, Subset{Name: s.Name, Count: s.View.Len()})
	}
}

// AddExport records an export result.
func (r *Report) AddExport(res export.Result) {
	r.LayersWritten += res.Written
	r.ExportFailures = append(r.ExportFailures, res.Failures...)
}

// Counts returns the subset sizes as stats input.
func (r *Report) Counts() []stats.Count {
	out := make([]stats.Count, len(r.Subsets))
	for i, s := range r.Subsets {
		out[i] = stats.Count{Name: s.Name, N: s.Count}
	}
	return out
}

// Finish stamps the end time.
func (r *Report) Finish() {
	r.FinishedAt = time.Now().UTC()
}

// Path returns where the report of command is stored in dir: report.yaml for
// fetch, <command>-report.yaml otherwise.
func Path(dir, command string) string {
	if command == "" || command == "fetch" {
		return filepath.Join(dir, FileName)
	}
	return filepath.Join(dir, command+"-"+FileName)
}

// Write stores the report at Path(dir, r.Command) and returns the path.
func (r *Report) Write(dir string) (string, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return "", eris.Wrap(err, "report: marshal")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "report: create %s", dir)
	}

	path := Path(dir, r.Command)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "report: write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", eris.Wrapf(err, "report: rename %s", path)
	}
	return path, nil
}

// Read loads a report written by Write.
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "report: read %s", path)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrapf(err, "report: parse %s", path)
	}
	return &r, nil
}
