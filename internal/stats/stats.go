// Package stats computes the descriptive ratios reported for each subset.
package stats

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/stopsearch-cli/internal/census"
)

// ErrZeroDenominator is returned instead of NaN or Inf.
var ErrZeroDenominator = eris.New("stats: zero denominator")

// Fraction returns part/whole in [0,1].
func Fraction(part, whole int) (float64, error) {
	if whole == 0 {
		return 0, ErrZeroDenominator
	}
	if part < 0 || whole < 0 || part > whole {
		return 0, eris.Errorf("stats: part %d not within whole %d", part, whole)
	}
	return float64(part) / float64(whole), nil
}

// Percentage returns part/whole in [0,100].
func Percentage(part, whole int) (float64, error) {
	f, err := Fraction(part, whole)
	if err != nil {
		return 0, err
	}
	return f * 100, nil
}

// RatePer1000 returns events per 1,000 residents. Unlike Percentage the
// count may exceed the population.
func RatePer1000(events, population int) (float64, error) {
	if population == 0 {
		return 0, ErrZeroDenominator
	}
	if events < 0 || population < 0 {
		return 0, eris.Errorf("stats: negative rate inputs %d/%d", events, population)
	}
	return float64(events) * 1000 / float64(population), nil
}

// Ratio divides two rates.
func Ratio(a, b float64) (float64, error) {
	if b == 0 {
		return 0, ErrZeroDenominator
	}
	return a / b, nil
}

// Count is a named subset size.
type Count struct {
	Name string
	N    int
}

// Summary describes one subset.
type Summary struct {
	Name             string   `yaml:"name" json:"name"`
	Count            int      `yaml:"count" json:"count"`
	Percent          float64  `yaml:"percent_of_searches" json:"percent_of_searches"`
	Population       *int     `yaml:"population,omitempty" json:"population,omitempty"`
	RatePer1000      *float64 `yaml:"rate_per_1000,omitempty" json:"rate_per_1000,omitempty"`
	RatioToReference *float64 `yaml:"ratio_to_reference,omitempty" json:"ratio_to_reference,omitempty"`
}

// Summarize computes each subset's share of total searches and, where the
// census has the subset's group, its rate per 1,000 residents and the ratio
// of that rate to the reference subset's rate. total must be non-zero.
func Summarize(total int, counts []Count, pop census.Population, reference string) ([]Summary, error) {
	var refRate *float64
	for _, c := range counts {
		if census.Key(c.Name) != census.Key(reference) {
			continue
		}
		if n, ok := pop.Get(c.Name); ok && n > 0 {
			r, err := RatePer1000(c.N, n)
			if err != nil {
				return nil, err
			}
			refRate = &r
		}
	}

	out := make([]Summary, 0, len(counts))
	for _, c := range counts {
		pct, err := Percentage(c.N, total)
		if err != nil {
			return nil, eris.Wrapf(err, "stats: subset %s", c.Name)
		}
		s := Summary{Name: c.Name, Count: c.N, Percent: pct}

		if n, ok := pop.Get(c.Name); ok && n > 0 {
			s.Population = &n
			rate, err := RatePer1000(c.N, n)
			if err != nil {
				return nil, err
			}
			s.RatePer1000 = &rate
			if refRate != nil && *refRate > 0 {
				ratio, err := Ratio(rate, *refRate)
				if err != nil {
					return nil, err
				}
				s.RatioToReference = &ratio
			}
		}
		out = append(out, s)
	}
	return out, nil
}
