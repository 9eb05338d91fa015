package spatial

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/stopsearch-cli/internal/model"
)

// SubsetSpec names a subset as a conjunction of clauses.
type SubsetSpec struct {
	Name    string   `yaml:"name" mapstructure:"name"`
	Clauses []Clause `yaml:"clauses" mapstructure:"clauses"`
}

// Validate checks the subset name and clause fields.
func (s SubsetSpec) Validate() error {
	if s.Name == "" {
		return eris.New("spatial: subset name is empty")
	}
	for _, c := range s.Clauses {
		if _, err := model.ParseField(string(c.Field)); err != nil {
			return eris.Wrapf(err, "spatial: subset %s", s.Name)
		}
	}
	return nil
}

// NamedView is a subset with its name.
type NamedView struct {
	Name string
	View View
}

// Subsets evaluates each SubsetSpec against the whole table, in order.
func Subsets(t *Table, specs []SubsetSpec) ([]NamedView, error) {
	out := make([]NamedView, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if seen[s.Name] {
			return nil, eris.Errorf("spatial: duplicate subset name %q", s.Name)
		}
		seen[s.Name] = true

		v := t.All()
		for _, c := range s.Clauses {
			v = v.Where(c)
		}
		out = append(out, NamedView{Name: s.Name, View: v})
	}
	return out, nil
}

func eth(s string) Clause {
	return Clause{Field: model.FieldSelfDefinedEthnicity, Contains: s}
}

func age(s string) Clause {
	return Clause{Field: model.FieldAgeRange, Contains: s}
}

// DefaultSubsets reproduces the standard grouping: broad self-defined
// ethnicity groups, each also restricted to 18-24 year olds.
func DefaultSubsets() []SubsetSpec {
	groups := []struct{ name, label string }{
		{"black", "Black"},
		{"white", "White"},
		{"asian", "Asian"},
		{"mixed", "Mixed"},
	}
	var specs []SubsetSpec
	for _, g := range groups {
		specs = append(specs, SubsetSpec{Name: g.name, Clauses: []Clause{eth(g.label)}})
	}
	for _, g := range groups {
		specs = append(specs, SubsetSpec{Name: g.name + "_18_24", Clauses: []Clause{eth(g.label), age("18-24")}})
	}
	return specs
}
