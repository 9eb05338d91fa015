package model

import "github.com/rotisserie/eris"

// Field names a filterable demographic column of a Record.
type Field string

const (
	FieldSelfDefinedEthnicity Field = "self_defined_ethnicity"
	FieldAgeRange             Field = "age_range"
	FieldGender               Field = "gender"
	FieldOutcome              Field = "outcome"
	FieldOfficerEthnicity     Field = "officer_ethnicity"
)

// Fields lists every filterable field in column order.
var Fields = []Field{
	FieldAgeRange,
	FieldOutcome,
	FieldGender,
	FieldSelfDefinedEthnicity,
	FieldOfficerEthnicity,
}

// ParseField validates a field name.
func ParseField(s string) (Field, error) {
	for _, f := range Fields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", eris.Errorf("model: unknown field %q", s)
}

// Get returns the record's value for f.
func (r Record) Get(f Field) Optional {
	switch f {
	case FieldSelfDefinedEthnicity:
		return r.SelfDefinedEthnicity
	case FieldAgeRange:
		return r.AgeRange
	case FieldGender:
		return r.Gender
	case FieldOutcome:
		return r.Outcome
	case FieldOfficerEthnicity:
		return r.OfficerEthnicity
	default:
		return None()
	}
}
