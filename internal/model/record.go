// Package model defines the normalized Stop and Search record and the
// tables built from it.
package model

import (
	"encoding/json"
	"math"
)

// Optional is a string value that may be absent in the source record.
type Optional struct {
	Value string
	Valid bool
}

// Some returns a present Optional holding v.
func Some(v string) Optional {
	return Optional{Value: v, Valid: true}
}

// None returns the absent marker.
func None() Optional {
	return Optional{}
}

// String returns the value, or "" when absent.
func (o Optional) String() string {
	if !o.Valid {
		return ""
	}
	return o.Value
}

// MarshalJSON encodes an absent value as null.
func (o Optional) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// UnmarshalJSON decodes null as absent.
func (o *Optional) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Optional{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = Some(s)
	return nil
}

// Record is one normalized stop-and-search event.
type Record struct {
	AgeRange             Optional `json:"age_range"`
	Outcome              Optional `json:"outcome"`
	InvolvedPerson       bool     `json:"involved_person"`
	Gender               Optional `json:"gender"`
	SelfDefinedEthnicity Optional `json:"self_defined_ethnicity"`
	StreetID             int64    `json:"street_id"`
	Longitude            float64  `json:"longitude"`
	Latitude             float64  `json:"latitude"`
	Date                 string   `json:"date"`
	OfficerEthnicity     Optional `json:"officer_ethnicity"`

	// Carried through for export; not used by filters.
	StreetName     Optional `json:"street_name"`
	Legislation    Optional `json:"legislation"`
	ObjectOfSearch Optional `json:"object_of_search"`
	Type           Optional `json:"type"`
	Month          int      `json:"month"`
}

// HasLocation reports whether both coordinates are finite.
func (r Record) HasLocation() bool {
	return isFinite(r.Longitude) && isFinite(r.Latitude)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Table is an ordered sequence of records.
type Table []Record

// Len returns the number of records.
func (t Table) Len() int { return len(t) }
