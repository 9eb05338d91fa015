package police

import "encoding/json"

// RawRecord is a stop-and-search record as returned by the API. Every
// field is optional so decoding never fails on a missing key; Normalize
// decides what is required.
type RawRecord struct {
	AgeRange                *string         `json:"age_range"`
	Outcome                 json.RawMessage `json:"outcome"`
	OutcomeObject           *RawOutcome     `json:"outcome_object"`
	InvolvedPerson          *bool           `json:"involved_person"`
	SelfDefinedEthnicity    *string         `json:"self_defined_ethnicity"`
	OfficerDefinedEthnicity *string         `json:"officer_defined_ethnicity"`
	Gender                  *string         `json:"gender"`
	Legislation             *string         `json:"legislation"`
	ObjectOfSearch          *string         `json:"object_of_search"`
	Datetime                *string         `json:"datetime"`
	Type                    *string         `json:"type"`
	Location                *RawLocation    `json:"location"`
}

// RawOutcome is the structured outcome newer API responses carry.
type RawOutcome struct {
	ID   *string `json:"id"`
	Name *string `json:"name"`
}

// RawLocation holds the anonymized location of the event. Coordinates are
// numeric strings, but bare numbers are accepted too.
type RawLocation struct {
	Latitude  json.RawMessage `json:"latitude"`
	Longitude json.RawMessage `json:"longitude"`
	Street    *RawStreet      `json:"street"`
}

// RawStreet identifies the snapped street.
type RawStreet struct {
	ID   json.RawMessage `json:"id"`
	Name *string         `json:"name"`
}
