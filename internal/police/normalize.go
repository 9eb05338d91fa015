package police

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/stopsearch-cli/internal/model"
)

// Field paths reported in a NormalizeError.
const (
	pathLocation       = "location"
	pathLatitude       = "location.latitude"
	pathLongitude      = "location.longitude"
	pathStreetID       = "location.street.id"
	pathDatetime       = "datetime"
	pathInvolvedPerson = "involved_person"
	pathOutcome        = "outcome"
)

// FieldIssue describes one unusable field of a raw record.
type FieldIssue struct {
	Path   string
	Reason string
}

// NormalizeError lists every problem found in a raw record.
type NormalizeError struct {
	Issues []FieldIssue
}

func (e *NormalizeError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.Path + ": " + is.Reason
	}
	return "police: normalize record: " + strings.Join(parts, "; ")
}

// MissingLocation reports whether any issue concerns the coordinates or the
// location object itself.
func (e *NormalizeError) MissingLocation() bool {
	for _, is := range e.Issues {
		switch is.Path {
		case pathLocation, pathLatitude, pathLongitude:
			return true
		}
	}
	return false
}

func (e *NormalizeError) add(path, reason string) {
	e.Issues = append(e.Issues, FieldIssue{Path: path, Reason: reason})
}

// Normalize flattens one raw record. It checks every field before
// returning so the error lists all problems, not only the first.
func Normalize(raw RawRecord) (model.Record, error) {
	var rec model.Record
	nerr := &NormalizeError{}

	rec.AgeRange = optional(raw.AgeRange)
	rec.Gender = optional(raw.Gender)
	rec.SelfDefinedEthnicity = optional(raw.SelfDefinedEthnicity)
	rec.OfficerEthnicity = optional(raw.OfficerDefinedEthnicity)
	rec.Legislation = optional(raw.Legislation)
	rec.ObjectOfSearch = optional(raw.ObjectOfSearch)
	rec.Type = optional(raw.Type)

	outcome, err := parseOutcome(raw.Outcome, raw.OutcomeObject)
	if err != nil {
		nerr.add(pathOutcome, err.Error())
	}
	rec.Outcome = outcome

	if raw.InvolvedPerson == nil {
		nerr.add(pathInvolvedPerson, "missing")
	} else {
		rec.InvolvedPerson = *raw.InvolvedPerson
	}

	switch {
	case raw.Datetime == nil || strings.TrimSpace(*raw.Datetime) == "":
		nerr.add(pathDatetime, "missing")
	default:
		ts := strings.TrimSpace(*raw.Datetime)
		if _, err := parseTimestamp(ts); err != nil {
			nerr.add(pathDatetime, "not ISO-8601: "+ts)
		} else {
			rec.Date = ts
		}
	}

	if raw.Location == nil {
		nerr.add(pathLocation, "missing")
	} else {
		lat, reason := parseCoord(raw.Location.Latitude)
		if reason != "" {
			nerr.add(pathLatitude, reason)
		}
		lng, reason := parseCoord(raw.Location.Longitude)
		if reason != "" {
			nerr.add(pathLongitude, reason)
		}
		rec.Latitude, rec.Longitude = lat, lng

		if raw.Location.Street == nil {
			nerr.add(pathStreetID, "missing")
		} else {
			id, reason := parseStreetID(raw.Location.Street.ID)
			if reason != "" {
				nerr.add(pathStreetID, reason)
			}
			rec.StreetID = id
			rec.StreetName = optional(raw.Location.Street.Name)
		}
	}

	if len(nerr.Issues) > 0 {
		return model.Record{}, nerr
	}
	return rec, nil
}

// NormalizeStats counts the outcome of normalizing one batch.
type NormalizeStats struct {
	Total           int `json:"total" yaml:"total"`
	Normalized      int `json:"normalized" yaml:"normalized"`
	Skipped         int `json:"skipped" yaml:"skipped"`
	MissingLocation int `json:"missing_location" yaml:"missing_location"`
}

// Add accumulates o into s.
func (s *NormalizeStats) Add(o NormalizeStats) {
	s.Total += o.Total
	s.Normalized += o.Normalized
	s.Skipped += o.Skipped
	s.MissingLocation += o.MissingLocation
}

// NormalizeAll normalizes a batch in order. Records that fail are logged at
// debug level and skipped; MissingLocation is a subset of Skipped.
func NormalizeAll(raws []RawRecord) (model.Table, NormalizeStats) {
	stats := NormalizeStats{Total: len(raws)}
	out := make(model.Table, 0, len(raws))
	for i, raw := range raws {
		rec, err := Normalize(raw)
		if err != nil {
			stats.Skipped++
			if ne, ok := err.(*NormalizeError); ok && ne.MissingLocation() {
				stats.MissingLocation++
			}
			zap.L().Debug("police: skipping record", zap.Int("index", i), zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	stats.Normalized = len(out)
	return out, stats
}

func optional(s *string) model.Optional {
	if s == nil {
		return model.None()
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return model.None()
	}
	return model.Some(v)
}

// parseOutcome accepts a string, null, or the literal false older
// responses use for "no further action recorded".
func parseOutcome(raw json.RawMessage, obj *RawOutcome) (model.Optional, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if bytes.Equal(raw, []byte("false")) {
			return model.None(), nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return model.None(), err
		}
		if o := optional(&s); o.Valid {
			return o, nil
		}
	}
	if obj != nil {
		return optional(obj.Name), nil
	}
	return model.None(), nil
}

func parseCoord(raw json.RawMessage) (float64, string) {
	s, ok := scalar(raw)
	if !ok {
		return 0, "missing"
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, "not a number: " + s
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, "not finite: " + s
	}
	return f, ""
}

func parseStreetID(raw json.RawMessage) (int64, string) {
	s, ok := scalar(raw)
	if !ok {
		return 0, "missing"
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, "not an integer: " + s
	}
	return id, ""
}

// scalar returns the text of a JSON string or number.
func scalar(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	return string(raw), true
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, error) {
	var err error
	for _, layout := range timestampLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
