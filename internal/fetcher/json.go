package fetcher

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// DecodeJSONArray decodes a JSON array of T. Each element is decoded as raw
// JSON first so one malformed element is reported through onBad instead of
// failing the whole array. A body that is not an array is an error.
func DecodeJSONArray[T any](r io.Reader, onBad func(idx int, err error)) ([]T, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, eris.Wrap(err, "json: read opening token")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, eris.Errorf("json: expected '[', got %v", tok)
	}

	var out []T
	for idx := 0; dec.More(); idx++ {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, eris.Wrapf(err, "json: decode element %d", idx)
		}
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			if onBad != nil {
				onBad(idx, err)
			}
			continue
		}
		out = append(out, item)
	}

	if _, err := dec.Token(); err != nil {
		return nil, eris.Wrap(err, "json: read closing token")
	}
	return out, nil
}

// DecodeJSONObject decodes a single JSON object from a reader.
func DecodeJSONObject[T any](r io.Reader) (*T, error) {
	var obj T
	if err := json.NewDecoder(r).Decode(&obj); err != nil {
		return nil, eris.Wrap(err, "json: decode object")
	}
	return &obj, nil
}
