package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Document is the field map stored under a document key.
// Values are JSON-compatible: strings, numbers, bools, nil, []any and nested maps.
// time.Time values are converted to sortable timestamp strings on write.
type Document map[string]any

// Snapshot is a document read from the store together with its ID.
type Snapshot struct {
	ID   string
	Data Document
}

// timestampLayout is fixed width (always 9 fractional digits) so that
// lexicographic order of the stored strings equals chronological order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTime renders t in the store's sortable timestamp format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTime parses a timestamp written by FormatTime.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// String returns a string field or "" when absent.
func (d Document) String(field string) string {
	s, _ := d[field].(string)
	return s
}

// Int returns an integer field, or 0 when the field is absent.
// Documents that predate a counter field therefore read as zero.
func (d Document) Int(field string) int64 {
	n, ok := toInt64(d[field])
	if !ok {
		return 0
	}
	return n
}

// Bool returns a bool field or false when absent.
func (d Document) Bool(field string) bool {
	b, _ := d[field].(bool)
	return b
}

// Time returns a timestamp field or the zero time when absent or malformed.
func (d Document) Time(field string) time.Time {
	s, ok := d[field].(string)
	if !ok || s == "" {
		return time.Time{}
	}
	t, err := ParseTime(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Strings returns a string-array field.
func (d Document) Strings(field string) []string {
	switch v := d[field].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Clone returns a shallow copy of d.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// encodeDocument marshals a document after normalizing its values.
func encodeDocument(d Document) ([]byte, error) {
	normalized := make(Document, len(d))
	for k, v := range d {
		normalized[k] = normalizeValue(v)
	}
	data, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return data, nil
}

// decodeDocument unmarshals a stored document. Numbers are kept as json.Number
// so that large integers survive without float rounding.
func decodeDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var d Document
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	if d == nil {
		d = Document{}
	}
	return d, nil
}

// normalizeValue converts Go values into the canonical stored representation.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return FormatTime(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		return FormatTime(*t)
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeValue(item)
		}
		return out
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint32:
		return int64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}

// toInt64 converts a stored or caller-supplied numeric value to int64.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return int64(f), true
	default:
		return 0, false
	}
}
