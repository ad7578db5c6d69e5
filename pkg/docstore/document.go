// Package docstore defines a small document-oriented record store: JSON-shaped
// documents grouped in named collections, queried through AND-ed field
// conditions with ordering, projection and offset pagination.
//
// Two backends implement Collection: docstore/memory for tests and single-node
// runs, and docstore/postgres which keeps documents in a JSONB table.
package docstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Reserved document fields.
const (
	IDField        = "_id"
	VersionField   = "__v"
	CreatedAtField = "createdAt"
)

// TimeLayout is the fixed-width UTC layout used for stored timestamps so that
// lexical order of the strings equals chronological order.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Document is a JSON-shaped record. Values are the ones encoding/json produces:
// float64, string, bool, nil, []any and map[string]any.
type Document map[string]any

// ID returns the document identifier, or "" if it has none.
func (d Document) ID() string {
	s, _ := d[IDField].(string)
	return s
}

// String returns the string value at field, or "".
func (d Document) String(field string) string {
	v, _ := Lookup(d, field)
	s, _ := v.(string)
	return s
}

// Float returns the numeric value at field.
func (d Document) Float(field string) (float64, bool) {
	v, ok := Lookup(d, field)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]any(d)).(map[string]any)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case Document:
		return Document(cloneValue(map[string]any(t)).(map[string]any))
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		return v
	}
}

// Lookup resolves a dotted field path inside doc.
func Lookup(doc Document, field string) (any, bool) {
	var cur any = map[string]any(doc)
	for _, part := range strings.Split(field, ".") {
		var m map[string]any
		switch t := cur.(type) {
		case map[string]any:
			m = t
		case Document:
			m = t
		default:
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// Normalize converts any JSON-marshalable value (typically a struct with json
// tags) into a Document with canonical JSON value types.
func Normalize(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}
	return doc, nil
}

// NormalizeValue converts a single value into its canonical JSON form.
func NormalizeValue(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, float64:
		return v, nil
	case time.Time:
		return FormatTime(t), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	return out, nil
}

// Decode copies a document into out, which must be a pointer to a struct with
// json tags.
func Decode(doc Document, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a value written by FormatTime. RFC 3339 input is accepted
// as well.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// PrepareInsert returns a copy of doc with an identifier, a creation time and
// a zero version counter filled in where they are missing.
func PrepareInsert(doc Document, now time.Time) Document {
	out := doc.Clone()
	if out == nil {
		out = Document{}
	}
	if out.ID() == "" {
		out[IDField] = uuid.New().String()
	}
	if _, ok := out[CreatedAtField]; !ok {
		out[CreatedAtField] = FormatTime(now)
	}
	out[VersionField] = float64(0)
	return out
}

// ApplyPatch merges patch into a copy of before (a top-level $set) and bumps
// the version counter. The identifier cannot be changed.
func ApplyPatch(before, patch Document) Document {
	out := before.Clone()
	for k, v := range CleanPatch(patch) {
		out[k] = cloneValue(v)
	}
	version, _ := toFloat(before[VersionField])
	out[VersionField] = version + 1
	return out
}

// CleanPatch drops the fields an update may not touch.
func CleanPatch(patch Document) Document {
	out := make(Document, len(patch))
	for k, v := range patch {
		if k == IDField || k == VersionField {
			continue
		}
		out[k] = v
	}
	return out
}

// KeyString renders a scalar value as text: strings unchanged, numbers in
// their shortest form, booleans as true/false and nil as "".
func KeyString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		if f, ok := toFloat(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		raw, _ := json.Marshal(v)
		return string(raw)
	}
}
