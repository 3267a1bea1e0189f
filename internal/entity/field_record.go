package entity

import (
	"bytes"
	"encoding/json"
)

// Field is one extracted label/value pair.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// FieldRecord maps field labels to extracted values for a single document.
// Labels keep the order in which they were first set (rule-declaration order).
// A label whose pattern did not match is simply absent.
type FieldRecord struct {
	fields []Field
}

func NewFieldRecord(fields ...Field) FieldRecord {
	var r FieldRecord
	for _, f := range fields {
		r.Set(f.Label, f.Value)
	}
	return r
}

// Set stores value under label, replacing an earlier value in place.
func (r *FieldRecord) Set(label, value string) {
	for i := range r.fields {
		if r.fields[i].Label == label {
			r.fields[i].Value = value
			return
		}
	}
	r.fields = append(r.fields, Field{Label: label, Value: value})
}

func (r FieldRecord) Get(label string) (string, bool) {
	for _, f := range r.fields {
		if f.Label == label {
			return f.Value, true
		}
	}
	return "", false
}

func (r FieldRecord) Has(label string) bool {
	_, ok := r.Get(label)
	return ok
}

func (r FieldRecord) Len() int { return len(r.fields) }

func (r FieldRecord) Labels() []string {
	out := make([]string, len(r.fields))
	for i, f := range r.fields {
		out[i] = f.Label
	}
	return out
}

// Fields returns a copy of the ordered pairs.
func (r FieldRecord) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

func (r FieldRecord) Map() map[string]string {
	out := make(map[string]string, len(r.fields))
	for _, f := range r.fields {
		out[f.Label] = f.Value
	}
	return out
}

// MarshalJSON writes the record as a JSON object keeping label order.
func (r FieldRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Label)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
