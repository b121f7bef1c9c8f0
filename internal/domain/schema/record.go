package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Record is one athlete's measurements within a session. It always holds
// exactly the catalog fields; a nil value means "not yet measured".
type Record struct {
	values []*float64
}

// NewRecord returns a record with every catalog field unmeasured.
func NewRecord() Record {
	return Record{values: make([]*float64, len(idx.fields))}
}

// Float returns a pointer to v, for building patches.
func Float(v float64) *float64 { return &v }

func (r *Record) ensure() {
	if len(r.values) != len(idx.fields) {
		vals := make([]*float64, len(idx.fields))
		copy(vals, r.values)
		r.values = vals
	}
}

// Value returns the measured value of field.
func (r Record) Value(field string) (float64, bool) {
	i, ok := idx.pos[field]
	if !ok || i >= len(r.values) || r.values[i] == nil {
		return 0, false
	}
	return *r.values[i], true
}

// Get returns a copy of the value of field, nil when unmeasured.
func (r Record) Get(field string) (*float64, error) {
	if _, ok := idx.pos[field]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	v, ok := r.Value(field)
	if !ok {
		return nil, nil
	}
	return &v, nil
}

// Set stores v under field; nil marks the field unmeasured.
func (r *Record) Set(field string, v *float64) error {
	i, ok := idx.pos[field]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	if v != nil && !finite(*v) {
		return fmt.Errorf("%w: %s", ErrInvalidValue, field)
	}
	r.ensure()
	if v == nil {
		r.values[i] = nil
		return nil
	}
	val := *v
	r.values[i] = &val
	return nil
}

// Measured counts the fields holding a value.
func (r Record) Measured() int {
	n := 0
	for _, v := range r.values {
		if v != nil {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	out := NewRecord()
	for i, v := range r.values {
		if v != nil && i < len(out.values) {
			val := *v
			out.values[i] = &val
		}
	}
	return out
}

// Values returns every field with its value (nil when unmeasured).
func (r Record) Values() map[string]*float64 {
	out := make(map[string]*float64, len(idx.fields))
	for _, f := range idx.fields {
		v, ok := r.Value(f)
		if ok {
			out[f] = Float(v)
		} else {
			out[f] = nil
		}
	}
	return out
}

// Merge returns a copy of r with the patch merged in. Fields absent from
// the patch keep their current value.
func (r Record) Merge(p Patch) (Record, error) {
	if err := p.Validate(); err != nil {
		return Record{}, err
	}
	out := r.Clone()
	for f, v := range p {
		if err := out.Set(f, v); err != nil {
			return Record{}, err
		}
	}
	return out, nil
}

// MarshalJSON writes every field in catalog order, null when unmeasured.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range idx.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		v, ok := r.Value(f)
		if !ok {
			buf.WriteString("null")
			continue
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts an object of catalog fields; missing fields are
// unmeasured and unknown fields are rejected.
func (r *Record) UnmarshalJSON(b []byte) error {
	var raw map[string]*float64
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	rec := NewRecord()
	for f, v := range raw {
		if err := rec.Set(f, v); err != nil {
			return err
		}
	}
	*r = rec
	return nil
}

// Patch is a sparse set of field updates. A nil value clears the field.
type Patch map[string]*float64

// Validate rejects empty patches, unknown fields and non-finite values.
func (p Patch) Validate() error {
	if len(p) == 0 {
		return ErrEmptyPatch
	}
	for _, f := range p.Fields() {
		if _, ok := idx.pos[f]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownField, f)
		}
		if v := p[f]; v != nil && !finite(*v) {
			return fmt.Errorf("%w: %s", ErrInvalidValue, f)
		}
	}
	return nil
}

// Fields returns the patched keys sorted.
func (p Patch) Fields() []string {
	out := make([]string, 0, len(p))
	for f := range p {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
