package document

import (
	"fmt"
	"strings"
)

// Document is an ordered, schema-less record. Field order is the order in
// which fields were first set (or decoded), and is preserved on export.
type Document struct {
	keys []string
	vals map[string]Value
}

// New creates an empty document.
func New() *Document {
	return &Document{vals: make(map[string]Value)}
}

// Of builds a document from alternating key/value pairs.
// Values are converted with FromAny. Panics on an odd argument count or a
// non-string key, so it is meant for literals.
func Of(kv ...any) *Document {
	if len(kv)%2 != 0 {
		panic("document.Of: odd number of arguments")
	}
	d := New()
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("document.Of: key %v is not a string", kv[i]))
		}
		d.Set(k, FromAny(kv[i+1]))
	}
	return d
}

// Len returns the number of fields.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Keys returns the field names in order.
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Get returns the value of a field and whether it is present.
func (d *Document) Get(key string) (Value, bool) {
	if d == nil {
		return Null(), false
	}
	v, ok := d.vals[key]
	return v, ok
}

// Has reports whether the field is present.
func (d *Document) Has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

// Set assigns a field, appending it if it is new.
func (d *Document) Set(key string, v Value) {
	if d.vals == nil {
		d.vals = make(map[string]Value)
	}
	if _, ok := d.vals[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.vals[key] = v
}

// Delete removes a field if present.
func (d *Document) Delete(key string) {
	if _, ok := d.vals[key]; !ok {
		return
	}
	delete(d.vals, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Rename moves a field to a new name keeping its position.
// An existing field named to is overwritten and removed from its old position.
func (d *Document) Rename(from, to string) bool {
	v, ok := d.vals[from]
	if !ok {
		return false
	}
	if from == to {
		return true
	}
	d.Delete(to)
	for i, k := range d.keys {
		if k == from {
			d.keys[i] = to
			break
		}
	}
	delete(d.vals, from)
	d.vals[to] = v
	return true
}

// Number returns a numeric field.
func (d *Document) Number(key string) (float64, bool) {
	v, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	return v.AsNumber()
}

// Text returns a string field.
func (d *Document) Text(key string) (string, bool) {
	v, ok := d.Get(key)
	if !ok {
		return "", false
	}
	return v.AsString()
}

// Path resolves a dotted path through nested objects ("keywords.layer").
// Numeric segments index into arrays ("processedFrom.0.storedAt").
func (d *Document) Path(path string) (Value, bool) {
	cur := Object(d)
	for _, part := range strings.Split(path, ".") {
		switch cur.Kind() {
		case KindObject:
			obj, _ := cur.AsObject()
			v, ok := obj.Get(part)
			if !ok {
				return Null(), false
			}
			cur = v
		case KindArray:
			arr, _ := cur.AsArray()
			idx, ok := parseIndex(part)
			if !ok || idx >= len(arr) {
				return Null(), false
			}
			cur = arr[idx]
		default:
			return Null(), false
		}
	}
	return cur, true
}

func parseIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		keys: make([]string, len(d.keys)),
		vals: make(map[string]Value, len(d.vals)),
	}
	copy(out.keys, d.keys)
	for k, v := range d.vals {
		out.vals[k] = v.clone()
	}
	return out
}

func (v Value) clone() Value {
	switch v.kind {
	case KindObject:
		return Object(v.obj.Clone())
	case KindArray:
		arr := make([]Value, len(v.arr))
		for i, e := range v.arr {
			arr[i] = e.clone()
		}
		return Array(arr)
	default:
		return v
	}
}

// Equal reports whether both documents hold the same fields with equal values.
// Field order is not compared.
func (d *Document) Equal(o *Document) bool {
	if d.Len() != o.Len() {
		return false
	}
	for _, k := range d.Keys() {
		a, _ := d.Get(k)
		b, ok := o.Get(k)
		if !ok || !a.Equal(b) {
			return false
		}
	}
	return true
}

// String renders the document as compact JSON.
func (d *Document) String() string {
	return string(Marshal(Object(d)))
}
