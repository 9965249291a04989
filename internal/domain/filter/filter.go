package filter

import (
	"github.com/flowmaps/flowmaps-data/internal/domain/document"
)

// Filter is an ordered set of ANDed conditions, one per field.
// It serializes to the API's Mongo-style where clause.
type Filter struct {
	conds []Condition
}

// New creates a filter from conditions. A later condition on the same key
// replaces the earlier one.
func New(conds ...Condition) *Filter {
	f := &Filter{}
	for _, c := range conds {
		f.Add(c)
	}
	return f
}

// Add sets a condition, replacing any existing one on the same key in place.
func (f *Filter) Add(c Condition) *Filter {
	for i := range f.conds {
		if f.conds[i].key == c.key {
			f.conds[i] = c
			return f
		}
	}
	f.conds = append(f.conds, c)
	return f
}

// Eq adds an equality condition. Empty keys are ignored.
func (f *Filter) Eq(key string, v document.Value) *Filter {
	if key == "" {
		return f
	}
	return f.Add(Condition{key: key, value: v})
}

// Match adds a string equality condition.
func (f *Filter) Match(key, value string) *Filter {
	return f.Eq(key, document.String(value))
}

// Range adds a range condition.
func (f *Filter) Range(key string, r Range) *Filter {
	if key == "" {
		return f
	}
	return f.Add(Condition{key: key, rangeExpr: &r})
}

// Sub adds a nested filter as the value of key.
func (f *Filter) Sub(key string, sub *Filter) *Filter {
	if key == "" || sub == nil {
		return f
	}
	return f.Add(Condition{key: key, sub: sub})
}

// Get returns the condition on key.
func (f *Filter) Get(key string) (Condition, bool) {
	if f == nil {
		return Condition{}, false
	}
	for _, c := range f.conds {
		if c.key == key {
			return c, true
		}
	}
	return Condition{}, false
}

// Len returns the number of conditions.
func (f *Filter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.conds)
}

// IsEmpty reports whether the filter has no conditions.
func (f *Filter) IsEmpty() bool { return f.Len() == 0 }

// Clone returns an independent copy.
func (f *Filter) Clone() *Filter {
	if f == nil {
		return New()
	}
	return New(f.conds...)
}

// Value converts the filter to its wire document.
func (f *Filter) Value() document.Value {
	d := document.New()
	if f == nil {
		return document.Object(d)
	}
	for _, c := range f.conds {
		d.Set(c.key, c.wire())
	}
	return document.Object(d)
}

// JSON returns the compact where clause.
func (f *Filter) JSON() string {
	return string(document.Marshal(f.Value()))
}

func (f *Filter) String() string { return f.JSON() }

// Condition is a single clause: an equality literal, a range, or a nested filter.
type Condition struct {
	key       string
	value     document.Value
	rangeExpr *Range
	sub       *Filter
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Literal returns the equality value.
func (c Condition) Literal() document.Value { return c.value }

// Range returns the range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

func (c Condition) wire() document.Value {
	switch {
	case c.rangeExpr != nil:
		return c.rangeExpr.wire()
	case c.sub != nil:
		return c.sub.Value()
	default:
		return c.value
	}
}

// Range is a comparison predicate with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *document.Value
	gte *document.Value
	lt  *document.Value
	lte *document.Value
}

// AtLeast is the range [v, ∞).
func AtLeast(v document.Value) Range { return Range{gte: &v} }

// AtMost is the range (-∞, v].
func AtMost(v document.Value) Range { return Range{lte: &v} }

// Below is the range (-∞, v).
func Below(v document.Value) Range { return Range{lt: &v} }

// Above is the range (v, ∞).
func Above(v document.Value) Range { return Range{gt: &v} }

// Between is the inclusive range [lo, hi].
func Between(lo, hi document.Value) Range { return Range{gte: &lo, lte: &hi} }

// HalfOpen is the range [lo, hi).
func HalfOpen(lo, hi document.Value) Range { return Range{gte: &lo, lt: &hi} }

// GT returns the lower exclusive bound.
func (r Range) GT() *document.Value { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *document.Value { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *document.Value { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *document.Value { return r.lte }

// HasLower reports whether a lower bound is set.
func (r Range) HasLower() bool { return r.gt != nil || r.gte != nil }

// HasUpper reports whether an upper bound is set.
func (r Range) HasUpper() bool { return r.lt != nil || r.lte != nil }

func (r Range) wire() document.Value {
	d := document.New()
	for _, b := range []struct {
		op string
		v  *document.Value
	}{
		{"$gt", r.gt}, {"$gte", r.gte}, {"$lt", r.lt}, {"$lte", r.lte},
	} {
		if b.v != nil {
			d.Set(b.op, *b.v)
		}
	}
	return document.Object(d)
}
