// Package join merges documents from independent fetches on shared keys and
// derives per-row metrics.
package join

import (
	"math"
	"strings"

	"github.com/flowmaps/flowmaps-data/internal/domain/document"
)

// Per100k is the normalization factor for incidence rates.
const Per100k = 100000

// MergeFunc copies fields from a matched right row into the output row.
type MergeFunc func(out, right *document.Document)

// Inner joins left to right on leftKeys[i] == rightKeys[i]. Every matching
// pair yields one row: a clone of the left row with merge applied. Rows
// missing any key field, or without a match, are dropped. Output follows
// left order, then right order within a key.
func Inner(left, right []*document.Document, leftKeys, rightKeys []string, merge MergeFunc) []*document.Document {
	index := make(map[string][]*document.Document, len(right))
	for _, r := range right {
		k, ok := compositeKey(r, rightKeys)
		if !ok {
			continue
		}
		index[k] = append(index[k], r)
	}

	out := make([]*document.Document, 0, len(left))
	for _, l := range left {
		k, ok := compositeKey(l, leftKeys)
		if !ok {
			continue
		}
		for _, r := range index[k] {
			row := l.Clone()
			merge(row, r)
			out = append(out, row)
		}
	}
	return out
}

// Fields returns a MergeFunc copying the named fields when present.
func Fields(names ...string) MergeFunc {
	return func(out, right *document.Document) {
		for _, n := range names {
			if v, ok := right.Get(n); ok {
				out.Set(n, v)
			}
		}
	}
}

// AllExcept returns a MergeFunc copying every right field not in skip and
// not already on the output row.
func AllExcept(skip ...string) MergeFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, s := range skip {
		skipped[s] = struct{}{}
	}
	return func(out, right *document.Document) {
		for _, k := range right.Keys() {
			if _, ok := skipped[k]; ok || out.Has(k) {
				continue
			}
			v, _ := right.Get(k)
			out.Set(k, v)
		}
	}
}

// Drop removes fields from every document in place.
func Drop(docs []*document.Document, fields ...string) {
	for _, d := range docs {
		for _, f := range fields {
			d.Delete(f)
		}
	}
}

func compositeKey(d *document.Document, fields []string) (string, bool) {
	parts := make([]string, len(fields))
	for i, f := range fields {
		v, ok := d.Get(f)
		if !ok || v.IsNull() {
			return "", false
		}
		parts[i] = v.Key()
	}
	return strings.Join(parts, "\x00"), true
}

// derive computes scale * nums... / den. A missing operand yields NaN; a
// zero denominator yields ±Inf or NaN as float division does.
func derive(d *document.Document, scale float64, den string, nums ...string) document.Value {
	p, ok := d.Number(den)
	if !ok {
		return document.Number(math.NaN())
	}
	acc := scale
	for _, n := range nums {
		x, ok := d.Number(n)
		if !ok {
			return document.Number(math.NaN())
		}
		acc *= x
	}
	return document.Number(acc / p)
}
