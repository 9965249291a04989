package evetest

import (
	"strings"

	"github.com/flowmaps/flowmaps-data/internal/domain/document"
)

// matches evaluates the subset of Mongo where syntax the client emits:
// literal equality and $gt/$gte/$lt/$lte on dotted paths.
func matches(d *document.Document, where *document.Document) bool {
	if where == nil {
		return true
	}
	for _, key := range where.Keys() {
		want, _ := where.Get(key)
		got, present := d.Path(key)

		ops, ok := want.AsObject()
		if ok && isOperatorDoc(ops) {
			if !matchOps(got, present, ops) {
				return false
			}
			continue
		}
		if !present || !got.Equal(want) {
			return false
		}
	}
	return true
}

func isOperatorDoc(d *document.Document) bool {
	keys := d.Keys()
	if len(keys) == 0 {
		return false
	}
	for _, k := range keys {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

func matchOps(got document.Value, present bool, ops *document.Document) bool {
	for _, op := range ops.Keys() {
		bound, _ := ops.Get(op)
		if !present {
			return false
		}
		c, ok := compare(got, bound)
		if !ok {
			return false
		}
		switch op {
		case "$gt":
			ok = c > 0
		case "$gte":
			ok = c >= 0
		case "$lt":
			ok = c < 0
		case "$lte":
			ok = c <= 0
		default:
			ok = false
		}
		if !ok {
			return false
		}
	}
	return true
}

func compare(a, b document.Value) (int, bool) {
	if x, ok := a.AsNumber(); ok {
		y, ok := b.AsNumber()
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	if x, ok := a.AsString(); ok {
		y, ok := b.AsString()
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	}
	return 0, false
}
