// Package provenance reads the metadata records the API keeps for every
// stored dataset: where it was downloaded from, when, and how many entries
// it produced.
package provenance

import (
	"sort"
	"time"

	"github.com/flowmaps/flowmaps-data/internal/domain/document"
)

// Record wraps one provenance document. A nil Record reads as empty.
type Record struct {
	doc *document.Document
}

// New wraps d.
func New(d *document.Document) Record { return Record{doc: d} }

// Wrap wraps every document in docs.
func Wrap(docs []*document.Document) []Record {
	out := make([]Record, len(docs))
	for i, d := range docs {
		out[i] = New(d)
	}
	return out
}

// Doc returns the underlying document.
func (r Record) Doc() *document.Document { return r.doc }

// IsZero reports whether r wraps nothing.
func (r Record) IsZero() bool { return r.doc == nil }

// Keyword returns keywords.<name> as text, or "" when absent.
func (r Record) Keyword(name string) string {
	return r.text("keywords." + name)
}

// StoredAt returns when the record's data was stored.
func (r Record) StoredAt() string { return r.text("storedAt") }

// NumEntries returns the entry count as printed, or "" when absent.
func (r Record) NumEntries() string { return r.text("numEntries") }

// Origin returns the first record this one was processed from.
func (r Record) Origin() Record {
	if r.doc == nil {
		return Record{}
	}
	v, ok := r.doc.Path("processedFrom.0")
	if !ok {
		return Record{}
	}
	d, _ := v.AsObject()
	return New(d)
}

// SourceURLs lists fetched[].from in order.
func (r Record) SourceURLs() []string {
	if r.doc == nil {
		return nil
	}
	v, ok := r.doc.Get("fetched")
	if !ok {
		return nil
	}
	arr, _ := v.AsArray()
	var urls []string
	for _, e := range arr {
		d, ok := e.AsObject()
		if !ok {
			continue
		}
		if u, ok := d.Get("from"); ok && !u.IsNull() {
			urls = append(urls, u.String())
		}
	}
	return urls
}

func (r Record) text(path string) string {
	if r.doc == nil {
		return ""
	}
	v, ok := r.doc.Path(path)
	if !ok {
		return ""
	}
	return v.String()
}

// Value returns the records as a single JSON value: the object itself for
// one record, an array otherwise.
func Value(records ...Record) document.Value {
	if len(records) == 1 {
		return document.Object(records[0].doc)
	}
	vs := make([]document.Value, len(records))
	for i, r := range records {
		vs[i] = document.Object(r.doc)
	}
	return document.Array(vs)
}

// Span is the min and max of a set of dates.
type Span struct {
	Min, Max string
}

// IsZero reports whether no dates were seen.
func (s Span) IsZero() bool { return s.Min == "" && s.Max == "" }

// DateSpan returns the lexical min and max of YYYY-MM-DD values.
// Non-string values are skipped.
func DateSpan(values []document.Value) Span {
	dates := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.AsString(); ok && s != "" {
			dates = append(dates, s)
		}
	}
	if len(dates) == 0 {
		return Span{}
	}
	sort.Strings(dates)
	return Span{Min: dates[0], Max: dates[len(dates)-1]}
}

// TimestampSpan returns the earliest and latest timestamps, rendered as
// RFC 3339 in UTC. Values that do not parse are skipped.
func TimestampSpan(values []document.Value, parse func(string) (time.Time, error)) Span {
	var lo, hi time.Time
	for _, v := range values {
		s, ok := v.AsString()
		if !ok {
			continue
		}
		t, err := parse(s)
		if err != nil {
			continue
		}
		if lo.IsZero() || t.Before(lo) {
			lo = t
		}
		if hi.IsZero() || t.After(hi) {
			hi = t
		}
	}
	if lo.IsZero() {
		return Span{}
	}
	return Span{Min: lo.UTC().Format(time.RFC3339), Max: hi.UTC().Format(time.RFC3339)}
}

// Summary is what a describe flow reports about one dataset.
type Summary struct {
	Description  string
	Layer        string
	SourceURLs   []string
	DownloadedAt string
	ProcessedAt  string
	NumEntries   string
	Dates        Span
	Example      *document.Document // nil when the collection is empty
	Provenance   []Record
}
