package export

import (
	"fmt"
	"strings"

	"github.com/flowmaps/flowmaps-data/internal/domain"
	"github.com/flowmaps/flowmaps-data/internal/domain/document"
)

// Format is an output file format tag.
type Format string

// Supported formats.
const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

// Formats lists the accepted tags in help order.
var Formats = []Format{FormatCSV, FormatJSON, FormatParquet}

// ParseFormat validates a format tag. Matching is case-insensitive.
func ParseFormat(tag string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(tag)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	supported := make([]string, len(Formats))
	for i, known := range Formats {
		supported[i] = string(known)
	}
	return "", &domain.UnsupportedFormatError{Format: tag, Supported: supported}
}

func (f Format) String() string { return string(f) }

// Table is a row set with a fixed column order: the union of row keys in
// first-appearance order.
type Table struct {
	Columns []string
	Rows    []*document.Document
}

// NewTable derives the column order from rows.
func NewTable(rows []*document.Document) *Table {
	seen := make(map[string]struct{})
	var cols []string
	for _, r := range rows {
		for _, k := range r.Keys() {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			cols = append(cols, k)
		}
	}
	return &Table{Columns: cols, Rows: rows}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// column returns the values of one column, null where a row lacks it.
func (t *Table) column(name string) []document.Value {
	out := make([]document.Value, len(t.Rows))
	for i, r := range t.Rows {
		if v, ok := r.Get(name); ok {
			out[i] = v
		}
	}
	return out
}

func (t *Table) String() string {
	return fmt.Sprintf("table(%d rows x %d columns)", len(t.Rows), len(t.Columns))
}
