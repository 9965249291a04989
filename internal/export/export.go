// Package export serializes tables to CSV, JSON and Parquet files.
package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/flowmaps/flowmaps-data/internal/domain/document"
)

// Write serializes t to w in format f.
func Write(w io.Writer, t *Table, f Format) error {
	switch f {
	case FormatCSV:
		return writeCSV(w, t)
	case FormatJSON:
		return writeJSON(w, t)
	case FormatParquet:
		return writeParquet(w, t)
	default:
		_, err := ParseFormat(string(f))
		return err
	}
}

// WriteFile writes t to path. A failed write leaves no file behind.
func WriteFile(path string, t *Table, f Format) error {
	if _, err := ParseFormat(string(f)); err != nil {
		return err
	}
	return writeFile(path, func(w io.Writer) error { return Write(w, t, f) })
}

// WriteJSONFile writes a single value to path as 2-space indented JSON.
func WriteJSONFile(path string, v document.Value) error {
	return writeFile(path, func(w io.Writer) error {
		if err := document.Encode(w, v, "  "); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	})
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	fh, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := fh.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	bw := bufio.NewWriter(fh)
	if err := write(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if len(t.Columns) > 0 {
		if err := cw.Write(t.Columns); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	record := make([]string, len(t.Columns))
	for _, r := range t.Rows {
		for i, c := range t.Columns {
			v, _ := r.Get(c)
			record[i] = csvCell(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// csvCell renders missing and NaN as empty cells.
func csvCell(v document.Value) string {
	if n, ok := v.AsNumber(); ok && math.IsNaN(n) {
		return ""
	}
	return v.String()
}

func writeJSON(w io.Writer, t *Table) error {
	rows := make([]document.Value, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = document.Object(r)
	}
	if err := document.Encode(w, document.Array(rows), "  "); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}
