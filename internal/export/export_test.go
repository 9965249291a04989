package export

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/flowmaps/flowmaps-data/internal/domain"
	"github.com/flowmaps/flowmaps-data/internal/domain/document"
)

func sampleRows() []*document.Document {
	return []*document.Document{
		document.Of("id", "01", "population", 10000, "ratio", 0.5, "flag", true),
		document.Of("id", "02", "population", 0, "ratio", math.Inf(1), "extra", document.Of("a", 1)),
		document.Of("id", "03", "ratio", math.NaN(), "flag", false),
	}
}

func TestParseFormat(t *testing.T) {
	for _, tag := range []string{"csv", "json", "parquet", "CSV", " json "} {
		if _, err := ParseFormat(tag); err != nil {
			t.Errorf("ParseFormat(%q): %v", tag, err)
		}
	}

	_, err := ParseFormat("xlsx")
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
	if !strings.Contains(err.Error(), "csv, json, parquet") {
		t.Errorf("err = %q", err)
	}
}

func TestNewTable_ColumnOrder(t *testing.T) {
	tbl := NewTable(sampleRows())
	if got := strings.Join(tbl.Columns, ","); got != "id,population,ratio,flag,extra" {
		t.Errorf("columns = %s", got)
	}
	if tbl.Len() != 3 {
		t.Errorf("Len() = %d", tbl.Len())
	}
}

func TestWrite_CSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, NewTable(sampleRows()), FormatCSV); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := "id,population,ratio,flag,extra\n" +
		"01,10000,0.5,true,\n" +
		`02,0,inf,,"{""a"":1}"` + "\n" +
		"03,,,false,\n"
	if buf.String() != want {
		t.Errorf("csv =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestWrite_CSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, NewTable(nil), FormatCSV); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("csv = %q, want empty", buf.String())
	}
}

func TestWrite_JSONRoundTrip(t *testing.T) {
	rows := sampleRows()
	var buf bytes.Buffer
	if err := Write(&buf, NewTable(rows), FormatJSON); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "[\n  {\n    \"id\": \"01\",") {
		t.Errorf("json not 2-space indented:\n%s", buf.String())
	}

	back, err := document.Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	arr, ok := back.AsArray()
	if !ok || len(arr) != len(rows) {
		t.Fatalf("decoded %s with %d rows", back.Kind(), len(arr))
	}
	for i, v := range arr {
		d, _ := v.AsObject()
		if !d.Equal(rows[i]) {
			t.Errorf("row %d = %s, want %s", i, d, rows[i])
		}
	}
}

func TestWrite_JSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, NewTable(nil), FormatJSON); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.String() != "[]" {
		t.Errorf("json = %q, want []", buf.String())
	}
}

func TestWrite_Parquet(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, NewTable(sampleRows()), FormatParquet); err != nil {
		t.Fatalf("Write: %v", err)
	}

	pf, err := parquet.OpenFile(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if pf.NumRows() != 3 {
		t.Errorf("NumRows = %d, want 3", pf.NumRows())
	}

	var names []string
	for _, path := range pf.Schema().Columns() {
		names = append(names, strings.Join(path, "."))
	}
	if got := strings.Join(names, ","); got != "id,population,ratio,flag,extra" {
		t.Errorf("parquet columns = %s", got)
	}

	var rows []parquet.Row
	for _, rg := range pf.RowGroups() {
		r := parquet.NewRowGroupReader(rg)
		buf := make([]parquet.Row, 10)
		for {
			n, err := r.ReadRows(buf)
			for i := 0; i < n; i++ {
				rows = append(rows, buf[i].Clone())
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				t.Fatalf("ReadRows: %v", err)
			}
		}
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}

	cell := func(row parquet.Row, col int) parquet.Value {
		for _, v := range row {
			if v.Column() == col {
				return v
			}
		}
		t.Fatalf("column %d missing", col)
		return parquet.Value{}
	}
	if got := cell(rows[0], 0).String(); got != "01" {
		t.Errorf("id = %q", got)
	}
	if got := cell(rows[0], 1).Int64(); got != 10000 {
		t.Errorf("population = %d", got)
	}
	if got := cell(rows[0], 2).Double(); got != 0.5 {
		t.Errorf("ratio = %v", got)
	}
	if !cell(rows[0], 3).Boolean() {
		t.Error("flag = false")
	}
	if !cell(rows[2], 1).IsNull() {
		t.Error("missing population not null")
	}
	if !math.IsInf(cell(rows[1], 2).Double(), 1) {
		t.Errorf("ratio row 2 = %v, want +Inf", cell(rows[1], 2).Double())
	}
	if got := cell(rows[1], 4).String(); got != `{"a":1}` {
		t.Errorf("extra = %q", got)
	}
}

// readParquet returns the column paths and rows of an in-memory file.
func readParquet(t *testing.T, data []byte) ([]string, []parquet.Row) {
	t.Helper()
	pf, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	var names []string
	for _, path := range pf.Schema().Columns() {
		names = append(names, strings.Join(path, "."))
	}
	var rows []parquet.Row
	for _, rg := range pf.RowGroups() {
		r := parquet.NewRowGroupReader(rg)
		buf := make([]parquet.Row, 10)
		for {
			n, err := r.ReadRows(buf)
			for i := 0; i < n; i++ {
				rows = append(rows, buf[i].Clone())
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				t.Fatalf("ReadRows: %v", err)
			}
		}
	}
	return names, rows
}

func TestWrite_ParquetLargeIntegers(t *testing.T) {
	rows := []*document.Document{
		document.Of("n", 1e19),
		document.Of("n", 1),
	}
	var buf bytes.Buffer
	if err := Write(&buf, NewTable(rows), FormatParquet); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_, got := readParquet(t, buf.Bytes())
	if len(got) != 2 {
		t.Fatalf("rows = %d, want 2", len(got))
	}
	if v := got[0][0]; v.Kind() != parquet.Double || v.Double() != 1e19 {
		t.Errorf("row 0 = %v (%v), want double 1e19", v, v.Kind())
	}
	if v := got[1][0].Double(); v != 1 {
		t.Errorf("row 1 = %v, want 1", v)
	}
}

func TestWrite_ParquetColumnNameCollision(t *testing.T) {
	rows := []*document.Document{document.Of("a,b", "x", "a_b", "y")}
	var buf bytes.Buffer
	if err := Write(&buf, NewTable(rows), FormatParquet); err != nil {
		t.Fatalf("Write: %v", err)
	}
	names, got := readParquet(t, buf.Bytes())
	if strings.Join(names, ",") != "a_b_2,a_b" {
		t.Errorf("columns = %v", names)
	}
	if len(got) != 1 || got[0][0].String() != "x" || got[0][1].String() != "y" {
		t.Errorf("rows = %v", got)
	}
}

func TestColumnNames(t *testing.T) {
	tests := []struct {
		cols []string
		want string
	}{
		{[]string{"id", "date"}, "id,date"},
		{[]string{"a,b"}, "a_b"},
		{[]string{"a,b", "a_b"}, "a_b_2,a_b"},
		{[]string{"a_b", "a,b", "a,,b", "a_b_2"}, "a_b,a_b_3,a__b,a_b_2"},
	}
	for _, tt := range tests {
		if got := strings.Join(columnNames(tt.cols), ","); got != tt.want {
			t.Errorf("columnNames(%q) = %s, want %s", tt.cols, got, tt.want)
		}
	}
}

func TestInferColumnType(t *testing.T) {
	tests := []struct {
		name string
		vals []document.Value
		want columnType
	}{
		{"ints", []document.Value{document.Int(1), document.Null(), document.Int(2)}, columnInt64},
		{"floats", []document.Value{document.Int(1), document.Number(1.5)}, columnDouble},
		{"inf forces double", []document.Value{document.Int(1), document.Number(math.Inf(1))}, columnDouble},
		{"beyond int64 forces double", []document.Value{document.Number(1e19), document.Int(1)}, columnDouble},
		{"beyond 2^53 forces double", []document.Value{document.Number(1 << 54)}, columnDouble},
		{"2^53 stays int", []document.Value{document.Number(-(1 << 53)), document.Number(1 << 53)}, columnInt64},
		{"bools", []document.Value{document.Bool(true)}, columnBool},
		{"strings", []document.Value{document.String("a")}, columnString},
		{"mixed", []document.Value{document.String("a"), document.Int(1)}, columnString},
		{"bool and number", []document.Value{document.Bool(true), document.Int(1)}, columnString},
		{"all null", []document.Value{document.Null()}, columnString},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inferColumnType(tt.vals); got != tt.want {
				t.Errorf("inferColumnType = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	if err := WriteFile(path, NewTable(sampleRows()), FormatCSV); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.HasPrefix(string(data), "id,population") {
		t.Errorf("file = %q", data)
	}
}

func TestWriteFile_UnsupportedFormatWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	err := WriteFile(path, NewTable(sampleRows()), Format("xlsx"))
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("err = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file exists after unsupported format: %v", err)
	}
}

func TestWriteFile_RemovesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.parquet")
	err := WriteFile(path, NewTable(nil), FormatParquet)
	if !errors.Is(err, ErrNoColumns) {
		t.Fatalf("err = %v, want ErrNoColumns", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("partial file left behind: %v", err)
	}
}

func TestWriteJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layer.geojson")
	fc := document.Of("type", "FeatureCollection", "features", []document.Value{})
	if err := WriteJSONFile(path, document.Object(fc)); err != nil {
		t.Fatalf("WriteJSONFile: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "{\n  \"type\": \"FeatureCollection\",\n  \"features\": []\n}" {
		t.Errorf("geojson = %q", data)
	}
}
