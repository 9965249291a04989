package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/flowmaps/flowmaps-data/internal/domain/document"
)

// ErrNoColumns is returned when a Parquet file would have an empty schema.
var ErrNoColumns = errors.New("parquet: table has no columns")

type columnType int

const (
	columnString columnType = iota
	columnBool
	columnInt64
	columnDouble
)

var columnGoTypes = map[columnType]reflect.Type{
	columnString: reflect.TypeOf((*string)(nil)),
	columnBool:   reflect.TypeOf((*bool)(nil)),
	columnInt64:  reflect.TypeOf((*int64)(nil)),
	columnDouble: reflect.TypeOf((*float64)(nil)),
}

// maxExactInt bounds the integers a float64 holds exactly.
const maxExactInt = 1 << 53

// inferColumnType picks the narrowest physical type holding every non-null
// value: bool, int64 when all numbers are integral and within ±2^53, double,
// else string. Nested and mixed columns are stored as JSON text.
func inferColumnType(vals []document.Value) columnType {
	var bools, ints, floats, other int
	for _, v := range vals {
		switch v.Kind() {
		case document.KindNull:
		case document.KindBool:
			bools++
		case document.KindNumber:
			n, _ := v.AsNumber()
			if v.IsIntegral() && math.Abs(n) <= maxExactInt {
				ints++
			} else {
				floats++
			}
		default:
			other++
		}
	}
	switch {
	case other > 0:
		return columnString
	case bools > 0 && ints+floats == 0:
		return columnBool
	case bools > 0:
		return columnString
	case floats > 0:
		return columnDouble
	case ints > 0:
		return columnInt64
	}
	return columnString
}

// writeParquet writes t as a single row group. Each column is optional and
// appears in table order.
func writeParquet(w io.Writer, t *Table) error {
	if len(t.Columns) == 0 {
		return ErrNoColumns
	}

	names := columnNames(t.Columns)
	types := make([]columnType, len(t.Columns))
	fields := make([]reflect.StructField, len(t.Columns))
	for i, name := range t.Columns {
		types[i] = inferColumnType(t.column(name))
		fields[i] = reflect.StructField{
			Name: "F" + strconv.Itoa(i),
			Type: columnGoTypes[types[i]],
			Tag:  reflect.StructTag("parquet:" + strconv.Quote(names[i]+",optional")),
		}
	}
	rowType := reflect.StructOf(fields)

	schema := parquet.SchemaOf(reflect.New(rowType).Elem().Interface())
	pw := parquet.NewWriter(w, schema)

	for _, r := range t.Rows {
		row := reflect.New(rowType).Elem()
		for i, name := range t.Columns {
			v, ok := r.Get(name)
			if !ok || v.IsNull() {
				continue
			}
			row.Field(i).Set(cellValue(types[i], v))
		}
		if err := pw.Write(row.Interface()); err != nil {
			return fmt.Errorf("write parquet row: %w", err)
		}
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

func cellValue(ct columnType, v document.Value) reflect.Value {
	switch ct {
	case columnBool:
		b, _ := v.AsBool()
		return reflect.ValueOf(&b)
	case columnInt64:
		n, _ := v.AsNumber()
		i := int64(n)
		return reflect.ValueOf(&i)
	case columnDouble:
		n, _ := v.AsNumber()
		return reflect.ValueOf(&n)
	default:
		s := v.String()
		return reflect.ValueOf(&s)
	}
}

// columnNames strips characters the struct tag syntax reserves. Names that
// collide after stripping get a numeric suffix.
func columnNames(cols []string) []string {
	taken := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		if !strings.Contains(c, ",") {
			taken[c] = struct{}{}
		}
	}
	out := make([]string, len(cols))
	for i, c := range cols {
		if !strings.Contains(c, ",") {
			out[i] = c
			continue
		}
		base := strings.ReplaceAll(c, ",", "_")
		name := base
		for n := 2; ; n++ {
			if _, dup := taken[name]; !dup {
				break
			}
			name = base + "_" + strconv.Itoa(n)
		}
		taken[name] = struct{}{}
		out[i] = name
	}
	return out
}
