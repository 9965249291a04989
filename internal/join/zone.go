package join

import (
	"fmt"
	"math"
	"time"

	"github.com/flowmaps/flowmaps-data/internal/domain/document"
	"github.com/flowmaps/flowmaps-data/internal/query"
)

// CappedTrips replaces the +Inf sentinel upstream uses for "3 or more trips".
const CappedTrips = 3

// NormalizeZoneMovements derives `date` (YYYY-MM-DD in loc) from the UTC
// `evstart` timestamp and remaps `viajes == +Inf` to CappedTrips, in place.
func NormalizeZoneMovements(docs []*document.Document, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	for i, d := range docs {
		if v, ok := d.Get("evstart"); ok {
			t, err := timestamp(v)
			if err != nil {
				return fmt.Errorf("zone movement %d: evstart: %w", i, err)
			}
			d.Set("date", document.String(t.In(loc).Format(query.DateLayout)))
		}
		if n, ok := d.Number("viajes"); ok && math.IsInf(n, 1) {
			d.Set("viajes", document.Int(CappedTrips))
		}
	}
	return nil
}

// timestamp decodes a string timestamp, a {"$date": millis} object, or
// epoch milliseconds.
func timestamp(v document.Value) (time.Time, error) {
	switch v.Kind() {
	case document.KindString:
		s, _ := v.AsString()
		return query.ParseTimestamp(s)
	case document.KindNumber:
		ms, _ := v.AsNumber()
		return time.UnixMilli(int64(ms)).UTC(), nil
	case document.KindObject:
		obj, _ := v.AsObject()
		if inner, ok := obj.Get("$date"); ok && inner.Kind() != document.KindObject {
			return timestamp(inner)
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %s", document.Marshal(v))
}
