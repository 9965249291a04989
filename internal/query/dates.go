package query

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/flowmaps/flowmaps-data/internal/domain"
)

// DateLayout is the calendar-date format accepted on the command line and
// stored in the API's `date` fields.
const DateLayout = "2006-01-02"

// DefaultTimeZone is the zone calendar dates are interpreted in.
const DefaultTimeZone = "Europe/Madrid"

// DateRange is an optional pair of calendar dates. Empty strings mean unbounded.
type DateRange struct {
	Start string
	End   string
}

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool { return r.Start == "" && r.End == "" }

// Validate checks both bounds are well-formed and ordered.
func (r DateRange) Validate() error {
	var start, end time.Time
	var err error
	if r.Start != "" {
		if start, err = time.Parse(DateLayout, r.Start); err != nil {
			return domain.InvalidArgument("start-date", "want YYYY-MM-DD, got %q", r.Start)
		}
	}
	if r.End != "" {
		if end, err = time.Parse(DateLayout, r.End); err != nil {
			return domain.InvalidArgument("end-date", "want YYYY-MM-DD, got %q", r.End)
		}
	}
	if r.Start != "" && r.End != "" && end.Before(start) {
		return domain.InvalidArgument("end-date", "%s is before start-date %s", r.End, r.Start)
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD string as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, domain.InvalidArgument("date", "want YYYY-MM-DD, got %q", s)
	}
	return t, nil
}

// NextDay returns midnight of the following calendar day in t's location.
// Adding 24h would be off by an hour across DST transitions.
func NextDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

// RFC1123 renders t in UTC as e.g. "Fri, 09 Oct 2020 22:00:00 GMT".
func RFC1123(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

// ParseTimestamp parses the timestamp encodings the API uses for `evstart`:
// RFC 1123 ("GMT" suffix) and RFC 3339.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := http.ParseTime(s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// LoadLocation resolves a zone name, defaulting to DefaultTimeZone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimeZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", name, err)
	}
	return loc, nil
}
