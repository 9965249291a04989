package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRemote signals a failed or malformed response from the remote API.
	ErrRemote = errors.New("remote error")
	// ErrMissingData signals that a required join side returned no rows.
	ErrMissingData = errors.New("missing data")
	// ErrUnsupportedFormat signals an unknown export format tag.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrInvalidArgument signals a malformed command parameter (bad date, empty id).
	ErrInvalidArgument = errors.New("invalid argument")
)

// RemoteError wraps ErrRemote with the request that failed.
type RemoteError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	b.WriteString(ErrRemote.Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.URL != "" {
		fmt.Fprintf(&b, ": GET %s", e.URL)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *RemoteError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRemote}
	}
	return []error{ErrRemote, e.Err}
}

// MissingDataError wraps ErrMissingData with the query that came back empty.
type MissingDataError struct {
	What       string // "mobility", "cases"
	Collection string
	Filter     string // JSON where clause
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("%s: no %s rows in %s for where=%s",
		ErrMissingData.Error(), e.What, e.Collection, e.Filter)
}

func (e *MissingDataError) Unwrap() error { return ErrMissingData }

// UnsupportedFormatError wraps ErrUnsupportedFormat with the rejected tag.
type UnsupportedFormatError struct {
	Format    string
	Supported []string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("%s %q: choose one from: %s",
		ErrUnsupportedFormat.Error(), e.Format, strings.Join(e.Supported, ", "))
}

func (e *UnsupportedFormatError) Unwrap() error { return ErrUnsupportedFormat }

// InvalidArgument wraps ErrInvalidArgument with the offending parameter.
func InvalidArgument(param, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidArgument, param, fmt.Sprintf(format, args...))
}
