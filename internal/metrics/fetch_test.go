package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestFetch_RecordsRequestsAndDocuments(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewFetch(reg)
	if err != nil {
		t.Fatalf("NewFetch: %v", err)
	}

	m.ObserveRequest("layers", 200, 10*time.Millisecond)
	m.ObserveRequest("layers", 200, 20*time.Millisecond)
	m.ObserveRequest("layers", 502, time.Millisecond)
	m.ObserveRequest("layers", 0, time.Millisecond)
	m.AddDocuments("layers", 1500)
	m.AddDocuments("layers", 0)

	tests := []struct {
		status string
		want   float64
	}{
		{"200", 2},
		{"502", 1},
		{"error", 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(m.requests.WithLabelValues("layers", tt.status)); got != tt.want {
			t.Errorf("requests{status=%s} = %v, want %v", tt.status, got, tt.want)
		}
	}
	if got := testutil.ToFloat64(m.documents.WithLabelValues("layers")); got != 1500 {
		t.Errorf("documents = %v, want 1500", got)
	}
	if n := testutil.CollectAndCount(m.duration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestFetch_ObserveOperation(t *testing.T) {
	m, err := NewFetch(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewFetch: %v", err)
	}
	m.ObserveOperation("all", nil)
	m.ObserveOperation("all", errors.New("boom"))
	m.ObserveOperation("first", nil)

	if got := testutil.ToFloat64(m.operations.WithLabelValues("all", "ok")); got != 1 {
		t.Errorf("all/ok = %v", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("all", "error")); got != 1 {
		t.Errorf("all/error = %v", got)
	}
}

func TestNewFetch_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewFetch(reg)
	if err != nil {
		t.Fatalf("first NewFetch: %v", err)
	}
	b, err := NewFetch(reg)
	if err != nil {
		t.Fatalf("second NewFetch: %v", err)
	}
	b.AddDocuments("x", 3)
	if got := testutil.ToFloat64(a.documents.WithLabelValues("x")); got != 3 {
		t.Errorf("shared counter = %v, want 3", got)
	}
}

func TestFetch_NilIsNoop(t *testing.T) {
	var m *Fetch
	m.ObserveRequest("x", 200, time.Second)
	m.AddDocuments("x", 1)
	m.ObserveOperation("all", nil)
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewFetch(reg)
	if err != nil {
		t.Fatalf("NewFetch: %v", err)
	}
	m.AddDocuments("provenance", 7)

	path := filepath.Join(t.TempDir(), "flowmaps.prom")
	if err := WriteTextfile(reg, path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `flowmaps_fetch_documents_total{collection="provenance"} 7`) {
		t.Errorf("textfile missing counter:\n%s", data)
	}

	if err := WriteTextfile(reg, ""); err != nil {
		t.Errorf("empty path: %v", err)
	}
}
