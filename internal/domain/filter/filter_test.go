package filter

import (
	"testing"

	"github.com/flowmaps/flowmaps-data/internal/domain/document"
)

// --- Range tests ---

func TestRange_Helpers(t *testing.T) {
	lo, hi := document.String("2020-10-10"), document.String("2020-10-16")

	if r := AtLeast(lo); !r.HasLower() || r.HasUpper() {
		t.Error("AtLeast must have only a lower bound")
	}
	if r := AtMost(hi); r.HasLower() || !r.HasUpper() || r.LTE() == nil {
		t.Error("AtMost must have only an inclusive upper bound")
	}
	if r := Below(hi); r.LT() == nil || r.LTE() != nil {
		t.Error("Below must have an exclusive upper bound")
	}
	if r := HalfOpen(lo, hi); r.GTE() == nil || r.LT() == nil {
		t.Error("HalfOpen must be [lo, hi)")
	}
	if r := Above(lo); r.GT() == nil || r.GTE() != nil || r.HasUpper() {
		t.Error("Above must have only an exclusive lower bound")
	}
	if r := Between(lo, hi); r.GTE() == nil || r.LTE() == nil {
		t.Error("Between must be [lo, hi]")
	}
}

// --- Condition tests ---

func TestFilter_GetConditionKinds(t *testing.T) {
	f := New().
		Match("ev", "ES.covid_cpro").
		Range("date", AtLeast(document.String("2020-10-10"))).
		Sub("provenance", New().Match("layer", "cnig_provincias"))

	tests := []struct {
		key       string
		wantRange bool
		wantLit   string
	}{
		{"ev", false, "ES.covid_cpro"},
		{"date", true, ""},
		{"provenance", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			c, ok := f.Get(tt.key)
			if !ok {
				t.Fatalf("Get(%q) missing", tt.key)
			}
			if c.Key() != tt.key {
				t.Errorf("Key() = %q", c.Key())
			}
			if c.IsRange() != tt.wantRange {
				t.Errorf("IsRange() = %v, want %v", c.IsRange(), tt.wantRange)
			}
			if s, _ := c.Literal().AsString(); s != tt.wantLit {
				t.Errorf("Literal() = %q, want %q", s, tt.wantLit)
			}
		})
	}
	if _, ok := f.Get("layer"); ok {
		t.Error("nested key must not be visible at the top level")
	}
}

func TestFilter_IgnoresEmptyKeys(t *testing.T) {
	f := New().
		Match("", "x").
		Range("", AtLeast(document.Int(0))).
		Sub("", New().Match("a", "b")).
		Sub("ev", nil)
	if !f.IsEmpty() {
		t.Errorf("filter = %s, want empty", f.JSON())
	}
}

// --- Filter tests ---

func TestFilter_JSONKeepsInsertionOrder(t *testing.T) {
	f := New().
		Match("source_layer", "cnig_provincias").
		Match("target_layer", "cnig_provincias").
		Range("date", Between(document.String("2020-10-10"), document.String("2020-10-16"))).
		Match("source", "28")

	want := `{"source_layer":"cnig_provincias","target_layer":"cnig_provincias",` +
		`"date":{"$gte":"2020-10-10","$lte":"2020-10-16"},"source":"28"}`
	if got := f.JSON(); got != want {
		t.Errorf("JSON() =\n%s\nwant\n%s", got, want)
	}
}

func TestFilter_ReplaceKeepsPosition(t *testing.T) {
	f := New().Match("a", "1").Match("b", "2").Match("a", "3")
	if got := f.JSON(); got != `{"a":"3","b":"2"}` {
		t.Errorf("JSON() = %s", got)
	}
	if f.Len() != 2 {
		t.Errorf("Len() = %d, want 2", f.Len())
	}
}

func TestFilter_NestedAndNumeric(t *testing.T) {
	f := New().
		Match("collection", "layers.data.consolidated").
		Match("field", "date").
		Sub("query", New().Match("type", "covid19")).
		Range("numEntries", Above(document.Int(0)))

	want := `{"collection":"layers.data.consolidated","field":"date","query":{"type":"covid19"},"numEntries":{"$gt":0}}`
	if got := f.JSON(); got != want {
		t.Errorf("JSON() = %s", got)
	}
}

func TestFilter_EmptyAndNil(t *testing.T) {
	var f *Filter
	if !f.IsEmpty() {
		t.Error("nil filter not empty")
	}
	if got := f.JSON(); got != "{}" {
		t.Errorf("nil JSON() = %s", got)
	}
	if got := New().Match("", "x").JSON(); got != "{}" {
		t.Errorf("empty-key JSON() = %s", got)
	}
}

func TestFilter_CloneIsIndependent(t *testing.T) {
	f := New().Match("a", "1")
	c := f.Clone()
	c.Match("b", "2")
	if f.Len() != 1 || c.Len() != 2 {
		t.Errorf("Len() = %d/%d, want 1/2", f.Len(), c.Len())
	}
}
