package population

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flowmaps/flowmaps-data/internal/domain"
	"github.com/flowmaps/flowmaps-data/internal/domain/document"
	"github.com/flowmaps/flowmaps-data/internal/query"
)

type mockFetcher struct {
	all      []*document.Document
	first    map[string]*document.Document
	distinct []document.Value
	err      error
	queries  []query.Query
}

func (m *mockFetcher) All(_ context.Context, q query.Query) ([]*document.Document, error) {
	m.queries = append(m.queries, q)
	return m.all, m.err
}

func (m *mockFetcher) First(_ context.Context, q query.Query) (*document.Document, bool, error) {
	m.queries = append(m.queries, q)
	d, ok := m.first[q.Collection]
	return d, ok, m.err
}

func (m *mockFetcher) Distinct(_ context.Context, q query.Query) ([]document.Value, error) {
	m.queries = append(m.queries, q)
	return m.distinct, m.err
}

func newService(m *mockFetcher) *Service {
	return New(m, query.NewBuilder(time.UTC))
}

func TestLayers(t *testing.T) {
	m := &mockFetcher{distinct: []document.Value{document.String("zbs_15")}}
	layers, err := newService(m).Layers(context.Background())
	if err != nil || len(layers) != 1 || layers[0] != "zbs_15" {
		t.Errorf("layers=%v err=%v", layers, err)
	}
	m.err = &domain.RemoteError{StatusCode: 500}
	if _, err := newService(m).Layers(context.Background()); !errors.Is(err, domain.ErrRemote) {
		t.Errorf("err = %v", err)
	}
}

func TestDescribe(t *testing.T) {
	m := &mockFetcher{
		first: map[string]*document.Document{
			query.CollectionProvenance: document.Of("storedAt", "p", "numEntries", 9,
				"processedFrom", []any{document.Of("storedAt", "o", "fetched", []any{document.Of("from", "u")})}),
			query.CollectionConsolidated: document.Of("id", "01", "population", 1000),
		},
		distinct: []document.Value{document.String("2020-02-14")},
	}
	sum, ok, err := newService(m).Describe(context.Background(), "zbs_15")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if sum.Description != Description || sum.ProcessedAt != "p" || sum.DownloadedAt != "o" || sum.NumEntries != "9" {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Dates.Min != "2020-02-14" || sum.Dates.Max != "2020-02-14" {
		t.Errorf("dates = %+v", sum.Dates)
	}
	want := `{"storedIn":"layers.data.consolidated","keywords.type":"population","keywords.layer":"zbs_15"}`
	if got := m.queries[0].Where(); got != want {
		t.Errorf("provenance where = %s", got)
	}
	if got := m.queries[2].Where(); got != `{"type":"population","layer":"zbs_15"}` {
		t.Errorf("example where = %s", got)
	}
}

func TestDescribe_NotFound(t *testing.T) {
	_, ok, err := newService(&mockFetcher{}).Describe(context.Background(), "zbs_15")
	if err != nil || ok {
		t.Errorf("ok=%v err=%v", ok, err)
	}
}

func TestDownload(t *testing.T) {
	m := &mockFetcher{all: []*document.Document{document.Of("id", "01")}}
	docs, err := newService(m).Download(context.Background(), "zbs_15", query.DateRange{End: "2020-03-01"})
	if err != nil || len(docs) != 1 {
		t.Fatalf("docs=%d err=%v", len(docs), err)
	}
	if got := m.queries[0].Where(); got != `{"layer":"zbs_15","type":"population","date":{"$lte":"2020-03-01"}}` {
		t.Errorf("where = %s", got)
	}
}
