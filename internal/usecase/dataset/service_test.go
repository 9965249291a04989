package dataset

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

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

func newService(t *testing.T, m *mockFetcher) *Service {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return New(m, query.NewBuilder(loc))
}

func TestList(t *testing.T) {
	m := &mockFetcher{all: []*document.Document{
		document.Of("keywords", document.Of("ev", "ES.covid_cpro", "evDesc", "raw cases", "layer", "cnig_provincias")),
		document.Of("keywords", document.Of("ev", "ES.other")),
	}}
	got, err := newService(t, m).List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != (Series{EV: "ES.covid_cpro", Description: "raw cases", Layer: "cnig_provincias"}) {
		t.Errorf("List = %+v", got)
	}
	if got[1].Description != "" || got[1].Layer != "" {
		t.Errorf("missing keywords = %+v", got[1])
	}
}

func TestDescribe(t *testing.T) {
	m := &mockFetcher{
		first: map[string]*document.Document{
			query.CollectionProvenance: document.Of(
				"storedAt", "2021-03-01",
				"keywords", document.Of("ev", "E", "evDesc", "raw", "layer", "L"),
				"fetched", []any{document.Of("from", "https://example.org/raw.json")},
			),
			query.CollectionLayersData: document.Of("ev", "E", "evstart", "Fri, 09 Oct 2020 22:00:00 GMT"),
		},
		distinct: []document.Value{
			document.String("Sat, 10 Oct 2020 22:00:00 GMT"),
			document.String("Fri, 09 Oct 2020 22:00:00 GMT"),
		},
	}
	sum, ok, err := newService(t, m).Describe(context.Background(), "E")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if sum.Description != "raw" || sum.Layer != "L" || sum.DownloadedAt != "2021-03-01" {
		t.Errorf("summary = %+v", sum)
	}
	if len(sum.SourceURLs) != 1 || sum.SourceURLs[0] != "https://example.org/raw.json" {
		t.Errorf("urls = %v", sum.SourceURLs)
	}
	if sum.Dates.Min != "2020-10-09T22:00:00Z" || sum.Dates.Max != "2020-10-10T22:00:00Z" {
		t.Errorf("dates = %+v", sum.Dates)
	}
	if sum.Example == nil {
		t.Error("example missing")
	}
	if got := m.queries[1].Where(); got != `{"collection":"layers.data","field":"evstart","query":{"ev":"E"}}` {
		t.Errorf("distinct where = %s", got)
	}
}

func TestDownload_TimestampRange(t *testing.T) {
	m := &mockFetcher{all: []*document.Document{document.Of("ev", "E")}}
	docs, err := newService(t, m).Download(context.Background(), "E",
		query.DateRange{Start: "2020-10-10", End: "2020-10-11"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("docs = %d", len(docs))
	}
	want := `{"ev":"E","evstart":{"$gte":"Fri, 09 Oct 2020 22:00:00 GMT","$lt":"Sun, 11 Oct 2020 22:00:00 GMT"}}`
	if got := m.queries[0].Where(); got != want {
		t.Errorf("where = %s\nwant  %s", got, want)
	}
	if m.queries[0].Collection != query.CollectionLayersData {
		t.Errorf("collection = %s", m.queries[0].Collection)
	}
}

func TestDownload_Errors(t *testing.T) {
	if _, err := newService(t, &mockFetcher{}).Download(context.Background(), "", query.DateRange{}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("empty ev err = %v", err)
	}
	m := &mockFetcher{err: &domain.RemoteError{StatusCode: 500}}
	if _, err := newService(t, m).Download(context.Background(), "E", query.DateRange{}); !errors.Is(err, domain.ErrRemote) {
		t.Errorf("remote err = %v", err)
	}
}
