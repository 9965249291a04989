package dataset

import (
	"context"
	"fmt"

	"github.com/flowmaps/flowmaps-data/internal/domain"
	"github.com/flowmaps/flowmaps-data/internal/domain/document"
	"github.com/flowmaps/flowmaps-data/internal/domain/filter"
	"github.com/flowmaps/flowmaps-data/internal/domain/provenance"
	"github.com/flowmaps/flowmaps-data/internal/query"
)

// Series is one raw event series as downloaded from its origin.
type Series struct {
	EV          string
	Description string
	Layer       string
}

// Service lists, describes and downloads raw layer data.
type Service struct {
	fetcher Fetcher
	builder *query.Builder
}

// New creates a dataset service.
func New(f Fetcher, b *query.Builder) *Service {
	return &Service{fetcher: f, builder: b}
}

// List returns every raw series.
func (s *Service) List(ctx context.Context) ([]Series, error) {
	docs, err := s.fetcher.All(ctx, query.Provenance(query.CollectionLayersData))
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	out := make([]Series, 0, len(docs))
	for _, r := range provenance.Wrap(docs) {
		out = append(out, Series{
			EV:          r.Keyword("ev"),
			Description: r.Keyword("evDesc"),
			Layer:       r.Keyword("layer"),
		})
	}
	return out, nil
}

// Describe summarizes one series. Dates span the event-start timestamps.
func (s *Service) Describe(ctx context.Context, ev string) (provenance.Summary, bool, error) {
	if ev == "" {
		return provenance.Summary{}, false, domain.InvalidArgument("ev", "is required")
	}
	q := query.Provenance(query.CollectionLayersData, query.Keyword{Name: "ev", Value: ev})
	d, ok, err := s.fetcher.First(ctx, q)
	if err != nil {
		return provenance.Summary{}, false, fmt.Errorf("describe dataset %s: %w", ev, err)
	}
	if !ok {
		return provenance.Summary{}, false, nil
	}

	r := provenance.New(d)
	sum := provenance.Summary{
		Description:  r.Keyword("evDesc"),
		Layer:        r.Keyword("layer"),
		SourceURLs:   r.SourceURLs(),
		DownloadedAt: r.StoredAt(),
		NumEntries:   r.NumEntries(),
		Provenance:   []provenance.Record{r},
	}

	where := filter.New().Match("ev", ev)
	starts, err := s.fetcher.Distinct(ctx, query.Distinct(query.CollectionLayersData, "evstart", where))
	if err != nil {
		return provenance.Summary{}, false, fmt.Errorf("describe dataset %s: dates: %w", ev, err)
	}
	sum.Dates = provenance.TimestampSpan(starts, query.ParseTimestamp)

	example, _, err := s.fetcher.First(ctx, query.Example(query.CollectionLayersData, where))
	if err != nil {
		return provenance.Summary{}, false, fmt.Errorf("describe dataset %s: example: %w", ev, err)
	}
	sum.Example = example
	return sum, true, nil
}

// Download fetches the raw documents of ev whose event start falls within dates.
func (s *Service) Download(ctx context.Context, ev string, dates query.DateRange) ([]*document.Document, error) {
	q, err := s.builder.Dataset(ev, dates)
	if err != nil {
		return nil, err
	}
	docs, err := s.fetcher.All(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("download dataset %s: %w", ev, err)
	}
	return docs, nil
}
