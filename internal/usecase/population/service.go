package population

import (
	"context"
	"fmt"

	"github.com/flowmaps/flowmaps-data/internal/domain"
	"github.com/flowmaps/flowmaps-data/internal/domain/document"
	"github.com/flowmaps/flowmaps-data/internal/domain/filter"
	"github.com/flowmaps/flowmaps-data/internal/domain/provenance"
	"github.com/flowmaps/flowmaps-data/internal/query"
)

// Description explains how population is estimated.
const Description = "population calculated based on anonymized mobile phone records " +
	"from MITMA dataset (https://www.mitma.gob.es/ministerio/covid-19/evolucion-movilidad-big-data)."

// Service lists, describes and downloads population counts.
type Service struct {
	fetcher Fetcher
	builder *query.Builder
}

// New creates a population service.
func New(f Fetcher, b *query.Builder) *Service {
	return &Service{fetcher: f, builder: b}
}

// Layers returns the layers population is available for.
func (s *Service) Layers(ctx context.Context) ([]string, error) {
	where := filter.New().Match("type", query.TypePopulation)
	vals, err := s.fetcher.Distinct(ctx, query.Distinct(query.CollectionConsolidated, "layer", where))
	if err != nil {
		return nil, fmt.Errorf("list population layers: %w", err)
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		out = append(out, v.String())
	}
	return out, nil
}

// Describe summarizes population for one layer.
func (s *Service) Describe(ctx context.Context, layer string) (provenance.Summary, bool, error) {
	if layer == "" {
		return provenance.Summary{}, false, domain.InvalidArgument("layer", "is required")
	}
	q := query.Provenance(query.CollectionConsolidated,
		query.Keyword{Name: "type", Value: query.TypePopulation},
		query.Keyword{Name: "layer", Value: layer})
	d, ok, err := s.fetcher.First(ctx, q)
	if err != nil {
		return provenance.Summary{}, false, fmt.Errorf("describe population %s: %w", layer, err)
	}
	if !ok {
		return provenance.Summary{}, false, nil
	}

	r := provenance.New(d)
	origin := r.Origin()
	sum := provenance.Summary{
		Description:  Description,
		Layer:        layer,
		SourceURLs:   origin.SourceURLs(),
		DownloadedAt: origin.StoredAt(),
		ProcessedAt:  r.StoredAt(),
		NumEntries:   r.NumEntries(),
		Provenance:   []provenance.Record{r},
	}

	where := filter.New().Match("type", query.TypePopulation).Match("layer", layer)
	dates, err := s.fetcher.Distinct(ctx, query.Distinct(query.CollectionConsolidated, "date", where))
	if err != nil {
		return provenance.Summary{}, false, fmt.Errorf("describe population %s: dates: %w", layer, err)
	}
	sum.Dates = provenance.DateSpan(dates)

	example, _, err := s.fetcher.First(ctx, query.Example(query.CollectionConsolidated, where))
	if err != nil {
		return provenance.Summary{}, false, fmt.Errorf("describe population %s: example: %w", layer, err)
	}
	sum.Example = example
	return sum, true, nil
}

// Download fetches population counts of layer within dates.
func (s *Service) Download(ctx context.Context, layer string, dates query.DateRange) ([]*document.Document, error) {
	q, err := s.builder.Population(layer, dates)
	if err != nil {
		return nil, err
	}
	docs, err := s.fetcher.All(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("download population %s: %w", layer, err)
	}
	return docs, nil
}
