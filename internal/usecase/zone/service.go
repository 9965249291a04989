package zone

import (
	"context"
	"fmt"

	"github.com/flowmaps/flowmaps-data/internal/domain/document"
	"github.com/flowmaps/flowmaps-data/internal/domain/filter"
	"github.com/flowmaps/flowmaps-data/internal/domain/provenance"
	"github.com/flowmaps/flowmaps-data/internal/join"
	"github.com/flowmaps/flowmaps-data/internal/query"
)

// Description explains the trip-count buckets.
const Description = "mobility data from MITMA dataset " +
	"(https://www.mitma.gob.es/ministerio/covid-19/evolucion-movilidad-big-data), " +
	"aggregated at different layers. Original data is based on anonymized mobile phone records. " +
	"It contains the number of people in each geographical area that has done 0,1,2,3+ trips. " +
	"NOTE: 3 or more trips are encoded as '-1'."

// Service lists, describes and downloads daily zone movements.
type Service struct {
	fetcher Fetcher
	builder *query.Builder
}

// New creates a zone movements service.
func New(f Fetcher, b *query.Builder) *Service {
	return &Service{fetcher: f, builder: b}
}

// Layers returns the layers zone movements are aggregated at.
func (s *Service) Layers(ctx context.Context) ([]string, error) {
	where := filter.New().Match("type", query.TypeZoneMovements)
	vals, err := s.fetcher.Distinct(ctx, query.Distinct(query.CollectionConsolidated, "layer", where))
	if err != nil {
		return nil, fmt.Errorf("list zone movement layers: %w", err)
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		out = append(out, v.String())
	}
	return out, nil
}

// Describe summarizes the collection from its latest provenance record.
func (s *Service) Describe(ctx context.Context) (provenance.Summary, bool, error) {
	q := query.NonEmpty(query.Provenance(query.CollectionConsolidated,
		query.Keyword{Name: "type", Value: query.TypeZoneMovements})).WithSort("keywords.date")
	docs, err := s.fetcher.All(ctx, q)
	if err != nil {
		return provenance.Summary{}, false, fmt.Errorf("describe zone movements: %w", err)
	}
	if len(docs) == 0 {
		return provenance.Summary{}, false, nil
	}
	provs := provenance.Wrap(docs)
	last := provs[len(provs)-1]
	origin := last.Origin()
	sum := provenance.Summary{
		Description:  Description,
		SourceURLs:   origin.SourceURLs(),
		DownloadedAt: origin.StoredAt(),
		ProcessedAt:  last.StoredAt(),
		NumEntries:   last.NumEntries(),
		Provenance:   provs,
	}

	where := filter.New().Match("type", query.TypeZoneMovements)
	dates, err := s.fetcher.Distinct(ctx, query.Distinct(query.CollectionConsolidated, "date", where))
	if err != nil {
		return provenance.Summary{}, false, fmt.Errorf("describe zone movements: dates: %w", err)
	}
	sum.Dates = provenance.DateSpan(dates)

	example, _, err := s.fetcher.First(ctx, query.Example(query.CollectionConsolidated, where))
	if err != nil {
		return provenance.Summary{}, false, fmt.Errorf("describe zone movements: example: %w", err)
	}
	sum.Example = example
	return sum, true, nil
}

// Download fetches zone movements of layer within dates. Rows of the raw
// MITMA layer get a local calendar date and capped trip counts.
func (s *Service) Download(ctx context.Context, layer string, dates query.DateRange) ([]*document.Document, error) {
	q, err := s.builder.ZoneMovements(layer, dates)
	if err != nil {
		return nil, err
	}
	docs, err := s.fetcher.All(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("download zone movements %s: %w", layer, err)
	}
	if layer == query.RawMobilityLayer {
		if err := join.NormalizeZoneMovements(docs, s.builder.Location()); err != nil {
			return nil, fmt.Errorf("download zone movements %s: %w", layer, err)
		}
	}
	return docs, nil
}
