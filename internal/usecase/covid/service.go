package covid

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/flowmaps/flowmaps-data/internal/domain"
	"github.com/flowmaps/flowmaps-data/internal/domain/document"
	"github.com/flowmaps/flowmaps-data/internal/domain/filter"
	"github.com/flowmaps/flowmaps-data/internal/domain/provenance"
	"github.com/flowmaps/flowmaps-data/internal/join"
	"github.com/flowmaps/flowmaps-data/internal/logger"
	"github.com/flowmaps/flowmaps-data/internal/query"
)

// Series is one consolidated COVID-19 event series.
type Series struct {
	EV          string
	Description string
	Entries     string
	Layer       string
}

// Service lists, describes and downloads consolidated case counts.
type Service struct {
	fetcher Fetcher
	builder *query.Builder
}

// New creates a covid19 service.
func New(f Fetcher, b *query.Builder) *Service {
	return &Service{fetcher: f, builder: b}
}

// List returns every consolidated covid19 series.
func (s *Service) List(ctx context.Context) ([]Series, error) {
	q := query.Provenance(query.CollectionConsolidated,
		query.Keyword{Name: "type", Value: query.TypeCovid19})
	docs, err := s.fetcher.All(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list covid19: %w", err)
	}
	out := make([]Series, 0, len(docs))
	for _, r := range provenance.Wrap(docs) {
		out = append(out, Series{
			EV:          r.Keyword("ev"),
			Description: r.Origin().Keyword("evDesc"),
			Entries:     r.NumEntries(),
			Layer:       r.Keyword("layer"),
		})
	}
	return out, nil
}

// Describe summarizes one series. ok is false when ev is unknown.
func (s *Service) Describe(ctx context.Context, ev string) (provenance.Summary, bool, error) {
	if ev == "" {
		return provenance.Summary{}, false, domain.InvalidArgument("ev", "is required")
	}
	q := query.Provenance(query.CollectionConsolidated, query.Keyword{Name: "ev", Value: ev})
	d, ok, err := s.fetcher.First(ctx, q)
	if err != nil {
		return provenance.Summary{}, false, fmt.Errorf("describe covid19 %s: %w", ev, err)
	}
	if !ok {
		return provenance.Summary{}, false, nil
	}

	r := provenance.New(d)
	origin := r.Origin()
	sum := provenance.Summary{
		Description:  origin.Keyword("evDesc"),
		Layer:        r.Keyword("layer"),
		SourceURLs:   origin.SourceURLs(),
		DownloadedAt: origin.StoredAt(),
		ProcessedAt:  r.StoredAt(),
		NumEntries:   r.NumEntries(),
		Provenance:   []provenance.Record{r},
	}

	where := filter.New().Match("type", query.TypeCovid19).Match("ev", ev)
	dates, err := s.fetcher.Distinct(ctx, query.Distinct(query.CollectionConsolidated, "date", where))
	if err != nil {
		return provenance.Summary{}, false, fmt.Errorf("describe covid19 %s: dates: %w", ev, err)
	}
	sum.Dates = provenance.DateSpan(dates)

	example, _, err := s.fetcher.First(ctx, query.Example(query.CollectionConsolidated, where))
	if err != nil {
		return provenance.Summary{}, false, fmt.Errorf("describe covid19 %s: example: %w", ev, err)
	}
	sum.Example = example
	return sum, true, nil
}

// Download fetches the case counts of ev within dates, strips bookkeeping
// fields and adds per-100k incidence rates. Population is taken from the
// case rows when they embed it; otherwise it is fetched per layer and
// inner-joined on (id, layer, date), dropping rows without a match.
func (s *Service) Download(ctx context.Context, ev string, dates query.DateRange) ([]*document.Document, error) {
	q, err := s.builder.Covid19(ev, dates)
	if err != nil {
		return nil, err
	}
	cases, err := s.fetcher.All(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("download covid19 %s: %w", ev, err)
	}
	join.CleanCases(cases)
	if len(cases) == 0 {
		return cases, nil
	}
	if join.HasEmbeddedPopulation(cases) {
		join.AddCasesPer100k(cases)
		return cases, nil
	}

	var population []*document.Document
	for _, layer := range layers(cases) {
		pq, err := s.builder.Population(layer, dates)
		if err != nil {
			return nil, err
		}
		docs, err := s.fetcher.All(ctx, pq)
		if err != nil {
			return nil, fmt.Errorf("download covid19 %s: population %s: %w", ev, layer, err)
		}
		population = append(population, docs...)
	}

	rows := join.EnrichCases(cases, population)
	if dropped := len(cases) - len(rows); dropped > 0 {
		logger.FromContext(ctx).Warn("case rows without population dropped",
			zap.String("ev", ev),
			zap.Int("dropped", dropped),
			zap.Int("kept", len(rows)),
		)
	}
	return rows, nil
}

// layers lists the distinct layer values of docs in first-appearance order.
func layers(docs []*document.Document) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, d := range docs {
		l, ok := d.Text("layer")
		if !ok || l == "" {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
