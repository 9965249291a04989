package risk

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/flowmaps/flowmaps-data/internal/domain"
	"github.com/flowmaps/flowmaps-data/internal/domain/document"
	"github.com/flowmaps/flowmaps-data/internal/domain/filter"
	"github.com/flowmaps/flowmaps-data/internal/domain/provenance"
	"github.com/flowmaps/flowmaps-data/internal/join"
	"github.com/flowmaps/flowmaps-data/internal/logger"
	"github.com/flowmaps/flowmaps-data/internal/query"
)

// Series is a case series risk can be computed for.
type Series struct {
	EV    string
	Layer string
}

// Params selects one risk computation.
type Params struct {
	SourceLayer string
	TargetLayer string
	EV          string
	Date        string
}

// Service computes mobility-associated risk.
type Service struct {
	fetcher Fetcher
	builder *query.Builder
}

// New creates a risk service.
func New(f Fetcher, b *query.Builder) *Service {
	return &Service{fetcher: f, builder: b}
}

// List returns the covid19 series with their layers.
func (s *Service) List(ctx context.Context) ([]Series, error) {
	q := query.Provenance(query.CollectionConsolidated,
		query.Keyword{Name: "type", Value: query.TypeCovid19})
	docs, err := s.fetcher.All(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list risk series: %w", err)
	}
	out := make([]Series, 0, len(docs))
	for _, r := range provenance.Wrap(docs) {
		out = append(out, Series{EV: r.Keyword("ev"), Layer: r.Keyword("layer")})
	}
	return out, nil
}

// Dates returns the days, ascending, on which both case counts for ev and
// the daily mobility matrix exist.
func (s *Service) Dates(ctx context.Context, ev string) ([]string, error) {
	if ev == "" {
		return nil, domain.InvalidArgument("ev", "is required")
	}
	where := filter.New().Match("type", query.TypeCovid19).Match("ev", ev)
	caseDates, err := s.fetcher.Distinct(ctx, query.Distinct(query.CollectionConsolidated, "date", where))
	if err != nil {
		return nil, fmt.Errorf("list risk dates %s: cases: %w", ev, err)
	}

	q := query.NonEmpty(query.Provenance(query.CollectionDailyMobility)).WithSort("keywords.date")
	provs, err := s.fetcher.All(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list risk dates %s: mobility: %w", ev, err)
	}
	mobility := make(map[string]struct{}, len(provs))
	for _, r := range provenance.Wrap(provs) {
		mobility[r.Keyword("date")] = struct{}{}
	}

	var out []string
	seen := make(map[string]struct{})
	for _, v := range caseDates {
		d, ok := v.AsString()
		if !ok {
			continue
		}
		if _, ok := mobility[d]; !ok {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

// Compute joins one day of mobility between two layers with the case
// counts of ev at the source zone, and derives the risk each trip carries.
// Missing mobility or case rows fail with a MissingDataError; missing
// population yields no rows.
func (s *Service) Compute(ctx context.Context, p Params) ([]*document.Document, error) {
	mq, err := s.builder.RiskMobility(p.SourceLayer, p.TargetLayer, p.Date)
	if err != nil {
		return nil, err
	}
	cq, err := s.builder.RiskCases(p.EV, p.Date)
	if err != nil {
		return nil, err
	}

	mobility, err := s.required(ctx, "mobility", mq)
	if err != nil {
		return nil, err
	}
	cases, err := s.required(ctx, "cases", cq)
	if err != nil {
		return nil, err
	}
	join.CleanCases(cases)

	var population []*document.Document
	if !join.HasEmbeddedPopulation(cases) {
		pq, err := s.builder.RiskPopulation(p.SourceLayer, p.Date)
		if err != nil {
			return nil, err
		}
		population, err = s.fetcher.All(ctx, pq)
		if err != nil {
			return nil, fmt.Errorf("compute risk: population: %w", err)
		}
		if len(population) == 0 {
			logger.FromContext(ctx).Warn("no population rows, risk result is empty",
				zap.String("collection", pq.Collection),
				zap.String("where", pq.Where()),
			)
			return []*document.Document{}, nil
		}
	}

	rows := join.Risk(mobility, cases, population)
	logger.FromContext(ctx).Debug("risk computed",
		zap.Int("mobility_rows", len(mobility)),
		zap.Int("case_rows", len(cases)),
		zap.Int("population_rows", len(population)),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

func (s *Service) required(ctx context.Context, what string, q query.Query) ([]*document.Document, error) {
	docs, err := s.fetcher.All(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("compute risk: %s: %w", what, err)
	}
	if len(docs) == 0 {
		return nil, &domain.MissingDataError{What: what, Collection: q.Collection, Filter: q.Where()}
	}
	return docs, nil
}
