package mobility

import (
	"context"
	"fmt"
	"time"

	"github.com/flowmaps/flowmaps-data/internal/domain"
	"github.com/flowmaps/flowmaps-data/internal/domain/document"
	"github.com/flowmaps/flowmaps-data/internal/domain/filter"
	"github.com/flowmaps/flowmaps-data/internal/domain/provenance"
	"github.com/flowmaps/flowmaps-data/internal/query"
)

// DailyDescription describes the daily origin-destination matrix.
const DailyDescription = "Daily Origin-Destination matrix, based on anonymized mobile phone records " +
	"from MITMA dataset (https://www.mitma.gob.es/ministerio/covid-19/evolucion-movilidad-big-data)."

// HourlyDescription describes the raw hourly MITMA files.
const HourlyDescription = "Raw hourly origin-destination trips from MITMA dataset " +
	"(https://www.mitma.gob.es/ministerio/covid-19/evolucion-movilidad-big-data), one file per day."

// Pair is a source/target layer combination served by the daily matrix.
type Pair struct {
	SourceLayer string
	TargetLayer string
}

var layerPairs = []Pair{
	{"mitma_mov", "mitma_mov"},
	{"cnig_provincias", "cnig_provincias"},
	{"cnig_ccaa", "cnig_ccaa"},
	{"abs_09", "abs_09"},
	{"zbs_15", "zbs_15"},
	{"zbs_07", "zbs_07"},
	{"oe_16", "oe_16"},
	{"zon_bas_13", "zon_bas_13"},
	{"cnig_provincias", "abs_09"},
	{"abs_09", "cnig_provincias"},
	{"cnig_provincias", "zbs_15"},
	{"zbs_15", "cnig_provincias"},
	{"cnig_provincias", "zbs_07"},
	{"zbs_07", "cnig_provincias"},
	{"cnig_provincias", "oe_16"},
	{"oe_16", "cnig_provincias"},
	{"cnig_provincias", "zon_bas_13"},
	{"zon_bas_13", "cnig_provincias"},
}

// Example cells are read from this pair.
var examplePair = Pair{"cnig_provincias", "cnig_provincias"}

// HourlyFile is one day of raw hourly trips.
type HourlyFile struct {
	Date       string
	URLs       []string
	StoredAt   string
	Entries    string
	Provenance provenance.Record
}

// Service serves the daily matrix and the raw hourly files.
type Service struct {
	fetcher Fetcher
	builder *query.Builder
}

// New creates a mobility service.
func New(f Fetcher, b *query.Builder) *Service {
	return &Service{fetcher: f, builder: b}
}

// Pairs returns the layer pairs the daily matrix is computed for.
func (s *Service) Pairs() []Pair {
	out := make([]Pair, len(layerPairs))
	copy(out, layerPairs)
	return out
}

// DailyDates returns every date with matrix cells, ascending.
func (s *Service) DailyDates(ctx context.Context) ([]string, error) {
	provs, err := s.dailyProvenance(ctx)
	if err != nil {
		return nil, fmt.Errorf("list daily mobility dates: %w", err)
	}
	dates := make([]string, 0, len(provs))
	for _, r := range provs {
		dates = append(dates, r.Keyword("date"))
	}
	return dates, nil
}

// DescribeDaily summarizes the matrix from its latest provenance record.
// ok is false when nothing has been processed yet.
func (s *Service) DescribeDaily(ctx context.Context) (provenance.Summary, bool, error) {
	provs, err := s.dailyProvenance(ctx)
	if err != nil {
		return provenance.Summary{}, false, fmt.Errorf("describe daily mobility: %w", err)
	}
	if len(provs) == 0 {
		return provenance.Summary{}, false, nil
	}
	first, last := provs[0], provs[len(provs)-1]
	origin := last.Origin()
	sum := provenance.Summary{
		Description:  DailyDescription,
		SourceURLs:   origin.SourceURLs(),
		DownloadedAt: origin.StoredAt(),
		ProcessedAt:  last.StoredAt(),
		Dates:        provenance.Span{Min: first.Keyword("date"), Max: last.Keyword("date")},
		Provenance:   provs,
	}

	where := filter.New().
		Match("source_layer", examplePair.SourceLayer).
		Match("target_layer", examplePair.TargetLayer)
	example, _, err := s.fetcher.First(ctx, query.Example(query.CollectionDailyMobility, where))
	if err != nil {
		return provenance.Summary{}, false, fmt.Errorf("describe daily mobility: example: %w", err)
	}
	sum.Example = example
	return sum, true, nil
}

// DownloadDaily fetches matrix cells.
func (s *Service) DownloadDaily(ctx context.Context, p query.MobilityParams) ([]*document.Document, error) {
	q, err := s.builder.DailyMobility(p)
	if err != nil {
		return nil, err
	}
	docs, err := s.fetcher.All(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("download daily mobility %s-%s: %w", p.SourceLayer, p.TargetLayer, err)
	}
	return docs, nil
}

func (s *Service) dailyProvenance(ctx context.Context) ([]provenance.Record, error) {
	q := query.NonEmpty(query.Provenance(query.CollectionDailyMobility)).WithSort("keywords.date")
	docs, err := s.fetcher.All(ctx, q)
	if err != nil {
		return nil, err
	}
	return provenance.Wrap(docs), nil
}

// HourlyFiles returns every downloaded hourly file, by date.
func (s *Service) HourlyFiles(ctx context.Context) ([]HourlyFile, error) {
	q := query.Provenance(query.CollectionMovementsRaw).WithSort("keywords.date")
	docs, err := s.fetcher.All(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list hourly mobility: %w", err)
	}
	out := make([]HourlyFile, 0, len(docs))
	for _, r := range provenance.Wrap(docs) {
		out = append(out, hourlyFile(r))
	}
	return out, nil
}

// HourlyDates returns the distinct dates with hourly files, in file order.
func (s *Service) HourlyDates(ctx context.Context) ([]string, error) {
	files, err := s.HourlyFiles(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(files))
	dates := make([]string, 0, len(files))
	for _, f := range files {
		if _, dup := seen[f.Date]; dup || f.Date == "" {
			continue
		}
		seen[f.Date] = struct{}{}
		dates = append(dates, f.Date)
	}
	return dates, nil
}

// DescribeHourly looks up the hourly file of one day.
func (s *Service) DescribeHourly(ctx context.Context, date string) (HourlyFile, bool, error) {
	if date == "" {
		return HourlyFile{}, false, domain.InvalidArgument("date", "is required")
	}
	if _, err := time.Parse(query.DateLayout, date); err != nil {
		return HourlyFile{}, false, domain.InvalidArgument("date", "want YYYY-MM-DD, got %q", date)
	}
	q := query.Provenance(query.CollectionMovementsRaw, query.Keyword{Name: "date", Value: date})
	d, ok, err := s.fetcher.First(ctx, q)
	if err != nil {
		return HourlyFile{}, false, fmt.Errorf("describe hourly mobility %s: %w", date, err)
	}
	if !ok {
		return HourlyFile{}, false, nil
	}
	return hourlyFile(provenance.New(d)), true, nil
}

func hourlyFile(r provenance.Record) HourlyFile {
	return HourlyFile{
		Date:       r.Keyword("date"),
		URLs:       r.SourceURLs(),
		StoredAt:   r.StoredAt(),
		Entries:    r.NumEntries(),
		Provenance: r,
	}
}
