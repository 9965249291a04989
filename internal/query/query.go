package query

import (
	"time"

	"github.com/flowmaps/flowmaps-data/internal/domain"
	"github.com/flowmaps/flowmaps-data/internal/domain/document"
	"github.com/flowmaps/flowmaps-data/internal/domain/filter"
)

// Remote collections.
const (
	CollectionLayers           = "layers"
	CollectionConsolidated     = "layers.data.consolidated"
	CollectionLayersData       = "layers.data"
	CollectionDailyMobility    = "mitma_mov.daily_mobility_matrix"
	CollectionZoneMovementsRaw = "mitma_mov.zone_movements"
	CollectionMovementsRaw     = "mitma_mov.movements_raw"
	CollectionProvenance       = "provenance"
	CollectionDistinct         = "distinct"
)

// Document types stored in the consolidated collection.
const (
	TypeCovid19       = "covid19"
	TypePopulation    = "population"
	TypeZoneMovements = "zone_movements"
)

// RawMobilityLayer is the MITMA native layer; its zone movements live in a
// raw collection keyed by event-start timestamps instead of calendar dates.
const RawMobilityLayer = "mitma_mov"

// Query is one filtered request against one collection.
type Query struct {
	Collection string
	Filter     *filter.Filter
	Projection *filter.Filter
	Sort       string
}

// Where returns the compact JSON where clause.
func (q Query) Where() string { return q.Filter.JSON() }

// WithSort returns a copy sorted by field.
func (q Query) WithSort(field string) Query {
	q.Sort = field
	return q
}

// Keyword is a provenance keyword predicate, matched as `keywords.<Name>`.
type Keyword struct {
	Name  string
	Value string
}

// MobilityParams selects a daily mobility matrix slice.
type MobilityParams struct {
	SourceLayer string
	TargetLayer string
	Dates       DateRange
	Source      string
	Target      string
}

// Builder turns semantic parameters into collection queries.
// It is immutable once constructed.
type Builder struct {
	loc *time.Location
}

// NewBuilder creates a builder interpreting calendar dates in loc.
func NewBuilder(loc *time.Location) *Builder {
	if loc == nil {
		loc = time.UTC
	}
	return &Builder{loc: loc}
}

// Location returns the zone calendar dates are interpreted in.
func (b *Builder) Location() *time.Location { return b.loc }

// Layer selects every polygon of a geographic layer.
func (b *Builder) Layer(layer string) (Query, error) {
	if layer == "" {
		return Query{}, domain.InvalidArgument("layer", "is required")
	}
	return Query{
		Collection: CollectionLayers,
		Filter:     filter.New().Match("layer", layer),
	}, nil
}

// Covid19 selects consolidated case counts for an ev.
func (b *Builder) Covid19(ev string, dates DateRange) (Query, error) {
	if ev == "" {
		return Query{}, domain.InvalidArgument("ev", "is required")
	}
	f := filter.New().Match("ev", ev).Match("type", TypeCovid19)
	if err := b.dateRange(f, "date", dates); err != nil {
		return Query{}, err
	}
	return Query{Collection: CollectionConsolidated, Filter: f}, nil
}

// Dataset selects raw layer data for an ev, bounded on event-start timestamps.
func (b *Builder) Dataset(ev string, dates DateRange) (Query, error) {
	if ev == "" {
		return Query{}, domain.InvalidArgument("ev", "is required")
	}
	f := filter.New().Match("ev", ev)
	if err := b.timestampRange(f, "evstart", dates); err != nil {
		return Query{}, err
	}
	return Query{Collection: CollectionLayersData, Filter: f}, nil
}

// DailyMobility selects origin-destination matrix cells.
func (b *Builder) DailyMobility(p MobilityParams) (Query, error) {
	if p.SourceLayer == "" {
		return Query{}, domain.InvalidArgument("source-layer", "is required")
	}
	if p.TargetLayer == "" {
		return Query{}, domain.InvalidArgument("target-layer", "is required")
	}
	f := filter.New().
		Match("source_layer", p.SourceLayer).
		Match("target_layer", p.TargetLayer)
	if err := b.dateRange(f, "date", p.Dates); err != nil {
		return Query{}, err
	}
	if p.Source != "" {
		f.Match("source", p.Source)
	}
	if p.Target != "" {
		f.Match("target", p.Target)
	}
	return Query{Collection: CollectionDailyMobility, Filter: f}, nil
}

// Population selects population counts for a layer.
func (b *Builder) Population(layer string, dates DateRange) (Query, error) {
	if layer == "" {
		return Query{}, domain.InvalidArgument("layer", "is required")
	}
	f := filter.New().Match("layer", layer).Match("type", TypePopulation)
	if err := b.dateRange(f, "date", dates); err != nil {
		return Query{}, err
	}
	return Query{Collection: CollectionConsolidated, Filter: f}, nil
}

// ZoneMovements selects per-zone trip-count distributions. The raw MITMA
// layer is read from its own collection with an event-start range.
func (b *Builder) ZoneMovements(layer string, dates DateRange) (Query, error) {
	if layer == "" {
		return Query{}, domain.InvalidArgument("layer", "is required")
	}
	if layer == RawMobilityLayer {
		f := filter.New()
		if err := b.timestampRange(f, "evstart", dates); err != nil {
			return Query{}, err
		}
		return Query{Collection: CollectionZoneMovementsRaw, Filter: f}, nil
	}
	f := filter.New().Match("layer", layer).Match("type", TypeZoneMovements)
	if err := b.dateRange(f, "date", dates); err != nil {
		return Query{}, err
	}
	return Query{Collection: CollectionConsolidated, Filter: f}, nil
}

// RiskMobility selects the mobility matrix for one exact day.
func (b *Builder) RiskMobility(sourceLayer, targetLayer, date string) (Query, error) {
	if err := b.exactDate(date); err != nil {
		return Query{}, err
	}
	q, err := b.DailyMobility(MobilityParams{SourceLayer: sourceLayer, TargetLayer: targetLayer})
	if err != nil {
		return Query{}, err
	}
	q.Filter.Match("date", date)
	return q, nil
}

// RiskCases selects case counts for an ev on one exact day.
func (b *Builder) RiskCases(ev, date string) (Query, error) {
	if err := b.exactDate(date); err != nil {
		return Query{}, err
	}
	q, err := b.Covid19(ev, DateRange{})
	if err != nil {
		return Query{}, err
	}
	q.Filter.Match("date", date)
	return q, nil
}

// RiskPopulation selects population counts for a layer on one exact day.
func (b *Builder) RiskPopulation(layer, date string) (Query, error) {
	if err := b.exactDate(date); err != nil {
		return Query{}, err
	}
	q, err := b.Population(layer, DateRange{})
	if err != nil {
		return Query{}, err
	}
	q.Filter.Match("date", date)
	return q, nil
}

// Provenance selects provenance records for documents stored in a collection.
func Provenance(storedIn string, keywords ...Keyword) Query {
	f := filter.New().Match("storedIn", storedIn)
	for _, kw := range keywords {
		f.Match("keywords."+kw.Name, kw.Value)
	}
	return Query{Collection: CollectionProvenance, Filter: f}
}

// NonEmpty restricts a provenance query to records that stored documents.
func NonEmpty(q Query) Query {
	f := q.Filter.Clone()
	f.Range("numEntries", filter.Above(document.Int(0)))
	q.Filter = f
	return q
}

// Distinct lists the distinct values of field over documents matching where.
func Distinct(collection, field string, where *filter.Filter) Query {
	if where == nil {
		where = filter.New()
	}
	return Query{
		Collection: CollectionDistinct,
		Filter: filter.New().
			Match("collection", collection).
			Match("field", field).
			Sub("query", where),
	}
}

// Example selects a single representative document.
func Example(collection string, where *filter.Filter) Query {
	if where == nil {
		where = filter.New()
	}
	return Query{Collection: collection, Filter: where}
}

// dateRange adds inclusive bounds on a calendar-date field.
func (b *Builder) dateRange(f *filter.Filter, field string, r DateRange) error {
	if err := r.Validate(); err != nil {
		return err
	}
	start, end := document.String(r.Start), document.String(r.End)
	switch {
	case r.Start != "" && r.End != "":
		f.Range(field, filter.Between(start, end))
	case r.Start != "":
		f.Range(field, filter.AtLeast(start))
	case r.End != "":
		f.Range(field, filter.AtMost(end))
	}
	return nil
}

// timestampRange bounds a timestamp field by [start 00:00, end+1 00:00) in
// the builder's zone, rendered in UTC.
func (b *Builder) timestampRange(f *filter.Filter, field string, r DateRange) error {
	if err := r.Validate(); err != nil {
		return err
	}
	var lower, upper document.Value
	if r.Start != "" {
		t, err := ParseDate(r.Start, b.loc)
		if err != nil {
			return err
		}
		lower = document.String(RFC1123(t))
	}
	if r.End != "" {
		t, err := ParseDate(r.End, b.loc)
		if err != nil {
			return err
		}
		upper = document.String(RFC1123(NextDay(t)))
	}
	switch {
	case r.Start != "" && r.End != "":
		f.Range(field, filter.HalfOpen(lower, upper))
	case r.Start != "":
		f.Range(field, filter.AtLeast(lower))
	case r.End != "":
		f.Range(field, filter.Below(upper))
	}
	return nil
}

func (b *Builder) exactDate(date string) error {
	if date == "" {
		return domain.InvalidArgument("date", "is required")
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return domain.InvalidArgument("date", "want YYYY-MM-DD, got %q", date)
	}
	return nil
}
