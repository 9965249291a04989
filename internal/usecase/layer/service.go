package layer

import (
	"context"
	"fmt"

	"github.com/flowmaps/flowmaps-data/internal/domain"
	"github.com/flowmaps/flowmaps-data/internal/domain/document"
	"github.com/flowmaps/flowmaps-data/internal/domain/provenance"
	"github.com/flowmaps/flowmaps-data/internal/query"
)

// Info describes one geographic layer.
type Info struct {
	Layer       string
	Description string
	Polygons    string
	Provenance  provenance.Record
}

// Service lists, describes and downloads geographic layers.
type Service struct {
	fetcher Fetcher
	builder *query.Builder
}

// New creates a layer service.
func New(f Fetcher, b *query.Builder) *Service {
	return &Service{fetcher: f, builder: b}
}

// List returns every layer with stored polygons.
func (s *Service) List(ctx context.Context) ([]Info, error) {
	docs, err := s.fetcher.All(ctx, query.Provenance(query.CollectionLayers))
	if err != nil {
		return nil, fmt.Errorf("list layers: %w", err)
	}
	out := make([]Info, 0, len(docs))
	for _, r := range provenance.Wrap(docs) {
		out = append(out, info(r))
	}
	return out, nil
}

// Describe looks up one layer. ok is false when the layer is unknown.
func (s *Service) Describe(ctx context.Context, layer string) (Info, bool, error) {
	if layer == "" {
		return Info{}, false, domain.InvalidArgument("layer", "is required")
	}
	q := query.Provenance(query.CollectionLayers, query.Keyword{Name: "layer", Value: layer})
	d, ok, err := s.fetcher.First(ctx, q)
	if err != nil {
		return Info{}, false, fmt.Errorf("describe layer %s: %w", layer, err)
	}
	if !ok {
		return Info{}, false, nil
	}
	return info(provenance.New(d)), true, nil
}

// FeatureCollection downloads every polygon of layer as a GeoJSON
// FeatureCollection. Each feature carries the polygon id and centroid
// followed by the members of its stored feature.
func (s *Service) FeatureCollection(ctx context.Context, layer string) (document.Value, int, error) {
	q, err := s.builder.Layer(layer)
	if err != nil {
		return document.Null(), 0, err
	}
	docs, err := s.fetcher.All(ctx, q)
	if err != nil {
		return document.Null(), 0, fmt.Errorf("download layer %s: %w", layer, err)
	}

	features := make([]document.Value, 0, len(docs))
	for i, d := range docs {
		f, err := feature(d)
		if err != nil {
			return document.Null(), 0, fmt.Errorf("download layer %s: polygon %d: %w", layer, i, err)
		}
		features = append(features, document.Object(f))
	}
	fc := document.Of("type", "FeatureCollection", "features", features)
	return document.Object(fc), len(features), nil
}

func feature(d *document.Document) (*document.Document, error) {
	out := document.New()
	for _, k := range []string{"id", "centroid"} {
		if v, ok := d.Get(k); ok {
			out.Set(k, v)
		}
	}
	v, ok := d.Get("feat")
	if !ok {
		return nil, &domain.RemoteError{Err: fmt.Errorf("feat missing")}
	}
	feat, ok := v.AsObject()
	if !ok {
		return nil, &domain.RemoteError{Err: fmt.Errorf("feat is %s, want object", v.Kind())}
	}
	for _, k := range feat.Keys() {
		fv, _ := feat.Get(k)
		out.Set(k, fv)
	}
	return out, nil
}

func info(r provenance.Record) Info {
	return Info{
		Layer:       r.Keyword("layer"),
		Description: r.Keyword("layerDesc"),
		Polygons:    r.NumEntries(),
		Provenance:  r,
	}
}
