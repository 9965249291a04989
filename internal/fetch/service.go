package fetch

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/flowmaps/flowmaps-data/internal/domain"
	"github.com/flowmaps/flowmaps-data/internal/domain/document"
	"github.com/flowmaps/flowmaps-data/internal/logger"
	"github.com/flowmaps/flowmaps-data/internal/metrics"
	"github.com/flowmaps/flowmaps-data/internal/query"
	"github.com/flowmaps/flowmaps-data/internal/transport/eve"
)

// DefaultPageSize is the batch size requested per page.
const DefaultPageSize = 1000

// Fetcher drives filtered queries to completion, one page at a time.
type Fetcher struct {
	transport Transport
	pageSize  int
	progress  Progress
	metrics   *metrics.Fetch
	echo      io.Writer
}

// New creates a fetcher. pageSize <= 0 selects DefaultPageSize.
func New(t Transport, pageSize int) *Fetcher {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Fetcher{
		transport: t,
		pageSize:  pageSize,
		progress:  NopProgress{},
	}
}

// WithProgress sets the progress reporter.
func (f *Fetcher) WithProgress(p Progress) *Fetcher {
	if p == nil {
		p = NopProgress{}
	}
	f.progress = p
	return f
}

// WithMetrics sets fetch metrics.
func (f *Fetcher) WithMetrics(m *metrics.Fetch) *Fetcher {
	f.metrics = m
	return f
}

// WithRequestEcho prints the first-page URL of every All call to w.
func (f *Fetcher) WithRequestEcho(w io.Writer) *Fetcher {
	f.echo = w
	return f
}

// PageSize returns the configured batch size.
func (f *Fetcher) PageSize() int { return f.pageSize }

// All returns every document matching q, in server order. The server's
// next links alone decide when pagination ends; any failed page aborts the
// whole fetch.
func (f *Fetcher) All(ctx context.Context, q query.Query) (_ []*document.Document, err error) {
	defer func() { f.metrics.ObserveOperation("all", err) }()

	var docs []*document.Document
	err = f.pages(ctx, q, f.pageSize, true, func(src string, items []document.Value) error {
		for _, item := range items {
			d, ok := item.AsObject()
			if !ok {
				return &domain.RemoteError{
					URL: src,
					Err: fmt.Errorf("item %d is %s, want object", len(docs), item.Kind()),
				}
			}
			docs = append(docs, d)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", q.Collection, err)
	}
	if docs == nil {
		docs = []*document.Document{}
	}
	return docs, nil
}

// First returns the first document matching q. A miss is ok == false, not an error.
func (f *Fetcher) First(ctx context.Context, q query.Query) (_ *document.Document, _ bool, err error) {
	defer func() { f.metrics.ObserveOperation("first", err) }()

	params := f.params(q, 1)
	page, err := f.transport.Get(ctx, q.Collection, params)
	if err != nil {
		return nil, false, fmt.Errorf("fetch first %s: %w", q.Collection, err)
	}
	f.metrics.AddDocuments(q.Collection, len(page.Items))
	if len(page.Items) == 0 {
		logger.FromContext(ctx).Debug("no matching document",
			zap.String("collection", q.Collection),
			zap.String("where", params.Where),
		)
		return nil, false, nil
	}
	d, ok := page.Items[0].AsObject()
	if !ok {
		return nil, false, fmt.Errorf("fetch first %s: %w", q.Collection, &domain.RemoteError{
			URL: f.transport.URL(q.Collection, params),
			Err: fmt.Errorf("item is %s, want object", page.Items[0].Kind()),
		})
	}
	return d, true, nil
}

// Distinct returns the scalar values of a query built with query.Distinct.
func (f *Fetcher) Distinct(ctx context.Context, q query.Query) (_ []document.Value, err error) {
	defer func() { f.metrics.ObserveOperation("distinct", err) }()

	var vals []document.Value
	err = f.pages(ctx, q, f.pageSize, false, func(_ string, items []document.Value) error {
		vals = append(vals, items...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch distinct: %w", err)
	}
	return vals, nil
}

func (f *Fetcher) params(q query.Query, maxResults int) eve.Params {
	return eve.Params{
		Where:      q.Where(),
		MaxResults: maxResults,
		Projection: q.Projection.JSON(),
		Sort:       q.Sort,
	}
}

func (f *Fetcher) pages(
	ctx context.Context,
	q query.Query,
	maxResults int,
	echo bool,
	fn func(src string, items []document.Value) error,
) error {
	log := logger.FromContext(ctx).With(zap.String("collection", q.Collection))
	params := f.params(q, maxResults)
	src := f.transport.URL(q.Collection, params)
	if echo && f.echo != nil {
		_, _ = fmt.Fprintf(f.echo, "API request: %s\n", src)
	}
	log.Debug("fetch started", zap.String("where", params.Where), zap.Int("page_size", maxResults))

	page, err := f.transport.Get(ctx, q.Collection, params)
	if err != nil {
		return err
	}
	if err := fn(src, page.Items); err != nil {
		return err
	}
	fetched := len(page.Items)
	f.metrics.AddDocuments(q.Collection, fetched)

	if !page.HasLinks {
		log.Debug("single page result", zap.Int("documents", fetched))
		return nil
	}
	if page.HasTotal && page.Total <= 0 {
		log.Debug("empty result", zap.Int("documents", fetched))
		return nil
	}

	f.progress.Start(q.Collection, page.Total)
	pages := 1
	for page.Next != "" {
		f.progress.Update(fetched)
		src = page.Next
		page, err = f.transport.Follow(ctx, q.Collection, page.Next)
		if err != nil {
			return err
		}
		if err := fn(src, page.Items); err != nil {
			return err
		}
		fetched += len(page.Items)
		pages++
		f.metrics.AddDocuments(q.Collection, len(page.Items))
	}
	f.progress.Done(fetched)

	if page.HasTotal && page.Total != fetched {
		log.Debug("server total differs from documents received",
			zap.Int("total", page.Total),
			zap.Int("documents", fetched),
		)
	}
	log.Debug("fetch completed", zap.Int("documents", fetched), zap.Int("pages", pages))
	return nil
}
