package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/flowmaps/flowmaps-data/internal/domain"
	"github.com/flowmaps/flowmaps-data/internal/domain/document"
	"github.com/flowmaps/flowmaps-data/internal/domain/filter"
	"github.com/flowmaps/flowmaps-data/internal/query"
	"github.com/flowmaps/flowmaps-data/internal/transport/eve"
	"github.com/flowmaps/flowmaps-data/internal/transport/evetest"
)

func newFetcher(t *testing.T, api *evetest.Server, pageSize int) *Fetcher {
	t.Helper()
	c, err := eve.NewClient(eve.Config{BaseURL: api.URL()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return New(c, pageSize)
}

func docs(ids ...int) []document.Value {
	out := make([]document.Value, len(ids))
	for i, id := range ids {
		out[i] = document.Object(document.Of("n", id))
	}
	return out
}

func ids(t *testing.T, ds []*document.Document) []int {
	t.Helper()
	out := make([]int, len(ds))
	for i, d := range ds {
		n, ok := d.Number("n")
		if !ok {
			t.Fatalf("doc %d has no n: %s", i, d)
		}
		out[i] = int(n)
	}
	return out
}

func q(collection string) query.Query {
	return query.Query{Collection: collection, Filter: filter.New().Match("k", "v")}
}

func TestAll_ConcatenatesPagesRegardlessOfTotal(t *testing.T) {
	tests := []struct {
		name  string
		pages []evetest.ScriptPage
		want  []int
	}{
		{
			name:  "single page with links",
			pages: []evetest.ScriptPage{{Items: docs(1, 2), Total: 2}},
			want:  []int{1, 2},
		},
		{
			name: "total matches",
			pages: []evetest.ScriptPage{
				{Items: docs(1, 2), Total: 5, HasNext: true},
				{Items: docs(3, 4), Total: 5, HasNext: true},
				{Items: docs(5), Total: 5},
			},
			want: []int{1, 2, 3, 4, 5},
		},
		{
			name: "server returns more than total",
			pages: []evetest.ScriptPage{
				{Items: docs(1, 2), Total: 2, HasNext: true},
				{Items: docs(3, 4), Total: 2, HasNext: true},
				{Items: docs(5), Total: 2},
			},
			want: []int{1, 2, 3, 4, 5},
		},
		{
			name: "server returns fewer than total",
			pages: []evetest.ScriptPage{
				{Items: docs(1, 2), Total: 100, HasNext: true},
				{Items: docs(3), Total: 100},
			},
			want: []int{1, 2, 3},
		},
		{
			name: "empty middle page",
			pages: []evetest.ScriptPage{
				{Items: docs(1), Total: 2, HasNext: true},
				{Items: nil, Total: 2, HasNext: true},
				{Items: docs(2), Total: 2},
			},
			want: []int{1, 2},
		},
		{
			name: "missing meta still follows links",
			pages: []evetest.ScriptPage{
				{Items: docs(1), OmitMeta: true, HasNext: true},
				{Items: docs(2), OmitMeta: true},
			},
			want: []int{1, 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := evetest.New(t)
			api.Script("c", tt.pages...)
			f := newFetcher(t, api, 2)

			got, err := f.All(context.Background(), q("c"))
			if err != nil {
				t.Fatalf("All: %v", err)
			}
			if fmt.Sprint(ids(t, got)) != fmt.Sprint(tt.want) {
				t.Errorf("ids = %v, want %v", ids(t, got), tt.want)
			}
			if n := len(api.RequestsTo("c")); n != len(tt.pages) {
				t.Errorf("requests = %d, want %d", n, len(tt.pages))
			}
		})
	}
}

func TestAll_ZeroTotalStopsWithoutFollowUp(t *testing.T) {
	api := evetest.New(t)
	api.Script("c",
		evetest.ScriptPage{Total: 0, HasNext: true},
		evetest.ScriptPage{Items: docs(1)},
	)
	f := newFetcher(t, api, 1000)

	got, err := f.All(context.Background(), q("c"))
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
	if got == nil {
		t.Error("All returned nil slice, want empty")
	}
	if n := len(api.Requests()); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
}

func TestAll_NoLinksIsSinglePage(t *testing.T) {
	api := evetest.New(t)
	api.Script("c",
		evetest.ScriptPage{Items: docs(1, 2, 3), Total: 10, OmitLinks: true},
		evetest.ScriptPage{Items: docs(4)},
	)
	f := newFetcher(t, api, 3)

	got, err := f.All(context.Background(), q("c"))
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(got) != 3 || len(api.Requests()) != 1 {
		t.Errorf("docs = %d, requests = %d, want 3 and 1", len(got), len(api.Requests()))
	}
}

func TestAll_SendsQueryParams(t *testing.T) {
	api := evetest.New(t)
	api.Add("layers", document.Of("layer", "cnig_provincias", "id", "01"))
	f := newFetcher(t, api, 250)

	layers := query.Query{
		Collection: "layers",
		Filter:     filter.New().Match("layer", "cnig_provincias"),
		Sort:       "id",
	}
	if _, err := f.All(context.Background(), layers); err != nil {
		t.Fatalf("All: %v", err)
	}
	reqs := api.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d", len(reqs))
	}
	got := reqs[0].Query()
	if got.Get("where") != `{"layer":"cnig_provincias"}` {
		t.Errorf("where = %q", got.Get("where"))
	}
	if got.Get("max_results") != "250" {
		t.Errorf("max_results = %q", got.Get("max_results"))
	}
	if got.Get("projection") != "{}" {
		t.Errorf("projection = %q", got.Get("projection"))
	}
	if got.Get("sort") != "id" {
		t.Errorf("sort = %q", got.Get("sort"))
	}
}

func TestAll_PaginatesStoredCollection(t *testing.T) {
	api := evetest.New(t)
	for i := range 7 {
		api.Add("layers", document.Of("layer", "a", "n", i))
		api.Add("layers", document.Of("layer", "b", "n", 100+i))
	}
	f := newFetcher(t, api, 3)

	got, err := f.All(context.Background(), query.Query{Collection: "layers", Filter: filter.New().Match("layer", "a")})
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if fmt.Sprint(ids(t, got)) != "[0 1 2 3 4 5 6]" {
		t.Errorf("ids = %v", ids(t, got))
	}
	if n := len(api.Requests()); n != 3 {
		t.Errorf("requests = %d, want 3", n)
	}
}

func TestAll_FailureAbortsWithoutPartialResult(t *testing.T) {
	api := evetest.New(t)
	api.Script("c",
		evetest.ScriptPage{Items: docs(1), Total: 3, HasNext: true},
		evetest.ScriptPage{Items: docs(2), Total: 3, HasNext: true},
	)
	// Page 3 is out of the script range and answers 404.
	f := newFetcher(t, api, 1)

	got, err := f.All(context.Background(), q("c"))
	if !errors.Is(err, domain.ErrRemote) {
		t.Fatalf("err = %v, want ErrRemote", err)
	}
	var re *domain.RemoteError
	if !errors.As(err, &re) || re.StatusCode != http.StatusNotFound {
		t.Errorf("RemoteError = %+v", re)
	}
	if got != nil {
		t.Errorf("partial result returned: %d docs", len(got))
	}
}

func TestAll_NonObjectItemIsRemoteError(t *testing.T) {
	api := evetest.New(t)
	api.Script("c", evetest.ScriptPage{Items: []document.Value{document.String("x")}, Total: 1})
	f := newFetcher(t, api, 10)

	if _, err := f.All(context.Background(), q("c")); !errors.Is(err, domain.ErrRemote) {
		t.Errorf("err = %v, want ErrRemote", err)
	}
}

func TestAll_NonObjectItemReportsOverallIndex(t *testing.T) {
	tests := []struct {
		name  string
		pages []evetest.ScriptPage
	}{
		{
			name: "single page",
			pages: []evetest.ScriptPage{
				{Items: append(docs(0, 1, 2), document.Int(7)), Total: 4},
			},
		},
		{
			name: "second page",
			pages: []evetest.ScriptPage{
				{Items: docs(0, 1), Total: 4, HasNext: true},
				{Items: append(docs(2), document.Int(7)), Total: 4},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := evetest.New(t)
			api.Script("c", tt.pages...)
			f := newFetcher(t, api, 2)

			_, err := f.All(context.Background(), q("c"))
			if !errors.Is(err, domain.ErrRemote) {
				t.Fatalf("err = %v, want ErrRemote", err)
			}
			if !strings.Contains(err.Error(), "item 3 is number") {
				t.Errorf("err = %v, want item 3", err)
			}
		})
	}
}

func TestAll_EchoesRequestURL(t *testing.T) {
	api := evetest.New(t)
	api.Add("layers", document.Of("n", 1))
	var buf bytes.Buffer
	f := newFetcher(t, api, 10).WithRequestEcho(&buf)

	if _, err := f.All(context.Background(), q("layers")); err != nil {
		t.Fatalf("All: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "API request: "+api.URL()+"/layers?") {
		t.Errorf("echo = %q", out)
	}
}

func TestFirst(t *testing.T) {
	api := evetest.New(t)
	api.Add("provenance",
		document.Of("storedIn", "layers", "n", 1),
		document.Of("storedIn", "layers", "n", 2),
	)
	f := newFetcher(t, api, 1000)

	d, ok, err := f.First(context.Background(), query.Provenance("layers"))
	if err != nil || !ok {
		t.Fatalf("First = %v, %v", ok, err)
	}
	if n, _ := d.Number("n"); n != 1 {
		t.Errorf("n = %v, want 1", n)
	}
	if mr := api.Requests()[0].Query().Get("max_results"); mr != "1" {
		t.Errorf("max_results = %q, want 1", mr)
	}

	d, ok, err = f.First(context.Background(), query.Provenance("nothing"))
	if err != nil {
		t.Fatalf("First miss: %v", err)
	}
	if ok || d != nil {
		t.Errorf("miss returned ok=%v doc=%v", ok, d)
	}
}

func TestFirst_RemoteError(t *testing.T) {
	api := evetest.New(t)
	api.Raw("provenance", http.StatusInternalServerError, "boom")
	f := newFetcher(t, api, 1000)

	if _, _, err := f.First(context.Background(), query.Provenance("layers")); !errors.Is(err, domain.ErrRemote) {
		t.Errorf("err = %v, want ErrRemote", err)
	}
}

func TestDistinct(t *testing.T) {
	api := evetest.New(t)
	api.SetDistinct(query.CollectionConsolidated, "date",
		document.String("2020-10-10"), document.String("2020-10-11"))
	f := newFetcher(t, api, 1000)

	vals, err := f.Distinct(context.Background(),
		query.Distinct(query.CollectionConsolidated, "date", filter.New().Match("type", "covid19")))
	if err != nil {
		t.Fatalf("Distinct: %v", err)
	}
	if len(vals) != 2 {
		t.Fatalf("len = %d, want 2", len(vals))
	}
	if s, _ := vals[1].AsString(); s != "2020-10-11" {
		t.Errorf("vals[1] = %q", s)
	}
}

type recordingProgress struct {
	started  int
	total    int
	updates  []int
	finished int
}

func (r *recordingProgress) Start(_ string, total int) { r.started++; r.total = total }
func (r *recordingProgress) Update(n int)              { r.updates = append(r.updates, n) }
func (r *recordingProgress) Done(n int)                { r.finished = n }

func TestAll_ReportsProgress(t *testing.T) {
	api := evetest.New(t)
	api.Script("c",
		evetest.ScriptPage{Items: docs(1, 2), Total: 5, HasNext: true},
		evetest.ScriptPage{Items: docs(3, 4), Total: 5, HasNext: true},
		evetest.ScriptPage{Items: docs(5), Total: 5},
	)
	p := &recordingProgress{}
	f := newFetcher(t, api, 2).WithProgress(p)

	if _, err := f.All(context.Background(), q("c")); err != nil {
		t.Fatalf("All: %v", err)
	}
	if p.started != 1 || p.total != 5 {
		t.Errorf("Start called %d times with total %d", p.started, p.total)
	}
	if fmt.Sprint(p.updates) != "[2 4]" {
		t.Errorf("updates = %v", p.updates)
	}
	if p.finished != 5 {
		t.Errorf("Done(%d), want 5", p.finished)
	}
}

func TestLogProgress_Throttles(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	clock := clockwork.NewFakeClock()
	p := NewLogProgress(zap.New(core), clock, 5*time.Second)

	p.Start("layers", 100)
	p.Update(10) // within interval, suppressed
	clock.Advance(6 * time.Second)
	p.Update(20)
	p.Update(30) // suppressed
	clock.Advance(5 * time.Second)
	p.Update(40)
	p.Done(100)

	progress := logs.FilterMessage("download progress").All()
	if len(progress) != 2 {
		t.Fatalf("progress lines = %d, want 2", len(progress))
	}
	if got := progress[0].ContextMap()["fetched"]; got != int64(20) {
		t.Errorf("first progress fetched = %v", got)
	}
	if got := progress[1].ContextMap()["percent"]; got != float64(40) {
		t.Errorf("second progress percent = %v", got)
	}
	if logs.FilterMessage("download finished").Len() != 1 {
		t.Error("missing finish line")
	}
}
