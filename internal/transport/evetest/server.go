// Package evetest provides an in-process fake of the paginated FlowMaps API
// for tests.
package evetest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/flowmaps/flowmaps-data/internal/domain/document"
)

// Prefix is the path the fake API is mounted under.
const Prefix = "/api"

// ScriptPage is one canned response in a scripted page sequence.
type ScriptPage struct {
	Items     []document.Value
	Total     int
	OmitMeta  bool
	OmitLinks bool
	HasNext   bool
	// AbsoluteNext renders the next link as a full URL instead of a
	// path relative to the API root.
	AbsoluteNext bool
}

type rawResponse struct {
	status int
	body   string
}

// Server is a fake API. Collections are served either from stored documents
// (filtered by the where clause and paginated by max_results/page) or from a
// scripted page sequence.
type Server struct {
	srv *httptest.Server

	mu          sync.Mutex
	collections map[string][]*document.Document
	distinct    map[string][]document.Value
	scripts     map[string][]ScriptPage
	raw         map[string]rawResponse
	requests    []*url.URL
}

// New starts a fake API that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		collections: make(map[string][]*document.Document),
		distinct:    make(map[string][]document.Value),
		scripts:     make(map[string][]ScriptPage),
		raw:         make(map[string]rawResponse),
	}

	r := chi.NewRouter()
	r.Route(Prefix, func(r chi.Router) {
		r.Get("/{collection}", s.handle)
	})
	s.srv = httptest.NewServer(r)
	t.Cleanup(s.srv.Close)
	return s
}

// URL returns the API base URL.
func (s *Server) URL() string { return s.srv.URL + Prefix }

// Add stores documents in a collection.
func (s *Server) Add(collection string, docs ...*document.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], docs...)
}

// SetDistinct sets the values the `distinct` collection returns for a
// (collection, field) pair, whatever the nested query.
func (s *Server) SetDistinct(collection, field string, values ...document.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.distinct[collection+"|"+field] = values
}

// Script makes collection answer with the given pages, selected by the
// 1-based `page` parameter.
func (s *Server) Script(collection string, pages ...ScriptPage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[collection] = pages
}

// Raw makes every request to collection answer with status and body.
func (s *Server) Raw(collection string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[collection] = rawResponse{status: status, body: body}
}

// Requests returns the URLs received so far.
func (s *Server) Requests() []*url.URL {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*url.URL, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestsTo returns the URLs received for one collection.
func (s *Server) RequestsTo(collection string) []*url.URL {
	var out []*url.URL
	for _, u := range s.Requests() {
		if strings.TrimPrefix(u.Path, Prefix+"/") == collection {
			out = append(out, u)
		}
	}
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	q := r.URL.Query()

	s.mu.Lock()
	u := *r.URL
	s.requests = append(s.requests, &u)
	raw, hasRaw := s.raw[collection]
	script, hasScript := s.scripts[collection]
	s.mu.Unlock()

	if hasRaw {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(raw.status)
		_, _ = w.Write([]byte(raw.body))
		return
	}

	page := 1
	if p := q.Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			http.Error(w, "bad page", http.StatusBadRequest)
			return
		}
		page = n
	}

	if hasScript {
		if page > len(script) {
			http.Error(w, "page out of range", http.StatusNotFound)
			return
		}
		s.writeScripted(w, collection, page, script[page-1])
		return
	}

	var where *document.Document
	if raw := q.Get("where"); raw != "" {
		v, err := document.Parse([]byte(raw))
		if err != nil {
			http.Error(w, "bad where: "+err.Error(), http.StatusBadRequest)
			return
		}
		obj, ok := v.AsObject()
		if !ok {
			http.Error(w, "where is not an object", http.StatusBadRequest)
			return
		}
		where = obj
	}

	maxResults := 25
	if m := q.Get("max_results"); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil || n < 1 {
			http.Error(w, "bad max_results", http.StatusBadRequest)
			return
		}
		maxResults = n
	}

	items := s.match(collection, where)
	total := len(items)
	from := min((page-1)*maxResults, total)
	to := min(from+maxResults, total)

	links := document.New()
	if to < total {
		next := url.Values{}
		next.Set("where", q.Get("where"))
		next.Set("max_results", strconv.Itoa(maxResults))
		next.Set("page", strconv.Itoa(page+1))
		links.Set("next", document.Object(document.Of("href", collection+"?"+next.Encode())))
	}
	body := document.Of(
		"_items", items[from:to],
		"_links", links,
		"_meta", document.Of("page", page, "max_results", maxResults, "total", total),
	)
	writeJSON(w, body)
}

func (s *Server) writeScripted(w http.ResponseWriter, collection string, page int, p ScriptPage) {
	items := p.Items
	if items == nil {
		items = []document.Value{}
	}
	body := document.Of("_items", items)
	if !p.OmitLinks {
		links := document.New()
		if p.HasNext {
			href := fmt.Sprintf("%s?page=%d", collection, page+1)
			if p.AbsoluteNext {
				href = s.URL() + "/" + href
			}
			links.Set("next", document.Object(document.Of("href", href)))
		}
		body.Set("_links", document.Object(links))
	}
	if !p.OmitMeta {
		body.Set("_meta", document.Object(document.Of("total", p.Total)))
	}
	writeJSON(w, body)
}

func (s *Server) match(collection string, where *document.Document) []document.Value {
	s.mu.Lock()
	defer s.mu.Unlock()

	if collection == "distinct" {
		var c, f string
		if where != nil {
			c, _ = where.Text("collection")
			f, _ = where.Text("field")
		}
		vals := s.distinct[c+"|"+f]
		out := make([]document.Value, len(vals))
		copy(out, vals)
		return out
	}

	out := []document.Value{}
	for _, d := range s.collections[collection] {
		if matches(d, where) {
			out = append(out, document.Object(d))
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, d *document.Document) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(document.Marshal(document.Object(d)))
}
