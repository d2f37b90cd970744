package wiki

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/olgasafonova/wikiarticles/internal/errors"
)

const pythonExtract = `<p><b>Python</b> is a high-level programming language.</p>
<p class="mw-empty-elt"></p>
<p>Its design emphasizes readability.</p>
<h2><span id="History">History</span></h2>
<p>Python was conceived in the late 1980s.</p>
<h3><span id="Python_2">Python 2</span></h3>
<p>Python 2.0 was released in 2000.</p>
<h2><span id="Syntax">Syntax</span></h2>
<ul><li>Indentation</li><li>Dynamic typing</li></ul>
<h2><span id="See_also">See also</span></h2>`

// newTestServer serves canned action=query responses keyed by the prop parameter.
func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") != "query" {
			t.Errorf("unexpected action %q", r.URL.Query().Get("action"))
		}
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, server *httptest.Server, opts ...Option) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.APIURL = server.URL + "/{lang}/w/api.php"
	cfg.MaxRetries = 2
	cfg.Timeout = 5 * time.Second

	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	c := NewClient(cfg, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func pageResponse(extra map[string]any) map[string]any {
	page := map[string]any{
		"pageid":  23862,
		"ns":      0,
		"title":   "Python (programming language)",
		"extract": pythonExtract,
		"fullurl": "https://en.wikipedia.org/wiki/Python_(programming_language)",
		"categories": []map[string]any{
			{"ns": 14, "title": "Category:Programming languages"},
		},
	}
	for k, v := range extra {
		page[k] = v
	}
	return map[string]any{
		"batchcomplete": true,
		"query":         map[string]any{"pages": []any{page}},
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{})
	defer func() { _ = c.Close() }()

	if c.config.APIURL != DefaultAPIURL {
		t.Errorf("APIURL = %q, want %q", c.config.APIURL, DefaultAPIURL)
	}
	if c.UserAgent == "" {
		t.Error("UserAgent should default to a non-empty value")
	}
	if c.config.CacheTTL <= 0 {
		t.Error("CacheTTL should have a default")
	}
}

func TestConfig_Endpoint(t *testing.T) {
	tests := []struct {
		tmpl string
		lang string
		want string
	}{
		{DefaultAPIURL, "en", "https://en.wikipedia.org/w/api.php"},
		{DefaultAPIURL, "es", "https://es.wikipedia.org/w/api.php"},
		{"", "de", "https://de.wikipedia.org/w/api.php"},
		{"http://localhost:8080/api.php", "fr", "http://localhost:8080/api.php"},
	}

	for _, tt := range tests {
		got := Config{APIURL: tt.tmpl}.Endpoint(tt.lang)
		if got != tt.want {
			t.Errorf("Endpoint(%q) with %q = %q, want %q", tt.lang, tt.tmpl, got, tt.want)
		}
	}
}

func TestValidLanguage(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"en", true},
		{"simple", true},
		{"zh-min-nan", true},
		{"be-tarask", true},
		{"", false},
		{"e", false},
		{"EN", false},
		{"en/../x", false},
		{"toolongforalanguage", false},
		{"-en", false},
	}

	for _, tt := range tests {
		if got := ValidLanguage(tt.code); got != tt.want {
			t.Errorf("ValidLanguage(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestPage_Success(t *testing.T) {
	var gotPath string
	var gotQuery map[string]string
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		q := r.URL.Query()
		gotQuery = map[string]string{
			"prop":          q.Get("prop"),
			"formatversion": q.Get("formatversion"),
			"titles":        q.Get("titles"),
			"redirects":     q.Get("redirects"),
		}
		writeJSON(t, w, pageResponse(nil))
	})
	c := newTestClient(t, server)

	page, err := c.Page(context.Background(), "en", "Python (programming language)")
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}

	if gotPath != "/en/w/api.php" {
		t.Errorf("path = %q, want the en endpoint", gotPath)
	}
	if gotQuery["prop"] != "extracts|info|categories|pageprops" {
		t.Errorf("prop = %q", gotQuery["prop"])
	}
	if gotQuery["formatversion"] != "2" || gotQuery["redirects"] != "1" {
		t.Errorf("unexpected params %v", gotQuery)
	}

	if page.Title != "Python (programming language)" {
		t.Errorf("Title = %q", page.Title)
	}
	if page.Language != "en" {
		t.Errorf("Language = %q", page.Language)
	}
	if page.URL != "https://en.wikipedia.org/wiki/Python_(programming_language)" {
		t.Errorf("URL = %q", page.URL)
	}
	wantSummary := "Python is a high-level programming language.\nIts design emphasizes readability."
	if page.Summary != wantSummary {
		t.Errorf("Summary = %q, want %q", page.Summary, wantSummary)
	}
	if !strings.Contains(page.Text, "History\nPython was conceived in the late 1980s.") {
		t.Errorf("Text missing section body:\n%s", page.Text)
	}
	if !strings.Contains(page.Text, "Indentation\nDynamic typing") {
		t.Errorf("Text missing list items:\n%s", page.Text)
	}
	wantSections := []Section{
		{Title: "History", Level: 2},
		{Title: "Python 2", Level: 3},
		{Title: "Syntax", Level: 2},
		{Title: "See also", Level: 2},
	}
	if !reflect.DeepEqual(page.Sections, wantSections) {
		t.Errorf("Sections = %+v, want %+v", page.Sections, wantSections)
	}
	if !reflect.DeepEqual(page.Categories, []string{"Category:Programming languages"}) {
		t.Errorf("Categories = %v", page.Categories)
	}
}

func TestPage_Missing(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"query": map[string]any{"pages": []any{
				map[string]any{"ns": 0, "title": "DefinitelyNotARealArticleTitleXYZ", "missing": true},
			}},
		})
	})
	c := newTestClient(t, server)

	_, err := c.Page(context.Background(), "en", "DefinitelyNotARealArticleTitleXYZ")
	if !apperrors.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if err.Error() != "Page 'DefinitelyNotARealArticleTitleXYZ' does not exist" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestPage_Invalid(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"query": map[string]any{"pages": []any{
				map[string]any{"title": "<>", "invalid": true, "invalidreason": "bad title"},
			}},
		})
	})
	c := newTestClient(t, server)

	if _, err := c.Page(context.Background(), "en", "<>"); !apperrors.IsNotFound(err) {
		t.Errorf("expected NotFoundError for an invalid title, got %v", err)
	}
}

func TestPage_Disambiguation(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("prop") == "links" {
			writeJSON(t, w, map[string]any{
				"query": map[string]any{"pages": []any{
					map[string]any{"title": "Mercury", "links": []any{
						map[string]any{"title": "Mercury (planet)"},
						map[string]any{"title": "Mercury (element)"},
					}},
				}},
			})
			return
		}
		writeJSON(t, w, map[string]any{
			"query": map[string]any{"pages": []any{
				map[string]any{
					"pageid":    1,
					"title":     "Mercury",
					"extract":   "<p>Mercury may refer to:</p>",
					"pageprops": map[string]any{"disambiguation": ""},
				},
			}},
		})
	})
	c := newTestClient(t, server)

	_, err := c.Page(context.Background(), "en", "Mercury")
	var amb *apperrors.AmbiguousError
	if !errors.As(err, &amb) {
		t.Fatalf("expected AmbiguousError, got %v", err)
	}
	if !reflect.DeepEqual(amb.Options, []string{"Mercury (planet)", "Mercury (element)"}) {
		t.Errorf("Options = %v", amb.Options)
	}
}

func TestPage_APIError(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"error": map[string]any{"code": "maxlag", "info": "Waiting for a database server"},
		})
	})
	c := newTestClient(t, server)

	_, err := c.Page(context.Background(), "en", "Go")
	var apiErr *apperrors.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != "maxlag" {
		t.Errorf("Code = %q", apiErr.Code)
	}
}

func TestPage_Validation(t *testing.T) {
	c := NewClient(DefaultConfig())
	defer func() { _ = c.Close() }()

	tests := []struct {
		name  string
		lang  string
		title string
	}{
		{"empty title", "en", ""},
		{"blank title", "en", "   "},
		{"bad language", "EN!", "Go"},
		{"path in language", "en/../x", "Go"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Page(context.Background(), tt.lang, tt.title); !apperrors.IsValidation(err) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestPage_FollowsCategoryContinuation(t *testing.T) {
	var calls int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			resp := pageResponse(nil)
			resp["continue"] = map[string]any{"clcontinue": "23862|Next", "continue": "||"}
			writeJSON(t, w, resp)
			return
		}
		if r.URL.Query().Get("clcontinue") != "23862|Next" {
			t.Errorf("clcontinue = %q", r.URL.Query().Get("clcontinue"))
		}
		writeJSON(t, w, map[string]any{
			"query": map[string]any{"pages": []any{
				map[string]any{"pageid": 23862, "title": "Python (programming language)", "categories": []any{
					map[string]any{"title": "Category:Dynamically typed languages"},
				}},
			}},
		})
	})
	c := newTestClient(t, server)

	page, err := c.Page(context.Background(), "en", "Python (programming language)")
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	want := []string{"Category:Programming languages", "Category:Dynamically typed languages"}
	if !reflect.DeepEqual(page.Categories, want) {
		t.Errorf("Categories = %v, want %v", page.Categories, want)
	}
	if !strings.HasPrefix(page.Summary, "Python is") {
		t.Error("continuation batch must not overwrite the extract")
	}
}

func TestPage_Cached(t *testing.T) {
	var calls int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(t, w, pageResponse(nil))
	})
	c := newTestClient(t, server)

	for range 3 {
		if _, err := c.Page(context.Background(), "en", "Python (programming language)"); err != nil {
			t.Fatalf("Page failed: %v", err)
		}
	}
	// Underscores name the same page
	if _, err := c.Page(context.Background(), "en", "Python_(programming_language)"); err != nil {
		t.Fatalf("Page failed: %v", err)
	}

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("API calls = %d, want 1", n)
	}
	if stats := c.Stats(); stats.CachedPages != 1 {
		t.Errorf("CachedPages = %d, want 1", stats.CachedPages)
	}
}

func TestPage_LanguageIsolated(t *testing.T) {
	var paths []string
	var mu sync.Mutex
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		writeJSON(t, w, pageResponse(nil))
	})
	c := newTestClient(t, server)

	for _, lang := range []string{"en", "es", "en"} {
		if _, err := c.Page(context.Background(), lang, "Python"); err != nil {
			t.Fatalf("Page(%s) failed: %v", lang, err)
		}
	}

	want := []string{"/en/w/api.php", "/es/w/api.php"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}

func TestPage_ConcurrentCallsCoalesce(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		writeJSON(t, w, pageResponse(nil))
	})
	c := newTestClient(t, server)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Page(context.Background(), "en", "Python"); err != nil {
				t.Errorf("Page failed: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("API calls = %d, want 1", n)
	}
}

func TestPage_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(t, w, pageResponse(nil))
	})
	c := newTestClient(t, server)

	if _, err := c.Page(context.Background(), "en", "Python"); err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("API calls = %d, want 2", n)
	}
}

func TestLinks_FollowsContinuation(t *testing.T) {
	var calls int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("prop") != "links" || q.Get("pllimit") != "max" {
			t.Errorf("unexpected params: %v", q)
		}
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			writeJSON(t, w, map[string]any{
				"continue": map[string]any{"plcontinue": "23862|0|Java", "continue": "||"},
				"query": map[string]any{"pages": []any{
					map[string]any{"title": "Python", "links": []any{
						map[string]any{"ns": 0, "title": "C (programming language)"},
						map[string]any{"ns": 0, "title": "Guido van Rossum"},
					}},
				}},
			})
		default:
			if q.Get("plcontinue") != "23862|0|Java" {
				t.Errorf("plcontinue = %q", q.Get("plcontinue"))
			}
			writeJSON(t, w, map[string]any{
				"batchcomplete": true,
				"query": map[string]any{"pages": []any{
					map[string]any{"title": "Python", "links": []any{
						map[string]any{"ns": 0, "title": "Java"},
					}},
				}},
			})
		}
	})
	c := newTestClient(t, server)

	links, err := c.Links(context.Background(), "en", "Python")
	if err != nil {
		t.Fatalf("Links failed: %v", err)
	}
	want := []string{"C (programming language)", "Guido van Rossum", "Java"}
	if !reflect.DeepEqual(links, want) {
		t.Errorf("Links = %v, want %v", links, want)
	}

	// Second call is served from cache
	if _, err := c.Links(context.Background(), "en", "Python"); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("API calls = %d, want 2", n)
	}
}

func TestLinks_NoLinks(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"query": map[string]any{"pages": []any{map[string]any{"title": "Stub"}}},
		})
	})
	c := newTestClient(t, server)

	links, err := c.Links(context.Background(), "en", "Stub")
	if err != nil {
		t.Fatalf("Links failed: %v", err)
	}
	if links == nil || len(links) != 0 {
		t.Errorf("Links = %#v, want empty non-nil slice", links)
	}
}

func TestLinks_Missing(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"query": map[string]any{"pages": []any{map[string]any{"title": "Nope", "missing": true}}},
		})
	})
	c := newTestClient(t, server)

	if _, err := c.Links(context.Background(), "en", "Nope"); !apperrors.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestPurge(t *testing.T) {
	var calls int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(t, w, pageResponse(nil))
	})
	c := newTestClient(t, server)
	ctx := context.Background()

	_, _ = c.Page(ctx, "en", "Python")
	_, _ = c.Page(ctx, "es", "Python")

	if n := c.Purge("en"); n != 1 {
		t.Errorf("Purge() = %d, want 1", n)
	}
	_, _ = c.Page(ctx, "en", "Python")
	_, _ = c.Page(ctx, "es", "Python")

	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("API calls = %d, want 3", n)
	}
}

func TestPurge_PersistentStore(t *testing.T) {
	var calls int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(t, w, pageResponse(nil))
	})
	store := newMemoryStore()
	c := newTestClient(t, server, WithStore(store))
	ctx := context.Background()

	_, _ = c.Page(ctx, "en", "Python")
	_, _ = c.Page(ctx, "es", "Python")

	// one memory entry and one stored entry
	if n := c.Purge("en"); n != 2 {
		t.Errorf("Purge() = %d, want 2", n)
	}
	if _, ok := store.data["page:en:Python"]; ok {
		t.Error("stored page survived the purge")
	}
	if _, ok := store.data["page:es:Python"]; !ok {
		t.Error("purge removed another language from the store")
	}

	_, _ = c.Page(ctx, "en", "Python")
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("API calls = %d, want 3 (purged page must be refetched)", n)
	}
}

// memoryStore is an in-memory PageStore
type memoryStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	loads  int
	closed bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (m *memoryStore) Load(key string, v any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

func (m *memoryStore) Save(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Delete(prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) Close() error {
	m.closed = true
	return nil
}

func TestPage_PersistentStore(t *testing.T) {
	var calls int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(t, w, pageResponse(nil))
	})
	store := newMemoryStore()

	first := newTestClient(t, server, WithStore(store))
	if _, err := first.Page(context.Background(), "en", "Python"); err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if _, ok := store.data["page:en:Python"]; !ok {
		t.Fatalf("page was not persisted, keys: %v", store.data)
	}

	// A fresh client with an empty memory cache reads from the store
	second := newTestClient(t, server, WithStore(store))
	page, err := second.Page(context.Background(), "en", "Python")
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if page.Title != "Python (programming language)" || len(page.Sections) != 4 {
		t.Errorf("stored page = %+v", page)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("API calls = %d, want 1", n)
	}
	if !second.Stats().Store {
		t.Error("Stats should report the store as enabled")
	}
}

func TestClose_ClosesStore(t *testing.T) {
	store := newMemoryStore()
	c := NewClient(DefaultConfig(), WithStore(store))
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !store.closed {
		t.Error("Close should close the store")
	}
}

func TestTopSections(t *testing.T) {
	tests := []struct {
		name     string
		sections []Section
		want     []string
	}{
		{"none", nil, []string{}},
		{
			"nested",
			[]Section{{"History", 2}, {"Early", 3}, {"Usage", 2}},
			[]string{"History", "Usage"},
		},
		{
			"starts deep",
			[]Section{{"Intro", 3}, {"Main", 2}, {"Sub", 3}},
			[]string{"Main"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Page{Sections: tt.sections}
			if got := p.TopSections(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("TopSections() = %v, want %v", got, tt.want)
			}
		})
	}
}
