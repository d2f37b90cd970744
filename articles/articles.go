// Package articles fetches Wikipedia articles in a configurable language and
// returns them as result records. A failed lookup never returns a Go error:
// it comes back as a record whose only field is the error message.
package articles

import (
	"context"
	"log/slog"
	"strings"

	apperrors "github.com/olgasafonova/wikiarticles/internal/errors"
	"github.com/olgasafonova/wikiarticles/internal/suggest"
	"github.com/olgasafonova/wikiarticles/metrics"
	"github.com/olgasafonova/wikiarticles/wiki"
)

// FullArticleLinkLimit is how many links GetFullArticle includes
const FullArticleLinkLimit = 20

const errTitleRequired = "title is required"

// Lookup resolves pages and their links. *wiki.Client implements it.
type Lookup interface {
	Page(ctx context.Context, lang, title string) (*wiki.Page, error)
	Links(ctx context.Context, lang, title string) ([]string, error)
}

// Searcher finds candidate titles. *suggest.Client implements it.
type Searcher interface {
	Search(ctx context.Context, lang, query string, limit int) (suggest.Result, error)
}

// WikiArticles fetches articles from one language edition at a time.
// It is not safe for concurrent SetLanguage calls.
type WikiArticles struct {
	config    *Config
	client    Lookup
	searcher  Searcher
	logger    *slog.Logger
	linkLimit int
}

// Option configures WikiArticles
type Option func(*WikiArticles)

// WithConfig sets the Config; the facade holds it, so later SetLanguage calls change it
func WithConfig(c *Config) Option {
	return func(w *WikiArticles) {
		if c != nil {
			w.config = c
		}
	}
}

// WithLogger sets a custom logger
func WithLogger(l *slog.Logger) Option {
	return func(w *WikiArticles) {
		w.logger = l
	}
}

// WithSearcher enables Search
func WithSearcher(s Searcher) Option {
	return func(w *WikiArticles) {
		w.searcher = s
	}
}

// WithFullArticleLinkLimit changes how many links GetFullArticle includes
func WithFullArticleLinkLimit(n int) Option {
	return func(w *WikiArticles) {
		if n > 0 {
			w.linkLimit = n
		}
	}
}

// New creates a WikiArticles using client for lookups
func New(client Lookup, opts ...Option) *WikiArticles {
	w := &WikiArticles{
		client:    client,
		logger:    slog.Default(),
		linkLimit: FullArticleLinkLimit,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.config == nil {
		w.config = NewConfig(DefaultLanguage)
	}
	return w
}

// Config returns the held configuration
func (w *WikiArticles) Config() *Config {
	return w.config
}

// SetLanguage changes the language used by subsequent lookups
func (w *WikiArticles) SetLanguage(language string) {
	w.config.SetLanguage(language)
}

// GetFullArticle returns the whole article with its first links.
func (w *WikiArticles) GetFullArticle(ctx context.Context, title string) Article {
	const op = "full_article"
	lang := w.config.Language()

	if strings.TrimSpace(title) == "" {
		return Article{Error: errTitleRequired}
	}

	page, err := w.client.Page(ctx, lang, title)
	if err != nil {
		return Article{Error: w.fail(ctx, op, lang, title, err)}
	}
	links, err := w.client.Links(ctx, lang, title)
	if err != nil {
		return Article{Error: w.fail(ctx, op, lang, title, err)}
	}
	w.succeed(op, lang, page.Title)

	return Article{
		Title:      page.Title,
		URL:        page.URL,
		Summary:    page.Summary,
		FullText:   page.Text,
		Categories: nonNil(page.Categories),
		Links:      head(links, w.linkLimit),
		Sections:   page.TopSections(),
	}
}

// GetSummary returns the lead section of an article.
func (w *WikiArticles) GetSummary(ctx context.Context, title string) Summary {
	const op = "summary"
	lang := w.config.Language()

	if strings.TrimSpace(title) == "" {
		return Summary{Error: errTitleRequired}
	}

	page, err := w.client.Page(ctx, lang, title)
	if err != nil {
		return Summary{Error: w.fail(ctx, op, lang, title, err)}
	}
	w.succeed(op, lang, page.Title)

	return Summary{Title: page.Title, Summary: page.Summary}
}

// GetSections returns the top-level section headings in page order.
func (w *WikiArticles) GetSections(ctx context.Context, title string) Sections {
	const op = "sections"
	lang := w.config.Language()

	if strings.TrimSpace(title) == "" {
		return Sections{Error: errTitleRequired}
	}

	page, err := w.client.Page(ctx, lang, title)
	if err != nil {
		return Sections{Error: w.fail(ctx, op, lang, title, err)}
	}
	w.succeed(op, lang, page.Title)

	return Sections{Title: page.Title, Sections: page.TopSections()}
}

// GetLinks returns the titles an article links to, in source order.
// A limit of zero or less returns every link. The record carries the title as requested.
// Only the link list is fetched, so a disambiguation page succeeds here with its
// candidate titles as links, while the other lookups report it as ambiguous.
func (w *WikiArticles) GetLinks(ctx context.Context, title string, limit int) Links {
	const op = "links"
	lang := w.config.Language()

	if strings.TrimSpace(title) == "" {
		return Links{Error: errTitleRequired}
	}

	links, err := w.client.Links(ctx, lang, title)
	if err != nil {
		return Links{Error: w.fail(ctx, op, lang, title, err)}
	}
	title = strings.TrimSpace(title)
	w.succeed(op, lang, title)

	return Links{
		Title:      title,
		Links:      head(links, limit),
		TotalLinks: len(links),
	}
}

// Search returns titles matching query and a spelling suggestion.
func (w *WikiArticles) Search(ctx context.Context, query string, limit int) SearchResults {
	const op = "search"
	lang := w.config.Language()

	if w.searcher == nil {
		return SearchResults{Error: "search is not configured"}
	}
	r, err := w.searcher.Search(ctx, lang, query, limit)
	if err != nil {
		return SearchResults{Error: w.fail(ctx, op, lang, query, err)}
	}
	w.succeed(op, lang, query)

	return SearchResults{Query: query, Titles: nonNil(r.Titles), Suggestion: r.Suggestion}
}

func (w *WikiArticles) fail(ctx context.Context, op, lang, title string, err error) string {
	code := apperrors.Code(err)
	metrics.RecordLookup(op, metricLanguage(lang), code)

	level := slog.LevelWarn
	if code == "not_found" || code == "ambiguous" || code == "validation" {
		level = slog.LevelInfo
	}
	w.logger.Log(ctx, level, "lookup failed",
		"operation", op,
		"language", lang,
		"title", title,
		"error_code", code,
		"error", err)
	return err.Error()
}

func (w *WikiArticles) succeed(op, lang, title string) {
	metrics.RecordLookup(op, metricLanguage(lang), "")
	w.logger.Debug("lookup succeeded", "operation", op, "language", lang, "title", title)
}

// metricLanguage keeps arbitrary user input out of metric labels.
func metricLanguage(lang string) string {
	if wiki.ValidLanguage(lang) {
		return lang
	}
	return "invalid"
}

// head returns a copy of the first n items, or of all of them when n <= 0.
func head(items []string, n int) []string {
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	return nonNil(items)
}

// nonNil copies items so records never share memory with the client's cache.
func nonNil(items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	return out
}
