// Package suggest finds candidate article titles and spelling suggestions
// through the go-wiki search client.
package suggest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gowiki "github.com/trietmn/go-wiki"

	apperrors "github.com/olgasafonova/wikiarticles/internal/errors"
	"github.com/olgasafonova/wikiarticles/internal/infra"
	"github.com/olgasafonova/wikiarticles/tracing"
)

const (
	// DefaultLimit is used when a caller passes a non-positive limit
	DefaultLimit = 10

	// MaxLimit caps a single search
	MaxLimit = 50

	cacheTTL = 5 * time.Minute
)

// Result holds the titles matching a query and an optional "did you mean" suggestion.
type Result struct {
	Titles     []string `json:"titles"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Client searches Wikipedia titles. It is safe for concurrent use.
type Client struct {
	// go-wiki keeps its language in package state, so searches run one at a time.
	mu sync.Mutex

	cache       *infra.Cache[Result]
	search      func(query string, limit int, suggest bool) ([]string, string, error)
	setLanguage func(lang string)
}

// New creates a search client backed by go-wiki
func New() *Client {
	return &Client{
		cache:       infra.NewCache[Result](200),
		search:      gowiki.Search,
		setLanguage: func(lang string) { gowiki.SetLanguage(lang) },
	}
}

// Close stops the result cache sweeper
func (c *Client) Close() {
	c.cache.Close()
}

// Search returns up to limit titles for query in the lang edition.
func (c *Client) Search(ctx context.Context, lang, query string, limit int) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, apperrors.NewValidationError("query", "", "query is required")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	key := fmt.Sprintf("%s:%d:%s", lang, limit, strings.ToLower(query))
	if r, ok := c.cache.Get(key); ok {
		return r, nil
	}

	_, span := tracing.StartSpan(ctx, "wiki.search")
	defer span.End()
	tracing.AddWikiAttributes(span, "search", lang, query)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	c.setLanguage(lang)
	titles, suggestion, err := c.search(query, limit, true)
	if err != nil {
		tracing.RecordError(span, err)
		return Result{}, fmt.Errorf("search %q: %w", query, err)
	}
	if titles == nil {
		titles = []string{}
	}

	r := Result{Titles: titles, Suggestion: suggestion}
	c.cache.Set(key, r, cacheTTL)
	return r, nil
}
