// Package wiki is a read-only client for the Wikipedia action API.
// It resolves pages by title and language and lists their outbound links.
package wiki

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/olgasafonova/wikiarticles/internal/base"
	apperrors "github.com/olgasafonova/wikiarticles/internal/errors"
	"github.com/olgasafonova/wikiarticles/internal/infra"
	"github.com/olgasafonova/wikiarticles/metrics"
	"github.com/olgasafonova/wikiarticles/tracing"
)

// maxContinuations bounds how many continue requests one lookup may issue.
const maxContinuations = 100

// disambiguationOptions is how many candidate titles an AmbiguousError carries.
const disambiguationOptions = 10

// PageStore persists lookups across runs. Load reports false for missing or expired keys.
type PageStore interface {
	Load(key string, v any) (bool, error)
	Save(key string, v any) error
	Delete(prefix string) (int, error)
	Close() error
}

// Client resolves Wikipedia pages with caching, request coalescing and an optional persistent store.
type Client struct {
	*base.Client

	config Config
	logger *slog.Logger
	store  PageStore

	pages     *infra.Cache[*Page]
	links     *infra.Cache[[]string]
	pageCalls *infra.Deduplicator[*Page]
	linkCalls *infra.Deduplicator[[]string]
}

type options struct {
	base   []base.ClientOption
	logger *slog.Logger
	store  PageStore
}

// Option configures the Client
type Option func(*options)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.base = append(o.base, base.WithHTTPClient(hc))
	}
}

// WithLogger sets a custom logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
		o.base = append(o.base, base.WithLogger(l))
	}
}

// WithStore enables the persistent page store
func WithStore(s PageStore) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithCircuitBreaker replaces the default circuit breaker
func WithCircuitBreaker(cb *infra.CircuitBreaker) Option {
	return func(o *options) {
		o.base = append(o.base, base.WithCircuitBreaker(cb))
	}
}

// NewClient creates a new Wikipedia client
func NewClient(config Config, opts ...Option) *Client {
	defaults := DefaultConfig()
	if config.APIURL == "" {
		config.APIURL = defaults.APIURL
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	baseOpts := []base.ClientOption{
		base.WithTimeout(config.Timeout),
		base.WithUserAgent(config.UserAgent),
		base.WithMaxRetries(config.MaxRetries),
		base.WithLogger(o.logger),
	}
	baseOpts = append(baseOpts, o.base...)

	pages := infra.NewCache[*Page](config.CacheSize)
	pages.SetObserver(metrics.CacheObserver{})

	return &Client{
		Client:    base.NewClient(baseOpts...),
		config:    config,
		logger:    o.logger,
		store:     o.store,
		pages:     pages,
		links:     infra.NewCache[[]string](config.CacheSize),
		pageCalls: infra.NewDeduplicator[*Page](),
		linkCalls: infra.NewDeduplicator[[]string](),
	}
}

// Close stops the cache sweepers and closes the page store
func (c *Client) Close() error {
	c.pages.Close()
	c.links.Close()
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// Stats returns cache, dedup and circuit breaker state
func (c *Client) Stats() ClientStats {
	return ClientStats{
		CachedPages: c.pages.Len(),
		CachedLinks: c.links.Len(),
		InFlight:    c.pageCalls.InFlight() + c.linkCalls.InFlight(),
		Circuit:     c.CircuitBreaker.State().String(),
		Store:       c.store != nil,
	}
}

// Purge drops every cached page and link list of one language edition,
// in memory and in the page store, and returns how many entries were removed.
func (c *Client) Purge(lang string) int {
	prefix := lang + ":"
	n := c.pages.DeletePrefix(prefix) + c.links.DeletePrefix(prefix)
	if c.store == nil {
		return n
	}
	for _, kind := range []string{"page:", "links:"} {
		removed, err := c.store.Delete(kind + prefix)
		if err != nil {
			c.logger.Warn("Failed to purge page store", "prefix", kind+prefix, "error", err)
			continue
		}
		n += removed
	}
	return n
}

// Page resolves title in the lang edition, following redirects.
// It returns *errors.NotFoundError for missing pages and *errors.AmbiguousError
// for disambiguation pages.
func (c *Client) Page(ctx context.Context, lang, title string) (*Page, error) {
	title, err := checkLookup(lang, title)
	if err != nil {
		return nil, err
	}

	key := cacheKey(lang, title)
	if p, ok := c.pages.Get(key); ok {
		return p, nil
	}

	var stored Page
	if c.loadStored("page:"+key, &stored) {
		c.pages.Set(key, &stored, c.config.CacheTTL)
		return &stored, nil
	}

	p, shared, err := c.pageCalls.Do(ctx, key, func() (*Page, error) {
		return c.fetchPage(ctx, lang, title)
	})
	if err != nil {
		return nil, err
	}
	if !shared {
		c.pages.Set(key, p, c.config.CacheTTL)
		c.saveStored("page:"+key, p)
	}
	return p, nil
}

// Links returns the titles linked from a page, in API order.
func (c *Client) Links(ctx context.Context, lang, title string) ([]string, error) {
	title, err := checkLookup(lang, title)
	if err != nil {
		return nil, err
	}

	key := cacheKey(lang, title)
	if l, ok := c.links.Get(key); ok {
		return l, nil
	}

	var stored []string
	if c.loadStored("links:"+key, &stored) {
		c.links.Set(key, stored, c.config.CacheTTL)
		return stored, nil
	}

	l, shared, err := c.linkCalls.Do(ctx, key, func() ([]string, error) {
		return c.fetchLinks(ctx, lang, title)
	})
	if err != nil {
		return nil, err
	}
	if !shared {
		c.links.Set(key, l, c.config.CacheTTL)
		c.saveStored("links:"+key, l)
	}
	return l, nil
}

func (c *Client) fetchPage(ctx context.Context, lang, title string) (*Page, error) {
	ctx, span := tracing.StartSpan(ctx, "wiki.page")
	defer span.End()
	tracing.AddWikiAttributes(span, "query", lang, title)

	params := url.Values{
		"action":        {"query"},
		"format":        {"json"},
		"formatversion": {"2"},
		"prop":          {"extracts|info|categories|pageprops"},
		"inprop":        {"url"},
		"ppprop":        {"disambiguation"},
		"cllimit":       {"max"},
		"redirects":     {"1"},
		"titles":        {title},
	}

	var page *Page
	var disambiguation bool
	err := c.query(ctx, "query", lang, params, func(resp *queryResponse) error {
		ap, err := firstPage(resp, lang, title)
		if err != nil {
			return err
		}
		if page == nil {
			page = &Page{
				ID:         ap.PageID,
				Title:      ap.Title,
				Language:   lang,
				URL:        ap.FullURL,
				Categories: []string{},
			}
			summary, text, sections, err := parseExtract(ap.Extract)
			if err != nil {
				return err
			}
			page.Summary, page.Text, page.Sections = summary, text, sections
			_, disambiguation = ap.PageProps["disambiguation"]
		}
		for _, cat := range ap.Categories {
			page.Categories = append(page.Categories, cat.Title)
		}
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	if disambiguation {
		options, linkErr := c.fetchLinks(ctx, lang, page.Title)
		if linkErr != nil {
			c.logger.Debug("could not list disambiguation options", "title", page.Title, "error", linkErr)
		}
		if len(options) > disambiguationOptions {
			options = options[:disambiguationOptions]
		}
		err := apperrors.NewAmbiguousError(lang, title, options)
		tracing.RecordError(span, err)
		return nil, err
	}

	metrics.ContentSize.WithLabelValues("page").Observe(float64(len(page.Text)))
	c.logger.Debug("page fetched",
		"language", lang,
		"title", page.Title,
		"sections", len(page.Sections),
		"categories", len(page.Categories))
	return page, nil
}

func (c *Client) fetchLinks(ctx context.Context, lang, title string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "wiki.links")
	defer span.End()
	tracing.AddWikiAttributes(span, "links", lang, title)

	params := url.Values{
		"action":        {"query"},
		"format":        {"json"},
		"formatversion": {"2"},
		"prop":          {"links"},
		"pllimit":       {"max"},
		"redirects":     {"1"},
		"titles":        {title},
	}

	links := []string{}
	err := c.query(ctx, "links", lang, params, func(resp *queryResponse) error {
		ap, err := firstPage(resp, lang, title)
		if err != nil {
			return err
		}
		for _, l := range ap.Links {
			links = append(links, l.Title)
		}
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	return links, nil
}

// query runs an action=query request and follows continue tokens, calling fn once per batch.
func (c *Client) query(ctx context.Context, action, lang string, params url.Values, fn func(*queryResponse) error) error {
	endpoint := c.config.Endpoint(lang)
	for i := 0; i < maxContinuations; i++ {
		var resp queryResponse
		if err := c.GetJSON(ctx, action, endpoint, params, &resp); err != nil {
			return fmt.Errorf("%s %q: %w", action, params.Get("titles"), err)
		}
		if resp.Error != nil {
			return &apperrors.APIError{Code: resp.Error.Code, Info: resp.Error.Info}
		}
		if err := fn(&resp); err != nil {
			return err
		}
		if len(resp.Continue) == 0 {
			return nil
		}
		for k, v := range resp.Continue {
			params.Set(k, fmt.Sprint(v))
		}
	}
	return fmt.Errorf("%s %q: gave up after %d continuation requests", action, params.Get("titles"), maxContinuations)
}

func (c *Client) loadStored(key string, v any) bool {
	if c.store == nil {
		return false
	}
	ok, err := c.store.Load(key, v)
	switch {
	case err != nil:
		metrics.StoreAccess.WithLabelValues("error").Inc()
		c.logger.Warn("page store read failed", "key", key, "error", err)
		return false
	case ok:
		metrics.StoreAccess.WithLabelValues("hit").Inc()
		return true
	default:
		metrics.StoreAccess.WithLabelValues("miss").Inc()
		return false
	}
}

func (c *Client) saveStored(key string, v any) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(key, v); err != nil {
		c.logger.Warn("page store write failed", "key", key, "error", err)
	}
}

func firstPage(resp *queryResponse, lang, title string) (*apiPage, error) {
	if len(resp.Query.Pages) == 0 {
		return nil, fmt.Errorf("query %q: response has no pages", title)
	}
	ap := &resp.Query.Pages[0]
	if ap.Missing || ap.Invalid {
		return nil, apperrors.NewNotFoundError(lang, title)
	}
	return ap, nil
}

func checkLookup(lang, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperrors.NewValidationError("title", "", "title is required")
	}
	if !ValidLanguage(lang) {
		return "", apperrors.NewValidationError("language", lang, "expected a Wikipedia language code such as \"en\"")
	}
	return title, nil
}

// cacheKey treats "Go_(programming_language)" and "Go (programming language)" as the same page.
func cacheKey(lang, title string) string {
	return lang + ":" + strings.ReplaceAll(title, "_", " ")
}
