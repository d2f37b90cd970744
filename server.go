package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/olgasafonova/wikiarticles/internal/settings"
	"github.com/olgasafonova/wikiarticles/internal/suggest"
	"github.com/olgasafonova/wikiarticles/metrics"
	"github.com/olgasafonova/wikiarticles/tools"
	"github.com/olgasafonova/wikiarticles/wiki"
)

const instructions = `wikiarticles reads Wikipedia articles in any language edition.

Available tools:
- wikipedia_get_article: Full article text, summary, categories, sections and the first 20 links
- wikipedia_get_summary: Lead section only
- wikipedia_get_sections: Top-level section headings
- wikipedia_get_links: Outbound links, optionally limited
- wikipedia_search: Find titles when the exact one is unknown

Every tool takes an optional "language" code such as "en", "es" or "de".`

// serve runs the MCP server on stdio, or on HTTP when an address is given, until ctx is done.
func serve(ctx context.Context, opts options, s *settings.Settings, client *wiki.Client, searcher *suggest.Client, logger *slog.Logger) error {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, &mcp.ServerOptions{
		Logger:       logger,
		Instructions: instructions,
	})

	tools.NewHandlerRegistry(client, searcher, s.Wiki.Language, logger).RegisterAll(server)

	if opts.httpAddr == "" {
		logger.Info("Starting MCP server", "name", ServerName, "version", ServerVersion, "transport", "stdio", "language", s.Wiki.Language)
		return server.Run(ctx, &mcp.StdioTransport{})
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/health", healthHandler(client))

	security := NewSecurityMiddleware(mux, logger, SecurityConfig{
		RateLimit:   s.Server.RateLimit,
		MaxBodySize: s.Server.MaxBodySize,
	})
	defer security.Close()

	httpServer := &http.Server{
		Addr:              opts.httpAddr,
		Handler:           security,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		defer recoverPanic(logger, "http server")
		logger.Info("Starting MCP server", "name", ServerName, "version", ServerVersion, "transport", "http", "addr", opts.httpAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// statsSource is the part of the client the health endpoint reports on
type statsSource interface {
	Stats() wiki.ClientStats
}

type healthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Circuit     string `json:"circuit"`
	CachedPages int    `json:"cached_pages"`
	CachedLinks int    `json:"cached_links"`
	InFlight    int    `json:"in_flight"`
	Store       bool   `json:"store"`
}

// healthHandler reports "degraded" with 503 while the circuit breaker is open.
func healthHandler(src statsSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := src.Stats()
		resp := healthResponse{
			Status:      "ok",
			Version:     ServerVersion,
			Circuit:     st.Circuit,
			CachedPages: st.CachedPages,
			CachedLinks: st.CachedLinks,
			InFlight:    st.InFlight,
			Store:       st.Store,
		}
		code := http.StatusOK
		if st.Circuit == "open" {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	})
}

// RateLimiter is a per-IP token bucket.
type RateLimiter struct {
	rate     int
	interval time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket

	stopCh    chan struct{}
	closeOnce sync.Once
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewRateLimiter allows rate requests per interval for each IP.
func NewRateLimiter(rate int, interval time.Duration) *RateLimiter {
	rl := &RateLimiter{
		rate:     rate,
		interval: interval,
		buckets:  make(map[string]*bucket),
		stopCh:   make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow takes one token from ip's bucket
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{tokens: float64(rl.rate), last: now}
		rl.buckets[ip] = b
	}

	elapsed := now.Sub(b.last)
	b.last = now
	b.tokens += float64(rl.rate) * float64(elapsed) / float64(rl.interval)
	if b.tokens > float64(rl.rate) {
		b.tokens = float64(rl.rate)
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.stopCh)
	})
}

// cleanupLoop drops buckets that have been idle long enough to be full again.
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for ip, b := range rl.buckets {
				if now.Sub(b.last) > rl.interval {
					delete(rl.buckets, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// SecurityConfig configures the HTTP security middleware
type SecurityConfig struct {
	// RateLimit is requests per minute per IP; 0 disables limiting
	RateLimit int

	// MaxBodySize caps request bodies in bytes; 0 disables the cap
	MaxBodySize int64
}

// SecurityMiddleware applies rate limiting and body size limits, and counts responses.
type SecurityMiddleware struct {
	next    http.Handler
	logger  *slog.Logger
	config  SecurityConfig
	limiter *RateLimiter
}

// NewSecurityMiddleware wraps next
func NewSecurityMiddleware(next http.Handler, logger *slog.Logger, config SecurityConfig) *SecurityMiddleware {
	sm := &SecurityMiddleware{next: next, logger: logger, config: config}
	if config.RateLimit > 0 {
		sm.limiter = NewRateLimiter(config.RateLimit, time.Minute)
	}
	return sm
}

func (sm *SecurityMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
	}()

	if sm.limiter != nil {
		ip := clientIP(r)
		if !sm.limiter.Allow(ip) {
			metrics.RateLimitRejections.Inc()
			sm.logger.Warn("Rate limit exceeded", "ip", ip, "path", r.URL.Path)
			http.Error(rec, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
	}

	if sm.config.MaxBodySize > 0 && r.Body != nil {
		r.Body = http.MaxBytesReader(rec, r.Body, sm.config.MaxBodySize)
	}

	sm.next.ServeHTTP(rec, r)
}

// Close stops the rate limiter
func (sm *SecurityMiddleware) Close() {
	if sm.limiter != nil {
		sm.limiter.Close()
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the recorder.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
