package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/olgasafonova/wikiarticles/articles"
	"github.com/olgasafonova/wikiarticles/wiki"
)

func newClient() *wiki.Client {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return wiki.NewClient(wiki.DefaultConfig(), wiki.WithLogger(logger))
}

// measureCachePerformance compares a network lookup with a cached one
func measureCachePerformance(ctx context.Context, lang, title string) {
	client := newClient()
	defer func() { _ = client.Close() }()

	fmt.Println("=== Cache Performance Test ===")
	fmt.Println()

	fmt.Println("1. Page Cache Test:")
	start := time.Now()
	page, err := client.Page(ctx, lang, title)
	if err != nil {
		fmt.Printf("   Error: %v\n", err)
		return
	}
	firstCall := time.Since(start)
	fmt.Printf("   First call (network):  %v (%d chars, %d sections)\n", firstCall, len(page.Text), len(page.Sections))

	start = time.Now()
	_, _ = client.Page(ctx, lang, title)
	secondCall := time.Since(start)
	fmt.Printf("   Second call (cached):  %v\n", secondCall)
	fmt.Printf("   Speedup: %.0fx faster\n", float64(firstCall)/float64(secondCall))
	fmt.Println()

	fmt.Println("2. Links (follows continuation):")
	start = time.Now()
	links, err := client.Links(ctx, lang, title)
	if err != nil {
		fmt.Printf("   Error: %v\n", err)
		return
	}
	fmt.Printf("   %d links in %v\n", len(links), time.Since(start))
	fmt.Println()
}

// measureCoalescing fires concurrent lookups for one title on a cold client
func measureCoalescing(ctx context.Context, lang, title string, callers int) {
	client := newClient()
	defer func() { _ = client.Close() }()

	fmt.Println("=== Request Coalescing ===")
	fmt.Println()
	fmt.Printf("3. %d concurrent lookups of %q:\n", callers, title)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = client.Page(ctx, lang, title)
		}()
	}
	wg.Wait()
	fmt.Printf("   Total time: %v\n", time.Since(start))
	fmt.Printf("   Cached pages afterwards: %d (one fetch shared by all callers)\n", client.Stats().CachedPages)
	fmt.Println()
}

// measureFacade times the operations the CLI exposes
func measureFacade(ctx context.Context, lang, title string) {
	client := newClient()
	defer func() { _ = client.Close() }()
	w := articles.New(client, articles.WithConfig(articles.NewConfig(lang)))

	fmt.Println("=== Facade Operations ===")
	fmt.Println()

	ops := []struct {
		name string
		fn   func() string
	}{
		{"GetFullArticle", func() string { return w.GetFullArticle(ctx, title).Error }},
		{"GetSummary", func() string { return w.GetSummary(ctx, title).Error }},
		{"GetSections", func() string { return w.GetSections(ctx, title).Error }},
		{"GetLinks(5)", func() string { return w.GetLinks(ctx, title, 5).Error }},
	}
	for i, op := range ops {
		start := time.Now()
		if msg := op.fn(); msg != "" {
			fmt.Printf("%d. %s: error: %s\n", i+4, op.name, msg)
			continue
		}
		fmt.Printf("%d. %s: %v\n", i+4, op.name, time.Since(start))
	}
	fmt.Println()
}

func main() {
	lang := flag.String("lang", "en", "language edition")
	title := flag.String("title", "Go (programming language)", "article to fetch")
	callers := flag.Int("callers", 10, "concurrent callers for the coalescing test")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Println("wikiarticles - Performance Measurements")
	fmt.Println("=======================================")
	fmt.Println()

	measureCachePerformance(ctx, *lang, *title)
	measureCoalescing(ctx, *lang, *title, *callers)
	measureFacade(ctx, *lang, *title)

	fmt.Println("=== Summary ===")
	fmt.Println()
	fmt.Println("Key properties:")
	fmt.Println("• Caching: repeated lookups are served from memory")
	fmt.Println("• Coalescing: concurrent lookups of one title share a single request")
	fmt.Println("• Facade: summary and sections reuse the cached page from the full article")
}
