// wikiarticles fetches Wikipedia articles in any language edition.
// It runs as a one-shot CLI, an interactive console, or an MCP server over
// stdio or streamable HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/olgasafonova/wikiarticles/articles"
	"github.com/olgasafonova/wikiarticles/internal/render"
	"github.com/olgasafonova/wikiarticles/internal/repl"
	"github.com/olgasafonova/wikiarticles/internal/settings"
	"github.com/olgasafonova/wikiarticles/internal/store"
	"github.com/olgasafonova/wikiarticles/internal/suggest"
	"github.com/olgasafonova/wikiarticles/tracing"
	"github.com/olgasafonova/wikiarticles/wiki"
)

const (
	ServerName    = "wikiarticles"
	ServerVersion = "1.0.0"
)

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// recoverPanic logs a panic instead of crashing the process
func recoverPanic(logger *slog.Logger, operation string) {
	if r := recover(); r != nil {
		logger.Error("Panic recovered",
			"operation", operation,
			"panic", r,
			"stack", string(debug.Stack()))
	}
}

type options struct {
	format      string
	configPath  string
	interactive bool
	mcp         bool
	httpAddr    string
	search      bool
	logLevel    string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := flag.NewFlagSet(ServerName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.format, "format", "text", "output format: text, json or yaml")
	fs.StringVar(&opts.configPath, "config", "", "YAML settings file (default $CONFIG_PATH)")
	fs.BoolVar(&opts.interactive, "i", false, "start the interactive console")
	fs.BoolVar(&opts.mcp, "mcp", false, "serve MCP over stdio")
	fs.StringVar(&opts.httpAddr, "http", "", "serve MCP over streamable HTTP on this address, e.g. :8080")
	fs.BoolVar(&opts.search, "search", false, "treat the argument as a search query")
	fs.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (default $LOG_LEVEL)")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [flags] <article_title> [language]\n\nFlags:\n", ServerName)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	// usage errors are reported before settings are read
	if opts.logLevel != "" {
		if _, err := settings.ParseLevel(opts.logLevel); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitUsage
		}
	}
	format, err := render.ParseFormat(opts.format)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	serving := opts.mcp || opts.httpAddr != ""
	oneShot := !serving && !opts.interactive
	if oneShot && (fs.NArg() < 1 || fs.NArg() > 2) {
		fs.Usage()
		return exitUsage
	}

	var language string
	if fs.NArg() >= 2 {
		language = fs.Arg(1)
		if err := articles.NewConfig(language).Validate(); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitUsage
		}
	}

	s, err := settings.Load(opts.configPath,
		settings.WithLanguage(language),
		settings.WithLogLevel(opts.logLevel))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	// stdout carries results and MCP frames
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: s.LogLevel()}))
	cfg := articles.NewConfig(s.Wiki.Language)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.DefaultConfig())
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
	} else {
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Warn("Tracing shutdown failed", "error", err)
			}
		}()
	}

	client, err := newClient(s, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close client", "error", err)
		}
	}()

	searcher := suggest.New()
	defer searcher.Close()

	switch {
	case serving:
		if err := serve(ctx, opts, s, client, searcher, logger); err != nil {
			logger.Error("Server error", "error", err)
			return exitFailure
		}
		return exitOK

	case opts.interactive:
		w := articles.New(client, articles.WithConfig(cfg), articles.WithLogger(logger), articles.WithSearcher(searcher))
		return console(ctx, w, client, render.New(stdout, format), s, logger)

	default:
		w := articles.New(client, articles.WithConfig(cfg), articles.WithLogger(logger), articles.WithSearcher(searcher))
		return fetch(ctx, w, fs.Arg(0), opts.search, render.New(stdout, format), logger)
	}
}

// newClient builds the Wikipedia client and, when a cache directory is set, its page store.
func newClient(s *settings.Settings, logger *slog.Logger) (*wiki.Client, error) {
	clientOpts := []wiki.Option{wiki.WithLogger(logger)}

	if s.Cache.Dir != "" {
		st, err := store.Open(filepath.Join(s.Cache.Dir, "pages"), s.Cache.StoreTTL, logger)
		if err != nil {
			return nil, fmt.Errorf("open page store: %w", err)
		}
		if n, err := st.Prune(""); err != nil {
			logger.Warn("Failed to prune page store", "error", err)
		} else if n > 0 {
			logger.Info("Pruned expired pages", "removed", n)
		}
		clientOpts = append(clientOpts, wiki.WithStore(st))
	}

	return wiki.NewClient(s.WikiConfig(), clientOpts...), nil
}

// fetch prints one article, or search results, and exits 0 even when the lookup failed.
func fetch(ctx context.Context, w *articles.WikiArticles, arg string, search bool, out *render.Renderer, logger *slog.Logger) int {
	defer recoverPanic(logger, "fetch")

	var err error
	if search {
		err = out.Search(w.Search(ctx, arg, suggest.DefaultLimit))
	} else {
		if err = out.Configuration(w.Config()); err == nil {
			err = out.Article(w.GetFullArticle(ctx, arg))
		}
	}
	if err != nil {
		logger.Error("Failed to write output", "error", err)
		return exitFailure
	}
	return exitOK
}

func console(ctx context.Context, w *articles.WikiArticles, client *wiki.Client, out *render.Renderer, s *settings.Settings, logger *slog.Logger) int {
	var history string
	if s.Cache.Dir != "" {
		history = filepath.Join(s.Cache.Dir, "history")
	}
	rl, err := repl.NewReadline(history)
	if err != nil {
		logger.Error("Failed to start console", "error", err)
		return exitFailure
	}

	session := repl.New(w, out, repl.WithCacheControl(client), repl.WithLogger(logger))
	if err := session.Run(ctx, rl); err != nil {
		logger.Error("Console error", "error", err)
		return exitFailure
	}
	return exitOK
}
