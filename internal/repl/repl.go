// Package repl runs the interactive console: a bare line prints that article's
// summary, and lines starting with ':' are commands.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/olgasafonova/wikiarticles/articles"
	"github.com/olgasafonova/wikiarticles/internal/render"
	"github.com/olgasafonova/wikiarticles/internal/suggest"
	"github.com/olgasafonova/wikiarticles/wiki"
)

// Prompt is shown before every line
const Prompt = "> "

const helpText = `Type a title to print its summary, or one of:
  :lang [code]        show or change the language
  :article <title>    print the full article
  :sections <title>   list top-level sections
  :links <title> [n]  list links, optionally only the first n
  :search <query>     find matching titles
  :config             print the configuration
  :purge              drop cached pages for the current language
  :stats              print cache and circuit breaker state
  :help               show this help
  :quit               leave
`

// LineReader yields one input line per call and io.EOF at the end.
// *readline.Instance implements it.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

// CacheControl is the part of the lookup client the console manages.
// *wiki.Client implements it.
type CacheControl interface {
	Purge(lang string) int
	Stats() wiki.ClientStats
}

// Session is one console session over a single facade.
type Session struct {
	articles *articles.WikiArticles
	out      *render.Renderer
	cache    CacheControl
	logger   *slog.Logger
}

// Option configures a Session
type Option func(*Session)

// WithCacheControl enables :purge and :stats
func WithCacheControl(c CacheControl) Option {
	return func(s *Session) {
		s.cache = c
	}
}

// WithLogger sets a custom logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// New creates a Session that prints through out.
func New(a *articles.WikiArticles, out *render.Renderer, opts ...Option) *Session {
	s := &Session{articles: a, out: out, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewReadline opens a terminal line editor with the console prompt.
// historyFile may be empty.
func NewReadline(historyFile string) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          Prompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       ":quit",
	})
}

// Run reads lines until EOF, :quit or ctx is done. It closes lr.
func (s *Session) Run(ctx context.Context, lr LineReader) error {
	defer func() {
		_ = lr.Close()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := lr.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read line: %w", err)
		}

		quit, err := s.Execute(ctx, line)
		if err != nil {
			s.logger.Debug("console command failed", "line", line, "error", err)
			if werr := s.out.Error(err); werr != nil {
				return werr
			}
		}
		if quit {
			return nil
		}
	}
}

// Execute runs one input line and reports whether the session should end.
func (s *Session) Execute(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, ":") {
		return false, s.out.Summary(s.articles.GetSummary(ctx, line))
	}

	cmd, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "q", "quit", "exit":
		return true, nil
	case "h", "help":
		return false, s.print(helpText)
	case "lang":
		return false, s.language(arg)
	case "config":
		return false, s.out.Map(s.articles.Config().ToMap())
	case "article":
		if arg == "" {
			return false, errors.New("usage: :article <title>")
		}
		return false, s.out.Article(s.articles.GetFullArticle(ctx, arg))
	case "sections":
		if arg == "" {
			return false, errors.New("usage: :sections <title>")
		}
		return false, s.out.Sections(s.articles.GetSections(ctx, arg))
	case "links":
		if arg == "" {
			return false, errors.New("usage: :links <title> [n]")
		}
		title, limit := splitLimit(arg)
		return false, s.out.Links(s.articles.GetLinks(ctx, title, limit))
	case "search":
		if arg == "" {
			return false, errors.New("usage: :search <query>")
		}
		return false, s.out.Search(s.articles.Search(ctx, arg, suggest.DefaultLimit))
	case "purge":
		if s.cache == nil {
			return false, errors.New("cache control is not available")
		}
		lang := s.articles.Config().Language()
		n := s.cache.Purge(lang)
		return false, s.print(fmt.Sprintf("Purged %d cached entries for %s\n", n, lang))
	case "stats":
		if s.cache == nil {
			return false, errors.New("cache control is not available")
		}
		st := s.cache.Stats()
		return false, s.out.Map(map[string]string{
			"cached_pages": strconv.Itoa(st.CachedPages),
			"cached_links": strconv.Itoa(st.CachedLinks),
			"in_flight":    strconv.Itoa(st.InFlight),
			"circuit":      st.Circuit,
			"store":        strconv.FormatBool(st.Store),
		})
	default:
		return false, fmt.Errorf("unknown command :%s (try :help)", cmd)
	}
}

func (s *Session) language(code string) error {
	if code == "" {
		return s.print(s.articles.Config().String() + "\n")
	}
	if err := articles.NewConfig(code).Validate(); err != nil {
		return err
	}
	s.articles.SetLanguage(code)
	return s.print(s.articles.Config().String() + "\n")
}

func (s *Session) print(text string) error {
	return s.out.Raw(text)
}

// splitLimit separates a trailing count from a title: "Go (language) 5" -> ("Go (language)", 5).
func splitLimit(arg string) (string, int) {
	i := strings.LastIndexByte(arg, ' ')
	if i < 0 {
		return arg, 0
	}
	n, err := strconv.Atoi(arg[i+1:])
	if err != nil || n <= 0 {
		return arg, 0
	}
	return strings.TrimSpace(arg[:i]), n
}
