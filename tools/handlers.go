package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/olgasafonova/wikiarticles/articles"
	"github.com/olgasafonova/wikiarticles/metrics"
	"github.com/olgasafonova/wikiarticles/tracing"
)

// HandlerRegistry provides type-safe tool registration by mapping
// tool names to their concrete handler implementations.
type HandlerRegistry struct {
	client          articles.Lookup
	searcher        articles.Searcher
	defaultLanguage string
	logger          *slog.Logger
}

// NewHandlerRegistry creates a new handler registry. searcher may be nil,
// in which case wikipedia_search reports that search is not configured.
func NewHandlerRegistry(client articles.Lookup, searcher articles.Searcher, defaultLanguage string, logger *slog.Logger) *HandlerRegistry {
	return &HandlerRegistry{
		client:          client,
		searcher:        searcher,
		defaultLanguage: defaultLanguage,
		logger:          logger,
	}
}

// RegisterAll registers all tools with the MCP server.
func (h *HandlerRegistry) RegisterAll(server *mcp.Server) {
	for _, spec := range AllTools {
		h.registerByName(server, spec)
	}
	h.logger.Info("Registered all tools", "count", len(AllTools))
}

// registerByName dispatches to the correct typed registration function.
func (h *HandlerRegistry) registerByName(server *mcp.Server, spec ToolSpec) {
	tool := h.buildTool(spec)

	switch spec.Method {
	case "GetArticle":
		register(h, server, tool, spec, h.GetArticle)
	case "GetSummary":
		register(h, server, tool, spec, h.GetSummary)
	case "GetSections":
		register(h, server, tool, spec, h.GetSections)
	case "GetLinks":
		register(h, server, tool, spec, h.GetLinks)
	case "Search":
		register(h, server, tool, spec, h.Search)
	default:
		h.logger.Error("Unknown method, tool not registered", "method", spec.Method, "tool", spec.Name)
	}
}

// buildTool creates an mcp.Tool from a ToolSpec.
func (h *HandlerRegistry) buildTool(spec ToolSpec) *mcp.Tool {
	annotations := &mcp.ToolAnnotations{
		Title:          spec.Title,
		ReadOnlyHint:   spec.ReadOnly,
		IdempotentHint: spec.Idempotent,
	}
	if spec.Destructive {
		annotations.DestructiveHint = ptr(true)
	}
	if spec.OpenWorld {
		annotations.OpenWorldHint = ptr(true)
	}

	return &mcp.Tool{
		Name:        spec.Name,
		Description: spec.Description,
		Annotations: annotations,
	}
}

// register is a generic helper that registers a tool with the MCP server.
// It wraps the handler with panic recovery, metrics, tracing, and logging.
func register[Args, Result any](
	h *HandlerRegistry,
	server *mcp.Server,
	tool *mcp.Tool,
	spec ToolSpec,
	method func(context.Context, Args) (Result, error),
) {
	mcp.AddTool(server, tool, func(ctx context.Context, req *mcp.CallToolRequest, args Args) (*mcp.CallToolResult, Result, error) {
		return invoke(ctx, h, spec, method, args)
	})
}

// invoke runs one tool call with the shared instrumentation.
func invoke[Args, Result any](
	ctx context.Context,
	h *HandlerRegistry,
	spec ToolSpec,
	method func(context.Context, Args) (Result, error),
	args Args,
) (_ *mcp.CallToolResult, result Result, err error) {
	callID := uuid.NewString()
	defer h.recoverPanic(spec.Name, callID, &err)

	ctx, span := tracing.StartSpan(ctx, "mcp.tool."+spec.Name)
	defer span.End()

	tracing.AddToolAttributes(span, spec.Name, spec.Category)
	span.SetAttributes(
		attribute.String("mcp.call_id", callID),
		attribute.Bool("mcp.tool.readonly", spec.ReadOnly),
	)

	metrics.RequestInFlight.WithLabelValues(spec.Name).Inc()
	defer metrics.RequestInFlight.WithLabelValues(spec.Name).Dec()

	start := time.Now()
	result, err = method(ctx, args)
	duration := time.Since(start).Seconds()

	span.SetAttributes(attribute.Float64("mcp.tool.duration_seconds", duration))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordRequest(spec.Name, duration, false)
		h.logger.Info("Tool failed", "tool", spec.Name, "call_id", callID, "error", err)
		var zero Result
		return nil, zero, fmt.Errorf("%s failed: %w", spec.Name, err)
	}

	span.SetStatus(codes.Ok, "")
	metrics.RecordRequest(spec.Name, duration, true)
	h.logExecution(spec, callID, args, result)
	return nil, result, nil
}

// recoverPanic recovers from panics in tool handlers and turns them into a tool error.
func (h *HandlerRegistry) recoverPanic(toolName, callID string, errp *error) {
	if rec := recover(); rec != nil {
		metrics.PanicsRecovered.WithLabelValues(toolName).Inc()
		h.logger.Error("Panic recovered",
			"tool", toolName,
			"call_id", callID,
			"panic", rec,
			"stack", string(debug.Stack()))
		*errp = fmt.Errorf("%s failed: internal error", toolName)
	}
}

// logExecution logs tool execution details.
func (h *HandlerRegistry) logExecution(spec ToolSpec, callID string, args, result any) {
	attrs := []any{"tool", spec.Name, "call_id", callID}

	switch a := args.(type) {
	case ArticleArgs:
		attrs = append(attrs, "title", a.Title, "language", h.language(a.Language))
	case LinksArgs:
		attrs = append(attrs, "title", a.Title, "language", h.language(a.Language), "limit", a.Limit)
	case SearchArgs:
		attrs = append(attrs, "query", a.Query, "language", h.language(a.Language))
	}

	switch r := result.(type) {
	case articles.Article:
		attrs = append(attrs, "output_chars", len(r.FullText), "sections", len(r.Sections), "links", len(r.Links))
	case articles.Summary:
		attrs = append(attrs, "output_chars", len(r.Summary))
	case articles.Sections:
		attrs = append(attrs, "sections", len(r.Sections))
	case articles.Links:
		attrs = append(attrs, "links", len(r.Links), "total_links", r.TotalLinks)
	case articles.SearchResults:
		attrs = append(attrs, "results_count", len(r.Titles))
	}

	h.logger.Info("Tool executed", attrs...)
}

func (h *HandlerRegistry) language(requested string) string {
	if requested == "" {
		return articles.NewConfig(h.defaultLanguage).Language()
	}
	return articles.NewConfig(requested).Language()
}

// facade builds a WikiArticles for one call. Facades are not shared between
// calls because SetLanguage is not safe for concurrent use.
func (h *HandlerRegistry) facade(language string) (*articles.WikiArticles, error) {
	cfg := articles.NewConfig(h.language(language))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := []articles.Option{articles.WithConfig(cfg), articles.WithLogger(h.logger)}
	if h.searcher != nil {
		opts = append(opts, articles.WithSearcher(h.searcher))
	}
	return articles.New(h.client, opts...), nil
}

// GetArticle handles wikipedia_get_article.
func (h *HandlerRegistry) GetArticle(ctx context.Context, args ArticleArgs) (articles.Article, error) {
	w, err := h.facade(args.Language)
	if err != nil {
		return articles.Article{}, err
	}
	r := w.GetFullArticle(ctx, args.Title)
	if r.Failed() {
		return articles.Article{}, errors.New(r.Error)
	}
	return r, nil
}

// GetSummary handles wikipedia_get_summary.
func (h *HandlerRegistry) GetSummary(ctx context.Context, args ArticleArgs) (articles.Summary, error) {
	w, err := h.facade(args.Language)
	if err != nil {
		return articles.Summary{}, err
	}
	r := w.GetSummary(ctx, args.Title)
	if r.Failed() {
		return articles.Summary{}, errors.New(r.Error)
	}
	return r, nil
}

// GetSections handles wikipedia_get_sections.
func (h *HandlerRegistry) GetSections(ctx context.Context, args ArticleArgs) (articles.Sections, error) {
	w, err := h.facade(args.Language)
	if err != nil {
		return articles.Sections{}, err
	}
	r := w.GetSections(ctx, args.Title)
	if r.Failed() {
		return articles.Sections{}, errors.New(r.Error)
	}
	return r, nil
}

// GetLinks handles wikipedia_get_links.
func (h *HandlerRegistry) GetLinks(ctx context.Context, args LinksArgs) (articles.Links, error) {
	w, err := h.facade(args.Language)
	if err != nil {
		return articles.Links{}, err
	}
	r := w.GetLinks(ctx, args.Title, args.Limit)
	if r.Failed() {
		return articles.Links{}, errors.New(r.Error)
	}
	return r, nil
}

// Search handles wikipedia_search.
func (h *HandlerRegistry) Search(ctx context.Context, args SearchArgs) (articles.SearchResults, error) {
	w, err := h.facade(args.Language)
	if err != nil {
		return articles.SearchResults{}, err
	}
	r := w.Search(ctx, args.Query, args.Limit)
	if r.Failed() {
		return articles.SearchResults{}, errors.New(r.Error)
	}
	return r, nil
}
