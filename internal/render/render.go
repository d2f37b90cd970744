// Package render writes result records as plain text, JSON or YAML.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/olgasafonova/wikiarticles/articles"
	apperrors "github.com/olgasafonova/wikiarticles/internal/errors"
)

// Format selects the output encoding.
type Format string

const (
	Text Format = "text"
	JSON Format = "json"
	YAML Format = "yaml"
)

// metadataSections is how many section titles the text layout lists.
const metadataSections = 5

// ParseFormat accepts text, json or yaml in any case.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case Text, JSON, YAML:
		return f, nil
	default:
		return "", apperrors.NewValidationError("format", name, "expected text, json or yaml")
	}
}

// Renderer writes records to one writer in one format.
type Renderer struct {
	w      io.Writer
	format Format
}

// New creates a Renderer. An empty format means Text.
func New(w io.Writer, format Format) *Renderer {
	if format == "" {
		format = Text
	}
	return &Renderer{w: w, format: format}
}

// Format returns the output format
func (r *Renderer) Format() Format {
	return r.format
}

// Configuration prints the active configuration line. Only the text layout has one.
func (r *Renderer) Configuration(cfg fmt.Stringer) error {
	if r.format != Text {
		return nil
	}
	_, err := fmt.Fprintf(r.w, "Configuration: %s\n", cfg)
	return err
}

// Article writes a full article.
func (r *Renderer) Article(a articles.Article) error {
	if r.format != Text {
		return r.encode(a)
	}
	if a.Failed() {
		return r.failure(a.Error)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", a.Title)
	fmt.Fprintf(&b, "URL: %s\n", a.URL)
	b.WriteString("\n--- FULL ARTICLE ---\n")
	b.WriteString(a.FullText)
	b.WriteString("\n\n--- METADATA ---\n")
	fmt.Fprintf(&b, "Total characters: %d\n", utf8.RuneCountInString(a.FullText))
	sections := a.Sections
	if len(sections) > metadataSections {
		sections = sections[:metadataSections]
	}
	fmt.Fprintf(&b, "Sections: %s...\n", strings.Join(sections, ", "))
	return r.write(b.String())
}

// Summary writes an article summary.
func (r *Renderer) Summary(s articles.Summary) error {
	if r.format != Text {
		return r.encode(s)
	}
	if s.Failed() {
		return r.failure(s.Error)
	}
	return r.write(fmt.Sprintf("Title: %s\n\n%s\n", s.Title, s.Summary))
}

// Sections writes the numbered section list.
func (r *Renderer) Sections(s articles.Sections) error {
	if r.format != Text {
		return r.encode(s)
	}
	if s.Failed() {
		return r.failure(s.Error)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", s.Title)
	if len(s.Sections) == 0 {
		b.WriteString("No sections\n")
	}
	for i, title := range s.Sections {
		fmt.Fprintf(&b, "%3d. %s\n", i+1, title)
	}
	return r.write(b.String())
}

// Links writes the link list with its total.
func (r *Renderer) Links(l articles.Links) error {
	if r.format != Text {
		return r.encode(l)
	}
	if l.Failed() {
		return r.failure(l.Error)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", l.Title)
	fmt.Fprintf(&b, "Links: %d of %d\n", len(l.Links), l.TotalLinks)
	for _, link := range l.Links {
		fmt.Fprintf(&b, "  - %s\n", link)
	}
	return r.write(b.String())
}

// Search writes search candidates and the spelling suggestion.
func (r *Renderer) Search(s articles.SearchResults) error {
	if r.format != Text {
		return r.encode(s)
	}
	if s.Failed() {
		return r.failure(s.Error)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Results for %q: %d\n", s.Query, len(s.Titles))
	for _, title := range s.Titles {
		fmt.Fprintf(&b, "  - %s\n", title)
	}
	if s.Suggestion != "" {
		fmt.Fprintf(&b, "Did you mean: %s?\n", s.Suggestion)
	}
	return r.write(b.String())
}

// Map writes a dictionary such as Config.ToMap, with keys in sorted order for text.
func (r *Renderer) Map(m map[string]string) error {
	if r.format != Text {
		return r.encode(m)
	}
	out, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("render map: %w", err)
	}
	return r.write(string(out))
}

// Error writes a message that did not come from a record.
func (r *Renderer) Error(err error) error {
	if r.format != Text {
		return r.encode(map[string]string{"error": err.Error()})
	}
	return r.failure(err.Error())
}

// Raw writes text as is, in every format.
func (r *Renderer) Raw(text string) error {
	return r.write(text)
}

func (r *Renderer) failure(msg string) error {
	return r.write("Error: " + msg + "\n")
}

func (r *Renderer) encode(v any) error {
	switch r.format {
	case JSON:
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("render json: %w", err)
		}
		return nil
	case YAML:
		enc := yaml.NewEncoder(r.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("render yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("render: unknown format %q", r.format)
	}
}

func (r *Renderer) write(s string) error {
	_, err := io.WriteString(r.w, s)
	return err
}
