package articles

import "encoding/json"

// errorRecord is how every failed result serializes.
type errorRecord struct {
	Error string `json:"error" yaml:"error"`
}

// Article is the result of GetFullArticle.
type Article struct {
	Title      string   `json:"title" yaml:"title"`
	URL        string   `json:"url" yaml:"url"`
	Summary    string   `json:"summary" yaml:"summary"`
	FullText   string   `json:"full_text" yaml:"full_text"`
	Categories []string `json:"categories" yaml:"categories"`
	Links      []string `json:"links" yaml:"links"`
	Sections   []string `json:"sections" yaml:"sections"`
	Error      string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summary is the result of GetSummary.
type Summary struct {
	Title   string `json:"title" yaml:"title"`
	Summary string `json:"summary" yaml:"summary"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Sections is the result of GetSections.
type Sections struct {
	Title    string   `json:"title" yaml:"title"`
	Sections []string `json:"sections" yaml:"sections"`
	Error    string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Links is the result of GetLinks. TotalLinks counts every link, before any limit.
type Links struct {
	Title      string   `json:"title" yaml:"title"`
	Links      []string `json:"links" yaml:"links"`
	TotalLinks int      `json:"total_links" yaml:"total_links"`
	Error      string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// SearchResults is the result of Search.
type SearchResults struct {
	Query      string   `json:"query" yaml:"query"`
	Titles     []string `json:"titles" yaml:"titles"`
	Suggestion string   `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
	Error      string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed reports whether the lookup failed
func (a Article) Failed() bool { return a.Error != "" }

// Failed reports whether the lookup failed
func (s Summary) Failed() bool { return s.Error != "" }

// Failed reports whether the lookup failed
func (s Sections) Failed() bool { return s.Error != "" }

// Failed reports whether the lookup failed
func (l Links) Failed() bool { return l.Error != "" }

// Failed reports whether the search failed
func (s SearchResults) Failed() bool { return s.Error != "" }

// A failed record carries nothing but its error, in every encoding.

func (a Article) MarshalJSON() ([]byte, error) {
	if a.Failed() {
		return json.Marshal(errorRecord{a.Error})
	}
	type plain Article
	return json.Marshal(plain(a))
}

func (a Article) MarshalYAML() (any, error) {
	if a.Failed() {
		return errorRecord{a.Error}, nil
	}
	type plain Article
	return plain(a), nil
}

func (s Summary) MarshalJSON() ([]byte, error) {
	if s.Failed() {
		return json.Marshal(errorRecord{s.Error})
	}
	type plain Summary
	return json.Marshal(plain(s))
}

func (s Summary) MarshalYAML() (any, error) {
	if s.Failed() {
		return errorRecord{s.Error}, nil
	}
	type plain Summary
	return plain(s), nil
}

func (s Sections) MarshalJSON() ([]byte, error) {
	if s.Failed() {
		return json.Marshal(errorRecord{s.Error})
	}
	type plain Sections
	return json.Marshal(plain(s))
}

func (s Sections) MarshalYAML() (any, error) {
	if s.Failed() {
		return errorRecord{s.Error}, nil
	}
	type plain Sections
	return plain(s), nil
}

func (l Links) MarshalJSON() ([]byte, error) {
	if l.Failed() {
		return json.Marshal(errorRecord{l.Error})
	}
	type plain Links
	return json.Marshal(plain(l))
}

func (l Links) MarshalYAML() (any, error) {
	if l.Failed() {
		return errorRecord{l.Error}, nil
	}
	type plain Links
	return plain(l), nil
}

func (s SearchResults) MarshalJSON() ([]byte, error) {
	if s.Failed() {
		return json.Marshal(errorRecord{s.Error})
	}
	type plain SearchResults
	return json.Marshal(plain(s))
}

func (s SearchResults) MarshalYAML() (any, error) {
	if s.Failed() {
		return errorRecord{s.Error}, nil
	}
	type plain SearchResults
	return plain(s), nil
}

// Map returns the record as a plain map keyed like its JSON form
func (a Article) Map() map[string]any {
	if a.Failed() {
		return map[string]any{"error": a.Error}
	}
	return map[string]any{
		"title":      a.Title,
		"url":        a.URL,
		"summary":    a.Summary,
		"full_text":  a.FullText,
		"categories": a.Categories,
		"links":      a.Links,
		"sections":   a.Sections,
	}
}

// Map returns the record as a plain map keyed like its JSON form
func (s Summary) Map() map[string]any {
	if s.Failed() {
		return map[string]any{"error": s.Error}
	}
	return map[string]any{"title": s.Title, "summary": s.Summary}
}

// Map returns the record as a plain map keyed like its JSON form
func (s Sections) Map() map[string]any {
	if s.Failed() {
		return map[string]any{"error": s.Error}
	}
	return map[string]any{"title": s.Title, "sections": s.Sections}
}

// Map returns the record as a plain map keyed like its JSON form
func (l Links) Map() map[string]any {
	if l.Failed() {
		return map[string]any{"error": l.Error}
	}
	return map[string]any{"title": l.Title, "links": l.Links, "total_links": l.TotalLinks}
}

// Map returns the record as a plain map keyed like its JSON form
func (s SearchResults) Map() map[string]any {
	if s.Failed() {
		return map[string]any{"error": s.Error}
	}
	m := map[string]any{"query": s.Query, "titles": s.Titles}
	if s.Suggestion != "" {
		m["suggestion"] = s.Suggestion
	}
	return m
}
