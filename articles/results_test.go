package articles

import (
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestFailedRecordsSerializeOnlyTheError(t *testing.T) {
	const msg = "Page 'Nope' does not exist"
	records := map[string]any{
		"article":  Article{Title: "ignored", Error: msg},
		"summary":  Summary{Error: msg},
		"sections": Sections{Error: msg},
		"links":    Links{TotalLinks: 3, Error: msg},
		"search":   SearchResults{Query: "ignored", Error: msg},
	}

	for name, r := range records {
		t.Run(name, func(t *testing.T) {
			raw, err := json.Marshal(r)
			if err != nil {
				t.Fatal(err)
			}
			if want := `{"error":"Page 'Nope' does not exist"}`; string(raw) != want {
				t.Errorf("json = %s, want %s", raw, want)
			}

			out, err := yaml.Marshal(r)
			if err != nil {
				t.Fatal(err)
			}
			if want := "error: Page 'Nope' does not exist\n"; string(out) != want {
				t.Errorf("yaml = %q, want %q", out, want)
			}
		})
	}
}

func TestSuccessfulRecordsOmitError(t *testing.T) {
	raw, err := json.Marshal(Links{Title: "Go", Links: []string{"C"}, TotalLinks: 1})
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"title":"Go","links":["C"],"total_links":1}`; string(raw) != want {
		t.Errorf("json = %s, want %s", raw, want)
	}

	out, err := yaml.Marshal(Summary{Title: "Go", Summary: "A language."})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(out), "error") {
		t.Errorf("yaml = %q should not contain an error key", out)
	}
}

func TestArticleJSONKeys(t *testing.T) {
	raw, err := json.Marshal(Article{Title: "Go", Categories: []string{}, Links: []string{}, Sections: []string{}})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"title", "url", "summary", "full_text", "categories", "links", "sections"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing key %q in %s", key, raw)
		}
	}
	if len(m) != 7 {
		t.Errorf("got %d keys, want 7", len(m))
	}
}

func TestMap(t *testing.T) {
	tests := []struct {
		name string
		got  map[string]any
		keys []string
	}{
		{"article", Article{Title: "Go"}.Map(), []string{"title", "url", "summary", "full_text", "categories", "links", "sections"}},
		{"summary", Summary{Title: "Go"}.Map(), []string{"title", "summary"}},
		{"sections", Sections{Title: "Go"}.Map(), []string{"title", "sections"}},
		{"links", Links{Title: "Go", TotalLinks: 4}.Map(), []string{"title", "links", "total_links"}},
		{"search", SearchResults{Query: "go"}.Map(), []string{"query", "titles"}},
		{"search with suggestion", SearchResults{Query: "pyton", Suggestion: "python"}.Map(), []string{"query", "titles", "suggestion"}},
		{"failed", Links{Error: "boom"}.Map(), []string{"error"}},
		{"failed search", SearchResults{Error: "boom"}.Map(), []string{"error"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.got) != len(tt.keys) {
				t.Errorf("Map() = %v, want keys %v", tt.got, tt.keys)
			}
			for _, k := range tt.keys {
				if _, ok := tt.got[k]; !ok {
					t.Errorf("Map() missing %q", k)
				}
			}
		})
	}

	if got := (Links{Error: "boom"}).Map()["error"]; got != "boom" {
		t.Errorf("error = %v", got)
	}
}
