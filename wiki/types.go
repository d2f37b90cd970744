package wiki

// Section is one heading of an article, in document order.
type Section struct {
	Title string `json:"title"`
	Level int    `json:"level"` // 2 for "==", 3 for "===", ...
}

// Page is a resolved Wikipedia article.
type Page struct {
	ID         int       `json:"pageid"`
	Title      string    `json:"title"`
	Language   string    `json:"language"`
	URL        string    `json:"url"`
	Summary    string    `json:"summary"`
	Text       string    `json:"text"`
	Sections   []Section `json:"sections"`
	Categories []string  `json:"categories"`
}

// TopSections returns the titles of the outermost headings, skipping subsections.
func (p *Page) TopSections() []string {
	if len(p.Sections) == 0 {
		return []string{}
	}
	top := p.Sections[0].Level
	for _, s := range p.Sections {
		if s.Level < top {
			top = s.Level
		}
	}
	titles := make([]string, 0, len(p.Sections))
	for _, s := range p.Sections {
		if s.Level == top {
			titles = append(titles, s.Title)
		}
	}
	return titles
}

// ClientStats is a snapshot of client state for health reporting.
type ClientStats struct {
	CachedPages int    `json:"cached_pages"`
	CachedLinks int    `json:"cached_links"`
	InFlight    int    `json:"in_flight"`
	Circuit     string `json:"circuit"`
	Store       bool   `json:"store_enabled"`
}

// queryResponse is the formatversion=2 shape of action=query.
type queryResponse struct {
	BatchComplete bool           `json:"batchcomplete"`
	Continue      map[string]any `json:"continue"`
	Query         struct {
		Pages []apiPage `json:"pages"`
	} `json:"query"`
	Error *apiError `json:"error"`
}

type apiPage struct {
	PageID     int               `json:"pageid"`
	Title      string            `json:"title"`
	Missing    bool              `json:"missing"`
	Invalid    bool              `json:"invalid"`
	Extract    string            `json:"extract"`
	FullURL    string            `json:"fullurl"`
	PageProps  map[string]string `json:"pageprops"`
	Categories []apiTitle        `json:"categories"`
	Links      []apiTitle        `json:"links"`
}

type apiTitle struct {
	Title string `json:"title"`
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}
