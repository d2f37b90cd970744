package tools

// ArticleArgs selects one article. It serves the article, summary and sections tools.
type ArticleArgs struct {
	Title    string `json:"title" jsonschema:"Article title, e.g. Python (programming language)"`
	Language string `json:"language,omitempty" jsonschema:"Wikipedia language code such as en, es or de"`
}

// LinksArgs selects an article and how many of its links to return.
type LinksArgs struct {
	Title    string `json:"title" jsonschema:"Article title"`
	Language string `json:"language,omitempty" jsonschema:"Wikipedia language code such as en, es or de"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Return only the first N links; 0 returns all of them"`
}

// SearchArgs is a title search.
type SearchArgs struct {
	Query    string `json:"query" jsonschema:"Search text"`
	Language string `json:"language,omitempty" jsonschema:"Wikipedia language code such as en, es or de"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum number of titles (default 10, max 50)"`
}
