package tools

// AllTools contains all tool specifications for the Wikipedia articles server.
// Tool descriptions follow a structured format for LLM tool selection:
// - USE WHEN: Natural language triggers
// - NOT FOR: Disambiguation from similar tools
// - PARAMETERS: Key arguments with defaults
// - RETURNS: What the tool returns
var AllTools = []ToolSpec{
	// ==========================================================================
	// READ TOOLS
	// ==========================================================================
	{
		Name:     "wikipedia_get_article",
		Method:   "GetArticle",
		Title:    "Get Wikipedia Article",
		Category: "read",
		Description: `Retrieve a whole Wikipedia article: plain text, summary, categories, top-level sections and the first 20 links.

USE WHEN: User says "read the Wikipedia article on X", "give me everything about X", "what does Wikipedia say about X".

NOT FOR: A quick definition (use wikipedia_get_summary). Not for all links (use wikipedia_get_links).

PARAMETERS:
- title: Article title (required). Redirects are followed.
- language: Wikipedia language code, e.g. "en", "es", "de" (default from server config)

RETURNS: title, url, summary, full_text, categories, links, sections.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
	{
		Name:     "wikipedia_get_summary",
		Method:   "GetSummary",
		Title:    "Get Article Summary",
		Category: "read",
		Description: `Get the lead section of a Wikipedia article.

USE WHEN: User asks "what is X", "summarize X", "short description of X".

NOT FOR: The full article text (use wikipedia_get_article).

PARAMETERS:
- title: Article title (required)
- language: Wikipedia language code (default from server config)

RETURNS: title and summary.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
	{
		Name:     "wikipedia_get_sections",
		Method:   "GetSections",
		Title:    "Get Article Sections",
		Category: "read",
		Description: `List the top-level section headings of a Wikipedia article in page order.

USE WHEN: User asks "what does the article on X cover", "table of contents for X".

PARAMETERS:
- title: Article title (required)
- language: Wikipedia language code (default from server config)

RETURNS: title and sections.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
	{
		Name:     "wikipedia_get_links",
		Method:   "GetLinks",
		Title:    "Get Article Links",
		Category: "read",
		Description: `List the pages a Wikipedia article links to, in source order.

USE WHEN: User asks "what is X related to", "which articles does X link to".

PARAMETERS:
- title: Article title (required)
- language: Wikipedia language code (default from server config)
- limit: Return only the first N links (default all)

RETURNS: title, links and total_links (the count before the limit).`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},

	// ==========================================================================
	// SEARCH TOOLS
	// ==========================================================================
	{
		Name:     "wikipedia_search",
		Method:   "Search",
		Title:    "Search Wikipedia Titles",
		Category: "search",
		Description: `Find Wikipedia article titles matching a query, with a spelling suggestion.

USE WHEN: The exact title is unknown, or another tool returned "does not exist" or "disambiguation page".

PARAMETERS:
- query: Search text (required)
- language: Wikipedia language code (default from server config)
- limit: Max titles (default 10, max 50)

RETURNS: query, titles and an optional suggestion.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
}
