package wiki

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// parseExtract splits an HTML extract into the lead text, the full plain text
// and the section headings.
func parseExtract(html string) (summary, text string, sections []Section, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to parse extract: %w", err)
	}

	var intro, lines []string
	sections = []Section{}
	inLead := true

	doc.Find("body").Children().Each(func(_ int, s *goquery.Selection) {
		if s.HasClass("mw-empty-elt") {
			return
		}
		if level := headingLevel(goquery.NodeName(s)); level > 0 {
			title := cleanText(s.Text())
			if title == "" {
				return
			}
			sections = append(sections, Section{Title: title, Level: level})
			if len(lines) > 0 {
				lines = append(lines, "")
			}
			lines = append(lines, title)
			inLead = false
			return
		}

		block := blockText(s)
		if block == "" {
			return
		}
		if inLead {
			intro = append(intro, block)
		}
		lines = append(lines, block)
	})

	return strings.Join(intro, "\n"), strings.Join(lines, "\n"), sections, nil
}

func headingLevel(tag string) int {
	switch tag {
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

// blockText renders lists one item per line and everything else as a single line.
func blockText(s *goquery.Selection) string {
	switch goquery.NodeName(s) {
	case "ul", "ol", "dl":
		var items []string
		s.ChildrenFiltered("li, dt, dd").Each(func(_ int, item *goquery.Selection) {
			if t := cleanText(item.Text()); t != "" {
				items = append(items, t)
			}
		})
		return strings.Join(items, "\n")
	}
	return cleanText(s.Text())
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
