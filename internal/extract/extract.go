// Package extract pulls the candidate profile text out of a page snapshot.
package extract

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/spigell/liqa/internal/dom"
	"github.com/spigell/liqa/internal/locator"
)

// Fields are read in this order inside the profile container.
var Fields = []string{
	".pagination-header__header-text",
	"[data-test-row-lockup-full-name]",
	"[data-test-row-lockup-headline]",
	"[data-test-summary-card-text]",
	"[data-test-position-list-container]",
	"[data-test-education-item]",
}

const separator = "\n\n"

// ProfileText joins the non-empty texts of every field match. It returns an
// empty string when the profile container is absent.
func ProfileText(doc *dom.Document) string {
	if doc == nil {
		return ""
	}

	container, ok := doc.First(locator.MainRegion)
	if !ok {
		return ""
	}

	var texts []string
	for _, field := range Fields {
		matches, err := container.Query(field)
		if err != nil {
			continue
		}
		for _, m := range matches {
			if text := m.Text(); text != "" {
				texts = append(texts, text)
			}
		}
	}

	return strings.TrimSpace(norm.NFKC.String(strings.Join(texts, separator)))
}
