// Package locator resolves the four page actions to concrete elements.
package locator

import (
	"fmt"
	"strings"

	"github.com/spigell/liqa/internal/dom"
	"github.com/spigell/liqa/internal/settings"
)

// Page regions queries are scoped to.
const (
	HeaderRegion = "[data-test-pagination-header]"
	MainRegion   = "[data-live-test-profile-container]"
)

const (
	actionGroup  = ".shared-action-buttons, .profile-item-actions, .profile-item-actions__act"
	groupHideBtn = `button[data-live-test-component="hide-btn"]`

	// MaxTestMatches bounds how many matches a selector test highlights.
	MaxTestMatches = 6
)

// Kind is one of the four page actions.
type Kind int

const (
	Next Kind = iota
	Prev
	Save
	Hide
)

// Kinds lists every action in key order.
var Kinds = []Kind{Next, Prev, Save, Hide}

// ParseKind converts an action name into a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "next":
		return Next, nil
	case "prev", "previous":
		return Prev, nil
	case "save":
		return Save, nil
	case "hide":
		return Hide, nil
	default:
		return 0, fmt.Errorf("unknown action %q", name)
	}
}

func (k Kind) String() string {
	switch k {
	case Next:
		return "next"
	case Prev:
		return "prev"
	case Save:
		return "save"
	case Hide:
		return "hide"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Region returns the page region the action lives in.
func (k Kind) Region() string {
	switch k {
	case Next, Prev:
		return HeaderRegion
	case Save, Hide:
		return MainRegion
	default:
		return ""
	}
}

// UsesSaveGroup reports whether the action first looks next to the save control.
func (k Kind) UsesSaveGroup() bool {
	return k == Hide
}

// Selector picks the kind's selector from s.
func (k Kind) Selector(s settings.Selectors) string {
	switch k {
	case Next:
		return s.Next
	case Prev:
		return s.Prev
	case Save:
		return s.Save
	case Hide:
		return s.Hide
	default:
		return ""
	}
}

// WithSelector returns s with the kind's selector replaced.
func (k Kind) WithSelector(s settings.Selectors, selector string) settings.Selectors {
	switch k {
	case Next:
		s.Next = selector
	case Prev:
		s.Prev = selector
	case Save:
		s.Save = selector
	case Hide:
		s.Hide = selector
	}
	return s
}

// Within runs selector inside region when the region exists, otherwise
// against the whole document. First match wins.
func Within(doc *dom.Document, region, selector string) (dom.Element, bool) {
	if region != "" {
		if area, ok := doc.First(region); ok {
			return area.First(selector)
		}
	}
	return doc.First(selector)
}

// Available is the pre-check: does the kind's own selector match in its region.
func Available(doc *dom.Document, kind Kind, selectors settings.Selectors) bool {
	_, ok := Within(doc, kind.Region(), kind.Selector(selectors))
	return ok
}

// Resolve finds the element for kind. Absence is reported with ok=false.
func Resolve(doc *dom.Document, kind Kind, selectors settings.Selectors) (dom.Element, bool) {
	if doc == nil {
		return dom.Element{}, false
	}

	if kind.UsesSaveGroup() {
		if el, ok := besideSave(doc, kind, selectors); ok {
			return el, true
		}
	}

	return Within(doc, kind.Region(), kind.Selector(selectors))
}

// besideSave looks for the hide control inside the action group of the save control.
func besideSave(doc *dom.Document, kind Kind, selectors settings.Selectors) (dom.Element, bool) {
	save, ok := Within(doc, kind.Region(), selectors.Save)
	if !ok {
		return dom.Element{}, false
	}

	group, ok := save.Closest(actionGroup)
	if !ok {
		return dom.Element{}, false
	}

	return group.First(groupHideBtn)
}

// TestResult is the outcome of trying a selector against the whole page.
type TestResult struct {
	Total   int
	Matches []dom.Element
}

// Test runs selector document-wide and keeps at most MaxTestMatches matches.
func Test(doc *dom.Document, selector string) (TestResult, error) {
	all, err := doc.Query(selector)
	if err != nil {
		return TestResult{}, err
	}

	matches := all
	if len(matches) > MaxTestMatches {
		matches = matches[:MaxTestMatches]
	}
	return TestResult{Total: len(all), Matches: matches}, nil
}
