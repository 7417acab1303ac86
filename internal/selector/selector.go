// Package selector builds the location queries the suite hands to the browser.
//
// A UI role such as "the about link" rarely has one stable selector across
// redesigns, so each role is described by an ordered list of strategies and
// combined into a single selector list. The browser then matches whichever
// strategy hits first in document order.
package selector

import (
	"sort"
	"strings"
)

// Flexible joins strategies into one selector list that matches any of them.
// Blank strategies are dropped. With no strategies the result is "".
func Flexible(strategies ...string) string {
	kept := make([]string, 0, len(strategies))
	for _, s := range strategies {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, ", ")
}

// Text matches an element by its visible text, accessible label, or title.
func Text(text string) string {
	q := quote(text)
	return Flexible(
		`text=`+q,
		`:has-text(`+q+`)`,
		`[aria-label*=`+q+`]`,
		`[title*=`+q+`]`,
	)
}

// DataTestID matches the data-testid attribute exactly.
func DataTestID(id string) string {
	return `[data-testid=` + quote(id) + `]`
}

// Role matches an ARIA role, optionally narrowed by a label substring.
func Role(role, name string) string {
	sel := `[role=` + quote(role) + `]`
	if name != "" {
		sel += `[aria-label*=` + quote(name) + `]`
	}
	return sel
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// Group maps semantic role names to ordered strategy lists.
type Group map[string][]string

// Strategies returns a copy of the strategies for role, or nil.
func (g Group) Strategies(role string) []string {
	s, ok := g[role]
	if !ok {
		return nil
	}
	return append([]string(nil), s...)
}

// Selector returns the combined selector for role, or "" if role is unknown.
func (g Group) Selector(role string) string {
	return Flexible(g[role]...)
}

// Roles returns the role names in sorted order.
func (g Group) Roles() []string {
	roles := make([]string, 0, len(g))
	for r := range g {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}
