// Package compliance classifies finding tags into compliance taxonomies:
// OWASP Top-10 categories, CWE identifiers and SANS identifiers. The
// classification is stateless and order-independent.
package compliance

import (
	"regexp"
	"sort"
	"strings"
)

// OwaspCategory is one of the fixed Top-10 categories.
type OwaspCategory struct {
	ID       string
	Name     string
	keywords []string
}

// OwaspCategories is the fixed set of ten categories. Tags are matched either
// by their aN token or by keyword substring.
var OwaspCategories = []OwaspCategory{
	{ID: "a1-injection", Name: "Injection", keywords: []string{"injection", "sqli"}},
	{ID: "a2-broken-authentication", Name: "Broken Authentication", keywords: []string{"auth", "credential", "session"}},
	{ID: "a3-sensitive-data-exposure", Name: "Sensitive Data Exposure", keywords: []string{"sensitive", "privacy", "cryptograph", "cipher"}},
	{ID: "a4-xxe", Name: "XML External Entities", keywords: []string{"xxe", "xml"}},
	{ID: "a5-broken-access-control", Name: "Broken Access Control", keywords: []string{"access-control", "permission", "path-traversal"}},
	{ID: "a6-security-misconfiguration", Name: "Security Misconfiguration", keywords: []string{"misconfig", "cors", "header"}},
	{ID: "a7-xss", Name: "Cross-Site Scripting", keywords: []string{"xss", "cross-site-scripting"}},
	{ID: "a8-insecure-deserialization", Name: "Insecure Deserialization", keywords: []string{"deserial", "serial"}},
	{ID: "a9-vulnerable-components", Name: "Using Components with Known Vulnerabilities", keywords: []string{"vulnerab", "component", "dependency"}},
	{ID: "a10-insufficient-logging", Name: "Insufficient Logging & Monitoring", keywords: []string{"logging", "monitoring", "audit"}},
}

var (
	owaspTokenPattern = regexp.MustCompile(`^a([1-9]|10)$`)
	cwePattern        = regexp.MustCompile(`(?i)cwe-?(\d+)`)
	sansPattern       = regexp.MustCompile(`(?i)sans(?:-top25)?-?(\d+)`)
)

// Classification is the taxonomy assignment of one tag set.
type Classification struct {
	Owasp []string // category IDs, e.g. "a1-injection"
	CWE   []string // canonical identifiers, e.g. "CWE-89"
	SANS  []string // canonical identifiers, e.g. "SANS-120"
	Other []string // tags matching no taxonomy
}

// Classify assigns a tag set to zero or more OWASP categories and extracts
// CWE and SANS identifiers. Tags matching nothing land in Other. The result
// is deterministic regardless of tag order.
func Classify(tags []string) Classification {
	var c Classification
	owaspSeen := make(map[string]bool)
	cweSeen := make(map[string]bool)
	sansSeen := make(map[string]bool)
	otherSeen := make(map[string]bool)

	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}

		matched := false

		for _, cat := range matchOwasp(tag) {
			matched = true
			if !owaspSeen[cat] {
				owaspSeen[cat] = true
				c.Owasp = append(c.Owasp, cat)
			}
		}

		if m := cwePattern.FindStringSubmatch(tag); m != nil {
			matched = true
			id := "CWE-" + strings.TrimLeft(m[1], "0")
			if m[1] == strings.Repeat("0", len(m[1])) {
				id = "CWE-0"
			}
			if !cweSeen[id] {
				cweSeen[id] = true
				c.CWE = append(c.CWE, id)
			}
		}

		if m := sansPattern.FindStringSubmatch(tag); m != nil {
			matched = true
			id := "SANS-" + m[1]
			if !sansSeen[id] {
				sansSeen[id] = true
				c.SANS = append(c.SANS, id)
			}
		}

		if !matched && !otherSeen[tag] {
			otherSeen[tag] = true
			c.Other = append(c.Other, tag)
		}
	}

	sort.Strings(c.Owasp)
	sort.Strings(c.CWE)
	sort.Strings(c.SANS)
	sort.Strings(c.Other)
	return c
}

// matchOwasp returns the category IDs a single tag belongs to. The aN token is
// matched exactly so that "a1" never collides with "a10".
func matchOwasp(tag string) []string {
	var matches []string
	tokens := strings.FieldsFunc(tag, func(r rune) bool {
		return r == '-' || r == '_' || r == ':' || r == '.'
	})

	for _, cat := range OwaspCategories {
		if owaspTagMatches(cat, tag, tokens) {
			matches = append(matches, cat.ID)
		}
	}
	return matches
}

func owaspTagMatches(cat OwaspCategory, tag string, tokens []string) bool {
	catNum := categoryNumber(cat.ID)
	for _, tok := range tokens {
		if m := owaspTokenPattern.FindStringSubmatch(tok); m != nil && m[1] == catNum {
			return true
		}
	}
	for _, kw := range cat.keywords {
		if strings.Contains(tag, kw) {
			return true
		}
	}
	return false
}

func categoryNumber(id string) string {
	// IDs are "a<n>-...".
	rest := strings.TrimPrefix(id, "a")
	if i := strings.IndexByte(rest, '-'); i > 0 {
		return rest[:i]
	}
	return rest
}

// CategoryCount is one taxonomy bucket with its finding count.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Summary is the denormalized classification of a whole result set, suitable
// for rendering. Counts are sorted descending, ties broken by category name
// so grouping is stable regardless of input iteration order.
type Summary struct {
	Owasp     []CategoryCount `json:"owasp"`
	CWE       []CategoryCount `json:"cwe"`
	SANS      []CategoryCount `json:"sans"`
	OtherTags []string        `json:"otherTags"`
}

// OwaspTotal returns the number of findings matched to any OWASP category.
func (s Summary) OwaspTotal() int { return totalCount(s.Owasp) }

// CWETotal returns the number of findings matched to any CWE identifier.
func (s Summary) CWETotal() int { return totalCount(s.CWE) }

// SANSTotal returns the number of findings matched to any SANS identifier.
func (s Summary) SANSTotal() int { return totalCount(s.SANS) }

func totalCount(counts []CategoryCount) int {
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	return total
}

// Summarize classifies every tag set and aggregates counts per category. Each
// finding increments a category at most once even when several of its tags
// match it.
func Summarize(tagSets [][]string) Summary {
	owasp := make(map[string]int)
	cwe := make(map[string]int)
	sans := make(map[string]int)
	other := make(map[string]bool)

	for _, tags := range tagSets {
		c := Classify(tags)
		for _, cat := range c.Owasp {
			owasp[cat]++
		}
		for _, id := range c.CWE {
			cwe[id]++
		}
		for _, id := range c.SANS {
			sans[id]++
		}
		for _, tag := range c.Other {
			other[tag] = true
		}
	}

	summary := Summary{
		Owasp:     sortedCounts(owasp),
		CWE:       sortedCounts(cwe),
		SANS:      sortedCounts(sans),
		OtherTags: sortedKeys(other),
	}
	return summary
}

func sortedCounts(m map[string]int) []CategoryCount {
	counts := make([]CategoryCount, 0, len(m))
	for cat, n := range m {
		counts = append(counts, CategoryCount{Category: cat, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Category < counts[j].Category
	})
	return counts
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
