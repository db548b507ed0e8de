package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Run("matches owasp by token", func(t *testing.T) {
		c := Classify([]string{"owasp-a1", "owasp-a10"})

		assert.Equal(t, []string{"a1-injection", "a10-insufficient-logging"}, c.Owasp)
		assert.Empty(t, c.Other)
	})

	t.Run("a1 token does not collide with a10", func(t *testing.T) {
		c := Classify([]string{"owasp-a1"})

		assert.Equal(t, []string{"a1-injection"}, c.Owasp)
	})

	t.Run("matches owasp by keyword", func(t *testing.T) {
		c := Classify([]string{"sql-injection", "reflected-xss"})

		assert.Contains(t, c.Owasp, "a1-injection")
		assert.Contains(t, c.Owasp, "a7-xss")
	})

	t.Run("one tag can match several categories", func(t *testing.T) {
		// "auth" keyword of a2 and "session" keyword of a2 overlap, while
		// "xml" pulls in a4 alongside the xxe keyword.
		c := Classify([]string{"xxe-xml"})

		assert.Equal(t, []string{"a4-xxe"}, c.Owasp)
	})

	t.Run("extracts cwe identifiers", func(t *testing.T) {
		c := Classify([]string{"cwe-89", "CWE-787"})

		assert.Equal(t, []string{"CWE-787", "CWE-89"}, c.CWE)
	})

	t.Run("strips leading zeros from cwe ids", func(t *testing.T) {
		c := Classify([]string{"cwe-089"})

		assert.Equal(t, []string{"CWE-89"}, c.CWE)
	})

	t.Run("all zero cwe id is preserved as cwe-0", func(t *testing.T) {
		c := Classify([]string{"cwe-000"})

		assert.Equal(t, []string{"CWE-0"}, c.CWE)
	})

	t.Run("extracts sans identifiers", func(t *testing.T) {
		c := Classify([]string{"sans-top25-risky", "sans-120"})

		assert.Equal(t, []string{"SANS-120"}, c.SANS)
	})

	t.Run("deduplicates across tags", func(t *testing.T) {
		c := Classify([]string{"cwe-89", "cwe-089", "sqli", "injection"})

		assert.Equal(t, []string{"CWE-89"}, c.CWE)
		assert.Equal(t, []string{"a1-injection"}, c.Owasp)
	})

	t.Run("unmatched tags land in other", func(t *testing.T) {
		c := Classify([]string{"convention", "pitfall"})

		assert.Empty(t, c.Owasp)
		assert.Empty(t, c.CWE)
		assert.Empty(t, c.SANS)
		assert.Equal(t, []string{"convention", "pitfall"}, c.Other)
	})

	t.Run("tags are lowercased and trimmed", func(t *testing.T) {
		c := Classify([]string{"  Pitfall ", "PITFALL"})

		assert.Equal(t, []string{"pitfall"}, c.Other)
	})

	t.Run("empty tags are skipped", func(t *testing.T) {
		c := Classify([]string{"", "   "})

		assert.Empty(t, c.Owasp)
		assert.Empty(t, c.Other)
	})

	t.Run("result is sorted regardless of input order", func(t *testing.T) {
		first := Classify([]string{"xss", "sqli", "cwe-89", "cwe-79"})
		second := Classify([]string{"cwe-79", "sqli", "cwe-89", "xss"})

		assert.Equal(t, first, second)
	})
}

func TestSummarize(t *testing.T) {
	t.Run("aggregates counts per category", func(t *testing.T) {
		s := Summarize([][]string{
			{"sqli", "cwe-89"},
			{"injection"},
			{"xss"},
		})

		assert.Equal(t, []CategoryCount{
			{Category: "a1-injection", Count: 2},
			{Category: "a7-xss", Count: 1},
		}, s.Owasp)
		assert.Equal(t, []CategoryCount{{Category: "CWE-89", Count: 1}}, s.CWE)
	})

	t.Run("finding increments a category once", func(t *testing.T) {
		s := Summarize([][]string{
			{"sqli", "injection", "sql-injection"},
		})

		assert.Equal(t, []CategoryCount{{Category: "a1-injection", Count: 1}}, s.Owasp)
	})

	t.Run("ties sort by category name", func(t *testing.T) {
		s := Summarize([][]string{
			{"xss"},
			{"sqli"},
		})

		assert.Equal(t, []CategoryCount{
			{Category: "a1-injection", Count: 1},
			{Category: "a7-xss", Count: 1},
		}, s.Owasp)
	})

	t.Run("other tags are deduplicated and sorted", func(t *testing.T) {
		s := Summarize([][]string{
			{"pitfall", "convention"},
			{"pitfall"},
		})

		assert.Equal(t, []string{"convention", "pitfall"}, s.OtherTags)
	})

	t.Run("totals sum the counts", func(t *testing.T) {
		s := Summarize([][]string{
			{"sqli", "cwe-89", "sans-120"},
			{"xss", "cwe-79"},
			{"cwe-89"},
		})

		assert.Equal(t, 2, s.OwaspTotal())
		assert.Equal(t, 3, s.CWETotal())
		assert.Equal(t, 1, s.SANSTotal())
	})

	t.Run("empty input yields empty summary", func(t *testing.T) {
		s := Summarize(nil)

		assert.Empty(t, s.Owasp)
		assert.Empty(t, s.CWE)
		assert.Empty(t, s.SANS)
		assert.Empty(t, s.OtherTags)
	})
}
