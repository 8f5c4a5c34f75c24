// Package parser turns the free-text answer of the identification model into
// a PlantRecord. Parsing never fails: a missing or garbled section falls back
// to its default value.
package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shehryarbajwa/plant-identifier/pkg/models"
)

const (
	maxFallbackFacts   = 4
	minFallbackFactLen = 5
)

// field describes one labeled section of the response
type field struct {
	label     string
	multiline bool
	pattern   *regexp.Regexp
	assign    func(rec *models.PlantRecord, value string)
}

var fields = []*field{
	{label: "Common Name", assign: func(r *models.PlantRecord, v string) { r.CommonName = v }},
	{label: "Scientific Name", assign: func(r *models.PlantRecord, v string) { r.ScientificName = v }},
	{label: "Description", multiline: true, assign: func(r *models.PlantRecord, v string) { r.Description = v }},
	{label: "Water Needs", assign: func(r *models.PlantRecord, v string) { r.WaterNeeds = v }},
	{label: "Light Requirements", assign: func(r *models.PlantRecord, v string) { r.LightRequirements = v }},
	{label: "Growth Rate", assign: func(r *models.PlantRecord, v string) { r.GrowthRate = v }},
	{label: "Mature Size", assign: func(r *models.PlantRecord, v string) { r.MatureSize = v }},
	{label: "Ideal Climate", assign: func(r *models.PlantRecord, v string) { r.IdealClimate = v }},
	{label: "Care Instructions", multiline: true, assign: func(r *models.PlantRecord, v string) { r.CareInstructions = v }},
}

var (
	keyFactsPattern = sectionPattern("Key Facts", true)

	// leading run of whitespace, bullets, asterisks, hyphens, digits and periods
	factMarker = regexp.MustCompile(`^[\s•·*\-\d.]+`)

	// a period only ends a clause before whitespace or end of text, so 2.5 stays whole
	clauseSep = regexp.MustCompile(`[,;]|\.(?:\s|$)`)
)

func init() {
	for _, f := range fields {
		f.pattern = sectionPattern(f.label, f.multiline)
	}
}

// sectionPattern builds the extraction pattern for a label. Single-line
// sections stop at the end of the line; multi-line sections run until the
// next numbered section ("\n<digits>.") or the end of the text.
func sectionPattern(label string, multiline bool) *regexp.Regexp {
	if multiline {
		return regexp.MustCompile(`(?is)` + regexp.QuoteMeta(label) + `:\s*(.+?)(?:\n\d+\.|$)`)
	}
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(label) + `:\s*(.+)`)
}

// Parse extracts a PlantRecord from raw model output. Sections may appear in
// any order; the first match of each label wins.
func Parse(raw string) models.PlantRecord {
	rec := models.NewPlantRecord()

	for _, f := range fields {
		value, ok := extract(f.pattern, raw)
		if !ok {
			continue
		}
		if value != "" {
			f.assign(&rec, value)
		}
	}

	block, found := extract(keyFactsPattern, raw)
	rec.KeyFacts = KeyFacts(block, found)

	return rec
}

func extract(pattern *regexp.Regexp, raw string) (string, bool) {
	m := pattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return cleanValue(m[1]), true
}

// cleanValue trims whitespace and markdown emphasis left around a value,
// e.g. "**Common Name:** Ficus" or "*Ficus elastica*".
func cleanValue(s string) string {
	return strings.Trim(strings.TrimSpace(s), " \t\r*_")
}

// KeyFacts splits a Key Facts block into individual facts. Bulleted or
// numbered lines become one fact each. A block that yields no such lines, or
// is a single unmarked line of prose, is split into clauses instead. The
// result always has at least one entry.
func KeyFacts(block string, found bool) []string {
	if !found {
		return []string{models.SyntheticKeyFact}
	}

	facts := bulletFacts(block)
	if len(facts) == 0 || isProse(block) {
		if clauses := clauseFacts(block); len(clauses) > 0 {
			return clauses
		}
	}
	if len(facts) > 0 {
		return facts
	}

	return []string{models.SyntheticKeyFact}
}

// isProse reports whether block is a single line without a leading marker
func isProse(block string) bool {
	block = strings.TrimSpace(block)
	return !strings.Contains(block, "\n") && !factMarker.MatchString(block)
}

func bulletFacts(block string) []string {
	var facts []string
	for _, line := range strings.Split(strings.TrimSpace(block), "\n") {
		fact := strings.TrimSpace(factMarker.ReplaceAllString(strings.TrimSpace(line), ""))
		if fact != "" {
			facts = append(facts, fact)
		}
	}
	return facts
}

func clauseFacts(block string) []string {
	var facts []string
	for _, clause := range clauseSep.Split(strings.TrimSpace(block), -1) {
		clause = strings.TrimSpace(clause)
		if utf8.RuneCountInString(clause) <= minFallbackFactLen {
			continue
		}
		facts = append(facts, clause)
		if len(facts) == maxFallbackFacts {
			break
		}
	}
	return facts
}
