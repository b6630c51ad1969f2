package parser

import (
	"regexp"
	"strings"
)

// Candidate is one raw match of a strategy, before validation.
type Candidate struct {
	Label   string // empty when the strategy labels sets by position
	Numbers string // text between the brackets
	Special string // digits after the special-number marker
	Start   int    // byte offset of the match in the input
	End     int
}

// Strategy is one stage of the extraction cascade. Extract must be pure: it
// only reads text and returns the candidates in textual order.
type Strategy struct {
	Name    string
	Extract func(text string) []Candidate
	// MinMatches is the number of raw matches required before the stage is
	// considered at all. Label-less stages need two so a stray bracket in the
	// model's prose is not mistaken for an answer.
	MinMatches int
	// Labeled is true when Extract captures the category label itself.
	Labeled bool
}

// Strategy names, strict to lenient.
const (
	StrictLabeled    = "strict-labeled"
	DecoratedLabeled = "decorated-labeled"
	FixedLabel       = "fixed-label"
	BracketOnly      = "bracket-only"
)

// Grammar fragments shared by the patterns below.
const (
	ordinal = `第(?:[一二三四]|[1-4])組`
	emph    = `\*{0,2}`
	colon   = `[:：]`
	numbers = `\[(?P<numbers>[^\]]+)\]`
	// decorated special-number marker: **特別號:** 38, **特別號**: 38, 特別號：38
	specialMarker = emph + `特別號\s*` + emph + `\s*` + colon + `\s*` + emph + `\s*(?P<special>[0-9０-９]+)`
)

var (
	strictPattern = regexp.MustCompile(
		ordinal + `\((?P<label>[^)]+)\):\s*` + numbers + `\s*\+\s*特別號:\s*(?P<special>[0-9０-９]+)`)

	decoratedPattern = regexp.MustCompile(
		emph + ordinal + `\s*[(（](?P<label>[^)）]+)[)）]\s*` + colon + `?\s*` + emph + `\s*` + colon + `?\s*` +
			numbers + `\s*\+\s*` + specialMarker)

	fixedLabelPattern = regexp.MustCompile(
		emph + `彩券號碼\s*` + emph + `\s*` + colon + `\s*` + emph + `\s*` + numbers + `\s*\+\s*` + specialMarker)

	bracketPattern = regexp.MustCompile(numbers + `\s*\+\s*` + specialMarker)
)

// DefaultStrategies returns the cascade in evaluation order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: StrictLabeled, Extract: regexExtractor(strictPattern), MinMatches: 1, Labeled: true},
		{Name: DecoratedLabeled, Extract: regexExtractor(decoratedPattern), MinMatches: 1, Labeled: true},
		{Name: FixedLabel, Extract: regexExtractor(fixedLabelPattern), MinMatches: 2},
		{Name: BracketOnly, Extract: regexExtractor(bracketPattern), MinMatches: 2},
	}
}

// regexExtractor turns a pattern with named groups label (optional), numbers
// and special into an Extract function.
func regexExtractor(re *regexp.Regexp) func(string) []Candidate {
	labelIdx := re.SubexpIndex("label")
	numbersIdx := re.SubexpIndex("numbers")
	specialIdx := re.SubexpIndex("special")

	return func(text string) []Candidate {
		matches := re.FindAllStringSubmatchIndex(text, -1)
		out := make([]Candidate, 0, len(matches))
		for _, m := range matches {
			c := Candidate{
				Numbers: group(text, m, numbersIdx),
				Special: group(text, m, specialIdx),
				Start:   m[0],
				End:     m[1],
			}
			if labelIdx >= 0 {
				c.Label = strings.Trim(group(text, m, labelIdx), " \t*")
			}
			out = append(out, c)
		}
		return out
	}
}

func group(text string, m []int, idx int) string {
	if idx < 0 || 2*idx+1 >= len(m) || m[2*idx] < 0 {
		return ""
	}
	return text[m[2*idx]:m[2*idx+1]]
}
