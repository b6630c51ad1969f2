// Package parser recovers recommended number sets from the free text a
// generative model returns.
//
// The model is asked to follow a fixed grammar but often does not: it adds
// markdown emphasis, changes labels or drops them. Parsing therefore runs a
// cascade of strategies from strict to lenient and keeps the result of the
// first one that yields at least one valid set. Parsing never fails; text
// that cannot be understood produces an empty slice.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"

	"github.com/rewired-gh/lottoracle/internal/models"
)

// DefaultMaxSets is the most sets kept from a single strategy.
const DefaultMaxSets = 4

// Labels assigned by position when a strategy does not capture one.
var positionalLabels = []string{"冷門號碼組合", "熱門號碼組合"}

const genericLabel = "推薦號碼組合"

const reasonPrefix = "基於歷史資料分析的"

var (
	// Everything but digits and the separators below is dropped before splitting.
	// Input is width-folded first, so full-width digits arrive as ASCII.
	disallowedChars = regexp.MustCompile(`[^0-9,，、\s\p{Zs}]`)
	separatorRun    = regexp.MustCompile(`[,，、\s\p{Zs}]+`)
	// The reason sits on the marker line or on the line right after it.
	reasonPattern = regexp.MustCompile(`\*{0,2}選號理由[ \t]*\*{0,2}[ \t]*[:：][ \t]*\*{0,2}[ \t]*(?:\r?\n[ \t]*)?([^\r\n]+)`)
	// Markdown rules and stray emphasis are not reasons.
	decorationOnly = regexp.MustCompile(`^[-*_=\s]+$`)
)

// Result is the outcome of a parse with the name of the winning strategy.
// Strategy is empty when nothing could be recovered.
type Result struct {
	Strategy string
	Sets     []models.RecommendedSet
}

// Parser runs an ordered cascade of strategies.
type Parser struct {
	strategies []Strategy
	maxSets    int
}

// Option configures a Parser.
type Option func(*Parser)

// WithStrategies replaces the default cascade.
func WithStrategies(strategies ...Strategy) Option {
	return func(p *Parser) {
		p.strategies = strategies
	}
}

// WithMaxSets limits how many sets a strategy may return.
func WithMaxSets(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxSets = n
		}
	}
}

// New creates a parser with the default cascade.
func New(opts ...Option) *Parser {
	p := &Parser{
		strategies: DefaultStrategies(),
		maxSets:    DefaultMaxSets,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = New()

// Parse extracts sets from text with the default cascade.
func Parse(text string) []models.RecommendedSet {
	return defaultParser.Parse(text)
}

// Parse extracts sets from text. The result is never nil.
func (p *Parser) Parse(text string) []models.RecommendedSet {
	return p.ParseDetailed(text).Sets
}

// ParseDetailed extracts sets from text and reports which strategy produced them.
// Later strategies are not evaluated once one succeeds.
func (p *Parser) ParseDetailed(text string) Result {
	if strings.TrimSpace(text) != "" {
		for _, s := range p.strategies {
			candidates := s.Extract(text)
			if len(candidates) == 0 || len(candidates) < s.MinMatches {
				continue
			}
			if sets := p.build(text, s, candidates); len(sets) > 0 {
				return Result{Strategy: s.Name, Sets: sets}
			}
		}
	}
	return Result{Sets: []models.RecommendedSet{}}
}

func (p *Parser) build(text string, s Strategy, candidates []Candidate) []models.RecommendedSet {
	sets := make([]models.RecommendedSet, 0, p.maxSets)
	for i, c := range candidates {
		if len(sets) == p.maxSets {
			break
		}
		nums, ok := parseNumbers(c.Numbers)
		if !ok || len(nums) != models.MainCount {
			continue
		}
		special, err := strconv.Atoi(width.Fold.String(c.Special))
		if err != nil {
			continue
		}

		label := c.Label
		if !s.Labeled || label == "" {
			label = labelAt(i)
		}

		reason := findReason(segmentAfter(text, candidates, i))
		if reason == "" {
			reason = reasonPrefix + label
		}

		sets = append(sets, models.RecommendedSet{
			Label:   label,
			Numbers: nums,
			Special: special,
			Reason:  reason,
		})
	}
	return sets
}

// parseNumbers strips foreign characters, splits on separator runs and parses
// every token. ok is false if a token does not fit in an int.
func parseNumbers(raw string) ([]int, bool) {
	cleaned := disallowedChars.ReplaceAllString(width.Fold.String(raw), "")
	var nums []int
	for _, tok := range separatorRun.Split(cleaned, -1) {
		if tok == "" {
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, false
		}
		nums = append(nums, n)
	}
	return nums, true
}

func labelAt(i int) string {
	if i < len(positionalLabels) {
		return positionalLabels[i]
	}
	return genericLabel
}

// segmentAfter returns the text between candidate i and the next candidate.
func segmentAfter(text string, candidates []Candidate, i int) string {
	start := candidates[i].End
	end := len(text)
	if i+1 < len(candidates) {
		end = candidates[i+1].Start
	}
	if start < 0 || start > len(text) || end < start || end > len(text) {
		return ""
	}
	return text[start:end]
}

// findReason returns the first 選號理由 line in segment, if any.
func findReason(segment string) string {
	m := reasonPattern.FindStringSubmatch(segment)
	if m == nil {
		return ""
	}
	reason := strings.Trim(m[1], " \t\r*")
	if decorationOnly.MatchString(reason) {
		return ""
	}
	return reason
}
