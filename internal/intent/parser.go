// Package intent extracts structured search filters from free-text queries.
//
// Parsing is pure pattern matching over the lower-cased query. A signal
// that is not found leaves its field unset; parsing never fails.
package intent

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/khanglvm/event-hub/internal/models"
)

// TypeGeneral is the only intent type produced today.
const TypeGeneral = "general"

// categoryRule maps a category tag to the keywords that signal it.
type categoryRule struct {
	category string
	keywords []string
}

// categoryRules are tested in order; the first match wins.
var categoryRules = []categoryRule{
	{"music", []string{"music", "concert", "festival", "band", "singer", "gig"}},
	{"sports", []string{"sports", "game", "match", "football", "basketball", "soccer"}},
	{"technology", []string{"tech", "technology", "conference", "startup", "ai", "software"}},
	{"arts", []string{"art", "gallery", "exhibition", "theater", "theatre", "show"}},
	{"business", []string{"business", "networking", "professional", "workshop", "seminar"}},
}

var stopWords = toSet(
	"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of",
	"with", "by", "is", "are", "was", "were", "be", "been", "being", "have",
	"has", "had", "do", "does", "did", "will", "would", "could", "should",
)

// dateWords end a location phrase ("in austin this weekend").
var dateWords = toSet(
	"today", "tomorrow", "tonight", "this", "next", "week", "weekend", "month",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
)

// priceWords end a location phrase as well.
var priceWords = toSet("free", "cheap", "cheaper", "under", "expensive", "premium")

var (
	locationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bin\s+`),
		regexp.MustCompile(`\bnear\s+`),
		regexp.MustCompile(`\bat\s+`),
	}
	wordRun = regexp.MustCompile(`^\w+(?:\s+\w+)*`)

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:today|tomorrow|tonight)\b`),
		regexp.MustCompile(`\bthis\s+(?:weekend|week|month)\b`),
		regexp.MustCompile(`\bnext\s+(?:weekend|week|month)\b`),
		regexp.MustCompile(`\b(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`),
	}

	freePattern      = regexp.MustCompile(`\bfree\b`)
	cheapPattern     = regexp.MustCompile(`\b(?:cheap\w*|under)\b`)
	expensivePattern = regexp.MustCompile(`\b(?:expensive|premium)\b`)

	whitespace = regexp.MustCompile(`\s+`)
)

// Parse extracts a SearchIntent from query.
func Parse(query string) models.SearchIntent {
	q := strings.ToLower(strings.TrimSpace(query))

	return models.SearchIntent{
		Type:       TypeGeneral,
		Location:   parseLocation(q),
		Date:       parseDate(q),
		Category:   parseCategory(q),
		PriceRange: parsePrice(q),
		Keywords:   parseKeywords(q),
	}
}

// parseLocation takes the words after the first in/near/at, up to a date,
// price or stop word.
func parseLocation(q string) string {
	for _, pattern := range locationPatterns {
		for _, m := range pattern.FindAllStringIndex(q, -1) {
			if loc := trimLocation(wordRun.FindString(q[m[1]:])); loc != "" {
				return loc
			}
		}
	}
	return ""
}

func trimLocation(phrase string) string {
	words := strings.Fields(phrase)

	// "at the museum"
	for len(words) > 0 && (words[0] == "the" || words[0] == "a" || words[0] == "an") {
		words = words[1:]
	}

	end := 0
	for end < len(words) {
		w := words[end]
		if stopWords[w] || dateWords[w] || priceWords[w] {
			break
		}
		end++
	}
	return strings.Join(words[:end], " ")
}

func parseDate(q string) string {
	for _, pattern := range datePatterns {
		if m := pattern.FindString(q); m != "" {
			return whitespace.ReplaceAllString(m, " ")
		}
	}
	return ""
}

// parseCategory tests keywords by substring containment. Keywords shorter
// than three letters ("ai") must match a whole token instead, otherwise
// "paint" or "rain" would read as technology.
func parseCategory(q string) string {
	tokens := toSet(tokenize(q)...)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if len(kw) < 3 {
				if tokens[kw] {
					return rule.category
				}
				continue
			}
			if strings.Contains(q, kw) {
				return rule.category
			}
		}
	}
	return ""
}

func parsePrice(q string) *models.PriceRange {
	switch {
	case freePattern.MatchString(q):
		return &models.PriceRange{Min: 0, Max: 0}
	case cheapPattern.MatchString(q):
		return &models.PriceRange{Min: 0, Max: 50}
	case expensivePattern.MatchString(q):
		return &models.PriceRange{Min: 200, Max: math.Inf(1)}
	default:
		return nil
	}
}

func parseKeywords(q string) []string {
	keywords := []string{}
	for _, tok := range tokenize(q) {
		if len(tok) > 2 && !stopWords[tok] {
			keywords = append(keywords, tok)
		}
	}
	return keywords
}

// tokenize splits on whitespace and strips surrounding punctuation.
func tokenize(q string) []string {
	fields := strings.Fields(q)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func toSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
