package nlp

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinConfidence is the score below which Classify reports no category.
const MinConfidence = 0.2

type Classifier struct {
	mappings  map[string]CategoryMapping
	stopWords map[string]bool
}

func NewClassifier() IClassifier {
	stopWords := map[string]bool{
		"the": true, "a": true, "an": true, "to": true, "for": true,
		"of": true, "on": true, "at": true, "in": true, "and": true,
		"or": true, "with": true, "my": true, "me": true, "i": true,
		"please": true, "remind": true, "need": true, "should": true,
		"about": true, "by": true, "is": true, "it": true,
	}

	mappings := make(map[string]CategoryMapping)
	for _, m := range defaultCategoryMappings() {
		mappings[m.Category] = m
	}

	return &Classifier{
		mappings:  mappings,
		stopWords: stopWords,
	}
}

// Classify picks the task category whose vocabulary best matches text. An
// empty Category means nothing scored above MinConfidence.
func (c *Classifier) Classify(text string) *ClassificationResult {
	cleaned := Normalize(text)
	tokens := c.extractTokens(cleaned)

	var results []*ClassificationResult
	for _, mapping := range c.mappings {
		conf := c.calculateConfidence(tokens, cleaned, mapping)
		if conf.Confidence > MinConfidence {
			results = append(results, &ClassificationResult{
				Category:   mapping.Category,
				Confidence: conf.Confidence,
				Matches:    conf.Matches,
			})
		}
	}

	if len(results) == 0 {
		return &ClassificationResult{}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Confidence == results[j].Confidence {
			return results[i].Category < results[j].Category
		}
		return results[i].Confidence > results[j].Confidence
	})

	return results[0]
}

func (c *Classifier) Mapping(category string) (CategoryMapping, bool) {
	m, ok := c.mappings[category]
	return m, ok
}

func (c *Classifier) AddMapping(mapping CategoryMapping) {
	c.mappings[mapping.Category] = mapping
}

func (c *Classifier) calculateConfidence(tokens []string, fullText string, mapping CategoryMapping) *confidenceResult {
	var matches []MatchResult
	totalScore := 0.0
	maxPossibleScore := 0.0

	for _, keyword := range mapping.Keywords {
		for _, token := range tokens {
			if strings.EqualFold(token, keyword) {
				matches = append(matches, MatchResult{
					Keyword: keyword,
					Score:   1.0,
					Type:    "exact",
				})
				totalScore += 1.0
			}
		}
		maxPossibleScore += 1.0
	}

	for _, synonym := range mapping.Synonyms {
		if strings.Contains(fullText, Normalize(synonym)) {
			matches = append(matches, MatchResult{
				Keyword: synonym,
				Score:   1.0,
				Type:    "synonym",
			})
			totalScore += 1.2
		}
	}

	for _, keyword := range mapping.Keywords {
		for _, token := range tokens {
			similarity := similarity(token, keyword)
			if similarity > 0.75 && similarity < 1.0 {
				matches = append(matches, MatchResult{
					Keyword: keyword,
					Score:   similarity * 0.7,
					Type:    "fuzzy",
				})
				totalScore += similarity * 0.7
			}
		}
	}

	// keyword lists are long, so a couple of hits must be enough
	confidence := totalScore / math.Max(maxPossibleScore/4, 1.0)
	if len(matches) > 1 {
		confidence *= 1.1
	}
	confidence = math.Min(confidence, 1.0)

	return &confidenceResult{
		Confidence: confidence,
		Matches:    matches,
	}
}

func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	distance := levenshteinDistance(a, b)
	maxLen := math.Max(float64(len(a)), float64(len(b)))
	if maxLen == 0 {
		return 0.0
	}

	return math.Max(0, 1.0-(float64(distance)/maxLen))
}

func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	matrix := make([][]int, len(s1)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(s2)+1)
		matrix[i][0] = i
	}

	for j := 0; j <= len(s2); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(s1); i++ {
		for j := 1; j <= len(s2); j++ {
			cost := 0
			if s1[i-1] != s2[j-1] {
				cost = 1
			}

			matrix[i][j] = min(
				matrix[i-1][j]+1,
				matrix[i][j-1]+1,
				matrix[i-1][j-1]+cost,
			)
		}
	}

	return matrix[len(s1)][len(s2)]
}

// Normalize lowercases text, strips diacritics and punctuation and collapses
// whitespace.
func Normalize(text string) string {
	text = strings.ToLower(text)

	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	result, _, _ := transform.String(t, text)

	result = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, result)

	return strings.Join(strings.Fields(result), " ")
}

func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}

func (c *Classifier) extractTokens(text string) []string {
	var tokens []string
	for _, word := range strings.Fields(text) {
		if len(word) > 1 && !c.stopWords[word] {
			tokens = append(tokens, word)
		}
	}
	return tokens
}

type confidenceResult struct {
	Confidence float64
	Matches    []MatchResult
}

func defaultCategoryMappings() []CategoryMapping {
	return []CategoryMapping{
		{
			Category: "meeting",
			Keywords: []string{"meeting", "meet", "call", "sync", "standup", "interview", "appointment", "zoom"},
			Synonyms: []string{"catch up with", "one on one", "video call", "conference call"},
		},
		{
			Category: "email",
			Keywords: []string{"email", "mail", "inbox", "reply", "respond", "send", "forward"},
			Synonyms: []string{"write back", "get back to", "follow up with"},
		},
		{
			Category: "financial",
			Keywords: []string{"pay", "bill", "invoice", "rent", "tax", "taxes", "budget", "bank", "transfer", "payment"},
			Synonyms: []string{"credit card", "pay off", "wire money"},
		},
		{
			Category: "team",
			Keywords: []string{"team", "review", "feedback", "report", "update", "status", "retro"},
			Synonyms: []string{"status update", "code review", "team update"},
		},
		{
			Category: "briefing",
			Keywords: []string{"briefing", "agenda", "summary", "digest", "plan"},
			Synonyms: []string{"morning briefing", "daily plan", "plan my day"},
		},
		{
			Category: "task",
			Keywords: []string{"buy", "finish", "submit", "deadline", "clean", "fix", "pick", "call", "book", "renew"},
			Synonyms: []string{"pick up", "drop off", "sign up"},
		},
	}
}
