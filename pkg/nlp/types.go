package nlp

type ClassificationResult struct {
	Category   string        `json:"category"`
	Confidence float64       `json:"confidence"`
	Matches    []MatchResult `json:"matches"`
}

type MatchResult struct {
	Keyword string  `json:"keyword"`
	Score   float64 `json:"score"`
	Type    string  `json:"type"`
}

type IClassifier interface {
	Classify(text string) *ClassificationResult
	Mapping(category string) (CategoryMapping, bool)
	AddMapping(mapping CategoryMapping)
}

type CategoryMapping struct {
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
	Synonyms []string `json:"synonyms"`
}
