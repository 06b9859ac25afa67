package models

// Summary is the structured output of summarizing one article.
// Produced once per article; immutable.
type Summary struct {
	ShortSummary    string   `json:"short_summary"`    // 2-3 sentences, length-capped
	DetailedSummary string   `json:"detailed_summary"` // 1-2 paragraphs
	KeyInsights     []string `json:"key_insights"`     // bullet points, count-capped
	Tags            []string `json:"tags"`             // categories, count-capped
}

// ArticlePair keeps a summary attached to the article it was generated
// from. The pairing survives every reordering, filtering, and batching
// step downstream of the summarizer.
type ArticlePair struct {
	Article Article `json:"article"`
	Summary Summary `json:"summary"`
}
