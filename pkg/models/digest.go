package models

// TopStory is one leading article entry in the assembled digest.
type TopStory struct {
	Title       string   `json:"title"`
	Source      string   `json:"source"`
	URL         string   `json:"url"`
	Summary     string   `json:"summary"`
	KeyInsights []string `json:"key_insights"`
}

// DigestContent is the assembled output of one pipeline run. It is
// derived entirely from a batch of article/summary pairs and recomputed
// every run; persistence is the publishers' concern.
type DigestContent struct {
	Title        string     `json:"title"`
	Introduction string     `json:"introduction"`
	TopStories   []TopStory `json:"top_stories"`
	Trends       []string   `json:"trends"`
	Insights     string     `json:"insights"`
}
