package pipeline

import (
	"encoding/json"
	"time"
)

// RunMetrics accumulates counters over one pipeline run.
type RunMetrics struct {
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	ArticlesScraped    int       `json:"articles_scraped"`
	ArticlesUnique     int       `json:"articles_unique"`
	ArticlesSummarized int       `json:"articles_summarized"`
	ArticlesPublished  int       `json:"articles_published"`
	Errors             []string  `json:"errors"`
}

// Duration returns how long the run took, or the elapsed time so far
// for a run still in flight.
func (m *RunMetrics) Duration() time.Duration {
	if m.EndTime.IsZero() {
		return time.Since(m.StartTime)
	}
	return m.EndTime.Sub(m.StartTime)
}

// MarshalJSON adds a duration_seconds field for completed runs.
func (m *RunMetrics) MarshalJSON() ([]byte, error) {
	type alias RunMetrics
	out := struct {
		*alias
		DurationSeconds float64 `json:"duration_seconds,omitempty"`
	}{alias: (*alias)(m)}
	if !m.EndTime.IsZero() {
		out.DurationSeconds = m.EndTime.Sub(m.StartTime).Seconds()
	}
	return json.Marshal(out)
}

func (m *RunMetrics) addError(msg string) {
	m.Errors = append(m.Errors, msg)
}
