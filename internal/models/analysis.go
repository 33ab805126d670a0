// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

// Insight is one categorised observation from a deck analysis, tied to a
// 1-based slide number.
type Insight struct {
	Category    string `json:"category"`
	Insight     string `json:"insight"`
	SlideNumber int    `json:"slide_number"`
}

// AnalysisResult is the strategic review of a whole deck.
type AnalysisResult struct {
	Score            int       `json:"pitch_readiness_score"`
	ExecutiveSummary string    `json:"executive_summary"`
	Insights         []Insight `json:"key_insights"`
}

// ResearchResult is a search-grounded answer to a research query.
type ResearchResult struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// SlideSuggestion is a proposed edit to a slide. A nil field means the
// model had nothing to propose for it.
type SlideSuggestion struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// Empty returns true if the suggestion proposes nothing.
func (s *SlideSuggestion) Empty() bool {
	return s == nil || (s.Title == nil && s.Content == nil)
}

// WizardInput is the startup information collected by the deck wizard.
type WizardInput struct {
	CompanyName string   `json:"companyName"`
	Industry    string   `json:"industry"`
	Problem     string   `json:"problem"`
	Solution    string   `json:"solution"`
	Market      string   `json:"market"`
	Traction    string   `json:"traction"`
	Team        string   `json:"team"`
	Ask         string   `json:"ask"`
	Template    Template `json:"template"`
}
