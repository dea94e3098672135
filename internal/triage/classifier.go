// Package triage classifies issues and code findings, detects duplicates,
// and suggests assignees. Classification never fails hard: when the LLM is
// unavailable or errors, it degrades to keyword or label heuristics.
package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/issuedeck/issuedeck/internal/llm"
	"github.com/issuedeck/issuedeck/internal/models"
)

// Result sources.
const (
	SourceLLM      = "llm"
	SourceFallback = "fallback"
	SourceMock     = "mock"
)

// Result is a triage classification.
type Result struct {
	Category   string               `json:"category"`
	Priority   models.IssuePriority `json:"priority"`
	Confidence float64              `json:"confidence"`
	Analysis   string               `json:"analysis"`
	Source     string               `json:"source"`
}

// Triage returns the Result as an issue AITriage block.
func (r *Result) Triage() *models.AITriage {
	return &models.AITriage{
		SuggestedCategory: r.Category,
		Confidence:        r.Confidence,
		DuplicateCheck:    false,
		Analysis:          r.Analysis,
	}
}

// Classifier produces category/priority suggestions for issues and code.
type Classifier struct {
	llm llm.Completer
}

// NewClassifier creates a classifier backed by the given completer.
func NewClassifier(completer llm.Completer) *Classifier {
	return &Classifier{llm: completer}
}

// Configured reports whether the LLM path is live. Callers that prefer a
// different fallback than the mock response (e.g. label heuristics during
// import) check this before calling Classify.
func (c *Classifier) Configured() bool {
	return c.llm.Configured()
}

const issueSystemPrompt = "You are a software development triage assistant. Analyze issues and provide actionable insights. Always respond with valid JSON only, no markdown formatting."

func issuePrompt(title, description string) string {
	if title == "" {
		title = "N/A"
	}
	if description == "" {
		description = "N/A"
	}
	return fmt.Sprintf(`Analyze this software development issue and provide:

1. Suggested category (Bug, Feature, Enhancement, Documentation, etc.)
2. Recommended priority (Low, Medium, High, Critical)
3. A brief analysis of the issue

Issue Title: %s
Issue Description: %s

Respond in JSON format only with this structure:
{
  "category": "suggested_category",
  "priority": "Low|Medium|High|Critical",
  "analysis": "brief_analysis_here",
  "confidence": 0.0-1.0
}`, title, description)
}

// llmTriage is the JSON shape the model is instructed to return. Every field
// is revalidated before use; the external shape is never trusted.
type llmTriage struct {
	Category   string  `json:"category"`
	Priority   string  `json:"priority"`
	Analysis   string  `json:"analysis"`
	Confidence float64 `json:"confidence"`
}

// Classify produces a category, priority, and confidence for an issue.
//
// With no API key configured it short-circuits to a deterministic mock
// result without any network call. Adapter failures degrade to the keyword
// fallback; a quota error gets quota-specific wording in the analysis.
func (c *Classifier) Classify(ctx context.Context, title, description string) *Result {
	if !c.llm.Configured() {
		return &Result{
			Category:   "Bug",
			Priority:   models.IssuePriorityMedium,
			Confidence: 0.7,
			Analysis:   "Mock AI triage response - configure an API key for real AI analysis",
			Source:     SourceMock,
		}
	}

	raw, err := c.llm.Complete(ctx, issuePrompt(title, description), issueSystemPrompt, llm.Options{
		Temperature: 0.3,
		MaxTokens:   300,
	})
	if err != nil {
		if llm.IsQuotaError(err) {
			r := keywordFallback(title, description)
			r.Analysis = fmt.Sprintf("AI quota exceeded. Using fallback analysis based on issue content. Suggested: %s with %s priority.", r.Category, r.Priority)
			return r
		}
		r := keywordFallback(title, description)
		r.Analysis = "AI service temporarily unavailable. Using fallback analysis based on issue content."
		r.Confidence = 0.5
		return r
	}

	var parsed llmTriage
	if err := json.Unmarshal([]byte(llm.StripFences(raw)), &parsed); err != nil {
		// Keep the raw text as the analysis rather than failing.
		return &Result{
			Category:   "Unknown",
			Priority:   models.IssuePriorityMedium,
			Confidence: 0.5,
			Analysis:   raw,
			Source:     SourceLLM,
		}
	}

	result := &Result{
		Category:   parsed.Category,
		Priority:   models.IssuePriority(parsed.Priority),
		Confidence: parsed.Confidence,
		Analysis:   parsed.Analysis,
		Source:     SourceLLM,
	}
	if result.Category == "" {
		result.Category = "Unknown"
	}
	if !models.ValidPriority(result.Priority) {
		result.Priority = models.IssuePriorityMedium
	}
	if result.Confidence <= 0 || result.Confidence > 1 {
		result.Confidence = 0.7
	}
	if result.Analysis == "" {
		result.Analysis = "AI analysis completed"
	}
	return result
}

// keywordFallback applies deterministic keyword heuristics over the combined
// title and description.
func keywordFallback(title, description string) *Result {
	text := strings.ToLower(title + " " + description)

	r := &Result{
		Category:   "Bug",
		Priority:   models.IssuePriorityMedium,
		Confidence: 0.6,
		Source:     SourceFallback,
	}

	switch {
	case containsAny(text, "critical", "urgent", "broken"):
		r.Priority = models.IssuePriorityHigh
	case containsAny(text, "feature", "add", "implement"):
		r.Category = "Feature"
		r.Priority = models.IssuePriorityLow
	case containsAny(text, "enhance", "improve"):
		r.Category = "Enhancement"
	}
	return r
}

func containsAny(text string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// ClassifyFromLabels maps GitHub label names onto a category and priority.
// Used by the import pipeline when the LLM path is unavailable or failed.
func ClassifyFromLabels(labels []string) *Result {
	r := &Result{
		Category:   "Bug",
		Priority:   models.IssuePriorityMedium,
		Confidence: 0.6,
		Analysis:   "Classified from GitHub labels",
		Source:     SourceFallback,
	}

	lowered := make(map[string]bool, len(labels))
	for _, l := range labels {
		lowered[strings.ToLower(l)] = true
	}

	switch {
	case lowered["critical"]:
		r.Priority = models.IssuePriorityCritical
	case lowered["high"]:
		r.Priority = models.IssuePriorityHigh
	case lowered["low"]:
		r.Priority = models.IssuePriorityLow
	}

	switch {
	case lowered["feature"] || lowered["enhancement"]:
		r.Category = "Feature"
	case lowered["bug"] || lowered["bugfix"]:
		r.Category = "Bug"
	case lowered["documentation"] || lowered["docs"]:
		r.Category = "Documentation"
	}
	return r
}
