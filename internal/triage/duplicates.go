package triage

import (
	"strings"

	"github.com/issuedeck/issuedeck/internal/models"
)

// duplicateThreshold is the keyword-overlap ratio above which an issue is
// reported as a potential duplicate. Strictly greater-than.
const duplicateThreshold = 0.3

// Duplicate pairs a potentially duplicated issue with its similarity.
type Duplicate struct {
	Issue             *models.Issue `json:"issue"`
	SimilarityPercent float64       `json:"similarityPercent"`
}

// FindDuplicates scores candidateText against every non-Closed issue by
// keyword overlap: tokens longer than 3 characters, lower-cased, matched by
// substring containment against the issue's title+description.
//
// Results keep the scan order of the input slice; they are not sorted by
// score. Zero extractable keywords means no duplicates.
func FindDuplicates(candidateText string, issues []*models.Issue) []Duplicate {
	keywords := extractKeywords(candidateText)
	if len(keywords) == 0 {
		return nil
	}

	var duplicates []Duplicate
	for _, issue := range issues {
		if issue.Status == models.IssueStatusClosed {
			continue
		}
		text := strings.ToLower(issue.Title + " " + issue.Description)
		matches := 0
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				matches++
			}
		}
		similarity := float64(matches) / float64(len(keywords))
		if similarity > duplicateThreshold {
			duplicates = append(duplicates, Duplicate{
				Issue:             issue,
				SimilarityPercent: similarity * 100,
			})
		}
	}
	return duplicates
}

func extractKeywords(text string) []string {
	var keywords []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if len(w) > 3 {
			keywords = append(keywords, w)
		}
	}
	return keywords
}
