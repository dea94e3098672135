package importer

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/issuedeck/issuedeck/internal/github"
	"github.com/issuedeck/issuedeck/internal/models"
	"github.com/issuedeck/issuedeck/internal/store"
	"github.com/issuedeck/issuedeck/internal/tracker"
)

const (
	// defaultMaxFiles caps a scan when the caller does not bound it.
	defaultMaxFiles = 50
	// llmFileLimit: files at or above this size skip the model review.
	llmFileLimit = 50000

	createdPreviewCap = 20
	skippedPreviewCap = 10
)

var (
	codeExtensions = []string{".js", ".ts", ".jsx", ".tsx", ".py", ".java", ".cpp", ".c", ".cs", ".go", ".rs", ".php", ".rb", ".swift", ".kt"}
	ignorePatterns = []string{"node_modules", ".git", "dist", "build", "vendor", ".next", ".venv", "__pycache__", "package-lock.json", "yarn.lock"}

	todoPattern = regexp.MustCompile(`(?i)(?:TODO|FIXME|HACK|XXX|BUG|NOTE):\s*(.+)`)
)

// Candidate detection methods.
const (
	MethodRegex = "regex"
	MethodAI    = "ai"
)

// ScanCandidate is a tentative finding prior to deduplication and
// persistence.
type ScanCandidate struct {
	Type       string               `json:"type"`
	Title      string               `json:"title"`
	Body       string               `json:"body"`
	LineNumber int                  `json:"lineNumber,omitempty"`
	FilePath   string               `json:"filePath"`
	Priority   models.IssuePriority `json:"priority"`
	Category   string               `json:"category"`
	Method     string               `json:"method"`
	Confidence float64              `json:"confidence,omitempty"`
}

// SkippedCandidate records a candidate that was not persisted and why.
type SkippedCandidate struct {
	Candidate       ScanCandidate `json:"issue"`
	Reason          string        `json:"reason"`
	ExistingIssueID string        `json:"existingIssueId,omitempty"`
}

// ScanSummary breaks surviving candidates down by type, priority, and
// detection method.
type ScanSummary struct {
	ByType     map[string]int               `json:"byType"`
	ByPriority map[models.IssuePriority]int `json:"byPriority"`
	ByMethod   map[string]int               `json:"byMethod"`
}

// ScanResult is the outcome of a ScanSourceCode run. Created and Skipped are
// bounded previews; the counts are authoritative.
type ScanResult struct {
	TotalFound    int                `json:"totalFound"`
	CreatedCount  int                `json:"created"`
	SkippedCount  int                `json:"skipped"`
	Created       []*models.Issue    `json:"createdIssues"`
	Skipped       []SkippedCandidate `json:"skippedIssues"`
	FilesAnalyzed int                `json:"filesAnalyzed"`
	AIEnabled     bool               `json:"aiEnabled"`
	Summary       ScanSummary        `json:"summary"`
}

// ScanSourceCode walks a repository tree at the given branch, collects TODO
// comments and model-flagged findings from source files, deduplicates them,
// and files the survivors as issues with code-location provenance.
//
// Owner and repo default to the project's provenance block when empty. A
// branch that cannot be resolved fails with ErrNotFound; per-file and
// per-candidate failures are logged and recorded, never fatal.
func (imp *Importer) ScanSourceCode(ctx context.Context, projectID, owner, repo, branch string, maxFiles int, actorID string) (*ScanResult, error) {
	project, err := imp.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if owner == "" && project.GitHubRepo != nil {
		owner = project.GitHubRepo.Owner
	}
	if repo == "" && project.GitHubRepo != nil {
		repo = project.GitHubRepo.Repo
	}
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("github repository information required: %w", tracker.ErrValidation)
	}
	if branch == "" {
		branch = "main"
	}
	if maxFiles <= 0 {
		maxFiles = defaultMaxFiles
	}

	sha, err := imp.gh.GetBranchSHA(ctx, owner, repo, branch)
	if err != nil {
		return nil, fmt.Errorf("branch %q not found: %w", branch, store.ErrNotFound)
	}
	tree, err := imp.gh.GetTreeRecursive(ctx, owner, repo, sha)
	if err != nil {
		return nil, err
	}

	files := filterCodeFiles(tree, maxFiles)
	candidates := imp.collectCandidates(ctx, owner, repo, files)
	unique := dedupCandidates(candidates)

	result := &ScanResult{
		TotalFound:    len(unique),
		FilesAnalyzed: len(files),
		AIEnabled:     imp.classifier.Configured(),
		Summary:       summarize(unique),
	}

	existing, err := imp.store.ListIssues(ctx, store.IssueListFilter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}

	repository := owner + "/" + repo
	for _, cand := range unique {
		if match := findExisting(existing, cand); match != nil {
			result.SkippedCount++
			if len(result.Skipped) < skippedPreviewCap {
				result.Skipped = append(result.Skipped, SkippedCandidate{
					Candidate:       cand,
					Reason:          "Similar issue already exists",
					ExistingIssueID: match.ID,
				})
			}
			continue
		}

		issue := candidateIssue(cand, projectID, actorID, branch, repository)
		if err := imp.store.CreateIssue(ctx, issue); err != nil {
			imp.logger.Warn("scan issue creation failed", "title", cand.Title, "error", err)
			result.SkippedCount++
			if len(result.Skipped) < skippedPreviewCap {
				result.Skipped = append(result.Skipped, SkippedCandidate{Candidate: cand, Reason: "Database error"})
			}
			continue
		}

		// New issues participate in the existing-issue check for the rest
		// of the run.
		existing = append(existing, issue)
		result.CreatedCount++
		if len(result.Created) < createdPreviewCap {
			result.Created = append(result.Created, issue)
		}
	}

	return result, nil
}

func filterCodeFiles(tree []github.TreeEntry, maxFiles int) []github.TreeEntry {
	var files []github.TreeEntry
	for _, e := range tree {
		if !hasCodeExtension(e.Path) || ignoredPath(e.Path) {
			continue
		}
		files = append(files, e)
		if len(files) == maxFiles {
			break
		}
	}
	return files
}

func hasCodeExtension(p string) bool {
	for _, ext := range codeExtensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

func ignoredPath(p string) bool {
	for _, pattern := range ignorePatterns {
		if strings.Contains(p, pattern) {
			return true
		}
	}
	return false
}

// collectCandidates fetches each file and produces regex and model
// candidates. File fetch and model failures skip to the next file.
func (imp *Importer) collectCandidates(ctx context.Context, owner, repo string, files []github.TreeEntry) []ScanCandidate {
	var candidates []ScanCandidate
	for _, file := range files {
		content, err := imp.gh.GetBlob(ctx, owner, repo, file.SHA)
		if err != nil {
			imp.logger.Warn("file fetch failed", "path", file.Path, "error", err)
			continue
		}

		for i, line := range strings.Split(content, "\n") {
			m := todoPattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			body := strings.TrimSpace(m[1])
			if body == "" {
				body = "No description"
			}
			candidates = append(candidates, ScanCandidate{
				Type:       "TodoComment",
				Title:      "TODO/FIXME found in " + path.Base(file.Path),
				Body:       body,
				LineNumber: i + 1,
				FilePath:   file.Path,
				Priority:   models.IssuePriorityLow,
				Category:   "TechDebt",
				Method:     MethodRegex,
			})
		}

		if imp.classifier.Configured() && len(content) < llmFileLimit {
			findings, err := imp.classifier.ClassifyCode(ctx, file.Path, content)
			if err != nil {
				imp.logger.Warn("code review failed", "path", file.Path, "error", err)
				continue
			}
			for _, f := range findings {
				candidates = append(candidates, ScanCandidate{
					Type:       f.Type,
					Title:      f.Title,
					Body:       f.Body,
					LineNumber: f.LineNumber,
					FilePath:   file.Path,
					Priority:   f.Priority,
					Category:   f.Type,
					Method:     MethodAI,
					Confidence: 0.8,
				})
			}
		}
	}
	return candidates
}

// dedupCandidates keeps the first of any pair sharing title and file path
// with line numbers fewer than 5 apart.
func dedupCandidates(candidates []ScanCandidate) []ScanCandidate {
	var unique []ScanCandidate
	for _, c := range candidates {
		dup := false
		for _, u := range unique {
			if u.Title == c.Title && u.FilePath == c.FilePath && abs(u.LineNumber-c.LineNumber) < 5 {
				dup = true
				break
			}
		}
		if !dup {
			unique = append(unique, c)
		}
	}
	return unique
}

// findExisting reports an issue whose title contains the candidate title's
// first 20 characters and whose description contains the body's first 30,
// case-insensitively.
func findExisting(issues []*models.Issue, cand ScanCandidate) *models.Issue {
	titlePrefix := strings.ToLower(prefix(cand.Title, 20))
	bodyPrefix := strings.ToLower(prefix(cand.Body, 30))
	for _, issue := range issues {
		if strings.Contains(strings.ToLower(issue.Title), titlePrefix) &&
			strings.Contains(strings.ToLower(issue.Description), bodyPrefix) {
			return issue
		}
	}
	return nil
}

func candidateIssue(cand ScanCandidate, projectID, actorID, branch, repository string) *models.Issue {
	title := cand.Title
	if title == "" {
		title = "Code issue in " + path.Base(cand.FilePath)
	}
	body := cand.Body
	if body == "" {
		body = "Issue found during code analysis"
	}

	method := "Regex Pattern Matching"
	methodLabel := "Pattern-Matched"
	if cand.Method == MethodAI {
		method = "AI Analysis"
		methodLabel = "AI-Detected"
	}
	var sb strings.Builder
	sb.WriteString(body)
	sb.WriteString("\n\n**Location:** `" + cand.FilePath + "`\n")
	if cand.LineNumber > 0 {
		fmt.Fprintf(&sb, "**Line:** %d\n", cand.LineNumber)
	}
	sb.WriteString("**Method:** " + method + "\n")
	sb.WriteString("**Type:** " + cand.Type + "\n\n")
	sb.WriteString("This issue was automatically detected by code analysis.")

	priority := cand.Priority
	if !models.ValidPriority(priority) {
		priority = models.IssuePriorityMedium
	}

	issue := &models.Issue{
		ProjectID:   projectID,
		Title:       title,
		Description: sb.String(),
		Status:      models.IssueStatusOpen,
		Priority:    priority,
		CreatedBy:   actorID,
		Labels:      []string{cand.Category, "AI-Generated", methodLabel},
		CodeLoc: &models.CodeLocation{
			FilePath:   cand.FilePath,
			LineNumber: cand.LineNumber,
			Branch:     branch,
			Repository: repository,
		},
	}
	if cand.Method == MethodAI {
		issue.AITriage = &models.AITriage{
			SuggestedCategory: cand.Category,
			Confidence:        cand.Confidence,
			DuplicateCheck:    false,
			Analysis:          "Automatically detected in code file " + cand.FilePath,
		}
	}
	return issue
}

func summarize(candidates []ScanCandidate) ScanSummary {
	s := ScanSummary{
		ByType:     map[string]int{},
		ByPriority: map[models.IssuePriority]int{},
		ByMethod:   map[string]int{},
	}
	for _, c := range candidates {
		s.ByType[c.Type]++
		s.ByPriority[c.Priority]++
		s.ByMethod[c.Method]++
	}
	return s
}

func prefix(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
