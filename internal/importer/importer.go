// Package importer materializes GitHub repositories as tracked projects:
// repository import (metadata + issues, classified on the way in) and
// source-tree scanning for code findings. Per-item failures are logged and
// skipped; only repository, branch, and tree lookups abort a run.
package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/issuedeck/issuedeck/internal/github"
	"github.com/issuedeck/issuedeck/internal/models"
	"github.com/issuedeck/issuedeck/internal/store"
	"github.com/issuedeck/issuedeck/internal/tracker"
	"github.com/issuedeck/issuedeck/internal/triage"
)

// previewCap bounds the imported-issue preview in an ImportResult.
const previewCap = 10

// Importer runs the GitHub import and code-scan pipelines.
type Importer struct {
	store      store.Store
	gh         github.Client
	classifier *triage.Classifier
	logger     *slog.Logger
}

// NewImporter creates an importer. The classifier must not be nil; pipelines
// fall back to label or regex heuristics when its completer is unconfigured.
func NewImporter(st store.Store, gh github.Client, classifier *triage.Classifier, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: st, gh: gh, classifier: classifier, logger: logger}
}

// ImportedIssue pairs a persisted issue with the classifier output that
// shaped it. Analysis is empty when classification fell back to labels.
type ImportedIssue struct {
	Issue      *models.Issue `json:"issue"`
	Analysis   string        `json:"analysis,omitempty"`
	Confidence float64       `json:"confidence,omitempty"`
}

// ImportResult is the outcome of an ImportProject run.
type ImportResult struct {
	Project       *models.Project       `json:"project"`
	IssuesCount   int                   `json:"issuesCount"`
	Preview       []ImportedIssue       `json:"analyzedIssues"`
	Collaborators []github.Collaborator `json:"collaborators"`
	Languages     map[string]int        `json:"languages"`
	AIEnabled     bool                  `json:"aiEnabled"`
}

// ImportProject fetches a repository, creates a project with provenance, and
// optionally imports its issues (pull requests excluded), classifying each.
//
// A repository that cannot be fetched fails with ErrNotFound. A project with
// the same name already owned by the actor fails with ErrConflict; the
// returned result still carries the existing project so callers can surface
// it. Single-issue failures are logged and skipped.
func (imp *Importer) ImportProject(ctx context.Context, owner, repo string, importIssues bool, actorID string) (*ImportResult, error) {
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("github owner and repository name required: %w", tracker.ErrValidation)
	}
	if actorID == "" {
		return nil, fmt.Errorf("acting user is required: %w", tracker.ErrValidation)
	}

	meta, err := imp.gh.GetRepo(ctx, owner, repo)
	if err != nil {
		imp.logger.Warn("github repo lookup failed", "owner", owner, "repo", repo, "error", err)
		return nil, fmt.Errorf("github repository not found or not accessible: %w", store.ErrNotFound)
	}

	name := meta.Name
	if name == "" {
		name = owner + "/" + repo
	}

	if existing, err := imp.store.GetProjectByNameAndOwner(ctx, name, actorID); err == nil {
		return &ImportResult{Project: existing}, fmt.Errorf("a project with this name already exists: %w", tracker.ErrConflict)
	}

	project := &models.Project{
		Name:        name,
		Description: meta.Description,
		CreatedBy:   actorID,
		GitHubRepo: &models.GitHubRepo{
			Owner:      owner,
			Repo:       repo,
			URL:        meta.URL,
			Stars:      meta.Stars,
			Forks:      meta.Forks,
			Language:   meta.Language,
			OpenIssues: meta.OpenIssues,
		},
	}
	if err := imp.store.CreateProject(ctx, project); err != nil {
		return nil, err
	}

	result := &ImportResult{
		Project:   project,
		Languages: map[string]int{},
		AIEnabled: imp.classifier.Configured(),
	}

	if importIssues {
		imp.importIssues(ctx, project, owner, repo, actorID, result)
	}

	// Collaborators need a token; languages are always worth a try. Both
	// are best-effort and reported empty on failure.
	if imp.gh.HasToken() {
		if collabs, err := imp.gh.ListCollaborators(ctx, owner, repo); err != nil {
			imp.logger.Warn("collaborator fetch failed", "owner", owner, "repo", repo, "error", err)
		} else {
			result.Collaborators = collabs
		}
	}
	if langs, err := imp.gh.ListLanguages(ctx, owner, repo); err != nil {
		imp.logger.Warn("language fetch failed", "owner", owner, "repo", repo, "error", err)
	} else if langs != nil {
		result.Languages = langs
	}

	return result, nil
}

func (imp *Importer) importIssues(ctx context.Context, project *models.Project, owner, repo, actorID string, result *ImportResult) {
	ghIssues, err := imp.gh.ListIssues(ctx, owner, repo, github.ListIssuesOptions{
		State:     "all",
		PerPage:   100,
		Sort:      "created",
		Direction: "desc",
	})
	if err != nil {
		// The project itself was created; issue import failing wholesale
		// is reported as zero imports.
		imp.logger.Warn("issue listing failed", "owner", owner, "repo", repo, "error", err)
		return
	}

	for _, gi := range ghIssues {
		cls := imp.classify(ctx, gi)

		status := models.IssueStatusOpen
		if gi.State == "closed" {
			status = models.IssueStatusClosed
		}

		description := gi.Body
		if description == "" {
			description = fmt.Sprintf("Imported from GitHub issue #%d", gi.Number)
		}

		issue := &models.Issue{
			ProjectID:   project.ID,
			Title:       gi.Title,
			Description: description,
			Status:      status,
			Priority:    cls.Priority,
			Labels:      models.DedupLabels(append(append([]string{}, gi.Labels...), cls.Category)),
			CreatedBy:   actorID,
			GitHubIssue: &models.GitHubIssue{
				Number:    gi.Number,
				URL:       gi.URL,
				State:     gi.State,
				CreatedAt: gi.CreatedAt,
				UpdatedAt: gi.UpdatedAt,
			},
		}

		imported := ImportedIssue{}
		if cls.Source == triage.SourceLLM {
			issue.AITriage = cls.Triage()
			imported.Analysis = cls.Analysis
			imported.Confidence = cls.Confidence
		}

		if err := imp.store.CreateIssue(ctx, issue); err != nil {
			imp.logger.Warn("issue import failed", "number", gi.Number, "title", gi.Title, "error", err)
			continue
		}

		imported.Issue = issue
		result.IssuesCount++
		if len(result.Preview) < previewCap {
			result.Preview = append(result.Preview, imported)
		}
	}
}

// classify runs the LLM classifier when available, degrading to label
// heuristics when it is unconfigured or did not produce a model result.
func (imp *Importer) classify(ctx context.Context, gi *github.Issue) *triage.Result {
	if imp.classifier.Configured() {
		if r := imp.classifier.Classify(ctx, gi.Title, gi.Body); r.Source == triage.SourceLLM {
			return r
		}
	}
	return triage.ClassifyFromLabels(gi.Labels)
}
