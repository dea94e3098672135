// Package tracker implements the issue lifecycle: creation, the
// resolve/close state machine, bulk operations, dependencies, templates,
// and project-level operations. All state-changing operations emit
// best-effort activity records.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/issuedeck/issuedeck/internal/activity"
	"github.com/issuedeck/issuedeck/internal/llm"
	"github.com/issuedeck/issuedeck/internal/models"
	"github.com/issuedeck/issuedeck/internal/notify"
	"github.com/issuedeck/issuedeck/internal/store"
)

// Service carries the persistence handle and side-effect collaborators.
type Service struct {
	store      store.Store
	activities *activity.Recorder
	notifier   *notify.Notifier
	llm        llm.Completer
	logger     *slog.Logger
}

// NewService creates the lifecycle service. The notifier and completer may
// be unconfigured; the recorder must not be nil.
func NewService(s store.Store, rec *activity.Recorder, n *notify.Notifier, completer llm.Completer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      s,
		activities: rec,
		notifier:   n,
		llm:        completer,
		logger:     logger,
	}
}

// Store exposes the underlying persistence handle for read paths that need
// no lifecycle rules.
func (s *Service) Store() store.Store {
	return s.store
}

// CreateIssueInput is the caller-supplied portion of a new issue.
type CreateIssueInput struct {
	ProjectID   string
	SprintID    string
	Title       string
	Description string
	Priority    models.IssuePriority
	AssignedTo  string
	Labels      []string
}

// CreateIssue validates and persists a new issue, emitting an activity and
// a best-effort Slack notification.
func (s *Service) CreateIssue(ctx context.Context, in CreateIssueInput, actorID string) (*models.Issue, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("title is required: %w", ErrValidation)
	}
	if in.Description == "" {
		return nil, fmt.Errorf("description is required: %w", ErrValidation)
	}
	if in.ProjectID == "" {
		return nil, fmt.Errorf("projectId is required: %w", ErrValidation)
	}
	if actorID == "" {
		return nil, fmt.Errorf("acting user is required: %w", ErrValidation)
	}
	if in.Priority != "" && !models.ValidPriority(in.Priority) {
		return nil, fmt.Errorf("invalid priority %q: %w", in.Priority, ErrValidation)
	}

	if _, err := s.store.GetProject(ctx, in.ProjectID); err != nil {
		return nil, err
	}

	issue := &models.Issue{
		ProjectID:   in.ProjectID,
		SprintID:    in.SprintID,
		Title:       in.Title,
		Description: in.Description,
		Status:      models.IssueStatusOpen,
		Priority:    in.Priority,
		AssignedTo:  in.AssignedTo,
		CreatedBy:   actorID,
		Labels:      models.DedupLabels(in.Labels),
	}
	if err := s.store.CreateIssue(ctx, issue); err != nil {
		return nil, err
	}

	s.activities.Record(models.Activity{
		Type:        models.ActivityIssueCreated,
		Description: fmt.Sprintf("Created issue %q", issue.Title),
		UserID:      actorID,
		IssueID:     issue.ID,
		ProjectID:   issue.ProjectID,
	})
	if s.notifier != nil {
		s.notifier.IssueCreated(ctx, issue, s.userName(ctx, actorID))
	}
	return issue, nil
}

// Resolve transitions an issue to Resolved. Legal from Open or In Progress;
// any authenticated user may resolve (resolution is a collaborative action,
// not gated to assignee or project owner).
func (s *Service) Resolve(ctx context.Context, issueID, resolutionNotes, actorID string) (*models.Issue, error) {
	issue, err := s.store.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	if issue.Status == models.IssueStatusResolved || issue.Status == models.IssueStatusClosed {
		return nil, fmt.Errorf("issue is already resolved or closed: %w", ErrConflict)
	}

	if resolutionNotes == "" {
		resolutionNotes = "Issue resolved"
	}
	issue.Status = models.IssueStatusResolved
	issue.Resolution = &models.Resolution{
		Notes:      resolutionNotes,
		ResolvedBy: actorID,
		ResolvedAt: time.Now().UTC(),
	}
	if err := s.store.UpdateIssue(ctx, issue); err != nil {
		return nil, err
	}

	s.activities.Record(models.Activity{
		Type:        models.ActivityIssueResolved,
		Description: fmt.Sprintf("Resolved issue %q", issue.Title),
		UserID:      actorID,
		IssueID:     issue.ID,
		ProjectID:   issue.ProjectID,
	})
	if s.notifier != nil {
		s.notifier.IssueResolved(ctx, issue, s.userName(ctx, actorID))
	}
	return issue, nil
}

// Close transitions a Resolved issue to Closed. Only the owning project's
// creator may close. The resolution block is left untouched.
func (s *Service) Close(ctx context.Context, issueID, actorID string) (*models.Issue, error) {
	issue, err := s.store.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	if issue.Status == models.IssueStatusClosed {
		return nil, fmt.Errorf("issue is already closed: %w", ErrConflict)
	}
	if issue.Status != models.IssueStatusResolved {
		return nil, fmt.Errorf("issue must be resolved before it can be closed: %w", ErrConflict)
	}

	project, err := s.store.GetProject(ctx, issue.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.CreatedBy != actorID {
		return nil, fmt.Errorf("only the project creator can close issues: %w", ErrForbidden)
	}

	issue.Status = models.IssueStatusClosed
	if err := s.store.UpdateIssue(ctx, issue); err != nil {
		return nil, err
	}

	s.activities.Record(models.Activity{
		Type:        models.ActivityIssueClosed,
		Description: fmt.Sprintf("Closed issue %q", issue.Title),
		UserID:      actorID,
		IssueID:     issue.ID,
		ProjectID:   issue.ProjectID,
	})
	return issue, nil
}

// Update applies a partial update with no transition-legality check. This is
// a deliberate escape hatch: a status written here bypasses the
// resolve/close protocol and does not maintain the resolution block, so a
// direct write of "Resolved" leaves resolution empty. Callers wanting the
// protocol use Resolve and Close.
func (s *Service) Update(ctx context.Context, issueID string, patch store.IssuePatch) (*models.Issue, error) {
	issue, err := s.store.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	if patch.Status != nil && !models.ValidStatus(*patch.Status) {
		return nil, fmt.Errorf("invalid status %q: %w", *patch.Status, ErrValidation)
	}
	if patch.Priority != nil && !models.ValidPriority(*patch.Priority) {
		return nil, fmt.Errorf("invalid priority %q: %w", *patch.Priority, ErrValidation)
	}

	if patch.Title != nil {
		if *patch.Title == "" {
			return nil, fmt.Errorf("title cannot be empty: %w", ErrValidation)
		}
		issue.Title = *patch.Title
	}
	if patch.Description != nil {
		if *patch.Description == "" {
			return nil, fmt.Errorf("description cannot be empty: %w", ErrValidation)
		}
		issue.Description = *patch.Description
	}
	if patch.Status != nil {
		issue.Status = *patch.Status
	}
	if patch.Priority != nil {
		issue.Priority = *patch.Priority
	}
	if patch.AssignedTo != nil {
		issue.AssignedTo = *patch.AssignedTo
	}
	if patch.SprintID != nil {
		issue.SprintID = *patch.SprintID
	}
	if patch.Labels != nil {
		issue.Labels = models.DedupLabels(patch.Labels)
	}

	if err := s.store.UpdateIssue(ctx, issue); err != nil {
		return nil, err
	}
	return issue, nil
}

// Delete removes an issue and its comments.
func (s *Service) Delete(ctx context.Context, issueID string) error {
	return s.store.DeleteIssue(ctx, issueID)
}

// BulkUpdate applies Update semantics across ids. Not atomic: whichever ids
// match get updated; the caller receives a modified count, not per-id
// results.
func (s *Service) BulkUpdate(ctx context.Context, ids []string, patch store.IssuePatch) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("issue ids are required: %w", ErrValidation)
	}
	if patch.Status != nil && !models.ValidStatus(*patch.Status) {
		return 0, fmt.Errorf("invalid status %q: %w", *patch.Status, ErrValidation)
	}
	if patch.Priority != nil && !models.ValidPriority(*patch.Priority) {
		return 0, fmt.Errorf("invalid priority %q: %w", *patch.Priority, ErrValidation)
	}
	return s.store.BulkUpdateIssues(ctx, ids, patch)
}

// BulkDelete deletes ids and their comments, returning a deleted count.
func (s *Service) BulkDelete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("issue ids are required: %w", ErrValidation)
	}
	return s.store.BulkDeleteIssues(ctx, ids)
}

// AddComment attaches a comment to an issue and records an activity.
func (s *Service) AddComment(ctx context.Context, issueID, text, actorID string) (*models.Comment, error) {
	if text == "" {
		return nil, fmt.Errorf("comment text is required: %w", ErrValidation)
	}
	issue, err := s.store.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{IssueID: issue.ID, Text: text, CreatedBy: actorID}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, err
	}

	s.activities.Record(models.Activity{
		Type:        models.ActivityCommentAdded,
		Description: "Added a comment on issue",
		UserID:      actorID,
		IssueID:     issue.ID,
		ProjectID:   issue.ProjectID,
		CommentID:   comment.ID,
	})
	return comment, nil
}

// userName resolves an actor id to a display name, falling back to the id.
func (s *Service) userName(ctx context.Context, userID string) string {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return userID
	}
	return u.Name
}
