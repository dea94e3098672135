package tracker

import (
	"context"
	"fmt"

	"github.com/issuedeck/issuedeck/internal/models"
)

// CreateTemplate persists a reusable issue skeleton.
func (s *Service) CreateTemplate(ctx context.Context, t *models.IssueTemplate, actorID string) (*models.IssueTemplate, error) {
	if t.Title == "" {
		return nil, fmt.Errorf("template title is required: %w", ErrValidation)
	}
	if t.DefaultPriority != "" && !models.ValidPriority(t.DefaultPriority) {
		return nil, fmt.Errorf("invalid priority %q: %w", t.DefaultPriority, ErrValidation)
	}
	t.DefaultLabels = models.DedupLabels(t.DefaultLabels)
	t.CreatedBy = actorID
	if err := s.store.CreateTemplate(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// InstantiateTemplate creates an issue from a template and bumps the
// template's usage count. The description may override the template default.
func (s *Service) InstantiateTemplate(ctx context.Context, templateID, projectID, description, actorID string) (*models.Issue, error) {
	tmpl, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	if description == "" {
		description = tmpl.DefaultDescription
	}
	if description == "" {
		description = tmpl.Title
	}

	issue, err := s.CreateIssue(ctx, CreateIssueInput{
		ProjectID:   projectID,
		Title:       tmpl.Title,
		Description: description,
		Priority:    tmpl.DefaultPriority,
		Labels:      tmpl.DefaultLabels,
	}, actorID)
	if err != nil {
		return nil, err
	}

	if err := s.store.IncrementTemplateUsage(ctx, templateID); err != nil {
		// The issue exists; a missed usage bump is not worth failing over.
		s.logger.Warn("template usage bump failed", "template", templateID, "error", err)
	}
	return issue, nil
}
