package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/issuedeck/issuedeck/internal/models"
	"github.com/issuedeck/issuedeck/internal/store"
)

// CreateDependency links two issues. Self-loops are rejected as validation
// errors; an existing (from, to, type) edge is a conflict. No cycle
// detection is performed: independent edges may coexist.
func (s *Service) CreateDependency(ctx context.Context, fromIssue, toIssue string, depType models.DependencyType, description, actorID string) (*models.Dependency, error) {
	if fromIssue == "" || toIssue == "" {
		return nil, fmt.Errorf("both issues are required: %w", ErrValidation)
	}
	if fromIssue == toIssue {
		return nil, fmt.Errorf("an issue cannot depend on itself: %w", ErrValidation)
	}
	if !models.ValidDependencyType(depType) {
		return nil, fmt.Errorf("invalid dependency type %q: %w", depType, ErrValidation)
	}

	if _, err := s.store.GetIssue(ctx, fromIssue); err != nil {
		return nil, err
	}
	if _, err := s.store.GetIssue(ctx, toIssue); err != nil {
		return nil, err
	}

	if _, err := s.store.GetDependencyByEdge(ctx, fromIssue, toIssue, depType); err == nil {
		return nil, fmt.Errorf("dependency already exists: %w", ErrConflict)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	dep := &models.Dependency{
		FromIssue:   fromIssue,
		ToIssue:     toIssue,
		Type:        depType,
		Description: description,
		CreatedBy:   actorID,
	}
	if err := s.store.CreateDependency(ctx, dep); err != nil {
		return nil, err
	}
	return dep, nil
}

// ListDependencies returns all edges touching an issue.
func (s *Service) ListDependencies(ctx context.Context, issueID string) ([]*models.Dependency, error) {
	if _, err := s.store.GetIssue(ctx, issueID); err != nil {
		return nil, err
	}
	return s.store.ListDependencies(ctx, issueID)
}

// DeleteDependency removes an edge by id.
func (s *Service) DeleteDependency(ctx context.Context, id string) error {
	return s.store.DeleteDependency(ctx, id)
}
