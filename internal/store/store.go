package store

import (
	"context"
	"errors"

	"github.com/issuedeck/issuedeck/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// IssueListFilter specifies filters for listing issues.
type IssueListFilter struct {
	ProjectID  string
	Status     models.IssueStatus
	Priority   models.IssuePriority
	AssignedTo string
	Search     string // case-insensitive substring over title+description
}

// IssuePatch holds partial issue updates. Nil fields are left untouched.
type IssuePatch struct {
	Title       *string
	Description *string
	Status      *models.IssueStatus
	Priority    *models.IssuePriority
	AssignedTo  *string
	SprintID    *string
	Labels      []string
}

// Store defines the persistence interface for issuedeck.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetProjectByNameAndOwner(ctx context.Context, name, createdBy string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	DeleteProject(ctx context.Context, id string) error // cascades to sprints, issues, comments

	// Issues
	CreateIssue(ctx context.Context, issue *models.Issue) error
	GetIssue(ctx context.Context, id string) (*models.Issue, error)
	ListIssues(ctx context.Context, filter IssueListFilter) ([]*models.Issue, error)
	UpdateIssue(ctx context.Context, issue *models.Issue) error
	DeleteIssue(ctx context.Context, id string) error // cascades to comments
	BulkUpdateIssues(ctx context.Context, ids []string, patch IssuePatch) (int64, error)
	BulkDeleteIssues(ctx context.Context, ids []string) (int64, error)

	// Sprints
	CreateSprint(ctx context.Context, sprint *models.Sprint) error
	ListSprints(ctx context.Context, projectID string) ([]*models.Sprint, error)

	// Comments
	CreateComment(ctx context.Context, c *models.Comment) error
	ListComments(ctx context.Context, issueID string) ([]*models.Comment, error)

	// Dependencies
	CreateDependency(ctx context.Context, d *models.Dependency) error
	GetDependencyByEdge(ctx context.Context, fromIssue, toIssue string, depType models.DependencyType) (*models.Dependency, error)
	ListDependencies(ctx context.Context, issueID string) ([]*models.Dependency, error)
	DeleteDependency(ctx context.Context, id string) error

	// Issue templates
	CreateTemplate(ctx context.Context, t *models.IssueTemplate) error
	GetTemplate(ctx context.Context, id string) (*models.IssueTemplate, error)
	ListTemplates(ctx context.Context) ([]*models.IssueTemplate, error)
	DeleteTemplate(ctx context.Context, id string) error
	IncrementTemplateUsage(ctx context.Context, id string) error

	// Users
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)

	// Activities
	CreateActivity(ctx context.Context, a *models.Activity) error
	ListActivities(ctx context.Context, limit int) ([]*models.Activity, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
