package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/issuedeck/issuedeck/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool,
	// preventing "database is locked" errors from concurrent requests.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// encodeBlock marshals an optional sub-record to JSON, mapping nil to NULL.
func encodeBlock(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode block: %w", err)
	}
	return string(data), nil
}

// decodeBlock unmarshals a nullable JSON column into v, leaving v untouched
// for NULL.
func decodeBlock(s sql.NullString, v any) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), v)
}

func encodeLabels(labels []string) (string, error) {
	if labels == nil {
		labels = []string{}
	}
	data, err := json.Marshal(labels)
	if err != nil {
		return "", fmt.Errorf("encode labels: %w", err)
	}
	return string(data), nil
}

func decodeLabels(s string) ([]string, error) {
	var labels []string
	if s == "" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(s), &labels); err != nil {
		return nil, fmt.Errorf("decode labels: %w", err)
	}
	if len(labels) == 0 {
		return nil, nil
	}
	return labels, nil
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Projects ---

func (s *SQLiteStore) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = newULID()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	repo, err := encodeBlock(blockOrNil(p.GitHubRepo))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, created_by, github_repo, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.CreatedBy, repo, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// blockOrNil converts a typed nil pointer to an untyped nil so encodeBlock
// stores NULL instead of the string "null".
func blockOrNil[T any](p *T) any {
	if p == nil {
		return nil
	}
	return p
}

func (s *SQLiteStore) scanProject(row interface{ Scan(...any) error }) (*models.Project, error) {
	p := &models.Project{}
	var repo sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedBy, &repo, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if repo.Valid && repo.String != "" {
		p.GitHubRepo = &models.GitHubRepo{}
		if err := decodeBlock(repo, p.GitHubRepo); err != nil {
			return nil, fmt.Errorf("decode github repo: %w", err)
		}
	}
	return p, nil
}

const projectCols = "id, name, description, created_by, github_repo, created_at, updated_at"

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+projectCols+" FROM projects WHERE id = ?", id)
	p, err := s.scanProject(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) GetProjectByNameAndOwner(ctx context.Context, name, createdBy string) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+projectCols+" FROM projects WHERE name = ? AND created_by = ?", name, createdBy)
	p, err := s.scanProject(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project by name: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+projectCols+" FROM projects ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*models.Project
	for rows.Next() {
		p, err := s.scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, p *models.Project) error {
	p.UpdatedAt = time.Now().UTC()
	repo, err := encodeBlock(blockOrNil(p.GitHubRepo))
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name=?, description=?, github_repo=?, updated_at=? WHERE id=?`,
		p.Name, p.Description, repo, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("project %s: %w", p.ID, ErrNotFound)
	}
	return nil
}

// DeleteProject removes a project and cascades to its sprints, issues, and
// the issues' comments.
func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM comments WHERE issue_id IN (SELECT id FROM issues WHERE project_id = ?)", id); err != nil {
		return fmt.Errorf("delete project comments: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM dependencies WHERE from_issue IN (SELECT id FROM issues WHERE project_id = ?) OR to_issue IN (SELECT id FROM issues WHERE project_id = ?)", id, id); err != nil {
		return fmt.Errorf("delete project dependencies: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM issues WHERE project_id = ?", id); err != nil {
		return fmt.Errorf("delete project issues: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sprints WHERE project_id = ?", id); err != nil {
		return fmt.Errorf("delete project sprints: %w", err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

// --- Issues ---

const issueCols = "id, project_id, sprint_id, title, description, status, priority, assigned_to, created_by, labels, ai_triage, github_issue, code_location, resolution, created_at, updated_at"

func (s *SQLiteStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue.ID == "" {
		issue.ID = newULID()
	}
	now := time.Now().UTC()
	issue.CreatedAt = now
	issue.UpdatedAt = now
	if issue.Status == "" {
		issue.Status = models.IssueStatusOpen
	}
	if issue.Priority == "" {
		issue.Priority = models.IssuePriorityMedium
	}

	labels, err := encodeLabels(issue.Labels)
	if err != nil {
		return err
	}
	triage, err := encodeBlock(blockOrNil(issue.AITriage))
	if err != nil {
		return err
	}
	gh, err := encodeBlock(blockOrNil(issue.GitHubIssue))
	if err != nil {
		return err
	}
	loc, err := encodeBlock(blockOrNil(issue.CodeLoc))
	if err != nil {
		return err
	}
	res, err := encodeBlock(blockOrNil(issue.Resolution))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO issues (`+issueCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		issue.ID, issue.ProjectID, issue.SprintID, issue.Title, issue.Description,
		string(issue.Status), string(issue.Priority), issue.AssignedTo, issue.CreatedBy,
		labels, triage, gh, loc, res, issue.CreatedAt, issue.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	return nil
}

func (s *SQLiteStore) scanIssue(row interface{ Scan(...any) error }) (*models.Issue, error) {
	issue := &models.Issue{}
	var status, priority, labels string
	var triage, gh, loc, res sql.NullString

	err := row.Scan(&issue.ID, &issue.ProjectID, &issue.SprintID, &issue.Title, &issue.Description,
		&status, &priority, &issue.AssignedTo, &issue.CreatedBy,
		&labels, &triage, &gh, &loc, &res, &issue.CreatedAt, &issue.UpdatedAt)
	if err != nil {
		return nil, err
	}

	issue.Status = models.IssueStatus(status)
	issue.Priority = models.IssuePriority(priority)
	if issue.Labels, err = decodeLabels(labels); err != nil {
		return nil, err
	}
	if triage.Valid && triage.String != "" {
		issue.AITriage = &models.AITriage{}
		if err := decodeBlock(triage, issue.AITriage); err != nil {
			return nil, fmt.Errorf("decode ai triage: %w", err)
		}
	}
	if gh.Valid && gh.String != "" {
		issue.GitHubIssue = &models.GitHubIssue{}
		if err := decodeBlock(gh, issue.GitHubIssue); err != nil {
			return nil, fmt.Errorf("decode github issue: %w", err)
		}
	}
	if loc.Valid && loc.String != "" {
		issue.CodeLoc = &models.CodeLocation{}
		if err := decodeBlock(loc, issue.CodeLoc); err != nil {
			return nil, fmt.Errorf("decode code location: %w", err)
		}
	}
	if res.Valid && res.String != "" {
		issue.Resolution = &models.Resolution{}
		if err := decodeBlock(res, issue.Resolution); err != nil {
			return nil, fmt.Errorf("decode resolution: %w", err)
		}
	}
	return issue, nil
}

func (s *SQLiteStore) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+issueCols+" FROM issues WHERE id = ?", id)
	issue, err := s.scanIssue(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return issue, nil
}

func (s *SQLiteStore) ListIssues(ctx context.Context, filter IssueListFilter) ([]*models.Issue, error) {
	query := "SELECT " + issueCols + " FROM issues"
	var conditions []string
	var args []any

	if filter.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Priority != "" {
		conditions = append(conditions, "priority = ?")
		args = append(args, string(filter.Priority))
	}
	if filter.AssignedTo != "" {
		conditions = append(conditions, "assigned_to = ?")
		args = append(args, filter.AssignedTo)
	}
	if filter.Search != "" {
		conditions = append(conditions, "(title LIKE ? COLLATE NOCASE OR description LIKE ? COLLATE NOCASE)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var issues []*models.Issue
	for rows.Next() {
		issue, err := s.scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

func (s *SQLiteStore) UpdateIssue(ctx context.Context, issue *models.Issue) error {
	issue.UpdatedAt = time.Now().UTC()

	labels, err := encodeLabels(issue.Labels)
	if err != nil {
		return err
	}
	triage, err := encodeBlock(blockOrNil(issue.AITriage))
	if err != nil {
		return err
	}
	res, err := encodeBlock(blockOrNil(issue.Resolution))
	if err != nil {
		return err
	}

	// GitHub and code-location provenance blocks are immutable after
	// creation and deliberately excluded from updates.
	result, err := s.db.ExecContext(ctx,
		`UPDATE issues SET sprint_id=?, title=?, description=?, status=?, priority=?, assigned_to=?, labels=?, ai_triage=?, resolution=?, updated_at=?
		WHERE id=?`,
		issue.SprintID, issue.Title, issue.Description, string(issue.Status), string(issue.Priority),
		issue.AssignedTo, labels, triage, res, issue.UpdatedAt, issue.ID,
	)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("issue %s: %w", issue.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteIssue(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM comments WHERE issue_id = ?", id); err != nil {
		return fmt.Errorf("delete issue comments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM dependencies WHERE from_issue = ? OR to_issue = ?", id, id); err != nil {
		return fmt.Errorf("delete issue dependencies: %w", err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM issues WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

// BulkUpdateIssues applies the non-nil patch fields to every matching id.
// Returns the number of rows updated; missing ids are silently skipped.
func (s *SQLiteStore) BulkUpdateIssues(ctx context.Context, ids []string, patch IssuePatch) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var sets []string
	var args []any
	if patch.Title != nil {
		sets = append(sets, "title=?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description=?")
		args = append(args, *patch.Description)
	}
	if patch.Status != nil {
		sets = append(sets, "status=?")
		args = append(args, string(*patch.Status))
	}
	if patch.Priority != nil {
		sets = append(sets, "priority=?")
		args = append(args, string(*patch.Priority))
	}
	if patch.AssignedTo != nil {
		sets = append(sets, "assigned_to=?")
		args = append(args, *patch.AssignedTo)
	}
	if patch.SprintID != nil {
		sets = append(sets, "sprint_id=?")
		args = append(args, *patch.SprintID)
	}
	if patch.Labels != nil {
		labels, err := encodeLabels(models.DedupLabels(patch.Labels))
		if err != nil {
			return 0, err
		}
		sets = append(sets, "labels=?")
		args = append(args, labels)
	}
	if len(sets) == 0 {
		return 0, nil
	}
	sets = append(sets, "updated_at=?")
	args = append(args, time.Now().UTC())

	placeholders := make([]string, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf("UPDATE issues SET %s WHERE id IN (%s)",
		strings.Join(sets, ", "), strings.Join(placeholders, ","))
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("bulk update issues: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// BulkDeleteIssues deletes the matching ids and their comments. Returns the
// number of issues deleted.
func (s *SQLiteStore) BulkDeleteIssues(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	in := strings.Join(placeholders, ",")

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM comments WHERE issue_id IN (%s)", in), args...); err != nil {
		return 0, fmt.Errorf("bulk delete comments: %w", err)
	}
	doubled := append(append([]any{}, args...), args...)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM dependencies WHERE from_issue IN (%s) OR to_issue IN (%s)", in, in), doubled...); err != nil {
		return 0, fmt.Errorf("bulk delete dependencies: %w", err)
	}

	result, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM issues WHERE id IN (%s)", in), args...)
	if err != nil {
		return 0, fmt.Errorf("bulk delete issues: %w", err)
	}
	n, _ := result.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return n, nil
}

// --- Sprints ---

func (s *SQLiteStore) CreateSprint(ctx context.Context, sprint *models.Sprint) error {
	if sprint.ID == "" {
		sprint.ID = newULID()
	}
	sprint.CreatedAt = time.Now().UTC()
	if sprint.Status == "" {
		sprint.Status = models.SprintStatusPlanned
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sprints (id, project_id, name, status, start_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sprint.ID, sprint.ProjectID, sprint.Name, string(sprint.Status),
		sprint.StartDate, sprint.EndDate, sprint.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create sprint: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListSprints(ctx context.Context, projectID string) ([]*models.Sprint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, name, status, start_date, end_date, created_at
		FROM sprints WHERE project_id = ? ORDER BY created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list sprints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sprints []*models.Sprint
	for rows.Next() {
		sp := &models.Sprint{}
		var status string
		var start, end sql.NullTime
		if err := rows.Scan(&sp.ID, &sp.ProjectID, &sp.Name, &status, &start, &end, &sp.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sprint: %w", err)
		}
		sp.Status = models.SprintStatus(status)
		if start.Valid {
			sp.StartDate = &start.Time
		}
		if end.Valid {
			sp.EndDate = &end.Time
		}
		sprints = append(sprints, sp)
	}
	return sprints, rows.Err()
}

// --- Comments ---

func (s *SQLiteStore) CreateComment(ctx context.Context, c *models.Comment) error {
	if c.ID == "" {
		c.ID = newULID()
	}
	c.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO comments (id, issue_id, text, created_by, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.IssueID, c.Text, c.CreatedBy, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListComments(ctx context.Context, issueID string) ([]*models.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, issue_id, text, created_by, created_at
		FROM comments WHERE issue_id = ? ORDER BY created_at DESC`, issueID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var comments []*models.Comment
	for rows.Next() {
		c := &models.Comment{}
		if err := rows.Scan(&c.ID, &c.IssueID, &c.Text, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// --- Dependencies ---

func (s *SQLiteStore) CreateDependency(ctx context.Context, d *models.Dependency) error {
	if d.ID == "" {
		d.ID = newULID()
	}
	d.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dependencies (id, from_issue, to_issue, type, description, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.FromIssue, d.ToIssue, string(d.Type), d.Description, d.CreatedBy, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create dependency: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetDependencyByEdge(ctx context.Context, fromIssue, toIssue string, depType models.DependencyType) (*models.Dependency, error) {
	d := &models.Dependency{}
	var typ string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, from_issue, to_issue, type, description, created_by, created_at
		FROM dependencies WHERE from_issue = ? AND to_issue = ? AND type = ?`,
		fromIssue, toIssue, string(depType),
	).Scan(&d.ID, &d.FromIssue, &d.ToIssue, &typ, &d.Description, &d.CreatedBy, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("dependency: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get dependency: %w", err)
	}
	d.Type = models.DependencyType(typ)
	return d, nil
}

func (s *SQLiteStore) ListDependencies(ctx context.Context, issueID string) ([]*models.Dependency, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, from_issue, to_issue, type, description, created_by, created_at
		FROM dependencies WHERE from_issue = ? OR to_issue = ? ORDER BY created_at`, issueID, issueID)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var deps []*models.Dependency
	for rows.Next() {
		d := &models.Dependency{}
		var typ string
		if err := rows.Scan(&d.ID, &d.FromIssue, &d.ToIssue, &typ, &d.Description, &d.CreatedBy, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		d.Type = models.DependencyType(typ)
		deps = append(deps, d)
	}
	return deps, rows.Err()
}

func (s *SQLiteStore) DeleteDependency(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM dependencies WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete dependency: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("dependency %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Issue templates ---

func (s *SQLiteStore) CreateTemplate(ctx context.Context, t *models.IssueTemplate) error {
	if t.ID == "" {
		t.ID = newULID()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.DefaultPriority == "" {
		t.DefaultPriority = models.IssuePriorityMedium
	}

	labels, err := encodeLabels(t.DefaultLabels)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO issue_templates (id, title, default_description, default_priority, default_labels, usage_count, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.DefaultDescription, string(t.DefaultPriority), labels,
		t.UsageCount, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTemplate(ctx context.Context, id string) (*models.IssueTemplate, error) {
	t := &models.IssueTemplate{}
	var priority, labels string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, default_description, default_priority, default_labels, usage_count, created_by, created_at, updated_at
		FROM issue_templates WHERE id = ?`, id,
	).Scan(&t.ID, &t.Title, &t.DefaultDescription, &priority, &labels, &t.UsageCount, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	t.DefaultPriority = models.IssuePriority(priority)
	if t.DefaultLabels, err = decodeLabels(labels); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLiteStore) ListTemplates(ctx context.Context) ([]*models.IssueTemplate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, default_description, default_priority, default_labels, usage_count, created_by, created_at, updated_at
		FROM issue_templates ORDER BY usage_count DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var templates []*models.IssueTemplate
	for rows.Next() {
		t := &models.IssueTemplate{}
		var priority, labels string
		if err := rows.Scan(&t.ID, &t.Title, &t.DefaultDescription, &priority, &labels, &t.UsageCount, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		t.DefaultPriority = models.IssuePriority(priority)
		if t.DefaultLabels, err = decodeLabels(labels); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (s *SQLiteStore) DeleteTemplate(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM issue_templates WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) IncrementTemplateUsage(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE issue_templates SET usage_count = usage_count + 1, updated_at = ? WHERE id = ?",
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("increment template usage: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Users ---

func (s *SQLiteStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = newULID()
	}
	u.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	u := &models.User{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, created_at FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, email, created_at FROM users ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// --- Activities ---

func (s *SQLiteStore) CreateActivity(ctx context.Context, a *models.Activity) error {
	if a.ID == "" {
		a.ID = newULID()
	}
	a.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activities (id, type, description, user_id, issue_id, project_id, comment_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Type, a.Description, a.UserID, a.IssueID, a.ProjectID, a.CommentID, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListActivities(ctx context.Context, limit int) ([]*models.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, description, user_id, issue_id, project_id, comment_id, created_at
		FROM activities ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var activities []*models.Activity
	for rows.Next() {
		a := &models.Activity{}
		if err := rows.Scan(&a.ID, &a.Type, &a.Description, &a.UserID, &a.IssueID, &a.ProjectID, &a.CommentID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}
