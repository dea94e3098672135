// Package mcp exposes the tracker over the Model Context Protocol so agents
// can triage, deduplicate, and resolve issues from a stdio session.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/issuedeck/issuedeck/internal/models"
	"github.com/issuedeck/issuedeck/internal/store"
	"github.com/issuedeck/issuedeck/internal/tracker"
	"github.com/issuedeck/issuedeck/internal/triage"
)

// Server wraps the issuedeck data layer and exposes it as MCP tools.
type Server struct {
	store      store.Store
	tracker    *tracker.Service
	classifier *triage.Classifier
}

// NewServer creates the MCP server wrapper.
func NewServer(svc *tracker.Service, classifier *triage.Classifier) *Server {
	return &Server{
		store:      svc.Store(),
		tracker:    svc,
		classifier: classifier,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("issuedeck", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.triageIssueTool())
	srv.AddTool(s.checkDuplicatesTool())
	srv.AddTool(s.resolveIssueTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// issuedeck_list_issues
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("issuedeck_list_issues",
		mcp.WithDescription("List issues, optionally filtered by project, status, and/or priority. Returns a JSON array of issues with id, title, description, status (Open/In Progress/Resolved/Closed), priority (Low/Medium/High/Critical), assignee, and labels."),
		mcp.WithString("project", mcp.Description("Project name or id to filter by")),
		mcp.WithString("status", mcp.Description("Status filter: Open, In Progress, Resolved, Closed")),
		mcp.WithString("priority", mcp.Description("Priority filter: Low, Medium, High, Critical")),
	)
	return tool, s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.IssueListFilter{}

	projectName := request.GetString("project", "")
	if projectName != "" {
		p, err := s.resolveProject(ctx, projectName)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectName)), nil
		}
		filter.ProjectID = p.ID
	}
	if status := request.GetString("status", ""); status != "" {
		filter.Status = models.IssueStatus(status)
	}
	if priority := request.GetString("priority", ""); priority != "" {
		filter.Priority = models.IssuePriority(priority)
	}

	issues, err := s.store.ListIssues(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list issues: %v", err)), nil
	}

	type issueOut struct {
		ID          string   `json:"id"`
		ProjectID   string   `json:"project_id"`
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Status      string   `json:"status"`
		Priority    string   `json:"priority"`
		AssignedTo  string   `json:"assigned_to,omitempty"`
		Labels      []string `json:"labels,omitempty"`
		CreatedAt   string   `json:"created_at"`
		UpdatedAt   string   `json:"updated_at"`
	}

	out := make([]issueOut, len(issues))
	for i, issue := range issues {
		out[i] = issueOut{
			ID:          issue.ID,
			ProjectID:   issue.ProjectID,
			Title:       issue.Title,
			Description: issue.Description,
			Status:      string(issue.Status),
			Priority:    string(issue.Priority),
			AssignedTo:  issue.AssignedTo,
			Labels:      issue.Labels,
			CreatedAt:   issue.CreatedAt.Format(time.RFC3339),
			UpdatedAt:   issue.UpdatedAt.Format(time.RFC3339),
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal issues: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// issuedeck_triage_issue
func (s *Server) triageIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("issuedeck_triage_issue",
		mcp.WithDescription("Classify an issue: suggested category, priority, confidence, and a short analysis. Pass an issue id to classify a stored issue, or title/description for ad-hoc text. Degrades to keyword heuristics when no model is configured."),
		mcp.WithString("issue", mcp.Description("Issue id (or unique prefix) to classify")),
		mcp.WithString("title", mcp.Description("Ad-hoc issue title")),
		mcp.WithString("description", mcp.Description("Ad-hoc issue description")),
	)
	return tool, s.handleTriageIssue
}

func (s *Server) handleTriageIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := request.GetString("title", "")
	description := request.GetString("description", "")

	if id := request.GetString("issue", ""); id != "" {
		issue, err := s.findIssue(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("issue not found: %s", id)), nil
		}
		title = issue.Title
		description = issue.Description
	}
	if title == "" && description == "" {
		return mcp.NewToolResultError("provide an issue id, or a title/description"), nil
	}

	result := s.classifier.Classify(ctx, title, description)
	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal triage result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// issuedeck_check_duplicates
func (s *Server) checkDuplicatesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("issuedeck_check_duplicates",
		mcp.WithDescription("Check candidate issue text against a project's non-closed issues for potential duplicates via keyword overlap. Returns isDuplicate and a list of matches with similarity percentages."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name or id")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Candidate issue text")),
	)
	return tool, s.handleCheckDuplicates
}

func (s *Server) handleCheckDuplicates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectName, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: text"), nil
	}

	p, err := s.resolveProject(ctx, projectName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectName)), nil
	}
	issues, err := s.store.ListIssues(ctx, store.IssueListFilter{ProjectID: p.ID})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list issues: %v", err)), nil
	}

	duplicates := triage.FindDuplicates(text, issues)
	result := map[string]any{
		"isDuplicate":         len(duplicates) > 0,
		"potentialDuplicates": duplicates,
	}
	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal duplicates: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// issuedeck_resolve_issue
func (s *Server) resolveIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("issuedeck_resolve_issue",
		mcp.WithDescription("Mark an issue Resolved with resolution notes. Legal from Open or In Progress only; already-resolved or closed issues are rejected."),
		mcp.WithString("issue", mcp.Required(), mcp.Description("Issue id (or unique prefix)")),
		mcp.WithString("notes", mcp.Description("Resolution notes")),
		mcp.WithString("user", mcp.Required(), mcp.Description("Acting user id")),
	)
	return tool, s.handleResolveIssue
}

func (s *Server) handleResolveIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("issue")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue"), nil
	}
	userID, err := request.RequireString("user")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: user"), nil
	}
	notes := request.GetString("notes", "")

	issue, err := s.findIssue(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("issue not found: %s", id)), nil
	}

	resolved, err := s.tracker.Resolve(ctx, issue.ID, notes, userID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("resolve failed: %v", err)), nil
	}

	data, err := json.Marshal(resolved)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal issue: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// resolveProject tries to find a project by name first, then by ID.
func (s *Server) resolveProject(ctx context.Context, name string) (*models.Project, error) {
	projects, err := s.store.ListProjects(ctx)
	if err == nil {
		for _, p := range projects {
			if p.Name == name {
				return p, nil
			}
		}
	}
	if p, err := s.store.GetProject(ctx, name); err == nil {
		return p, nil
	}
	return nil, fmt.Errorf("project not found: %s", name)
}

// findIssue finds an issue by full ID or unique prefix.
func (s *Server) findIssue(ctx context.Context, id string) (*models.Issue, error) {
	if issue, err := s.store.GetIssue(ctx, id); err == nil {
		return issue, nil
	}

	upper := strings.ToUpper(id)
	issues, err := s.store.ListIssues(ctx, store.IssueListFilter{})
	if err != nil {
		return nil, err
	}

	var matches []*models.Issue
	for _, issue := range issues {
		if strings.HasPrefix(strings.ToUpper(issue.ID), upper) {
			matches = append(matches, issue)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, fmt.Errorf("issue not found: %s", id)
	default:
		return nil, fmt.Errorf("ambiguous issue id %s matches %d issues", id, len(matches))
	}
}
