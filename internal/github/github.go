// Package github adapts the GitHub REST API for the import and code-scan
// pipelines. The Client interface is what pipelines consume; tests
// substitute fakes.
package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	gh "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

// Repo is the subset of repository metadata the import pipeline records.
type Repo struct {
	Name        string
	Description string
	URL         string
	Stars       int
	Forks       int
	Watchers    int
	Language    string
	OpenIssues  int
}

// Issue is a GitHub issue as consumed by the import pipeline. Pull requests
// are filtered out before this type is produced.
type Issue struct {
	Number    int
	Title     string
	Body      string
	State     string
	URL       string
	Labels    []string
	CreatedAt string
	UpdatedAt string
}

// TreeEntry is a blob entry in a repository tree.
type TreeEntry struct {
	Path string
	SHA  string
}

// Collaborator is a repository collaborator login.
type Collaborator struct {
	Login     string
	AvatarURL string
}

// ListIssuesOptions control issue listing.
type ListIssuesOptions struct {
	State     string // "open", "closed", or "all"
	PerPage   int
	Sort      string
	Direction string
}

// Client is the GitHub capability consumed by the pipelines.
type Client interface {
	GetRepo(ctx context.Context, owner, repo string) (*Repo, error)
	ListIssues(ctx context.Context, owner, repo string, opts ListIssuesOptions) ([]*Issue, error)
	GetBranchSHA(ctx context.Context, owner, repo, branch string) (string, error)
	GetTreeRecursive(ctx context.Context, owner, repo, sha string) ([]TreeEntry, error)
	GetBlob(ctx context.Context, owner, repo, sha string) (string, error)
	ListCollaborators(ctx context.Context, owner, repo string) ([]Collaborator, error)
	ListLanguages(ctx context.Context, owner, repo string) (map[string]int, error)
	HasToken() bool
}

// RESTClient implements Client using the GitHub v3 REST API. An empty token
// yields an unauthenticated client subject to lower rate limits;
// ListCollaborators additionally requires a token.
type RESTClient struct {
	api      *gh.Client
	hasToken bool
}

// NewClient creates a REST client, authenticated when token is non-empty.
func NewClient(token string) *RESTClient {
	client := gh.NewClient(nil)
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		client = gh.NewClient(oauth2.NewClient(context.Background(), ts))
	}
	return &RESTClient{api: client, hasToken: token != ""}
}

// HasToken reports whether the client was configured with a token.
func (c *RESTClient) HasToken() bool {
	return c.hasToken
}

func (c *RESTClient) GetRepo(ctx context.Context, owner, repo string) (*Repo, error) {
	r, _, err := c.api.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("get repo %s/%s: %w", owner, repo, err)
	}
	return &Repo{
		Name:        r.GetName(),
		Description: r.GetDescription(),
		URL:         r.GetHTMLURL(),
		Stars:       r.GetStargazersCount(),
		Forks:       r.GetForksCount(),
		Watchers:    r.GetWatchersCount(),
		Language:    r.GetLanguage(),
		OpenIssues:  r.GetOpenIssuesCount(),
	}, nil
}

func (c *RESTClient) ListIssues(ctx context.Context, owner, repo string, opts ListIssuesOptions) ([]*Issue, error) {
	if opts.PerPage == 0 {
		opts.PerPage = 100
	}
	listOpts := &gh.IssueListByRepoOptions{
		State:     opts.State,
		Sort:      opts.Sort,
		Direction: opts.Direction,
		ListOptions: gh.ListOptions{
			PerPage: opts.PerPage,
		},
	}

	raw, _, err := c.api.Issues.ListByRepo(ctx, owner, repo, listOpts)
	if err != nil {
		return nil, fmt.Errorf("list issues %s/%s: %w", owner, repo, err)
	}

	var issues []*Issue
	for _, i := range raw {
		// The issues endpoint returns pull requests too.
		if i.IsPullRequest() {
			continue
		}
		labels := make([]string, 0, len(i.Labels))
		for _, l := range i.Labels {
			labels = append(labels, l.GetName())
		}
		issues = append(issues, &Issue{
			Number:    i.GetNumber(),
			Title:     i.GetTitle(),
			Body:      i.GetBody(),
			State:     i.GetState(),
			URL:       i.GetHTMLURL(),
			Labels:    labels,
			CreatedAt: i.GetCreatedAt().Format("2006-01-02T15:04:05Z"),
			UpdatedAt: i.GetUpdatedAt().Format("2006-01-02T15:04:05Z"),
		})
	}
	return issues, nil
}

func (c *RESTClient) GetBranchSHA(ctx context.Context, owner, repo, branch string) (string, error) {
	b, _, err := c.api.Repositories.GetBranch(ctx, owner, repo, branch, 0)
	if err != nil {
		return "", fmt.Errorf("get branch %s: %w", branch, err)
	}
	return b.GetCommit().GetSHA(), nil
}

func (c *RESTClient) GetTreeRecursive(ctx context.Context, owner, repo, sha string) ([]TreeEntry, error) {
	tree, _, err := c.api.Git.GetTree(ctx, owner, repo, sha, true)
	if err != nil {
		return nil, fmt.Errorf("get tree %s: %w", sha, err)
	}

	var entries []TreeEntry
	for _, e := range tree.Entries {
		if e.GetType() != "blob" {
			continue
		}
		entries = append(entries, TreeEntry{Path: e.GetPath(), SHA: e.GetSHA()})
	}
	return entries, nil
}

// GetBlob fetches a blob and returns its decoded text content.
func (c *RESTClient) GetBlob(ctx context.Context, owner, repo, sha string) (string, error) {
	blob, _, err := c.api.Git.GetBlob(ctx, owner, repo, sha)
	if err != nil {
		return "", fmt.Errorf("get blob %s: %w", sha, err)
	}
	content := blob.GetContent()
	if blob.GetEncoding() == "base64" {
		// The API inserts newlines into base64 payloads.
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content, "\n", ""))
		if err != nil {
			return "", fmt.Errorf("decode blob %s: %w", sha, err)
		}
		return string(decoded), nil
	}
	return content, nil
}

func (c *RESTClient) ListCollaborators(ctx context.Context, owner, repo string) ([]Collaborator, error) {
	raw, _, err := c.api.Repositories.ListCollaborators(ctx, owner, repo, nil)
	if err != nil {
		return nil, fmt.Errorf("list collaborators %s/%s: %w", owner, repo, err)
	}
	var out []Collaborator
	for _, u := range raw {
		out = append(out, Collaborator{Login: u.GetLogin(), AvatarURL: u.GetAvatarURL()})
	}
	return out, nil
}

func (c *RESTClient) ListLanguages(ctx context.Context, owner, repo string) (map[string]int, error) {
	langs, _, err := c.api.Repositories.ListLanguages(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("list languages %s/%s: %w", owner, repo, err)
	}
	return langs, nil
}
