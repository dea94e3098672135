package triage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/issuedeck/issuedeck/internal/llm"
	"github.com/issuedeck/issuedeck/internal/models"
)

// codeExcerptLimit bounds how much of a file is sent to the model.
const codeExcerptLimit = 8000

// CodeFinding is a single issue the model flagged in a source file.
type CodeFinding struct {
	Title      string
	Body       string
	LineNumber int
	Type       string
	Priority   models.IssuePriority
}

const codeSystemPrompt = "You are a senior software engineer analyzing code for issues. Return valid JSON only, no markdown formatting."

func codePrompt(path, content string) string {
	excerpt := content
	truncated := ""
	if len(excerpt) > codeExcerptLimit {
		excerpt = excerpt[:codeExcerptLimit]
		truncated = "\n... (truncated)"
	}
	return fmt.Sprintf(`You are an expert senior developer. Analyze this code file for potential issues. Identify and return a JSON list of issues. For each issue, provide:

1. issueTitle: A clear, concise title for the issue
2. issueBody: A description of the problem and suggestion for fixing it
3. lineNumber: The approximate line number where the issue is (or null if not specific)
4. type: One of ('Bug', 'Performance', 'TechDebt', 'Documentation', 'Security', 'CodeQuality')
5. priority: One of ('Low', 'Medium', 'High', 'Critical')

Look for:
- Hardcoded secrets or API keys
- Empty catch blocks
- Potential null reference errors
- Inefficient loops or queries
- Security vulnerabilities
- Code smells or anti-patterns
- Missing error handling
- Performance issues

File: %s
Code:
`+"```"+`
%s%s
`+"```"+`

Respond in JSON format only:
{
  "issues": [
    {
      "issueTitle": "title",
      "issueBody": "description",
      "lineNumber": 123,
      "type": "Bug|Performance|TechDebt|Documentation|Security|CodeQuality",
      "priority": "Low|Medium|High|Critical"
    }
  ]
}`, path, excerpt, truncated)
}

type llmCodeFinding struct {
	IssueTitle string `json:"issueTitle"`
	IssueBody  string `json:"issueBody"`
	LineNumber int    `json:"lineNumber"`
	Type       string `json:"type"`
	Priority   string `json:"priority"`
}

// ClassifyCode runs a code-review prompt over a file excerpt and returns any
// findings. An unconfigured completer returns no findings and no error;
// adapter and parse failures return errors for the caller to log and skip.
func (c *Classifier) ClassifyCode(ctx context.Context, path, content string) ([]CodeFinding, error) {
	if !c.llm.Configured() {
		return nil, nil
	}

	raw, err := c.llm.Complete(ctx, codePrompt(path, content), codeSystemPrompt, llm.Options{
		Temperature: 0.2,
		MaxTokens:   1000,
	})
	if err != nil {
		return nil, fmt.Errorf("code review %s: %w", path, err)
	}

	var parsed struct {
		Issues []llmCodeFinding `json:"issues"`
	}
	if err := json.Unmarshal([]byte(llm.StripFences(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse code review response for %s: %w", path, err)
	}

	var findings []CodeFinding
	for _, f := range parsed.Issues {
		finding := CodeFinding{
			Title:      f.IssueTitle,
			Body:       f.IssueBody,
			LineNumber: f.LineNumber,
			Type:       f.Type,
			Priority:   models.IssuePriority(f.Priority),
		}
		if finding.Title == "" {
			finding.Title = "Potential issue"
		}
		if finding.Body == "" {
			finding.Body = "Found by AI analysis"
		}
		if finding.Type == "" {
			finding.Type = "CodeQuality"
		}
		if !models.ValidPriority(finding.Priority) {
			finding.Priority = models.IssuePriorityMedium
		}
		findings = append(findings, finding)
	}
	return findings, nil
}
