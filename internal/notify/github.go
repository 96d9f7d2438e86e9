package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v68/github"
	"github.com/zulandar/foreman/internal/conflict"
	"golang.org/x/oauth2"
)

// issueLabel marks issues filed by foreman so reruns can find them.
const issueLabel = "foreman"

// issueService abstracts the go-github Issues methods we use.
type issueService interface {
	Create(ctx context.Context, owner, repo string, issue *github.IssueRequest) (*github.Issue, *github.Response, error)
	ListByRepo(ctx context.Context, owner, repo string, opts *github.IssueListByRepoOptions) ([]*github.Issue, *github.Response, error)
}

// GitHubOpts holds parameters for creating a GitHub issue notifier.
type GitHubOpts struct {
	Token string
	// Repo is "owner/name".
	Repo string
	// MinSeverity is the lowest severity that files an issue. Defaults to critical.
	MinSeverity conflict.Severity
	// For testing: inject a mock issue service.
	Issues issueService
}

// GitHub escalates severe alerts to issues. An open foreman issue with the
// same title suppresses a duplicate.
type GitHub struct {
	issues      issueService
	owner, repo string
	min         conflict.Severity
}

// NewGitHub creates a GitHub issue notifier.
func NewGitHub(ctx context.Context, opts GitHubOpts) (*GitHub, error) {
	owner, repo, ok := strings.Cut(opts.Repo, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("github: repo must be owner/name, got %q", opts.Repo)
	}
	issues := opts.Issues
	if issues == nil {
		if opts.Token == "" {
			return nil, fmt.Errorf("github: token is required")
		}
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		issues = github.NewClient(oauth2.NewClient(ctx, ts)).Issues
	}
	floor := opts.MinSeverity
	if floor == "" {
		floor = conflict.SeverityCritical
	}
	return &GitHub{issues: issues, owner: owner, repo: repo, min: floor}, nil
}

// Notify implements Notifier. Alerts below the severity threshold are
// ignored.
func (g *GitHub) Notify(ctx context.Context, a Alert) error {
	if a.Severity.Level() < g.min.Level() {
		return nil
	}
	open, _, err := g.issues.ListByRepo(ctx, g.owner, g.repo, &github.IssueListByRepoOptions{
		State:       "open",
		Labels:      []string{issueLabel},
		ListOptions: github.ListOptions{PerPage: 100},
	})
	if err != nil {
		return fmt.Errorf("github: list issues in %s/%s: %w", g.owner, g.repo, err)
	}
	for _, is := range open {
		if is.GetTitle() == a.Title {
			return nil
		}
	}
	req := &github.IssueRequest{
		Title:  github.Ptr(a.Title),
		Body:   github.Ptr(issueBody(a)),
		Labels: &[]string{issueLabel, "severity:" + string(a.Severity)},
	}
	if _, _, err := g.issues.Create(ctx, g.owner, g.repo, req); err != nil {
		return fmt.Errorf("github: create issue in %s/%s: %w", g.owner, g.repo, err)
	}
	return nil
}

func issueBody(a Alert) string {
	var b strings.Builder
	b.WriteString(a.Body)
	b.WriteString("\n\n")
	for _, f := range a.Fields {
		fmt.Fprintf(&b, "**%s:** %s\n", f.Name, f.Value)
	}
	if a.Key != "" {
		fmt.Fprintf(&b, "\n<!-- foreman:%s -->\n", a.Key)
	}
	return b.String()
}
