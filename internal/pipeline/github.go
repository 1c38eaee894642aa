package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"

	"github.com/everstacklabs/curator/internal/catalog"
	"github.com/everstacklabs/curator/internal/config"
	"github.com/everstacklabs/curator/internal/diff"
	"github.com/everstacklabs/curator/internal/validate"
)

// GitHubPRCreator commits the written catalog to a fresh branch and
// opens a pull request with the rendered changelog as its body.
type GitHubPRCreator struct {
	catalogPath string
	gh          config.GitHubConfig
	now         func() time.Time
}

// NewGitHubPRCreator creates a PRCreator for the catalog repository.
func NewGitHubPRCreator(catalogPath string, gh config.GitHubConfig) *GitHubPRCreator {
	return &GitHubPRCreator{catalogPath: catalogPath, gh: gh, now: time.Now}
}

// RequestReview pushes the catalog changes and opens the PR. Returns the
// PR number.
func (c *GitHubPRCreator) RequestReview(ctx context.Context, report *diff.Report,
	results []*validate.Result, unapplied map[catalog.Key]bool, draft bool) (int, error) {

	branchName := fmt.Sprintf("curator/sync-%s", c.now().Format("20060102-150405"))
	commitMsg := fmt.Sprintf("chore(catalog): %s", report.Summary())

	gitOps, err := OpenRepo(c.catalogPath, c.gh.Token)
	if err != nil {
		return 0, err
	}

	if err := gitOps.CreateBranch(branchName); err != nil {
		return 0, fmt.Errorf("creating branch: %w", err)
	}
	if err := gitOps.AddAll(); err != nil {
		return 0, fmt.Errorf("staging changes: %w", err)
	}
	if err := gitOps.Commit(commitMsg); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}
	if err := gitOps.Push(branchName); err != nil {
		return 0, fmt.Errorf("pushing: %w", err)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.gh.Token})
	tc := oauth2.NewClient(ctx, ts)
	client := github.NewClient(tc)

	title := fmt.Sprintf("chore(catalog): sync (%s)", report.Summary())
	body := report.RenderChangelog(unapplied)
	if section := renderValidationSection(results); section != "" {
		body += "\n" + section
	}

	pr, _, err := client.PullRequests.Create(ctx, c.gh.Owner, c.gh.Repo, &github.NewPullRequest{
		Title: &title,
		Body:  &body,
		Head:  &branchName,
		Base:  &c.gh.BaseBranch,
		Draft: &draft,
	})
	if err != nil {
		return 0, fmt.Errorf("creating PR: %w", err)
	}

	slog.Info("PR created",
		"number", pr.GetNumber(),
		"draft", draft,
		"url", pr.GetHTMLURL())

	return pr.GetNumber(), nil
}

// renderValidationSection summarizes validation findings for the PR
// body. Clean runs produce no section.
func renderValidationSection(results []*validate.Result) string {
	var b strings.Builder
	for _, r := range results {
		if len(r.Errors) == 0 && len(r.Warnings) == 0 {
			continue
		}
		if b.Len() == 0 {
			b.WriteString("## Validation\n\n")
		}
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "- ❌ `%s/%s`: %s\n", r.Provider, r.EntryID, e)
		}
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- ⚠️ `%s/%s`: %s\n", r.Provider, r.EntryID, w)
		}
	}
	return b.String()
}
