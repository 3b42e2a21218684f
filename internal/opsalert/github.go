package opsalert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v69/github"

	"github.com/cenourinhas/concierge/internal/buildinfo"
	"github.com/cenourinhas/concierge/internal/config"
	"github.com/cenourinhas/concierge/internal/httpkit"
)

// githubQueueSize bounds alerts waiting to be filed.
const githubQueueSize = 32

// GitHubNotifier files alerts as issues on the project's tracker, the
// same tracker the fallback reply points guests to. Alerts with the same
// kind and service share one open issue; repeats become comments.
// Filing happens on a background worker so a turn never waits on GitHub.
type GitHubNotifier struct {
	client *gogithub.Client
	owner  string
	repo   string
	label  string
	queue  chan Alert
	logger *slog.Logger
}

// NewGitHubNotifier creates a notifier for cfg.Repo. Call
// [GitHubNotifier.Run] to start filing.
func NewGitHubNotifier(cfg config.GitHubConfig, logger *slog.Logger) (*GitHubNotifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	owner, repo, ok := strings.Cut(cfg.Repo, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("invalid repo %q: expected owner/name", cfg.Repo)
	}

	httpClient := httpkit.NewClient(
		httpkit.WithTimeout(30*time.Second),
		httpkit.WithUserAgent(buildinfo.UserAgent()),
	)
	client := gogithub.NewClient(httpClient).WithAuthToken(cfg.Token)
	if cfg.URL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.URL, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("github url: %w", err)
		}
	}

	return &GitHubNotifier{
		client: client,
		owner:  owner,
		repo:   repo,
		label:  cfg.Label,
		queue:  make(chan Alert, githubQueueSize),
		logger: logger.With("component", "opsalert", "repo", cfg.Repo),
	}, nil
}

// Notify queues a for filing. A full queue drops the alert.
func (n *GitHubNotifier) Notify(_ context.Context, a Alert) {
	select {
	case n.queue <- a:
	default:
		n.logger.Warn("github alert dropped, queue full", "kind", a.Kind)
	}
}

// Run files queued alerts until ctx is cancelled.
func (n *GitHubNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-n.queue:
			if err := n.file(ctx, a); err != nil {
				n.logger.Warn("github alert failed", "kind", a.Kind, "error", err)
			}
		}
	}
}

// file comments on the open issue for a's title, or opens one.
func (n *GitHubNotifier) file(ctx context.Context, a Alert) error {
	title := issueTitle(a)
	body := issueBody(a)

	open, resp, err := n.client.Issues.ListByRepo(ctx, n.owner, n.repo, &gogithub.IssueListByRepoOptions{
		State:       "open",
		Labels:      []string{n.label},
		ListOptions: gogithub.ListOptions{PerPage: 100},
	})
	if err != nil {
		return fmt.Errorf("list issues: %w", err)
	}
	n.checkRateLimit(resp)

	for _, issue := range open {
		if issue.GetTitle() != title {
			continue
		}
		_, resp, err := n.client.Issues.CreateComment(ctx, n.owner, n.repo, issue.GetNumber(), &gogithub.IssueComment{
			Body: gogithub.Ptr(body),
		})
		if err != nil {
			return fmt.Errorf("comment on issue #%d: %w", issue.GetNumber(), err)
		}
		n.checkRateLimit(resp)
		n.logger.Info("alert added to issue", "issue", issue.GetNumber(), "kind", a.Kind)
		return nil
	}

	issue, resp, err := n.client.Issues.Create(ctx, n.owner, n.repo, &gogithub.IssueRequest{
		Title:  gogithub.Ptr(title),
		Body:   gogithub.Ptr(body),
		Labels: &[]string{n.label},
	})
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	n.checkRateLimit(resp)
	n.logger.Info("alert issue opened", "issue", issue.GetNumber(), "kind", a.Kind)
	return nil
}

// checkRateLimit logs a warning when remaining API calls run low.
func (n *GitHubNotifier) checkRateLimit(resp *gogithub.Response) {
	if resp == nil {
		return
	}
	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		n.logger.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset", resp.Rate.Reset.Time,
		)
	}
}

func issueTitle(a Alert) string {
	if a.Service != "" {
		return fmt.Sprintf("[concierge] %s: %s", a.Kind, a.Service)
	}
	return "[concierge] " + a.Kind
}

// issueBody leaves out the jid, which carries the guest's phone number.
// The request id is enough to find the turn in the logs.
func issueBody(a Alert) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s** at %s\n\n", a.Kind, a.Time.UTC().Format(time.RFC3339))
	if a.Detail != "" {
		fmt.Fprintf(&sb, "```\n%s\n```\n\n", a.Detail)
	}
	if a.RequestID != "" {
		fmt.Fprintf(&sb, "- request: `%s`\n", a.RequestID)
	}
	fmt.Fprintf(&sb, "- version: %s\n", buildinfo.Version)
	return sb.String()
}
