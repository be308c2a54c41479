package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"

	"github.com/balaji-balu/fusion-deploy/internal/orchestrator"
)

const (
	statusContext     = "fusion-deploy"
	maxDescriptionLen = 140
)

// GitHubStatus sets a commit status on the commit that was deployed.
type GitHubStatus struct {
	client *github.Client
	owner  string
	repo   string
	target string
}

type GitHubOption func(*GitHubStatus) error

// WithAPIURL points the client at a GitHub Enterprise or test server.
func WithAPIURL(raw string) GitHubOption {
	return func(g *GitHubStatus) error {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse api url: %w", err)
		}
		g.client.BaseURL = u
		return nil
	}
}

// WithTargetURL links the status to the CI run.
func WithTargetURL(u string) GitHubOption {
	return func(g *GitHubStatus) error {
		g.target = u
		return nil
	}
}

// NewGitHubStatus builds a notifier for repository ("owner/name").
func NewGitHubStatus(ctx context.Context, token, repository string, opts ...GitHubOption) (*GitHubStatus, error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("repository %q is not in owner/name form", repository)
	}
	if token == "" {
		return nil, errors.New("github token is empty")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	g := &GitHubStatus{
		client: github.NewClient(oauth2.NewClient(ctx, ts)),
		owner:  owner,
		repo:   repo,
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *GitHubStatus) Name() string { return "github commit status" }

func (g *GitHubStatus) Notify(ctx context.Context, sum *orchestrator.Summary) error {
	if sum.SHA == "" {
		return errors.New("run has no commit sha")
	}

	state := "success"
	if sum.Outcome == orchestrator.OutcomeFailed {
		state = "failure"
	}
	desc := describe(sum)
	if len(desc) > maxDescriptionLen {
		desc = desc[:maxDescriptionLen-3] + "..."
	}

	status := &github.RepoStatus{
		State:       github.String(state),
		Description: github.String(desc),
		Context:     github.String(statusContext),
	}
	if g.target != "" {
		status.TargetURL = github.String(g.target)
	}

	_, _, err := g.client.Repositories.CreateStatus(ctx, g.owner, g.repo, sum.SHA, status)
	if err != nil {
		return fmt.Errorf("create status on %s/%s@%s: %w", g.owner, g.repo, sum.SHA, err)
	}
	return nil
}
