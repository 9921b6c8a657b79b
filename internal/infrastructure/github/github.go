// Package github implements the ReleaseHost port against the GitHub
// releases API.
package github

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"

	sherrors "github.com/relicta-tech/shipway/internal/errors"
	"github.com/relicta-tech/shipway/internal/ports"
)

// remotePatterns extract owner/repo from the common GitHub remote forms:
// git@github.com:owner/repo.git and https://github.com/owner/repo(.git).
var remotePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^git@github\.com:([^/]+)/(.+?)(?:\.git)?$`),
	regexp.MustCompile(`^https?://github\.com/([^/]+)/(.+?)(?:\.git)?/?$`),
	regexp.MustCompile(`^ssh://git@github\.com/([^/]+)/(.+?)(?:\.git)?$`),
}

// ParseRemote extracts owner and repository name from a git remote URL.
// It returns ok=false for non-GitHub remotes.
func ParseRemote(url string) (owner, repo string, ok bool) {
	url = strings.TrimSpace(url)
	for _, p := range remotePatterns {
		if m := p.FindStringSubmatch(url); m != nil {
			return m[1], m[2], true
		}
	}
	return "", "", false
}

// Client implements ports.ReleaseHost for a single repository.
type Client struct {
	gh    *github.Client
	owner string
	repo  string
}

var _ ports.ReleaseHost = (*Client)(nil)

// NewClient creates a release host client for owner/repo. An empty token
// produces an unauthenticated client, which AuthCheck will reject.
func NewClient(ctx context.Context, owner, repo, token string) *Client {
	var hc *http.Client
	if token != "" {
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	return &Client{
		gh:    github.NewClient(hc),
		owner: owner,
		repo:  repo,
	}
}

// AuthCheck verifies the configured credentials.
func (c *Client) AuthCheck(ctx context.Context) error {
	const op = "github.AuthCheck"

	if _, _, err := c.gh.Users.Get(ctx, ""); err != nil {
		return sherrors.WrapSafe(err, sherrors.KindReleaseHost, op, "release host authentication failed")
	}
	return nil
}

// CreateRelease creates a release for the tag and returns its id.
func (c *Client) CreateRelease(ctx context.Context, rel ports.Release) (int64, error) {
	const op = "github.CreateRelease"

	created, _, err := c.gh.Repositories.CreateRelease(ctx, c.owner, c.repo, &github.RepositoryRelease{
		TagName: github.String(rel.Tag),
		Name:    github.String(rel.Name),
		Body:    github.String(rel.Body),
	})
	if err != nil {
		return 0, sherrors.WrapSafe(err, sherrors.KindReleaseHost, op, "failed to create release")
	}
	return created.GetID(), nil
}

// GetRelease fetches the release for a tag, or nil when absent.
func (c *Client) GetRelease(ctx context.Context, tag string) (*ports.Release, error) {
	const op = "github.GetRelease"

	rel, resp, err := c.gh.Repositories.GetReleaseByTag(ctx, c.owner, c.repo, tag)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, sherrors.WrapSafe(err, sherrors.KindReleaseHost, op, "failed to fetch release")
	}

	return &ports.Release{
		ID:   rel.GetID(),
		Tag:  rel.GetTagName(),
		Name: rel.GetName(),
		Body: rel.GetBody(),
	}, nil
}

// DeleteRelease removes the release object. Deleting a release does not
// delete its tag; tag removal is the version control port's job.
func (c *Client) DeleteRelease(ctx context.Context, id int64) error {
	const op = "github.DeleteRelease"

	if _, err := c.gh.Repositories.DeleteRelease(ctx, c.owner, c.repo, id); err != nil {
		return sherrors.WrapSafe(err, sherrors.KindReleaseHost, op, "failed to delete release")
	}
	return nil
}
