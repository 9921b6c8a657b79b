// Package npm implements the PackageRegistry port by shelling out to the
// npm CLI, which owns authentication and registry selection via .npmrc.
package npm

import (
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"strings"

	sherrors "github.com/relicta-tech/shipway/internal/errors"
	"github.com/relicta-tech/shipway/internal/ports"
)

// packagePattern validates npm package names before they are interpolated
// into a command line (scoped or unscoped).
var packagePattern = regexp.MustCompile(`^(@[a-z0-9-~][a-z0-9-._~]*\/)?[a-z0-9-~][a-z0-9-._~]*$`)

// Client runs npm commands in a fixed working directory.
type Client struct {
	dir string
}

var _ ports.PackageRegistry = (*Client)(nil)

// NewClient creates a registry client rooted at dir.
func NewClient(dir string) *Client {
	return &Client{dir: dir}
}

// Whoami returns the authenticated registry user.
func (c *Client) Whoami(ctx context.Context) (string, error) {
	const op = "npm.Whoami"

	out, err := c.run(ctx, "whoami")
	if err != nil {
		return "", sherrors.WrapSafe(err, sherrors.KindRegistry, op, "registry authentication failed")
	}
	return strings.TrimSpace(out), nil
}

// Publish publishes the package in dir to the registry.
func (c *Client) Publish(ctx context.Context, dir string) error {
	const op = "npm.Publish"

	cmd := exec.CommandContext(ctx, "npm", "publish")
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "npm publish failed"
		}
		return sherrors.WrapSafe(err, sherrors.KindRegistry, op, sherrors.RedactSensitive(msg))
	}
	return nil
}

// PublishedVersion returns the latest version the registry reports for the
// package, or "" when the registry does not know it.
func (c *Client) PublishedVersion(ctx context.Context, pkg string) (string, error) {
	const op = "npm.PublishedVersion"

	if !packagePattern.MatchString(pkg) {
		return "", sherrors.Validation(op, "invalid package name")
	}

	out, err := c.run(ctx, "view", pkg, "version")
	if err != nil {
		// npm view exits non-zero for unknown packages; treat as absent.
		if strings.Contains(err.Error(), "E404") || strings.Contains(err.Error(), "404") {
			return "", nil
		}
		return "", sherrors.WrapSafe(err, sherrors.KindRegistry, op, "registry query failed")
	}
	return strings.TrimSpace(out), nil
}

// run executes npm with the given arguments and returns stdout.
func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "npm", args...)
	cmd.Dir = c.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", sherrors.Newf(sherrors.KindRegistry, "%s", sherrors.RedactSensitive(msg))
		}
		return "", err
	}
	return stdout.String(), nil
}
