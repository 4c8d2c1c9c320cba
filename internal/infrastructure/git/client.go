package git

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"

	"CrewPublisher/internal/config"
	"CrewPublisher/internal/ports"
)

const redacted = "***"

// Runner executes git with args inside dir and returns the combined output.
type Runner func(ctx context.Context, dir string, args ...string) ([]byte, error)

// Client drives the git CLI against a single working copy.
type Client struct {
	repoPath string
	pushURL  string
	branch   string
	token    string
	run      Runner
}

var _ ports.VersionControl = (*Client)(nil)

// Option customizes a Client during construction.
type Option func(*Client)

// WithRunner replaces the git executor, mainly for tests.
func WithRunner(r Runner) Option {
	return func(c *Client) {
		if r != nil {
			c.run = r
		}
	}
}

// NewClient prepares a client for cfg.RepoPath pushing to cfg.RemoteURL.
// The auth token, when set, is embedded as URL user info.
func NewClient(cfg config.PublicationConfig, opts ...Option) (*Client, error) {
	if cfg.RepoPath == "" {
		return nil, fmt.Errorf("git: repository path is not configured")
	}
	if cfg.RemoteURL == "" {
		return nil, fmt.Errorf("git: remote url is not configured")
	}

	pushURL, err := authenticatedURL(cfg.RemoteURL, cfg.AuthToken)
	if err != nil {
		return nil, err
	}

	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}

	c := &Client{
		repoPath: cfg.RepoPath,
		pushURL:  pushURL,
		branch:   branch,
		token:    cfg.AuthToken,
		run:      execRunner,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Add stages paths relative to the working copy.
func (c *Client) Add(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return fmt.Errorf("git add: no paths given")
	}
	return c.git(ctx, append([]string{"add", "--"}, paths...)...)
}

// Commit records the staged changes.
func (c *Client) Commit(ctx context.Context, message string) error {
	return c.git(ctx, "commit", "-m", message)
}

// Push sends the configured branch to the remote.
func (c *Client) Push(ctx context.Context) error {
	return c.git(ctx, "push", c.pushURL, c.branch)
}

func (c *Client) git(ctx context.Context, args ...string) error {
	out, err := c.run(ctx, c.repoPath, args...)
	if err != nil {
		detail := strings.TrimSpace(c.redact(string(out)))
		if detail == "" {
			return fmt.Errorf("git %s: %s", args[0], c.redact(err.Error()))
		}
		return fmt.Errorf("git %s: %s: %s", args[0], c.redact(err.Error()), detail)
	}
	return nil
}

func (c *Client) redact(s string) string {
	if c.token == "" {
		return s
	}
	return strings.ReplaceAll(s, c.token, redacted)
}

func authenticatedURL(remote, token string) (string, error) {
	if token == "" {
		return remote, nil
	}
	parsed, err := url.Parse(remote)
	if err != nil {
		return "", fmt.Errorf("git: invalid remote url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return "", fmt.Errorf("git: token auth needs an http(s) remote, got %q", parsed.Scheme)
	}
	parsed.User = url.User(token)
	return parsed.String(), nil
}

func execRunner(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	return cmd.CombinedOutput()
}
