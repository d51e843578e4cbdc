package gitrepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"hackreview/internal/services"
)

const stageName = "clone"

// Metadata describes a freshly cloned repository.
type Metadata struct {
	Path          string    `json:"path"`
	CommitSHA     string    `json:"commit_sha"`
	DefaultBranch string    `json:"default_branch,omitempty"`
	ClonedAt      time.Time `json:"cloned_at"`
}

// Client runs git commands.
type Client struct {
	binary  string
	timeout time.Duration
	now     func() time.Time
}

// New returns a Client using binary (default "git"). timeout bounds one
// clone attempt; zero disables the per-call deadline.
func New(binary string, timeout time.Duration) *Client {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "git"
	}
	return &Client{binary: binary, timeout: timeout, now: func() time.Time { return time.Now().UTC() }}
}

// Binary reports the git executable the client runs.
func (c *Client) Binary() string { return c.binary }

// Clone clones cloneURL into dest. dest must not exist; callers remove stale
// checkouts before calling. Failures are classified as not found, private,
// invalid URL, or timeout.
func (c *Client) Clone(ctx context.Context, cloneURL, dest string) (Metadata, error) {
	cloneURL = strings.TrimSpace(cloneURL)
	if cloneURL == "" {
		return Metadata{}, services.Wrap(services.ErrInvalidURL, stageName, "clone", "no valid GitHub URL", nil)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Metadata{}, services.Wrap(services.ErrExternalTool, stageName, "prepare destination", "", err)
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	_, stderr, err := c.run(callCtx, "", "clone", "--quiet", "--", cloneURL, dest)
	if err != nil {
		_ = os.RemoveAll(dest)
		if ctx.Err() != nil {
			return Metadata{}, ctx.Err()
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return Metadata{}, services.Wrap(services.ErrTimeout, stageName, "clone", fmt.Sprintf("git clone exceeded %s", c.timeout), nil)
		}
		return Metadata{}, classifyCloneError(stderr, err)
	}

	meta := Metadata{Path: dest, ClonedAt: c.now()}
	if out, _, err := c.run(ctx, dest, "rev-parse", "HEAD"); err == nil {
		meta.CommitSHA = strings.TrimSpace(out)
	}
	if out, _, err := c.run(ctx, dest, "rev-parse", "--abbrev-ref", "HEAD"); err == nil {
		meta.DefaultBranch = strings.TrimSpace(out)
	}
	return meta, nil
}

// IsRepository reports whether dir holds a usable git checkout.
func (c *Client) IsRepository(ctx context.Context, dir string) bool {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return false
	}
	_, _, err := c.run(ctx, dir, "rev-parse", "--git-dir")
	return err == nil
}

func (c *Client) run(ctx context.Context, dir string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, c.binary, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	// Private repositories must fail instead of waiting on a credential prompt.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_ASKPASS=true")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func classifyCloneError(stderr string, err error) error {
	message := firstLine(stderr)
	if message == "" {
		message = err.Error()
	}
	lower := strings.ToLower(stderr)
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return services.Wrap(services.ErrExternalTool, stageName, "clone", "git binary not found", err)
	case strings.Contains(lower, "repository not found"),
		strings.Contains(lower, "not found"),
		strings.Contains(lower, "does not exist"):
		return services.Wrap(services.ErrNotFound, stageName, "clone", message, nil)
	case strings.Contains(lower, "authentication failed"),
		strings.Contains(lower, "could not read username"),
		strings.Contains(lower, "permission denied"),
		strings.Contains(lower, "terminal prompts disabled"):
		return services.Wrap(services.ErrPrivate, stageName, "clone", message, nil)
	case strings.Contains(lower, "not a valid repository name"),
		strings.Contains(lower, "unsupported protocol"),
		strings.Contains(lower, "malformed"):
		return services.Wrap(services.ErrInvalidURL, stageName, "clone", message, nil)
	case strings.Contains(lower, "could not resolve host"),
		strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "connection timed out"),
		strings.Contains(lower, "early eof"),
		strings.Contains(lower, "rpc failed"):
		return services.Wrap(services.ErrTransient, stageName, "clone", message, nil)
	default:
		return services.Wrap(services.ErrExternalTool, stageName, "clone", message, nil)
	}
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "fatal: ")
		line = strings.TrimPrefix(line, "remote: ")
		if line != "" && !strings.HasPrefix(line, "Cloning into") {
			if len(line) > 200 {
				line = line[:200]
			}
			return line
		}
	}
	return ""
}
