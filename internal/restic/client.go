package restic

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kebairia/restic-health/internal/logger"
)

const (
	// DefaultBinary is the restic executable looked up on PATH.
	DefaultBinary = "restic"

	// DefaultTimeout bounds a single invocation. Full-data checks re-read
	// every object, so the default is generous.
	DefaultTimeout = 6 * time.Hour
)

// Option overrides a default setting on a Client.
type Option func(*Client)

// Client invokes restic subcommands against one repository. It holds no
// state of its own; all side effects live in the external repository.
type Client struct {
	repository   string
	passwordFile string
	password     string
	cacheDir     string
	binary       string
	timeout      time.Duration
	log          logger.Logger
}

// NewClient returns a Client for the given repository address.
func NewClient(repository string, opts ...Option) *Client {
	c := &Client{
		repository: repository,
		binary:     DefaultBinary,
		timeout:    DefaultTimeout,
		log:        logger.Global(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithPasswordFile sets the file restic reads the repository password from.
func WithPasswordFile(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.passwordFile = path
		}
	}
}

// WithPassword sets the repository password directly, for passwords that
// come from a secret store rather than a file on disk.
func WithPassword(password string) Option {
	return func(c *Client) {
		if password != "" {
			c.password = password
		}
	}
}

// WithCacheDir forwards a shared cache directory to every invocation.
func WithCacheDir(dir string) Option {
	return func(c *Client) {
		if dir != "" {
			c.cacheDir = dir
		}
	}
}

// WithBinary overrides the restic executable path.
func WithBinary(binary string) Option {
	return func(c *Client) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithTimeout overrides the per-invocation timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// args builds the full argument list for a subcommand invocation.
func (c *Client) args(sub ...string) []string {
	args := []string{"--json", "--quiet"}
	if c.cacheDir != "" {
		args = append(args, "--cache-dir", c.cacheDir)
	}
	return append(args, sub...)
}

// run executes one restic invocation and returns its stdout. A non-zero
// exit becomes a *CommandError carrying the exit status and stderr.
func (c *Client) run(ctx context.Context, sub ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeoutCause(ctx, c.timeout, ErrTimeout)
	defer cancel()

	args := c.args(sub...)
	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Env = []string{"RESTIC_REPOSITORY=" + c.repository}
	if c.passwordFile != "" {
		cmd.Env = append(cmd.Env, "RESTIC_PASSWORD_FILE="+c.passwordFile)
	}
	if c.password != "" {
		cmd.Env = append(cmd.Env, "RESTIC_PASSWORD="+c.password)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.log.Debug("running restic",
		"repository", c.repository,
		"args", strings.Join(sub, " "),
	)
	if err := cmd.Run(); err != nil {
		if cause := context.Cause(ctx); cause != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("restic %s: %w", strings.Join(sub, " "), cause)
		}
		exitStatus := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitStatus = exitErr.ExitCode()
		}
		return nil, &CommandError{
			Args:       args,
			ExitStatus: exitStatus,
			Output:     stderr.String(),
		}
	}

	return stdout.Bytes(), nil
}

// Snapshots lists all snapshots in the repository. The raw JSON output is
// returned verbatim alongside the decoded list, so callers can persist
// exactly what the engine reported.
func (c *Client) Snapshots(ctx context.Context) ([]byte, []Snapshot, error) {
	raw, err := c.run(ctx, "snapshots")
	if err != nil {
		return nil, nil, err
	}
	snaps, err := ParseSnapshots(raw)
	if err != nil {
		return nil, nil, err
	}
	return raw, snaps, nil
}

// Stats computes repository statistics in the given mode, optionally
// scoped to one snapshot ("latest" is accepted by restic).
func (c *Client) Stats(ctx context.Context, mode, snapshot string) ([]byte, error) {
	sub := []string{"stats", "--mode", mode}
	if snapshot != "" {
		sub = append(sub, snapshot)
	}
	return c.run(ctx, sub...)
}

// Diff compares two snapshots and returns the trailing summary line of
// the diff output, which restic emits as a single JSON object.
func (c *Client) Diff(ctx context.Context, ids ...string) ([]byte, error) {
	out, err := c.run(ctx, append([]string{"diff"}, ids...)...)
	if err != nil {
		return nil, err
	}
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	return lines[len(lines)-1], nil
}

// Check verifies repository integrity. The structural check validates
// metadata consistency only; with readData the content of every stored
// object is re-read and verified as well. A non-zero exit from the check
// subcommand is reported as an *IntegrityError for the requested mode.
func (c *Client) Check(ctx context.Context, readData bool) error {
	sub := []string{"check"}
	if readData {
		sub = append(sub, "--read-data")
	}
	_, err := c.run(ctx, sub...)
	if err == nil {
		return nil
	}
	if cmdErr, ok := err.(*CommandError); ok {
		return &IntegrityError{
			ReadData:   readData,
			ExitStatus: cmdErr.ExitStatus,
			Detail:     cmdErr.Output,
		}
	}
	return err
}
