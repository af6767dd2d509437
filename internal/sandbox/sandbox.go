// Package sandbox implements the process sandbox (C9): it launches a
// job's command as a child process under a wall-clock timeout and
// (on Linux) an address-space rlimit, captures bounded stdout/stderr,
// and kills the whole process group on timeout or cancellation.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rezkam/mono/internal/domain"
)

// defaultMaxOutputBytes bounds stdout/stderr capture per stream;
// overflow is truncated with a sentinel, not buffered unbounded.
const defaultMaxOutputBytes = 64 * 1024

// Config controls resource limits applied to every launched process.
type Config struct {
	// MaxMemoryMB is the RLIMIT_AS ceiling applied to the child on
	// Linux. Zero disables the limit.
	MaxMemoryMB int64
	// MaxCPUPercent throttles the child to this share of one CPU
	// (1-100) via a cgroup v2 cpu.max quota, where the platform
	// supports cgroup v2 and the process has permission to create one.
	// Zero disables the limit; failure to apply it is logged and the
	// job still runs unthrottled rather than being refused.
	MaxCPUPercent int
	// Timeout is the hard wall-clock bound; on expiry the process
	// group is killed.
	Timeout time.Duration
	// MaxOutputBytes bounds captured stdout/stderr per stream.
	MaxOutputBytes int
}

func (c Config) withDefaults() Config {
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = defaultMaxOutputBytes
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
	return c
}

// Result is the outcome of a sandboxed run.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
}

// ErrLaunchFailed wraps a failure to start the child process at all
// (missing binary, permission denied) — distinct from a non-zero exit.
var ErrLaunchFailed = errors.New("launch failed")

// Sandbox launches job payloads as bounded subprocesses.
type Sandbox struct {
	cfg Config
}

// New constructs a Sandbox with cfg (zero values take documented
// defaults).
func New(cfg Config) *Sandbox {
	return &Sandbox{cfg: cfg.withDefaults()}
}

// ValidateResources checks that the host has at least MaxMemoryMB of
// RAM, the resource-precondition check spec.md §4.9 requires at
// startup — a configuration that can never succeed should fail fast
// rather than fail every job it touches.
func (s *Sandbox) ValidateResources() error {
	if s.cfg.MaxMemoryMB <= 0 {
		return nil
	}
	total, err := totalSystemMemoryMB()
	if err != nil {
		return fmt.Errorf("determine system memory: %w", err)
	}
	if total < s.cfg.MaxMemoryMB {
		return fmt.Errorf("insufficient system memory: need %s, have %s",
			humanize.IBytes(uint64(s.cfg.MaxMemoryMB)*1024*1024), humanize.IBytes(uint64(total)*1024*1024))
	}
	return nil
}

// Run executes payload.Command with payload.Args and an environment
// built from payload.Env merged onto a minimal base, bounded by
// Timeout. Launch failures return (nil, ErrLaunchFailed-wrapped err);
// a started-but-failing command returns a populated Result with a
// non-zero ExitCode or TimedOut, never an error.
func (s *Sandbox) Run(ctx context.Context, payload domain.Payload) (*Result, error) {
	if payload.Command == "" {
		return nil, fmt.Errorf("%w: empty command", ErrLaunchFailed)
	}

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	cmd, err := s.buildCommand(runCtx, payload)
	if err != nil {
		return nil, err
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}

	stdout := newBoundedBuffer(s.cfg.MaxOutputBytes)
	stderr := newBoundedBuffer(s.cfg.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err = cmd.Run()

	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if runCtx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		return nil, fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}

	return result, nil
}

// buildCommand constructs the exec.Cmd for payload. When MaxMemoryMB
// or MaxCPUPercent is set it re-execs this same binary through
// sandbox.ReexecArg so the RLIMIT_AS and the CPU quota can be applied
// inside the child before it execs into the real command (see
// reexec.go); otherwise it launches payload.Command directly.
func (s *Sandbox) buildCommand(ctx context.Context, payload domain.Payload) (*exec.Cmd, error) {
	env := buildEnv(payload.Env)

	if s.cfg.MaxMemoryMB <= 0 && s.cfg.MaxCPUPercent <= 0 {
		cmd := exec.CommandContext(ctx, payload.Command, payload.Args...)
		cmd.Env = env
		return cmd, nil
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("%w: resolve self executable: %w", ErrLaunchFailed, err)
	}

	args := append([]string{ReexecArg, payload.Command}, payload.Args...)
	cmd := exec.CommandContext(ctx, self, args...)
	if s.cfg.MaxMemoryMB > 0 {
		env = append(env, fmt.Sprintf("%s=%d", envMaxMemoryMB, s.cfg.MaxMemoryMB))
	}
	if s.cfg.MaxCPUPercent > 0 {
		env = append(env, fmt.Sprintf("%s=%d", envMaxCPUPercent, s.cfg.MaxCPUPercent))
	}
	cmd.Env = env
	return cmd, nil
}

// buildEnv merges payload env vars onto a minimal base (PATH, HOME)
// rather than inheriting the parent's full environment, so jobs can't
// observe executor secrets.
func buildEnv(vars []domain.EnvVar) []string {
	base := []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + os.Getenv("HOME"),
	}
	for _, v := range vars {
		base = append(base, v.Name+"="+v.Value)
	}
	return base
}

// killProcessGroup kills the child and every process it spawned, so a
// timed-out shell pipeline doesn't leave orphans running.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}

// boundedBuffer caps captured output at limit bytes; writes beyond the
// cap are dropped and a truncation sentinel is appended once.
type boundedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newBoundedBuffer(limit int) *boundedBuffer {
	return &boundedBuffer{limit: limit}
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if b.buf.Len() >= b.limit {
		b.truncated = true
		return n, nil
	}
	remaining := b.limit - b.buf.Len()
	if len(p) > remaining {
		p = p[:remaining]
		b.truncated = true
	}
	_, err := b.buf.Write(p)
	return n, err
}

func (b *boundedBuffer) String() string {
	if !b.truncated {
		return b.buf.String()
	}
	return b.buf.String() + "\n...[truncated]"
}

var _ io.Writer = (*boundedBuffer)(nil)
