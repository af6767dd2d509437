package sandbox

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// ReexecArg is the sentinel argv[1] that tells a freshly started binary
// it is the sandbox's own re-exec helper rather than the normal
// entrypoint. Go's os/exec has no pre-exec hook (unlike Rust's
// Command::pre_exec), so the rlimit has to be applied by the child
// itself before it becomes the job's process: the sandbox launches
// itself with this argv, the helper applies RLIMIT_AS from the
// environment, then syscall.Exec replaces its own image with the real
// command, inheriting the limit and the pgid the parent already set.
const ReexecArg = "__sandbox_exec__"

const envMaxMemoryMB = "SCHEDULER_SANDBOX_MAX_MEMORY_MB"
const envMaxCPUPercent = "SCHEDULER_SANDBOX_MAX_CPU_PERCENT"

// cgroupRoot is the standard cgroup v2 mount point.
const cgroupRoot = "/sys/fs/cgroup"

// cfsPeriodUS is the cgroup v2 cpu.max accounting period; the quota
// written alongside it is this period scaled by the requested percent.
const cfsPeriodUS = 100000

// MaybeReexec must be called first thing in every command's main(). If
// argv[1] is ReexecArg it applies the address-space limit and execs
// argv[2:] in place, never returning. Otherwise it is a no-op.
func MaybeReexec() {
	if len(os.Args) < 3 || os.Args[1] != ReexecArg {
		return
	}

	if raw := os.Getenv(envMaxMemoryMB); raw != "" {
		mb, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sandbox: invalid %s: %v\n", envMaxMemoryMB, err)
			os.Exit(1)
		}
		bytes := mb * 1024 * 1024
		limit := unix.Rlimit{Cur: bytes, Max: bytes}
		if err := unix.Setrlimit(unix.RLIMIT_AS, &limit); err != nil {
			fmt.Fprintf(os.Stderr, "sandbox: setrlimit RLIMIT_AS: %v\n", err)
			os.Exit(1)
		}
	}

	if raw := os.Getenv(envMaxCPUPercent); raw != "" {
		percent, err := strconv.Atoi(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sandbox: invalid %s: %v\n", envMaxCPUPercent, err)
			os.Exit(1)
		}
		// Best-effort: cgroup v2 may not be mounted, or this process may
		// lack permission to create a child cgroup (unprivileged
		// containers commonly do). The job still runs, just unthrottled,
		// rather than being refused over a platform limitation.
		if err := applyCPUQuota(percent); err != nil {
			fmt.Fprintf(os.Stderr, "sandbox: cpu throttling unavailable, running unthrottled: %v\n", err)
		}
	}

	command := os.Args[2]
	args := os.Args[2:]
	path, err := exec.LookPath(command)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sandbox: lookup %s: %v\n", command, err)
		os.Exit(127)
	}

	if err := syscall.Exec(path, args, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "sandbox: exec %s: %v\n", command, err)
		os.Exit(126)
	}
}

// applyCPUQuota throttles the current process to percent of one CPU by
// creating a cgroup v2 leaf under cgroupRoot, moving self into it, and
// writing a cpu.max quota scaled to cfsPeriodUS. The cgroup is leaked
// on exit (the process is about to exec into the job's command and the
// kernel tears down an empty, unreferenced cgroup once it exits).
func applyCPUQuota(percent int) error {
	if _, err := os.Stat(filepath.Join(cgroupRoot, "cgroup.controllers")); err != nil {
		return fmt.Errorf("cgroup v2 not mounted: %w", err)
	}

	dir := filepath.Join(cgroupRoot, fmt.Sprintf("sandbox-%d", os.Getpid()))
	if err := os.Mkdir(dir, 0o755); err != nil {
		return fmt.Errorf("create cgroup: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "cgroup.procs"), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("join cgroup: %w", err)
	}

	quota := cfsPeriodUS * percent / 100
	quotaLine := fmt.Sprintf("%d %d", quota, cfsPeriodUS)
	if err := os.WriteFile(filepath.Join(dir, "cpu.max"), []byte(quotaLine), 0o644); err != nil {
		return fmt.Errorf("write cpu.max: %w", err)
	}

	return nil
}
