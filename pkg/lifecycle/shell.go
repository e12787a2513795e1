package lifecycle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/arthur-debert/arbor/pkg/errors"
	"github.com/arthur-debert/arbor/pkg/logging"
	"github.com/rs/zerolog"
)

// ShellOptions configures a ShellRunner.
type ShellOptions struct {
	// Shell is the interpreter scripts are passed to with -c
	Shell string
	// Timeout bounds each script; 0 means none
	Timeout time.Duration
	// Stdout and Stderr receive script output after it finishes
	Stdout io.Writer
	Stderr io.Writer
}

// ShellRunner runs scripts through a system shell.
type ShellRunner struct {
	logger  zerolog.Logger
	shell   string
	timeout time.Duration
	stdout  io.Writer
	stderr  io.Writer
}

// NewShellRunner creates a runner with defaults for unset options.
func NewShellRunner(opts ShellOptions) *ShellRunner {
	r := &ShellRunner{
		logger:  logging.GetLogger("lifecycle"),
		shell:   opts.Shell,
		timeout: opts.Timeout,
		stdout:  opts.Stdout,
		stderr:  opts.Stderr,
	}
	if r.shell == "" {
		r.shell = "sh"
	}
	if r.stdout == nil {
		r.stdout = io.Discard
	}
	if r.stderr == nil {
		r.stderr = io.Discard
	}
	return r
}

// Run executes one script in its package directory.
func (r *ShellRunner) Run(ctx context.Context, s Script) error {
	if s.Command == "" {
		return errors.New(errors.ErrInvalidInput, "lifecycle script requires a command")
	}
	if _, err := os.Stat(s.Dir); err != nil {
		return errors.Wrapf(err, errors.ErrLifecycle, "working directory does not exist: %s", s.Dir).
			WithDetail("package", s.Package).
			WithDetail("event", s.Event)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	r.logger.Info().
		Str("package", s.Package).
		Str("event", s.Event).
		Str("command", s.Command).
		Str("workingDir", s.Dir).
		Msg("Running lifecycle script")

	cmd := exec.CommandContext(ctx, r.shell, "-c", s.Command)
	cmd.Dir = s.Dir
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("ARBOR_PACKAGE=%s", s.Package),
		fmt.Sprintf("ARBOR_LIFECYCLE_EVENT=%s", s.Event),
		fmt.Sprintf("ARBOR_PACKAGE_DIR=%s", s.Dir),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	if stdout.Len() > 0 {
		_, _ = r.stdout.Write(stdout.Bytes())
		r.logger.Debug().Str("output", stdout.String()).Msg("Script stdout")
	}
	if stderr.Len() > 0 {
		_, _ = r.stderr.Write(stderr.Bytes())
		r.logger.Debug().Str("output", stderr.String()).Msg("Script stderr")
	}

	if err != nil {
		r.logger.Error().
			Err(err).
			Str("package", s.Package).
			Str("event", s.Event).
			Str("stderr", stderr.String()).
			Msg("Lifecycle script failed")
		return errors.Wrapf(err, errors.ErrLifecycle, "%s script of %s failed", s.Event, s.Package).
			WithDetail("package", s.Package).
			WithDetail("event", s.Event).
			WithDetail("stderr", stderr.String())
	}

	r.logger.Debug().
		Str("package", s.Package).
		Str("event", s.Event).
		Dur("duration", time.Since(start)).
		Msg("Lifecycle script finished")
	return nil
}
