// Package buildtool invokes the external build tool that produces
// project-info reports.
package buildtool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single report generation.
const DefaultTimeout = 2 * time.Minute

// Placeholders substituted into the configured command line.
const (
	PlaceholderDescriptor = "{descriptor}"
	PlaceholderTarget     = "{target}"
	PlaceholderOutput     = "{output}"
)

// ToolError reports a failed build-tool invocation: a non-zero exit, a
// launch failure, or a missing/empty report file afterwards.
type ToolError struct {
	Command  []string
	ExitCode int // -1 when the process did not run or exit normally
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("build tool %q failed", strings.Join(e.Command, " "))
	if e.ExitCode >= 0 {
		msg = fmt.Sprintf("%s (exit %d)", msg, e.ExitCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Stderr)
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// Runner invokes the build tool. Command is the argv template;
// occurrences of the placeholder strings in any argument are replaced per
// invocation.
type Runner struct {
	Command []string
	Timeout time.Duration
}

// ProjectInfo asks the build tool to write the project-info report for
// descriptor and target to outPath. It returns a *ToolError when the
// tool exits non-zero, cannot be started, or leaves no readable,
// non-empty report behind.
func (r *Runner) ProjectInfo(ctx context.Context, descriptor, target, outPath string) error {
	if len(r.Command) == 0 {
		return errors.New("no build tool command configured")
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := make([]string, len(r.Command))
	for i, arg := range r.Command {
		arg = strings.ReplaceAll(arg, PlaceholderDescriptor, descriptor)
		arg = strings.ReplaceAll(arg, PlaceholderTarget, target)
		arg = strings.ReplaceAll(arg, PlaceholderOutput, outPath)
		argv[i] = arg
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			exitCode = ee.ExitCode()
		}
		return &ToolError{
			Command:  argv,
			ExitCode: exitCode,
			Stderr:   stderrTail(stderr.String()),
			Err:      err,
		}
	}

	info, err := os.Stat(outPath)
	if err != nil || info.Size() == 0 {
		return &ToolError{
			Command:  argv,
			ExitCode: 0,
			Stderr:   stderrTail(stderr.String()),
			Err:      fmt.Errorf("no report produced at %s", outPath),
		}
	}
	return nil
}

// stderrTail keeps the last few lines of tool output for error messages.
func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	lines := strings.Split(s, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
