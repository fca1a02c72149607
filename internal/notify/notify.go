// Package notify signals external tooling that a new compile database is
// available.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const commandTimeout = 30 * time.Second

// PlaceholderDatabase in a command argument is replaced with the path of
// the freshly written database.
const PlaceholderDatabase = "{database}"

// Sink receives the path of a newly written compile database. The
// artifact is already on disk when a sink runs; sink failures must not
// undo or invalidate it.
type Sink interface {
	DatabaseUpdated(path string) error
}

// Func adapts a function to the Sink interface.
type Func func(path string) error

func (f Func) DatabaseUpdated(path string) error { return f(path) }

// Nop is a Sink that does nothing.
var Nop Sink = Func(func(string) error { return nil })

// Command is a Sink that runs an external command, typically something
// that pokes a language server into reloading.
type Command struct {
	Argv []string
}

func (c *Command) DatabaseUpdated(path string) error {
	if len(c.Argv) == 0 {
		return nil
	}
	argv := make([]string, len(c.Argv))
	for i, arg := range c.Argv {
		argv[i] = strings.ReplaceAll(arg, PlaceholderDatabase, path)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("notify command %q: %v: %s", strings.Join(argv, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}
