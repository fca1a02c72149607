package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"compdb/internal/config"
)

// runInit implements the `compdb init` subcommand, which writes a starter
// configuration file.
func runInit(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("compdb init", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		dryRun bool
		force  bool
	)
	fs.BoolVar(&dryRun, "dry-run", false, "print the config without writing a file")
	fs.BoolVar(&force, "force", false, "overwrite an existing config file")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: compdb init [flags] [path]

Write a starter %s describing the build tool, compiler defaults, and
notification hook. Refuses to overwrite an existing file unless -force
is given.

path defaults to ./%s.

Flags:
`, config.DefaultFile, config.DefaultFile)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	content := starterConfig()

	if dryRun {
		_, _ = fmt.Fprint(stdout, content)
		return nil
	}

	path := config.DefaultFile
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", path)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote %s\n", path)
	return nil
}

// starterConfig returns the default config file content, commented so a
// new workspace only has to fill in the build-tool command.
func starterConfig() string {
	return `# compdb configuration.
# Values here are merged over the built-in defaults; COMPDB_* environment
# variables override both.

compiler: clang++
default_flags:
  - -std=c++17
  - -Wall

# Where compile_commands.json is written. When unset, it goes next to the
# package descriptor, falling back to the workspace root.
# output_dir: .

# Name of a package's build descriptor file.
descriptor: build.pkg

# Directory entry that marks the workspace root.
workspace_marker: .git

# Build-tool target that emits the project-info report.
target: project-info

# Command that produces a project-info report. {descriptor}, {target},
# and {output} are substituted per invocation.
build_tool:
  command: []
  timeout_seconds: 120

# Run after every successful write; {database} is the artifact path.
# notify_command: []

logging:
  level: info
  format: text
  output: stderr
`
}
