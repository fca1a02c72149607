// Package compdb builds and persists clang-compatible compilation
// databases from parsed project-info reports.
package compdb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"compdb/internal/model"
)

// DefaultCompiler is used for every entry unless overridden.
const DefaultCompiler = "clang++"

// DefaultFlags are prepended to every entry before include and package
// flags unless overridden.
var DefaultFlags = []string{"-std=c++17", "-Wall"}

// FileName is the artifact name expected by clang tooling.
const FileName = "compile_commands.json"

// Options configures entry construction and artifact placement.
type Options struct {
	// Compiler is the executable placed first in every argument vector.
	// Empty means DefaultCompiler.
	Compiler string

	// ExtraFlags come right after the compiler, before include and
	// package flags. Nil means DefaultFlags; use an empty non-nil slice
	// to suppress the defaults.
	ExtraFlags []string

	// Directory overrides the per-entry working directory. Empty means
	// the workspace root.
	Directory string

	// OutputDir, when set, is where the artifact is written.
	OutputDir string
}

func (o Options) compiler() string {
	if o.Compiler != "" {
		return o.Compiler
	}
	return DefaultCompiler
}

func (o Options) extraFlags() []string {
	if o.ExtraFlags != nil {
		return o.ExtraFlags
	}
	return DefaultFlags
}

// Build produces one compile entry per source file, preserving package
// order and source order within each package. The argument vector is
// always compiler, extra flags, -I per dependency, package flags, and the
// source path last; downstream tooling depends on that exact order.
func Build(rep *model.Report, workspaceRoot string, opts Options) []model.CompileEntry {
	dir := opts.Directory
	if dir == "" {
		dir = workspaceRoot
	}
	compiler := opts.compiler()
	extra := opts.extraFlags()

	var entries []model.CompileEntry
	for i := range rep.Packages {
		pkg := &rep.Packages[i]
		for _, src := range pkg.Sources {
			args := make([]string, 0, 1+len(extra)+len(pkg.Deps)+len(pkg.Flags)+1)
			args = append(args, compiler)
			args = append(args, extra...)
			for _, dep := range pkg.Deps {
				args = append(args, "-I"+dep)
			}
			args = append(args, pkg.Flags...)
			args = append(args, src)

			entries = append(entries, model.CompileEntry{
				File:      src,
				Directory: dir,
				Arguments: args,
			})
		}
	}
	return entries
}

// ResolveOutputDir picks the directory the artifact is written to, in
// priority order: the configured output dir, the descriptor's directory,
// the workspace root, the process working directory. The chosen directory
// is created if absent.
func ResolveOutputDir(opts Options, descriptorPath, workspaceRoot string) (string, error) {
	dir := opts.OutputDir
	if dir == "" && descriptorPath != "" {
		dir = filepath.Dir(descriptorPath)
	}
	if dir == "" {
		dir = workspaceRoot
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolving working directory: %w", err)
		}
		dir = wd
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory %s: %w", dir, err)
	}
	return dir, nil
}

// Write serializes entries to path, overwriting any existing file. The
// document is marshaled fully in memory and moved into place via a
// temporary file, so a failed write never leaves a truncated artifact.
// Identical input produces byte-identical output.
func Write(entries []model.CompileEntry, path string) error {
	if entries == nil {
		entries = []model.CompileEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding compile database: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
