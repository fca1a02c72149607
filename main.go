// compdb generates clang-compatible compile_commands.json files from
// build-tool project-info reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"compdb/internal/buildtool"
	"compdb/internal/compdb"
	"compdb/internal/config"
	"compdb/internal/logging"
	"compdb/internal/model"
	"compdb/internal/notify"
	"compdb/internal/report"
	"compdb/internal/workspace"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "init" {
		return runInit(args[1:], stdout, stderr)
	}

	fs := flag.NewFlagSet("compdb", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath  string
		reportPath  string
		descriptor  string
		target      string
		outDir      string
		compiler    string
		all         bool
		jobs        int
		logLevel    string
		showVersion bool
	)

	fs.StringVar(&configPath, "config", "", "config file path")
	fs.StringVar(&reportPath, "report", "", "parse an existing project-info report instead of invoking the build tool")
	fs.StringVar(&descriptor, "descriptor", "", "package descriptor to generate for")
	fs.StringVar(&target, "target", "", "build-tool target that emits the report")
	fs.StringVar(&outDir, "o", "", "output directory for compile_commands.json")
	fs.StringVar(&outDir, "out-dir", "", "output directory for compile_commands.json")
	fs.StringVar(&compiler, "compiler", "", "compiler executable recorded in entries")
	fs.BoolVar(&all, "all", false, "generate for every package descriptor under the workspace")
	fs.IntVar(&jobs, "jobs", runtime.GOMAXPROCS(0), "max concurrent generations with -all")
	fs.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.BoolVar(&showVersion, "V", false, "show version and exit")
	fs.BoolVar(&showVersion, "version", false, "show version and exit")

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}

	if showVersion {
		_, _ = fmt.Fprintf(stdout, "compdb %s\n", version)
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if compiler != "" {
		cfg.Compiler = compiler
	}
	if outDir != "" {
		cfg.OutputDir = outDir
	}
	if target != "" {
		cfg.Target = target
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logging.Init(cfg.Logging)

	resolver, err := workspace.NewResolver(cfg.Marker)
	if err != nil {
		return err
	}

	start := "."
	if fs.NArg() > 0 {
		start = fs.Arg(0)
	}

	app := &app{
		cfg:      cfg,
		resolver: resolver,
		runner: &buildtool.Runner{
			Command: cfg.BuildTool.Command,
			Timeout: time.Duration(cfg.BuildTool.TimeoutSeconds) * time.Second,
		},
		sink: sinkFromConfig(cfg),
	}

	ctx := context.Background()
	switch {
	case reportPath != "":
		return app.fromReport(reportPath, start)
	case descriptor != "":
		return app.fromDescriptor(ctx, descriptor)
	case all:
		return app.fromWorkspace(ctx, start, jobs)
	default:
		fs.Usage()
		return fmt.Errorf("one of -report, -descriptor, or -all is required")
	}
}

func sinkFromConfig(cfg *config.Config) notify.Sink {
	if len(cfg.NotifyCommand) == 0 {
		return notify.Nop
	}
	return &notify.Command{Argv: cfg.NotifyCommand}
}

type app struct {
	cfg      *config.Config
	resolver *workspace.Resolver
	runner   *buildtool.Runner
	sink     notify.Sink
}

// fromReport generates from a report that already exists on disk.
func (a *app) fromReport(reportPath, start string) error {
	rep, err := report.ParseFile(reportPath)
	if err != nil {
		return err
	}
	root, err := a.resolver.Root(start)
	if err != nil {
		return fmt.Errorf("resolving workspace root: %w", err)
	}
	return a.generate(rep, "", root)
}

// fromDescriptor runs the build tool for one package descriptor, then
// parses and generates.
func (a *app) fromDescriptor(ctx context.Context, descriptor string) error {
	descriptor, err := filepath.Abs(descriptor)
	if err != nil {
		return fmt.Errorf("resolving descriptor: %w", err)
	}
	if _, err := os.Stat(descriptor); err != nil {
		return fmt.Errorf("descriptor: %w", err)
	}

	root, err := a.resolver.Root(filepath.Dir(descriptor))
	if err != nil {
		return fmt.Errorf("resolving workspace root: %w", err)
	}

	rep, err := a.projectInfo(ctx, descriptor)
	if err != nil {
		return err
	}
	return a.generate(rep, descriptor, root)
}

// fromWorkspace discovers every package descriptor under the workspace
// and generates one database per descriptor. Each descriptor writes into
// its own directory, so concurrent generations never collide.
func (a *app) fromWorkspace(ctx context.Context, start string, jobs int) error {
	root, err := a.resolver.Root(start)
	if err != nil {
		return fmt.Errorf("resolving workspace root: %w", err)
	}
	descriptors, err := workspace.Descriptors(root, a.cfg.Descriptor)
	if err != nil {
		return fmt.Errorf("discovering descriptors: %w", err)
	}
	if len(descriptors) == 0 {
		return fmt.Errorf("no %s files found under %s", a.cfg.Descriptor, root)
	}
	logrus.Infof("generating for %d package(s) under %s", len(descriptors), root)

	if jobs < 1 {
		jobs = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for _, rel := range descriptors {
		rel := rel
		descriptor := filepath.Join(root, rel)
		g.Go(func() error {
			rep, err := a.projectInfo(ctx, descriptor)
			if err != nil {
				return fmt.Errorf("%s: %w", rel, err)
			}
			// Per-descriptor output: ignore the global output dir so
			// parallel writes get distinct paths.
			opts := a.options()
			opts.OutputDir = ""
			if err := a.generateWith(rep, descriptor, root, opts); err != nil {
				return fmt.Errorf("%s: %w", rel, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// projectInfo invokes the build tool and parses the report it writes.
func (a *app) projectInfo(ctx context.Context, descriptor string) (*model.Report, error) {
	tmp, err := os.CreateTemp("", "compdb-report-*.txt")
	if err != nil {
		return nil, fmt.Errorf("creating report file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	logrus.Debugf("running build tool for %s", descriptor)
	if err := a.runner.ProjectInfo(ctx, descriptor, a.cfg.Target, tmpPath); err != nil {
		return nil, err
	}
	parsed, err := report.ParseFile(tmpPath)
	if err != nil {
		return nil, err
	}
	return parsed, nil
}

func (a *app) options() compdb.Options {
	return compdb.Options{
		Compiler:   a.cfg.Compiler,
		ExtraFlags: a.cfg.DefaultFlags,
		OutputDir:  a.cfg.OutputDir,
	}
}

func (a *app) generate(rep *model.Report, descriptor, root string) error {
	return a.generateWith(rep, descriptor, root, a.options())
}

func (a *app) generateWith(rep *model.Report, descriptor, root string, opts compdb.Options) error {
	entries := compdb.Build(rep, root, opts)
	dir, err := compdb.ResolveOutputDir(opts, descriptor, root)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, compdb.FileName)
	if err := compdb.Write(entries, path); err != nil {
		return err
	}
	logrus.Infof("wrote %d entries for %d package(s) to %s", len(entries), len(rep.Packages), path)

	if err := a.sink.DatabaseUpdated(path); err != nil {
		logrus.Warnf("notify: %v", err)
	}
	return nil
}

// flagsWithValue lists flags that take a value argument.
var flagsWithValue = map[string]bool{
	"-config": true, "--config": true,
	"-report": true, "--report": true,
	"-descriptor": true, "--descriptor": true,
	"-target": true, "--target": true,
	"-o": true, "--o": true,
	"-out-dir": true, "--out-dir": true,
	"-compiler": true, "--compiler": true,
	"-jobs": true, "--jobs": true,
	"-log-level": true, "--log-level": true,
}

// reorderArgs moves positional arguments after all flags so Go's flag package
// can parse them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(args[i]) > 0 && args[i][0] == '-' {
			flags = append(flags, args[i])
			if flagsWithValue[args[i]] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}
