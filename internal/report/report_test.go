package report

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"compdb/internal/model"
)

const sampleReport = `Project Info Report v3
tool: mk 1.4

core pkg/core/build.pkg
  /ws/include
  /ws/third_party/include

  /ws/pkg/core/a.cc
  /ws/pkg/core/b.cc

  -O2 -DNDEBUG
  -fno-exceptions

  /ws/out/core/a.o
  /ws/out/core/b.o

util pkg/util/build.pkg

  /ws/pkg/util/u.cc

gen/a.gen.cc /ws/pkg/core/a.cc 17
short line
gen/u.gen.cc /ws/pkg/util/u.cc 3
`

func parseString(t *testing.T, s string) *model.Report {
	t.Helper()
	rep, err := Parse(strings.NewReader(s))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return rep
}

func TestParseBasic(t *testing.T) {
	t.Parallel()
	rep := parseString(t, sampleReport)

	if len(rep.Packages) != 2 {
		t.Fatalf("packages = %d, want 2", len(rep.Packages))
	}

	core := rep.Packages[0]
	if core.Name != "core" {
		t.Errorf("name = %q, want core", core.Name)
	}
	if core.Descriptor != "pkg/core/build.pkg" {
		t.Errorf("descriptor = %q", core.Descriptor)
	}
	wantDeps := []string{"/ws/include", "/ws/third_party/include"}
	if !reflect.DeepEqual(core.Deps, wantDeps) {
		t.Errorf("deps = %v, want %v", core.Deps, wantDeps)
	}
	wantSources := []string{"/ws/pkg/core/a.cc", "/ws/pkg/core/b.cc"}
	if !reflect.DeepEqual(core.Sources, wantSources) {
		t.Errorf("sources = %v, want %v", core.Sources, wantSources)
	}
	wantFlags := []string{"-O2", "-DNDEBUG", "-fno-exceptions"}
	if !reflect.DeepEqual(core.Flags, wantFlags) {
		t.Errorf("flags = %v, want %v", core.Flags, wantFlags)
	}
	wantOutputs := []string{"/ws/out/core/a.o", "/ws/out/core/b.o"}
	if !reflect.DeepEqual(core.Outputs, wantOutputs) {
		t.Errorf("outputs = %v, want %v", core.Outputs, wantOutputs)
	}

	util := rep.Packages[1]
	if util.Name != "util" {
		t.Errorf("name = %q, want util", util.Name)
	}
	if len(util.Deps) != 0 {
		t.Errorf("util deps = %v, want none", util.Deps)
	}
	if !reflect.DeepEqual(util.Sources, []string{"/ws/pkg/util/u.cc"}) {
		t.Errorf("util sources = %v", util.Sources)
	}
	if len(util.Flags) != 0 || len(util.Outputs) != 0 {
		t.Errorf("util flags/outputs = %v/%v, want empty", util.Flags, util.Outputs)
	}
}

func TestParseGeneratedMap(t *testing.T) {
	t.Parallel()
	rep := parseString(t, sampleReport)

	want := []model.GeneratedFile{
		{Path: "gen/a.gen.cc", Source: "/ws/pkg/core/a.cc", Seq: "17"},
		{Path: "gen/u.gen.cc", Source: "/ws/pkg/util/u.cc", Seq: "3"},
	}
	if !reflect.DeepEqual(rep.Generated, want) {
		t.Errorf("generated = %v, want %v", rep.Generated, want)
	}
}

func TestParseRejectsTooFewChunks(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"blank lines only", "\n\n   \n\t\n"},
		{"single chunk", "header line\nanother line\n"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(strings.NewReader(tc.input))
			if !errors.Is(err, ErrMalformedReport) {
				t.Errorf("err = %v, want ErrMalformedReport", err)
			}
		})
	}
}

func TestParseEmptyPackagesIsValid(t *testing.T) {
	t.Parallel()
	// Header plus generated-file map only: a valid parse with zero
	// packages, distinguishable from a failed parse.
	rep := parseString(t, "header\n\ngen/a.cc /ws/a.cc 1\n")
	if len(rep.Packages) != 0 {
		t.Errorf("packages = %d, want 0", len(rep.Packages))
	}
	if len(rep.Generated) != 1 {
		t.Errorf("generated = %d, want 1", len(rep.Generated))
	}
}

func TestParseSkipsBadRecordChunk(t *testing.T) {
	t.Parallel()
	input := `header

  indented where a record should start
  more of the same

good pkg/good/build.pkg

  /ws/good/g.cc

gen/x.cc /ws/good/g.cc 1
`
	rep := parseString(t, input)
	if len(rep.Packages) != 1 {
		t.Fatalf("packages = %d, want 1", len(rep.Packages))
	}
	if rep.Packages[0].Name != "good" {
		t.Errorf("name = %q, want good", rep.Packages[0].Name)
	}
}

func TestParseSkipsSingleTokenRecord(t *testing.T) {
	t.Parallel()
	input := `header

loneword

good pkg/good/build.pkg

gen/x.cc /ws/a.cc 1
`
	rep := parseString(t, input)
	if len(rep.Packages) != 1 || rep.Packages[0].Name != "good" {
		t.Fatalf("packages = %+v, want just good", rep.Packages)
	}
}

func TestParsePartialRecord(t *testing.T) {
	t.Parallel()
	input := `header

first pkg/first/build.pkg

  /ws/first/a.cc

second pkg/second/build.pkg

gen/x.cc /ws/first/a.cc 9
`
	rep := parseString(t, input)
	if len(rep.Packages) != 2 {
		t.Fatalf("packages = %d, want 2", len(rep.Packages))
	}
	first := rep.Packages[0]
	if !reflect.DeepEqual(first.Sources, []string{"/ws/first/a.cc"}) {
		t.Errorf("sources = %v", first.Sources)
	}
	if first.Flags != nil {
		t.Errorf("flags = %v, want nil", first.Flags)
	}
	if first.Outputs != nil {
		t.Errorf("outputs = %v, want nil", first.Outputs)
	}
}

func TestParseIgnoresExtraRecordChunks(t *testing.T) {
	t.Parallel()
	input := `header

pkg pkg/build.pkg

  /ws/a.cc

  -O1

  /ws/a.o

  something unclaimed

gen/x.cc /ws/a.cc 1
`
	rep := parseString(t, input)
	if len(rep.Packages) != 1 {
		t.Fatalf("packages = %d, want 1", len(rep.Packages))
	}
	p := rep.Packages[0]
	if !reflect.DeepEqual(p.Outputs, []string{"/ws/a.o"}) {
		t.Errorf("outputs = %v", p.Outputs)
	}
}

func TestParsePreservesDuplicates(t *testing.T) {
	t.Parallel()
	input := `header

pkg pkg/build.pkg
  /inc
  /inc

  /ws/a.cc
  /ws/a.cc

gen/x.cc /ws/a.cc 1
`
	rep := parseString(t, input)
	p := rep.Packages[0]
	if !reflect.DeepEqual(p.Deps, []string{"/inc", "/inc"}) {
		t.Errorf("deps = %v, want duplicates preserved", p.Deps)
	}
	if !reflect.DeepEqual(p.Sources, []string{"/ws/a.cc", "/ws/a.cc"}) {
		t.Errorf("sources = %v, want duplicates preserved", p.Sources)
	}
}

func TestParseTrimsRetainedLines(t *testing.T) {
	t.Parallel()
	input := "header\n\npkg pkg/build.pkg\n  /inc  \t\n\n\t/ws/a.cc   \n\ngen/x.cc /ws/a.cc 1\n"
	rep := parseString(t, input)
	p := rep.Packages[0]
	if !reflect.DeepEqual(p.Deps, []string{"/inc"}) {
		t.Errorf("deps = %q", p.Deps)
	}
	if !reflect.DeepEqual(p.Sources, []string{"/ws/a.cc"}) {
		t.Errorf("sources = %q", p.Sources)
	}
}

func TestParseGeneratedMapDropsShortLines(t *testing.T) {
	t.Parallel()
	rep := parseString(t, "header\n\nonly two\nfull /ws/a.cc 4\nlone\n")
	want := []model.GeneratedFile{{Path: "full", Source: "/ws/a.cc", Seq: "4"}}
	if !reflect.DeepEqual(rep.Generated, want) {
		t.Errorf("generated = %v, want %v", rep.Generated, want)
	}
}

func TestGeneratedForAssociation(t *testing.T) {
	t.Parallel()
	rep := parseString(t, sampleReport)

	core := &rep.Packages[0]
	got := rep.GeneratedFor(core)
	if len(got) != 1 || got[0].Path != "gen/a.gen.cc" {
		t.Errorf("GeneratedFor(core) = %v", got)
	}

	// An entry whose source matches no package stays in the flat list.
	rep2 := parseString(t, "header\n\npkg pkg/build.pkg\n\n  /ws/a.cc\n\ngen/orphan.cc /ws/elsewhere.cc 2\n")
	if len(rep2.Generated) != 1 {
		t.Fatalf("generated = %d, want 1", len(rep2.Generated))
	}
	if got := rep2.GeneratedFor(&rep2.Packages[0]); len(got) != 0 {
		t.Errorf("GeneratedFor = %v, want none", got)
	}
}

func TestPackageBySource(t *testing.T) {
	t.Parallel()
	rep := parseString(t, sampleReport)

	if p := rep.PackageBySource("/ws/pkg/util/u.cc"); p == nil || p.Name != "util" {
		t.Errorf("PackageBySource = %+v, want util", p)
	}
	if p := rep.PackageBySource("/ws/nowhere.cc"); p != nil {
		t.Errorf("PackageBySource = %+v, want nil", p)
	}
}

func TestParseFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "report.txt")
	if err := os.WriteFile(path, []byte(sampleReport), 0o644); err != nil {
		t.Fatal(err)
	}

	rep, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(rep.Packages) != 2 {
		t.Errorf("packages = %d, want 2", len(rep.Packages))
	}
}

func TestParseFileMissingOrEmpty(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	if _, err := ParseFile(filepath.Join(dir, "absent.txt")); !errors.Is(err, ErrMalformedReport) {
		t.Errorf("missing file err = %v, want ErrMalformedReport", err)
	}

	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseFile(empty); !errors.Is(err, ErrMalformedReport) {
		t.Errorf("empty file err = %v, want ErrMalformedReport", err)
	}
}
