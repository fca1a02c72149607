// Package model defines core data structures for compdb.
package model

// Package holds the build metadata reported for a single compilable module.
type Package struct {
	Name       string
	Descriptor string // path to the package's build descriptor file

	Deps    []string // include paths, in report order
	Sources []string // absolute source paths, in report order
	Flags   []string // compiler flag tokens, in report order
	Outputs []string // output artifact paths, in report order
}

// GeneratedFile maps a generated file back to the source it was produced
// from. Seq is an opaque tag emitted by the build tool; it is carried
// through verbatim.
type GeneratedFile struct {
	Path   string
	Source string
	Seq    string
}

// Report is the parsed form of one project-info report.
type Report struct {
	Packages  []Package
	Generated []GeneratedFile
}

// GeneratedFor returns the generated-file entries whose Source exactly
// matches one of pkg's sources, in report order. Entries that match no
// package remain in Generated; association is a query, not a filter.
func (r *Report) GeneratedFor(pkg *Package) []GeneratedFile {
	if pkg == nil {
		return nil
	}
	sources := make(map[string]struct{}, len(pkg.Sources))
	for _, s := range pkg.Sources {
		sources[s] = struct{}{}
	}
	var out []GeneratedFile
	for _, g := range r.Generated {
		if _, ok := sources[g.Source]; ok {
			out = append(out, g)
		}
	}
	return out
}

// PackageBySource returns the first package listing source among its
// sources, or nil if no package does.
func (r *Report) PackageBySource(source string) *Package {
	for i := range r.Packages {
		for _, s := range r.Packages[i].Sources {
			if s == source {
				return &r.Packages[i]
			}
		}
	}
	return nil
}

// CompileEntry is one normalized compilation invocation, in the shape
// consumed by clang-compatible tooling.
type CompileEntry struct {
	File      string   `json:"file"`
	Directory string   `json:"directory"`
	Arguments []string `json:"arguments"`
}
