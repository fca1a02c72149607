// Package report parses project-info reports emitted by the build tool.
//
// A report is line-oriented text made of chunks: maximal runs of non-blank
// lines separated by one or more blank lines. The first chunk is a header
// and is skipped. The last chunk is the generated-file map. Every chunk in
// between belongs to a package record. A record starts with an unindented
// chunk whose first line carries the package name and descriptor path; the
// indented chunks that follow it are, in order, the record's sources, flags,
// and outputs.
package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"compdb/internal/model"
)

// ErrMalformedReport indicates a report too structurally incomplete to
// parse: empty input, or fewer than two chunks.
var ErrMalformedReport = errors.New("malformed project-info report")

// ParseError describes why a parse failed. It unwraps to
// ErrMalformedReport so callers can match with errors.Is.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformedReport.Error(), e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrMalformedReport }

func malformed(format string, args ...any) error {
	return &ParseError{Reason: fmt.Sprintf(format, args...)}
}

// chunk is a maximal run of non-blank lines.
type chunk struct {
	lines    []string
	indented bool // first line begins with whitespace
}

// Parse reads a full project-info report and returns the structured model.
// Input is processed line by line; no size limit is enforced.
func Parse(r io.Reader) (*model.Report, error) {
	chunks, err := splitChunks(r)
	if err != nil {
		return nil, err
	}
	if len(chunks) < 2 {
		return nil, malformed("need at least a header and a generated-file map, got %d chunk(s)", len(chunks))
	}

	// chunks[0] is the header; the final chunk is always the
	// generated-file map, never part of a record.
	body := chunks[1 : len(chunks)-1]
	last := chunks[len(chunks)-1]

	rep := &model.Report{}
	for i := 0; i < len(body); {
		pkg, consumed, ok := parseRecord(body[i:])
		i += consumed
		if !ok {
			continue // one bad chunk skipped, keep going
		}
		rep.Packages = append(rep.Packages, pkg)
	}
	rep.Generated = parseGeneratedMap(last)

	return rep, nil
}

// ParseFile parses the report at path. Missing, unreadable, or empty files
// are rejected the same way a structurally empty report is.
func ParseFile(path string) (*model.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, malformed("reading %s: %v", path, err)
	}
	defer f.Close()
	rep, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rep, nil
}

// splitChunks groups the input into runs of non-blank lines. A line is
// blank when it contains only whitespace.
func splitChunks(r io.Reader) ([]chunk, error) {
	var (
		chunks []chunk
		cur    *chunk
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			cur = nil
			continue
		}
		if cur == nil {
			chunks = append(chunks, chunk{indented: isIndented(line)})
			cur = &chunks[len(chunks)-1]
		}
		cur.lines = append(cur.lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, malformed("reading report: %v", err)
	}
	return chunks, nil
}

func isIndented(line string) bool {
	return len(line) > 0 && (line[0] == ' ' || line[0] == '\t')
}

// parseRecord attempts to parse one package record starting at chunks[0].
// It returns the number of chunks consumed. A chunk that cannot start a
// record (indented first line, or fewer than two tokens on it) consumes
// exactly one chunk with ok=false so the caller can retry at the next one.
func parseRecord(chunks []chunk) (pkg model.Package, consumed int, ok bool) {
	head := chunks[0]
	fields := strings.Fields(head.lines[0])
	if head.indented || len(fields) < 2 {
		return model.Package{}, 1, false
	}

	pkg.Name = fields[0]
	pkg.Descriptor = fields[1]
	for _, line := range head.lines[1:] {
		if dep := strings.TrimSpace(line); dep != "" {
			pkg.Deps = append(pkg.Deps, dep)
		}
	}
	consumed = 1

	// The record's remaining chunks are claimed strictly by ordinal
	// position: first sources, then flags, then outputs. A record with
	// fewer chunks simply has empty trailing fields. Anything past the
	// third continuation chunk is ignored.
	for part := 0; consumed < len(chunks) && chunks[consumed].indented; consumed++ {
		c := chunks[consumed]
		switch part {
		case 0:
			pkg.Sources = trimmedLines(c)
		case 1:
			pkg.Flags = tokenLines(c)
		case 2:
			pkg.Outputs = trimmedLines(c)
		}
		part++
	}

	return pkg, consumed, true
}

func trimmedLines(c chunk) []string {
	out := make([]string, 0, len(c.lines))
	for _, line := range c.lines {
		if s := strings.TrimSpace(line); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func tokenLines(c chunk) []string {
	var out []string
	for _, line := range c.lines {
		out = append(out, strings.Fields(line)...)
	}
	return out
}

// parseGeneratedMap reads the final chunk. Each line needs at least three
// fields: generated path, source path, sequence tag. Shorter lines are
// dropped, not fatal. The sequence tag is kept verbatim.
func parseGeneratedMap(c chunk) []model.GeneratedFile {
	var out []model.GeneratedFile
	for _, line := range c.lines {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		out = append(out, model.GeneratedFile{
			Path:   fields[0],
			Source: fields[1],
			Seq:    fields[2],
		})
	}
	return out
}
