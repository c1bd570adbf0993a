package compiler

import (
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
)

// Toolchain describes whether a dialect's compiler can be found.
type Toolchain struct {
	Dialect   domain.Dialect `json:"dialect"`
	Command   string         `json:"command"`
	Path      string         `json:"path,omitempty"`
	Available bool           `json:"available"`
}

// Availability resolves every configured toolchain.
func (r *Runner) Availability() []Toolchain {
	out := make([]Toolchain, 0, 2)
	for _, d := range []domain.Dialect{domain.DialectVHDL, domain.DialectVerilog} {
		tool, _ := r.toolFor(d)
		tc := Toolchain{Dialect: d, Command: tool}
		if p, err := exec.LookPath(tool); err == nil {
			tc.Path = p
			tc.Available = true
		}
		out = append(out, tc)
	}
	return out
}

// collectArtifacts reads the files in dir matching any pattern, skipping
// the source file. Results are sorted by name.
func collectArtifacts(dir, sourceFile string, patterns []string) ([]domain.Artifact, error) {
	fsys := os.DirFS(dir)
	seen := map[string]bool{sourceFile: true}
	var names []string

	for _, p := range patterns {
		matches, err := doublestar.Glob(fsys, filepath.ToSlash(p), doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.Wrapf(err, "glob %q", p)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				names = append(names, m)
			}
		}
	}
	sort.Strings(names)

	artifacts := make([]domain.Artifact, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return artifacts, errors.Wrapf(err, "read artifact %s", name)
		}
		artifacts = append(artifacts, domain.Artifact{Name: name, Data: data})
	}
	return artifacts, nil
}
