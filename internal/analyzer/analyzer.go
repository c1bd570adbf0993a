// Package analyzer isolates HDL source from free-form model output and
// classifies it.
package analyzer

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
)

// AnalysisError means no dialect could be recognized in the model output.
type AnalysisError struct {
	Reason string
}

func (e *AnalysisError) Error() string {
	return "analysis failed: " + e.Reason
}

// Hint suggests how to get a usable response.
func (e *AnalysisError) Hint() string {
	return "ask explicitly for VHDL or Verilog code in a fenced code block"
}

var (
	fencePattern = regexp.MustCompile("(?s)```[ \t]*([A-Za-z]*)[^\n]*\n(.*?)```")

	vhdlMarkers = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bentity\s+\w+\s+is\b`),
		regexp.MustCompile(`(?i)\barchitecture\s+\w+\s+of\s+\w+`),
		regexp.MustCompile(`(?i)\blibrary\s+ieee\s*;`),
		regexp.MustCompile(`(?i)\bieee\.std_logic_1164\b`),
	}
	verilogMarkers = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bmodule\s+\w+\s*[(#;]`),
		regexp.MustCompile(`(?i)\bendmodule\b`),
		regexp.MustCompile(`(?i)\balways\s*@`),
	}

	entityPattern = regexp.MustCompile(`(?i)\bentity\s+(\w+)\s+is\b`)
	modulePattern = regexp.MustCompile(`(?i)\bmodule\s+(\w+)`)
)

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// Analyzer turns raw model text into an AnalyzedSource. It holds no
// per-request state and is safe for concurrent use.
type Analyzer struct {
	logger *slog.Logger
}

// New creates an Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze isolates the code block, detects the dialect, extracts the design
// unit and tallies structural counts. circuitName is the fallback design
// unit when no declaration is found.
func (a *Analyzer) Analyze(raw, circuitName string) (domain.AnalyzedSource, error) {
	if strings.TrimSpace(raw) == "" {
		return domain.AnalyzedSource{}, &AnalysisError{Reason: "model returned an empty response"}
	}

	code, tag := isolate(raw)
	code = Clean(code)

	dialect := domain.ParseDialect(tag)
	fromTag := dialect != domain.DialectUnknown
	if !fromTag {
		dialect = sniff(code)
	}
	if dialect == domain.DialectUnknown {
		return domain.AnalyzedSource{}, &AnalysisError{Reason: "no VHDL or Verilog constructs found in response"}
	}

	unit, ok := designUnit(code, dialect)
	if !ok {
		unit = circuitName
		a.logger.Warn("design unit not found, using circuit name",
			"circuit", circuitName,
			"dialect", dialect,
		)
	}

	out := domain.AnalyzedSource{
		Dialect:             dialect,
		DesignUnit:          unit,
		ExtractionFailed:    !ok,
		Source:              code,
		Counts:              Count(code, dialect),
		HasTestbench:        HasTestbench(code, dialect),
		DialectFromFenceTag: fromTag,
	}

	a.logger.Debug("source analyzed",
		"dialect", out.Dialect,
		"design_unit", out.DesignUnit,
		"from_tag", fromTag,
		"lines", out.Counts.Lines,
	)
	return out, nil
}

// isolate returns the longest fenced block carrying an HDL tag. When no
// block is tagged as HDL it returns the longest block of any kind, or the
// whole text when there are no fences.
func isolate(raw string) (code, tag string) {
	matches := fencePattern.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return raw, ""
	}
	var tagged, longest []string
	for _, m := range matches {
		if domain.ParseDialect(m[1]) != domain.DialectUnknown && (tagged == nil || len(m[2]) > len(tagged[2])) {
			tagged = m
		}
		if longest == nil || len(m[2]) > len(longest[2]) {
			longest = m
		}
	}
	if tagged != nil {
		return tagged[2], tagged[1]
	}
	return longest[2], longest[1]
}

// sniff classifies by keywords. VHDL markers are checked first.
func sniff(code string) domain.Dialect {
	for _, re := range vhdlMarkers {
		if re.MatchString(code) {
			return domain.DialectVHDL
		}
	}
	for _, re := range verilogMarkers {
		if re.MatchString(code) {
			return domain.DialectVerilog
		}
	}
	return domain.DialectUnknown
}

// designUnit returns the first entity or module name.
func designUnit(code string, dialect domain.Dialect) (string, bool) {
	re := entityPattern
	if dialect == domain.DialectVerilog {
		re = modulePattern
	}
	m := re.FindStringSubmatch(code)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Clean trims trailing whitespace from every line and drops leading and
// trailing blank lines. Non-empty results end with exactly one newline.
func Clean(code string) string {
	lines := strings.Split(strings.ReplaceAll(code, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// Describe is a one-line summary used in logs and console output.
func Describe(s domain.AnalyzedSource) string {
	return fmt.Sprintf("%s %s (%d lines, %d signals, %d processes)",
		strings.ToUpper(string(s.Dialect)), s.DesignUnit, s.Counts.Lines, s.Counts.Signals, s.Counts.Processes)
}

func runeCount(s string) int { return utf8.RuneCountInString(s) }
