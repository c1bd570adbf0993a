package domain

import "strings"

// Dialect is the HDL language variant of generated source.
type Dialect string

const (
	DialectUnknown Dialect = "unknown"
	DialectVHDL    Dialect = "vhdl"
	DialectVerilog Dialect = "verilog"
)

// ParseDialect maps a fence tag or user string to a Dialect.
func ParseDialect(s string) Dialect {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vhdl", "vhd":
		return DialectVHDL
	case "verilog", "v", "systemverilog", "sv":
		return DialectVerilog
	default:
		return DialectUnknown
	}
}

// Extension is the source file extension used inside archives.
func (d Dialect) Extension() string {
	switch d {
	case DialectVHDL:
		return "vhd"
	case DialectVerilog:
		return "v"
	default:
		return "txt"
	}
}

// StructuralCounts are best-effort tallies; they never gate success.
type StructuralCounts struct {
	Signals   int      `json:"signals"`
	Ports     int      `json:"ports"`
	Processes int      `json:"processes"`
	Libraries []string `json:"libraries"`
	Lines     int      `json:"lines"`
	Chars     int      `json:"chars"`
}

// AnalyzedSource is the CodeAnalyzer output.
type AnalyzedSource struct {
	Dialect             Dialect
	DesignUnit          string
	ExtractionFailed    bool
	Source              string
	Counts              StructuralCounts
	HasTestbench        bool
	DialectFromFenceTag bool
}
