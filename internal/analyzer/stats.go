package analyzer

import (
	"regexp"
	"strings"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
)

var (
	vhdlSignal     = regexp.MustCompile(`(?i)\bsignal\s+\w+`)
	vhdlProcess    = regexp.MustCompile(`(?i)\bprocess\b`)
	vhdlEndProcess = regexp.MustCompile(`(?i)\bend\s+process\b`)
	vhdlLibrary    = regexp.MustCompile(`(?i)\blibrary\s+(\w+)\s*;`)
	vhdlUse        = regexp.MustCompile(`(?i)\buse\s+([\w.]+)\s*;`)
	vhdlPortStart  = regexp.MustCompile(`(?i)\bport\s*\(`)
	vhdlEntity     = regexp.MustCompile(`(?i)\bentity\s+\w+\s+is\b`)

	verilogNet     = regexp.MustCompile(`\b(wire|reg)\b`)
	verilogAlways  = regexp.MustCompile(`\balways(_ff|_comb|_latch)?\b`)
	verilogInclude = regexp.MustCompile("`include\\s+\"([^\"]+)\"")
	verilogPort    = regexp.MustCompile(`\b(input|output|inout)\b`)
	verilogModule  = regexp.MustCompile(`\bmodule\s+\w+`)
	verilogInitial = regexp.MustCompile(`\binitial\b`)
	verilogStop    = regexp.MustCompile(`\$(finish|monitor|stop)\b`)

	testbenchName = regexp.MustCompile(`(?i)(testbench|\btb_\w*|\w+_tb\b)`)
)

// Count tallies signals, ports, processes, libraries, lines and characters.
// The numbers are informational and never affect the pipeline outcome.
func Count(code string, dialect domain.Dialect) domain.StructuralCounts {
	c := domain.StructuralCounts{
		Lines:     lineCount(code),
		Chars:     runeCount(code),
		Libraries: []string{},
	}
	switch dialect {
	case domain.DialectVHDL:
		c.Signals = len(vhdlSignal.FindAllStringIndex(code, -1))
		c.Processes = len(vhdlProcess.FindAllStringIndex(code, -1)) - len(vhdlEndProcess.FindAllStringIndex(code, -1))
		c.Ports = vhdlPorts(code)
		c.Libraries = unique(
			submatches(vhdlLibrary, code),
			submatches(vhdlUse, code),
		)
	case domain.DialectVerilog:
		c.Signals = len(verilogNet.FindAllStringIndex(code, -1))
		c.Processes = len(verilogAlways.FindAllStringIndex(code, -1))
		c.Ports = len(verilogPort.FindAllStringIndex(code, -1))
		c.Libraries = unique(submatches(verilogInclude, code))
	}
	return c
}

// HasTestbench reports whether the source embeds a testbench: a second
// design unit, a testbench-style name, or (Verilog) an initial block that
// ends or monitors the simulation.
func HasTestbench(code string, dialect domain.Dialect) bool {
	if testbenchName.MatchString(code) {
		return true
	}
	switch dialect {
	case domain.DialectVHDL:
		return len(vhdlEntity.FindAllStringIndex(code, -1)) > 1
	case domain.DialectVerilog:
		if len(verilogModule.FindAllStringIndex(code, -1)) > 1 {
			return true
		}
		return verilogInitial.MatchString(code) && verilogStop.MatchString(code)
	}
	return false
}

// vhdlPorts counts the names declared in every port (...) clause.
func vhdlPorts(code string) int {
	n := 0
	for _, loc := range vhdlPortStart.FindAllStringIndex(code, -1) {
		body := balanced(code[loc[1]:])
		for _, decl := range strings.Split(body, ";") {
			names, _, ok := strings.Cut(decl, ":")
			if !ok {
				continue
			}
			for _, name := range strings.Split(names, ",") {
				if strings.TrimSpace(name) != "" {
					n++
				}
			}
		}
	}
	return n
}

// balanced returns s up to the parenthesis closing an already opened one.
func balanced(s string) string {
	depth := 1
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[:i]
			}
		}
	}
	return s
}

func submatches(re *regexp.Regexp, s string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		out = append(out, m[1])
	}
	return out
}

// unique merges lists, dropping case-insensitive duplicates and keeping
// first-seen order.
func unique(lists ...[]string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, l := range lists {
		for _, v := range l {
			k := strings.ToLower(v)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, v)
		}
	}
	return out
}

func lineCount(code string) int {
	if code == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(code, "\n"), "\n") + 1
}
