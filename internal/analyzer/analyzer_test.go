package analyzer

import (
	"errors"
	"strings"
	"testing"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
)

const andGateVHDL = `library IEEE;
use IEEE.STD_LOGIC_1164.ALL;

entity and_gate is
    port (
        a, b : in  std_logic;
        y    : out std_logic
    );
end and_gate;

architecture rtl of and_gate is
begin
    y <= a and b;
end rtl;
`

const counterVerilog = `module counter (
    input  wire       clk,
    input  wire       rst,
    output reg  [3:0] q
);
    always @(posedge clk) begin
        if (rst) q <= 4'b0;
        else     q <= q + 1;
    end
endmodule
`

func TestAnalyze_DialectDetection(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantDialect domain.Dialect
		wantUnit    string
		wantFailed  bool
		wantFromTag bool
	}{
		{
			name:        "vhdl fence",
			raw:         "Here is the code:\n```vhdl\n" + andGateVHDL + "```\nIt implements y = a and b.",
			wantDialect: domain.DialectVHDL,
			wantUnit:    "and_gate",
			wantFromTag: true,
		},
		{
			name:        "verilog fence",
			raw:         "```verilog\n" + counterVerilog + "```",
			wantDialect: domain.DialectVerilog,
			wantUnit:    "counter",
			wantFromTag: true,
		},
		{
			name:        "systemverilog tag",
			raw:         "```SystemVerilog\n" + counterVerilog + "```",
			wantDialect: domain.DialectVerilog,
			wantUnit:    "counter",
			wantFromTag: true,
		},
		{
			name:        "unfenced vhdl",
			raw:         andGateVHDL,
			wantDialect: domain.DialectVHDL,
			wantUnit:    "and_gate",
		},
		{
			name:        "unfenced verilog",
			raw:         counterVerilog,
			wantDialect: domain.DialectVerilog,
			wantUnit:    "counter",
		},
		{
			name:        "untagged fence sniffed",
			raw:         "```\n" + counterVerilog + "```",
			wantDialect: domain.DialectVerilog,
			wantUnit:    "counter",
		},
		{
			name:        "vhdl tag beats verilog prose",
			raw:         "The module below has an always-on output; see `endmodule` in the Verilog version.\n```vhdl\n" + andGateVHDL + "```",
			wantDialect: domain.DialectVHDL,
			wantUnit:    "and_gate",
			wantFromTag: true,
		},
		{
			name:        "verilog tag beats vhdl contents",
			raw:         "```verilog\n" + andGateVHDL + "```",
			wantDialect: domain.DialectVerilog,
			wantUnit:    "fallback",
			wantFailed:  true,
			wantFromTag: true,
		},
	}

	a := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Analyze(tt.raw, "fallback")
			if err != nil {
				t.Fatalf("Analyze() error: %v", err)
			}
			if got.Dialect != tt.wantDialect {
				t.Errorf("Dialect = %s, want %s", got.Dialect, tt.wantDialect)
			}
			if got.DialectFromFenceTag != tt.wantFromTag {
				t.Errorf("DialectFromFenceTag = %v, want %v", got.DialectFromFenceTag, tt.wantFromTag)
			}
			if got.DesignUnit != tt.wantUnit {
				t.Errorf("DesignUnit = %s, want %s", got.DesignUnit, tt.wantUnit)
			}
			if got.ExtractionFailed != tt.wantFailed {
				t.Errorf("ExtractionFailed = %v, want %v", got.ExtractionFailed, tt.wantFailed)
			}
		})
	}
}

func TestAnalyze_LongestFenceWins(t *testing.T) {
	raw := "Usage:\n```sh\nghdl -a x.vhd\n```\nCode:\n```vhdl\n" + andGateVHDL + "```"

	got, err := New().Analyze(raw, "x")
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if !strings.Contains(got.Source, "entity and_gate is") {
		t.Errorf("Source = %q, want the vhdl block", got.Source)
	}
	if strings.Contains(got.Source, "```") {
		t.Error("Source still contains fence markers")
	}
}

func TestAnalyze_HDLTaggedFenceBeatsLongerBlocks(t *testing.T) {
	simLog := strings.Repeat("ghdl:info: simulation step ok\n", 40)

	tests := []struct {
		name string
		raw  string
	}{
		{"longer text block", "```vhdl\n" + andGateVHDL + "```\nSimulation output:\n```text\n" + simLog + "```"},
		{"longer untagged verilog block", "```vhdl\n" + andGateVHDL + "```\nAn alternative:\n```\n" + counterVerilog + counterVerilog + "```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New().Analyze(tt.raw, "x")
			if err != nil {
				t.Fatalf("Analyze() error: %v", err)
			}
			if got.Dialect != domain.DialectVHDL {
				t.Errorf("Dialect = %s, want vhdl", got.Dialect)
			}
			if got.DesignUnit != "and_gate" {
				t.Errorf("DesignUnit = %s, want and_gate", got.DesignUnit)
			}
			if !got.DialectFromFenceTag {
				t.Error("DialectFromFenceTag = false, want true")
			}
		})
	}
}

func TestAnalyze_UntaggedFencesFallBackToLongest(t *testing.T) {
	raw := "```text\nsee below\n```\n```\n" + counterVerilog + "```"

	got, err := New().Analyze(raw, "x")
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if got.Dialect != domain.DialectVerilog || got.DesignUnit != "counter" {
		t.Errorf("got %s/%s, want verilog/counter", got.Dialect, got.DesignUnit)
	}
}

func TestAnalyze_Unknown(t *testing.T) {
	inputs := []string{
		"",
		"   \n\t",
		"I'm sorry, I cannot help with that request.",
		"```python\nprint('hello')\n```",
		"A module is a unit of design. Entities are described elsewhere.",
	}

	for _, raw := range inputs {
		_, err := New().Analyze(raw, "x")
		var ae *AnalysisError
		if !errors.As(err, &ae) {
			t.Errorf("Analyze(%q) error = %v, want AnalysisError", raw, err)
		}
	}
}

func TestAnalyze_EntityFallback(t *testing.T) {
	raw := "```vhdl\nlibrary ieee;\nuse ieee.std_logic_1164.all;\n\narchitecture rtl of mystery is\nbegin\nend rtl;\n```"

	got, err := New().Analyze(raw, "and_gate")
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if got.DesignUnit != "and_gate" {
		t.Errorf("DesignUnit = %s, want and_gate", got.DesignUnit)
	}
	if !got.ExtractionFailed {
		t.Error("ExtractionFailed = false, want true")
	}
}

func TestAnalyze_ModelChosenName(t *testing.T) {
	raw := "```vhdl\n" + strings.ReplaceAll(andGateVHDL, "and_gate", "AND2") + "```"

	got, err := New().Analyze(raw, "and_gate")
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if got.DesignUnit != "AND2" || got.ExtractionFailed {
		t.Errorf("DesignUnit = %s (failed=%v), want AND2", got.DesignUnit, got.ExtractionFailed)
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"\n\n  \n", ""},
		{"\n\nentity x is   \nend x;\t\n\n", "entity x is\nend x;\n"},
		{"a\r\nb\r\n", "a\nb\n"},
		{"a\n\n\nb", "a\n\n\nb\n"},
	}
	for _, tt := range tests {
		if got := Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
