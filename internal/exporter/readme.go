package exporter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
)

// Readme renders the human-readable project description.
func Readme(in Input, m domain.Manifest) string {
	var b strings.Builder
	title := "HDL AI Proteus Project - " + in.CircuitName
	fmt.Fprintf(&b, "%s\n%s\n\n", title, strings.Repeat("=", len(title)))

	status := "SUCCESS"
	switch {
	case m.Compilation.State == domain.StateToolchainMissing:
		status = "UNVALIDATED (toolchain not available)"
	case !m.Compilation.Success:
		status = "FAILED (" + string(m.Compilation.State) + ")"
	}

	b.WriteString("Project Information:\n")
	fmt.Fprintf(&b, "- Circuit Name: %s\n", in.CircuitName)
	fmt.Fprintf(&b, "- Design Unit: %s\n", m.DesignUnit)
	fmt.Fprintf(&b, "- HDL Language: %s\n", strings.ToUpper(string(m.HDLLanguage)))
	fmt.Fprintf(&b, "- Generated by: %s\n", m.GeneratedBy)
	fmt.Fprintf(&b, "- Compilation Status: %s\n\n", status)

	b.WriteString("File Contents:\n")
	fmt.Fprintf(&b, "- %s.%s: Main HDL source file\n", in.CircuitName, m.HDLLanguage.Extension())
	fmt.Fprintf(&b, "- %s: Project metadata\n", ManifestName)
	for _, a := range m.Artifacts {
		fmt.Fprintf(&b, "- %s: Compiled artifact (%d bytes)\n", a.Name, a.Size)
	}
	fmt.Fprintf(&b, "- %s: This file\n\n", ReadmeName)

	libs := append([]string(nil), m.Counts.Libraries...)
	sort.Strings(libs)
	libList := strings.Join(libs, ", ")
	if libList == "" {
		libList = "None"
	}
	testbench := "No"
	if m.HasTestbench {
		testbench = "Yes"
	}

	b.WriteString("Code Statistics:\n")
	fmt.Fprintf(&b, "- Lines of Code: %d\n", m.Counts.Lines)
	fmt.Fprintf(&b, "- Ports: %d\n", m.Counts.Ports)
	fmt.Fprintf(&b, "- Signals/Wires: %d\n", m.Counts.Signals)
	fmt.Fprintf(&b, "- Processes/Always Blocks: %d\n", m.Counts.Processes)
	fmt.Fprintf(&b, "- Libraries Used: %s\n", libList)
	fmt.Fprintf(&b, "- Contains Testbench: %s\n\n", testbench)

	if !m.Compilation.Success && m.Compilation.Diagnostics != "" {
		title := "Compilation Error"
		if m.Compilation.FailedStep != "" {
			title += " (" + m.Compilation.FailedStep + " step)"
		}
		fmt.Fprintf(&b, "%s:\n%s\n\n", title, strings.TrimRight(m.Compilation.Diagnostics, "\n"))
	}

	b.WriteString("Usage Instructions:\n")
	b.WriteString("1. Extract this archive to access the HDL source code\n")
	b.WriteString("2. Import the HDL file into your preferred simulation tool\n")
	b.WriteString("3. Verify the design meets your requirements\n")
	b.WriteString("4. Modify as needed for your specific application\n\n")
	b.WriteString("Note: This project was generated using AI and should be reviewed\n")
	b.WriteString("before use in production applications.\n")
	return b.String()
}

func sortedArtifacts(in []domain.Artifact) []domain.Artifact {
	out := append([]domain.Artifact(nil), in...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
