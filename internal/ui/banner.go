package ui

import (
	"fmt"

	"github.com/fatih/color"
)

var bannerRows = []string{
	"██████╗ ██████╗  ██████╗ ████████╗███████╗██╗   ██╗███████╗",
	"██╔══██╗██╔══██╗██╔═══██╗╚══██╔══╝██╔════╝██║   ██║██╔════╝",
	"██████╔╝██████╔╝██║   ██║   ██║   █████╗  ██║   ██║███████╗",
	"██╔═══╝ ██╔══██╗██║   ██║   ██║   ██╔══╝  ██║   ██║╚════██║",
	"██║     ██║  ██║╚██████╔╝   ██║   ███████╗╚██████╔╝███████║",
	"╚═╝     ╚═╝  ╚═╝ ╚═════╝    ╚═╝   ╚══════╝ ╚═════╝ ╚══════╝",
}

// PrintBanner displays the startup banner with the running version.
func PrintBanner(version string) {
	fmt.Println()

	frame := color.New(color.FgCyan, color.Bold)
	art := color.New(color.FgHiMagenta, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	white := color.New(color.FgWhite)
	dim := color.New(color.FgHiBlack)

	frame.Println("╔══════════════════════════════════════════════════════════════════╗")
	for _, row := range bannerRows {
		frame.Print("║    ")
		art.Print(row)
		frame.Println("    ║")
	}
	frame.Println("╠══════════════════════════════════════════════════════════════════╣")

	line := fmt.Sprintf("HDL AI  │  VHDL + Verilog  │  ghdl · iverilog  │  %s", version)
	frame.Print("║  ")
	yellow.Print("HDL AI")
	dim.Print("  │  ")
	white.Print("VHDL + Verilog")
	dim.Print("  │  ")
	white.Print("ghdl · iverilog")
	dim.Print("  │  ")
	white.Print(version)
	fmt.Printf("%*s", max(0, 64-len([]rune(line))), "")
	frame.Println("║")

	frame.Println("╚══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
}
