// Package ui prints colored console output for the generation server:
// startup information, toolchain availability and one line per generation.
package ui

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/noejunior792/hdl-ai-proteus/internal/compiler"
)

var (
	successBadge = color.New(color.BgGreen, color.FgBlack, color.Bold)
	warningBadge = color.New(color.FgYellow, color.Bold)
	errorBadge   = color.New(color.BgRed, color.FgWhite, color.Bold)
	infoBadge    = color.New(color.FgCyan, color.Bold)

	successText = color.New(color.FgGreen, color.Bold)
	warningText = color.New(color.FgYellow)
	errorText   = color.New(color.FgRed)
	infoText    = color.New(color.FgCyan)
	mutedText   = color.New(color.FgHiBlack)
	accentText  = color.New(color.FgMagenta, color.Bold)
	neonBlue    = color.New(color.FgHiCyan, color.Bold)

	vhdlBadge    = color.New(color.BgHiBlue, color.FgBlack, color.Bold)
	verilogBadge = color.New(color.BgHiMagenta, color.FgBlack, color.Bold)
	methodPOST   = color.New(color.BgHiMagenta, color.FgBlack, color.Bold)
	methodGET    = color.New(color.BgHiCyan, color.FgBlack, color.Bold)
	methodDELETE = color.New(color.BgHiRed, color.FgBlack, color.Bold)
)

// PrintInfo logs general server information.
// Format: [PROTEUS] message
func PrintInfo(msg string) {
	infoBadge.Print("[PROTEUS]")
	fmt.Print(" ")
	infoText.Println(msg)
}

// PrintGeneration logs one finished generation.
// Format: 15:04:05  VHDL  half_adder  succeeded  1234ms
func PrintGeneration(circuit, dialect, state string, latency time.Duration) {
	mutedText.Printf("%s ", time.Now().Format("15:04:05"))
	printDialectBadge(dialect)
	fmt.Printf(" %-24s ", truncate(circuit, 24))
	printState(state)
	fmt.Print(" ")
	printLatency(latency)
	fmt.Println()
}

// PrintCacheHit logs a generation answered from the result cache.
// Format: ⚡ CACHE HIT | key:xxxx...xxxx | 0ms
func PrintCacheHit(cacheKey string, latency time.Duration) {
	neonBlue.Print("⚡ CACHE HIT ")
	fmt.Print("| key:")
	mutedText.Print(shorten(cacheKey))
	fmt.Print(" | ")
	successText.Printf("%dms\n", latency.Milliseconds())
}

func printDialectBadge(dialect string) {
	switch dialect {
	case "vhdl":
		vhdlBadge.Print("  VHDL   ")
	case "verilog":
		verilogBadge.Print(" VERILOG ")
	default:
		warningBadge.Printf(" %-7s ", dialect)
	}
}

func printState(state string) {
	label := fmt.Sprintf("%-17s", state)
	switch state {
	case "succeeded":
		successText.Print(label)
	case "toolchain_missing", "timed_out":
		warningText.Print(label)
	default:
		errorText.Print(label)
	}
}

// printLatency colors by duration. Generations are slow, so the thresholds
// are seconds rather than milliseconds.
func printLatency(latency time.Duration) {
	ms := latency.Milliseconds()
	s := fmt.Sprintf("%6dms", ms)
	switch {
	case latency < 5*time.Second:
		successText.Print(s)
	case latency < 20*time.Second:
		warningText.Print(s)
	default:
		errorText.Print(s)
	}
}

func shorten(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// PrintStartupInfo prints the listen address, the default provider and how
// many server-side credentials are pooled.
func PrintStartupInfo(host string, port int, defaultKind string, pooledKeys int) {
	fmt.Println()
	infoBadge.Print("[PROTEUS]")
	fmt.Print(" Server starting on ")
	neonBlue.Printf("http://%s:%d\n", host, port)

	infoBadge.Print("[PROTEUS]")
	fmt.Print(" Default provider: ")
	accentText.Print(defaultKind)
	fmt.Print(" | Pooled keys: ")
	if pooledKeys > 0 {
		successText.Printf("%d\n", pooledKeys)
	} else {
		mutedText.Println("none (callers send api_key)")
	}

	fmt.Println()
	printEndpoints()
}

// PrintToolchains reports which HDL compilers were found.
func PrintToolchains(toolchains []compiler.Toolchain) {
	for _, tc := range toolchains {
		infoBadge.Print("[TOOLCHAIN]")
		fmt.Printf(" %-8s %-9s ", tc.Dialect, tc.Command)
		if tc.Available {
			successText.Print("found ")
			mutedText.Println(tc.Path)
		} else {
			warningText.Println("missing (archives will be marked unvalidated)")
		}
	}
	fmt.Println()
}

type endpoint struct {
	method string
	path   string
	desc   string
}

var endpoints = []endpoint{
	{"POST", "/generate", "Generate, compile and package HDL"},
	{"POST", "/test-provider", "Test provider credentials"},
	{"GET", "/api/providers", "List supported providers"},
	{"GET", "/api/providers/:type/template", "Provider config template"},
	{"GET", "/api/archives/:id", "Download a retained archive"},
	{"DELETE", "/api/archives/:id", "Delete a retained archive"},
	{"GET", "/api/info", "Service information"},
	{"GET", "/health", "Health check"},
}

func printEndpoints() {
	mutedText.Println("  ┌──────────────────────────────────────────────────────────────────────────┐")
	for _, e := range endpoints {
		mutedText.Print("  │ ")
		switch e.method {
		case "POST":
			methodPOST.Printf(" %-6s", e.method)
		case "DELETE":
			methodDELETE.Printf(" %-6s", e.method)
		default:
			methodGET.Printf(" %-6s", e.method)
		}
		fmt.Printf(" %-30s ", e.path)
		mutedText.Printf("%-33s", e.desc)
		mutedText.Println(" │")
	}
	mutedText.Println("  └──────────────────────────────────────────────────────────────────────────┘")
	fmt.Println()
}

// PrintShutdown prints a styled shutdown message.
func PrintShutdown() {
	fmt.Println()
	warningBadge.Print("[SHUTDOWN]")
	warningText.Println(" Graceful shutdown initiated, waiting for running generations...")
}

// PrintGoodbye prints a styled goodbye message.
func PrintGoodbye() {
	successBadge.Print(" OK ")
	fmt.Print(" ")
	successText.Println("Server stopped. Goodbye!")
}

// PrintFatal prints a startup failure before exiting.
func PrintFatal(msg string, err error) {
	errorBadge.Print(" FATAL ")
	fmt.Print(" ")
	errorText.Printf("%s: %v\n", msg, err)
}
