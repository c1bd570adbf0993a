package compiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
)

// fakeTool writes an executable shell script standing in for a toolchain.
func fakeTool(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write fake %s: %v", name, err)
	}
	return path
}

const ghdlOK = `case "$1" in
  -a) echo "analyzed $*"; touch work-obj93.cf ;;
  -e) echo "elaborated $*" ;;
esac
exit 0
`

const ghdlElabFails = `case "$1" in
  -a) echo "analysis ok" >&2 ;;
  -e) echo "ghdl: cannot find entity or configuration and_gate" >&2; exit 1 ;;
esac
`

const iverilogOK = `out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; fi
  shift
done
echo "compiled" > "$out"
`

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(%s): %v", dir, err)
	}
	if len(entries) != 0 {
		t.Errorf("work root not cleaned up: %d entries left", len(entries))
	}
}

func TestCompile_VHDLSucceeds(t *testing.T) {
	root := t.TempDir()
	r := New(Config{GHDLPath: fakeTool(t, "ghdl", ghdlOK), WorkRoot: root})

	out, err := r.Compile(context.Background(), domain.DialectVHDL, "entity and_gate is end;", "and_gate")
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if out.State != domain.StateSucceeded || !out.Success || !out.Attempted {
		t.Errorf("outcome = %+v, want succeeded", out)
	}
	if out.Toolchain != "ghdl" {
		t.Errorf("Toolchain = %s, want ghdl", out.Toolchain)
	}
	if !strings.Contains(out.Stdout, "-a -fsynopsys --workdir=") || !strings.Contains(out.Stdout, "and_gate.vhd") {
		t.Errorf("analyze args missing from stdout: %q", out.Stdout)
	}
	if !strings.Contains(out.Stdout, "elaborated -e -fsynopsys") || !strings.HasSuffix(strings.TrimSpace(out.Stdout), "and_gate") {
		t.Errorf("elaborate args missing from stdout: %q", out.Stdout)
	}
	if len(out.Artifacts) != 1 || out.Artifacts[0].Name != "work-obj93.cf" {
		t.Errorf("Artifacts = %v, want [work-obj93.cf]", out.Artifacts)
	}
	assertEmptyDir(t, root)
}

const ghdlNativeBackend = `case "$1" in
  -a) touch work-obj93.cf ;;
  -e) for a; do last="$a"; done; echo "ELF" > "$last"; echo "obj" > "e~$last.o" ;;
esac
exit 0
`

func TestCompile_VHDLCollectsElaboratedExecutable(t *testing.T) {
	r := New(Config{GHDLPath: fakeTool(t, "ghdl", ghdlNativeBackend), WorkRoot: t.TempDir()})

	out, err := r.Compile(context.Background(), domain.DialectVHDL, "entity and_gate is end;", "and_gate")
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if !out.Success {
		t.Fatalf("outcome = %+v, want succeeded", out)
	}

	var names []string
	for _, a := range out.Artifacts {
		names = append(names, a.Name)
	}
	want := []string{"and_gate", "e~and_gate.o", "work-obj93.cf"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("Artifacts = %v, want %v", names, want)
	}
	if string(out.Artifacts[0].Data) != "ELF\n" {
		t.Errorf("executable data = %q, want ELF", out.Artifacts[0].Data)
	}
}

func TestCompile_VHDLElaborationFails(t *testing.T) {
	root := t.TempDir()
	r := New(Config{GHDLPath: fakeTool(t, "ghdl", ghdlElabFails), WorkRoot: root})

	out, err := r.Compile(context.Background(), domain.DialectVHDL, "entity x is end;", "and_gate")
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if out.State != domain.StateFailed || out.Success {
		t.Errorf("State = %s, Success = %v, want failed", out.State, out.Success)
	}
	if out.FailedStep != StepElaborate {
		t.Errorf("FailedStep = %s, want %s", out.FailedStep, StepElaborate)
	}
	if !strings.Contains(out.Stderr, "cannot find entity") {
		t.Errorf("Stderr = %q, want elaboration diagnostic", out.Stderr)
	}
	if strings.Contains(out.Stderr, "analysis ok") {
		t.Errorf("Stderr mixes analyze output into the failing step: %q", out.Stderr)
	}
	if len(out.Artifacts) != 0 {
		t.Errorf("Artifacts = %v, want none on failure", out.Artifacts)
	}
	assertEmptyDir(t, root)
}

func TestCompile_VerilogSucceeds(t *testing.T) {
	root := t.TempDir()
	r := New(Config{IverilogPath: fakeTool(t, "iverilog", iverilogOK), WorkRoot: root})

	out, err := r.Compile(context.Background(), domain.DialectVerilog, "module counter; endmodule", "counter")
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if !out.Success {
		t.Fatalf("outcome = %+v, want success", out)
	}
	if len(out.Artifacts) != 1 || out.Artifacts[0].Name != "counter.out" {
		t.Fatalf("Artifacts = %v, want [counter.out]", out.Artifacts)
	}
	if string(out.Artifacts[0].Data) != "compiled\n" {
		t.Errorf("artifact data = %q", out.Artifacts[0].Data)
	}
	assertEmptyDir(t, root)
}

func TestCompile_VerilogFails(t *testing.T) {
	r := New(Config{
		IverilogPath: fakeTool(t, "iverilog", "echo \"counter.v:3: syntax error\" >&2\nexit 2\n"),
		WorkRoot:     t.TempDir(),
	})

	out, err := r.Compile(context.Background(), domain.DialectVerilog, "module counter(", "counter")
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if out.State != domain.StateFailed || out.FailedStep != StepCompile {
		t.Errorf("State = %s, FailedStep = %s, want failed/compile", out.State, out.FailedStep)
	}
	if !strings.Contains(out.Stderr, "syntax error") {
		t.Errorf("Stderr = %q", out.Stderr)
	}
}

func TestCompile_ToolchainMissing(t *testing.T) {
	root := t.TempDir()
	r := New(Config{
		GHDLPath:     filepath.Join(root, "does-not-exist", "ghdl"),
		IverilogPath: "iverilog-not-installed-anywhere",
		WorkRoot:     root,
	})

	for _, d := range []domain.Dialect{domain.DialectVHDL, domain.DialectVerilog} {
		out, err := r.Compile(context.Background(), d, "x", "x")
		if err != nil {
			t.Fatalf("Compile(%s) error: %v", d, err)
		}
		if out.State != domain.StateToolchainMissing {
			t.Errorf("Compile(%s).State = %s, want toolchain_missing", d, out.State)
		}
		if out.Attempted || out.Success {
			t.Errorf("Compile(%s) Attempted=%v Success=%v, want false/false", d, out.Attempted, out.Success)
		}
	}
	assertEmptyDir(t, root)
}

func TestCompile_Timeout(t *testing.T) {
	root := t.TempDir()
	r := New(Config{
		IverilogPath: fakeTool(t, "iverilog", "exec sleep 5\n"),
		WorkRoot:     root,
		Timeout:      100 * time.Millisecond,
	})

	start := time.Now()
	out, err := r.Compile(context.Background(), domain.DialectVerilog, "module m; endmodule", "m")
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if out.State != domain.StateTimedOut || out.Success {
		t.Errorf("State = %s, Success = %v, want timed_out", out.State, out.Success)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("Compile took %s, want it bounded by the timeout", elapsed)
	}
	assertEmptyDir(t, root)
}

func TestCompile_CallerCancellation(t *testing.T) {
	root := t.TempDir()
	r := New(Config{IverilogPath: fakeTool(t, "iverilog", "exec sleep 5\n"), WorkRoot: root})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := r.Compile(ctx, domain.DialectVerilog, "module m; endmodule", "m")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Compile() error = %v, want context.Canceled", err)
	}
	assertEmptyDir(t, root)
}

func TestCompile_UnknownDialect(t *testing.T) {
	r := New(Config{WorkRoot: t.TempDir()})
	if _, err := r.Compile(context.Background(), domain.DialectUnknown, "x", "x"); err == nil {
		t.Error("Compile(unknown) error = nil, want error")
	}
}

func TestCompile_ConcurrentRequestsUseSeparateDirs(t *testing.T) {
	root := t.TempDir()
	// Fails if another request's source is visible in the same directory.
	script := `set -- *.v
if [ $# -ne 1 ]; then echo "shared dir" >&2; exit 1; fi
sleep 0.05
`
	r := New(Config{IverilogPath: fakeTool(t, "iverilog", script), WorkRoot: root, MaxConcurrent: 4})

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			unit := "unit" + string(rune('a'+i))
			out, err := r.Compile(context.Background(), domain.DialectVerilog, "module "+unit+"; endmodule", unit)
			if err != nil || !out.Success {
				errs <- unit + ": " + out.Stderr
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for e := range errs {
		t.Errorf("concurrent compile failed: %s", e)
	}
	assertEmptyDir(t, root)
}

func TestCompile_InvalidUnitNameSanitized(t *testing.T) {
	r := New(Config{IverilogPath: fakeTool(t, "iverilog", iverilogOK), WorkRoot: t.TempDir()})

	out, err := r.Compile(context.Background(), domain.DialectVerilog, "module m; endmodule", "../../etc/passwd")
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if len(out.Artifacts) != 1 || out.Artifacts[0].Name != "design.out" {
		t.Errorf("Artifacts = %v, want [design.out]", out.Artifacts)
	}
}

func TestAvailability(t *testing.T) {
	r := New(Config{
		GHDLPath:     fakeTool(t, "ghdl", "exit 0\n"),
		IverilogPath: "iverilog-not-installed-anywhere",
	})

	got := r.Availability()
	if len(got) != 2 {
		t.Fatalf("Availability() returned %d entries, want 2", len(got))
	}
	if !got[0].Available || got[0].Dialect != domain.DialectVHDL {
		t.Errorf("vhdl toolchain = %+v, want available", got[0])
	}
	if got[1].Available {
		t.Errorf("verilog toolchain = %+v, want unavailable", got[1])
	}
}
