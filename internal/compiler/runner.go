// Package compiler validates generated HDL with external toolchains
// (GHDL for VHDL, Icarus Verilog for Verilog).
package compiler

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
)

// Step names recorded in CompilationOutcome.FailedStep.
const (
	StepSetup     = "setup"
	StepAnalyze   = "analyze"
	StepElaborate = "elaborate"
	StepCompile   = "compile"
)

var unitPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds toolchain paths and limits.
type Config struct {
	GHDLPath         string
	IverilogPath     string
	WorkRoot         string
	Timeout          time.Duration
	MaxConcurrent    int64
	VHDLFlags        []string
	VerilogFlags     []string
	ArtifactPatterns []string
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		GHDLPath:         "ghdl",
		IverilogPath:     "iverilog",
		WorkRoot:         os.TempDir(),
		Timeout:          60 * time.Second,
		MaxConcurrent:    4,
		VHDLFlags:        []string{"-fsynopsys"},
		ArtifactPatterns: []string{"*.out", "*.cf", "*.o", "*.vvp"},
	}
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSemaphore shares a concurrency limit with other components.
func WithSemaphore(sem *semaphore.Weighted) Option {
	return func(r *Runner) {
		if sem != nil {
			r.sem = sem
		}
	}
}

// Runner executes compile attempts. Each call works in its own directory
// under Config.WorkRoot, so concurrent calls never share files.
type Runner struct {
	cfg    Config
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// New creates a Runner. Zero fields in cfg fall back to DefaultConfig.
func New(cfg Config, opts ...Option) *Runner {
	def := DefaultConfig()
	if cfg.GHDLPath == "" {
		cfg.GHDLPath = def.GHDLPath
	}
	if cfg.IverilogPath == "" {
		cfg.IverilogPath = def.IverilogPath
	}
	if cfg.WorkRoot == "" {
		cfg.WorkRoot = def.WorkRoot
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.ArtifactPatterns == nil {
		cfg.ArtifactPatterns = def.ArtifactPatterns
	}

	r := &Runner{
		cfg:    cfg,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrent),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// step is one toolchain invocation.
type step struct {
	name string
	args []string
}

// Compile validates source with the dialect's toolchain.
//
// Toolchain failures, timeouts and a missing toolchain are reported in the
// outcome, not as errors. The error is non-nil only for an unsupported
// dialect or when ctx is cancelled by the caller.
func (r *Runner) Compile(ctx context.Context, dialect domain.Dialect, source, unit string) (out domain.CompilationOutcome, err error) {
	out.State = domain.StatePending
	start := time.Now()
	defer func() {
		out.Duration = time.Since(start)
		r.logger.Debug("compilation finished",
			"dialect", dialect,
			"unit", unit,
			"state", out.State,
			"duration", out.Duration,
		)
	}()

	tool, err := r.toolFor(dialect)
	if err != nil {
		return out, err
	}
	out.Toolchain = filepath.Base(tool)

	path, lookErr := exec.LookPath(tool)
	if lookErr != nil {
		out.State = domain.StateToolchainMissing
		r.logger.Warn("toolchain not found, skipping compilation",
			"toolchain", tool,
			"dialect", dialect,
		)
		return out, nil
	}
	out.State = domain.StateToolchainResolved

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return out, err
	}
	defer r.sem.Release(1)

	dir := filepath.Join(r.cfg.WorkRoot, "proteus-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return r.setupFailed(out, errors.Wrap(err, "create work directory")), nil
	}
	defer os.RemoveAll(dir)

	if !unitPattern.MatchString(unit) {
		unit = "design"
	}
	file := unit + "." + dialect.Extension()
	if err := os.WriteFile(filepath.Join(dir, file), []byte(source), 0o600); err != nil {
		return r.setupFailed(out, errors.Wrapf(err, "write %s", file)), nil
	}

	tctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	out.State = domain.StateInvoked
	out.Attempted = true

	var stdout, stderr bytes.Buffer
	for _, s := range r.steps(dialect, dir, file, unit) {
		res := run(tctx, path, dir, s.args)

		switch {
		case res.err == nil:
			stdout.Write(res.stdout)
			stderr.Write(res.stderr)
			continue
		case ctx.Err() != nil:
			return out, ctx.Err()
		case errors.Is(tctx.Err(), context.DeadlineExceeded):
			out.State = domain.StateTimedOut
		default:
			out.State = domain.StateFailed
		}

		out.FailedStep = s.name
		out.Stdout = string(res.stdout)
		out.Stderr = string(res.stderr)
		if out.Stderr == "" {
			out.Stderr = errors.Wrapf(res.err, "%s %s", out.Toolchain, s.name).Error()
		}
		return out, nil
	}

	out.State = domain.StateSucceeded
	out.Success = true
	out.Stdout = stdout.String()
	out.Stderr = stderr.String()

	patterns := r.cfg.ArtifactPatterns
	if dialect == domain.DialectVHDL {
		// ghdl's gcc and llvm backends write the elaborated executable as <unit>.
		patterns = append(append([]string{}, patterns...), unit)
	}
	artifacts, err := collectArtifacts(dir, file, patterns)
	if err != nil {
		r.logger.Warn("artifact collection failed", "error", err)
	}
	out.Artifacts = artifacts
	return out, nil
}

func (r *Runner) setupFailed(out domain.CompilationOutcome, err error) domain.CompilationOutcome {
	out.State = domain.StateFailed
	out.Attempted = true
	out.FailedStep = StepSetup
	out.Stderr = err.Error()
	r.logger.Error("compilation setup failed", "error", err)
	return out
}

func (r *Runner) toolFor(dialect domain.Dialect) (string, error) {
	switch dialect {
	case domain.DialectVHDL:
		return r.cfg.GHDLPath, nil
	case domain.DialectVerilog:
		return r.cfg.IverilogPath, nil
	default:
		return "", errors.Errorf("no toolchain for dialect %q", dialect)
	}
}

// steps builds the invocation plan: GHDL analyzes then elaborates, Icarus
// compiles in one pass.
func (r *Runner) steps(dialect domain.Dialect, dir, file, unit string) []step {
	workdir := "--workdir=" + dir
	if dialect == domain.DialectVHDL {
		analyze := append([]string{"-a"}, r.cfg.VHDLFlags...)
		analyze = append(analyze, workdir, file)
		elaborate := append([]string{"-e"}, r.cfg.VHDLFlags...)
		elaborate = append(elaborate, workdir, unit)
		return []step{
			{name: StepAnalyze, args: analyze},
			{name: StepElaborate, args: elaborate},
		}
	}
	args := append([]string{}, r.cfg.VerilogFlags...)
	args = append(args, "-o", filepath.Join(dir, unit+".out"), file)
	return []step{{name: StepCompile, args: args}}
}

type result struct {
	stdout []byte
	stderr []byte
	err    error
}

func run(ctx context.Context, path, dir string, args []string) result {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second

	err := cmd.Run()
	return result{stdout: stdout.Bytes(), stderr: stderr.Bytes(), err: err}
}
