package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
	"github.com/noejunior792/hdl-ai-proteus/internal/events"
	"github.com/noejunior792/hdl-ai-proteus/internal/exporter"
	"github.com/noejunior792/hdl-ai-proteus/internal/provider"
	"github.com/noejunior792/hdl-ai-proteus/internal/storage"
)

const andGateVHDL = "```vhdl\n" + `library ieee;
use ieee.std_logic_1164.all;

entity and_gate is
  port (a, b : in std_logic; y : out std_logic);
end entity;

architecture rtl of and_gate is
begin
  y <= a and b;
end architecture;
` + "```\n"

// fakeProvider answers Generate from its factory's script of errors, then succeeds.
type fakeProvider struct {
	kind  domain.ProviderKind
	key   string
	text  string
	owner *fakeFactory
}

func (p *fakeProvider) Kind() domain.ProviderKind { return p.kind }

func (p *fakeProvider) ValidateConfig() error {
	if p.key == "" {
		return &provider.ConfigError{Provider: p.kind, Field: "api_key", Reason: "is required"}
	}
	return nil
}

func (p *fakeProvider) Describe() provider.Description {
	return provider.Description{Kind: p.kind}
}

func (p *fakeProvider) TestConnection(context.Context) (provider.ConnectionResult, error) {
	p.owner.mu.Lock()
	defer p.owner.mu.Unlock()
	p.owner.checks++
	return provider.ConnectionResult{Provider: p.kind}, nil
}

func (p *fakeProvider) Generate(_ context.Context, _ string, _ domain.Tuning) (domain.RawGenerationResult, error) {
	p.owner.mu.Lock()
	defer p.owner.mu.Unlock()
	p.owner.calls = append(p.owner.calls, p.key)
	if err, ok := p.owner.failFor[p.key]; ok {
		return domain.RawGenerationResult{}, err
	}
	if len(p.owner.failures) > 0 {
		err := p.owner.failures[0]
		p.owner.failures = p.owner.failures[1:]
		return domain.RawGenerationResult{}, err
	}
	return domain.RawGenerationResult{
		Provider: p.kind,
		Model:    "fake-model",
		Text:     p.text,
		Usage:    &domain.Usage{PromptTokens: 10, CompletionTokens: 40, TotalTokens: 50},
	}, nil
}

type fakeFactory struct {
	mu       sync.Mutex
	text     string
	failures []error
	failFor  map[string]error
	calls    []string
	checks   int
	built    int
}

func (f *fakeFactory) Resolve(kind string) (domain.ProviderKind, error) {
	switch kind {
	case "openai", "gpt":
		return domain.KindOpenAI, nil
	case "gemini":
		return domain.KindGemini, nil
	}
	return "", &provider.UnsupportedProviderError{Kind: kind, Valid: []string{"gemini", "openai"}}
}

func (f *fakeFactory) New(cfg domain.ProviderConfig) (provider.Provider, error) {
	kind, err := f.Resolve(cfg.Kind)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.built++
	f.mu.Unlock()
	return &fakeProvider{kind: kind, key: cfg.APIKey, text: f.text, owner: f}, nil
}

func (f *fakeFactory) generateCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeCompiler struct {
	outcome domain.CompilationOutcome
	calls   int
}

func (c *fakeCompiler) Compile(context.Context, domain.Dialect, string, string) (domain.CompilationOutcome, error) {
	c.calls++
	return c.outcome, nil
}

func succeeded() domain.CompilationOutcome {
	return domain.CompilationOutcome{
		State:     domain.StateSucceeded,
		Success:   true,
		Attempted: true,
		Toolchain: "ghdl",
		Artifacts: []domain.Artifact{{Name: "work-obj93.cf", Data: []byte("cf")}},
	}
}

func request(kind, key string) domain.GenerationRequest {
	return domain.GenerationRequest{
		Prompt:      "Design a two input AND gate",
		CircuitName: "and_gate",
		Provider:    domain.ProviderConfig{Kind: kind, APIKey: key},
	}
}

func fixedClock() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

func newTestOrchestrator(f *fakeFactory, c *fakeCompiler, opts ...Option) *Orchestrator {
	base := []Option{WithRetry(3, 0), WithConnectionCheck(false)}
	return New(f, c, exporter.New(exporter.WithClock(fixedClock)), append(base, opts...)...)
}

func zipNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestRun_Success(t *testing.T) {
	f := &fakeFactory{text: andGateVHDL}
	c := &fakeCompiler{outcome: succeeded()}
	rec := &events.Recorder{}
	o := newTestOrchestrator(f, c, WithEvents(rec), WithMetrics(NewMetrics(prometheus.NewRegistry())))

	res, err := o.Run(t.Context(), request("gpt", "sk-test"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.Metadata.HDLLanguage != domain.DialectVHDL {
		t.Errorf("HDLLanguage = %v, want %v", res.Metadata.HDLLanguage, domain.DialectVHDL)
	}
	if res.Metadata.ProviderUsed != string(domain.KindOpenAI) {
		t.Errorf("ProviderUsed = %q, want %q", res.Metadata.ProviderUsed, domain.KindOpenAI)
	}
	if !res.Metadata.CompilationSuccess {
		t.Error("CompilationSuccess = false, want true")
	}
	if res.Metadata.FileName != "and_gate.pdsprj" {
		t.Errorf("FileName = %q, want and_gate.pdsprj", res.Metadata.FileName)
	}
	if res.Metadata.FileSize != len(res.Archive.Data) {
		t.Errorf("FileSize = %d, want %d", res.Metadata.FileSize, len(res.Archive.Data))
	}
	if res.Metadata.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Metadata.Attempts)
	}
	if res.Metadata.RequestID == "" {
		t.Error("RequestID is empty")
	}

	names := zipNames(t, res.Archive.Data)
	want := []string{"and_gate.vhd", exporter.ManifestName, "artifacts/work-obj93.cf", exporter.ReadmeName}
	if len(names) != len(want) {
		t.Fatalf("entries = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("entry[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	evs := rec.Events()
	if len(evs) != 1 {
		t.Fatalf("events = %d, want 1", len(evs))
	}
	if !evs[0].Success || evs[0].Dialect != "vhdl" || evs[0].CompilationState != string(domain.StateSucceeded) {
		t.Errorf("event = %+v", evs[0])
	}
	if evs[0].RequestID != res.Metadata.RequestID {
		t.Errorf("event RequestID = %q, want %q", evs[0].RequestID, res.Metadata.RequestID)
	}
}

func TestRun_CompilationFailureStillExports(t *testing.T) {
	tests := []struct {
		name    string
		outcome domain.CompilationOutcome
	}{
		{
			name: "failed",
			outcome: domain.CompilationOutcome{
				State: domain.StateFailed, Attempted: true, Toolchain: "ghdl",
				FailedStep: "analyze", Stderr: "and_gate.vhd:3:1: syntax error",
				Artifacts: []domain.Artifact{{Name: "partial.o", Data: []byte("x")}},
			},
		},
		{
			name:    "toolchain missing",
			outcome: domain.CompilationOutcome{State: domain.StateToolchainMissing, Toolchain: "ghdl"},
		},
		{
			name:    "timed out",
			outcome: domain.CompilationOutcome{State: domain.StateTimedOut, Attempted: true, Toolchain: "ghdl"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFactory{text: andGateVHDL}
			o := newTestOrchestrator(f, &fakeCompiler{outcome: tt.outcome})

			res, err := o.Run(t.Context(), request("openai", "sk-test"))
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if res.Metadata.CompilationSuccess {
				t.Error("CompilationSuccess = true, want false")
			}
			if res.Metadata.CompilationState != tt.outcome.State {
				t.Errorf("CompilationState = %v, want %v", res.Metadata.CompilationState, tt.outcome.State)
			}
			for _, n := range zipNames(t, res.Archive.Data) {
				if n == "artifacts/partial.o" {
					t.Error("artifacts of a failed compilation were exported")
				}
			}
		})
	}
}

func TestRun_AbortsWithoutArchive(t *testing.T) {
	tests := []struct {
		name         string
		req          domain.GenerationRequest
		text         string
		failures     []error
		wantStage    string
		wantCode     string
		wantGenCalls int
		wantCompile  bool
	}{
		{
			name:      "invalid circuit name",
			req:       domain.GenerationRequest{Prompt: "Design a two input AND gate", CircuitName: "1gate", Provider: domain.ProviderConfig{Kind: "openai", APIKey: "k"}},
			wantStage: StageValidate,
			wantCode:  CodeBadRequest,
		},
		{
			name:      "unsupported provider",
			req:       request("claude", "k"),
			wantStage: StageProvider,
			wantCode:  CodeUnsupportedProvider,
		},
		{
			name:      "missing key",
			req:       request("openai", ""),
			wantStage: StageProvider,
			wantCode:  CodeProviderConfig,
		},
		{
			name:         "auth error is not retried",
			req:          request("openai", "sk-bad"),
			failures:     []error{&provider.AuthError{Provider: domain.KindOpenAI, StatusCode: 401}},
			wantStage:    StageGenerate,
			wantCode:     CodeProviderAuth,
			wantGenCalls: 1,
		},
		{
			name:         "response error is not retried",
			req:          request("openai", "sk-test"),
			failures:     []error{&provider.ResponseError{Provider: domain.KindOpenAI, Message: "empty"}},
			wantStage:    StageGenerate,
			wantCode:     CodeProviderResponse,
			wantGenCalls: 1,
		},
		{
			name: "network errors exhaust retries",
			req:  request("openai", "sk-test"),
			failures: []error{
				&provider.NetworkError{Provider: domain.KindOpenAI, StatusCode: 503},
				&provider.NetworkError{Provider: domain.KindOpenAI, StatusCode: 503},
				&provider.NetworkError{Provider: domain.KindOpenAI, StatusCode: 503},
			},
			wantStage:    StageGenerate,
			wantCode:     CodeProviderNetwork,
			wantGenCalls: 3,
		},
		{
			name:         "no code in response",
			req:          request("openai", "sk-test"),
			text:         "I cannot help with that.",
			wantStage:    StageAnalyze,
			wantCode:     CodeAnalysisFailed,
			wantGenCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := tt.text
			if text == "" {
				text = andGateVHDL
			}
			f := &fakeFactory{text: text, failures: tt.failures}
			c := &fakeCompiler{outcome: succeeded()}
			rec := &events.Recorder{}
			o := newTestOrchestrator(f, c, WithEvents(rec))

			res, err := o.Run(t.Context(), tt.req)
			if err == nil {
				t.Fatalf("Run() error = nil, result = %+v", res)
			}
			if res != nil {
				t.Error("Run() returned a result alongside an error")
			}

			var se *StageError
			if !errors.As(err, &se) {
				t.Fatalf("error %T is not a *StageError", err)
			}
			if se.Stage != tt.wantStage {
				t.Errorf("Stage = %q, want %q", se.Stage, tt.wantStage)
			}
			if got := ErrorCode(err); got != tt.wantCode {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.wantCode)
			}
			if got := len(f.generateCalls()); got != tt.wantGenCalls {
				t.Errorf("Generate calls = %d, want %d", got, tt.wantGenCalls)
			}
			if (c.calls > 0) != tt.wantCompile {
				t.Errorf("compiler called = %v, want %v", c.calls > 0, tt.wantCompile)
			}

			evs := rec.Events()
			if len(evs) != 1 {
				t.Fatalf("events = %d, want 1", len(evs))
			}
			if evs[0].Success || evs[0].ErrorCode != tt.wantCode {
				t.Errorf("event = %+v, want failure with %s", evs[0], tt.wantCode)
			}
		})
	}
}

func TestRun_RetriesTransientErrors(t *testing.T) {
	f := &fakeFactory{
		text: andGateVHDL,
		failures: []error{
			&provider.NetworkError{Provider: domain.KindOpenAI, Timeout: true},
			&provider.QuotaError{Provider: domain.KindOpenAI, StatusCode: 429, RetryAfter: time.Millisecond},
		},
	}
	o := newTestOrchestrator(f, &fakeCompiler{outcome: succeeded()})

	res, err := o.Run(t.Context(), request("openai", "sk-test"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Metadata.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Metadata.Attempts)
	}
}

func TestRun_RotatesPooledCredentials(t *testing.T) {
	f := &fakeFactory{
		text:    andGateVHDL,
		failFor: map[string]error{"sk-revoked": &provider.AuthError{Provider: domain.KindOpenAI, StatusCode: 401}},
	}
	ring := domain.NewCredentialRing([]string{"sk-revoked", "sk-good"}, time.Hour)
	o := newTestOrchestrator(f, &fakeCompiler{outcome: succeeded()}, WithCredentials(domain.KindOpenAI, ring))

	if _, err := o.Run(t.Context(), request("openai", "")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	calls := f.generateCalls()
	if len(calls) != 2 || calls[0] != "sk-revoked" || calls[1] != "sk-good" {
		t.Errorf("keys used = %v, want [sk-revoked sk-good]", calls)
	}
	if !ring.IsParked("sk-revoked") {
		t.Error("revoked key was not parked")
	}
}

func TestRun_PooledCredentialsExhausted(t *testing.T) {
	f := &fakeFactory{
		text:    andGateVHDL,
		failFor: map[string]error{"sk-only": &provider.AuthError{Provider: domain.KindOpenAI, StatusCode: 403}},
	}
	ring := domain.NewCredentialRing([]string{"sk-only"}, time.Hour)
	o := newTestOrchestrator(f, &fakeCompiler{outcome: succeeded()}, WithCredentials(domain.KindOpenAI, ring))

	_, err := o.Run(t.Context(), request("openai", ""))
	if got := ErrorCode(err); got != CodeProviderAuth {
		t.Errorf("ErrorCode() = %q, want %q", got, CodeProviderAuth)
	}
	if ring.Active() != 0 {
		t.Errorf("Active() = %d, want 0", ring.Active())
	}
}

func TestRun_CallerKeyBypassesPool(t *testing.T) {
	f := &fakeFactory{text: andGateVHDL}
	ring := domain.NewCredentialRing([]string{"sk-pooled"}, time.Hour)
	o := newTestOrchestrator(f, &fakeCompiler{outcome: succeeded()}, WithCredentials(domain.KindOpenAI, ring))

	if _, err := o.Run(t.Context(), request("openai", "sk-caller")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if calls := f.generateCalls(); len(calls) != 1 || calls[0] != "sk-caller" {
		t.Errorf("keys used = %v, want [sk-caller]", calls)
	}
}

func TestRun_ConnectionCheck(t *testing.T) {
	f := &fakeFactory{text: andGateVHDL}
	o := New(f, &fakeCompiler{outcome: succeeded()}, exporter.New(), WithRetry(1, 0))

	if _, err := o.Run(t.Context(), request("gemini", "AIza-test")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if f.checks != 1 {
		t.Errorf("connection checks = %d, want 1", f.checks)
	}
}

func TestRun_Cancelled(t *testing.T) {
	f := &fakeFactory{
		text:     andGateVHDL,
		failures: []error{&provider.NetworkError{Provider: domain.KindOpenAI, StatusCode: 502}},
	}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	o := newTestOrchestrator(f, &fakeCompiler{outcome: succeeded()}, WithRetry(3, time.Hour))

	_, err := o.Run(ctx, request("openai", "sk-test"))
	if err == nil {
		t.Fatal("Run() error = nil, want cancellation")
	}
	if got := len(f.generateCalls()); got != 1 {
		t.Errorf("Generate calls = %d, want 1", got)
	}
}

func TestRun_RetainsArchive(t *testing.T) {
	target := storage.NewMemoryTarget("memory")
	store := storage.NewArchiveStore(target, exporter.DefaultExtension, nil)
	f := &fakeFactory{text: andGateVHDL}
	o := newTestOrchestrator(f, &fakeCompiler{outcome: succeeded()}, WithArchiveSaver(store))

	res, err := o.Run(t.Context(), request("openai", "sk-test"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Metadata.ArchiveID == "" {
		t.Fatal("ArchiveID is empty")
	}
	data, err := store.Load(t.Context(), res.Metadata.ArchiveID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !bytes.Equal(data, res.Archive.Data) {
		t.Error("retained archive differs from the returned one")
	}
}

type failingSaver struct{}

func (failingSaver) Save(context.Context, domain.ExportedArchive) (string, error) {
	return "", errors.New("bucket unavailable")
}

func TestRun_RetentionFailureIsNotFatal(t *testing.T) {
	f := &fakeFactory{text: andGateVHDL}
	o := newTestOrchestrator(f, &fakeCompiler{outcome: succeeded()}, WithArchiveSaver(failingSaver{}))

	res, err := o.Run(t.Context(), request("openai", "sk-test"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Metadata.ArchiveID != "" {
		t.Errorf("ArchiveID = %q, want empty", res.Metadata.ArchiveID)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&domain.InvalidRequestError{Field: "prompt"}, CodeBadRequest},
		{&StageError{Stage: StageProvider, Err: domain.ErrNoCredentials}, CodeProviderConfig},
		{&StageError{Stage: StageGenerate, Err: &provider.QuotaError{}}, CodeProviderQuota},
		{&StageError{Stage: StageExport, Err: &exporter.ExportFailedError{Op: "write", Err: errors.New("x")}}, CodeExportFailed},
		{context.Canceled, CodeCancelled},
		{errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.want {
			t.Errorf("ErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
