package provider

import (
	"sort"
	"strings"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
)

// Factory builds an adapter for one backend kind.
type Factory func(cfg domain.ProviderConfig, opts ...Option) Provider

type registration struct {
	factory Factory
	aliases []string
}

// Registry maps kind strings (case-insensitive, aliases included) to adapter
// factories. The set of kinds is closed: it is fixed at construction.
type Registry struct {
	entries map[domain.ProviderKind]registration
	aliases map[string]domain.ProviderKind
	perKind map[domain.ProviderKind][]Option
	common  []Option
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithAdapterOptions applies opts to every adapter the registry builds.
func WithAdapterOptions(opts ...Option) RegistryOption {
	return func(r *Registry) {
		r.common = append(r.common, opts...)
	}
}

// WithKindOptions applies opts only to adapters of kind.
func WithKindOptions(kind domain.ProviderKind, opts ...Option) RegistryOption {
	return func(r *Registry) {
		r.perKind[kind] = append(r.perKind[kind], opts...)
	}
}

// NewRegistry returns a registry holding the three supported backends.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		entries: make(map[domain.ProviderKind]registration),
		aliases: make(map[string]domain.ProviderKind),
		perKind: make(map[domain.ProviderKind][]Option),
	}

	r.register(domain.KindAzureOpenAI, func(cfg domain.ProviderConfig, o ...Option) Provider {
		return NewAzureOpenAIAdapter(cfg, o...)
	}, "azure")
	r.register(domain.KindGemini, func(cfg domain.ProviderConfig, o ...Option) Provider {
		return NewGeminiAdapter(cfg, o...)
	}, "google_gemini", "google")
	r.register(domain.KindOpenAI, func(cfg domain.ProviderConfig, o ...Option) Provider {
		return NewOpenAIAdapter(cfg, o...)
	}, "gpt")

	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) register(kind domain.ProviderKind, f Factory, aliases ...string) {
	r.entries[kind] = registration{factory: f, aliases: aliases}
	r.aliases[string(kind)] = kind
	for _, a := range aliases {
		r.aliases[a] = kind
	}
}

// Resolve maps a kind string or alias onto its canonical kind.
func (r *Registry) Resolve(kind string) (domain.ProviderKind, error) {
	k, ok := r.aliases[strings.ToLower(strings.TrimSpace(kind))]
	if !ok {
		return "", &UnsupportedProviderError{Kind: kind, Valid: r.kindNames()}
	}
	return k, nil
}

// New resolves cfg.Kind and builds the adapter. No network I/O happens here.
func (r *Registry) New(cfg domain.ProviderConfig) (Provider, error) {
	kind, err := r.Resolve(cfg.Kind)
	if err != nil {
		return nil, err
	}
	opts := append(append([]Option{}, r.common...), r.perKind[kind]...)
	return r.entries[kind].factory(cfg, opts...), nil
}

// Kinds returns the canonical kinds in sorted order.
func (r *Registry) Kinds() []domain.ProviderKind {
	kinds := make([]domain.ProviderKind, 0, len(r.entries))
	for k := range r.entries {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (r *Registry) kindNames() []string {
	kinds := r.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return names
}

// Aliases returns the alternative names accepted for kind.
func (r *Registry) Aliases(kind domain.ProviderKind) []string {
	return append([]string(nil), r.entries[kind].aliases...)
}

// Describe returns the metadata of the backend behind kind.
func (r *Registry) Describe(kind string) (Description, error) {
	p, err := r.New(domain.ProviderConfig{Kind: kind})
	if err != nil {
		return Description{}, err
	}
	d := p.Describe()
	d.Aliases = r.Aliases(d.Kind)
	return d, nil
}

// DescribeAll returns metadata for every backend, sorted by kind.
func (r *Registry) DescribeAll() []Description {
	out := make([]Description, 0, len(r.entries))
	for _, k := range r.Kinds() {
		d, _ := r.Describe(string(k))
		out = append(out, d)
	}
	return out
}

// Template is a placeholder configuration a caller can fill in.
type Template struct {
	ProviderType    domain.ProviderKind `json:"provider_type" yaml:"provider_type"`
	Description     string              `json:"description" yaml:"description"`
	RequiredConfig  map[string]string   `json:"required_config" yaml:"required_config"`
	OptionalConfig  map[string]string   `json:"optional_config" yaml:"optional_config"`
	SupportedModels []string            `json:"supported_models" yaml:"supported_models"`
}

// Template returns a config template for kind.
func (r *Registry) Template(kind string) (Template, error) {
	d, err := r.Describe(kind)
	if err != nil {
		return Template{}, err
	}
	t := Template{
		ProviderType:    d.Kind,
		Description:     d.Description,
		RequiredConfig:  make(map[string]string, len(d.RequiredFields)),
		OptionalConfig:  make(map[string]string, len(d.OptionalFields)),
		SupportedModels: d.SupportedModels,
	}
	for _, f := range d.RequiredFields {
		t.RequiredConfig[f] = "<" + f + ">"
	}
	for _, f := range d.OptionalFields {
		t.OptionalConfig[f] = optionalPlaceholder(f, d)
	}
	return t, nil
}

func optionalPlaceholder(field string, d Description) string {
	switch field {
	case "temperature":
		return "0.7"
	case "max_tokens":
		return "2000"
	case "top_p":
		return "1.0"
	case "model_name", "deployment_name":
		return d.DefaultModel
	default:
		return "<" + field + ">"
	}
}
