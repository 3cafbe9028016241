// Package config loads provider configuration and engine tunables for the
// agent orchestration engine.
package config

import "fmt"

// ClientKind identifies which provider-client implementation backs a ProviderConfig.
type ClientKind string

// Recognized client kinds.
const (
	ClientKindOpenRouterLike ClientKind = "openrouter-like"
	ClientKindOpenAILike     ClientKind = "openai-like"
	ClientKindAnthropicLike  ClientKind = "anthropic-like"
	ClientKindGoogleLike     ClientKind = "google-like"
	ClientKindHuggingFace    ClientKind = "huggingface-like"
	ClientKindOllamaLike     ClientKind = "ollama-like"
)

func (k ClientKind) valid() bool {
	switch k {
	case ClientKindOpenRouterLike, ClientKindOpenAILike, ClientKindAnthropicLike,
		ClientKindGoogleLike, ClientKindHuggingFace, ClientKindOllamaLike:
		return true
	default:
		return false
	}
}

// ClientExtras carries client-kind-specific, optional knobs. ModelPrefix is
// config-only bookkeeping and is never forwarded to a provider client.
type ClientExtras struct {
	APIBase     string `yaml:"api_base,omitempty"`
	ModelPrefix string `yaml:"model_prefix,omitempty"`
	HTTPReferer string `yaml:"http_referer,omitempty"`
	XTitle      string `yaml:"x_title,omitempty"`
	APIVersion  string `yaml:"api_version,omitempty"`
}

// ProviderConfig is a single entry of the provider configuration file.
// Loaded once at startup; never mutated afterward.
type ProviderConfig struct {
	ID          string       `yaml:"id"`
	DisplayName string       `yaml:"display_name"`
	KeyID       string       `yaml:"key_identifier"`
	ClientKind  ClientKind   `yaml:"client_kind"`
	Extras      ClientExtras `yaml:"client_extras,omitempty"`
}

// Validate checks the required fields of a ProviderConfig entry.
func (p *ProviderConfig) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("provider config: id cannot be empty")
	}
	if p.KeyID == "" {
		return fmt.Errorf("provider config %s: key_identifier cannot be empty", p.ID)
	}
	if !p.ClientKind.valid() {
		return fmt.Errorf("provider config %s: unknown client_kind %q", p.ID, p.ClientKind)
	}
	return nil
}

// ProvidersFile is the top-level shape of the on-disk provider configuration.
type ProvidersFile struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// Config is the engine-wide runtime configuration: provider definitions plus
// the engine's operational tunables.
//
//nolint:govet // logical field grouping preferred over byte packing
type Config struct {
	Providers []ProviderConfig

	// MinCallInterval is the minimum delay between LLM calls, in seconds
	// (default 30).
	MinCallInterval int

	// MaxRetries is the default provider retry budget.
	MaxRetries int

	// MaxContextSize bounds the Context Manager's assembled window, in bytes.
	MaxContextSize int

	// HistorySummaryThreshold triggers work-history summarization.
	HistorySummaryThreshold int

	// MaxMessages bounds in-flight chat history before pruning.
	MaxMessages int

	// MaxOuterIterations bounds the Remediation Manager's outer loop.
	MaxOuterIterations int

	// NetRetries is N_net, the Remediation Manager's per-task LLM retry budget.
	NetRetries int

	// CommandTimeoutSeconds is the Command Executor's hard per-process timeout.
	CommandTimeoutSeconds int

	// AllowFixLogic gates the FixLogic strategy/task kind.
	AllowFixLogic bool
}

// Defaults returns a Config populated with the stock default values.
func Defaults() *Config {
	return &Config{
		MinCallInterval:         30,
		MaxRetries:              3,
		MaxContextSize:          32000,
		HistorySummaryThreshold: 3,
		MaxMessages:             50,
		MaxOuterIterations:      3,
		NetRetries:              3,
		CommandTimeoutSeconds:   300,
		AllowFixLogic:           true,
	}
}

// ProviderByID returns the ProviderConfig with the given ID, if configured.
func (c *Config) ProviderByID(id string) (ProviderConfig, bool) {
	for i := range c.Providers {
		if c.Providers[i].ID == id {
			return c.Providers[i], true
		}
	}
	return ProviderConfig{}, false
}
