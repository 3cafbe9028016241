package factory

import (
	"fmt"

	"orchestrator/pkg/config"
	"orchestrator/pkg/logx"
	"orchestrator/pkg/providers"
	"orchestrator/pkg/providers/anthropiclike"
	"orchestrator/pkg/providers/googlelike"
	"orchestrator/pkg/providers/hflike"
	"orchestrator/pkg/providers/ollamalike"
	"orchestrator/pkg/providers/openailike"
	"orchestrator/pkg/providers/openrouterlike"
)

// New builds the Client implementation matching cfg.ClientKind, wiring in
// the resolved API secret and model. Construction is an explicit switch
// rather than any kind of dynamic lookup; the compiler does not check that
// every ClientKind has a case, and a kind with no case returns an error.
func New(cfg config.ProviderConfig, model, secret string, log *logx.Logger) (providers.Client, error) {
	switch cfg.ClientKind {
	case config.ClientKindOpenAILike:
		return openailike.New(secret, model, cfg.Extras.APIBase), nil
	case config.ClientKindAnthropicLike:
		return anthropiclike.New(secret, model, cfg.Extras.APIBase, cfg.Extras.APIVersion), nil
	case config.ClientKindGoogleLike:
		return googlelike.New(secret, model), nil
	case config.ClientKindHuggingFace:
		return hflike.New(secret, model, log), nil
	case config.ClientKindOllamaLike:
		return ollamalike.New(cfg.Extras.APIBase, model), nil
	case config.ClientKindOpenRouterLike:
		return openrouterlike.New(secret, model, cfg.Extras.APIBase, cfg.Extras.HTTPReferer, cfg.Extras.XTitle, log), nil
	default:
		return nil, fmt.Errorf("providers: unrecognized client_kind %q for provider %q", cfg.ClientKind, cfg.ID)
	}
}
