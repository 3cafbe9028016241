// Package agentmgr resolves a (provider_id, model_id) pair to a ready LLM
// client, mediates credential recovery through an injected UI callback, and
// enforces minimum inter-call pacing.
package agentmgr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"orchestrator/pkg/config"
	"orchestrator/pkg/credstore"
	"orchestrator/pkg/logx"
	"orchestrator/pkg/providers"
	"orchestrator/pkg/providers/factory"
	"orchestrator/pkg/uiface"
)

// Binding is the runtime association of (provider_id, model_id) to a live
// Client plus its pacing clock. After Reinitialize, the
// previous binding's client is discarded and unreachable.
type Binding struct {
	ProviderID   string
	ModelID      string
	Client       providers.Client
	LastCallTime time.Time
}

// Manager owns at most one binding at a time. It is constructed per engine
// run rather than held as a package singleton, so there is no hidden
// process-global client cache.
type Manager struct {
	cfg      *config.Config
	creds    credstore.Store
	prompter uiface.CredentialPrompter
	log      *logx.Logger
	metrics  *Metrics

	mu          sync.Mutex
	binding     *Binding
	minInterval time.Duration
}

// New creates a Manager. prompter may be nil if the host never expects a
// credential recovery dialog (tests, headless batch runs).
func New(cfg *config.Config, creds credstore.Store, prompter uiface.CredentialPrompter, log *logx.Logger, metrics *Metrics) *Manager {
	return &Manager{
		cfg:         cfg,
		creds:       creds,
		prompter:    prompter,
		log:         log,
		metrics:     metrics,
		minInterval: time.Duration(cfg.MinCallInterval) * time.Second,
	}
}

// Reinitialize rebuilds the client for (providerID, modelID) from config,
// discarding any prior binding. On an AuthFailed failure caused by an
// invalid-looking stored key, the key is deleted before the error is
// surfaced; a "user cancelled" failure leaves the stored key untouched.
func (m *Manager) Reinitialize(ctx context.Context, providerID, modelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	providerCfg, ok := m.cfg.ProviderByID(providerID)
	if !ok {
		return fmt.Errorf("agentmgr: no provider configured with id %q", providerID)
	}

	secret, found, err := m.creds.Get(ctx, providerCfg.KeyID)
	if err != nil {
		return fmt.Errorf("agentmgr: credential lookup for %q failed: %w", providerCfg.KeyID, err)
	}
	if !found {
		return providers.NewError(providers.ErrorKindAuthFailed, fmt.Sprintf("no stored credential for %q", providerCfg.KeyID))
	}

	client, err := factory.New(providerCfg, modelID, secret, m.log)
	if err != nil {
		if providers.Is(err, providers.ErrorKindAuthFailed) && !userCancelled(err) {
			if _, delErr := m.creds.Delete(ctx, providerCfg.KeyID); delErr != nil {
				m.log.Warn("agentmgr: failed to delete invalid credential %q: %v", providerCfg.KeyID, delErr)
			}
		}
		return fmt.Errorf("agentmgr: %w", err)
	}

	// Old binding becomes unreachable the instant this assignment completes
	//.
	m.binding = &Binding{ProviderID: providerID, ModelID: modelID, Client: client}
	return nil
}

// Invoke concatenates [system_msg] ++ history, enforces minimum inter-call
// pacing, and dispatches to the current binding's client. The pacing clock
// is updated before dispatch, so a failed call still consumes the slot — a
// failing provider should not be hammered faster than a healthy one.
func (m *Manager) Invoke(ctx context.Context, systemMsg string, history []providers.Message, temperature float64, maxOutputTokens *int) (providers.Message, error) {
	m.mu.Lock()
	if m.binding == nil {
		m.mu.Unlock()
		return providers.Message{}, fmt.Errorf("agentmgr: invoke called with no active binding")
	}

	if wait := m.minInterval - time.Since(m.binding.LastCallTime); wait > 0 {
		m.mu.Unlock()
		select {
		case <-ctx.Done():
			return providers.Message{}, ctx.Err()
		case <-time.After(wait):
		}
		m.mu.Lock()
	}

	m.binding.LastCallTime = time.Now()
	client := m.binding.Client
	providerID, modelID := m.binding.ProviderID, m.binding.ModelID
	m.mu.Unlock()

	messages := make([]providers.Message, 0, len(history)+1)
	if systemMsg != "" {
		messages = append(messages, providers.Message{Role: providers.RoleSystem, Content: systemMsg})
	}
	messages = append(messages, history...)

	start := time.Now()
	reply, err := client.Chat(ctx, messages, temperature, maxOutputTokens)
	if m.metrics != nil {
		m.metrics.ObserveInvoke(providerID, modelID, err == nil, time.Since(start))
	}
	return reply, err
}

// HandleAPIErrorAndReinitialize invokes the injected CredentialPrompter when
// a client reports AuthFailed. If a new key is supplied, it is stored and
// the binding rebuilt; if the operator asks to retry without a new key,
// resolved=true is returned with no rebuild; otherwise resolved=false.
func (m *Manager) HandleAPIErrorAndReinitialize(ctx context.Context, kind providers.ErrorKind, message string) (resolved bool, err error) {
	if m.prompter == nil {
		return false, nil
	}

	m.mu.Lock()
	binding := m.binding
	m.mu.Unlock()
	if binding == nil {
		return false, fmt.Errorf("agentmgr: no active binding to recover")
	}

	providerCfg, ok := m.cfg.ProviderByID(binding.ProviderID)
	if !ok {
		return false, fmt.Errorf("agentmgr: no provider configured with id %q", binding.ProviderID)
	}

	agentDesc := fmt.Sprintf("%s (%s)", providerCfg.DisplayName, binding.ModelID)
	newKey, retryNow := m.prompter.RequestCredentialUpdate(ctx, agentDesc, message, providerCfg.KeyID)

	switch {
	case newKey != "":
		if err := m.creds.Put(ctx, providerCfg.KeyID, newKey); err != nil {
			return false, fmt.Errorf("agentmgr: storing updated credential: %w", err)
		}
		if err := m.Reinitialize(ctx, binding.ProviderID, binding.ModelID); err != nil {
			return false, err
		}
		return true, nil
	case retryNow:
		return true, nil
	default:
		return false, nil
	}
}

// ClearAllStoredKeys deletes every configured provider's key from the
// credential store and discards the current binding. Delete is idempotent
//, so a key that never existed is not a failure; only a backend
// error causes this to return false.
func (m *Manager) ClearAllStoredKeys(ctx context.Context) (bool, error) {
	for _, p := range m.cfg.Providers {
		if _, err := m.creds.Delete(ctx, p.KeyID); err != nil {
			return false, fmt.Errorf("agentmgr: deleting %q: %w", p.KeyID, err)
		}
	}

	m.mu.Lock()
	m.binding = nil
	m.mu.Unlock()

	return true, nil
}

// userCancelled reports whether err represents the user explicitly declining
// a credential prompt rather than the stored key itself being invalid. Such
// failures must not trigger key deletion.
func userCancelled(err error) bool {
	var pe *providers.Error
	if !errors.As(err, &pe) {
		return false
	}
	return strings.Contains(strings.ToLower(pe.Message), "cancel")
}

// CurrentBinding returns the active binding, if any.
func (m *Manager) CurrentBinding() (Binding, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.binding == nil {
		return Binding{}, false
	}
	return *m.binding, true
}
