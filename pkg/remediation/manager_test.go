package remediation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"orchestrator/pkg/agentmgr"
	"orchestrator/pkg/cmdexec"
	"orchestrator/pkg/config"
	"orchestrator/pkg/contextwin"
	"orchestrator/pkg/credstore"
	"orchestrator/pkg/erroranalysis"
	"orchestrator/pkg/logx"
	"orchestrator/pkg/sandbox"
)

func newTestManager(t *testing.T, chatResponse string) (*Manager, *sandbox.FS) {
	t.Helper()
	root := t.TempDir()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body := map[string]any{
			"id": "chatcmpl-1", "object": "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": chatResponse}}},
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)

	cfg := config.Defaults()
	cfg.Providers = []config.ProviderConfig{{
		ID: "p1", DisplayName: "Test", KeyID: "p1-key",
		ClientKind: config.ClientKindOpenAILike,
		Extras:     config.ClientExtras{APIBase: server.URL},
	}}
	cfg.MinCallInterval = 0
	cfg.NetRetries = 1
	cfg.MaxOuterIterations = 2

	creds := credstore.NewMemStore()
	if err := creds.Put(context.Background(), "p1-key", "sk-test"); err != nil {
		t.Fatalf("seeding credential: %v", err)
	}

	log := logx.New("test")
	fs, err := sandbox.New(root, log)
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	exec, err := cmdexec.New(root, cmdexec.DefaultAllowlist(), nil, 5*time.Second, log)
	if err != nil {
		t.Fatalf("cmdexec.New: %v", err)
	}
	agents := agentmgr.New(cfg, creds, nil, log, nil)
	if err := agents.Reinitialize(context.Background(), "p1", "gpt-4o-mini"); err != nil {
		t.Fatalf("Reinitialize: %v", err)
	}
	ctxwin := contextwin.New(fs, agents, cfg.MaxContextSize, cfg.HistorySummaryThreshold, log)

	mgr := New(agents, ctxwin, fs, exec, StrategyConfig{AllowFixLogic: true}, cfg.NetRetries, cfg.MaxOuterIterations, log)
	return mgr, fs
}

func TestManagerRunAppliesPatchAndVerifies(t *testing.T) {
	reply := `<file_content path="calculator/views.py"><![CDATA[def view(): return 1]]></file_content>`
	mgr, fs := newTestManager(t, reply)

	errs := []erroranalysis.ErrorRecord{
		{
			Kind:                erroranalysis.KindSyntaxError,
			Summary:             "SyntaxError: invalid syntax",
			FilePath:            "calculator/views.py",
			RawMessage:          "err",
			CommandThatProduced: "echo verified",
		},
	}

	outcome := mgr.Run(context.Background(), errs, nil)
	if !outcome.Success {
		t.Fatalf("expected the fix/verify loop to succeed, got %+v", outcome)
	}

	content, err := fs.Read("calculator/views.py")
	if err != nil {
		t.Fatalf("expected the patched file to persist, got error: %v", err)
	}
	if content != "def view(): return 1" {
		t.Errorf("expected the applied file content, got %q", content)
	}
}

func TestManagerRunFailsWhenNoStrategyOrFallbackApplies(t *testing.T) {
	mgr, _ := newTestManager(t, "")

	errs := []erroranalysis.ErrorRecord{
		{Kind: erroranalysis.KindCommandError, Summary: "exit status 127", RawMessage: "err"},
	}

	outcome := mgr.Run(context.Background(), errs, nil)
	if outcome.Success {
		t.Fatalf("expected failure: a fileless error has no strategy or fallback home, got %+v", outcome)
	}
	if len(outcome.LastErrors) != 1 {
		t.Errorf("expected the unhandled error surfaced on LastErrors, got %+v", outcome.LastErrors)
	}
}
