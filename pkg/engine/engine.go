// Package engine wires the engine's subsystems into one control flow:
// the Agent Manager resolves a client, the
// Context Manager assembles a prompt, a Provider Client call returns a
// plan, each task dispatches through the Sandboxed Filesystem or Command
// Executor, a nonzero exit feeds the Error Analyzer and Remediation
// Planner/Manager loop, and Memory persists the resulting state.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"orchestrator/pkg/agentmgr"
	"orchestrator/pkg/cmdexec"
	"orchestrator/pkg/config"
	"orchestrator/pkg/contextwin"
	"orchestrator/pkg/credstore"
	"orchestrator/pkg/erroranalysis"
	"orchestrator/pkg/logx"
	"orchestrator/pkg/providers"
	"orchestrator/pkg/remediation"
	"orchestrator/pkg/sandbox"
	"orchestrator/pkg/state"
	"orchestrator/pkg/uiface"
)

// stateDirName is the conventional subdirectory holding the engine's
// persisted project state document.
const stateDirName = ".agentrc"

// Engine is a single project's agent orchestration engine: a composition
// root over the provider/sandbox/context/remediation/state subsystems,
// constructed once per run rather than held as process-global state.
type Engine struct {
	cfg       *config.Config
	agents    *agentmgr.Manager
	ctxwin    *contextwin.Manager
	fs        *sandbox.FS
	exec      *cmdexec.Executor
	remediate *remediation.Manager
	store     *state.Store
	prompter  uiface.InputPrompter
	log       *logx.Logger
}

// New constructs an Engine rooted at projectRoot. allowlist/blocklist
// configure the Command Executor; inputPrompter may be nil for headless
// runs that never expect a "Prompt user input" task.
func New(
	cfg *config.Config,
	creds credstore.Store,
	credPrompter uiface.CredentialPrompter,
	inputPrompter uiface.InputPrompter,
	projectRoot string,
	allowlist []string,
	blocklist []cmdexec.BlockRule,
	log *logx.Logger,
) (*Engine, error) {
	fs, err := sandbox.New(projectRoot, log)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	exec, err := cmdexec.New(projectRoot, allowlist, blocklist, time.Duration(cfg.CommandTimeoutSeconds)*time.Second, log)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	agents := agentmgr.New(cfg, creds, credPrompter, log, nil)
	ctxwin := contextwin.New(fs, agents, cfg.MaxContextSize, cfg.HistorySummaryThreshold, log)
	strategyCfg := remediation.StrategyConfig{AllowFixLogic: cfg.AllowFixLogic}
	remediate := remediation.New(agents, ctxwin, fs, exec, strategyCfg, cfg.NetRetries, cfg.MaxOuterIterations, log)
	store := state.NewStore(filepath.Join(fs.Root(), stateDirName, "project_state.json"))

	return &Engine{
		cfg:       cfg,
		agents:    agents,
		ctxwin:    ctxwin,
		fs:        fs,
		exec:      exec,
		remediate: remediate,
		store:     store,
		prompter:  inputPrompter,
		log:       log,
	}, nil
}

// Bind resolves (providerID, modelID) to a ready client via the Agent
// Manager, so the engine has something to dispatch LLM calls to.
func (e *Engine) Bind(ctx context.Context, providerID, modelID string) error {
	return e.agents.Reinitialize(ctx, providerID, modelID)
}

// LoadState loads the persisted ProjectState, or a fresh one on first run.
func (e *Engine) LoadState() (*state.ProjectState, error) {
	return e.store.Load(e.fs.Root())
}

// planResponse is the strict JSON shape the planning prompt asks the LLM
// to answer with — one entry per proposed FeatureTask.
type planResponse struct {
	Tasks []struct {
		TaskIDStr    string   `json:"task_id_str"`
		Action       string   `json:"action"`
		Target       string   `json:"target"`
		Description  string   `json:"description"`
		Dependencies []string `json:"dependencies"`
	} `json:"tasks"`
}

// PlanFeature turns a natural-language request into a ProjectFeature's task
// plan: assembles context via the Context
// Manager, dispatches through the Agent Manager, and parses the strict-JSON
// reply into validated FeatureTasks.
func (e *Engine) PlanFeature(ctx context.Context, s *state.ProjectState, featureID, request string) (state.ProjectFeature, error) {
	tree, err := e.fs.DirectoryTreeMarkdown()
	if err != nil {
		tree = ""
	}

	items := []contextwin.Item{
		{Priority: contextwin.PriorityHistory, Label: "history", Content: strings.Join(s.WorkHistory, "\n")},
	}
	rules := contextwin.RulesFor(contextwin.Framework(s.Framework))
	assembly, err := e.ctxwin.Build(items, rules, tree)
	if err != nil {
		return state.ProjectFeature{}, fmt.Errorf("engine: assembling planning context: %w", err)
	}

	systemPrompt := "You are planning an engineering task for project " + s.ProjectName + " (" + s.Framework + "). " +
		"Respond with strict JSON only: " +
		`{"tasks":[{"task_id_str":"t1","action":"Create file","target":"path","description":"...","dependencies":[]}]}` +
		". Every dependencies entry must name an earlier task_id_str."

	prompt := assembly.String() + "\n\nRequest:\n" + request
	reply, err := e.agents.Invoke(ctx, systemPrompt, []providers.Message{{Role: providers.RoleUser, Content: prompt}}, 0.2, nil)
	if err != nil {
		return state.ProjectFeature{}, fmt.Errorf("engine: planning call failed: %w", err)
	}

	var parsed planResponse
	if err := json.Unmarshal([]byte(extractJSON(reply.Content)), &parsed); err != nil {
		return state.ProjectFeature{}, fmt.Errorf("engine: parsing plan response: %w", err)
	}

	tasks := make([]state.FeatureTask, 0, len(parsed.Tasks))
	for _, t := range parsed.Tasks {
		tasks = append(tasks, state.FeatureTask{
			TaskIDStr:    t.TaskIDStr,
			Action:       state.TaskAction(t.Action),
			Target:       t.Target,
			Description:  t.Description,
			Dependencies: t.Dependencies,
		})
	}

	return state.NewFeature(featureID, request, request, tasks)
}

// extractJSON trims leading/trailing prose a model sometimes wraps strict
// JSON in (e.g. a ```json fence), returning the first top-level object.
func extractJSON(reply string) string {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start == -1 || end == -1 || end < start {
		return reply
	}
	return reply[start : end+1]
}

// TaskResult is the outcome of dispatching one FeatureTask.
type TaskResult struct {
	Success         bool
	RemediationErrs []erroranalysis.ErrorRecord
}

// RunFeature dispatches every task of feature in order (the list's own
// ordering already satisfies the forward-dependency rule), persisting
// state after each task and stopping at the first unrecovered failure.
func (e *Engine) RunFeature(ctx context.Context, s *state.ProjectState, feature *state.ProjectFeature) error {
	feature.Status = state.FeatureStatusInProgress
	s.CurrentFeatureID = feature.ID
	syncFeature(s, feature)

	for i := range feature.Tasks {
		task := feature.Tasks[i]
		if feature.TaskCompleted(task.TaskIDStr) {
			continue
		}
		// Cancellation is polled between tasks: the feature stays
		// in_progress and state is persisted so a later run can resume
		// from this exact task.
		if err := ctx.Err(); err != nil {
			s.AppendWorkHistory(fmt.Sprintf("stopped before task %s", task.TaskIDStr))
			if saveErr := e.store.Save(s); saveErr != nil && e.log != nil {
				e.log.Error("engine: saving continuable state: %v", saveErr)
			}
			return err
		}
		result, err := e.RunTask(ctx, task)
		if err != nil || !result.Success {
			feature.Status = state.FeatureStatusFailed
			syncFeature(s, feature)
			s.AppendWorkHistory(fmt.Sprintf("task %s failed", task.TaskIDStr))
			if saveErr := e.store.Save(s); saveErr != nil && e.log != nil {
				e.log.Error("engine: saving continuable state: %v", saveErr)
			}
			if err != nil {
				return fmt.Errorf("engine: task %s: %w", task.TaskIDStr, err)
			}
			return fmt.Errorf("engine: task %s did not verify", task.TaskIDStr)
		}
		feature.CompletedTasks = append(feature.CompletedTasks, task.TaskIDStr)
		syncFeature(s, feature)
		s.AppendWorkHistory(fmt.Sprintf("completed task %s: %s", task.TaskIDStr, task.Description))
		if err := e.store.Save(s); err != nil {
			return fmt.Errorf("engine: persisting state after task %s: %w", task.TaskIDStr, err)
		}
	}

	feature.Status = state.FeatureStatusDone
	syncFeature(s, feature)
	return e.store.Save(s)
}

// syncFeature mirrors feature into s.Features, appending on first sight.
func syncFeature(s *state.ProjectState, feature *state.ProjectFeature) {
	for i := range s.Features {
		if s.Features[i].ID == feature.ID {
			s.Features[i] = *feature
			return
		}
	}
	s.Features = append(s.Features, *feature)
}

// RunTask dispatches a single FeatureTask: Run command goes straight
// through the Command Executor;
// Create/Modify file tasks ask the LLM for the file's content and commit
// it atomically; Prompt user input goes through the injected prompter.
// A nonzero verification exit enters the Error Analyzer → Remediation
// Planner → Remediation Manager loop before the task is declared failed.
func (e *Engine) RunTask(ctx context.Context, task state.FeatureTask) (TaskResult, error) {
	switch task.Action {
	case state.ActionRunCommand:
		return e.runCommandTask(ctx, task)
	case state.ActionCreateFile, state.ActionModifyFile:
		return e.runFileTask(ctx, task)
	case state.ActionPromptUserInput:
		return e.runPromptTask(ctx, task)
	default:
		return TaskResult{}, fmt.Errorf("engine: unrecognized task action %q", task.Action)
	}
}

func (e *Engine) runCommandTask(ctx context.Context, task state.FeatureTask) (TaskResult, error) {
	argv := strings.Fields(task.Target)
	result, err := e.exec.Run(ctx, argv)
	if err != nil {
		return TaskResult{}, fmt.Errorf("engine: command %q rejected: %w", task.Target, err)
	}
	if result.ExitCode == 0 {
		return TaskResult{Success: true}, nil
	}
	return e.remediateFailure(ctx, task.Target, result)
}

func (e *Engine) runFileTask(ctx context.Context, task state.FeatureTask) (TaskResult, error) {
	prompt, err := e.ctxwin.BuildFixPrompt(task.Description, []string{task.Target})
	if err != nil {
		return TaskResult{}, fmt.Errorf("engine: building prompt for %s: %w", task.Target, err)
	}
	systemPrompt := "Respond with exactly one " +
		`<file_content path="...">` + "<![CDATA[...]]></file_content> block for the requested file."
	reply, err := e.agents.Invoke(ctx, systemPrompt, []providers.Message{{Role: providers.RoleUser, Content: prompt}}, 0.2, nil)
	if err != nil {
		return TaskResult{}, fmt.Errorf("engine: LLM call for %s failed: %w", task.Target, err)
	}

	content, ok := extractFileContent(reply.Content, task.Target)
	if !ok {
		return TaskResult{}, fmt.Errorf("engine: response missing file_content block for %q", task.Target)
	}

	if err := e.fs.Write(task.Target, content); err != nil {
		return TaskResult{}, fmt.Errorf("engine: writing %s: %w", task.Target, err)
	}

	if task.TestStep == "" || task.TestStep == "true" {
		return TaskResult{Success: true}, nil
	}
	result, err := e.exec.Run(ctx, strings.Fields(task.TestStep))
	if err != nil {
		return TaskResult{}, fmt.Errorf("engine: test_step %q rejected: %w", task.TestStep, err)
	}
	if result.ExitCode == 0 {
		return TaskResult{Success: true}, nil
	}
	return e.remediateFailure(ctx, task.TestStep, result)
}

func (e *Engine) runPromptTask(ctx context.Context, task state.FeatureTask) (TaskResult, error) {
	if e.prompter == nil {
		return TaskResult{}, fmt.Errorf("engine: task %s requires a user prompt but no prompter is configured", task.TaskIDStr)
	}
	_, ok := e.prompter.ShowInputPrompt(ctx, task.TaskIDStr, false, task.Description)
	return TaskResult{Success: ok}, nil
}

// remediateFailure feeds a nonzero-exit command result into the Error
// Analyzer then the Remediation Manager's outer loop.
func (e *Engine) remediateFailure(ctx context.Context, command string, result cmdexec.Result) (TaskResult, error) {
	records, _ := erroranalysis.Analyze(command, result.Stdout, result.Stderr, result.ExitCode, e.fs.Root(), nil)
	if len(records) == 0 {
		return TaskResult{}, fmt.Errorf("engine: command %q exited %d with no recognized error shape", command, result.ExitCode)
	}
	outcome := e.remediate.Run(ctx, records, nil)
	return TaskResult{Success: outcome.Success, RemediationErrs: outcome.LastErrors}, nil
}

func extractFileContent(reply, path string) (string, bool) {
	marker := `path="` + path + `"`
	idx := strings.Index(reply, marker)
	if idx == -1 {
		return "", false
	}
	rest := reply[idx+len(marker):]
	if cdataStart := strings.Index(rest, "<![CDATA["); cdataStart != -1 {
		rest = rest[cdataStart+len("<![CDATA["):]
		end := strings.Index(rest, "]]>")
		if end == -1 {
			return "", false
		}
		return rest[:end], true
	}
	tagEnd := strings.IndexByte(rest, '>')
	if tagEnd == -1 {
		return "", false
	}
	rest = rest[tagEnd+1:]
	end := strings.Index(rest, "</file_content>")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}
