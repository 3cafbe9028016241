package remediation

import (
	"context"
	"fmt"
	"regexp"

	"orchestrator/internal/structuremap"
	"orchestrator/pkg/agentmgr"
	"orchestrator/pkg/cmdexec"
	"orchestrator/pkg/contextwin"
	"orchestrator/pkg/erroranalysis"
	"orchestrator/pkg/logx"
	"orchestrator/pkg/providers"
	"orchestrator/pkg/sandbox"
)

// fileContentBlock matches one `<file_content path="...">...</file_content>`
// block the fix prompt asks the model to answer in, with or
// without the CDATA wrapper.
var fileContentBlock = regexp.MustCompile(`(?s)<file_content path="([^"]+)">\s*(?:<!\[CDATA\[(.*?)\]\]>|(.*?))\s*</file_content>`)

// Outcome is the terminal result of one Manager.Run call.
type Outcome struct {
	Success    bool
	LastErrors []erroranalysis.ErrorRecord
}

// Manager executes the outer fix/verify/retry loop: plan fix tasks,
// dispatch each to the LLM, apply the patch atomically, verify by
// re-running the failing command, and roll back on verification failure.
type Manager struct {
	agents  *agentmgr.Manager
	ctxwin  *contextwin.Manager
	fs      *sandbox.FS
	exec    *cmdexec.Executor
	cfg     StrategyConfig
	netRetries        int
	maxOuterIterations int
	log     *logx.Logger
}

// New creates a Manager wired to the engine's shared subsystems.
func New(agents *agentmgr.Manager, ctxwin *contextwin.Manager, fs *sandbox.FS, exec *cmdexec.Executor, cfg StrategyConfig, netRetries, maxOuterIterations int, log *logx.Logger) *Manager {
	return &Manager{
		agents:             agents,
		ctxwin:             ctxwin,
		fs:                 fs,
		exec:               exec,
		cfg:                cfg,
		netRetries:         netRetries,
		maxOuterIterations: maxOuterIterations,
		log:                log,
	}
}

// Run executes the outer loop starting from errs, the
// structured errors produced by the command that originally failed.
// structure is the project structure map passed through to the planner.
func (m *Manager) Run(ctx context.Context, errs []erroranalysis.ErrorRecord, structure *structuremap.Map) Outcome {
	current := errs

	for iteration := 1; iteration <= m.maxOuterIterations; iteration++ {
		tasks, unhandled := Plan(current, structure, m.cfg)
		if len(tasks) == 0 {
			if m.log != nil {
				m.log.Error("remediation: planner produced no tasks for %d error(s); declaring failure", len(current))
			}
			return Outcome{Success: false, LastErrors: current}
		}

		allVerified := true
		var nextErrors []erroranalysis.ErrorRecord

		for _, task := range tasks {
			verified, verifyErrs, err := m.runTask(ctx, task)
			if err != nil {
				if m.log != nil {
					m.log.Warn("remediation: task for %s failed: %v", task.OriginalError.Summary, err)
				}
				allVerified = false
				nextErrors = append(nextErrors, task.OriginalError)
				continue
			}
			if !verified {
				allVerified = false
				if len(verifyErrs) == 0 {
					// The verification run failed in a shape the analyzer
					// does not recognize; keep the original error in play.
					verifyErrs = []erroranalysis.ErrorRecord{task.OriginalError}
				}
				nextErrors = append(nextErrors, verifyErrs...)
			}
		}

		nextErrors = append(nextErrors, unhandled...)

		if allVerified && len(unhandled) == 0 {
			return Outcome{Success: true}
		}
		if len(nextErrors) == 0 {
			return Outcome{Success: true}
		}
		current = nextErrors
	}

	return Outcome{Success: false, LastErrors: current}
}

// runTask executes one fix task: build the prompt, call the LLM with its
// own retry budget, parse the response into file contents, apply them
// atomically, then verify by rerunning the originating command.
func (m *Manager) runTask(ctx context.Context, task FixTask) (verified bool, verifyErrs []erroranalysis.ErrorRecord, err error) {
	systemPrompt := "You are fixing a bug in a software project. Respond with one " +
		"<file_content path=\"...\"><![CDATA[...]]></file_content> block per file listed below."
	window, buildErr := m.ctxwin.BuildFixPrompt(task.Description, task.FilesToFix)
	if buildErr != nil {
		return false, nil, fmt.Errorf("remediation: building fix prompt: %w", buildErr)
	}

	var reply providers.Message
	var lastErr error
	for attempt := 1; attempt <= m.netRetries; attempt++ {
		reply, lastErr = m.agents.Invoke(ctx, systemPrompt, []providers.Message{{Role: providers.RoleUser, Content: window}}, 0.2, nil)
		if lastErr == nil {
			break
		}
		kind := providers.KindOf(lastErr)
		if kind == providers.ErrorKindRateLimited || kind == providers.ErrorKindAuthFailed {
			if resolved, resolveErr := m.agents.HandleAPIErrorAndReinitialize(ctx, kind, lastErr.Error()); resolveErr == nil && resolved {
				continue
			}
		}
	}
	if lastErr != nil {
		return false, nil, fmt.Errorf("remediation: LLM call failed after retries: %w", lastErr)
	}

	files, parseErr := parseFileContents(reply.Content)
	if parseErr != nil {
		return false, nil, parseErr
	}
	for _, want := range task.FilesToFix {
		if _, ok := files[want]; !ok {
			return false, nil, fmt.Errorf("remediation: response missing required file %q", want)
		}
	}

	commit, commitErr := m.fs.ApplyAtomicFileUpdates(files)
	if commitErr != nil {
		return false, nil, fmt.Errorf("remediation: applying patch: %w", commitErr)
	}

	command := task.OriginalError.CommandThatProduced
	argv := splitCommand(command)
	result, runErr := m.exec.Run(ctx, argv)
	if runErr != nil {
		_ = m.fs.Rollback(commit.Backups, commit.WrittenPaths)
		return false, nil, fmt.Errorf("remediation: verification command rejected: %w", runErr)
	}

	if result.ExitCode == 0 {
		return true, nil, nil
	}

	if rollbackErr := m.fs.Rollback(commit.Backups, commit.WrittenPaths); rollbackErr != nil && m.log != nil {
		m.log.Warn("remediation: rollback after failed verification: %v", rollbackErr)
	}
	records, _ := erroranalysis.Analyze(command, result.Stdout, result.Stderr, result.ExitCode, m.fs.Root(), nil)
	return false, records, nil
}

func splitCommand(command string) []string {
	var argv []string
	var cur []rune
	inQuote := false
	flush := func() {
		if len(cur) > 0 {
			argv = append(argv, string(cur))
			cur = nil
		}
	}
	for _, r := range command {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			flush()
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return argv
}

func parseFileContents(reply string) (map[string]string, error) {
	matches := fileContentBlock.FindAllStringSubmatch(reply, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("remediation: response contained no file_content blocks")
	}
	files := make(map[string]string, len(matches))
	for _, m := range matches {
		path := m[1]
		content := m[2]
		if content == "" {
			content = m[3]
		}
		files[path] = content
	}
	return files, nil
}
