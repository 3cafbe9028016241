// Package remediation implements the strategy-pipeline planner and the
// outer fix/verify/retry loop that turns structured errors into applied,
// verified patches.
package remediation

import (
	"fmt"
	"strings"

	"orchestrator/internal/structuremap"
	"orchestrator/pkg/erroranalysis"
)

// FixTask is one planner-emitted unit of repair.
type FixTask struct {
	OriginalError erroranalysis.ErrorRecord
	Description   string
	FilesToFix    []string
}

// StrategyConfig gates which planner strategies run; a disabled kind's
// strategies are skipped entirely (e.g. AllowFixLogic).
type StrategyConfig struct {
	AllowFixLogic bool
}

// strategy inspects the remaining error list and returns zero or more
// tasks plus the errors it consumed.
type strategy struct {
	name    string
	enabled func(cfg StrategyConfig) bool
	apply   func(errs []erroranalysis.ErrorRecord, structure *structuremap.Map) (tasks []FixTask, consumed []erroranalysis.ErrorRecord)
}

var strategies = []strategy{ //nolint:gochecknoglobals
	{
		name:    "NoReverseMatch",
		enabled: func(cfg StrategyConfig) bool { return cfg.AllowFixLogic },
		apply:   planNoReverseMatch,
	},
	{
		name:    "TemplateDoesNotExist",
		enabled: func(cfg StrategyConfig) bool { return cfg.AllowFixLogic },
		apply:   planTemplateDoesNotExist,
	},
	{
		name:    "AssertionErrorInViewTest",
		enabled: func(cfg StrategyConfig) bool { return cfg.AllowFixLogic },
		apply:   planAssertionErrorInViewTest,
	},
	{
		name:    "StrRepresentation",
		enabled: func(cfg StrategyConfig) bool { return cfg.AllowFixLogic },
		apply:   planStrRepresentation,
	},
}

// Plan runs the strategy pipeline over errs, returning the emitted tasks
// and whatever errors no strategy (including the mandatory Fallback)
// consumed. Fallback always runs, regardless of cfg, since it is the
// catch-all of last resort.
func Plan(errs []erroranalysis.ErrorRecord, structure *structuremap.Map, cfg StrategyConfig) (tasks []FixTask, unhandled []erroranalysis.ErrorRecord) {
	remaining := append([]erroranalysis.ErrorRecord(nil), errs...)

	for _, s := range strategies {
		if !s.enabled(cfg) {
			continue
		}
		newTasks, consumed := s.apply(remaining, structure)
		tasks = append(tasks, newTasks...)
		remaining = subtract(remaining, consumed)
	}

	fallbackTasks, consumed := planFallback(remaining)
	tasks = append(tasks, fallbackTasks...)
	remaining = subtract(remaining, consumed)

	return tasks, remaining
}

// subtract removes every record in consumed from all. Records are value
// types without identity, so matches are by content (kind/file/raw message).
func subtract(all, consumed []erroranalysis.ErrorRecord) []erroranalysis.ErrorRecord {
	if len(consumed) == 0 {
		return all
	}
	out := make([]erroranalysis.ErrorRecord, 0, len(all))
	removed := make([]bool, len(all))
	for _, c := range consumed {
		for i, a := range all {
			if !removed[i] && a.RawMessage == c.RawMessage && a.Kind == c.Kind && a.FilePath == c.FilePath {
				removed[i] = true
				break
			}
		}
	}
	for i, a := range all {
		if !removed[i] {
			out = append(out, a)
		}
	}
	return out
}

func planNoReverseMatch(errs []erroranalysis.ErrorRecord, structure *structuremap.Map) ([]FixTask, []erroranalysis.ErrorRecord) {
	var tasks []FixTask
	var consumed []erroranalysis.ErrorRecord
	for _, e := range errs {
		if !strings.Contains(e.Summary, "NoReverseMatch") {
			continue
		}
		files := append([]string(nil), e.Hints.CandidateFilesOr(nil)...)
		if structure != nil {
			files = append(files, structure.URLConfFiles()...)
		}
		if e.FilePath != "" {
			files = append(files, e.FilePath)
		}
		tasks = append(tasks, FixTask{
			OriginalError: e,
			Description: fmt.Sprintf(
				"%s — the template calls a URL name that no urlconf currently reverses; "+
					"check the root and app urlconfs register it, and that the view it points to exists.",
				e.Summary,
			),
			FilesToFix: dedupe(files),
		})
		consumed = append(consumed, e)
	}
	return tasks, consumed
}

func planTemplateDoesNotExist(errs []erroranalysis.ErrorRecord, _ *structuremap.Map) ([]FixTask, []erroranalysis.ErrorRecord) {
	var tasks []FixTask
	var consumed []erroranalysis.ErrorRecord
	for _, e := range errs {
		if !strings.Contains(e.Summary, "TemplateDoesNotExist") {
			continue
		}
		files := []string{e.FilePath}
		const marker = "TemplateDoesNotExist: "
		if idx := strings.Index(e.Summary, marker); idx != -1 {
			files = append(files, strings.TrimSpace(e.Summary[idx+len(marker):]))
		}
		files = dedupe(append(files, e.Hints.CandidateFilesOr(nil)...))
		tasks = append(tasks, FixTask{
			OriginalError: e,
			Description: fmt.Sprintf(
				"%s — the view calling render() references a template path that does not exist; "+
					"either create the missing template or fix the path passed to render().",
				e.Summary,
			),
			FilesToFix: files,
		})
		consumed = append(consumed, e)
	}
	return tasks, consumed
}

func planAssertionErrorInViewTest(errs []erroranalysis.ErrorRecord, _ *structuremap.Map) ([]FixTask, []erroranalysis.ErrorRecord) {
	var tasks []FixTask
	var consumed []erroranalysis.ErrorRecord
	for _, e := range errs {
		if e.Kind != erroranalysis.KindTestFailure || !strings.HasSuffix(e.FilePath, "test_views.py") {
			continue
		}
		siblingViews := strings.TrimSuffix(e.FilePath, "test_views.py") + "views.py"
		tasks = append(tasks, FixTask{
			OriginalError: e,
			Description: fmt.Sprintf(
				"%s — a view-level assertion in %s failed; the sibling views.py likely has the bug, "+
					"but the test file may also be edited if it asserts the wrong thing.",
				e.Summary, e.FilePath,
			),
			FilesToFix: []string{siblingViews, e.FilePath},
		})
		consumed = append(consumed, e)
	}
	return tasks, consumed
}

func planStrRepresentation(errs []erroranalysis.ErrorRecord, _ *structuremap.Map) ([]FixTask, []erroranalysis.ErrorRecord) {
	var tasks []FixTask
	var consumed []erroranalysis.ErrorRecord
	for _, e := range errs {
		if e.Kind != erroranalysis.KindTestFailure || !strings.Contains(e.RawMessage, "test_str_representation") {
			continue
		}
		app := appFromPath(e.FilePath)
		if app == "" {
			continue
		}
		tasks = append(tasks, FixTask{
			OriginalError: e,
			Description: fmt.Sprintf(
				"%s — a model's __str__ representation is wrong; fix %s/models.py only.",
				e.Summary, app,
			),
			FilesToFix: []string{app + "/models.py"},
		})
		consumed = append(consumed, e)
	}
	return tasks, consumed
}

func planFallback(errs []erroranalysis.ErrorRecord) ([]FixTask, []erroranalysis.ErrorRecord) {
	var tasks []FixTask
	var consumed []erroranalysis.ErrorRecord
	for _, e := range errs {
		if e.FilePath == "" {
			continue
		}
		tasks = append(tasks, FixTask{
			OriginalError: e,
			Description:   fmt.Sprintf("%s — no specific strategy matched; attempting a direct fix in %s.", e.Summary, e.FilePath),
			FilesToFix:    []string{e.FilePath},
		})
		consumed = append(consumed, e)
	}
	return tasks, consumed
}

func appFromPath(path string) string {
	idx := strings.IndexByte(path, '/')
	if idx == -1 {
		return ""
	}
	return path[:idx]
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
