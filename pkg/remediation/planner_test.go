package remediation

import (
	"testing"

	"orchestrator/pkg/erroranalysis"
)

func rec(kind erroranalysis.Kind, summary, file, raw string) erroranalysis.ErrorRecord {
	return erroranalysis.ErrorRecord{Kind: kind, Summary: summary, FilePath: file, RawMessage: raw}
}

func TestPlanNoReverseMatchProducesTask(t *testing.T) {
	errs := []erroranalysis.ErrorRecord{
		rec(erroranalysis.KindTemplateErr, `NoReverseMatch: url name "home" not found`, "calculator/templates/index.html", "err-1"),
	}
	tasks, unhandled := Plan(errs, nil, StrategyConfig{AllowFixLogic: true})
	if len(unhandled) != 0 {
		t.Fatalf("expected NoReverseMatch consumed, got unhandled=%+v", unhandled)
	}
	if len(tasks) != 1 || tasks[0].OriginalError.RawMessage != "err-1" {
		t.Fatalf("expected one task for the NoReverseMatch error, got %+v", tasks)
	}
}

func TestPlanTemplateDoesNotExistProducesTask(t *testing.T) {
	errs := []erroranalysis.ErrorRecord{
		rec(erroranalysis.KindTemplateErr, "TemplateDoesNotExist: calculator/result.html", "calculator/views.py", "err-2"),
	}
	tasks, unhandled := Plan(errs, nil, StrategyConfig{AllowFixLogic: true})
	if len(unhandled) != 0 {
		t.Fatalf("expected TemplateDoesNotExist consumed, got unhandled=%+v", unhandled)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected one task, got %+v", tasks)
	}
	found := false
	for _, f := range tasks[0].FilesToFix {
		if f == "calculator/result.html" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the missing template path among FilesToFix, got %v", tasks[0].FilesToFix)
	}
}

func TestPlanAssertionErrorInViewTestTargetsSiblingViews(t *testing.T) {
	errs := []erroranalysis.ErrorRecord{
		rec(erroranalysis.KindTestFailure, "AssertionError: 4 != 5", "calculator/test_views.py", "err-3"),
	}
	tasks, unhandled := Plan(errs, nil, StrategyConfig{AllowFixLogic: true})
	if len(unhandled) != 0 {
		t.Fatalf("expected the assertion error consumed, got unhandled=%+v", unhandled)
	}
	if len(tasks) != 1 || len(tasks[0].FilesToFix) != 2 {
		t.Fatalf("expected one task touching views.py and the test file, got %+v", tasks)
	}
	if tasks[0].FilesToFix[0] != "calculator/views.py" {
		t.Errorf("expected views.py first, got %v", tasks[0].FilesToFix)
	}
}

func TestPlanStrRepresentationTargetsModelsOnly(t *testing.T) {
	errs := []erroranalysis.ErrorRecord{
		rec(erroranalysis.KindTestFailure, "AssertionError", "calculator/test_models.py", "test_str_representation failed"),
	}
	tasks, unhandled := Plan(errs, nil, StrategyConfig{AllowFixLogic: true})
	if len(unhandled) != 0 {
		t.Fatalf("expected consumed by StrRepresentation, got unhandled=%+v", unhandled)
	}
	if len(tasks) != 1 || len(tasks[0].FilesToFix) != 1 || tasks[0].FilesToFix[0] != "calculator/models.py" {
		t.Fatalf("expected a single models.py fix task, got %+v", tasks)
	}
}

func TestPlanFallbackCatchesUnmatchedErrorsWithFilePath(t *testing.T) {
	errs := []erroranalysis.ErrorRecord{
		rec(erroranalysis.KindSyntaxError, "SyntaxError: invalid syntax", "calculator/views.py", "err-4"),
	}
	tasks, unhandled := Plan(errs, nil, StrategyConfig{AllowFixLogic: true})
	if len(unhandled) != 0 {
		t.Fatalf("expected fallback to consume the syntax error, got unhandled=%+v", unhandled)
	}
	if len(tasks) != 1 || tasks[0].FilesToFix[0] != "calculator/views.py" {
		t.Fatalf("expected a fallback task targeting the file path, got %+v", tasks)
	}
}

func TestPlanFallbackLeavesFilelessErrorsUnhandled(t *testing.T) {
	errs := []erroranalysis.ErrorRecord{
		rec(erroranalysis.KindCommandError, "exit status 127", "", "err-5"),
	}
	tasks, unhandled := Plan(errs, nil, StrategyConfig{AllowFixLogic: true})
	if len(tasks) != 0 {
		t.Fatalf("expected no task for a fileless error, got %+v", tasks)
	}
	if len(unhandled) != 1 {
		t.Fatalf("expected the fileless error to remain unhandled, got %+v", unhandled)
	}
}

func TestPlanFixLogicStrategiesDisabledFallsThroughToFallback(t *testing.T) {
	errs := []erroranalysis.ErrorRecord{
		rec(erroranalysis.KindTemplateErr, `NoReverseMatch: url name "home" not found`, "calculator/views.py", "err-6"),
	}
	tasks, unhandled := Plan(errs, nil, StrategyConfig{AllowFixLogic: false})
	if len(unhandled) != 0 {
		t.Fatalf("expected fallback to still consume the error, got unhandled=%+v", unhandled)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected exactly one fallback task, got %+v", tasks)
	}
	if tasks[0].FilesToFix[0] != "calculator/views.py" {
		t.Errorf("expected the fallback task to target the file path directly, got %v", tasks[0].FilesToFix)
	}
}
