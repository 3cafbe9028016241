package state

import "testing"

func TestNewFeatureDefaultsTestStep(t *testing.T) {
	feature, err := NewFeature("f1", "Add calculator", "desc", []FeatureTask{
		{TaskIDStr: "t1", Action: ActionCreateFile, Target: "calc/views.py"},
		{TaskIDStr: "t2", Action: ActionPromptUserInput, Dependencies: []string{"t1"}},
	})
	if err != nil {
		t.Fatalf("NewFeature: %v", err)
	}
	if feature.Tasks[0].TestStep != defaultTestStep {
		t.Errorf("expected defaulted test_step on non-prompt task, got %q", feature.Tasks[0].TestStep)
	}
	if feature.Tasks[1].TestStep != "" {
		t.Errorf("expected no defaulted test_step on Prompt user input task, got %q", feature.Tasks[1].TestStep)
	}
	if feature.Status != FeatureStatusPending {
		t.Errorf("expected a fresh feature to start pending, got %q", feature.Status)
	}
}

func TestNewFeatureRejectsDuplicateTaskID(t *testing.T) {
	_, err := NewFeature("f1", "x", "x", []FeatureTask{
		{TaskIDStr: "t1", Action: ActionCreateFile},
		{TaskIDStr: "t1", Action: ActionModifyFile},
	})
	if err == nil {
		t.Fatal("expected an error for a duplicate task_id_str")
	}
}

func TestNewFeatureRejectsForwardDependency(t *testing.T) {
	_, err := NewFeature("f1", "x", "x", []FeatureTask{
		{TaskIDStr: "t1", Action: ActionCreateFile, Dependencies: []string{"t2"}},
		{TaskIDStr: "t2", Action: ActionModifyFile},
	})
	if err == nil {
		t.Fatal("expected an error for a dependency on a task that has not appeared yet")
	}
}

func TestRegisteredAppsSet(t *testing.T) {
	s := New("demo", "django", "/tmp/demo")
	if s.IsAppRegistered("calculator") {
		t.Fatal("expected a fresh state to have no registered apps")
	}
	s.RegisterApp("calculator")
	if !s.IsAppRegistered("calculator") {
		t.Fatal("expected calculator to be registered after RegisterApp")
	}
}

func TestReplaceWorkHistoryWithSummary(t *testing.T) {
	s := New("demo", "django", "/tmp/demo")
	s.AppendWorkHistory("did thing one")
	s.AppendWorkHistory("did thing two")
	s.ReplaceWorkHistoryWithSummary("did two things")
	if len(s.WorkHistory) != 1 || s.WorkHistory[0] != "did two things" {
		t.Fatalf("expected work history atomically replaced with summary, got %v", s.WorkHistory)
	}
}
