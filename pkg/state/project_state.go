// Package state implements the project state and memory layer: the single
// root document the engine owns exclusively during a run, serialized
// whole at commit points, tolerant of schema additions on load.
package state

import (
	"encoding/json"
	"fmt"

	"orchestrator/internal/structuremap"
)

// FeatureStatus is one of a ProjectFeature's lifecycle states.
type FeatureStatus string

const (
	FeatureStatusPending    FeatureStatus = "pending"
	FeatureStatusInProgress FeatureStatus = "in_progress"
	FeatureStatusDone       FeatureStatus = "done"
	FeatureStatusFailed     FeatureStatus = "failed"
)

// TaskAction is one of a FeatureTask's recognized actions.
type TaskAction string

const (
	ActionCreateFile      TaskAction = "Create file"
	ActionModifyFile      TaskAction = "Modify file"
	ActionRunCommand      TaskAction = "Run command"
	ActionPromptUserInput TaskAction = "Prompt user input"
)

// defaultTestStep is substituted for every task's TestStep when the caller
// leaves it empty, except for Prompt user input tasks which have no
// meaningful verification command.
const defaultTestStep = "true"

// FeatureTask is one step of a ProjectFeature's plan.
type FeatureTask struct {
	TaskIDStr    string     `json:"task_id_str"`
	Action       TaskAction `json:"action"`
	Target       string     `json:"target"`
	Description  string     `json:"description"`
	Dependencies []string   `json:"dependencies,omitempty"`
	TestStep     string     `json:"test_step,omitempty"`
}

// ProjectFeature is one planned unit of work, its tasks, and status.
// CompletedTasks records which task ids have finished, so a feature
// persisted in_progress can resume from its next pending task.
type ProjectFeature struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Status         FeatureStatus `json:"status"`
	Tasks          []FeatureTask `json:"tasks"`
	CompletedTasks []string      `json:"completed_tasks,omitempty"`
}

// TaskCompleted reports whether the task id is recorded as finished.
func (f *ProjectFeature) TaskCompleted(taskID string) bool {
	for _, id := range f.CompletedTasks {
		if id == taskID {
			return true
		}
	}
	return false
}

// NewFeature builds a ProjectFeature, defaulting TestStep on every task
// except Prompt user input ones and validating task-id
// uniqueness and dependency ordering.
func NewFeature(id, name, description string, tasks []FeatureTask) (ProjectFeature, error) {
	seen := make(map[string]bool, len(tasks))
	out := make([]FeatureTask, len(tasks))
	for i, t := range tasks {
		if t.TaskIDStr == "" {
			return ProjectFeature{}, fmt.Errorf("state: feature %q task %d has empty task_id_str", id, i)
		}
		if seen[t.TaskIDStr] {
			return ProjectFeature{}, fmt.Errorf("state: feature %q has duplicate task_id_str %q", id, t.TaskIDStr)
		}
		seen[t.TaskIDStr] = true

		for _, dep := range t.Dependencies {
			if !seen[dep] {
				return ProjectFeature{}, fmt.Errorf(
					"state: feature %q task %q depends on %q, which is not a prior task", id, t.TaskIDStr, dep)
			}
		}

		if t.TestStep == "" && t.Action != ActionPromptUserInput {
			t.TestStep = defaultTestStep
		}
		out[i] = t
	}

	return ProjectFeature{
		ID:          id,
		Name:        name,
		Description: description,
		Status:      FeatureStatusPending,
		Tasks:       out,
	}, nil
}

// ProjectState is the root document the engine exclusively owns during a
// run. Parsers and UI hold read-only point-in-time copies.
type ProjectState struct {
	ProjectName      string              `json:"project_name"`
	Framework        string              `json:"framework"`
	RootPath         string              `json:"root_path"`
	Features         []ProjectFeature    `json:"features"`
	CurrentFeatureID string              `json:"current_feature_id,omitempty"`
	RegisteredApps   map[string]struct{} `json:"-"`
	CodeSummaries    map[string]string   `json:"code_summaries,omitempty"`
	ProjectStructure *structuremap.Map   `json:"-"`
	WorkHistory      []string            `json:"work_history,omitempty"`

	// extra holds top-level JSON keys this version of ProjectState does not
	// recognize, so a future schema addition round-trips through an older
	// binary without data loss.
	extra map[string]json.RawMessage
}

// New returns an empty ProjectState rooted at rootPath.
func New(projectName, framework, rootPath string) *ProjectState {
	return &ProjectState{
		ProjectName:      projectName,
		Framework:        framework,
		RootPath:         rootPath,
		RegisteredApps:   make(map[string]struct{}),
		CodeSummaries:    make(map[string]string),
		ProjectStructure: structuremap.New(),
	}
}

// CurrentFeature returns the feature named by CurrentFeatureID, if any.
func (s *ProjectState) CurrentFeature() (*ProjectFeature, bool) {
	for i := range s.Features {
		if s.Features[i].ID == s.CurrentFeatureID {
			return &s.Features[i], true
		}
	}
	return nil, false
}

// RegisterApp adds name to the set of registered Django apps.
func (s *ProjectState) RegisterApp(name string) {
	if s.RegisteredApps == nil {
		s.RegisteredApps = make(map[string]struct{})
	}
	s.RegisteredApps[name] = struct{}{}
}

// IsAppRegistered reports whether name has been registered.
func (s *ProjectState) IsAppRegistered(name string) bool {
	_, ok := s.RegisteredApps[name]
	return ok
}

// AppendWorkHistory records one work-history entry.
func (s *ProjectState) AppendWorkHistory(entry string) {
	s.WorkHistory = append(s.WorkHistory, entry)
}

// ReplaceWorkHistoryWithSummary atomically replaces WorkHistory with a
// single summary string, clearing the prior list.
func (s *ProjectState) ReplaceWorkHistoryWithSummary(summary string) {
	s.WorkHistory = []string{summary}
}
