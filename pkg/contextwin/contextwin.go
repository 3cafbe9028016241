// Package contextwin builds the prioritized prompt window the Agent
// Manager sends to an LLM call: a strict priority model over
// candidate items, greedy-fill-then-truncate-lowest-priority assembly, and
// work-history summarization once the in-flight history grows too long.
package contextwin

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tiktoken-go/tokenizer"

	"orchestrator/pkg/agentmgr"
	"orchestrator/pkg/logx"
	"orchestrator/pkg/providers"
	"orchestrator/pkg/sandbox"
)

// Priority tiers for context-window candidates.
const (
	PriorityFullFileContent = 100
	PriorityLastModified    = 90
	PriorityOtherFiles      = 60
	PriorityHistory         = 40
	PriorityRulesAndTree    = 10
)

const truncationMarker = "… [truncated]"

// Item is one candidate piece of context competing for a slot in the window.
type Item struct {
	Priority int
	Label    string // e.g. "FULL:path" or "SUMMARY:path", used in the availability note
	Content  string
	// OneShot items are consumed after use — callers should drop them from
	// the next call's candidate set (explicitly requested full file content).
	OneShot bool
}

// Manager assembles prompt windows and tracks work-history summarization
// state. It holds no ProjectState itself; callers supply the
// current work history and file summaries per call.
type Manager struct {
	fs                      *sandbox.FS
	agents                  *agentmgr.Manager
	log                     *logx.Logger
	maxContextSize          int
	historySummaryThreshold int
	codec                   tokenizer.Codec
}

// New creates a Manager. If the tokenizer codec cannot be loaded, the codec
// stays nil and CountTokens falls back to a byte-length estimate.
func New(fs *sandbox.FS, agents *agentmgr.Manager, maxContextSize, historySummaryThreshold int, log *logx.Logger) *Manager {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		codec = nil
	}
	return &Manager{
		fs:                      fs,
		agents:                  agents,
		log:                     log,
		maxContextSize:          maxContextSize,
		historySummaryThreshold: historySummaryThreshold,
		codec:                   codec,
	}
}

// CountTokens returns m's best estimate of text's token count, falling back
// to a 4-chars-per-token heuristic when no tokenizer codec is available.
func (m *Manager) CountTokens(text string) int {
	if m.codec == nil {
		return len(text) / 4
	}
	ids, _, err := m.codec.Encode(text)
	if err != nil {
		return len(text) / 4
	}
	return len(ids)
}

// Assembly is the four-part result of building a context window.
type Assembly struct {
	Rules                   string
	CodeContext             string
	HistoryContext          string
	ContentAvailabilityNote string
}

// String concatenates the four parts in order.
func (a Assembly) String() string {
	var b strings.Builder
	for _, part := range []string{a.Rules, a.CodeContext, a.HistoryContext, a.ContentAvailabilityNote} {
		if part == "" {
			continue
		}
		b.WriteString(part)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Build assembles the prompt window from candidate items: greedy fill by
// descending priority, then truncate successive lowest-priority non-empty
// parts if the concatenation still overflows. rules and tree are always
// carried at priority 10.
func (m *Manager) Build(items []Item, rules, directoryTree string) (Assembly, error) {
	all := append([]Item(nil), items...)
	all = append(all, Item{Priority: PriorityRulesAndTree, Label: "rules", Content: rules})
	all = append(all, Item{Priority: PriorityRulesAndTree, Label: "tree", Content: directoryTree})

	sort.SliceStable(all, func(i, j int) bool { return all[i].Priority > all[j].Priority })

	kept := make([]Item, 0, len(all))
	total := 0
	for _, it := range all {
		if it.Content == "" {
			continue
		}
		size := len(it.Content)
		if total+size > m.maxContextSize && len(kept) > 0 {
			continue // lower-priority items are simply dropped at assembly time
		}
		kept = append(kept, it)
		total += size
	}

	assembly := partition(kept)
	if partsLen(assembly) > m.maxContextSize {
		assembly = truncateToFit(assembly, m.maxContextSize)
	}
	assembly.ContentAvailabilityNote = availabilityNote(kept)

	return assembly, nil
}

// partsLen is the combined length of the three prioritized parts — the
// quantity bounded by maxContextSize.
func partsLen(a Assembly) int {
	return len(a.Rules) + len(a.CodeContext) + len(a.HistoryContext)
}

// partition buckets kept items into the rules / code_context /
// history_context parts by their priority.
func partition(kept []Item) Assembly {
	var rules, code, history strings.Builder
	for _, it := range kept {
		switch {
		case it.Priority == PriorityRulesAndTree:
			rules.WriteString(it.Content)
			rules.WriteString("\n")
		case it.Priority == PriorityHistory:
			history.WriteString(it.Content)
			history.WriteString("\n")
		default:
			code.WriteString(fmt.Sprintf("### %s\n%s\n", it.Label, it.Content))
		}
	}
	return Assembly{Rules: rules.String(), CodeContext: code.String(), HistoryContext: history.String()}
}

// truncateToFit drops content from the tail of successive lowest-priority
// non-empty parts, inserting the truncation marker, until the combined
// parts fit within maxSize. A part too short to absorb the remaining
// overflow is dropped entirely and the next-lowest part is cut.
func truncateToFit(assembly Assembly, maxSize int) Assembly {
	parts := []*string{&assembly.Rules, &assembly.HistoryContext, &assembly.CodeContext}
	for _, p := range parts {
		overflow := partsLen(assembly) - maxSize
		if overflow <= 0 {
			break
		}
		if *p == "" {
			continue
		}
		keep := len(*p) - overflow - len(truncationMarker)
		if keep <= 0 {
			*p = ""
			continue
		}
		*p = (*p)[:keep] + truncationMarker
	}
	return assembly
}

// availabilityNote lists every referenced file tagged FULL: or SUMMARY: so
// the LLM can plan around what it actually has.
func availabilityNote(kept []Item) string {
	var b strings.Builder
	b.WriteString("Content available to you in this prompt:\n")
	any := false
	for _, it := range kept {
		if strings.HasPrefix(it.Label, "FULL:") || strings.HasPrefix(it.Label, "SUMMARY:") {
			b.WriteString("- ")
			b.WriteString(it.Label)
			b.WriteString("\n")
			any = true
		}
	}
	if !any {
		return ""
	}
	return b.String()
}

// SummarizeHistoryIfNeeded replaces workHistory with a single summary
// string (via an LLM call) once its length reaches m.historySummaryThreshold,
// clearing the raw list atomically. Returns the (possibly
// unmodified) history and whether a summary replaced it.
func (m *Manager) SummarizeHistoryIfNeeded(ctx context.Context, workHistory []string) (summarized []string, didSummarize bool, err error) {
	if len(workHistory) < m.historySummaryThreshold {
		return workHistory, false, nil
	}

	systemPrompt := "Summarize the following engineering work history into a single concise paragraph " +
		"an engineer could use to recall what was done, in order."
	reply, invokeErr := m.agents.Invoke(ctx, systemPrompt, []providers.Message{
		{Role: providers.RoleUser, Content: strings.Join(workHistory, "\n")},
	}, 0.0, nil)
	if invokeErr != nil {
		return workHistory, false, fmt.Errorf("contextwin: summarizing work history: %w", invokeErr)
	}

	return []string{reply.Content}, true, nil
}

// BuildFixPrompt assembles the remediation manager's fix-task prompt: the
// diagnosis plus the full content of every file the task is permitted to
// rewrite, each tagged FULL: in the availability note.
func (m *Manager) BuildFixPrompt(description string, filesToFix []string) (string, error) {
	var items []Item
	for _, path := range filesToFix {
		content, err := m.fs.Read(path)
		if err != nil {
			content = "" // new file the LLM is expected to create
		}
		items = append(items, Item{
			Priority: PriorityFullFileContent,
			Label:    "FULL:" + path,
			Content:  fmt.Sprintf("File %q current content:\n%s", path, content),
			OneShot:  true,
		})
	}

	tree, err := m.fs.DirectoryTreeMarkdown()
	if err != nil {
		tree = ""
	}

	assembly, err := m.Build(items, "", tree)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Diagnosis:\n")
	b.WriteString(description)
	b.WriteString("\n\nFiles you must rewrite, each as one file_content block:\n")
	for _, f := range filesToFix {
		b.WriteString("- ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(assembly.String())
	return b.String(), nil
}
