// Package erroranalysis parses raw command output into structured error
// records with candidate-file hints. Parsing is a rule-based
// pipeline: each rule matches a shape in stdout/stderr and extracts a
// classified ErrorRecord.
package erroranalysis

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"orchestrator/internal/structuremap"
)

// Kind classifies an ErrorRecord.
type Kind string

const (
	KindSyntaxError  Kind = "SyntaxError"
	KindImportError  Kind = "ImportError"
	KindTemplateErr  Kind = "TemplateError"
	KindLogicError   Kind = "LogicError"
	KindTestFailure  Kind = "TestFailure"
	KindCommandError Kind = "CommandError"
)

// Hints carries candidate files the Remediation Planner can route a fix to.
type Hints struct {
	CandidateFiles []string
}

// CandidateFilesOr returns h.CandidateFiles, or fallback if h is nil.
func (h *Hints) CandidateFilesOr(fallback []string) []string {
	if h == nil {
		return fallback
	}
	return h.CandidateFiles
}

// ErrorRecord is one structured diagnostic extracted from command output.
type ErrorRecord struct {
	Kind               Kind
	FilePath           string
	Line               int
	Summary            string
	RawMessage         string
	Hints              *Hints
	CommandThatProduced string
}

// rule is one (shape, extractor, classifier) pipeline stage.
type rule struct {
	name    string
	pattern *regexp.Regexp
	extract func(m []string, ctx analysisContext) ErrorRecord
}

type analysisContext struct {
	command     string
	projectRoot string
	structure   *structuremap.Map
	fullText    string
}

// pyTracebackFrame matches one `File "path", line N, in func` traceback frame,
// or the `File "path", line N` form (no function) a SyntaxError reports.
var pyTracebackFrame = regexp.MustCompile(`File "([^"]+)", line (\d+)(?:, in (\S+))?`)

var rules = []rule{ //nolint:gochecknoglobals
	{
		name:    "NoReverseMatch",
		pattern: regexp.MustCompile(`NoReverseMatch: Reverse for '([^']+)' not found`),
		extract: func(m []string, ctx analysisContext) ErrorRecord {
			urlName := m[1]
			file, line := deepestUserFrame(ctx.fullText, ctx.projectRoot)
			rec := ErrorRecord{
				Kind:       KindTemplateErr,
				FilePath:   file,
				Line:       line,
				Summary:    fmt.Sprintf("NoReverseMatch: url name %q not found", urlName),
				RawMessage: ctx.fullText,
			}
			rec.Hints = &Hints{CandidateFiles: noReverseMatchCandidates(ctx, file)}
			return rec
		},
	},
	{
		name:    "TemplateDoesNotExist",
		pattern: regexp.MustCompile(`TemplateDoesNotExist: (\S+)`),
		extract: func(m []string, ctx analysisContext) ErrorRecord {
			missing := m[1]
			file, line := deepestUserFrame(ctx.fullText, ctx.projectRoot)
			return ErrorRecord{
				Kind:       KindTemplateErr,
				FilePath:   file,
				Line:       line,
				Summary:    fmt.Sprintf("TemplateDoesNotExist: %s", missing),
				RawMessage: ctx.fullText,
				Hints:      &Hints{CandidateFiles: []string{file, missing}},
			}
		},
	},
	{
		name:    "AttributeErrorOnModule",
		pattern: regexp.MustCompile(`AttributeError: module '([^']+)' has no attribute '([^']+)'`),
		extract: func(m []string, ctx analysisContext) ErrorRecord {
			file, line := deepestUserFrame(ctx.fullText, ctx.projectRoot)
			return ErrorRecord{
				Kind:       KindLogicError,
				FilePath:   file,
				Line:       line,
				Summary:    fmt.Sprintf("AttributeError: module %q has no attribute %q", m[1], m[2]),
				RawMessage: ctx.fullText,
				Hints:      &Hints{CandidateFiles: []string{file}},
			}
		},
	},
	{
		name:    "SyntaxError",
		pattern: regexp.MustCompile(`SyntaxError: (.+)`),
		extract: func(m []string, ctx analysisContext) ErrorRecord {
			file, line := deepestUserFrame(ctx.fullText, ctx.projectRoot)
			return ErrorRecord{
				Kind:       KindSyntaxError,
				FilePath:   file,
				Line:       line,
				Summary:    fmt.Sprintf("SyntaxError: %s", strings.TrimSpace(m[1])),
				RawMessage: ctx.fullText,
				Hints:      &Hints{CandidateFiles: []string{file}},
			}
		},
	},
	{
		name:    "AssertionError",
		pattern: regexp.MustCompile(`AssertionError(?:: (.+))?`),
		extract: func(m []string, ctx analysisContext) ErrorRecord {
			file, line := deepestUserFrame(ctx.fullText, ctx.projectRoot)
			summary := "AssertionError"
			if m[1] != "" {
				summary = fmt.Sprintf("AssertionError: %s", strings.TrimSpace(m[1]))
			}
			return ErrorRecord{
				Kind:       KindTestFailure,
				FilePath:   file,
				Line:       line,
				Summary:    summary,
				RawMessage: ctx.fullText,
				Hints:      &Hints{CandidateFiles: []string{file}},
			}
		},
	},
	{
		name:    "ImportError",
		pattern: regexp.MustCompile(`(?:ImportError|ModuleNotFoundError): (.+)`),
		extract: func(m []string, ctx analysisContext) ErrorRecord {
			file, line := deepestUserFrame(ctx.fullText, ctx.projectRoot)
			return ErrorRecord{
				Kind:       KindImportError,
				FilePath:   file,
				Line:       line,
				Summary:    fmt.Sprintf("ImportError: %s", strings.TrimSpace(m[1])),
				RawMessage: ctx.fullText,
				Hints:      &Hints{CandidateFiles: []string{file}},
			}
		},
	},
}

// Analyze parses (command, stdout, stderr, exitCode) into structured
// ErrorRecords plus whatever tail text matched no rule. structure
// may be nil; candidate-file hints degrate to file-path-only in that case.
func Analyze(command, stdout, stderr string, exitCode int, projectRoot string, structure *structuremap.Map) ([]ErrorRecord, string) {
	if exitCode == 0 {
		return nil, ""
	}

	combined := stdout + "\n" + stderr
	ctx := analysisContext{command: command, projectRoot: projectRoot, structure: structure, fullText: combined}

	var records []ErrorRecord
	lines := strings.Split(combined, "\n")
	matchedSpans := make([]bool, len(lines))

	for _, r := range rules {
		for i, line := range lines {
			m := r.pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			rec := r.extract(m, ctx)
			rec.CommandThatProduced = command
			records = append(records, rec)
			matchedSpans[i] = true
		}
	}

	if len(records) == 0 {
		return nil, combined
	}

	var tail strings.Builder
	for i, line := range lines {
		if !matchedSpans[i] {
			tail.WriteString(line)
			tail.WriteString("\n")
		}
	}
	return records, strings.TrimRight(tail.String(), "\n")
}

// deepestUserFrame extracts the (file_path, line) of the deepest traceback
// frame whose path is inside projectRoot, preferring it over library frames
//.
func deepestUserFrame(text, projectRoot string) (string, int) {
	matches := pyTracebackFrame.FindAllStringSubmatch(text, -1)
	var lastFile string
	var lastLine int
	for _, m := range matches {
		path := m[1]
		if projectRoot != "" && !strings.HasPrefix(path, projectRoot) && filepath.IsAbs(path) {
			continue
		}
		lastFile = path
		lastLine, _ = strconv.Atoi(m[2])
	}
	if lastFile == "" && len(matches) > 0 {
		last := matches[len(matches)-1]
		lastFile = last[1]
		lastLine, _ = strconv.Atoi(last[2])
	}
	return lastFile, lastLine
}

// noReverseMatchCandidates collects every urlconf file the structure map
// knows (root and app-level), the views module of every app in the map, and
// the deepest user frame's file — the files that plausibly own a
// NoReverseMatch fix. Candidates are not narrowed to the originating app.
func noReverseMatchCandidates(ctx analysisContext, templateFile string) []string {
	var candidates []string
	if ctx.structure != nil {
		candidates = append(candidates, ctx.structure.URLConfFiles()...)
		for app := range ctx.structure.Django {
			if views, ok := ctx.structure.ViewsFileForApp(app); ok {
				candidates = append(candidates, views)
			}
		}
	}
	if templateFile != "" {
		candidates = append(candidates, templateFile)
	}
	return dedupe(candidates)
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
