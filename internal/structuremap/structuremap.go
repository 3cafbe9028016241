// Package structuremap holds the typed, read-only project structure map the
// real code-intelligence parsers (HTML/CSS/JS/Django) populate.
// Those parsers are external collaborators out of this engine's scope
//; this package ships the Go-native shape their output takes plus a
// minimal stand-in builder so the Error Analyzer and Remediation Planner
// have something concrete to scan for candidate-file hints.
package structuremap

// HTMLForm describes one <form> the HTML parser found.
type HTMLForm struct {
	Action string
	Method string
	Fields []string
}

// HTMLFile is the typed shape of one parsed HTML file.
type HTMLFile struct {
	Forms          []HTMLForm
	TemplateTags   []string // {% url 'name' %}, {% extends %}, etc.
	URLNamesUsed   []string
}

// CSSRule is one parsed CSS rule's selector and declared properties.
type CSSRule struct {
	Selector   string
	Properties []string
}

// CSSFile is the typed shape of one parsed CSS file.
type CSSFile struct {
	Rules []CSSRule
}

// JSCall is one function/method call the JS parser recognized.
type JSCall struct {
	Name string
	Args []string
}

// JSFile is the typed shape of one parsed JS file.
type JSFile struct {
	Calls []JSCall
}

// DjangoModel is one parsed Django model class.
type DjangoModel struct {
	Name   string
	Fields []string
	App    string
}

// DjangoView is one parsed Django view function or class.
type DjangoView struct {
	Name        string
	App         string
	RendersHTML []string // template paths passed to render()
}

// DjangoURLPattern is one parsed urls.py path() entry.
type DjangoURLPattern struct {
	Name string // the url name used by {% url %} / reverse()
	App  string
	View string
	File string // which urls.py this pattern lives in (root or app-level)
}

// DjangoForm is one parsed Django forms.Form/ModelForm class.
type DjangoForm struct {
	Name   string
	App    string
	Fields []string
}

// DjangoFile aggregates everything Django-specific the parser found in one app.
type DjangoFile struct {
	App     string
	Models  []DjangoModel
	Views   []DjangoView
	URLs    []DjangoURLPattern
	Forms   []DjangoForm
}

// Map is the full, read-only per-file structure map.
// The engine never writes to it; external parsers rebuild it wholesale.
type Map struct {
	HTML   map[string]HTMLFile
	CSS    map[string]CSSFile
	JS     map[string]JSFile
	Django map[string]DjangoFile // keyed by app name
}

// New returns an empty Map, ready for a parser to populate.
func New() *Map {
	return &Map{
		HTML:   make(map[string]HTMLFile),
		CSS:    make(map[string]CSSFile),
		JS:     make(map[string]JSFile),
		Django: make(map[string]DjangoFile),
	}
}

// URLConfFiles returns every urls.py path known to the map, used by the
// Error Analyzer/Remediation Planner's NoReverseMatch candidate-file
// hinting.
func (m *Map) URLConfFiles() []string {
	seen := make(map[string]bool)
	var files []string
	for _, d := range m.Django {
		for _, u := range d.URLs {
			if u.File != "" && !seen[u.File] {
				seen[u.File] = true
				files = append(files, u.File)
			}
		}
	}
	return files
}

// ViewsFileForApp returns the conventional views.py path for app, if the
// map has any Django data for it.
func (m *Map) ViewsFileForApp(app string) (string, bool) {
	if _, ok := m.Django[app]; !ok {
		return "", false
	}
	return app + "/views.py", true
}

// ModelsFileForApp returns the conventional models.py path for app.
func (m *Map) ModelsFileForApp(app string) (string, bool) {
	if _, ok := m.Django[app]; !ok {
		return "", false
	}
	return app + "/models.py", true
}
