package contextwin

// Framework identifies the web stack a ProjectState was initialized for, so
// the priority-10 rules slot can carry stack-specific guidance
// instead of generic advice.
type Framework string

const (
	FrameworkDjango  Framework = "django"
	FrameworkFlask   Framework = "flask"
	FrameworkNode    Framework = "node"
	FrameworkReact   Framework = "react"
	FrameworkUnknown Framework = ""
)

// frameworkRules holds the fixed priority-10 workflow guidance per
// framework, adapted from each plugin's adaptive_prompts module.
var frameworkRules = map[Framework]string{ //nolint:gochecknoglobals
	FrameworkDjango: `Django workflow guidance:
- Sequence features in dependency order: startapp, then register the app in
  INSTALLED_APPS before anything else touches it, then models.py, admin.py,
  makemigrations/migrate, forms.py, views.py, app-level urls.py, then wire
  the app's urls.py into the project urls.py with include().
- Models must subclass models.Model; standalone classes are not persisted.
- Use the ORM to avoid SQL injection and the template engine's auto-escaping
  to avoid XSS; never hardcode SECRET_KEY.
- Prefer several small edits (one file, one migration) over one large change.`,

	FrameworkFlask: `Flask workflow guidance:
- Build up app.py/__init__.py, then config.py, then models.py (if a database
  is needed), then routes, then templates/, then static/.
- Jinja2 auto-escaping handles XSS by default; keep it on. Load secrets from
  environment variables or a config file, never hardcoded.
- For anything beyond a small app, organize routes with Blueprints.`,

	FrameworkNode: `Node.js/Express workflow guidance:
- npm init, then npm install express (plus dotenv/mongoose/etc as needed),
  then the main server file, then routes/ (express.Router()), wired in with
  app.use, then controllers/, then models/ if a database is used.
- Use dotenv for secrets; validate and sanitize all user input.
- This is asynchronous code: use async/await for I/O rather than blocking
  the event loop.`,

	FrameworkReact: `React support is experimental in this engine: prefer small,
verifiable component-level edits and expect to fall back to the generic
fix strategy more often than with the other supported frameworks.`,
}

// RulesFor returns the fixed workflow guidance for f, or an empty string for
// an unrecognized or unset framework.
func RulesFor(f Framework) string {
	return frameworkRules[f]
}
