package stub

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

// Renderer parses and executes fixture templates, caching parsed
// templates by name.
type Renderer struct {
	funcMap template.FuncMap
	cache   map[string]*template.Template
	mu      sync.RWMutex
}

// NewRenderer creates a renderer with the naming helpers installed.
func NewRenderer() *Renderer {
	return &Renderer{
		funcMap: defaultFuncMap(),
		cache:   make(map[string]*template.Template),
	}
}

// RenderString renders templateStr with data. name keys the cache and
// appears in errors.
func (r *Renderer) RenderString(name, templateStr string, data any) (string, error) {
	key := name + "\x00" + templateStr

	r.mu.RLock()
	tmpl, ok := r.cache[key]
	r.mu.RUnlock()

	if !ok {
		var err error
		tmpl, err = template.New(name).Funcs(r.funcMap).Option("missingkey=error").Parse(templateStr)
		if err != nil {
			return "", fmt.Errorf("failed to parse template '%s': %w", name, err)
		}
		r.mu.Lock()
		r.cache[key] = tmpl
		r.mu.Unlock()
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template '%s': %w", name, err)
	}
	return buf.String(), nil
}

func defaultFuncMap() template.FuncMap {
	return template.FuncMap{
		"snake":  Snake,  // UserLogin → user_login
		"pascal": Pascal, // user_login → UserLogin
		"camel":  Camel,  // user_login → userLogin
		"plural": Plural, // user → users

		"upper":   strings.ToUpper,
		"lower":   strings.ToLower,
		"trim":    strings.TrimSpace,
		"replace": strings.ReplaceAll,
		"quote":   func(s string) string { return fmt.Sprintf("%q", s) },
	}
}
