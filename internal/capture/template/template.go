// Package template implements the small placeholder-substitution language
// used for notification bodies and admin views. Placeholders look like
// {{key}} or {{nested.key|filter}}; keys address flattened nested data by
// dot-separated path.
package template

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/formrelay/capture_layer/internal/errors"
	"github.com/formrelay/capture_layer/internal/logging"
)

var tokenPattern = regexp.MustCompile(`\{\{(?P<key>[A-Za-z0-9_\-.]+)(\|(?P<filter>[A-Za-z0-9_\-]+))?\}\}`)

// FilterFunc transforms a resolved placeholder value into its rendered
// string form. Filters must be pure.
type FilterFunc func(value any) string

// FilterSet is the registry of named filters. It is populated at startup
// and read-only afterwards.
type FilterSet struct {
	filters map[string]FilterFunc
}

// NewFilterSet returns a set preloaded with the built-in filters mailto and
// fieldlist.
func NewFilterSet() *FilterSet {
	s := &FilterSet{filters: make(map[string]FilterFunc)}
	s.Add("mailto", func(v any) string {
		addr := stringify(v)
		return fmt.Sprintf("<a href='mailto:%s'>%s</a>", addr, addr)
	})
	s.Add("fieldlist", filterFieldList)
	return s
}

// Add registers a named filter. Call during startup only.
func (s *FilterSet) Add(name string, f FilterFunc) {
	s.filters[name] = f
}

// transforms are the globally available string transforms a filter name can
// fall back to when no registered filter matches.
var transforms = map[string]FilterFunc{
	"upper": func(v any) string { return strings.ToUpper(stringify(v)) },
	"lower": func(v any) string { return strings.ToLower(stringify(v)) },
	"title": func(v any) string { return titleCase(stringify(v)) },
	"trim":  func(v any) string { return strings.TrimSpace(stringify(v)) },
}

// Engine renders template bodies. Template files are resolved against a
// configured directory.
type Engine struct {
	dir     string
	filters *FilterSet
	log     *logging.Logger
}

// New creates an engine reading template files from dir.
func New(dir string, filters *FilterSet, log *logging.Logger) *Engine {
	if filters == nil {
		filters = NewFilterSet()
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Engine{dir: dir, filters: filters, log: log}
}

// RenderFile loads the named template from the engine directory and renders
// it. A missing template is a configuration error.
func (e *Engine) RenderFile(name string, data map[string]any) (string, error) {
	body, err := os.ReadFile(filepath.Join(e.dir, name))
	if err != nil {
		return "", errors.Configuration("template %q not found", name)
	}
	return e.Render(string(body), data), nil
}

// Render substitutes every placeholder in body using data. Unresolved keys
// render as empty strings; a template without placeholders is returned
// unchanged.
func (e *Engine) Render(body string, data map[string]any) string {
	vars := make(map[string]any)
	flatten(data, "", vars)

	matches := tokenPattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return body
	}

	// Duplicate tokens are replaced once.
	replacements := make(map[string]string)
	for _, m := range matches {
		raw, key, filter := m[0], m[1], m[3]
		if _, done := replacements[raw]; done {
			continue
		}
		replacements[raw] = e.applyFilter(filter, vars[key])
	}

	pairs := make([]string, 0, len(replacements)*2)
	for raw, value := range replacements {
		pairs = append(pairs, raw, value)
	}
	return strings.NewReplacer(pairs...).Replace(body)
}

// applyFilter resolves a filter name against the registered set first, then
// the global transform table. An unknown filter passes the value through
// unchanged with a warning.
func (e *Engine) applyFilter(name string, value any) string {
	if name == "" {
		return stringify(value)
	}
	if f, ok := e.filters.filters[name]; ok {
		return f(value)
	}
	if f, ok := transforms[name]; ok {
		return f(value)
	}
	e.log.WithField("filter", name).Warn("unknown template filter")
	return stringify(value)
}

// flatten emits dotted-path entries for nested mappings while keeping the
// original nested value addressable at its own key, so filters can act on
// the raw mapping. Spaces in keys become underscores.
func flatten(data map[string]any, prefix string, out map[string]any) {
	for key, value := range data {
		key = strings.ReplaceAll(key, " ", "_")
		switch nested := value.(type) {
		case map[string]any:
			flatten(nested, prefix+key+".", out)
		case map[string]string:
			sub := make(map[string]any, len(nested))
			for k, v := range nested {
				sub[k] = v
			}
			flatten(sub, prefix+key+".", out)
			value = sub
		}
		out[prefix+key] = value
	}
}

func filterFieldList(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return stringify(v)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", titleCase(k), stringify(m[k]))
	}
	return b.String()
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(v)
	}
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
