package util

import (
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"
)

// templates caches parsed instruction templates by source text. Agent
// instructions are rendered on every run but change only with the catalog.
var templates sync.Map // string -> *template.Template

var templateFuncs = template.FuncMap{
	"default": func(fallback, val any) any {
		if val == nil || val == "" {
			return fallback
		}
		return val
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"join": func(sep string, items any) string {
		switch v := items.(type) {
		case []string:
			return strings.Join(v, sep)
		case []any:
			parts := make([]string, len(v))
			for i, item := range v {
				parts[i] = fmt.Sprint(item)
			}
			return strings.Join(parts, sep)
		default:
			return fmt.Sprint(items)
		}
	},
	// hours renders a duration in the planner's "2.5hrs" notation.
	"hours": func(h float64) string { return fmt.Sprintf("%.1fhrs", h) },
	"date": func(layout string, t time.Time) string { return t.Format(layout) },
}

// RenderTemplate renders text as a text/template against state. Text without
// template markers is returned unchanged.
func RenderTemplate(text string, state map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := parseCached(text)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, state); err != nil {
		return "", fmt.Errorf("render instruction: %w", err)
	}
	return b.String(), nil
}

func parseCached(text string) (*template.Template, error) {
	if t, ok := templates.Load(text); ok {
		return t.(*template.Template), nil
	}
	t, err := template.New("instruction").Funcs(templateFuncs).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse instruction: %w", err)
	}
	actual, _ := templates.LoadOrStore(text, t)
	return actual.(*template.Template), nil
}
