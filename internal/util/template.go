package util

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// RenderTemplate replaces template variables using Go's text/template package.
// Output is not HTML escaped; templates render prompts, not markup.
func RenderTemplate(text string, data any) (string, error) {
	if !strings.Contains(text, "{{") { // fast path: no template markers
		return text, nil
	}

	tmpl, err := newTemplate(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// ValidateTemplate reports whether text parses with the functions available
// to RenderTemplate.
func ValidateTemplate(text string) error {
	if !strings.Contains(text, "{{") {
		return nil
	}
	_, err := newTemplate(text)
	return err
}

func newTemplate(text string) (*template.Template, error) {
	return template.New("prompt").Option("missingkey=zero").Funcs(templateFuncs).Parse(text)
}

var templateFuncs = template.FuncMap{
	"default": func(defaultVal any, val any) any {
		if val == nil || val == "" {
			return defaultVal
		}
		return val
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"trim":  strings.TrimSpace,
	"join": func(sep string, items any) string {
		switch v := items.(type) {
		case []string:
			return strings.Join(v, sep)
		case []any:
			strItems := make([]string, len(v))
			for i, item := range v {
				strItems[i] = fmt.Sprintf("%v", item)
			}
			return strings.Join(strItems, sep)
		default:
			return fmt.Sprintf("%v", items)
		}
	},
}
