package server

import (
	"embed"
	"fmt"
	"html/template"
	"unicode"
)

//go:embed templates/*
var templateFiles embed.FS

var templateFuncs = template.FuncMap{
	// initial is the avatar fallback letter for a display name.
	"initial": func(s string) string {
		for _, r := range s {
			return string(unicode.ToUpper(r))
		}
		return "?"
	},
}

// parsePages parses each named page from the embedded templates directory.
func parsePages(names ...string) (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFiles, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return pages, nil
}
