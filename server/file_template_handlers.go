package server

import (
	"embed"
	"html/template"

	"github.com/jrsteele09/go-blob-drive/sessions"
)

//go:embed templates/*.html
var templateFiles embed.FS

var pageFuncs = template.FuncMap{
	"flashRole": flashRole,
}

// ParsePage parses a page template from the embedded templates directory.
func ParsePage(name string) (*template.Template, error) {
	return template.New(name).Funcs(pageFuncs).ParseFS(templateFiles, "templates/"+name)
}

// flashRole is the ARIA role of a flash message: errors and warnings interrupt, the rest are polite.
func flashRole(category string) string {
	switch category {
	case sessions.FlashError, sessions.FlashWarning:
		return "alert"
	default:
		return "status"
	}
}
