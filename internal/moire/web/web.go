// Package web holds the embedded dashboard page and its static assets.
package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*.css static/*.js
var assetsFS embed.FS

// Templates parses the page templates; index.html is the dashboard.
func Templates() *template.Template {
	return template.Must(template.ParseFS(templatesFS, "templates/*.html"))
}

// Static exposes the asset directory rooted at static/.
func Static() (fs.FS, error) {
	return fs.Sub(assetsFS, "static")
}

// Page is the data index.html renders with.
type Page struct {
	Title   string
	Version string
}
