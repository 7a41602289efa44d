package web

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/navikt/benchroom/internal/models"
)

//go:embed templates
var templateFS embed.FS

// parseTemplates parses the public and admin pages into one template set
func parseTemplates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"formatDateTime":    formatDateTime,
		"formatDateTimePtr": formatDateTimePtr,
		"benchList":         benchList,
	}).ParseFS(templateFS, "templates/*.html", "templates/admin/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return tmpl, nil
}

// Page carries the fields every full page renders in its header and footer
type Page struct {
	Title       string
	LastUpdated string
	CurrentYear int
}

func newPage(title string, now time.Time) Page {
	return Page{
		Title:       title,
		LastUpdated: now.Format("2006-01-02 15:04:05"),
		CurrentYear: now.Year(),
	}
}

// formatDateTime formats a time for display in admin interface
func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatDateTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatDateTime(*t)
}

func benchList(benches []models.Bench) string {
	if len(benches) == 0 {
		return "none"
	}
	return strings.Join(models.BenchNames(benches), ", ")
}
