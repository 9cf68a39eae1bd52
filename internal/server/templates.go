package server

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/neko-rr/auth-front/internal/log"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type loginPageData struct {
	RedirectTo string
}

type consentPageData struct {
	ClientID   string
	Scope      string
	ApproveURL string
	DenyURL    string
}

type errorPageData struct {
	Title   string
	Heading string
	Message string
	Hints   []string
}

func renderPage(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		log.LogErrorWithFields("server", "failed to render page", map[string]any{
			"template": name,
			"error":    err.Error(),
		})
	}
}

func renderErrorPage(w http.ResponseWriter, status int, heading, message string, hints ...string) {
	renderPage(w, status, "error.html", errorPageData{
		Title:   "Sign-in error",
		Heading: heading,
		Message: message,
		Hints:   hints,
	})
}
