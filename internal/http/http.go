// Package http holds response helpers shared by the dashboard handlers.
package http

import (
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"salesdash/internal/templates"
)

// RenderTemplate renders a full page template with data
func RenderTemplate(w http.ResponseWriter, renderer *templates.Renderer, templateName string, data map[string]interface{}) {
	if renderer != nil {
		renderer.Render(w, templateName, data)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte("<html><body><h1>" + templateName + "</h1><p>Templates not loaded. Check configuration.</p></body></html>"))
}

// RenderPartial renders a partial template with data
func RenderPartial(w http.ResponseWriter, renderer *templates.Renderer, partialName string, data interface{}) {
	if renderer != nil {
		renderer.RenderPartial(w, partialName, data)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte("<div><!-- Partial " + partialName + " not loaded --></div>"))
}

// JSON writes v with the given status
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse logs and sends a plain-text error
func ErrorResponse(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	zerolog.Ctx(r.Context()).Warn().
		Int("status", statusCode).
		Str("path", r.URL.Path).
		Msg(message)
	http.Error(w, message, statusCode)
}

// SeeOther redirects after a form post
func SeeOther(w http.ResponseWriter, r *http.Request, location string) {
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// WantsJSON reports whether the client asked for JSON instead of a redirect
func WantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
