// Package templates renders the dashboard's embedded html/template pages and
// serves its static assets.
package templates

import (
	"bufio"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"salesdash/internal/format"
)

//go:embed html
var embedded embed.FS

//go:embed static
var staticFiles embed.FS

// Static returns the files served under /static/
func Static() fs.FS {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Options configure a Renderer
type Options struct {
	// Dir overrides the embedded templates with a directory on disk holding
	// layouts/, pages/ and partials/. Mostly useful with Debug.
	Dir string
	// Debug reparses the templates before every render
	Debug  bool
	Logger zerolog.Logger
}

// Renderer handles template rendering
type Renderer struct {
	fsys   fs.FS
	debug  bool
	logger zerolog.Logger

	mu        sync.RWMutex
	templates *template.Template
}

// New creates a renderer and parses every template once
func New(opts Options) (*Renderer, error) {
	r := &Renderer{
		debug:  opts.Debug,
		logger: opts.Logger,
	}
	if opts.Dir != "" {
		r.fsys = os.DirFS(opts.Dir)
	} else {
		sub, err := fs.Sub(embedded, "html")
		if err != nil {
			return nil, fmt.Errorf("opening embedded templates: %w", err)
		}
		r.fsys = sub
	}

	if err := r.loadTemplates(); err != nil {
		return nil, err
	}
	return r, nil
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"currency":      format.Currency,
		"number":        format.Number,
		"percentage":    format.Percentage,
		"percentValue":  format.PercentValue,
		"signedPercent": format.SignedPercent,
		"date":          format.Date,
		"dateTime":      format.DateTime,
		"inputDate":     format.InputDate,
		"chartLabel":    format.ChartLabel,
		"toJSON":        toJSON,
		"dict":          dict,
		"lower":         strings.ToLower,
		"contains":      strings.Contains,
		"join":          strings.Join,
		"add":           func(a, b int) int { return a + b },
	}
}

// loadTemplates parses all templates and checks every {{template}} reference
func (r *Renderer) loadTemplates() error {
	tmpl := template.New("").Funcs(funcMap())

	var files []string
	for _, dir := range []string{"layouts", "pages", "partials"} {
		matches, err := fs.Glob(r.fsys, dir+"/*.html")
		if err != nil {
			return fmt.Errorf("error globbing %s: %w", dir, err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return fmt.Errorf("no template files found")
	}

	var parseErrors []string
	for _, file := range files {
		content, err := fs.ReadFile(r.fsys, file)
		if err != nil {
			parseErrors = append(parseErrors, fmt.Sprintf("  %s: failed to read: %v", file, err))
			continue
		}
		if _, err := tmpl.New(path.Base(file)).Parse(string(content)); err != nil {
			parseErrors = append(parseErrors, formatTemplateError(file, string(content), err))
		}
	}
	if len(parseErrors) > 0 {
		for _, e := range parseErrors {
			r.logger.Error().Msg("template parse error" + e)
		}
		return fmt.Errorf("template parsing failed with %d error(s)", len(parseErrors))
	}

	if err := r.validateTemplateReferences(tmpl, files); err != nil {
		return err
	}

	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()

	r.logger.Debug().Int("files", len(files)).Msg("templates loaded")
	return nil
}

// formatTemplateError formats a template error with the surrounding lines
func formatTemplateError(file, content string, err error) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\n  File: %s\n", file))

	errStr := err.Error()
	lineNum := extractLineNumber(errStr)
	if lineNum <= 0 {
		sb.WriteString(fmt.Sprintf("  Error: %s\n", errStr))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("  Line: %d\n", lineNum))
	sb.WriteString(fmt.Sprintf("  Error: %s\n", errStr))
	sb.WriteString("  Context:\n")

	lines := strings.Split(content, "\n")
	start := max(lineNum-3, 0)
	end := min(lineNum+2, len(lines))
	for i := start; i < end; i++ {
		marker := "   "
		if i+1 == lineNum {
			marker = ">>>"
		}
		sb.WriteString(fmt.Sprintf("    %s %4d | %s\n", marker, i+1, lines[i]))
	}
	return sb.String()
}

var lineNumberRe = regexp.MustCompile(`:(\d+):`)

// extractLineNumber pulls the ":LINE:" part out of a template error
func extractLineNumber(errStr string) int {
	matches := lineNumberRe.FindStringSubmatch(errStr)
	if len(matches) < 2 {
		return 0
	}
	var lineNum int
	fmt.Sscanf(matches[1], "%d", &lineNum)
	return lineNum
}

var templateCallRe = regexp.MustCompile(`\{\{-?\s*template\s+"([^"]+)"`)

// validateTemplateReferences checks that all {{template "name"}} calls reference defined templates
func (r *Renderer) validateTemplateReferences(tmpl *template.Template, files []string) error {
	defined := make(map[string]bool)
	for _, t := range tmpl.Templates() {
		if t.Name() != "" {
			defined[t.Name()] = true
		}
	}

	var refErrors []string
	for _, file := range files {
		content, err := fs.ReadFile(r.fsys, file)
		if err != nil {
			continue
		}

		scanner := bufio.NewScanner(strings.NewReader(string(content)))
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := scanner.Text()
			for _, match := range templateCallRe.FindAllStringSubmatch(line, -1) {
				if !defined[match[1]] {
					refErrors = append(refErrors, fmt.Sprintf("%s:%d: undefined template %q", file, lineNum, match[1]))
				}
			}
		}
	}

	if len(refErrors) > 0 {
		for _, e := range refErrors {
			r.logger.Error().Msg(e)
		}
		return fmt.Errorf("found %d undefined template reference(s)", len(refErrors))
	}
	return nil
}

// Reload reparses the templates
func (r *Renderer) Reload() error {
	return r.loadTemplates()
}

// Render renders a full page
func (r *Renderer) Render(w http.ResponseWriter, name string, data interface{}) error {
	return r.render(w, name, data)
}

// RenderPartial renders a fragment without the layout
func (r *Renderer) RenderPartial(w http.ResponseWriter, name string, data interface{}) error {
	return r.render(w, name, data)
}

func (r *Renderer) render(w http.ResponseWriter, name string, data interface{}) error {
	if r.debug {
		if err := r.loadTemplates(); err != nil {
			r.logger.Error().Err(err).Msg("error reloading templates")
		}
	}

	// render into a buffer so a failing template never leaves half a page
	var buf strings.Builder
	if err := r.ExecuteTemplate(&buf, name, data); err != nil {
		r.logger.Error().Err(err).Str("template", name).Msg("error rendering template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := io.WriteString(w, buf.String())
	return err
}

// RenderToString renders a template to a string
func (r *Renderer) RenderToString(name string, data interface{}) (string, error) {
	var buf strings.Builder
	if err := r.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ExecuteTemplate executes a template to a writer
func (r *Renderer) ExecuteTemplate(w io.Writer, name string, data interface{}) error {
	r.mu.RLock()
	tmpl := r.templates
	r.mu.RUnlock()
	return tmpl.ExecuteTemplate(w, name, data)
}

// toJSON embeds v in a <script> block. html/template escapes the result for
// the JS context it lands in.
func toJSON(v interface{}) (template.JS, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return template.JS(data), nil
}

// dict creates a map from key-value pairs
func dict(values ...interface{}) (map[string]interface{}, error) {
	if len(values)%2 != 0 {
		return nil, fmt.Errorf("dict needs an even number of arguments")
	}
	result := make(map[string]interface{}, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key %v is not a string", values[i])
		}
		result[key] = values[i+1]
	}
	return result, nil
}
