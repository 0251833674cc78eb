// Package dashboard serves the sales dashboard page and its form actions.
// Every mutating action is a POST that redirects back to /dashboard, where the
// outcome is shown as a notification.
package dashboard

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"salesdash/internal/dashboard"
	"salesdash/internal/format"
	httpx "salesdash/internal/http"
	"salesdash/internal/models"
	"salesdash/internal/templates"
)

// DashboardPath is where every action redirects back to
const DashboardPath = "/dashboard"

const maxUploadSize = 10 << 20

var canvasTitles = map[string]string{
	dashboard.SalesTrendCanvas:     "Sales trend",
	dashboard.AdDistributionCanvas: "Ad ratio distribution",
	dashboard.RatioTrendCanvas:     "Refund and discount rates",
}

// Handler exposes a dashboard controller over HTTP
type Handler struct {
	ctrl       *dashboard.Controller
	renderer   *templates.Renderer
	editorPath string
	version    string
}

// New creates a handler. renderer may be nil, in which case pages degrade to
// a placeholder.
func New(ctrl *dashboard.Controller, renderer *templates.Renderer, editorPath, version string) *Handler {
	return &Handler{
		ctrl:       ctrl,
		renderer:   renderer,
		editorPath: editorPath,
		version:    version,
	}
}

// RegisterRoutes registers all dashboard routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/dashboard", h.handleDashboard)
	r.Get("/dashboard/stats", h.handleStats)
	r.Get("/dashboard/charts/{canvas}", h.handleChart)
	r.Post("/dashboard/filter", h.handleFilter)
	r.Post("/dashboard/filter/reset", h.handleFilterReset)
	r.Post("/dashboard/table/show", h.handleTableShow)
	r.Post("/dashboard/table/hide", h.handleTableHide)
	r.Post("/dashboard/records", h.handleQuickAdd)
	r.Get("/dashboard/records/{id}", h.handleRecord)
	r.Post("/dashboard/records/{id}/delete", h.handleDelete)
	r.Post("/dashboard/upload", h.handleUpload)
	r.Get("/dashboard/export", h.handleExport)
	r.Get("/dashboard/export/filtered.xlsx", h.handleExportFiltered)
	r.Get("/dashboard/notifications", h.handleNotifications)
}

// ensureLoaded runs the first load lazily so the service starts even when the
// backend is down
func (h *Handler) ensureLoaded(r *http.Request) {
	if h.ctrl.Initialized() {
		return
	}
	if err := h.ctrl.Init(r.Context()); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("dashboard initial load failed")
	}
}

type canvasView struct {
	ID    string
	Title string
	Empty bool
}

func (h *Handler) basePage(title string) map[string]interface{} {
	return map[string]interface{}{
		"Title":         title,
		"ActiveTab":     "dashboard",
		"EditorPath":    h.editorPath,
		"Version":       h.version,
		"Notifications": h.ctrl.Notifier().Active(),
	}
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	h.ensureLoaded(r)

	if r.URL.Query().Get("refresh") == "1" {
		if err := h.ctrl.Refresh(r.Context()); err != nil {
			h.ctrl.Notifier().Error("Failed to reload the dashboard.")
		}
	}

	filter := h.ctrl.Filter()
	if filter.IsZero() {
		filter = h.ctrl.SavedFilter()
	}

	canvases := make([]canvasView, 0, len(dashboard.CanvasIDs))
	charts := make(map[string]*models.ChartConfig, len(dashboard.CanvasIDs))
	for _, id := range dashboard.CanvasIDs {
		chart, _ := h.ctrl.Chart(id)
		view := canvasView{ID: id, Title: canvasTitles[id], Empty: chart == nil}
		if chart != nil {
			cfg := chart.Config
			charts[id] = &cfg
		} else {
			charts[id] = nil
		}
		canvases = append(canvases, view)
	}

	tableOpen := h.ctrl.TableOpen()
	var rows []models.TableRow
	if tableOpen {
		rows = h.ctrl.TableRows()
	}

	data := h.basePage("Dashboard")
	data["Stats"] = h.ctrl.StatsView()
	data["Filter"] = map[string]string{
		"Start": format.InputDate(filter.Start),
		"End":   format.InputDate(filter.End),
	}
	data["Canvases"] = canvases
	data["Charts"] = charts
	data["TableOpen"] = tableOpen
	data["Rows"] = rows
	data["Upload"] = h.ctrl.Forms().State(dashboard.UploadForm)
	data["QuickAdd"] = h.ctrl.Forms().State(dashboard.QuickAddForm)

	httpx.RenderTemplate(w, h.renderer, "dashboard", data)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	h.ensureLoaded(r)
	httpx.JSON(w, http.StatusOK, map[string]interface{}{
		"stats": h.ctrl.Stats(),
		"view":  h.ctrl.StatsView(),
	})
}

// handleChart serves /dashboard/charts/{canvas} as Chart.js JSON and
// /dashboard/charts/{canvas}.png as an image
func (h *Handler) handleChart(w http.ResponseWriter, r *http.Request) {
	h.ensureLoaded(r)

	canvasID, asPNG := strings.CutSuffix(chi.URLParam(r, "canvas"), ".png")
	chart, ok := h.ctrl.Chart(canvasID)
	if !ok {
		h.renderError(w, r, http.StatusNotFound, "Unknown chart.")
		return
	}
	if chart == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if !asPNG {
		httpx.JSON(w, http.StatusOK, chart.Config)
		return
	}

	var buf bytes.Buffer
	if err := dashboard.RenderPNG(canvasID, chart.Config, &buf); err != nil {
		httpx.ErrorResponse(w, r, "Error rendering chart", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (h *Handler) handleFilter(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.ErrorResponse(w, r, "Invalid form", http.StatusBadRequest)
		return
	}
	h.ensureLoaded(r)

	count, err := h.ctrl.ApplyFilterValues(r.PostFormValue("start"), r.PostFormValue("end"))
	if httpx.WantsJSON(r) {
		if err != nil {
			httpx.JSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": err.Error()})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "count": count})
		return
	}
	httpx.SeeOther(w, r, DashboardPath)
}

func (h *Handler) handleFilterReset(w http.ResponseWriter, r *http.Request) {
	h.ensureLoaded(r)
	h.ctrl.ResetFilters()
	httpx.SeeOther(w, r, DashboardPath)
}

func (h *Handler) handleTableShow(w http.ResponseWriter, r *http.Request) {
	h.ctrl.ShowTable()
	httpx.SeeOther(w, r, DashboardPath+"#dataTableContainer")
}

func (h *Handler) handleTableHide(w http.ResponseWriter, r *http.Request) {
	h.ctrl.HideTable()
	httpx.SeeOther(w, r, DashboardPath)
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	h.ensureLoaded(r)

	target, err := h.ctrl.ViewURL(chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, http.StatusNotFound, "Record not found.")
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.ErrorResponse(w, r, "Invalid form", http.StatusBadRequest)
		return
	}
	h.ensureLoaded(r)
	id := chi.URLParam(r, "id")

	err := h.ctrl.DeleteRecord(r.Context(), id, r.PostFormValue("confirm") == "true")
	if errors.Is(err, dashboard.ErrNotConfirmed) {
		h.renderConfirmDelete(w, r, id)
		return
	}
	httpx.SeeOther(w, r, DashboardPath)
}

func (h *Handler) renderConfirmDelete(w http.ResponseWriter, r *http.Request, id string) {
	for _, row := range h.ctrl.TableRows() {
		if row.ID == id {
			data := h.basePage("Delete record")
			data["Row"] = row
			httpx.RenderTemplate(w, h.renderer, "confirm-delete", data)
			return
		}
	}
	h.renderError(w, r, http.StatusNotFound, "Record not found.")
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("unreadable upload")
		h.ctrl.Forms().Reset(dashboard.UploadForm)
		h.ctrl.Notifier().Error("Upload failed: the file could not be read.")
		httpx.SeeOther(w, r, DashboardPath)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		// reports the missing file
		h.ctrl.Upload(r.Context(), "", nil)
		httpx.SeeOther(w, r, DashboardPath)
		return
	}
	defer file.Close()

	h.ensureLoaded(r)
	h.ctrl.Upload(r.Context(), header.Filename, file)
	httpx.SeeOther(w, r, DashboardPath)
}

func (h *Handler) handleQuickAdd(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.ErrorResponse(w, r, "Invalid form", http.StatusBadRequest)
		return
	}
	h.ensureLoaded(r)

	if _, err := h.ctrl.SaveAnalysis(r.Context(), r.PostForm); errors.Is(err, dashboard.ErrInvalidForm) {
		httpx.SeeOther(w, r, DashboardPath+"#quick-add")
		return
	}
	httpx.SeeOther(w, r, DashboardPath)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.ctrl.ExportURL(), http.StatusFound)
}

func (h *Handler) handleExportFiltered(w http.ResponseWriter, r *http.Request) {
	h.ensureLoaded(r)

	var buf bytes.Buffer
	if err := h.ctrl.ExportFiltered(&buf); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("filtered export failed")
		httpx.ErrorResponse(w, r, "Error building export", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+dashboard.FilteredExportFilename+`"`)
	w.Write(buf.Bytes())
}

func (h *Handler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	httpx.RenderPartial(w, h.renderer, "notifications", h.ctrl.Notifier().Active())
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	if h.renderer == nil {
		httpx.ErrorResponse(w, r, message, status)
		return
	}
	data := h.basePage("Error")
	data["Status"] = status
	data["Message"] = message

	html, err := h.renderer.RenderToString("error", data)
	if err != nil {
		httpx.ErrorResponse(w, r, message, status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(html))
}
