// Package dashboard owns the state of the sales dashboard: the loaded history,
// the filtered view, aggregate statistics and the chart on each canvas.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"salesdash/internal/api"
	"salesdash/internal/format"
	"salesdash/internal/forms"
	"salesdash/internal/models"
	"salesdash/internal/notify"
)

var (
	ErrNoDateSelected = errors.New("no filter date selected")
	ErrNotConfirmed   = errors.New("deletion not confirmed")
	ErrNoFile         = errors.New("no file selected")
	ErrNotCSV         = errors.New("only CSV files can be uploaded")
	ErrUnknownRecord  = errors.New("unknown record")
	ErrInvalidForm    = errors.New("form has invalid fields")
)

// Form ids
const (
	UploadForm   = "upload"
	QuickAddForm = "quick-add"
)

// FilterPreferenceKey stores the last applied date window
const FilterPreferenceKey = "dashboard.filter"

// History is the backend the controller reads records from
type History interface {
	FetchHistory(ctx context.Context, module string) ([]models.AnalysisRecord, error)
	DeleteHistory(ctx context.Context, id string) error
	UploadCSV(ctx context.Context, filename string, r io.Reader) (api.UploadResult, error)
	SaveAnalysis(ctx context.Context, req api.SaveRequest) (string, error)
	ExportURL() string
}

// Preferences persists small UI settings between runs
type Preferences interface {
	Save(key string, v any) bool
	LoadInto(key string, dst any) bool
}

// Filter is a date window; a zero bound is open
type Filter struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether neither bound is set
func (f Filter) IsZero() bool {
	return f.Start.IsZero() && f.End.IsZero()
}

type storedFilter struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Options configure a Controller
type Options struct {
	Module      string
	EditorPath  string
	Location    *time.Location
	Logger      zerolog.Logger
	Notifier    *notify.Manager
	Forms       *forms.Manager
	Preferences Preferences
}

// Controller is the single owner of dashboard state. Backend calls run
// without the lock; results are swapped in under it.
type Controller struct {
	history History
	module  string
	editor  string
	loc     *time.Location
	logger  zerolog.Logger
	notes   *notify.Manager
	forms   *forms.Manager
	prefs   Preferences

	mu          sync.RWMutex
	all         *models.RecordSet // oldest first
	filtered    *models.RecordSet // oldest first
	filter      Filter
	stats       models.DashboardStats
	tableOpen   bool
	initialized bool
	canvases    map[string]*Canvas
}

// New creates a controller reading from history
func New(history History, opts Options) *Controller {
	c := &Controller{
		history:  history,
		module:   opts.Module,
		editor:   opts.EditorPath,
		loc:      opts.Location,
		logger:   opts.Logger,
		notes:    opts.Notifier,
		forms:    opts.Forms,
		prefs:    opts.Preferences,
		all:      &models.RecordSet{},
		filtered: &models.RecordSet{},
		canvases: make(map[string]*Canvas, len(CanvasIDs)),
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	if c.notes == nil {
		c.notes = notify.New()
	}
	if c.forms == nil {
		c.forms = forms.NewManager()
	}
	for _, id := range CanvasIDs {
		c.canvases[id] = NewCanvas(id)
	}
	return c
}

// Close destroys every chart instance and dismisses pending notifications
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, canvas := range c.canvases {
		canvas.Clear()
	}
	c.notes.Clear()
}

// Notifier returns the notification manager
func (c *Controller) Notifier() *notify.Manager {
	return c.notes
}

// Forms returns the form manager
func (c *Controller) Forms() *forms.Manager {
	return c.forms
}

// Location returns the zone dates are resolved in
func (c *Controller) Location() *time.Location {
	return c.loc
}

// Initialized reports whether Init has completed once
func (c *Controller) Initialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// Init loads the dashboard for the first time. A filter applied before the
// first load is kept and applied to the loaded records.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.RLock()
	pending := c.filter
	if c.initialized {
		pending = Filter{}
	}
	c.mu.RUnlock()

	err := c.Refresh(ctx)

	c.mu.Lock()
	c.initialized = true
	if err == nil && !pending.IsZero() {
		c.filter = pending
		c.filtered = c.all.FilterByDateRange(pending.Start, pending.End).SortAscending()
		c.recomputeLocked()
	}
	c.mu.Unlock()

	if err != nil {
		c.notes.Error("Failed to load the dashboard.")
	}
	return err
}

// Refresh reloads every record from the backend and resets the filter.
// On failure the current state is kept.
func (c *Controller) Refresh(ctx context.Context) error {
	records, err := c.history.FetchHistory(ctx, c.module)
	if err != nil {
		c.logger.Error().Err(err).Str("module", c.module).Msg("failed to load history")
		return fmt.Errorf("loading history: %w", err)
	}

	all := models.NewRecordSet(records).SortAscending()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.all = all
	c.filtered = all.Copy()
	c.filter = Filter{}
	c.recomputeLocked()

	c.logger.Debug().Int("records", all.Len()).Msg("history loaded")
	return nil
}

// recomputeLocked recalculates stats and re-renders every canvas. Caller holds mu.
func (c *Controller) recomputeLocked() {
	c.stats = CalculateStats(c.filtered)
	c.stats.Filtered = !c.filter.IsZero()

	for id, cfg := range BuildCharts(c.filtered, c.loc) {
		c.canvases[id].Render(cfg)
	}
}

// Stats returns the statistics of the filtered view
func (c *Controller) Stats() models.DashboardStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// StatsView returns the display state of every KPI element
func (c *Controller) StatsView() models.StatsView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return BuildStatsView(c.stats, c.filter)
}

// Records returns a copy of the filtered view, oldest first
func (c *Controller) Records() []models.AnalysisRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filtered.Copy().Records
}

// AllRecords returns a copy of every loaded record, oldest first
func (c *Controller) AllRecords() []models.AnalysisRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.all.Copy().Records
}

// Chart returns the live chart on a canvas. ok is false for an unknown canvas;
// a nil chart means the canvas is cleared.
func (c *Controller) Chart(canvasID string) (chart *Chart, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	canvas, ok := c.canvases[canvasID]
	if !ok {
		return nil, false
	}
	return canvas.Chart(), true
}

// ChartPNG renders the chart of a canvas as PNG. It reports false when the
// canvas is cleared or unknown.
func (c *Controller) ChartPNG(canvasID string, w io.Writer) (bool, error) {
	chart, ok := c.Chart(canvasID)
	if !ok || chart == nil {
		return false, nil
	}
	return true, RenderPNG(canvasID, chart.Config, w)
}

// Filter returns the active date window
func (c *Controller) Filter() Filter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter
}

// SavedFilter returns the last applied date window from the preference store
func (c *Controller) SavedFilter() Filter {
	var stored storedFilter
	if c.prefs == nil || !c.prefs.LoadInto(FilterPreferenceKey, &stored) {
		return Filter{}
	}
	start, _ := format.ParseInputDate(stored.Start, c.loc)
	end, _ := format.ParseInputDate(stored.End, c.loc)
	return Filter{Start: start, End: end}
}

// ApplyFilterValues parses yyyy-mm-dd inputs and applies them as a filter
func (c *Controller) ApplyFilterValues(start, end string) (int, error) {
	from, err := format.ParseInputDate(start, c.loc)
	if err != nil {
		c.notes.Error("Invalid start date.")
		return 0, fmt.Errorf("start date: %w", err)
	}
	to, err := format.ParseInputDate(end, c.loc)
	if err != nil {
		c.notes.Error("Invalid end date.")
		return 0, fmt.Errorf("end date: %w", err)
	}
	return c.ApplyFilters(from, to)
}

// ApplyFilters narrows the view to records within [start 00:00, end 23:59:59.999…]
// in the controller's zone. At least one bound is required.
func (c *Controller) ApplyFilters(start, end time.Time) (int, error) {
	if start.IsZero() && end.IsZero() {
		c.notes.Error("Please select a date to filter by.")
		return 0, ErrNoDateSelected
	}
	if !start.IsZero() {
		start = models.StartOfDay(start.In(c.loc))
	}
	if !end.IsZero() {
		end = models.StartOfDay(end.In(c.loc))
	}

	c.mu.Lock()
	c.filter = Filter{Start: start, End: end}
	c.filtered = c.all.FilterByDateRange(start, end).SortAscending()
	c.recomputeLocked()
	count := c.filtered.Len()
	c.mu.Unlock()

	c.saveFilter(Filter{Start: start, End: end})
	c.notes.Success(fmt.Sprintf("Filter applied: showing %d records.", count))
	return count, nil
}

// ResetFilters restores the full record set
func (c *Controller) ResetFilters() {
	c.mu.Lock()
	c.filter = Filter{}
	c.filtered = c.all.Copy()
	c.recomputeLocked()
	c.mu.Unlock()

	c.saveFilter(Filter{})
	c.notes.Success("Filters have been reset.")
}

func (c *Controller) saveFilter(f Filter) {
	if c.prefs == nil {
		return
	}
	stored := storedFilter{}
	if !f.Start.IsZero() {
		stored.Start = format.InputDate(f.Start)
	}
	if !f.End.IsZero() {
		stored.End = format.InputDate(f.End)
	}
	c.prefs.Save(FilterPreferenceKey, stored)
}

// ShowTable opens the record table
func (c *Controller) ShowTable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tableOpen = true
}

// HideTable closes the record table
func (c *Controller) HideTable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tableOpen = false
}

// TableOpen reports whether the record table is shown
func (c *Controller) TableOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tableOpen
}

// TableRows returns the filtered view as formatted rows, newest first
func (c *Controller) TableRows() []models.TableRow {
	c.mu.RLock()
	desc := c.filtered.SortDescending()
	c.mu.RUnlock()

	rows := make([]models.TableRow, 0, desc.Len())
	for i := range desc.Records {
		r := &desc.Records[i]
		rows = append(rows, models.TableRow{
			ID:           r.ID,
			Date:         format.DateTime(r.Timestamp.In(c.loc)),
			Period:       r.Metadata.Period,
			SalesAmount:  format.Currency(r.Inputs.SalesAmount),
			NetSales:     format.Currency(r.Results.NetSales),
			AdCost:       format.Currency(r.Inputs.AdvertisingCost),
			AdRatio:      format.Percentage(r.Results.SalesAdvertisingRatio),
			RefundRatio:  format.PercentValue(r.RefundRatio(), 2),
			DetailURL:    "/dashboard/records/" + url.PathEscape(r.ID),
			DeleteAction: "/dashboard/records/" + url.PathEscape(r.ID) + "/delete",
		})
	}
	return rows
}

// ViewURL returns the editor address for a loaded record
func (c *Controller) ViewURL(id string) (string, error) {
	c.mu.RLock()
	_, ok := c.all.Find(id)
	c.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRecord, id)
	}
	return c.editor + "?load=" + url.QueryEscape(id), nil
}

// DeleteRecord removes a record after explicit confirmation, then reloads
func (c *Controller) DeleteRecord(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}

	if err := c.history.DeleteHistory(ctx, id); err != nil {
		c.logger.Error().Err(err).Str("id", id).Msg("failed to delete record")
		c.notes.Error("Failed to delete the record: " + api.Message(err))
		return fmt.Errorf("deleting %s: %w", id, err)
	}

	c.notes.Success("Record deleted.")
	if err := c.Refresh(ctx); err != nil {
		c.notes.Error("Failed to reload the dashboard.")
		return err
	}
	return nil
}

// Upload sends a CSV file to the backend and reloads. The upload form is
// reset whatever the outcome.
func (c *Controller) Upload(ctx context.Context, filename string, r io.Reader) (int, error) {
	defer c.forms.Reset(UploadForm)

	if r == nil || strings.TrimSpace(filename) == "" {
		c.notes.Warning("Please choose a CSV file to upload.")
		return 0, ErrNoFile
	}
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		c.notes.Warning("Only CSV files can be uploaded.")
		return 0, ErrNotCSV
	}

	c.notes.Info("Uploading file...")
	res, err := c.history.UploadCSV(ctx, filename, r)
	if err != nil {
		c.logger.Error().Err(err).Str("file", filename).Msg("upload failed")
		c.notes.Error("Upload failed: " + api.Message(err))
		return 0, fmt.Errorf("uploading %s: %w", filename, err)
	}

	c.notes.Success(fmt.Sprintf("%d records uploaded successfully.", res.Count))
	if err := c.Refresh(ctx); err != nil {
		c.notes.Error("Failed to reload the dashboard.")
		return res.Count, err
	}
	return res.Count, nil
}

// ExportURL is where the full backend export is downloaded from
func (c *Controller) ExportURL() string {
	return c.history.ExportURL()
}

// ExportFiltered writes the filtered view as an xlsx workbook
func (c *Controller) ExportFiltered(w io.Writer) error {
	c.mu.RLock()
	rs := c.filtered.Copy()
	c.mu.RUnlock()

	return WriteWorkbook(rs, w)
}
