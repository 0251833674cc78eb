package testutil

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"salesdash/internal/models"
)

// ExportBody is what the fake backend serves from /api/export_history
const ExportBody = "fake-xlsx-workbook"

// FakeBackend is an in-memory sales-analysis backend
type FakeBackend struct {
	URL string

	mu       sync.Mutex
	records  []models.AnalysisRecord
	calls    map[string]int
	failures map[string]failure
	now      func() time.Time
}

type failure struct {
	status  int
	message string
}

// NewFakeBackend starts a backend holding records until the test ends
func NewFakeBackend(t *testing.T, records ...models.AnalysisRecord) *FakeBackend {
	t.Helper()

	fb := &FakeBackend{
		calls:    make(map[string]int),
		failures: make(map[string]failure),
		now:      time.Now,
	}
	for _, r := range records {
		fb.Add(r)
	}

	r := chi.NewRouter()
	r.Get("/api/get_history", fb.count("get_history", fb.getHistory))
	r.Delete("/api/delete_history/{id}", fb.count("delete_history", fb.deleteHistory))
	r.Post("/api/upload_csv", fb.count("upload_csv", fb.uploadCSV))
	r.Post("/api/save_analysis", fb.count("save_analysis", fb.saveAnalysis))
	r.Get("/api/export_history", fb.count("export_history", fb.exportHistory))

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	fb.URL = server.URL
	return fb
}

// Add stores a record, assigning an id when it has none
func (fb *FakeBackend) Add(r models.AnalysisRecord) models.AnalysisRecord {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Module == "" {
		r.Module = "calculator1"
	}
	fb.records = append(fb.records, r)
	return r
}

// Records returns the stored records
func (fb *FakeBackend) Records() []models.AnalysisRecord {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	out := make([]models.AnalysisRecord, len(fb.records))
	copy(out, fb.records)
	return out
}

// Calls returns how often an endpoint (e.g. "delete_history") was hit
func (fb *FakeBackend) Calls(endpoint string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.calls[endpoint]
}

// Fail makes every later call to endpoint answer with status and message
func (fb *FakeBackend) Fail(endpoint string, status int, message string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.failures[endpoint] = failure{status: status, message: message}
}

func (fb *FakeBackend) count(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		fb.calls[endpoint]++
		f, failing := fb.failures[endpoint]
		fb.mu.Unlock()

		if failing {
			writeJSON(w, f.status, map[string]any{"success": false, "message": f.message})
			return
		}
		next(w, r)
	}
}

func (fb *FakeBackend) getHistory(w http.ResponseWriter, r *http.Request) {
	module := r.URL.Query().Get("module")

	fb.mu.Lock()
	data := make([]models.AnalysisRecord, 0, len(fb.records))
	for _, rec := range fb.records {
		if module == "" || rec.Module == module {
			data = append(data, rec)
		}
	}
	fb.mu.Unlock()

	// newest first, as the real backend answers
	sort.SliceStable(data, func(i, j int) bool {
		return data[i].Timestamp.After(data[j].Timestamp)
	})

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data, "count": len(data)})
}

func (fb *FakeBackend) deleteHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	fb.mu.Lock()
	kept := fb.records[:0]
	for _, rec := range fb.records {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	fb.records = kept
	fb.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "deleted"})
}

// uploadCSV adds one blank record per non-empty data row after the header
func (fb *FakeBackend) uploadCSV(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "no file"})
		return
	}
	defer file.Close()

	added := 0
	scanner := bufio.NewScanner(file)
	for line := 0; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if line == 0 || text == "" {
			continue
		}
		fb.Add(models.AnalysisRecord{
			Timestamp: fb.now(),
			Metadata:  models.Metadata{Period: "upload"},
		})
		added++
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": added})
}

func (fb *FakeBackend) saveAnalysis(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Module   string          `json:"module"`
		Inputs   models.Inputs   `json:"inputs"`
		Results  models.Results  `json:"results"`
		Metadata models.Metadata `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": err.Error()})
		return
	}

	rec := fb.Add(models.AnalysisRecord{
		Timestamp: fb.now(),
		Module:    body.Module,
		Inputs:    body.Inputs,
		Results:   body.Results,
		Metadata:  body.Metadata,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": rec.ID, "message": "saved"})
}

func (fb *FakeBackend) exportHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="analysis_history.xlsx"`)
	w.Write([]byte(ExportBody))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// SampleRecord builds a consistent record: 5% refunds, 8% ad spend, 2% discount
func SampleRecord(id string, ts time.Time, sales float64) models.AnalysisRecord {
	refund := sales * 0.05
	adCost := sales * 0.08
	return models.AnalysisRecord{
		ID:        id,
		Timestamp: ts,
		Module:    "calculator1",
		Metadata:  models.Metadata{Period: ts.Format("2006-01"), TotalDays: 30},
		Inputs: models.Inputs{
			SalesAmount:     sales,
			AdvertisingCost: adCost,
			RefundAmount:    refund,
		},
		Results: models.Results{
			NetSales:               sales - refund,
			SalesAdvertisingRatio:  0.08,
			EffectiveDiscountRatio: 0.02,
		},
	}
}
