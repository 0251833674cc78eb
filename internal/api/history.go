package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"

	"salesdash/internal/models"
)

// Backend endpoints
const (
	PathHistory       = "/api/get_history"
	PathDeleteHistory = "/api/delete_history/"
	PathExportHistory = "/api/export_history"
	PathUploadCSV     = "/api/upload_csv"
	PathSaveAnalysis  = "/api/save_analysis"
)

// DefaultExportFilename is used when the export response names no file
const DefaultExportFilename = "analysis_history.xlsx"

// Envelope is the response wrapper of every mutating backend endpoint
type Envelope struct {
	Success bool   `json:"success"`
	Count   int    `json:"count,omitempty"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e Envelope) err() error {
	if e.Success {
		return nil
	}
	return &EnvelopeError{Message: e.Message}
}

// UploadResult reports how many records an upload created
type UploadResult struct {
	Count   int
	Message string
}

// SaveRequest is the body of a save_analysis call
type SaveRequest struct {
	Module   string          `json:"module"`
	Inputs   models.Inputs   `json:"inputs"`
	Results  models.Results  `json:"results"`
	Metadata models.Metadata `json:"metadata"`
}

// Download is a streamed export file. The caller must close Body.
type Download struct {
	Body     io.ReadCloser
	Size     int64 // -1 when unknown
	Filename string
}

// FetchHistory loads every record stored for module. The whole response is
// rejected when any record is missing a required field or carries a negative input.
func (c *Client) FetchHistory(ctx context.Context, module string) ([]models.AnalysisRecord, error) {
	path := PathHistory
	if module != "" {
		path += "?module=" + url.QueryEscape(module)
	}

	var resp historyResponse
	if err := c.Get(ctx, path, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		err := &EnvelopeError{Message: resp.Message}
		c.logger.Error().Err(err).Str("module", module).Msg("history load failed")
		return nil, err
	}

	records := make([]models.AnalysisRecord, 0, len(resp.Data))
	for i, w := range resp.Data {
		rec, err := w.record(c.location)
		if err != nil {
			err = &InvalidResponseError{Reason: fmt.Sprintf("record %d: %v", i, err)}
			c.logger.Error().Err(err).Str("module", module).Msg("history load failed")
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// DeleteHistory removes a single record
func (c *Client) DeleteHistory(ctx context.Context, id string) error {
	var env Envelope
	if err := c.Delete(ctx, PathDeleteHistory+url.PathEscape(id), &env); err != nil {
		return err
	}
	return env.err()
}

// UploadCSV posts a CSV file as the multipart field "file"
func (c *Client) UploadCSV(ctx context.Context, filename string, r io.Reader) (UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return UploadResult{}, fmt.Errorf("creating multipart body: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return UploadResult{}, fmt.Errorf("reading %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("closing multipart body: %w", err)
	}

	var env Envelope
	err = c.Request(ctx, PathUploadCSV, RequestOptions{
		Method:  http.MethodPost,
		Headers: map[string]string{"Content-Type": mw.FormDataContentType()},
		Body:    &buf,
	}, &env)
	if err != nil {
		return UploadResult{}, err
	}
	if err := env.err(); err != nil {
		return UploadResult{}, err
	}
	return UploadResult{Count: env.Count, Message: env.Message}, nil
}

// SaveAnalysis stores a new analysis and returns its id
func (c *Client) SaveAnalysis(ctx context.Context, req SaveRequest) (string, error) {
	var env Envelope
	if err := c.Post(ctx, PathSaveAnalysis, req, &env); err != nil {
		return "", err
	}
	if err := env.err(); err != nil {
		return "", err
	}
	return env.ID, nil
}

// ExportURL is the absolute address of the backend spreadsheet export
func (c *Client) ExportURL() string {
	return c.baseURL + PathExportHistory
}

// DownloadExport streams the backend export. The request timeout is not applied
// so large workbooks can finish; cancel ctx to abort.
func (c *Client) DownloadExport(ctx context.Context) (*Download, error) {
	resp, err := c.do(ctx, PathExportHistory, RequestOptions{
		Method:  http.MethodGet,
		Headers: map[string]string{"Accept": "*/*"},
	})
	if err != nil {
		return nil, err
	}

	filename := DefaultExportFilename
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		if name := params["filename"]; name != "" {
			filename = name
		}
	}

	return &Download{
		Body:     resp.Body,
		Size:     resp.ContentLength,
		Filename: filename,
	}, nil
}
