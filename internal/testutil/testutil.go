// Package testutil provides HTTP testing helpers for the dashboard service.
package testutil

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// ProjectRoot returns the root directory of the project by walking up to go.mod
func ProjectRoot() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		panic("could not get caller info")
	}

	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			panic("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// TestServer wraps httptest.Server. Its client does not follow redirects so
// post-redirect-get handlers can be asserted on directly.
type TestServer struct {
	Server  *httptest.Server
	BaseURL string
	Client  *http.Client
	t       *testing.T
}

// NewTestServer serves handler until the test ends
func NewTestServer(t *testing.T, handler http.Handler) *TestServer {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &TestServer{
		Server:  server,
		BaseURL: server.URL,
		Client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		t: t,
	}
}

func (ts *TestServer) do(req *http.Request) *http.Response {
	ts.t.Helper()

	resp, err := ts.Client.Do(req)
	if err != nil {
		ts.t.Fatalf("%s %s failed: %v", req.Method, req.URL.Path, err)
	}
	return resp
}

// GET performs a GET request to the given path
func (ts *TestServer) GET(path string) *http.Response {
	ts.t.Helper()

	req, err := http.NewRequest(http.MethodGet, ts.BaseURL+path, nil)
	if err != nil {
		ts.t.Fatalf("building GET %s: %v", path, err)
	}
	return ts.do(req)
}

// GETWithQuery performs a GET request with encoded query parameters
func (ts *TestServer) GETWithQuery(path string, query url.Values) *http.Response {
	ts.t.Helper()

	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return ts.GET(path)
}

// POST performs a POST request to the given path
func (ts *TestServer) POST(path, contentType string, body io.Reader) *http.Response {
	ts.t.Helper()

	req, err := http.NewRequest(http.MethodPost, ts.BaseURL+path, body)
	if err != nil {
		ts.t.Fatalf("building POST %s: %v", path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return ts.do(req)
}

// PostForm submits url-encoded form values
func (ts *TestServer) PostForm(path string, values url.Values) *http.Response {
	ts.t.Helper()
	return ts.POST(path, "application/x-www-form-urlencoded", strings.NewReader(values.Encode()))
}

// PostFile submits a multipart form with a single file field
func (ts *TestServer) PostFile(path, field, filename string, content []byte) *http.Response {
	ts.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		ts.t.Fatalf("creating form file: %v", err)
	}
	part.Write(content)
	mw.Close()

	return ts.POST(path, mw.FormDataContentType(), &buf)
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// ReadBody reads and returns the response body as a string
func ReadBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	return string(body)
}
