package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdash/internal/api"
	"salesdash/internal/dashboard"
	"salesdash/internal/templates"
	"salesdash/internal/testutil"
)

func newTestServer(t *testing.T) (*Server, *testutil.FakeBackend) {
	t.Helper()

	fb := testutil.NewFakeBackend(t,
		testutil.SampleRecord("a", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), 500000),
	)
	logger := zerolog.New(zerolog.NewTestWriter(t))

	ctrl := dashboard.New(api.New(fb.URL), dashboard.Options{
		Module:     "calculator1",
		EditorPath: "/calculator1",
		Location:   time.UTC,
		Logger:     logger,
	})
	t.Cleanup(ctrl.Close)

	renderer, err := templates.New(templates.Options{Logger: logger})
	require.NoError(t, err)

	srv := New(logger, Config{
		Addr:       "127.0.0.1:0",
		EditorPath: "/calculator1",
		Dependencies: Dependencies{
			Controller: ctrl,
			Renderer:   renderer,
			Static:     templates.Static(),
		},
	})
	return srv, fb
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := testutil.NewTestServer(t, srv.Handler())

	var body map[string]string
	testutil.AssertResponse(t, ts.GET("/api/health")).
		StatusOK().
		ContentTypeJSON().
		JSON(&body)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["version"])
}

func TestRootRedirect(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := testutil.NewTestServer(t, srv.Handler())

	testutil.AssertResponse(t, ts.GET("/")).
		Status(http.StatusTemporaryRedirect).
		Header("Location", "/dashboard")
}

func TestStaticAssets(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := testutil.NewTestServer(t, srv.Handler())

	testutil.AssertResponse(t, ts.GET("/static/dashboard.js")).
		StatusOK().
		ContainsAll("chartConfigs")
	testutil.AssertResponse(t, ts.GET("/static/missing.js")).
		Status(http.StatusNotFound)
}

func TestDashboardRoute(t *testing.T) {
	srv, fb := newTestServer(t)
	ts := testutil.NewTestServer(t, srv.Handler())

	testutil.AssertResponse(t, ts.GET("/dashboard")).
		StatusOK().
		ContentTypeHTML().
		ContainsAll("₩500,000")
	assert.Equal(t, 1, fb.Calls("get_history"))
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	srv, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
