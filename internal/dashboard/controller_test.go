package dashboard

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"salesdash/internal/api"
	"salesdash/internal/models"
	"salesdash/internal/notify"
	"salesdash/internal/storage"
	"salesdash/internal/testutil"
)

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) FetchHistory(ctx context.Context, module string) ([]models.AnalysisRecord, error) {
	args := m.Called(ctx, module)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AnalysisRecord), args.Error(1)
}

func (m *mockHistory) DeleteHistory(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockHistory) UploadCSV(ctx context.Context, filename string, r io.Reader) (api.UploadResult, error) {
	args := m.Called(ctx, filename, r)
	return args.Get(0).(api.UploadResult), args.Error(1)
}

func (m *mockHistory) SaveAnalysis(ctx context.Context, req api.SaveRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockHistory) ExportURL() string {
	return m.Called().String(0)
}

func newController(t *testing.T, history History) *Controller {
	t.Helper()

	store, err := storage.New(t.TempDir())
	require.NoError(t, err)

	c := New(history, Options{
		Module:      "calculator1",
		EditorPath:  "/calculator1",
		Location:    time.UTC,
		Logger:      zerolog.New(zerolog.NewTestWriter(t)),
		Preferences: store,
	})
	t.Cleanup(c.Close)
	return c
}

func januaryRecords() []models.AnalysisRecord {
	return []models.AnalysisRecord{
		testutil.SampleRecord("dec31", time.Date(2023, 12, 31, 23, 59, 0, 0, time.UTC), 100),
		testutil.SampleRecord("jan01", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 200),
		testutil.SampleRecord("jan31", time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC), 300),
		testutil.SampleRecord("feb01", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 400),
	}
}

func recordIDs(records []models.AnalysisRecord) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}

func TestController_Init(t *testing.T) {
	history := new(mockHistory)
	records := januaryRecords()
	// the backend answers newest first
	reversed := []models.AnalysisRecord{records[3], records[2], records[1], records[0]}
	history.On("FetchHistory", mock.Anything, "calculator1").Return(reversed, nil)

	c := newController(t, history)
	require.NoError(t, c.Init(context.Background()))

	assert.True(t, c.Initialized())
	assert.Equal(t, []string{"dec31", "jan01", "jan31", "feb01"}, recordIDs(c.Records()))
	assert.Equal(t, 4, c.Stats().Count)
	assert.Equal(t, "₩1,000", c.StatsView().TotalSales.Text)

	for _, id := range CanvasIDs {
		chart, ok := c.Chart(id)
		require.True(t, ok, id)
		assert.NotNil(t, chart, id)
	}
	history.AssertExpectations(t)
}

func TestController_InitFailure(t *testing.T) {
	history := new(mockHistory)
	history.On("FetchHistory", mock.Anything, "calculator1").
		Return(nil, &api.StatusError{StatusCode: http.StatusInternalServerError})

	c := newController(t, history)
	err := c.Init(context.Background())
	require.Error(t, err)

	var statusErr *api.StatusError
	assert.True(t, errors.As(err, &statusErr))
	assert.True(t, c.Initialized())

	n, ok := c.Notifier().Get(notify.Error)
	require.True(t, ok)
	assert.Equal(t, "Failed to load the dashboard.", n.Message)

	assert.Equal(t, NoDataText, c.StatsView().SalesChange.Text)
	chart, ok := c.Chart(SalesTrendCanvas)
	assert.True(t, ok)
	assert.Nil(t, chart)
}

func TestController_RefreshFailureKeepsState(t *testing.T) {
	history := new(mockHistory)
	history.On("FetchHistory", mock.Anything, "calculator1").Return(januaryRecords(), nil).Once()
	history.On("FetchHistory", mock.Anything, "calculator1").Return(nil, errors.New("connection refused")).Once()

	c := newController(t, history)
	require.NoError(t, c.Init(context.Background()))
	before, _ := c.Chart(SalesTrendCanvas)

	require.Error(t, c.Refresh(context.Background()))

	assert.Len(t, c.Records(), 4)
	after, _ := c.Chart(SalesTrendCanvas)
	assert.Same(t, before, after)
	assert.False(t, after.Destroyed())
}

func TestController_ApplyFilters(t *testing.T) {
	history := new(mockHistory)
	history.On("FetchHistory", mock.Anything, "calculator1").Return(januaryRecords(), nil)

	c := newController(t, history)
	require.NoError(t, c.Init(context.Background()))
	before, _ := c.Chart(SalesTrendCanvas)

	count, err := c.ApplyFilterValues("2024-01-01", "2024-01-31")
	require.NoError(t, err)

	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"jan01", "jan31"}, recordIDs(c.Records()))
	assert.Len(t, c.AllRecords(), 4)
	assert.True(t, c.Stats().Filtered)
	assert.Equal(t, "2024. 01. 01. ~ 2024. 01. 31.", c.StatsView().AnalysesInfo.Text)

	after, _ := c.Chart(SalesTrendCanvas)
	assert.True(t, before.Destroyed())
	assert.Equal(t, []string{"24.01.01", "24.01.31"}, after.Config.Data.Labels)

	n, ok := c.Notifier().Get(notify.Success)
	require.True(t, ok)
	assert.Equal(t, "Filter applied: showing 2 records.", n.Message)

	saved := c.SavedFilter()
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), saved.Start)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), saved.End)
}

func TestController_FilterBeforeInitSurvivesFirstLoad(t *testing.T) {
	history := new(mockHistory)
	history.On("FetchHistory", mock.Anything, "calculator1").Return(januaryRecords(), nil)

	c := newController(t, history)
	_, err := c.ApplyFilterValues("2024-01-01", "2024-01-31")
	require.NoError(t, err)

	require.NoError(t, c.Init(context.Background()))

	assert.Equal(t, []string{"jan01", "jan31"}, recordIDs(c.Records()))
	assert.True(t, c.Stats().Filtered)
	chart, _ := c.Chart(SalesTrendCanvas)
	assert.Equal(t, []string{"24.01.01", "24.01.31"}, chart.Config.Data.Labels)

	// later refreshes still reset it
	require.NoError(t, c.Refresh(context.Background()))
	assert.Len(t, c.Records(), 4)
}

func TestController_ApplyFiltersOpenBound(t *testing.T) {
	history := new(mockHistory)
	history.On("FetchHistory", mock.Anything, "calculator1").Return(januaryRecords(), nil)

	c := newController(t, history)
	require.NoError(t, c.Init(context.Background()))

	count, err := c.ApplyFilterValues("2024-01-31", "")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"jan31", "feb01"}, recordIDs(c.Records()))

	count, err = c.ApplyFilterValues("", "2023-12-31")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestController_ApplyFiltersRequiresDate(t *testing.T) {
	history := new(mockHistory)
	history.On("FetchHistory", mock.Anything, "calculator1").Return(januaryRecords(), nil)

	c := newController(t, history)
	require.NoError(t, c.Init(context.Background()))

	_, err := c.ApplyFilterValues("", "")
	assert.ErrorIs(t, err, ErrNoDateSelected)
	assert.Len(t, c.Records(), 4)

	n, ok := c.Notifier().Get(notify.Error)
	require.True(t, ok)
	assert.Equal(t, "Please select a date to filter by.", n.Message)

	_, err = c.ApplyFilterValues("01/02/2024", "")
	assert.Error(t, err)
}

func TestController_FilterWithNoMatches(t *testing.T) {
	history := new(mockHistory)
	history.On("FetchHistory", mock.Anything, "calculator1").Return(januaryRecords(), nil)

	c := newController(t, history)
	require.NoError(t, c.Init(context.Background()))

	count, err := c.ApplyFilterValues("2025-01-01", "2025-01-31")
	require.NoError(t, err)
	assert.Zero(t, count)

	view := c.StatsView()
	assert.Equal(t, "₩0", view.TotalSales.Text)
	for _, id := range CanvasIDs {
		chart, _ := c.Chart(id)
		assert.Nil(t, chart, id)
	}
}

func TestController_ResetFilters(t *testing.T) {
	history := new(mockHistory)
	history.On("FetchHistory", mock.Anything, "calculator1").Return(januaryRecords(), nil)

	c := newController(t, history)
	require.NoError(t, c.Init(context.Background()))
	_, err := c.ApplyFilterValues("2024-01-01", "2024-01-31")
	require.NoError(t, err)

	c.ResetFilters()

	assert.Len(t, c.Records(), 4)
	assert.True(t, c.Filter().IsZero())
	assert.True(t, c.SavedFilter().IsZero())
	assert.Equal(t, AllPeriodsText, c.StatsView().AnalysesInfo.Text)
}

func TestController_TableRows(t *testing.T) {
	history := new(mockHistory)
	history.On("FetchHistory", mock.Anything, "calculator1").Return(januaryRecords(), nil)

	c := newController(t, history)
	require.NoError(t, c.Init(context.Background()))

	assert.False(t, c.TableOpen())
	c.ShowTable()
	assert.True(t, c.TableOpen())

	rows := c.TableRows()
	require.Len(t, rows, 4)
	assert.Equal(t, "feb01", rows[0].ID)
	assert.Equal(t, "₩400", rows[0].SalesAmount)
	assert.Equal(t, "8.0%", rows[0].AdRatio)
	assert.Equal(t, "5.00%", rows[0].RefundRatio)
	assert.Equal(t, "/dashboard/records/feb01/delete", rows[0].DeleteAction)

	c.HideTable()
	assert.False(t, c.TableOpen())
}

func TestController_ViewURL(t *testing.T) {
	history := new(mockHistory)
	history.On("FetchHistory", mock.Anything, "calculator1").Return(januaryRecords(), nil)

	c := newController(t, history)
	require.NoError(t, c.Init(context.Background()))

	u, err := c.ViewURL("jan01")
	require.NoError(t, err)
	assert.Equal(t, "/calculator1?load=jan01", u)

	_, err = c.ViewURL("missing")
	assert.ErrorIs(t, err, ErrUnknownRecord)
}

func TestController_DeleteRequiresConfirmation(t *testing.T) {
	history := new(mockHistory)
	history.On("FetchHistory", mock.Anything, "calculator1").Return(januaryRecords(), nil)

	c := newController(t, history)
	require.NoError(t, c.Init(context.Background()))

	err := c.DeleteRecord(context.Background(), "jan01", false)
	assert.ErrorIs(t, err, ErrNotConfirmed)
	history.AssertNotCalled(t, "DeleteHistory", mock.Anything, mock.Anything)
	assert.Len(t, c.Records(), 4)
}

func TestController_DeleteFailure(t *testing.T) {
	history := new(mockHistory)
	history.On("FetchHistory", mock.Anything, "calculator1").Return(januaryRecords(), nil)
	history.On("DeleteHistory", mock.Anything, "jan01").
		Return(&api.StatusError{StatusCode: http.StatusNotFound, Message: "record not found"})

	c := newController(t, history)
	require.NoError(t, c.Init(context.Background()))

	err := c.DeleteRecord(context.Background(), "jan01", true)
	require.Error(t, err)

	n, ok := c.Notifier().Get(notify.Error)
	require.True(t, ok)
	assert.Equal(t, "Failed to delete the record: record not found", n.Message)
	assert.Len(t, c.Records(), 4)
	history.AssertNumberOfCalls(t, "FetchHistory", 1)
}

func TestController_UploadValidation(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		body     io.Reader
		wantErr  error
		message  string
	}{
		{"no file", "", nil, ErrNoFile, "Please choose a CSV file to upload."},
		{"not csv", "sales.xlsx", strings.NewReader("x"), ErrNotCSV, "Only CSV files can be uploaded."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := new(mockHistory)
			c := newController(t, history)

			_, err := c.Upload(context.Background(), tt.filename, tt.body)
			assert.ErrorIs(t, err, tt.wantErr)
			history.AssertNotCalled(t, "UploadCSV", mock.Anything, mock.Anything, mock.Anything)

			n, ok := c.Notifier().Get(notify.Warning)
			require.True(t, ok)
			assert.Equal(t, tt.message, n.Message)
		})
	}
}

func TestController_Upload(t *testing.T) {
	history := new(mockHistory)
	body := strings.NewReader("date,sales\n2024-01-01,100\n")
	history.On("UploadCSV", mock.Anything, "SALES.CSV", body).Return(api.UploadResult{Count: 1}, nil)
	history.On("FetchHistory", mock.Anything, "calculator1").Return(januaryRecords(), nil)

	c := newController(t, history)

	count, err := c.Upload(context.Background(), "SALES.CSV", body)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Len(t, c.Records(), 4)

	n, ok := c.Notifier().Get(notify.Success)
	require.True(t, ok)
	assert.Equal(t, "1 records uploaded successfully.", n.Message)
	history.AssertExpectations(t)
}

func TestController_UploadFailure(t *testing.T) {
	history := new(mockHistory)
	history.On("UploadCSV", mock.Anything, "sales.csv", mock.Anything).
		Return(api.UploadResult{}, &api.EnvelopeError{Message: "missing columns"})

	c := newController(t, history)

	_, err := c.Upload(context.Background(), "sales.csv", strings.NewReader("bad"))
	require.Error(t, err)

	n, ok := c.Notifier().Get(notify.Error)
	require.True(t, ok)
	assert.Equal(t, "Upload failed: missing columns", n.Message)
	history.AssertNotCalled(t, "FetchHistory", mock.Anything, mock.Anything)
}

func TestController_ExportFiltered(t *testing.T) {
	history := new(mockHistory)
	history.On("FetchHistory", mock.Anything, "calculator1").Return(januaryRecords(), nil)
	history.On("ExportURL").Return("http://backend/api/export_history")

	c := newController(t, history)
	require.NoError(t, c.Init(context.Background()))

	var buf bytes.Buffer
	require.NoError(t, c.ExportFiltered(&buf))
	assert.NotZero(t, buf.Len())
	assert.Equal(t, "http://backend/api/export_history", c.ExportURL())
}

func TestController_DeleteAgainstBackend(t *testing.T) {
	fb := testutil.NewFakeBackend(t, januaryRecords()...)
	client := api.New(fb.URL, api.WithLocation(time.UTC))

	c := newController(t, client)
	require.NoError(t, c.Init(context.Background()))
	require.Len(t, c.Records(), 4)

	require.NoError(t, c.DeleteRecord(context.Background(), "jan01", true))

	assert.Equal(t, 1, fb.Calls("delete_history"))
	assert.Equal(t, 2, fb.Calls("get_history"))
	assert.Equal(t, []string{"dec31", "jan31", "feb01"}, recordIDs(c.Records()))

	n, ok := c.Notifier().Get(notify.Success)
	require.True(t, ok)
	assert.Equal(t, "Record deleted.", n.Message)
}
