package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdash/internal/models"
)

const historyJSON = `{
  "success": true,
  "count": 2,
  "data": [
    {
      "id": "b",
      "timestamp": "2024-02-01T10:30:00.123456",
      "module": "calculator1",
      "metadata": {"period": "2024년 2월", "total_days": 29},
      "inputs": {"sales_amount": 2000000, "advertising_cost": 150000, "refund_amount": 50000},
      "results": {"net_sales": 1950000, "sales_advertising_ratio": 0.075, "effective_discount_ratio": 0.02, "daily_avg_net_sales": 67241.38}
    },
    {
      "id": "a",
      "timestamp": "2024-01-01T09:00:00+09:00",
      "module": "calculator1",
      "metadata": {"period": "2024년 1월"},
      "inputs": {"sales_amount": 1000000, "advertising_cost": 80000, "refund_amount": 0, "total_discount": 10000},
      "results": {"net_sales": 1000000, "sales_advertising_ratio": 0.08, "effective_discount_ratio": 0.01}
    }
  ]
}`

func TestFetchHistory(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathHistory, r.URL.Path)
		gotQuery = r.URL.Query().Get("module")
		w.Write([]byte(historyJSON))
	})

	records, err := c.FetchHistory(context.Background(), "calculator1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "calculator1", gotQuery)

	b := records[0]
	assert.Equal(t, "b", b.ID)
	assert.True(t, b.Timestamp.Equal(time.Date(2024, 2, 1, 10, 30, 0, 123456000, time.UTC)))
	assert.Equal(t, 29, b.Metadata.TotalDays)
	assert.Equal(t, 2000000.0, b.Inputs.SalesAmount)
	assert.Equal(t, 0.075, b.Results.SalesAdvertisingRatio)
	assert.Equal(t, 67241.38, b.Results.DailyAvgNetSales)

	a := records[1]
	assert.True(t, a.Timestamp.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 10000.0, a.Inputs.TotalDiscount)
	assert.Zero(t, a.Inputs.RefundAmount)
}

func TestFetchHistoryRejectsInvalidRecords(t *testing.T) {
	tests := []struct {
		name   string
		record string
		reason string
	}{
		{
			name:   "missing sales amount",
			record: `{"id":"x","timestamp":"2024-01-01T00:00:00","inputs":{"advertising_cost":1,"refund_amount":0},"results":{"net_sales":1,"sales_advertising_ratio":0,"effective_discount_ratio":0}}`,
			reason: "missing inputs.sales_amount",
		},
		{
			name:   "negative refund",
			record: `{"id":"x","timestamp":"2024-01-01T00:00:00","inputs":{"sales_amount":1,"advertising_cost":1,"refund_amount":-5},"results":{"net_sales":1,"sales_advertising_ratio":0,"effective_discount_ratio":0}}`,
			reason: "negative inputs.refund_amount",
		},
		{
			name:   "missing results",
			record: `{"id":"x","timestamp":"2024-01-01T00:00:00","inputs":{"sales_amount":1,"advertising_cost":1,"refund_amount":0}}`,
			reason: "missing results",
		},
		{
			name:   "bad timestamp",
			record: `{"id":"x","timestamp":"yesterday","inputs":{"sales_amount":1,"advertising_cost":1,"refund_amount":0},"results":{"net_sales":1,"sales_advertising_ratio":0,"effective_discount_ratio":0}}`,
			reason: "unrecognized timestamp",
		},
		{
			name:   "missing id",
			record: `{"timestamp":"2024-01-01T00:00:00"}`,
			reason: "missing id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"success":true,"data":[` + tt.record + `]}`))
			})

			records, err := c.FetchHistory(context.Background(), "")
			require.Error(t, err)
			assert.Nil(t, records)

			var invalid *InvalidResponseError
			require.True(t, errors.As(err, &invalid))
			assert.Contains(t, invalid.Reason, tt.reason)
		})
	}
}

func TestFetchHistoryUnsuccessful(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"조회 실패"}`))
	})

	_, err := c.FetchHistory(context.Background(), "calculator1")
	var envErr *EnvelopeError
	require.True(t, errors.As(err, &envErr))
	assert.Equal(t, "조회 실패", Message(err))
}

func TestDeleteHistory(t *testing.T) {
	var gotMethod, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.EscapedPath()
		w.Write([]byte(`{"success":true,"message":"기록이 삭제되었습니다."}`))
	})

	require.NoError(t, c.DeleteHistory(context.Background(), "a/b"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/api/delete_history/a%2Fb", gotPath)
}

func TestUploadCSV(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "history.csv", header.Filename)
		assert.Equal(t, "a,b\n1,2\n", string(content))
		w.Write([]byte(`{"success":true,"count":1}`))
	})

	res, err := c.UploadCSV(context.Background(), "history.csv", strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
}

func TestUploadCSVServerMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"message":"CSV 형식이 올바르지 않습니다"}`))
	})

	_, err := c.UploadCSV(context.Background(), "bad.csv", strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, "CSV 형식이 올바르지 않습니다", Message(err))
}

func TestSaveAnalysis(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"module":"calculator1"`)
		assert.Contains(t, string(body), `"sales_amount":1000`)
		w.Write([]byte(`{"success":true,"id":"new-id"}`))
	})

	id, err := c.SaveAnalysis(context.Background(), SaveRequest{
		Module: "calculator1",
		Inputs: models.Inputs{SalesAmount: 1000},
	})
	require.NoError(t, err)
	assert.Equal(t, "new-id", id)
}

func TestDownloadExport(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathExportHistory, r.URL.Path)
		w.Header().Set("Content-Disposition", `attachment; filename="analysis_history_20240101_120000.xlsx"`)
		w.Write([]byte("PK-workbook"))
	})

	assert.True(t, strings.HasSuffix(c.ExportURL(), PathExportHistory))

	dl, err := c.DownloadExport(context.Background())
	require.NoError(t, err)
	defer dl.Body.Close()

	data, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	assert.Equal(t, "PK-workbook", string(data))
	assert.Equal(t, "analysis_history_20240101_120000.xlsx", dl.Filename)
}
