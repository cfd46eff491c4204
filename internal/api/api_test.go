package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"lineside-audit-service/internal/engine"
	"lineside-audit-service/internal/models"
	"lineside-audit-service/internal/store"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	result := &engine.Result{
		BatchID:     "20260210_120000",
		TraceID:     "trace-1",
		GeneratedAt: time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
		Alerts: []*models.ReturnAlertRecord{
			{OrderNo: "WO1", MaterialCode: "M1", ActualQty: decimal.NewFromInt(7),
				Deviation: models.KnownQuantity(decimal.NewFromInt(2))},
			{OrderNo: "WO2", MaterialCode: "M3", ActualQty: decimal.NewFromInt(4),
				IsCommon: true},
		},
		Details: []*models.ReturnAlertDetail{
			{OrderNo: "WO1", MaterialCode: "M1", Barcode: "BC1", Quantity: decimal.NewFromInt(7)},
		},
		IssueAudits: []*models.IssueAuditRecord{
			{DocID: "D1", ComponentCode: "C1", DemandVerdict: models.VerdictOverIssued},
		},
		Quality: &models.QualityStats{
			ConfirmedAlertCount:     3,
			ConfirmedAlertCountExcl: 2,
			AgingDistribution:       models.AgingDistribution{D3_7: 1},
		},
	}
	if err := st.AppendRun(context.Background(), result); err != nil {
		t.Fatalf("Failed to seed store: %v", err)
	}

	return NewServer(st)
}

func doRequest(t *testing.T, srv *Server, path string) (*http.Response, []byte) {
	t.Helper()

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, path, nil))
	if err != nil {
		t.Fatalf("Request %s failed: %v", path, err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	resp.Body.Close()
	return resp, body
}

func TestKPISummary(t *testing.T) {
	srv := testServer(t)

	resp, body := doRequest(t, srv, "/api/kpi/summary")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, body)
	}

	var point store.KPIPoint
	if err := json.Unmarshal(body, &point); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if point.BatchID != "20260210_120000" || point.ConfirmedAlertCount != 3 {
		t.Errorf("Unexpected summary: %+v", point)
	}

	resp, body = doRequest(t, srv, "/api/kpi/summary?exclude_common=true")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &point); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if point.ConfirmedAlertCount != 2 {
		t.Errorf("exclude_common flag not honored: %+v", point)
	}
}

func TestKPITrend(t *testing.T) {
	srv := testServer(t)

	resp, body := doRequest(t, srv, "/api/kpi/trend?limit=5")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var points []*store.KPIPoint
	if err := json.Unmarshal(body, &points); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(points) != 1 {
		t.Errorf("Expected 1 trend point, got %d", len(points))
	}
}

func TestAgingDistribution(t *testing.T) {
	srv := testServer(t)

	resp, body := doRequest(t, srv, "/api/kpi/aging-distribution")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var dist models.AgingDistribution
	if err := json.Unmarshal(body, &dist); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if dist.D3_7 != 1 {
		t.Errorf("Unexpected distribution: %+v", dist)
	}
}

func TestBatchScopedEndpoints(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		path string
		rows int
	}{
		{"/api/alerts/20260210_120000", 2},
		{"/api/alerts/20260210_120000/detail", 1},
		{"/api/issue-audit/20260210_120000", 1},
	}

	for _, tt := range tests {
		resp, body := doRequest(t, srv, tt.path)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: expected 200, got %d: %s", tt.path, resp.StatusCode, body)
			continue
		}
		var rows []json.RawMessage
		if err := json.Unmarshal(body, &rows); err != nil {
			t.Errorf("%s: failed to decode: %v", tt.path, err)
			continue
		}
		if len(rows) != tt.rows {
			t.Errorf("%s: expected %d rows, got %d", tt.path, tt.rows, len(rows))
		}
	}

	resp, body := doRequest(t, srv, "/api/quality/20260210_120000")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var quality models.QualityStats
	if err := json.Unmarshal(body, &quality); err != nil {
		t.Fatalf("Failed to decode quality: %v", err)
	}
	if quality.ConfirmedAlertCount != 3 {
		t.Errorf("Unexpected quality record: %+v", quality)
	}
}

func TestAlertsExcludeCommon(t *testing.T) {
	srv := testServer(t)

	resp, body := doRequest(t, srv, "/api/alerts/20260210_120000?exclude_common=true")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, body)
	}

	var alerts []*models.ReturnAlertRecord
	if err := json.Unmarshal(body, &alerts); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(alerts) != 1 || alerts[0].MaterialCode != "M1" {
		t.Errorf("Expected only the non-common alert, got %+v", alerts)
	}
}

func TestUnknownBatchReturns404(t *testing.T) {
	srv := testServer(t)

	for _, path := range []string{
		"/api/alerts/29990101_000000",
		"/api/alerts/29990101_000000/detail",
		"/api/issue-audit/29990101_000000",
		"/api/quality/29990101_000000",
	} {
		resp, body := doRequest(t, srv, path)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, resp.StatusCode)
			continue
		}
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil {
			t.Errorf("%s: error body does not decode: %v", path, err)
			continue
		}
		if errResp.Code != "batch_not_found" {
			t.Errorf("%s: expected batch_not_found, got %q", path, errResp.Code)
		}
	}
}

func TestListBatches(t *testing.T) {
	srv := testServer(t)

	resp, body := doRequest(t, srv, "/api/batches")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var batches []*store.BatchInfo
	if err := json.Unmarshal(body, &batches); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(batches) != 1 || batches[0].BatchID != "20260210_120000" {
		t.Errorf("Unexpected batches: %+v", batches)
	}
}
