package reporter

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"lineside-audit-service/internal/engine"
	"lineside-audit-service/internal/models"
)

func testResult() *engine.Result {
	return &engine.Result{
		BatchID:     "20260210_120000",
		TraceID:     "test-trace",
		GeneratedAt: time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
		Alerts: []*models.ReturnAlertRecord{
			{
				OrderNo:              "WO1",
				MaterialCode:         "M1",
				Description:          "Widget",
				ActualQty:            decimal.NewFromFloat(7.004),
				BarcodeCount:         2,
				Barcodes:             []string{"BC1", "BC2"},
				OrderStatus:          "Completed",
				QtyDone:              decimal.NewFromInt(10),
				BOMUnitQty:           models.KnownQuantity(decimal.NewFromInt(2)),
				BOMTotalQty:          models.KnownQuantity(decimal.NewFromInt(25)),
				TheoreticalRemainder: models.KnownQuantity(decimal.NewFromInt(5)),
				Deviation:            models.KnownQuantity(decimal.NewFromFloat(2.004)),
				AgingDays:            2.5,
			},
			{
				OrderNo:      "WO3",
				MaterialCode: "M3",
				ActualQty:    decimal.NewFromInt(4),
				BarcodeCount: 1,
				Barcodes:     []string{"BC4"},
				OrderStatus:  "完成",
				AgingDays:    engine.UnparseableAging,
				IsLegacy:     true,
			},
		},
		Details: []*models.ReturnAlertDetail{
			{
				OrderNo:      "WO1",
				MaterialCode: "M1",
				Barcode:      "BC1",
				Quantity:     decimal.NewFromInt(3),
				OrderStatus:  "Completed",
				Deviation:    models.KnownQuantity(decimal.NewFromFloat(2.004)),
			},
		},
		IssueAudits: []*models.IssueAuditRecord{
			{
				DocID:         "D1",
				RelatedOrders: []string{"WO1", "WO2"},
				MatchedOrder:  "WO1",
				ComponentCode: "C1",
				DemandQty:     decimal.NewFromInt(100),
				ActualQty:     decimal.NewFromInt(120),
				OverIssue:     decimal.NewFromInt(20),
				OverIssueRate: 20,
				DemandVerdict: models.VerdictOverIssued,
				BOMVerdict:    models.VerdictNoData,
			},
		},
		Quality: &models.QualityStats{
			InventoryTotal:        3,
			InventoryLegacy:       1,
			InventoryCurrent:      2,
			LegacyCount:           1,
			ConfirmedCurrentCount: 1,
			UnmatchedCurrentCount: 1,
			ConfirmedAlertCount:   1,
			IssueLinesTotal:       2,
			IssueLinesMatched:     1,
			IssueMatchRate:        0.5,
		},
	}
}

func TestWriteAlertCSV(t *testing.T) {
	rg, err := NewReportGenerator(nil)
	if err != nil {
		t.Fatalf("Failed to create generator: %v", err)
	}

	var buf bytes.Buffer
	if err := rg.WriteAlertCSV(testResult().Alerts, &buf); err != nil {
		t.Fatalf("WriteAlertCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "Order_No,Material_Code") {
		t.Errorf("Unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "7,2,BC1;BC2") {
		t.Errorf("Quantities must round to 2 places and barcodes join with ';': %s", lines[1])
	}
	if !strings.Contains(lines[1], "2.5") {
		t.Errorf("Aging days missing: %s", lines[1])
	}
	// Unknown BOM figures render empty, the sentinel aging renders empty.
	if !strings.Contains(lines[2], ",,,,,") {
		t.Errorf("Unknown quantities must render empty: %s", lines[2])
	}
	if !strings.Contains(lines[2], "true") {
		t.Errorf("Legacy flag missing: %s", lines[2])
	}
}

func TestWriteIssueAuditCSV(t *testing.T) {
	rg, _ := NewReportGenerator(nil)

	var buf bytes.Buffer
	if err := rg.WriteIssueAuditCSV(testResult().IssueAudits, &buf); err != nil {
		t.Fatalf("WriteIssueAuditCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected header + 1 row, got %d lines", len(lines))
	}
	row := lines[1]
	if !strings.Contains(row, "WO1;WO2") {
		t.Errorf("Related orders must join with ';': %s", row)
	}
	if !strings.Contains(row, "20.0") {
		t.Errorf("Rate must render with 1 decimal place: %s", row)
	}
	if !strings.Contains(row, "no_data") {
		t.Errorf("Missing BOM verdict must render no_data: %s", row)
	}
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	rg, err := NewReportGenerator(&ReportConfig{
		OutputDir:    dir,
		CSVDelimiter: ',',
		CSVHeaders:   true,
		WriteJSON:    true,
	})
	if err != nil {
		t.Fatalf("Failed to create generator: %v", err)
	}

	written, err := rg.WriteAll(testResult())
	if err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}
	if len(written) != 4 {
		t.Fatalf("Expected 4 report files, got %d", len(written))
	}

	for _, name := range []string{AlertReportFile, AlertDetailFile, IssueAuditReportFile, ResultJSONFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected %s to exist: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, ResultJSONFile))
	if err != nil {
		t.Fatalf("Failed to read JSON dump: %v", err)
	}
	var decoded engine.Result
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("JSON dump does not decode: %v", err)
	}
	if decoded.BatchID != "20260210_120000" {
		t.Errorf("Unexpected batch id in JSON dump: %s", decoded.BatchID)
	}
}

func TestWriteAllDegradedSkipsIssueReport(t *testing.T) {
	dir := t.TempDir()
	rg, _ := NewReportGenerator(&ReportConfig{
		OutputDir:    dir,
		CSVDelimiter: ',',
		CSVHeaders:   true,
		WriteJSON:    false,
	})

	result := testResult()
	result.Degraded = true
	result.IssueAudits = nil

	written, err := rg.WriteAll(result)
	if err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("Expected 2 report files in degraded mode, got %d", len(written))
	}
	if _, err := os.Stat(filepath.Join(dir, IssueAuditReportFile)); !os.IsNotExist(err) {
		t.Error("Degraded run must not write the issue audit report")
	}
}

func TestWriteConsoleSummary(t *testing.T) {
	rg, _ := NewReportGenerator(nil)

	var buf bytes.Buffer
	if err := rg.WriteConsoleSummary(testResult(), &buf); err != nil {
		t.Fatalf("WriteConsoleSummary failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Batch: 20260210_120000", "RETURN AUDIT", "ISSUE AUDIT", "DATA QUALITY"} {
		if !strings.Contains(out, want) {
			t.Errorf("Console summary missing %q", want)
		}
	}
}
