package engine

import (
	"math"
	"reflect"
	"testing"
	"time"

	"lineside-audit-service/internal/models"
	"lineside-audit-service/pkg/errors"
)

var testNow = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func testConfig() *Config {
	config := DefaultConfig()
	config.CommonMaterials = []string{"M3"}
	return config
}

func testInput() *Input {
	return &Input{
		Orders: []*models.ProductionOrder{
			{OrderNo: "WO1", Status: "Completed", QtyOrdered: qty(12), QtyDone: qty(10)},
			{OrderNo: "WO2", Status: "Released", QtyOrdered: qty(8), QtyDone: qty(3)},
			{OrderNo: "WO3", Status: "完成", QtyOrdered: qty(5), QtyDone: qty(5)},
		},
		BOMLines: []*models.BOMLine{
			{OrderNo: "WO1", ComponentCode: "M1", UnitQty: qty(2), TotalQty: qty(25), IssuedQty: qty(20)},
			{OrderNo: "WO1", ComponentCode: "C1", UnitQty: qty(11), TotalQty: qty(110), IssuedQty: qty(110)},
		},
		Inventory: []*models.InventoryRecord{
			{OrderNo: "WO1", MaterialCode: "M1", Quantity: qty(7), Barcode: "BC1", ReceiveTime: "2026-02-08 00:00:00"},
			{OrderNo: "WO1", MaterialCode: "M4", Quantity: qty(2), Barcode: "BC2", ReceiveTime: "2025-12-01 08:00:00"},
			{OrderNo: "WO2", MaterialCode: "M2", Quantity: qty(9), Barcode: "BC3", ReceiveTime: "2026-02-02 08:00:00"},
			{OrderNo: "WO3", MaterialCode: "M3", Quantity: qty(4), Barcode: "BC4", ReceiveTime: "2026-02-01 00:00:00"},
			{OrderNo: "WO9", MaterialCode: "M9", Quantity: qty(1), Barcode: "BC5", ReceiveTime: "2026-01-15 08:00:00"},
		},
		IssueLines: []*models.IssueLine{
			{DocID: "D1", ComponentCode: "C1", Orders: []string{"WO1", "WO2"}, DemandQty: qty(100), ActualQty: qty(120)},
			{DocID: "D1", ComponentCode: "C1", Orders: []string{"WO1"}, DemandQty: qty(100), ActualQty: qty(999)},
			{DocID: "D2", ComponentCode: "C2", Orders: []string{"WOX"}, DemandQty: qty(10), ActualQty: qty(10)},
			{DocID: "D3", ComponentCode: "C3", Orders: []string{"WO3"}, DemandQty: qty(0), ActualQty: qty(5)},
		},
		HasIssueExtract: true,
	}
}

func TestEngineReturnAudit(t *testing.T) {
	eng, err := New(testConfig())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	result, err := eng.Run(testInput(), testNow)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.BatchID != "20260210_120000" {
		t.Errorf("Unexpected batch id %q", result.BatchID)
	}
	if result.Degraded {
		t.Error("Run with issue extract must not be degraded")
	}

	if len(result.Alerts) != 3 {
		t.Fatalf("Expected 3 alerts (completed orders only), got %d", len(result.Alerts))
	}

	// Highest deviation first; unknown deviations sort as zero with the
	// order-number tie-break.
	first := result.Alerts[0]
	if first.OrderNo != "WO1" || first.MaterialCode != "M1" {
		t.Fatalf("Expected WO1/M1 first, got %s/%s", first.OrderNo, first.MaterialCode)
	}
	if !first.TheoreticalRemainder.Known() || first.TheoreticalRemainder.Value().String() != "5" {
		t.Errorf("Expected theoretical remainder 5, got %v", first.TheoreticalRemainder)
	}
	if !first.Deviation.Known() || first.Deviation.Value().String() != "2" {
		t.Errorf("Expected deviation 2, got %v", first.Deviation)
	}
	if first.IsLegacy {
		t.Error("WO1/M1 received after cutover must be current")
	}
	if math.Abs(first.AgingDays-2.5) > 1e-9 {
		t.Errorf("Expected 2.5 aging days, got %f", first.AgingDays)
	}

	if result.Alerts[1].OrderNo != "WO1" || result.Alerts[1].MaterialCode != "M4" {
		t.Errorf("Tie on unknown deviation must break by order number, got %s/%s",
			result.Alerts[1].OrderNo, result.Alerts[1].MaterialCode)
	}
	if result.Alerts[1].Deviation.Known() {
		t.Error("Group without a BOM line must have unknown deviation, not zero")
	}
	if !result.Alerts[1].IsLegacy {
		t.Error("Pre-cutover receive date must flag the alert as legacy")
	}

	for _, alert := range result.Alerts {
		if alert.OrderNo == "WO2" {
			t.Error("Non-completed order must not produce an alert")
		}
		if common := alert.MaterialCode == "M3"; alert.IsCommon != common {
			t.Errorf("Wrong common-material flag on %s/%s", alert.OrderNo, alert.MaterialCode)
		}
	}

	if len(result.Details) != 3 {
		t.Fatalf("Expected 3 detail rows, got %d", len(result.Details))
	}
	if result.Details[0].OrderNo != "WO1" || result.Details[0].MaterialCode != "M1" {
		t.Errorf("Details must sort by (order, material), got %s/%s",
			result.Details[0].OrderNo, result.Details[0].MaterialCode)
	}
	if !result.Details[0].Deviation.Known() || result.Details[0].Deviation.Value().String() != "2" {
		t.Error("Detail rows must carry the group-level deviation")
	}
}

func TestEngineIssueAudit(t *testing.T) {
	eng, _ := New(testConfig())

	result, err := eng.Run(testInput(), testNow)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.IssueAudits) != 2 {
		t.Fatalf("Expected 2 issue audits (dedup + unmatched drop), got %d", len(result.IssueAudits))
	}

	first := result.IssueAudits[0]
	if first.DocID != "D1" {
		t.Fatalf("Expected D1 first (largest over-issue), got %s", first.DocID)
	}
	if first.MatchedOrder != "WO1" {
		t.Errorf("Expected lexicographically smallest known order WO1, got %s", first.MatchedOrder)
	}
	if first.ActualQty.String() != "120" {
		t.Errorf("Dedup must keep the first occurrence, got actual %s", first.ActualQty.String())
	}
	if first.OverIssue.String() != "20" || math.Abs(first.OverIssueRate-20) > 1e-9 {
		t.Errorf("Expected over-issue 20 at 20%%, got %s at %f", first.OverIssue.String(), first.OverIssueRate)
	}
	if first.DemandVerdict != models.VerdictOverIssued {
		t.Errorf("Expected over_issued verdict, got %s", first.DemandVerdict)
	}
	if !first.OverVsBOM.Known() || first.OverVsBOM.Value().String() != "10" {
		t.Errorf("Expected over-vs-BOM 10, got %v", first.OverVsBOM)
	}
	if first.BOMVerdict != models.VerdictOverIssued {
		t.Errorf("Expected over_issued BOM verdict, got %s", first.BOMVerdict)
	}

	second := result.IssueAudits[1]
	if second.DocID != "D3" {
		t.Fatalf("Expected D3 second, got %s", second.DocID)
	}
	if second.OverIssueRate != 0 {
		t.Errorf("Zero demand must yield rate 0, got %f", second.OverIssueRate)
	}
	if second.DemandVerdict != models.VerdictOverIssued {
		t.Errorf("Over with zero demand still classifies by amount, got %s", second.DemandVerdict)
	}
	if second.BOMVerdict != models.VerdictNoData {
		t.Errorf("Missing BOM line must yield no_data, got %s", second.BOMVerdict)
	}
	if second.OverVsBOM.Known() {
		t.Error("Missing BOM line must leave over-vs-BOM unknown")
	}

	stats := result.IssueStats
	if stats.TotalLines != 4 || stats.Deduplicated != 1 || stats.Matched != 2 || stats.Unmatched != 1 {
		t.Errorf("Unexpected issue stats: %+v", stats)
	}
}

func TestEngineQualityStats(t *testing.T) {
	eng, _ := New(testConfig())

	result, err := eng.Run(testInput(), testNow)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	q := result.Quality

	if q.LegacyCount != 1 || q.ConfirmedCurrentCount != 3 || q.UnmatchedCurrentCount != 1 {
		t.Errorf("Unexpected partition: legacy=%d confirmed=%d unmatched=%d",
			q.LegacyCount, q.ConfirmedCurrentCount, q.UnmatchedCurrentCount)
	}
	if q.GroupCount() != 5 {
		t.Errorf("Partition must cover every group exactly once, got %d of 5", q.GroupCount())
	}
	if math.Abs(q.OrderMatchRate-0.75) > 1e-9 {
		t.Errorf("Expected order match rate 0.75, got %f", q.OrderMatchRate)
	}

	if q.InventoryTotal != 5 || q.InventoryLegacy != 1 || q.InventoryCurrent != 4 {
		t.Errorf("Unexpected inventory split: total=%d legacy=%d current=%d",
			q.InventoryTotal, q.InventoryLegacy, q.InventoryCurrent)
	}

	if q.ConfirmedAlertCount != 2 {
		t.Errorf("Expected 2 confirmed (current) alerts, got %d", q.ConfirmedAlertCount)
	}
	if q.ConfirmedAlertCountExcl != 1 {
		t.Errorf("Expected 1 confirmed alert excluding common materials, got %d", q.ConfirmedAlertCountExcl)
	}
	if q.HighRiskCount != 1 {
		t.Errorf("Expected 1 high-risk alert (known positive deviation), got %d", q.HighRiskCount)
	}

	if q.IssueLinesTotal != 4 || q.IssueLinesMatched != 2 {
		t.Errorf("Unexpected issue line counts: total=%d matched=%d", q.IssueLinesTotal, q.IssueLinesMatched)
	}
	if math.Abs(q.IssueMatchRate-0.5) > 1e-9 {
		t.Errorf("Expected issue match rate 0.5, got %f", q.IssueMatchRate)
	}
	if q.OverIssueLineCount != 2 {
		t.Errorf("Expected 2 over-issued lines, got %d", q.OverIssueLineCount)
	}

	// WO1/M1 aged 2.5 days, WO3/M3 aged 9.5 days; averages in hours.
	if math.Abs(q.AvgAgingHours-144) > 1e-9 {
		t.Errorf("Expected average aging 144h, got %f", q.AvgAgingHours)
	}
	if math.Abs(q.AvgAgingHoursExcl-60) > 1e-9 {
		t.Errorf("Expected average aging 60h excluding common materials, got %f", q.AvgAgingHoursExcl)
	}
	if q.AgingDistribution.D1_3 != 1 || q.AgingDistribution.D7_14 != 1 || q.AgingDistribution.Total() != 2 {
		t.Errorf("Unexpected aging distribution: %+v", q.AgingDistribution)
	}
}

func TestEngineDegradedMode(t *testing.T) {
	eng, _ := New(testConfig())

	input := testInput()
	input.IssueLines = nil
	input.HasIssueExtract = false

	result, err := eng.Run(input, testNow)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !result.Degraded {
		t.Error("Run without issue extract must report degraded mode")
	}
	if len(result.IssueAudits) != 0 {
		t.Errorf("Degraded run must produce no issue audits, got %d", len(result.IssueAudits))
	}
	if result.Quality.IssueLinesTotal != 0 || result.Quality.IssueMatchRate != 0 {
		t.Error("Degraded run must zero the issue-side statistics")
	}
	if len(result.Alerts) != 3 {
		t.Errorf("Return audit must still run in degraded mode, got %d alerts", len(result.Alerts))
	}
}

func TestEngineMissingRequiredExtract(t *testing.T) {
	eng, _ := New(testConfig())

	input := testInput()
	input.Orders = nil

	_, err := eng.Run(input, testNow)
	if err == nil {
		t.Fatal("Expected error for missing required extract")
	}
	auditErr, ok := errors.AsAuditError(err)
	if !ok || auditErr.Code != errors.CodeMissingExtract {
		t.Errorf("Expected missing_extract error, got %v", err)
	}
}

func TestEngineEmptyInventoryExtract(t *testing.T) {
	eng, _ := New(testConfig())

	input := testInput()
	input.Inventory = []*models.InventoryRecord{}

	result, err := eng.Run(input, testNow)
	if err != nil {
		t.Fatalf("An empty inventory extract must not fail the run: %v", err)
	}
	if len(result.Alerts) != 0 || len(result.Details) != 0 {
		t.Errorf("Expected empty return audit, got %d alerts / %d details",
			len(result.Alerts), len(result.Details))
	}
	if result.Quality.GroupCount() != 0 || result.Quality.InventoryTotal != 0 {
		t.Errorf("Expected empty quality partition, got %+v", result.Quality)
	}
}

func TestEngineDeterminism(t *testing.T) {
	eng, _ := New(testConfig())

	first, err := eng.Run(testInput(), testNow)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	second, err := eng.Run(testInput(), testNow)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if !reflect.DeepEqual(first.Alerts, second.Alerts) {
		t.Error("Alerts differ between identical runs")
	}
	if !reflect.DeepEqual(first.Details, second.Details) {
		t.Error("Details differ between identical runs")
	}
	if !reflect.DeepEqual(first.IssueAudits, second.IssueAudits) {
		t.Error("Issue audits differ between identical runs")
	}
	if !reflect.DeepEqual(first.Quality, second.Quality) {
		t.Error("Quality stats differ between identical runs")
	}
}
