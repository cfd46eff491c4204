// Package reporter renders one audit run into its output artifacts: the
// return-alert table, its barcode-level detail expansion, the issue-audit
// table, a JSON dump of the full result and a console summary.
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"lineside-audit-service/internal/engine"
	"lineside-audit-service/internal/models"
	"lineside-audit-service/pkg/errors"
	"lineside-audit-service/pkg/logger"
)

// Report file names within the output directory.
const (
	AlertReportFile      = "alert_report.csv"
	AlertDetailFile      = "alert_report_detail.csv"
	IssueAuditReportFile = "issue_audit_report.csv"
	ResultJSONFile       = "audit_result.json"
)

// Quantities round to two places and rates to one, at the presentation
// edge only. Aggregate math upstream stays unrounded.
const (
	quantityPlaces = 2
	ratePlaces     = 1
)

// ReportConfig holds report generation settings.
type ReportConfig struct {
	OutputDir    string `json:"output_dir"`
	CSVDelimiter rune   `json:"csv_delimiter"`
	CSVHeaders   bool   `json:"csv_headers"`
	WriteJSON    bool   `json:"write_json"`
}

// DefaultReportConfig returns sensible default settings.
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		OutputDir:    "reports",
		CSVDelimiter: ',',
		CSVHeaders:   true,
		WriteJSON:    true,
	}
}

// Validate checks the configuration.
func (c *ReportConfig) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if c.CSVDelimiter == 0 {
		return fmt.Errorf("CSV delimiter cannot be empty")
	}
	return nil
}

// ReportGenerator writes audit results in the configured formats.
type ReportGenerator struct {
	config *ReportConfig
	logger logger.Logger
}

// NewReportGenerator creates a report generator with the specified
// configuration.
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidData, "reporter", nil, err)
	}

	return &ReportGenerator{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("reporter"),
	}, nil
}

// WriteAll writes every report artifact for one run into the output
// directory and returns the written paths. The issue-audit report is
// skipped for degraded runs.
func (rg *ReportGenerator) WriteAll(result *engine.Result) ([]string, error) {
	if result == nil {
		return nil, fmt.Errorf("audit result cannot be nil")
	}

	if err := os.MkdirAll(rg.config.OutputDir, 0755); err != nil {
		return nil, errors.FileError(errors.CodeDirectoryError, rg.config.OutputDir, err)
	}

	written := make([]string, 0, 4)
	write := func(name string, fn func(io.Writer) error) error {
		path := filepath.Join(rg.config.OutputDir, name)
		file, err := os.Create(path)
		if err != nil {
			return errors.FileError(errors.CodeFilePermission, path, err)
		}
		defer file.Close()

		if err := fn(file); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if err := write(AlertReportFile, func(w io.Writer) error {
		return rg.WriteAlertCSV(result.Alerts, w)
	}); err != nil {
		return nil, err
	}
	if err := write(AlertDetailFile, func(w io.Writer) error {
		return rg.WriteDetailCSV(result.Details, w)
	}); err != nil {
		return nil, err
	}
	if !result.Degraded {
		if err := write(IssueAuditReportFile, func(w io.Writer) error {
			return rg.WriteIssueAuditCSV(result.IssueAudits, w)
		}); err != nil {
			return nil, err
		}
	}
	if rg.config.WriteJSON {
		if err := write(ResultJSONFile, func(w io.Writer) error {
			return rg.WriteResultJSON(result, w)
		}); err != nil {
			return nil, err
		}
	}

	rg.logger.WithFields(logger.Fields{
		"batch_id": result.BatchID,
		"files":    len(written),
		"dir":      rg.config.OutputDir,
	}).Info("Reports written")

	return written, nil
}

// WriteAlertCSV writes the return-alert table.
func (rg *ReportGenerator) WriteAlertCSV(alerts []*models.ReturnAlertRecord, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	if rg.config.CSVHeaders {
		headers := []string{
			"Order_No",
			"Material_Code",
			"Description",
			"Warehouse",
			"Unit",
			"Actual_Qty",
			"Barcode_Count",
			"Barcodes",
			"Order_Status",
			"Qty_Ordered",
			"Qty_Done",
			"BOM_Unit_Qty",
			"BOM_Total_Qty",
			"BOM_Issued_Qty",
			"Theoretical_Remainder",
			"Deviation",
			"Receive_Time",
			"Last_Issue_Time",
			"Aging_Days",
			"Is_Legacy",
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, alert := range alerts {
		record := []string{
			alert.OrderNo,
			alert.MaterialCode,
			alert.Description,
			alert.Warehouse,
			alert.Unit,
			formatQuantity(alert.ActualQty),
			strconv.Itoa(alert.BarcodeCount),
			strings.Join(alert.Barcodes, ";"),
			alert.OrderStatus,
			formatQuantity(alert.QtyOrdered),
			formatQuantity(alert.QtyDone),
			formatOptional(alert.BOMUnitQty),
			formatOptional(alert.BOMTotalQty),
			formatOptional(alert.BOMIssuedQty),
			formatOptional(alert.TheoreticalRemainder),
			formatOptional(alert.Deviation),
			alert.ReceiveTime,
			alert.LastIssueTime,
			engine.FormatAgingDays(alert.AgingDays),
			strconv.FormatBool(alert.IsLegacy),
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write alert record: %w", err)
		}
	}

	return nil
}

// WriteDetailCSV writes the barcode-level detail expansion.
func (rg *ReportGenerator) WriteDetailCSV(details []*models.ReturnAlertDetail, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	if rg.config.CSVHeaders {
		headers := []string{
			"Order_No",
			"Material_Code",
			"Description",
			"Barcode",
			"Quantity",
			"Unit",
			"Warehouse",
			"Receive_Time",
			"Last_Issue_Time",
			"Order_Status",
			"Qty_Done",
			"Deviation",
			"Theoretical_Remainder",
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, detail := range details {
		record := []string{
			detail.OrderNo,
			detail.MaterialCode,
			detail.Description,
			detail.Barcode,
			formatQuantity(detail.Quantity),
			detail.Unit,
			detail.Warehouse,
			detail.ReceiveTime,
			detail.LastIssueTime,
			detail.OrderStatus,
			formatQuantity(detail.QtyDone),
			formatOptional(detail.Deviation),
			formatOptional(detail.TheoreticalRemainder),
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write detail record: %w", err)
		}
	}

	return nil
}

// WriteIssueAuditCSV writes the issue-audit table.
func (rg *ReportGenerator) WriteIssueAuditCSV(records []*models.IssueAuditRecord, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	if rg.config.CSVHeaders {
		headers := []string{
			"Doc_ID",
			"Doc_Number",
			"Doc_Status",
			"Related_Orders",
			"Matched_Order",
			"Order_Status",
			"Component_Code",
			"Demand_Qty",
			"Actual_Qty",
			"Over_Issue",
			"Over_Issue_Rate",
			"Demand_Verdict",
			"BOM_Total_Qty",
			"Over_Vs_BOM",
			"Over_Vs_BOM_Rate",
			"BOM_Verdict",
			"Issue_Status",
			"Production_Line",
			"Warehouse",
			"Planned_Date",
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, rec := range records {
		bomRate := ""
		if rec.BOMVerdict != models.VerdictNoData {
			bomRate = formatRate(rec.OverVsBOMRate)
		}
		record := []string{
			rec.DocID,
			rec.DocNumber,
			rec.DocStatus,
			strings.Join(rec.RelatedOrders, ";"),
			rec.MatchedOrder,
			rec.OrderStatus,
			rec.ComponentCode,
			formatQuantity(rec.DemandQty),
			formatQuantity(rec.ActualQty),
			formatQuantity(rec.OverIssue),
			formatRate(rec.OverIssueRate),
			rec.DemandVerdict.String(),
			formatOptional(rec.BOMTotalQty),
			formatOptional(rec.OverVsBOM),
			bomRate,
			rec.BOMVerdict.String(),
			rec.IssueStatus,
			rec.ProductionLine,
			rec.Warehouse,
			rec.PlannedDate,
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write issue audit record: %w", err)
		}
	}

	return nil
}

// WriteResultJSON writes the complete run result as indented JSON.
func (rg *ReportGenerator) WriteResultJSON(result *engine.Result, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// WriteConsoleSummary writes a human-readable run summary.
func (rg *ReportGenerator) WriteConsoleSummary(result *engine.Result, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("audit result cannot be nil")
	}
	q := result.Quality

	fmt.Fprintf(writer, "LINE-SIDE AUDIT REPORT\n")
	fmt.Fprintf(writer, "Batch: %s\n", result.BatchID)
	fmt.Fprintf(writer, "Generated: %s\n", result.GeneratedAt.Format("2006-01-02 15:04:05"))
	if result.Degraded {
		fmt.Fprintf(writer, "Mode: degraded (issue extract unavailable)\n")
	}
	fmt.Fprintf(writer, "\n=== RETURN AUDIT ===\n")
	fmt.Fprintf(writer, "%-28s %d\n", "Return alerts:", len(result.Alerts))
	fmt.Fprintf(writer, "%-28s %d\n", "Confirmed (current):", q.ConfirmedAlertCount)
	fmt.Fprintf(writer, "%-28s %d\n", "Excl. common materials:", q.ConfirmedAlertCountExcl)
	fmt.Fprintf(writer, "%-28s %d\n", "High risk:", q.HighRiskCount)
	fmt.Fprintf(writer, "%-28s %s h\n", "Average aging:", formatRate(q.AvgAgingHours))

	fmt.Fprintf(writer, "\n=== ISSUE AUDIT ===\n")
	fmt.Fprintf(writer, "%-28s %d\n", "Lines seen:", q.IssueLinesTotal)
	fmt.Fprintf(writer, "%-28s %d\n", "Lines matched:", q.IssueLinesMatched)
	fmt.Fprintf(writer, "%-28s %s%%\n", "Match rate:", formatRate(q.IssueMatchRate*100))
	fmt.Fprintf(writer, "%-28s %d\n", "Over-issued lines:", q.OverIssueLineCount)

	fmt.Fprintf(writer, "\n=== DATA QUALITY ===\n")
	fmt.Fprintf(writer, "%-28s %d\n", "Inventory rows:", q.InventoryTotal)
	fmt.Fprintf(writer, "%-28s %d / %d\n", "Legacy / current rows:", q.InventoryLegacy, q.InventoryCurrent)
	fmt.Fprintf(writer, "%-28s %d (legacy %d, matched %d, unmatched %d)\n", "Inventory groups:",
		q.GroupCount(), q.LegacyCount, q.ConfirmedCurrentCount, q.UnmatchedCurrentCount)
	fmt.Fprintf(writer, "%-28s %s%%\n", "Order match rate:", formatRate(q.OrderMatchRate*100))

	return nil
}

func formatQuantity(v decimal.Decimal) string {
	return v.Round(quantityPlaces).String()
}

func formatOptional(q models.Quantity) string {
	return q.Round(quantityPlaces).String()
}

func formatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', ratePlaces, 64)
}
