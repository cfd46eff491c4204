package parsers

import (
	"sort"

	"lineside-audit-service/internal/models"
	"lineside-audit-service/pkg/logger"
)

// IssueParser parses the material-issue transaction extract. The extract
// is optional; its absence is handled by the caller, not here.
type IssueParser struct {
	config *IssueParserConfig
	logger logger.Logger
}

// NewIssueParser creates a parser for the issue-transaction extract.
func NewIssueParser(config *IssueParserConfig) (*IssueParser, error) {
	if config == nil {
		config = DefaultIssueParserConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &IssueParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("issue_parser"),
	}, nil
}

// ParseIssueLines reads the issue extract. A line's associated order set is
// the union of both comma-delimited order-reference fields, sorted and
// deduplicated. Component-less rows are skipped and counted. Duplicate
// (document, component) lines are NOT collapsed here; the issue-audit
// matcher deduplicates while still counting every parsed line.
func (p *IssueParser) ParseIssueLines(filePath string) ([]*models.IssueLine, *ParseStats, error) {
	rows, err := loadJSONRows(filePath)
	if err != nil {
		return nil, nil, err
	}

	stats := &ParseStats{TotalRows: len(rows)}
	lines := make([]*models.IssueLine, 0, len(rows))

	for i, row := range rows {
		component := row.getString(p.config.Fields["component"])
		if component == "" {
			stats.AddError(i+1, "component", "", "missing component code", nil)
			continue
		}

		orderSet := make(map[string]bool)
		for _, wo := range models.SplitOrderRefs(row.getString(p.config.Fields["order_refs"])) {
			orderSet[wo] = true
		}
		for _, wo := range models.SplitOrderRefs(row.getString(p.config.Fields["related_refs"])) {
			orderSet[wo] = true
		}

		orders := make([]string, 0, len(orderSet))
		for wo := range orderSet {
			orders = append(orders, wo)
		}
		sort.Strings(orders)

		lines = append(lines, &models.IssueLine{
			DocID:            row.getString(p.config.Fields["doc_id"]),
			DocNumber:        row.getString(p.config.Fields["doc_number"]),
			ComponentCode:    component,
			Orders:           orders,
			DemandQty:        row.getQuantity(p.config.Fields["demand_qty"]),
			ActualQty:        row.getQuantity(p.config.Fields["actual_qty"]),
			Status:           row.getString(p.config.Fields["status"]),
			ProductionLine:   row.getString(p.config.Fields["production_line"]),
			Warehouse:        row.getString(p.config.Fields["warehouse"]),
			DocStatus:        row.getString(p.config.Fields["doc_status"]),
			PlannedIssueDate: row.getString(p.config.Fields["planned_date"]),
		})
		stats.RowsParsed++
	}

	p.logger.WithFields(logger.Fields{
		"file_path":   filePath,
		"issue_lines": stats.RowsParsed,
		"skipped":     stats.RowsSkipped,
	}).Info("Parsed issue transaction lines")

	return lines, stats, nil
}
