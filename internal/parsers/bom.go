package parsers

import (
	"lineside-audit-service/internal/models"
	"lineside-audit-service/pkg/logger"
)

// BOMParser parses the bill-of-materials extract.
type BOMParser struct {
	config *BOMParserConfig
	logger logger.Logger
}

// NewBOMParser creates a parser for the BOM-line extract.
func NewBOMParser(config *BOMParserConfig) (*BOMParser, error) {
	if config == nil {
		config = DefaultBOMParserConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &BOMParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("bom_parser"),
	}, nil
}

// ParseBOMLines reads the BOM extract. Rows missing either half of the
// (order, component) key are skipped and counted.
func (p *BOMParser) ParseBOMLines(filePath string) ([]*models.BOMLine, *ParseStats, error) {
	rows, err := loadJSONRows(filePath)
	if err != nil {
		return nil, nil, err
	}

	stats := &ParseStats{TotalRows: len(rows)}
	lines := make([]*models.BOMLine, 0, len(rows))

	for i, row := range rows {
		orderNo := row.getString(p.config.Fields["order_no"])
		component := row.getString(p.config.Fields["component"])
		if orderNo == "" || component == "" {
			stats.AddError(i+1, "order_no/component", "", "incomplete BOM key", nil)
			continue
		}

		lines = append(lines, &models.BOMLine{
			OrderNo:       orderNo,
			ComponentCode: component,
			UnitQty:       row.getQuantity(p.config.Fields["unit_qty"]),
			TotalQty:      row.getQuantity(p.config.Fields["total_qty"]),
			IssuedQty:     row.getQuantity(p.config.Fields["issued_qty"]),
		})
		stats.RowsParsed++
	}

	p.logger.WithFields(logger.Fields{
		"file_path": filePath,
		"bom_lines": stats.RowsParsed,
		"skipped":   stats.RowsSkipped,
	}).Info("Parsed BOM lines")

	return lines, stats, nil
}
