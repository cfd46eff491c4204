package parsers

import (
	"io"

	"lineside-audit-service/internal/models"
	"lineside-audit-service/pkg/errors"
	"lineside-audit-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// noiseFloor is the on-hand quantity at or below which an inventory row is
// treated as noise and discarded before grouping.
var noiseFloor = decimal.NewFromFloat(0.01)

// InventoryParser parses the line-side warehouse inventory CSV extract.
type InventoryParser struct {
	base   *baseCSVParser
	config *InventoryParserConfig
	logger logger.Logger
}

// NewInventoryParser creates a parser for the inventory extract.
func NewInventoryParser(config *InventoryParserConfig) (*InventoryParser, error) {
	if config == nil {
		config = DefaultInventoryParserConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &InventoryParser{
		base:   newBaseCSVParser(config.CSV, "inventory_parser"),
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("inventory_parser"),
	}, nil
}

// ParseInventory reads the inventory extract into barcode-level records.
// Rows with a missing order or material, or with an on-hand quantity at or
// below the noise floor, are discarded here so that grouping and the raw
// row statistics downstream see only meaningful stock.
func (p *InventoryParser) ParseInventory(filePath string) ([]*models.InventoryRecord, *ParseStats, error) {
	file, reader, err := p.base.openFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, errors.ParseError(
				errors.CodeInvalidFormat, filePath, 1, "headers", "",
				nil,
			).WithSuggestion("Ensure the extract contains a header row and data rows")
		}
		return nil, nil, errors.ParseError(errors.CodeInvalidFormat, filePath, 1, "headers", "", err)
	}

	idx := buildHeaderIndex(headers, p.config.Fields)
	for _, key := range []string{"order_no", "material", "quantity"} {
		if !idx.has(key) {
			return nil, nil, errors.ParseError(
				errors.CodeMissingColumn, filePath, 1, key, "",
				nil,
			).WithSuggestion("Check the extract headers against the configured field candidates")
		}
	}

	stats := &ParseStats{}
	records := make([]*models.InventoryRecord, 0, 64)
	line := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.ParseError(errors.CodeInvalidFormat, filePath, line+1, "row", "", err)
		}
		line++

		if p.base.config.SkipEmptyRows && isEmptyRecord(record) {
			continue
		}
		stats.TotalRows++

		orderNo := idx.get(record, "order_no")
		material := idx.get(record, "material")
		qty := models.ParseQuantity(idx.get(record, "quantity"))

		if orderNo == "" || material == "" {
			stats.AddError(line, "order_no/material", "", "missing inventory key", nil)
			continue
		}
		if qty.LessThanOrEqual(noiseFloor) {
			stats.AddError(line, "quantity", qty.String(), "at or below noise floor", nil)
			continue
		}

		records = append(records, &models.InventoryRecord{
			OrderNo:       orderNo,
			MaterialCode:  material,
			Quantity:      qty,
			Barcode:       idx.get(record, "barcode"),
			Description:   idx.get(record, "description"),
			Warehouse:     idx.get(record, "warehouse"),
			Unit:          idx.get(record, "unit"),
			ReceiveTime:   idx.get(record, "receive_time"),
			LastIssueTime: idx.get(record, "last_issue_time"),
		})
		stats.RowsParsed++
	}

	p.logger.WithFields(logger.Fields{
		"file_path": filePath,
		"records":   stats.RowsParsed,
		"skipped":   stats.RowsSkipped,
	}).Info("Parsed inventory records")

	return records, stats, nil
}
