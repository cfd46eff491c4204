package parsers

import (
	"lineside-audit-service/internal/models"
	"lineside-audit-service/pkg/logger"
)

// OrdersParser parses the production-order extract.
type OrdersParser struct {
	config *OrdersParserConfig
	logger logger.Logger
}

// NewOrdersParser creates a parser for the production-order extract.
func NewOrdersParser(config *OrdersParserConfig) (*OrdersParser, error) {
	if config == nil {
		config = DefaultOrdersParserConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &OrdersParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("orders_parser"),
	}, nil
}

// ParseOrders reads the order extract. Rows without an order number are
// skipped and counted; numeric fields degrade to zero.
func (p *OrdersParser) ParseOrders(filePath string) ([]*models.ProductionOrder, *ParseStats, error) {
	rows, err := loadJSONRows(filePath)
	if err != nil {
		return nil, nil, err
	}

	stats := &ParseStats{TotalRows: len(rows)}
	orders := make([]*models.ProductionOrder, 0, len(rows))

	for i, row := range rows {
		orderNo := row.getString(p.config.Fields["order_no"])
		if orderNo == "" {
			stats.AddError(i+1, "order_no", "", "missing order number", nil)
			continue
		}

		orders = append(orders, &models.ProductionOrder{
			OrderNo:    orderNo,
			Status:     row.getString(p.config.Fields["status"]),
			QtyOrdered: row.getQuantity(p.config.Fields["qty_ordered"]),
			QtyDone:    row.getQuantity(p.config.Fields["qty_done"]),
		})
		stats.RowsParsed++
	}

	p.logger.WithFields(logger.Fields{
		"file_path": filePath,
		"orders":    stats.RowsParsed,
		"skipped":   stats.RowsSkipped,
	}).Info("Parsed production orders")

	return orders, stats, nil
}
