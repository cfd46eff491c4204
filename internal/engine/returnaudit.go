package engine

import (
	"sort"

	"lineside-audit-service/internal/models"
	"lineside-audit-service/pkg/logger"
)

// ReturnAuditMatcher finds completed orders still holding line-side stock.
// One InventoryGroup maps to exactly one ReturnAlertRecord, or to none when
// its order is unknown or not completed.
type ReturnAuditMatcher struct {
	config *Config
	aging  *AgingClassifier
	logger logger.Logger
}

// NewReturnAuditMatcher creates a matcher for one run.
func NewReturnAuditMatcher(config *Config, aging *AgingClassifier) *ReturnAuditMatcher {
	return &ReturnAuditMatcher{
		config: config,
		aging:  aging,
		logger: logger.GetGlobalLogger().WithComponent("return_audit"),
	}
}

// Match walks every inventory group and emits the alert records, sorted
// descending by deviation with ties broken by ascending order number. An
// unknown deviation sorts as zero but is never coerced for aggregate math.
func (m *ReturnAuditMatcher) Match(idx *Indexes) []*models.ReturnAlertRecord {
	var alerts []*models.ReturnAlertRecord

	for _, group := range idx.Groups {
		order := idx.LookupOrder(group.OrderNo)
		if order == nil || !m.config.IsCompleted(order.Status) {
			continue
		}

		alert := &models.ReturnAlertRecord{
			OrderNo:       group.OrderNo,
			MaterialCode:  group.MaterialCode,
			Description:   group.Description,
			Warehouse:     group.Warehouse,
			Unit:          group.Unit,
			ActualQty:     group.Quantity,
			BarcodeCount:  group.BarcodeCount,
			Barcodes:      group.Barcodes,
			OrderStatus:   order.Status,
			QtyOrdered:    order.QtyOrdered,
			QtyDone:       order.QtyDone,
			ReceiveTime:   group.ReceiveTime,
			LastIssueTime: group.LastIssueTime,
		}

		if bom := idx.LookupBOM(group.OrderNo, group.MaterialCode); bom != nil {
			theoretical := bom.TotalQty.Sub(order.QtyDone.Mul(bom.UnitQty))
			alert.BOMUnitQty = models.KnownQuantity(bom.UnitQty)
			alert.BOMTotalQty = models.KnownQuantity(bom.TotalQty)
			alert.BOMIssuedQty = models.KnownQuantity(bom.IssuedQty)
			alert.TheoreticalRemainder = models.KnownQuantity(theoretical)
			alert.Deviation = models.KnownQuantity(group.Quantity.Sub(theoretical))
		}

		aging := m.aging.Classify(group.ReceiveTime)
		alert.AgingDays = aging.Days
		alert.IsLegacy = aging.Legacy
		alert.IsCommon = m.config.IsCommonMaterial(group.MaterialCode)

		alerts = append(alerts, alert)
	}

	sort.Slice(alerts, func(i, j int) bool {
		di, dj := alerts[i].SortDeviation(), alerts[j].SortDeviation()
		if !di.Equal(dj) {
			return di.GreaterThan(dj)
		}
		if alerts[i].OrderNo != alerts[j].OrderNo {
			return alerts[i].OrderNo < alerts[j].OrderNo
		}
		return alerts[i].MaterialCode < alerts[j].MaterialCode
	})

	m.logger.WithFields(logger.Fields{
		"groups": len(idx.Groups),
		"alerts": len(alerts),
	}).Info("Return audit matched")

	return alerts
}

// ExpandDetails re-expands each alert into its constituent barcode rows,
// carrying the group-level order status and deviation figures onto every
// row. Output is sorted by (order, material) ascending.
func (m *ReturnAuditMatcher) ExpandDetails(idx *Indexes, alerts []*models.ReturnAlertRecord) []*models.ReturnAlertDetail {
	ordered := make([]*models.ReturnAlertRecord, len(alerts))
	copy(ordered, alerts)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].OrderNo != ordered[j].OrderNo {
			return ordered[i].OrderNo < ordered[j].OrderNo
		}
		return ordered[i].MaterialCode < ordered[j].MaterialCode
	})

	var details []*models.ReturnAlertDetail
	for _, alert := range ordered {
		key := GroupKey{OrderNo: alert.OrderNo, MaterialCode: alert.MaterialCode}
		for _, rec := range idx.GroupRecords[key] {
			details = append(details, &models.ReturnAlertDetail{
				OrderNo:              rec.OrderNo,
				MaterialCode:         rec.MaterialCode,
				Description:          rec.Description,
				Barcode:              rec.Barcode,
				Quantity:             rec.Quantity,
				Unit:                 rec.Unit,
				Warehouse:            rec.Warehouse,
				ReceiveTime:          rec.ReceiveTime,
				LastIssueTime:        rec.LastIssueTime,
				OrderStatus:          alert.OrderStatus,
				QtyDone:              alert.QtyDone,
				Deviation:            alert.Deviation,
				TheoreticalRemainder: alert.TheoreticalRemainder,
			})
		}
	}

	return details
}
