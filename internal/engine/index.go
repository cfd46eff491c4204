package engine

import (
	"sort"

	"lineside-audit-service/internal/models"
)

// GroupKey identifies one (order, material) inventory group.
type GroupKey struct {
	OrderNo      string
	MaterialCode string
}

// BOMKey identifies one (order, component) BOM line.
type BOMKey struct {
	OrderNo       string
	ComponentCode string
}

// Indexes holds the lookup structures built from the four extracts.
// Groups and GroupRecords are in deterministic (order, material) order so
// the engine produces identical output for identical input.
type Indexes struct {
	Orders map[string]*models.ProductionOrder
	BOM    map[BOMKey]*models.BOMLine

	Groups       []*models.InventoryGroup
	GroupRecords map[GroupKey][]*models.InventoryRecord

	IssueLines []*models.IssueLine

	// InventoryRawCount is the number of inventory records that survived
	// parsing, before grouping.
	InventoryRawCount int
}

// BuildIndexes constructs the run indexes. Order map entries are last-wins
// on duplicate order numbers. Inventory records fold into one group per
// (order, material): summed quantity, one barcode count per record, a
// deduplicated barcode list, earliest receive and latest issue timestamp,
// first non-empty descriptive fields.
func BuildIndexes(
	orders []*models.ProductionOrder,
	bomLines []*models.BOMLine,
	inventory []*models.InventoryRecord,
	issueLines []*models.IssueLine,
) *Indexes {
	idx := &Indexes{
		Orders:            make(map[string]*models.ProductionOrder, len(orders)),
		BOM:               make(map[BOMKey]*models.BOMLine, len(bomLines)),
		GroupRecords:      make(map[GroupKey][]*models.InventoryRecord),
		IssueLines:        issueLines,
		InventoryRawCount: len(inventory),
	}

	for _, order := range orders {
		idx.Orders[order.OrderNo] = order
	}
	for _, line := range bomLines {
		idx.BOM[BOMKey{OrderNo: line.OrderNo, ComponentCode: line.ComponentCode}] = line
	}

	groups := make(map[GroupKey]*models.InventoryGroup)
	seenBarcodes := make(map[GroupKey]map[string]bool)

	for _, rec := range inventory {
		key := GroupKey{OrderNo: rec.OrderNo, MaterialCode: rec.MaterialCode}
		idx.GroupRecords[key] = append(idx.GroupRecords[key], rec)

		group, ok := groups[key]
		if !ok {
			group = &models.InventoryGroup{
				OrderNo:      rec.OrderNo,
				MaterialCode: rec.MaterialCode,
			}
			groups[key] = group
			seenBarcodes[key] = make(map[string]bool)
		}

		group.Quantity = group.Quantity.Add(rec.Quantity)
		group.BarcodeCount++
		if rec.Barcode != "" && !seenBarcodes[key][rec.Barcode] {
			seenBarcodes[key][rec.Barcode] = true
			group.Barcodes = append(group.Barcodes, rec.Barcode)
		}

		group.Description = models.FirstNonEmpty(group.Description, rec.Description)
		group.Warehouse = models.FirstNonEmpty(group.Warehouse, rec.Warehouse)
		group.Unit = models.FirstNonEmpty(group.Unit, rec.Unit)

		if rec.ReceiveTime != "" && (group.ReceiveTime == "" || rec.ReceiveTime < group.ReceiveTime) {
			group.ReceiveTime = rec.ReceiveTime
		}
		if rec.LastIssueTime > group.LastIssueTime {
			group.LastIssueTime = rec.LastIssueTime
		}
	}

	idx.Groups = make([]*models.InventoryGroup, 0, len(groups))
	for _, group := range groups {
		idx.Groups = append(idx.Groups, group)
	}
	sort.Slice(idx.Groups, func(i, j int) bool {
		a, b := idx.Groups[i], idx.Groups[j]
		if a.OrderNo != b.OrderNo {
			return a.OrderNo < b.OrderNo
		}
		return a.MaterialCode < b.MaterialCode
	})

	return idx
}

// LookupBOM returns the BOM line for (order, component), or nil.
func (idx *Indexes) LookupBOM(orderNo, component string) *models.BOMLine {
	return idx.BOM[BOMKey{OrderNo: orderNo, ComponentCode: component}]
}

// LookupOrder returns the production order, or nil when unknown.
func (idx *Indexes) LookupOrder(orderNo string) *models.ProductionOrder {
	return idx.Orders[orderNo]
}
