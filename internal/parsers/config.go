package parsers

import (
	"fmt"
)

// Canonical field names used by the extract parsers. Each maps to an
// ordered list of candidate source field names; the first name present in
// the extract wins. This keeps locale and upstream-version aliasing out of
// the matching logic.

// OrdersParserConfig configures the production-order extract parser.
type OrdersParserConfig struct {
	Fields map[string][]string `json:"fields"`
}

// DefaultOrdersParserConfig returns the candidates for the MES order export.
func DefaultOrdersParserConfig() *OrdersParserConfig {
	return &OrdersParserConfig{
		Fields: map[string][]string{
			"order_no":    {"shopOrder", "workOrder", "orderNo"},
			"status":      {"statusDesc", "status"},
			"qty_ordered": {"qtyOrdered", "orderedQty"},
			"qty_done":    {"qtyDone", "completedQty", "doneQty"},
		},
	}
}

// Validate checks that every required field has at least one candidate.
func (c *OrdersParserConfig) Validate() error {
	return validateFields(c.Fields, "order_no", "status", "qty_ordered", "qty_done")
}

// BOMParserConfig configures the BOM-line extract parser.
type BOMParserConfig struct {
	Fields map[string][]string `json:"fields"`
}

// DefaultBOMParserConfig returns the candidates for the MES BOM export.
func DefaultBOMParserConfig() *BOMParserConfig {
	return &BOMParserConfig{
		Fields: map[string][]string{
			"order_no":   {"shopOrder", "workOrder", "orderNo"},
			"component":  {"componentGbo", "componentCode", "component"},
			"unit_qty":   {"qty", "unitQty"},
			"total_qty":  {"sumQty", "totalQty"},
			"issued_qty": {"sendQty", "issuedQty"},
		},
	}
}

// Validate checks that every required field has at least one candidate.
func (c *BOMParserConfig) Validate() error {
	return validateFields(c.Fields, "order_no", "component", "unit_qty", "total_qty", "issued_qty")
}

// InventoryParserConfig configures the line-side inventory CSV parser.
type InventoryParserConfig struct {
	CSV    *CSVConfig          `json:"csv"`
	Fields map[string][]string `json:"fields"`
}

// DefaultInventoryParserConfig returns the candidates for the warehouse
// reporting export. The export carries localized headers; English names are
// listed first so re-exports from the newer reporting templates also parse.
func DefaultInventoryParserConfig() *InventoryParserConfig {
	return &InventoryParserConfig{
		CSV: DefaultCSVConfig(),
		Fields: map[string][]string{
			"order_no":        {"work_order", "指定工单"},
			"material":        {"material_code", "物料"},
			"quantity":        {"on_hand_qty", "现存量"},
			"barcode":         {"barcode", "条码"},
			"description":     {"material_desc", "物料描述"},
			"warehouse":       {"warehouse_desc", "线边仓描述", "warehouse", "线边仓"},
			"unit":            {"unit", "单位"},
			"receive_time":    {"receive_time", "接收时间"},
			"last_issue_time": {"last_issue_time", "最新发料单时间"},
		},
	}
}

// Validate checks that the key fields have at least one candidate.
func (c *InventoryParserConfig) Validate() error {
	return validateFields(c.Fields, "order_no", "material", "quantity")
}

// IssueParserConfig configures the material-issue transaction parser.
type IssueParserConfig struct {
	Fields map[string][]string `json:"fields"`
}

// DefaultIssueParserConfig returns the candidates for the warehouse
// management issue-line export. The two order-reference fields are both
// comma-delimited; their entries are unioned per line.
func DefaultIssueParserConfig() *IssueParserConfig {
	return &IssueParserConfig{
		Fields: map[string][]string{
			"doc_id":          {"_instructionDocId", "instructionDocId", "docId"},
			"doc_number":      {"_demandListNumber", "demandListNumber", "docNumber"},
			"component":       {"componentCode", "component"},
			"order_refs":      {"_workOrderNum", "workOrderNum"},
			"related_refs":    {"relatedWoLine", "relatedWo"},
			"demand_qty":      {"demandQuantity", "demandQty"},
			"actual_qty":      {"actualQuantity", "actualQty"},
			"status":          {"status"},
			"production_line": {"_productionLine", "productionLine"},
			"warehouse":       {"_wareHouse", "warehouse"},
			"doc_status":      {"_docStatus", "docStatus"},
			"planned_date":    {"_ppStartTime", "ppStartTime", "plannedIssueDate"},
		},
	}
}

// Validate checks that the key fields have at least one candidate.
func (c *IssueParserConfig) Validate() error {
	return validateFields(c.Fields, "doc_id", "component", "order_refs", "demand_qty", "actual_qty")
}

func validateFields(fields map[string][]string, required ...string) error {
	if fields == nil {
		return fmt.Errorf("field candidates cannot be nil")
	}
	for _, name := range required {
		if len(fields[name]) == 0 {
			return fmt.Errorf("field '%s' has no candidate source names", name)
		}
	}
	return nil
}
