// Package models defines the entity model for one audit batch run.
//
// Entities mirror the four upstream extracts (production orders, BOM lines,
// line-side inventory, material-issue transactions) plus the three output
// record types (return alerts, issue audits, quality stats). All entities are
// immutable once a run has produced them; their lifetime is a single run.
package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ProductionOrder is the source of truth for whether an order is done.
type ProductionOrder struct {
	OrderNo    string          `json:"order_no"`
	Status     string          `json:"status"`
	QtyOrdered decimal.Decimal `json:"qty_ordered"`
	QtyDone    decimal.Decimal `json:"qty_done"`
}

// BOMLine is the planned consumption of one component on one order.
// A missing BOM line is valid and downgrades downstream calculations
// to an unknown theoretical baseline.
type BOMLine struct {
	OrderNo       string          `json:"order_no"`
	ComponentCode string          `json:"component_code"`
	UnitQty       decimal.Decimal `json:"unit_qty"`
	TotalQty      decimal.Decimal `json:"total_qty"`
	IssuedQty     decimal.Decimal `json:"issued_qty"`
}

// InventoryRecord is one physical barcode/tote row from the warehouse extract.
// Timestamps stay raw strings; parsing happens in the aging classifier.
type InventoryRecord struct {
	OrderNo       string          `json:"order_no"`
	MaterialCode  string          `json:"material_code"`
	Quantity      decimal.Decimal `json:"quantity"`
	Barcode       string          `json:"barcode"`
	Description   string          `json:"description"`
	Warehouse     string          `json:"warehouse"`
	Unit          string          `json:"unit"`
	ReceiveTime   string          `json:"receive_time"`
	LastIssueTime string          `json:"last_issue_time"`
}

// InventoryGroup aggregates InventoryRecords sharing (order, material).
// Exactly one group exists per pair; it is the unit of return-audit analysis.
type InventoryGroup struct {
	OrderNo       string          `json:"order_no"`
	MaterialCode  string          `json:"material_code"`
	Quantity      decimal.Decimal `json:"quantity"`
	BarcodeCount  int             `json:"barcode_count"`
	Barcodes      []string        `json:"barcodes"`
	Description   string          `json:"description"`
	Warehouse     string          `json:"warehouse"`
	Unit          string          `json:"unit"`
	ReceiveTime   string          `json:"receive_time"`
	LastIssueTime string          `json:"last_issue_time"`
}

// IssueLine is one deduplicated material-issue transaction line.
// Orders is the union of the two delimited order-reference fields,
// sorted ascending and deduplicated.
type IssueLine struct {
	DocID            string          `json:"doc_id"`
	DocNumber        string          `json:"doc_number"`
	ComponentCode    string          `json:"component_code"`
	Orders           []string        `json:"orders"`
	DemandQty        decimal.Decimal `json:"demand_qty"`
	ActualQty        decimal.Decimal `json:"actual_qty"`
	Status           string          `json:"status"`
	ProductionLine   string          `json:"production_line"`
	Warehouse        string          `json:"warehouse"`
	DocStatus        string          `json:"doc_status"`
	PlannedIssueDate string          `json:"planned_issue_date"`
}

// HasOrder reports whether the line references the given order number.
func (l *IssueLine) HasOrder(orderNo string) bool {
	for _, wo := range l.Orders {
		if wo == orderNo {
			return true
		}
	}
	return false
}

// ReturnAlertRecord is one return-audit output row: a completed order that
// still holds line-side stock for one material.
type ReturnAlertRecord struct {
	OrderNo              string          `json:"order_no"`
	MaterialCode         string          `json:"material_code"`
	Description          string          `json:"description"`
	Warehouse            string          `json:"warehouse"`
	Unit                 string          `json:"unit"`
	ActualQty            decimal.Decimal `json:"actual_qty"`
	BarcodeCount         int             `json:"barcode_count"`
	Barcodes             []string        `json:"barcodes"`
	OrderStatus          string          `json:"order_status"`
	QtyOrdered           decimal.Decimal `json:"qty_ordered"`
	QtyDone              decimal.Decimal `json:"qty_done"`
	BOMUnitQty           Quantity        `json:"bom_unit_qty"`
	BOMTotalQty          Quantity        `json:"bom_total_qty"`
	BOMIssuedQty         Quantity        `json:"bom_issued_qty"`
	TheoreticalRemainder Quantity        `json:"theoretical_remainder"`
	Deviation            Quantity        `json:"deviation"`
	ReceiveTime          string          `json:"receive_time"`
	LastIssueTime        string          `json:"last_issue_time"`
	AgingDays            float64         `json:"aging_days"`
	IsLegacy             bool            `json:"is_legacy"`
	IsCommon             bool            `json:"is_common"`
}

// SortDeviation is the deviation used for presentation ordering.
// Unknown deviations sort as zero; aggregate math must use Deviation itself.
func (r *ReturnAlertRecord) SortDeviation() decimal.Decimal {
	if r.Deviation.Known() {
		return r.Deviation.Value()
	}
	return decimal.Zero
}

// ReturnAlertDetail is one barcode-level detail row: an InventoryRecord
// re-expanded from its alert group with the group-level figures attached.
type ReturnAlertDetail struct {
	OrderNo              string          `json:"order_no"`
	MaterialCode         string          `json:"material_code"`
	Description          string          `json:"description"`
	Barcode              string          `json:"barcode"`
	Quantity             decimal.Decimal `json:"quantity"`
	Unit                 string          `json:"unit"`
	Warehouse            string          `json:"warehouse"`
	ReceiveTime          string          `json:"receive_time"`
	LastIssueTime        string          `json:"last_issue_time"`
	OrderStatus          string          `json:"order_status"`
	QtyDone              decimal.Decimal `json:"qty_done"`
	Deviation            Quantity        `json:"deviation"`
	TheoreticalRemainder Quantity        `json:"theoretical_remainder"`
}

// IssueVerdict classifies one over-issue baseline comparison.
type IssueVerdict string

const (
	VerdictOverIssued  IssueVerdict = "over_issued"
	VerdictNormal      IssueVerdict = "normal"
	VerdictUnderIssued IssueVerdict = "under_issued"
	VerdictNoData      IssueVerdict = "no_data"
)

// String returns the string representation of IssueVerdict
func (v IssueVerdict) String() string {
	return string(v)
}

// ClassifyIssue buckets an over-issue amount into a verdict using the
// given tolerance band around zero.
func ClassifyIssue(over decimal.Decimal, tolerance decimal.Decimal) IssueVerdict {
	switch {
	case over.GreaterThan(tolerance):
		return VerdictOverIssued
	case over.GreaterThanOrEqual(tolerance.Neg()):
		return VerdictNormal
	default:
		return VerdictUnderIssued
	}
}

// IssueAuditRecord is one issue-audit output row: a deduplicated issue line
// matched to at least one known order, with over-issue figures against the
// transaction's own demand and, independently, against the BOM total.
type IssueAuditRecord struct {
	DocID          string          `json:"doc_id"`
	DocNumber      string          `json:"doc_number"`
	DocStatus      string          `json:"doc_status"`
	RelatedOrders  []string        `json:"related_orders"`
	MatchedOrder   string          `json:"matched_order"`
	OrderStatus    string          `json:"order_status"`
	ComponentCode  string          `json:"component_code"`
	DemandQty      decimal.Decimal `json:"demand_qty"`
	ActualQty      decimal.Decimal `json:"actual_qty"`
	OverIssue      decimal.Decimal `json:"over_issue"`
	OverIssueRate  float64         `json:"over_issue_rate"`
	DemandVerdict  IssueVerdict    `json:"demand_verdict"`
	BOMTotalQty    Quantity        `json:"bom_total_qty"`
	OverVsBOM      Quantity        `json:"over_vs_bom"`
	OverVsBOMRate  float64         `json:"over_vs_bom_rate"`
	BOMVerdict     IssueVerdict    `json:"bom_verdict"`
	IssueStatus    string          `json:"issue_status"`
	ProductionLine string          `json:"production_line"`
	Warehouse      string          `json:"warehouse"`
	PlannedDate    string          `json:"planned_date"`
}

// AgingDistribution is the aging-bucket histogram over confirmed alerts.
// Bucket bounds are inclusive on the upper edge, in days.
type AgingDistribution struct {
	LE1    int `json:"le1"`
	D1_3   int `json:"d1_3"`
	D3_7   int `json:"d3_7"`
	D7_14  int `json:"d7_14"`
	D14_30 int `json:"d14_30"`
	GT30   int `json:"gt30"`
}

// Add buckets one aging figure. Negative (unparseable sentinel) values
// are excluded.
func (d *AgingDistribution) Add(days float64) {
	switch {
	case days < 0:
	case days <= 1:
		d.LE1++
	case days <= 3:
		d.D1_3++
	case days <= 7:
		d.D3_7++
	case days <= 14:
		d.D7_14++
	case days <= 30:
		d.D14_30++
	default:
		d.GT30++
	}
}

// Total returns the number of bucketed records.
func (d *AgingDistribution) Total() int {
	return d.LE1 + d.D1_3 + d.D3_7 + d.D7_14 + d.D14_30 + d.GT30
}

// QualityStats is the single per-run data-quality record.
//
// LegacyCount, ConfirmedCurrentCount and UnmatchedCurrentCount partition the
// inventory-group set exactly: every group falls in one of the three.
type QualityStats struct {
	InventoryTotal   int `json:"inventory_total"`
	InventoryLegacy  int `json:"inventory_legacy"`
	InventoryCurrent int `json:"inventory_current"`

	OrdersTotal int `json:"orders_total"`

	LegacyCount           int     `json:"legacy_count"`
	ConfirmedCurrentCount int     `json:"confirmed_current_count"`
	UnmatchedCurrentCount int     `json:"unmatched_current_count"`
	OrderMatchRate        float64 `json:"order_match_rate"`

	IssueLinesTotal   int     `json:"issue_lines_total"`
	IssueLinesMatched int     `json:"issue_lines_matched"`
	IssueMatchRate    float64 `json:"issue_match_rate"`

	ConfirmedAlertCount     int `json:"confirmed_alert_count"`
	ConfirmedAlertCountExcl int `json:"confirmed_alert_count_excl"`
	HighRiskCount           int `json:"high_risk_count"`
	OverIssueLineCount      int `json:"over_issue_line_count"`

	AvgAgingHours     float64 `json:"avg_aging_hours"`
	AvgAgingHoursExcl float64 `json:"avg_aging_hours_excl"`

	AgingDistribution AgingDistribution `json:"aging_distribution"`
}

// GroupCount returns the total number of inventory groups covered by the
// three partition counters.
func (q *QualityStats) GroupCount() int {
	return q.LegacyCount + q.ConfirmedCurrentCount + q.UnmatchedCurrentCount
}

// Quantity is an optional decimal quantity: either a known value or
// explicitly unknown. Unknown is distinct from zero and survives
// serialization as null, preserving the unknown-BOM invariant through
// aggregation.
type Quantity struct {
	value decimal.Decimal
	known bool
}

// KnownQuantity creates a known Quantity from a decimal value.
func KnownQuantity(v decimal.Decimal) Quantity {
	return Quantity{value: v, known: true}
}

// UnknownQuantity creates an explicitly unknown Quantity.
func UnknownQuantity() Quantity {
	return Quantity{}
}

// Known reports whether the quantity holds a value.
func (q Quantity) Known() bool {
	return q.known
}

// Value returns the held value; zero when unknown. Callers that must
// distinguish unknown from zero check Known first.
func (q Quantity) Value() decimal.Decimal {
	return q.value
}

// Round returns the quantity rounded to the given number of places,
// preserving unknownness.
func (q Quantity) Round(places int32) Quantity {
	if !q.known {
		return q
	}
	return KnownQuantity(q.value.Round(places))
}

// String renders a known quantity as its decimal string and an unknown
// one as the empty string, matching the report convention.
func (q Quantity) String() string {
	if !q.known {
		return ""
	}
	return q.value.String()
}

// MarshalJSON renders unknown quantities as null.
func (q Quantity) MarshalJSON() ([]byte, error) {
	if !q.known {
		return []byte("null"), nil
	}
	return json.Marshal(q.value)
}

// UnmarshalJSON accepts null (unknown) or a decimal value.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*q = UnknownQuantity()
		return nil
	}

	var v decimal.Decimal
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid quantity: %w", err)
	}
	*q = KnownQuantity(v)
	return nil
}

// ParseQuantity parses a quantity field from an extract. Thousands
// separators are stripped; malformed or empty input degrades to zero
// rather than failing the run.
func ParseQuantity(s string) decimal.Decimal {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// SplitOrderRefs splits a comma-delimited order-reference field into its
// non-empty trimmed entries.
func SplitOrderRefs(raw string) []string {
	var refs []string
	for _, part := range strings.Split(raw, ",") {
		if wo := strings.TrimSpace(part); wo != "" {
			refs = append(refs, wo)
		}
	}
	return refs
}

// FirstNonEmpty returns the first non-empty string from its arguments.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
