package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"lineside-audit-service/internal/models"
	"lineside-audit-service/pkg/logger"
)

var hundred = decimal.NewFromInt(100)

// IssueAuditStats counts line-level matching outcomes for quality reporting.
// TotalLines counts every parsed line, including duplicates that the
// dedup step later drops.
type IssueAuditStats struct {
	TotalLines   int
	Deduplicated int
	Matched      int
	Unmatched    int
}

// IssueAuditMatcher audits material-issue transactions for over-issue
// against two independent baselines: the transaction's own demand figure
// and the BOM's total planned quantity.
type IssueAuditMatcher struct {
	config *Config
	logger logger.Logger
}

// NewIssueAuditMatcher creates a matcher for one run.
func NewIssueAuditMatcher(config *Config) *IssueAuditMatcher {
	return &IssueAuditMatcher{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("issue_audit"),
	}
}

type issueDedupKey struct {
	docID     string
	component string
}

// Match deduplicates issue lines by (document id, component), drops lines
// whose order references are all unknown, and emits one audit record per
// surviving line. The matched order is the lexicographically smallest
// associated order present in the order map, so reruns pick the same order.
// Output is sorted descending by over-issue-vs-demand.
func (m *IssueAuditMatcher) Match(idx *Indexes) ([]*models.IssueAuditRecord, *IssueAuditStats) {
	stats := &IssueAuditStats{TotalLines: len(idx.IssueLines)}

	seen := make(map[issueDedupKey]bool)
	var records []*models.IssueAuditRecord

	for _, line := range idx.IssueLines {
		key := issueDedupKey{docID: line.DocID, component: line.ComponentCode}
		if seen[key] {
			stats.Deduplicated++
			continue
		}
		seen[key] = true

		// Orders is sorted ascending, so the first hit is the
		// lexicographically smallest known order.
		var matched *models.ProductionOrder
		var matchedNo string
		for _, wo := range line.Orders {
			if order := idx.LookupOrder(wo); order != nil {
				matched = order
				matchedNo = wo
				break
			}
		}
		if matched == nil {
			stats.Unmatched++
			continue
		}
		stats.Matched++

		rec := &models.IssueAuditRecord{
			DocID:          line.DocID,
			DocNumber:      line.DocNumber,
			DocStatus:      line.DocStatus,
			RelatedOrders:  line.Orders,
			MatchedOrder:   matchedNo,
			OrderStatus:    matched.Status,
			ComponentCode:  line.ComponentCode,
			DemandQty:      line.DemandQty,
			ActualQty:      line.ActualQty,
			IssueStatus:    line.Status,
			ProductionLine: line.ProductionLine,
			Warehouse:      line.Warehouse,
			PlannedDate:    line.PlannedIssueDate,
		}

		rec.OverIssue = line.ActualQty.Sub(line.DemandQty)
		if line.DemandQty.IsPositive() {
			rate, _ := rec.OverIssue.Div(line.DemandQty).Mul(hundred).Float64()
			rec.OverIssueRate = rate
		}
		rec.DemandVerdict = models.ClassifyIssue(rec.OverIssue, m.config.Tolerance)

		if bom := idx.LookupBOM(matchedNo, line.ComponentCode); bom != nil && bom.TotalQty.IsPositive() {
			over := line.ActualQty.Sub(bom.TotalQty)
			rate, _ := over.Div(bom.TotalQty).Mul(hundred).Float64()
			rec.BOMTotalQty = models.KnownQuantity(bom.TotalQty)
			rec.OverVsBOM = models.KnownQuantity(over)
			rec.OverVsBOMRate = rate
			rec.BOMVerdict = models.ClassifyIssue(over, m.config.Tolerance)
		} else {
			rec.BOMVerdict = models.VerdictNoData
		}

		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].OverIssue.Equal(records[j].OverIssue) {
			return records[i].OverIssue.GreaterThan(records[j].OverIssue)
		}
		if records[i].DocID != records[j].DocID {
			return records[i].DocID < records[j].DocID
		}
		return records[i].ComponentCode < records[j].ComponentCode
	})

	m.logger.WithFields(logger.Fields{
		"total_lines": stats.TotalLines,
		"matched":     stats.Matched,
		"unmatched":   stats.Unmatched,
		"duplicates":  stats.Deduplicated,
	}).Info("Issue audit matched")

	return records, stats
}
