package engine

import (
	"lineside-audit-service/internal/models"
	"lineside-audit-service/pkg/logger"
)

// QualityAggregator derives the per-run data-quality record from the
// indices and the two audit outputs.
type QualityAggregator struct {
	config *Config
	aging  *AgingClassifier
	logger logger.Logger
}

// NewQualityAggregator creates an aggregator for one run.
func NewQualityAggregator(config *Config, aging *AgingClassifier) *QualityAggregator {
	return &QualityAggregator{
		config: config,
		aging:  aging,
		logger: logger.GetGlobalLogger().WithComponent("quality"),
	}
}

// Aggregate computes the quality record in one pass over the inventory
// groups. Each group is classified into exactly one of legacy,
// confirmed-current (order known) or unmatched-current, so the three
// counters always sum to the group count. Every rate is 0.0 when its
// denominator is zero.
func (a *QualityAggregator) Aggregate(
	idx *Indexes,
	alerts []*models.ReturnAlertRecord,
	issueRecords []*models.IssueAuditRecord,
	issueStats *IssueAuditStats,
) *models.QualityStats {
	stats := &models.QualityStats{
		InventoryTotal: idx.InventoryRawCount,
		OrdersTotal:    len(idx.Orders),
	}

	for _, group := range idx.Groups {
		if a.aging.Classify(group.ReceiveTime).Legacy {
			stats.LegacyCount++
			continue
		}
		if idx.LookupOrder(group.OrderNo) != nil {
			stats.ConfirmedCurrentCount++
		} else {
			stats.UnmatchedCurrentCount++
		}
	}

	current := stats.ConfirmedCurrentCount + stats.UnmatchedCurrentCount
	if current > 0 {
		stats.OrderMatchRate = float64(stats.ConfirmedCurrentCount) / float64(current)
	}

	// The raw-row split uses each record's own timestamp, not the group
	// fold, so a group mixing legacy and current totes counts on both
	// sides of the row split.
	for _, records := range idx.GroupRecords {
		for _, rec := range records {
			if a.aging.Classify(rec.ReceiveTime).Legacy {
				stats.InventoryLegacy++
			} else {
				stats.InventoryCurrent++
			}
		}
	}

	var agingSum, agingSumExcl float64
	var agingCount, agingCountExcl int

	for _, alert := range alerts {
		if alert.IsLegacy {
			continue
		}
		common := alert.IsCommon

		stats.ConfirmedAlertCount++
		if !common {
			stats.ConfirmedAlertCountExcl++
		}
		if alert.Deviation.Known() && alert.Deviation.Value().GreaterThan(a.config.Tolerance) {
			stats.HighRiskCount++
		}

		stats.AgingDistribution.Add(alert.AgingDays)
		if alert.AgingDays >= 0 {
			agingSum += alert.AgingDays * hoursPerDay
			agingCount++
			if !common {
				agingSumExcl += alert.AgingDays * hoursPerDay
				agingCountExcl++
			}
		}
	}

	if agingCount > 0 {
		stats.AvgAgingHours = agingSum / float64(agingCount)
	}
	if agingCountExcl > 0 {
		stats.AvgAgingHoursExcl = agingSumExcl / float64(agingCountExcl)
	}

	for _, rec := range issueRecords {
		if rec.DemandVerdict == models.VerdictOverIssued {
			stats.OverIssueLineCount++
		}
	}
	if issueStats != nil {
		stats.IssueLinesTotal = issueStats.TotalLines
		stats.IssueLinesMatched = issueStats.Matched
		if issueStats.TotalLines > 0 {
			stats.IssueMatchRate = float64(issueStats.Matched) / float64(issueStats.TotalLines)
		}
	}

	a.logger.WithFields(logger.Fields{
		"groups":           stats.GroupCount(),
		"legacy":           stats.LegacyCount,
		"confirmed_alerts": stats.ConfirmedAlertCount,
		"high_risk":        stats.HighRiskCount,
	}).Info("Quality stats aggregated")

	return stats
}
