// Package engine implements the line-side audit computation: the return
// audit over completed orders, the over-issue audit over material-issue
// transactions, aging and legacy classification, and the per-run quality
// aggregate. A run is a pure function of its input extracts, the
// configuration and an injected reference time.
package engine

import (
	"time"

	"github.com/google/uuid"

	"lineside-audit-service/internal/models"
	"lineside-audit-service/pkg/errors"
	"lineside-audit-service/pkg/logger"
)

// BatchIDLayout is the time layout for batch identifiers. The format
// sorts lexicographically in run order.
const BatchIDLayout = "20060102_150405"

// Input carries the parsed extracts for one run. Orders, BOM and inventory
// are required; issue lines are optional and their absence switches the
// run into a reduced two-report mode.
type Input struct {
	Orders     []*models.ProductionOrder
	BOMLines   []*models.BOMLine
	Inventory  []*models.InventoryRecord
	IssueLines []*models.IssueLine

	// HasIssueExtract distinguishes an absent extract from an empty one.
	HasIssueExtract bool
}

// Result is the complete output of one audit run. Either all artifacts are
// produced or the run fails; nothing partial escapes.
type Result struct {
	BatchID     string    `json:"batch_id"`
	TraceID     string    `json:"trace_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Degraded    bool      `json:"degraded"`

	Alerts      []*models.ReturnAlertRecord `json:"alerts"`
	Details     []*models.ReturnAlertDetail `json:"details"`
	IssueAudits []*models.IssueAuditRecord  `json:"issue_audits"`
	Quality     *models.QualityStats        `json:"quality"`

	IssueStats *IssueAuditStats `json:"-"`
}

// Engine runs the audit computation. It holds no per-run state; one Engine
// can serve many runs.
type Engine struct {
	config *Config
	logger logger.Logger
}

// New creates an engine, validating the configuration.
func New(config *Config) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidData, "engine", nil, err)
	}

	return &Engine{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("engine"),
	}, nil
}

// Run executes one audit batch against the given reference time. The time
// stamps the batch identifier and anchors every aging figure, so tests
// inject a fixed value.
func (e *Engine) Run(input *Input, now time.Time) (*Result, error) {
	if input == nil {
		return nil, errors.AuditRunError(errors.CodeProcessingError, "run", nil)
	}
	if input.Orders == nil || input.BOMLines == nil || input.Inventory == nil {
		return nil, errors.AuditRunError(errors.CodeMissingExtract, "run", nil).
			WithSuggestion("Orders, BOM and inventory extracts are required; only the issue extract is optional")
	}

	result := &Result{
		BatchID:     now.Format(BatchIDLayout),
		TraceID:     uuid.NewString(),
		GeneratedAt: now,
		Degraded:    !input.HasIssueExtract,
	}

	log := e.logger.WithFields(logger.Fields{
		"batch_id": result.BatchID,
		"trace_id": result.TraceID,
	})
	log.WithFields(logger.Fields{
		"orders":    len(input.Orders),
		"bom_lines": len(input.BOMLines),
		"inventory": len(input.Inventory),
		"degraded":  result.Degraded,
	}).Info("Starting audit run")

	idx := BuildIndexes(input.Orders, input.BOMLines, input.Inventory, input.IssueLines)
	aging := NewAgingClassifier(e.config.CutoverDate, now)

	returnMatcher := NewReturnAuditMatcher(e.config, aging)
	result.Alerts = returnMatcher.Match(idx)
	result.Details = returnMatcher.ExpandDetails(idx, result.Alerts)

	if input.HasIssueExtract {
		result.IssueAudits, result.IssueStats = NewIssueAuditMatcher(e.config).Match(idx)
	} else {
		result.IssueStats = &IssueAuditStats{}
		log.Warn("Issue extract absent, running in reduced two-report mode")
	}

	result.Quality = NewQualityAggregator(e.config, aging).
		Aggregate(idx, result.Alerts, result.IssueAudits, result.IssueStats)

	log.WithFields(logger.Fields{
		"alerts":       len(result.Alerts),
		"details":      len(result.Details),
		"issue_audits": len(result.IssueAudits),
	}).Info("Audit run complete")

	return result, nil
}
