package api

import (
	"github.com/gofiber/fiber/v2"

	"lineside-audit-service/internal/models"
	"lineside-audit-service/internal/store"
	"lineside-audit-service/pkg/errors"
)

// ErrorResponse is the JSON body for every non-2xx reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type handlers struct {
	store *store.Store
}

func newHandlers(st *store.Store) *handlers {
	return &handlers{store: st}
}

// failWith maps a store error onto an HTTP status. Unknown batches are
// 404; everything else from the store is a 500.
func failWith(c *fiber.Ctx, err error) error {
	if auditErr, ok := errors.AsAuditError(err); ok {
		status := fiber.StatusInternalServerError
		if auditErr.Code == errors.CodeBatchNotFound {
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(ErrorResponse{
			Code:    string(auditErr.Code),
			Message: auditErr.Message,
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Code:    string(errors.CodeStoreReadFailed),
		Message: err.Error(),
	})
}

// ListBatches returns stored runs, newest first.
// GET /api/batches?limit=30
func (h *handlers) ListBatches(c *fiber.Ctx) error {
	batches, err := h.store.ListBatches(c.Context(), c.QueryInt("limit", 30))
	if err != nil {
		return failWith(c, err)
	}
	if batches == nil {
		batches = []*store.BatchInfo{}
	}
	return c.JSON(batches)
}

// KPISummary returns the latest KPI point.
// GET /api/kpi/summary?exclude_common=false
func (h *handlers) KPISummary(c *fiber.Ctx) error {
	point, err := h.store.KPISummary(c.Context(), c.QueryBool("exclude_common", false))
	if err != nil {
		return failWith(c, err)
	}
	return c.JSON(point)
}

// KPITrend returns up to limit KPI points, newest first.
// GET /api/kpi/trend?limit=30&exclude_common=false
func (h *handlers) KPITrend(c *fiber.Ctx) error {
	points, err := h.store.KPITrend(c.Context(),
		c.QueryInt("limit", 30), c.QueryBool("exclude_common", false))
	if err != nil {
		return failWith(c, err)
	}
	if points == nil {
		points = []*store.KPIPoint{}
	}
	return c.JSON(points)
}

// AgingDistribution returns the aging histogram of the latest run.
// GET /api/kpi/aging-distribution
func (h *handlers) AgingDistribution(c *fiber.Ctx) error {
	dist, err := h.store.AgingDistribution(c.Context())
	if err != nil {
		return failWith(c, err)
	}
	return c.JSON(dist)
}

// Alerts returns the return-alert rows of one batch in report order.
// GET /api/alerts/:batchID?exclude_common=false
func (h *handlers) Alerts(c *fiber.Ctx) error {
	alerts, err := h.store.Alerts(c.Context(), c.Params("batchID"))
	if err != nil {
		return failWith(c, err)
	}
	if c.QueryBool("exclude_common", false) {
		filtered := alerts[:0]
		for _, alert := range alerts {
			if !alert.IsCommon {
				filtered = append(filtered, alert)
			}
		}
		alerts = filtered
	}
	if alerts == nil {
		alerts = []*models.ReturnAlertRecord{}
	}
	return c.JSON(alerts)
}

// AlertDetails returns the barcode-level rows of one batch.
// GET /api/alerts/:batchID/detail
func (h *handlers) AlertDetails(c *fiber.Ctx) error {
	details, err := h.store.AlertDetails(c.Context(), c.Params("batchID"))
	if err != nil {
		return failWith(c, err)
	}
	if details == nil {
		details = []*models.ReturnAlertDetail{}
	}
	return c.JSON(details)
}

// IssueAudits returns the issue-audit rows of one batch.
// GET /api/issue-audit/:batchID
func (h *handlers) IssueAudits(c *fiber.Ctx) error {
	records, err := h.store.IssueAudits(c.Context(), c.Params("batchID"))
	if err != nil {
		return failWith(c, err)
	}
	if records == nil {
		records = []*models.IssueAuditRecord{}
	}
	return c.JSON(records)
}

// Quality returns the quality-stats record of one batch.
// GET /api/quality/:batchID
func (h *handlers) Quality(c *fiber.Ctx) error {
	quality, err := h.store.Quality(c.Context(), c.Params("batchID"))
	if err != nil {
		return failWith(c, err)
	}
	return c.JSON(quality)
}
