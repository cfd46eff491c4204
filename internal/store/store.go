// Package store persists audit runs in SQLite. Runs are append-only:
// each batch is written once inside a transaction and never updated, so a
// failed run leaves no partial snapshot behind.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"lineside-audit-service/internal/engine"
	"lineside-audit-service/internal/models"
	"lineside-audit-service/pkg/errors"
	"lineside-audit-service/pkg/logger"
)

// Store is the SQLite-backed snapshot store.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger logger.Logger
}

// New opens (or creates) the store at dbPath. Use ":memory:" for an
// in-memory database. The connection runs in WAL mode so API readers do
// not block the writer.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, errors.StoreError(errors.CodeStoreOpenFailed, dbPath, err)
	}

	store := &Store{
		db:     db,
		logger: logger.GetGlobalLogger().WithComponent("store"),
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, errors.StoreError(errors.CodeStoreOpenFailed, dbPath, err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- One row per run; the KPI columns drive the trend queries, the
	-- JSON column keeps the full quality record.
	CREATE TABLE IF NOT EXISTS kpi_history (
		batch_id TEXT PRIMARY KEY,
		trace_id TEXT NOT NULL,
		generated_at TEXT NOT NULL,
		degraded BOOLEAN NOT NULL,
		alert_count INTEGER NOT NULL,
		issue_audit_count INTEGER NOT NULL,
		confirmed_alert_count INTEGER NOT NULL,
		confirmed_alert_count_excl INTEGER NOT NULL,
		high_risk_count INTEGER NOT NULL,
		over_issue_line_count INTEGER NOT NULL,
		avg_aging_hours REAL NOT NULL,
		avg_aging_hours_excl REAL NOT NULL,
		order_match_rate REAL NOT NULL,
		issue_match_rate REAL NOT NULL,
		quality_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_kpi_history_generated_at
		ON kpi_history(generated_at DESC);

	-- Snapshot tables keep each output row as JSON, with the row position
	-- preserving the report sort order.
	CREATE TABLE IF NOT EXISTS alert_snapshots (
		batch_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		order_no TEXT NOT NULL,
		material_code TEXT NOT NULL,
		is_legacy BOOLEAN NOT NULL,
		record_json TEXT NOT NULL,
		PRIMARY KEY (batch_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_alert_snapshots_order
		ON alert_snapshots(batch_id, order_no, material_code);

	CREATE TABLE IF NOT EXISTS alert_detail_snapshots (
		batch_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		order_no TEXT NOT NULL,
		material_code TEXT NOT NULL,
		record_json TEXT NOT NULL,
		PRIMARY KEY (batch_id, position)
	);

	CREATE TABLE IF NOT EXISTS issue_audit_snapshots (
		batch_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		doc_id TEXT NOT NULL,
		component_code TEXT NOT NULL,
		record_json TEXT NOT NULL,
		PRIMARY KEY (batch_id, position)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// BatchInfo summarizes one stored run.
type BatchInfo struct {
	BatchID         string    `json:"batch_id"`
	GeneratedAt     time.Time `json:"generated_at"`
	Degraded        bool      `json:"degraded"`
	AlertCount      int       `json:"alert_count"`
	IssueAuditCount int       `json:"issue_audit_count"`
}

// KPIPoint is one trend point. The alert and aging figures honor the
// exclude-common-materials flag of the query that produced it.
type KPIPoint struct {
	BatchID             string    `json:"batch_id"`
	GeneratedAt         time.Time `json:"generated_at"`
	ConfirmedAlertCount int       `json:"confirmed_alert_count"`
	HighRiskCount       int       `json:"high_risk_count"`
	OverIssueLineCount  int       `json:"over_issue_line_count"`
	AvgAgingHours       float64   `json:"avg_aging_hours"`
	OrderMatchRate      float64   `json:"order_match_rate"`
	IssueMatchRate      float64   `json:"issue_match_rate"`
}

// AppendRun persists one run inside a single transaction. A duplicate
// batch identifier fails the whole write; nothing partial is committed.
func (s *Store) AppendRun(ctx context.Context, result *engine.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if result == nil || result.Quality == nil {
		return errors.StoreError(errors.CodeStoreWriteFailed, "run", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StoreError(errors.CodeStoreWriteFailed, result.BatchID, err)
	}
	defer tx.Rollback()

	qualityJSON, err := json.Marshal(result.Quality)
	if err != nil {
		return errors.StoreError(errors.CodeStoreWriteFailed, result.BatchID, err)
	}

	q := result.Quality
	_, err = tx.ExecContext(ctx, `
		INSERT INTO kpi_history (
			batch_id, trace_id, generated_at, degraded,
			alert_count, issue_audit_count,
			confirmed_alert_count, confirmed_alert_count_excl,
			high_risk_count, over_issue_line_count,
			avg_aging_hours, avg_aging_hours_excl,
			order_match_rate, issue_match_rate,
			quality_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.BatchID, result.TraceID,
		result.GeneratedAt.UTC().Format(time.RFC3339), result.Degraded,
		len(result.Alerts), len(result.IssueAudits),
		q.ConfirmedAlertCount, q.ConfirmedAlertCountExcl,
		q.HighRiskCount, q.OverIssueLineCount,
		q.AvgAgingHours, q.AvgAgingHoursExcl,
		q.OrderMatchRate, q.IssueMatchRate,
		string(qualityJSON), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return errors.StoreError(errors.CodeStoreWriteFailed, result.BatchID, err)
	}

	for i, alert := range result.Alerts {
		recordJSON, err := json.Marshal(alert)
		if err != nil {
			return errors.StoreError(errors.CodeStoreWriteFailed, result.BatchID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO alert_snapshots (batch_id, position, order_no, material_code, is_legacy, record_json)
			VALUES (?, ?, ?, ?, ?, ?)`,
			result.BatchID, i, alert.OrderNo, alert.MaterialCode, alert.IsLegacy, string(recordJSON),
		)
		if err != nil {
			return errors.StoreError(errors.CodeStoreWriteFailed, result.BatchID, err)
		}
	}

	for i, detail := range result.Details {
		recordJSON, err := json.Marshal(detail)
		if err != nil {
			return errors.StoreError(errors.CodeStoreWriteFailed, result.BatchID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO alert_detail_snapshots (batch_id, position, order_no, material_code, record_json)
			VALUES (?, ?, ?, ?, ?)`,
			result.BatchID, i, detail.OrderNo, detail.MaterialCode, string(recordJSON),
		)
		if err != nil {
			return errors.StoreError(errors.CodeStoreWriteFailed, result.BatchID, err)
		}
	}

	for i, rec := range result.IssueAudits {
		recordJSON, err := json.Marshal(rec)
		if err != nil {
			return errors.StoreError(errors.CodeStoreWriteFailed, result.BatchID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO issue_audit_snapshots (batch_id, position, doc_id, component_code, record_json)
			VALUES (?, ?, ?, ?, ?)`,
			result.BatchID, i, rec.DocID, rec.ComponentCode, string(recordJSON),
		)
		if err != nil {
			return errors.StoreError(errors.CodeStoreWriteFailed, result.BatchID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.StoreError(errors.CodeStoreWriteFailed, result.BatchID, err)
	}

	s.logger.WithFields(logger.Fields{
		"batch_id": result.BatchID,
		"alerts":   len(result.Alerts),
	}).Info("Run snapshot appended")

	return nil
}

// ListBatches returns stored runs, newest first.
func (s *Store) ListBatches(ctx context.Context, limit int) ([]*BatchInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id, generated_at, degraded, alert_count, issue_audit_count
		FROM kpi_history
		ORDER BY batch_id DESC
		LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, errors.StoreError(errors.CodeStoreReadFailed, "batches", err)
	}
	defer rows.Close()

	var batches []*BatchInfo
	for rows.Next() {
		var info BatchInfo
		var generatedAt string
		if err := rows.Scan(&info.BatchID, &generatedAt, &info.Degraded,
			&info.AlertCount, &info.IssueAuditCount); err != nil {
			return nil, errors.StoreError(errors.CodeStoreReadFailed, "batches", err)
		}
		info.GeneratedAt, _ = time.Parse(time.RFC3339, generatedAt)
		batches = append(batches, &info)
	}
	return batches, rows.Err()
}

// KPITrend returns up to limit trend points, newest first.
func (s *Store) KPITrend(ctx context.Context, limit int, excludeCommon bool) ([]*KPIPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alertCol, agingCol := "confirmed_alert_count", "avg_aging_hours"
	if excludeCommon {
		alertCol, agingCol = "confirmed_alert_count_excl", "avg_aging_hours_excl"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id, generated_at, `+alertCol+`, high_risk_count,
			over_issue_line_count, `+agingCol+`, order_match_rate, issue_match_rate
		FROM kpi_history
		ORDER BY batch_id DESC
		LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, errors.StoreError(errors.CodeStoreReadFailed, "kpi trend", err)
	}
	defer rows.Close()

	var points []*KPIPoint
	for rows.Next() {
		var p KPIPoint
		var generatedAt string
		if err := rows.Scan(&p.BatchID, &generatedAt, &p.ConfirmedAlertCount,
			&p.HighRiskCount, &p.OverIssueLineCount, &p.AvgAgingHours,
			&p.OrderMatchRate, &p.IssueMatchRate); err != nil {
			return nil, errors.StoreError(errors.CodeStoreReadFailed, "kpi trend", err)
		}
		p.GeneratedAt, _ = time.Parse(time.RFC3339, generatedAt)
		points = append(points, &p)
	}
	return points, rows.Err()
}

// KPISummary returns the latest trend point, or a batch-not-found error
// when no run has been stored yet.
func (s *Store) KPISummary(ctx context.Context, excludeCommon bool) (*KPIPoint, error) {
	points, err := s.KPITrend(ctx, 1, excludeCommon)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, errors.StoreError(errors.CodeBatchNotFound, "latest", nil)
	}
	return points[0], nil
}

// Quality returns the stored quality record for one batch.
func (s *Store) Quality(ctx context.Context, batchID string) (*models.QualityStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var qualityJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT quality_json FROM kpi_history WHERE batch_id = ?`, batchID,
	).Scan(&qualityJSON)
	if err == sql.ErrNoRows {
		return nil, errors.StoreError(errors.CodeBatchNotFound, batchID, nil)
	}
	if err != nil {
		return nil, errors.StoreError(errors.CodeStoreReadFailed, batchID, err)
	}

	var quality models.QualityStats
	if err := json.Unmarshal([]byte(qualityJSON), &quality); err != nil {
		return nil, errors.StoreError(errors.CodeStoreReadFailed, batchID, err)
	}
	return &quality, nil
}

// AgingDistribution returns the aging histogram of the latest stored run.
func (s *Store) AgingDistribution(ctx context.Context) (*models.AgingDistribution, error) {
	s.mu.RLock()
	var batchID string
	err := s.db.QueryRowContext(ctx,
		`SELECT batch_id FROM kpi_history ORDER BY batch_id DESC LIMIT 1`,
	).Scan(&batchID)
	s.mu.RUnlock()

	if err == sql.ErrNoRows {
		return nil, errors.StoreError(errors.CodeBatchNotFound, "latest", nil)
	}
	if err != nil {
		return nil, errors.StoreError(errors.CodeStoreReadFailed, "latest", err)
	}

	quality, err := s.Quality(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return &quality.AgingDistribution, nil
}

// Alerts returns the stored return-alert rows for one batch in report order.
func (s *Store) Alerts(ctx context.Context, batchID string) ([]*models.ReturnAlertRecord, error) {
	var alerts []*models.ReturnAlertRecord
	err := s.readSnapshots(ctx, "alert_snapshots", batchID, func(data []byte) error {
		var alert models.ReturnAlertRecord
		if err := json.Unmarshal(data, &alert); err != nil {
			return err
		}
		alerts = append(alerts, &alert)
		return nil
	})
	return alerts, err
}

// AlertDetails returns the stored barcode-level rows for one batch.
func (s *Store) AlertDetails(ctx context.Context, batchID string) ([]*models.ReturnAlertDetail, error) {
	var details []*models.ReturnAlertDetail
	err := s.readSnapshots(ctx, "alert_detail_snapshots", batchID, func(data []byte) error {
		var detail models.ReturnAlertDetail
		if err := json.Unmarshal(data, &detail); err != nil {
			return err
		}
		details = append(details, &detail)
		return nil
	})
	return details, err
}

// IssueAudits returns the stored issue-audit rows for one batch.
func (s *Store) IssueAudits(ctx context.Context, batchID string) ([]*models.IssueAuditRecord, error) {
	var records []*models.IssueAuditRecord
	err := s.readSnapshots(ctx, "issue_audit_snapshots", batchID, func(data []byte) error {
		var rec models.IssueAuditRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		records = append(records, &rec)
		return nil
	})
	return records, err
}

// HasBatch reports whether a batch identifier exists in the store.
func (s *Store) HasBatch(ctx context.Context, batchID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM kpi_history WHERE batch_id = ?`, batchID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.StoreError(errors.CodeStoreReadFailed, batchID, err)
	}
	return true, nil
}

func (s *Store) readSnapshots(ctx context.Context, table, batchID string, decode func([]byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exists, err := s.hasBatchLocked(ctx, batchID)
	if err != nil {
		return err
	}
	if !exists {
		return errors.StoreError(errors.CodeBatchNotFound, batchID, nil)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT record_json FROM `+table+` WHERE batch_id = ? ORDER BY position`, batchID)
	if err != nil {
		return errors.StoreError(errors.CodeStoreReadFailed, batchID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			return errors.StoreError(errors.CodeStoreReadFailed, batchID, err)
		}
		if err := decode([]byte(recordJSON)); err != nil {
			return errors.StoreError(errors.CodeStoreReadFailed, batchID, err)
		}
	}
	return rows.Err()
}

func (s *Store) hasBatchLocked(ctx context.Context, batchID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM kpi_history WHERE batch_id = ?`, batchID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.StoreError(errors.CodeStoreReadFailed, batchID, err)
	}
	return true, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 30
	}
	return limit
}
