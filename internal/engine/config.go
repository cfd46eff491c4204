package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCompletedStatuses are the completion labels observed across the
// MES locales in production. Membership is an enumerated set, never a
// single-string comparison.
var DefaultCompletedStatuses = []string{
	"Completado",
	"完成",
	"Completed",
	"已完成",
	"Se ha iniciado la construcción",
}

// Config carries the run-level knobs for one audit batch. It is passed
// explicitly into the engine so tests can substitute sets without
// process-wide state.
type Config struct {
	// CompletedStatuses lists every status label that marks a production
	// order as done.
	CompletedStatuses []string

	// CutoverDate separates legacy stock from current stock. Records whose
	// earliest receive date is strictly before it, or unparseable, are
	// legacy and excluded from current-period KPIs.
	CutoverDate time.Time

	// CommonMaterials lists material codes intentionally kept in bulk at
	// the line side. They stay in the audit output but are excluded from
	// the "excl" KPI variants.
	CommonMaterials []string

	// Tolerance is the band around zero within which an over-issue amount
	// still counts as normal.
	Tolerance decimal.Decimal

	completedSet map[string]bool
	commonSet    map[string]bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		CompletedStatuses: DefaultCompletedStatuses,
		CutoverDate:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		CommonMaterials:   nil,
		Tolerance:         decimal.NewFromFloat(0.01),
	}
}

// Validate checks the configuration and builds the internal lookup sets.
func (c *Config) Validate() error {
	if len(c.CompletedStatuses) == 0 {
		return fmt.Errorf("completed status set cannot be empty")
	}
	if c.CutoverDate.IsZero() {
		return fmt.Errorf("cutover date must be set")
	}
	if c.Tolerance.IsNegative() {
		return fmt.Errorf("tolerance cannot be negative")
	}

	c.completedSet = make(map[string]bool, len(c.CompletedStatuses))
	for _, s := range c.CompletedStatuses {
		c.completedSet[s] = true
	}
	c.commonSet = make(map[string]bool, len(c.CommonMaterials))
	for _, m := range c.CommonMaterials {
		c.commonSet[m] = true
	}
	return nil
}

// IsCompleted reports whether the status label marks an order as done.
func (c *Config) IsCompleted(status string) bool {
	if c.completedSet == nil {
		c.completedSet = make(map[string]bool, len(c.CompletedStatuses))
		for _, s := range c.CompletedStatuses {
			c.completedSet[s] = true
		}
	}
	return c.completedSet[status]
}

// IsCommonMaterial reports whether the material code is in the exclusion set.
func (c *Config) IsCommonMaterial(code string) bool {
	if c.commonSet == nil {
		c.commonSet = make(map[string]bool, len(c.CommonMaterials))
		for _, m := range c.CommonMaterials {
			c.commonSet[m] = true
		}
	}
	return c.commonSet[code]
}
