// Package config assembles the component configurations for the CLI from
// flags and defaults.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"lineside-audit-service/internal/engine"
	"lineside-audit-service/internal/parsers"
	"lineside-audit-service/internal/reporter"
)

// CreateOrdersParserConfig returns the parser configuration for the MES
// order extract.
func CreateOrdersParserConfig() *parsers.OrdersParserConfig {
	return parsers.DefaultOrdersParserConfig()
}

// CreateBOMParserConfig returns the parser configuration for the MES BOM
// extract.
func CreateBOMParserConfig() *parsers.BOMParserConfig {
	return parsers.DefaultBOMParserConfig()
}

// CreateInventoryParserConfig returns the parser configuration for the
// warehouse inventory CSV.
func CreateInventoryParserConfig() *parsers.InventoryParserConfig {
	return parsers.DefaultInventoryParserConfig()
}

// CreateIssueParserConfig returns the parser configuration for the issue
// transaction extract.
func CreateIssueParserConfig() *parsers.IssueParserConfig {
	return parsers.DefaultIssueParserConfig()
}

// CreateEngineConfig builds the engine configuration from CLI values.
// The default completed-status set stays in place; only the cutover date,
// the common-material set and the tolerance are CLI-tunable.
func CreateEngineConfig(cutoverDate string, commonMaterials []string, tolerance float64) (*engine.Config, error) {
	config := engine.DefaultConfig()

	cutover, err := time.ParseInLocation("2006-01-02", cutoverDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid cutover date %q: %w", cutoverDate, err)
	}
	config.CutoverDate = cutover
	config.CommonMaterials = commonMaterials
	config.Tolerance = decimal.NewFromFloat(tolerance)

	return config, nil
}

// CreateReportConfig builds the report configuration for the run command.
func CreateReportConfig(outputDir string, writeJSON bool) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()
	config.OutputDir = outputDir
	config.WriteJSON = writeJSON
	return config
}
