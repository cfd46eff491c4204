package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lineside-audit-service/cmd/auditor/config"
	"lineside-audit-service/internal/engine"
	"lineside-audit-service/internal/models"
	"lineside-audit-service/internal/parsers"
	"lineside-audit-service/internal/reporter"
	"lineside-audit-service/internal/store"
)

// Flags for the run command
var (
	ordersFile    string
	bomFile       string
	inventoryFile string
	issueFile     string
	outputDir     string
	dbPath        string
	cutoverDate   string
	commonMats    []string
	tolerance     float64
	skipJSON      bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one audit batch over the extract files",
	Long: `Run executes one audit batch: it parses the order, BOM, inventory
and (optionally) issue-transaction extracts, matches completed orders
against their remaining line-side stock, audits issue lines for
over-issue, and writes the report files.

The issue extract is optional. Without it the run proceeds in a reduced
mode that still produces the return-audit reports.

Examples:
  # Minimal run
  auditor run --orders-file orders.json --bom-file bom.json --inventory-file inventory.csv

  # Full run with issue audit and snapshot persistence
  auditor run --orders-file orders.json --bom-file bom.json \
    --inventory-file inventory.csv --issue-file issues.json \
    --output-dir reports --db-path audit.db

  # Custom cutover and common-material exclusions
  auditor run --orders-file orders.json --bom-file bom.json \
    --inventory-file inventory.csv --cutover-date 2026-01-01 \
    --common-materials M900,M901`,

	PreRunE: validateRunFlags,
	RunE:    runAudit,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Required extracts
	runCmd.Flags().StringVar(&ordersFile, "orders-file", "", "path to production order extract (required)")
	runCmd.Flags().StringVar(&bomFile, "bom-file", "", "path to BOM line extract (required)")
	runCmd.Flags().StringVar(&inventoryFile, "inventory-file", "", "path to line-side inventory CSV (required)")

	// Optional extract and outputs
	runCmd.Flags().StringVar(&issueFile, "issue-file", "", "path to issue transaction extract (optional)")
	runCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "reports", "directory for report files")
	runCmd.Flags().StringVar(&dbPath, "db-path", "", "SQLite snapshot store path (optional)")
	runCmd.Flags().BoolVar(&skipJSON, "skip-json", false, "do not write the JSON result dump")

	// Engine configuration
	runCmd.Flags().StringVar(&cutoverDate, "cutover-date", "2026-01-01", "legacy cutover date (YYYY-MM-DD)")
	runCmd.Flags().StringSliceVar(&commonMats, "common-materials", []string{}, "comma-separated material codes excluded from the excl KPI variants")
	runCmd.Flags().Float64Var(&tolerance, "tolerance", 0.01, "verdict tolerance band around zero")

	runCmd.MarkFlagRequired("orders-file")
	runCmd.MarkFlagRequired("bom-file")
	runCmd.MarkFlagRequired("inventory-file")

	viper.BindPFlag("orders-file", runCmd.Flags().Lookup("orders-file"))
	viper.BindPFlag("bom-file", runCmd.Flags().Lookup("bom-file"))
	viper.BindPFlag("inventory-file", runCmd.Flags().Lookup("inventory-file"))
	viper.BindPFlag("issue-file", runCmd.Flags().Lookup("issue-file"))
	viper.BindPFlag("output-dir", runCmd.Flags().Lookup("output-dir"))
	viper.BindPFlag("db-path", runCmd.Flags().Lookup("db-path"))
	viper.BindPFlag("cutover-date", runCmd.Flags().Lookup("cutover-date"))
	viper.BindPFlag("common-materials", runCmd.Flags().Lookup("common-materials"))
	viper.BindPFlag("tolerance", runCmd.Flags().Lookup("tolerance"))
	viper.BindPFlag("skip-json", runCmd.Flags().Lookup("skip-json"))
}

func validateRunFlags(cmd *cobra.Command, args []string) error {
	ordersFile = viper.GetString("orders-file")
	bomFile = viper.GetString("bom-file")
	inventoryFile = viper.GetString("inventory-file")
	issueFile = viper.GetString("issue-file")
	outputDir = viper.GetString("output-dir")
	dbPath = viper.GetString("db-path")
	cutoverDate = viper.GetString("cutover-date")
	commonMats = viper.GetStringSlice("common-materials")
	tolerance = viper.GetFloat64("tolerance")
	skipJSON = viper.GetBool("skip-json")

	if err := validateFileExists(ordersFile, "orders extract"); err != nil {
		return err
	}
	if err := validateFileExists(bomFile, "BOM extract"); err != nil {
		return err
	}
	if err := validateFileExists(inventoryFile, "inventory extract"); err != nil {
		return err
	}
	if issueFile != "" {
		if err := validateFileExists(issueFile, "issue extract"); err != nil {
			return err
		}
	}

	if _, err := time.Parse("2006-01-02", cutoverDate); err != nil {
		return fmt.Errorf("invalid cutover date format. Use YYYY-MM-DD: %w", err)
	}
	if tolerance < 0 {
		return fmt.Errorf("tolerance cannot be negative")
	}
	if outputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting audit run...\n")
		fmt.Fprintf(os.Stderr, "Orders file: %s\n", ordersFile)
		fmt.Fprintf(os.Stderr, "BOM file: %s\n", bomFile)
		fmt.Fprintf(os.Stderr, "Inventory file: %s\n", inventoryFile)
		if issueFile != "" {
			fmt.Fprintf(os.Stderr, "Issue file: %s\n", issueFile)
		}
	}

	input, err := parseExtracts()
	if err != nil {
		return err
	}

	engineConfig, err := config.CreateEngineConfig(cutoverDate, commonMats, tolerance)
	if err != nil {
		return fmt.Errorf("failed to create engine config: %w", err)
	}
	auditEngine, err := engine.New(engineConfig)
	if err != nil {
		return err
	}

	result, err := auditEngine.Run(input, time.Now())
	if err != nil {
		return err
	}

	reportConfig := config.CreateReportConfig(outputDir, !skipJSON)
	gen, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return err
	}
	written, err := gen.WriteAll(result)
	if err != nil {
		return err
	}

	if dbPath != "" {
		st, err := store.New(dbPath)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.AppendRun(context.Background(), result); err != nil {
			return err
		}
	}

	if err := gen.WriteConsoleSummary(result, os.Stdout); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\nReports written:\n")
	for _, path := range written {
		fmt.Fprintf(os.Stdout, "  %s\n", path)
	}

	return nil
}

func parseExtracts() (*engine.Input, error) {
	ordersParser, err := parsers.NewOrdersParser(config.CreateOrdersParserConfig())
	if err != nil {
		return nil, err
	}
	orders, _, err := ordersParser.ParseOrders(ordersFile)
	if err != nil {
		return nil, err
	}

	bomParser, err := parsers.NewBOMParser(config.CreateBOMParserConfig())
	if err != nil {
		return nil, err
	}
	bomLines, _, err := bomParser.ParseBOMLines(bomFile)
	if err != nil {
		return nil, err
	}

	inventoryParser, err := parsers.NewInventoryParser(config.CreateInventoryParserConfig())
	if err != nil {
		return nil, err
	}
	inventory, _, err := inventoryParser.ParseInventory(inventoryFile)
	if err != nil {
		return nil, err
	}

	input := &engine.Input{
		Orders:    orders,
		BOMLines:  bomLines,
		Inventory: inventory,
	}

	if issueFile != "" {
		issueParser, err := parsers.NewIssueParser(config.CreateIssueParserConfig())
		if err != nil {
			return nil, err
		}
		var issueLines []*models.IssueLine
		issueLines, _, err = issueParser.ParseIssueLines(issueFile)
		if err != nil {
			return nil, err
		}
		input.IssueLines = issueLines
		input.HasIssueExtract = true
	}

	return input, nil
}
