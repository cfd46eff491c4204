package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lineside-audit-service/internal/api"
	"lineside-audit-service/internal/store"
	"lineside-audit-service/pkg/logger"
)

// Flags for the serve command
var (
	serveDBPath string
	serveAddr   string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the stored audit runs over HTTP",
	Long: `Serve starts the read-only query API over the snapshot store.
Runs are produced by the run command; serve only reads them.

Examples:
  auditor serve --db-path audit.db
  auditor serve --db-path audit.db --addr :9090`,

	PreRunE: validateServeFlags,
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveDBPath, "db-path", "", "SQLite snapshot store path (required)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")

	serveCmd.MarkFlagRequired("db-path")

	viper.BindPFlag("serve-db-path", serveCmd.Flags().Lookup("db-path"))
	viper.BindPFlag("serve-addr", serveCmd.Flags().Lookup("addr"))
}

func validateServeFlags(cmd *cobra.Command, args []string) error {
	if serveDBPath == "" {
		serveDBPath = viper.GetString("serve-db-path")
	}
	if serveDBPath == "" {
		return fmt.Errorf("db-path is required")
	}
	if serveAddr == "" {
		return fmt.Errorf("addr cannot be empty")
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	st, err := store.New(serveDBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	server := api.NewServer(st)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		logger.GetGlobalLogger().WithComponent("api").Info("Shutting down")
		server.Shutdown()
	}()

	return server.Listen(serveAddr)
}
