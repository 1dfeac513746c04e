package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	flagAPIURL    string
	flagStore     string
	flagStorePath string
	flagLogLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "rallyctl",
	Short: "Rally CLI - staff and team sessions against the Rally API",
	Long: `rallyctl logs staff accounts and teams into the Rally API, keeps their
sessions on disk (or in PostgreSQL) and sends authenticated requests, refreshing
expired tokens on the way.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		pterm.Error.Println(err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "Rally API URL (RALLY_API_URL)")
	rootCmd.PersistentFlags().StringVar(&flagStore, "store", "", "Session storage: file, memory or postgres (RALLY_STORE)")
	rootCmd.PersistentFlags().StringVar(&flagStorePath, "store-path", "", "Session file for the file store (RALLY_STORE_PATH)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (RALLY_LOG_LEVEL)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(getCmd)
}
