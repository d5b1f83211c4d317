package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

// rootCmd runs the API server when no subcommand is given.
var rootCmd = &cobra.Command{
	Use:   "medichat-server",
	Short: "Healthcare chat and triage API server",
	Long: `medichat-server serves the healthcare chat API: signup and login,
role-gated chat, symptom assessments and doctor appointment review.

Running without a subcommand is the same as "serve".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env file is fine; the environment may already be set.
		if err := godotenv.Load(envFile); err != nil && envFile != ".env" {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
		return nil
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(triageCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
