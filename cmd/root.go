package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-attendance",
	Short: "Face recognition attendance recorder",
	Long: `Face Attendance recognizes enrolled people in camera frames or uploaded
images and records at most one attendance event per person per debounce
interval, inside a configurable daily time window.

Configuration comes from environment variables (a .env file in the working
directory, or the one given with --env-file, is loaded first). Storage is selected by DATABASE_URL:
sqlite://, postgres://, mysql:// or csv://.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var envFile string

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before reading configuration")
}

// initConfig loads envFile. Variables already set in the environment win.
// A missing default .env is fine, a missing explicit file is reported.
func initConfig() {
	if err := godotenv.Load(envFile); err != nil && rootCmd.PersistentFlags().Changed("env-file") {
		fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", envFile, err)
	}
}
