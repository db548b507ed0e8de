// Package cmd implements the sonartrack-admin CLI commands.
package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version string

	// Global flags
	flagAPIURL  string
	flagOutput  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "sonartrack-admin",
	Short: "SonarTrack administration CLI",
	Long: `sonartrack-admin is a CLI for managing a SonarTrack server.

It provides commands to register tracked projects, trigger and watch
synchronization runs, browse findings and inspect trend history.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the CLI version from build flags.
func SetVersion(v string) {
	version = v
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "Override API URL (env: SONARTRACK_API_URL)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(findingsCmd)
	rootCmd.AddCommand(trendsCmd)
	rootCmd.AddCommand(reportCmd)
}

func initConfig() {
	if flagAPIURL == "" {
		flagAPIURL = os.Getenv("SONARTRACK_API_URL")
	}
	if flagAPIURL == "" {
		flagAPIURL = "http://localhost:8080"
	}
}

func apiClient() *Client {
	return NewClient(flagAPIURL, flagVerbose)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("sonartrack-admin %s (%s/%s)\n", version, runtime.GOOS, runtime.GOARCH)
	},
}
