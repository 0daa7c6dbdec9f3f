// gearctl is a command-line client for the Gearbox HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiFlag    string
	apiKeyFlag string
	rootCmd    = &cobra.Command{
		Use:           "gearctl",
		Short:         "CLI client for the Gearbox gear assistant API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", envOr("GEARBOX_API", "http://localhost:8080"), "Gearbox service base URL")
	rootCmd.PersistentFlags().StringVarP(&apiKeyFlag, "api-key", "k", os.Getenv("GEARBOX_API_KEY"), "API key, if the server requires one")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
