package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	authToken string
	apiURL    string = "http://localhost:8787"
	output    string = "text" // "text" or "json"
)

var rootCmd = &cobra.Command{
	Use:   "notifyctl",
	Short: "notifyctl - operate and poke the Blogify notification engine",
	Long: `notifyctl runs maintenance tasks against the notifier's database
(migrate, seed, VAPID keys, dev tokens) and talks to a running server
on behalf of a user (notifications, follow requests, raw triggers).`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "Authentication token (defaults to NOTIFIER_TOKEN env var)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", apiURL, "API server URL")
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")

	// Local maintenance
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(vapidKeysCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(tokenCmd)

	// API client
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(followRequestsCmd)
}

// requireToken is the PreRunE of every command that calls the API.
func requireToken(cmd *cobra.Command, args []string) error {
	if authToken == "" {
		authToken = os.Getenv("NOTIFIER_TOKEN")
	}
	if authToken == "" {
		return fmt.Errorf("NOTIFIER_TOKEN not set; mint one with: notifyctl token <user-id>")
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
