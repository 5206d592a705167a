package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"tunnelout/internal/server"
	"tunnelout/internal/version"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tunnelout",
	Short: "tunnelout - pay-per-day reverse SSH tunnel service",
	Long: `tunnelout provisions and maintains a reverse SSH tunnel that exposes a
local service to the public internet, gated by a pay-per-day subscription
settled over Lightning.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tunnelout service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Run()
	},
}

var (
	statusAddr string
	statusKey  string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current tunnel record of a running service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if statusKey == "" {
			statusKey = os.Getenv("ADMIN_API_KEY")
		}

		client := &http.Client{Timeout: 10 * time.Second}
		req, err := http.NewRequest(http.MethodGet, statusAddr+"/api/v1/tunnel", nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-Api-Key", statusKey)

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("service not reachable at %s: %w", statusAddr, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}

		var pretty map[string]interface{}
		if err := json.Unmarshal(body, &pretty); err != nil {
			return err
		}
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetBuildInfo().String())
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://localhost:5000", "Service address")
	statusCmd.Flags().StringVar(&statusKey, "api-key", "", "Admin API key (defaults to ADMIN_API_KEY)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
