package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/conneroisu/ssrgate/internal/monitoring"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health status of a running ssrgate server",
	Long: `Queries the /healthz endpoint of a running server and reports the result
of every registered check (shell template, content directory, goroutines).

This command is used by container health checks and deployment readiness probes.
It exits non-zero when the server is unreachable or reports itself unhealthy.`,
	RunE: runHealthCheck,
}

var (
	healthPort    int
	healthHost    string
	healthTimeout time.Duration
	healthVerbose bool
)

func init() {
	rootCmd.AddCommand(healthCmd)

	healthCmd.Flags().IntVarP(&healthPort, "port", "p", 3000, "Port of the server")
	healthCmd.Flags().
		StringVarP(&healthHost, "host", "H", "localhost", "Host of the server")
	healthCmd.Flags().
		DurationVarP(&healthTimeout, "timeout", "t", 3*time.Second, "Timeout for the health request")
	healthCmd.Flags().BoolVarP(&healthVerbose, "verbose", "v", false, "Print the full health response")

	AddFlagValidation(healthCmd, "port", ValidatePort)
}

func runHealthCheck(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("http://%s:%d/healthz", healthHost, healthPort)
	return probeHealth(cmd.OutOrStdout(), &http.Client{Timeout: healthTimeout}, url, healthVerbose)
}

func probeHealth(out io.Writer, client *http.Client, url string, verbose bool) error {
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	var health monitoring.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("reading health response (status %d): %w", resp.StatusCode, err)
	}

	if verbose {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(health); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "%s (version %s, uptime %s)\n", health.Status, health.Version, health.Uptime)
		names := make([]string, 0, len(health.Checks))
		for name := range health.Checks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			check := health.Checks[name]
			if check.Status == monitoring.HealthStatusHealthy {
				continue
			}
			fmt.Fprintf(out, "  - %s: %s %s\n", name, check.Status, check.Message)
		}
	}

	if resp.StatusCode != http.StatusOK || health.Status == monitoring.HealthStatusUnhealthy {
		return errors.New("health checks failed")
	}
	return nil
}
