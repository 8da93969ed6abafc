package main

import (
	"fmt"
	"maps"
	"net/http"
	"slices"

	"github.com/spf13/cobra"

	chiTransport "github.com/kailas-cloud/menudex/internal/transport/chi"
)

func newHealthCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check menudex server health",
		Long: `Check the health of the index, the embedding provider and Redis.
Exits non-zero when the server reports an error status.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var h chiTransport.HealthResponse
			if _, err := g.client().call(cmd.Context(), http.MethodGet, "/health", nil, &h,
				http.StatusOK, http.StatusServiceUnavailable); err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if g.json {
				if err := printJSON(out, h); err != nil {
					return err
				}
			} else {
				_, _ = fmt.Fprintf(out, "Status: %s\n", h.Status)
				for _, name := range slices.Sorted(maps.Keys(h.Checks)) {
					_, _ = fmt.Fprintf(out, "  %-10s %s\n", name, h.Checks[name])
				}
			}
			if h.Status == "error" {
				return fmt.Errorf("server is unhealthy")
			}
			return nil
		},
	}
}
