package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	chiTransport "github.com/kailas-cloud/menudex/internal/transport/chi"
)

func newRebuildCmd(g *globalOptions) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the index from the catalog",
		Long: `Ask the server to reload the catalog and swap in a fresh index.

Without --wait the rebuild is scheduled and the command returns immediately.
With --wait the command blocks until the rebuild finishes and fails if it failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			client := g.client()

			if !wait {
				var resp map[string]string
				if _, err := client.call(cmd.Context(), http.MethodPost, "/v1/index/rebuild", nil, &resp, http.StatusAccepted); err != nil {
					return fmt.Errorf("rebuild failed: %w", err)
				}
				if g.json {
					return printJSON(out, resp)
				}
				_, err := fmt.Fprintln(out, "Rebuild scheduled")
				return err
			}

			var rep chiTransport.RebuildReport
			if _, err := client.call(cmd.Context(), http.MethodPost, "/v1/index/rebuild?wait=true", nil, &rep,
				http.StatusOK, http.StatusInternalServerError); err != nil {
				return fmt.Errorf("rebuild failed: %w", err)
			}
			if g.json {
				if err := printJSON(out, rep); err != nil {
					return err
				}
			} else {
				printReport(out, &rep)
			}
			if rep.Status != "success" {
				return fmt.Errorf("rebuild %s failed: %s", rep.ID, rep.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the rebuild to finish")
	return cmd
}

func newStatusCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the committed index and the last rebuild",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var st chiTransport.IndexStatusResponse
			if _, err := g.client().call(cmd.Context(), http.MethodGet, "/v1/index/status", nil, &st, http.StatusOK); err != nil {
				return fmt.Errorf("status failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if g.json {
				return printJSON(out, st)
			}
			_, _ = fmt.Fprintf(out, "Items:      %d\n", st.Items)
			if st.Generation != nil {
				_, _ = fmt.Fprintf(out, "Generation: %s (committed %s)\n",
					st.Generation.ID, st.Generation.CommittedAt.Format(time.RFC3339))
			} else {
				_, _ = fmt.Fprintln(out, "Generation: none")
			}
			if st.LastRebuild != nil {
				_, _ = fmt.Fprintln(out, "Last rebuild:")
				printReport(out, st.LastRebuild)
			}
			return nil
		},
	}
}

func printReport(w io.Writer, r *chiTransport.RebuildReport) {
	_, _ = fmt.Fprintf(w, "  ID:       %s\n", r.ID)
	_, _ = fmt.Fprintf(w, "  Status:   %s\n", r.Status)
	_, _ = fmt.Fprintf(w, "  Items:    %d (skipped %d)\n", r.Items, r.Skipped)
	_, _ = fmt.Fprintf(w, "  Duration: %s\n", time.Duration(r.DurationMs)*time.Millisecond)
	if r.Error != "" {
		_, _ = fmt.Fprintf(w, "  Error:    %s\n", r.Error)
	}
}
