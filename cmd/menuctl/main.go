// Package main implements menuctl, the command-line client for the menudex HTTP API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	chiTransport "github.com/kailas-cloud/menudex/internal/transport/chi"
	"github.com/kailas-cloud/menudex/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	server  string
	apiKey  string
	timeout time.Duration
	json    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "menuctl",
		Short: "CLI for the menudex retrieval API",
		Long: `menuctl talks to a running menudex server.
It searches the menu, triggers index rebuilds and reports index and health status.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&opts.server, "server", envOr("MENUDEX_SERVER", "http://localhost:8080"), "menudex server URL")
	root.PersistentFlags().StringVar(&opts.apiKey, "api-key", os.Getenv("MENUDEX_API_KEY"), "Bearer API key")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print raw JSON responses")

	root.AddCommand(newSearchCmd(opts))
	root.AddCommand(newRebuildCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newHealthCmd(opts))
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// apiClient is a thin JSON client for the menudex API.
type apiClient struct {
	base   string
	apiKey string
	http   *http.Client
}

func (o *globalOptions) client() *apiClient {
	return &apiClient{
		base:   o.server,
		apiKey: o.apiKey,
		http:   &http.Client{Timeout: o.timeout},
	}
}

// apiError is a non-accepted HTTP response.
type apiError struct {
	Status int
	Body   chiTransport.ErrorResponse
}

func (e *apiError) Error() string {
	if e.Body.Code == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s: %s", e.Status, e.Body.Code, e.Body.Message)
}

// call sends in as JSON and decodes the response into out when the status is one of accept.
// It returns the status code so callers can tell accepted statuses apart.
func (c *apiClient) call(ctx context.Context, method, path string, in, out any, accept ...int) (int, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if !slices.Contains(accept, resp.StatusCode) {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, &apiErr.Body)
		return resp.StatusCode, apiErr
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
