package main

import (
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	chiTransport "github.com/kailas-cloud/menudex/internal/transport/chi"
)

type searchOptions struct {
	topK       int
	maxPrice   float64
	vegetarian bool
	vegan      bool
	category   string
	scores     bool
}

func newSearchCmd(g *globalOptions) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search the menu",
		Long: `Search the menu with a free-text description.

Examples:
  # Ask like a customer would
  menuctl search something spicy under 200

  # Hard filters
  menuctl search paneer --vegetarian --max-price 250 --top-k 3

  # Show the score breakdown
  menuctl search masala dosa --scores`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := chiTransport.SearchRequest{
				Query:          strings.Join(args, " "),
				VegetarianOnly: opts.vegetarian,
				VeganOnly:      opts.vegan,
				Category:       opts.category,
			}
			if cmd.Flags().Changed("top-k") {
				req.TopK = &opts.topK
			}
			if cmd.Flags().Changed("max-price") {
				req.MaxPrice = &opts.maxPrice
			}

			var resp chiTransport.SearchResponse
			if _, err := g.client().call(cmd.Context(), http.MethodPost, "/v1/search", req, &resp, http.StatusOK); err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if g.json {
				return printJSON(out, resp)
			}
			if !opts.scores {
				_, err := fmt.Fprint(out, resp.Reply)
				return err
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tSCORE\tBASE\tBOOST\tFUZZY")
			for _, r := range resp.Results {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.4f\t%.4f\t%.3f\t%.3f\n",
					r.ID, r.Name, r.Category, r.Price, r.Score, r.BaseSimilarity, r.BoostFactor, r.FuzzyMatch)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			_, err := fmt.Fprintf(out, "reason: %s\n", resp.Reason)
			return err
		},
	}

	cmd.Flags().IntVar(&opts.topK, "top-k", 5, "number of results")
	cmd.Flags().Float64Var(&opts.maxPrice, "max-price", 0, "drop items priced above this")
	cmd.Flags().BoolVar(&opts.vegetarian, "vegetarian", false, "vegetarian items only")
	cmd.Flags().BoolVar(&opts.vegan, "vegan", false, "vegan items only")
	cmd.Flags().StringVar(&opts.category, "category", "", "restrict to one category (case-sensitive)")
	cmd.Flags().BoolVar(&opts.scores, "scores", false, "print a score table instead of the reply")
	return cmd
}
