package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rememex/rememex/internal/core"
	"github.com/rememex/rememex/internal/search"
)

type searchOptions struct {
	limit      int
	pathPrefix string
	extensions []string
	minScore   float64
	contextLen int
	format     string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the active container's index",
		Long: `Runs the hybrid BM25 + semantic search pipeline against the active
container, fusing results with Reciprocal Rank Fusion and an MMR
diversity pass.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			ctx := cmd.Context()

			c, _, err := openCore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			params := core.SearchParams{
				Query:        query,
				TopK:         opts.limit,
				ContextBytes: opts.contextLen,
				PathPrefix:   opts.pathPrefix,
				Extensions:   opts.extensions,
				MinScore:     opts.minScore,
			}
			results, err := c.Search(ctx, params)
			if err != nil {
				return err
			}
			return renderSearchResults(cmd, query, results, opts.format)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVar(&opts.pathPrefix, "path-prefix", "", "Restrict results to paths with this prefix")
	cmd.Flags().StringSliceVar(&opts.extensions, "ext", nil, "Restrict results to these file extensions (repeatable)")
	cmd.Flags().Float64Var(&opts.minScore, "min-score", 0, "Drop results scoring below this threshold")
	cmd.Flags().IntVar(&opts.contextLen, "context-bytes", 400, "Bytes of surrounding content to include per result")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

// renderSearchResults writes results as either a short human-readable
// listing or a JSON array, matching the two formats the daemon-backed and
// local search paths agreed on in the teacher's CLI.
func renderSearchResults(cmd *cobra.Command, query string, results []*search.SearchResult, format string) error {
	if format == "json" {
		type jsonResult struct {
			Path      string  `json:"path"`
			Score     float64 `json:"score"`
			BM25Score float64 `json:"bm25_score,omitempty"`
			VecScore  float64 `json:"vec_score,omitempty"`
			Content   string  `json:"content"`
		}
		out := make([]jsonResult, 0, len(results))
		for _, r := range results {
			if r.Row == nil {
				continue
			}
			out = append(out, jsonResult{
				Path:      r.Row.Path,
				Score:     r.Score,
				BM25Score: r.BM25Score,
				VecScore:  r.VecScore,
				Content:   r.Row.Content,
			})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(results) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no results for %q\n", query)
		return nil
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%d results for %q:\n\n", len(results), query)
	for i, r := range results {
		if r.Row == nil {
			continue
		}
		fmt.Fprintf(w, "%d. %s (score: %.3f)\n", i+1, r.Row.Path, r.Score)
		for _, line := range snippetLines(r.Row.Content, 3) {
			fmt.Fprintf(w, "   %s\n", line)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// snippetLines returns the first n non-trailing-blank lines of content.
func snippetLines(content string, n int) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
