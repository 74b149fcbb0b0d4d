package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/chromaffi"
)

func newQueryCmd(flags *globalFlags) *cobra.Command {
	var (
		collection string
		embedding  string
		k          uint32
		where      string
		whereDoc   string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print the nearest records to an embedding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := parseEmbedding(embedding)
			if err != nil {
				return err
			}
			return flags.withClient(cmd, func(c *chromaffi.Client) error {
				coll, err := c.GetCollection(cmd.Context(), collection, flags.Tenant, flags.Database)
				if err != nil {
					return err
				}
				p := chromaffi.QueryParams{
					Embedding: q,
					Dimension: len(q),
					NResults:  k,
					Include:   chromaffi.Include{Metadatas: true, Documents: true, Distances: true},
				}
				if where != "" {
					p.Where = &where
				}
				if whereDoc != "" {
					p.WhereDocument = &whereDoc
				}
				rows, err := c.Query(cmd.Context(), coll, p)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tDISTANCE\tDOCUMENT\tMETADATA")
				for i, id := range rows.IDs {
					fmt.Fprintf(tw, "%s\t%.6f\t%s\t%s\n", id, rows.Distances[i], rows.Documents[i], rows.Metadatas[i])
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "Collection name")
	cmd.Flags().StringVar(&embedding, "embedding", "", "Comma separated query embedding, e.g. 0.1,0.2")
	cmd.Flags().Uint32VarP(&k, "n-results", "k", 10, "Number of results")
	cmd.Flags().StringVar(&where, "where", "", "Metadata filter as JSON")
	cmd.Flags().StringVar(&whereDoc, "where-document", "", "Document filter as JSON")
	_ = cmd.MarkFlagRequired("collection")
	_ = cmd.MarkFlagRequired("embedding")
	return cmd
}

func parseEmbedding(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid embedding value %q: %w", p, err)
		}
		out = append(out, float32(f))
	}
	return out, nil
}
