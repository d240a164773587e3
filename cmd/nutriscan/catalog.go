package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the food nutrient catalog",
	}
	cmd.AddCommand(catalogListCmd())
	cmd.AddCommand(catalogSearchCmd())
	return cmd
}

func catalogListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog foods with their nutrients",
		RunE: func(cmd *cobra.Command, args []string) error {
			agg, err := buildAggregator(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("%-24s %8s %8s %8s %8s\n", "Food", "Iron mg", "B12 ug", "VitD IU", "Ca mg")
			for _, r := range agg.Catalog().Records() {
				fmt.Printf("%-24s %8.2f %8.2f %8.1f %8.1f\n",
					truncate(r.FoodName, 24), r.IronMg, r.B12Ug, r.VitaminDIU, r.CalciumMg)
			}
			return nil
		},
	}
}

func catalogSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Find the catalog foods closest to a name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agg, err := buildAggregator(cmd.Context())
			if err != nil {
				return err
			}

			query := strings.Join(args, " ")
			matches := agg.Search(query, limit)
			if len(matches) == 0 {
				fmt.Println("No matching foods found.")
				return nil
			}

			rec, _, ok := agg.Resolve(query)
			for _, m := range matches {
				marker := " "
				if ok && m.Name == rec.FoodName {
					marker = "*"
				}
				fmt.Printf("%s %3d  %s\n", marker, m.Score, m.Name)
			}
			if !ok {
				fmt.Printf("No match reaches the threshold of %d; %q would be skipped.\n", cfg.MatchThreshold, query)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "number of matches to show")
	return cmd
}
