package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/picknpack/dashboard/internal/overlay"
	"github.com/picknpack/dashboard/internal/service"
)

var stockFlags struct {
	category string
	sub      string
	query    string
	pages    int
}

var stockCmd = &cobra.Command{
	Use:   "stock",
	Short: "Browse products by category or search",
	Long: "Browse products. Without flags the dashboard's saved filters are used.\n" +
		"A search needs a category or a query of at least two letters.",
	RunE: runStock,
}

func init() {
	f := stockCmd.Flags()
	f.StringVar(&stockFlags.category, "category", "", "category name")
	f.StringVar(&stockFlags.sub, "sub", "", "sub-category of --category")
	f.StringVar(&stockFlags.query, "q", "", "search text")
	f.IntVar(&stockFlags.pages, "pages", 1, "number of pages to load")
}

func runStock(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	c := dash.Search
	flags := cmd.Flags()

	if flags.Changed("category") || flags.Changed("sub") || flags.Changed("q") {
		if err := c.SetFilters(ctx, overlay.Filters{
			Category:    stockFlags.category,
			SubCategory: stockFlags.sub,
			Query:       stockFlags.query,
		}); err != nil {
			return errors.New(service.UserMessage(err))
		}
		c.FlushQuery()
	}

	snap, err := c.Load(ctx)
	if err != nil {
		return errors.New(service.UserMessage(err))
	}
	for i := 1; i < stockFlags.pages && snap.HasNext; i++ {
		if snap, err = c.NextPage(ctx); err != nil {
			return errors.New(service.UserMessage(err))
		}
	}

	out := cmd.OutOrStdout()
	if !snap.Eligible {
		fmt.Fprintln(out, snap.Hint)
		return nil
	}
	if len(snap.Products) == 0 {
		fmt.Fprintln(out, "No products match.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK")
	for _, p := range snap.Products {
		category := "-"
		if p.Category != nil {
			category = *p.Category
			if p.SubCategory != nil && *p.SubCategory != "" {
				category += " / " + *p.SubCategory
			}
		}
		price := "-"
		if p.Price != nil {
			price = p.Price.StringFixed(2)
		}
		stock := "-"
		if p.StockAmount != nil {
			stock = p.StockAmount.String() + " " + p.StockUnit
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Name, category, price, stock)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if snap.Total != nil {
		fmt.Fprintf(out, "%d of %d shown\n", len(snap.Products), *snap.Total)
	} else {
		fmt.Fprintf(out, "%d shown\n", len(snap.Products))
	}
	return nil
}
