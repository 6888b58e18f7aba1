package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/imrishuroy/go-storefront-orders/internal/aws"
	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/config"
	"github.com/imrishuroy/go-storefront-orders/internal/logging"
)

// seedProducts is the starter catalog.
func seedProducts() []catalog.Product {
	return []catalog.Product{
		{
			Name:        "Elegant Evening Dress",
			Description: "Floor-length satin gown with a draped back.",
			Price:       299.99,
			Category:    catalog.CategoryEvening,
			IsActive:    true,
			Featured:    true,
			Sizes:       map[string]int{"S": 5, "M": 8, "L": 6, "XL": 3},
			Colors:      []string{"black", "navy", "burgundy"},
			Tags:        []string{"gown", "satin"},
		},
		{
			Name:        "Casual Summer Dress",
			Description: "Lightweight cotton sundress with pockets.",
			Price:       89.99,
			Category:    catalog.CategoryCasual,
			IsActive:    true,
			Featured:    true,
			Sizes:       map[string]int{"XS": 4, "S": 10, "M": 12, "L": 8, "XL": 5},
			Colors:      []string{"white", "yellow", "sky blue"},
			Tags:        []string{"cotton", "summer"},
		},
		{
			Name:        "Wedding Guest Dress",
			Description: "Midi chiffon dress with a wrap bodice.",
			Price:       199.99,
			Category:    catalog.CategoryFormal,
			IsActive:    true,
			Sizes:       map[string]int{"S": 6, "M": 9, "L": 7, "XL": 4},
			Colors:      []string{"blush", "sage"},
			Tags:        []string{"chiffon", "midi"},
		},
		{
			Name:        "Bohemian Maxi Dress",
			Description: "Flowing printed maxi with tiered skirt.",
			Price:       149.99,
			Category:    catalog.CategoryCasual,
			IsActive:    true,
			Sizes:       map[string]int{"S": 7, "M": 10, "L": 8, "XL": 5},
			Colors:      []string{"terracotta", "cream"},
			Tags:        []string{"boho", "maxi"},
		},
	}
}

func main() {
	var (
		table   = flag.String("table", "", "products table (defaults to PRODUCTS_TABLE)")
		dryRun  = flag.Bool("dry-run", false, "print the catalog without writing it")
		timeout = flag.Duration("timeout", 30*time.Second, "overall timeout for the seed run")
	)
	flag.Parse()

	cfg := config.FromEnv()
	logger := logging.New(os.Stderr, cfg.LogLevel)
	if *table == "" {
		*table = cfg.Tables.Products
	}

	products := seedProducts()
	if *dryRun {
		printProducts(products)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		logger.Error("failed to init aws clients", slog.Any("error", err))
		os.Exit(1)
	}
	store := catalog.NewStore(clients.DynamoDB, *table)

	for i, p := range products {
		saved, err := store.Put(ctx, p)
		if err != nil {
			logger.Error("failed to seed product", slog.String("name", p.Name), slog.Any("error", err))
			os.Exit(1)
		}
		products[i] = *saved
	}
	logger.Info("catalog seeded", slog.String("table", *table), slog.Int("products", len(products)))
	printProducts(products)
}

func printProducts(products []catalog.Product) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK")
	for _, p := range products {
		total := 0
		for _, e := range p.SizeEntries() {
			total += e.Stock
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d\n", p.ProductID, p.Name, p.Category, p.Price, total)
	}
	w.Flush()
}
