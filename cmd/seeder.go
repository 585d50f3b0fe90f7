package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/storefront/internal/core/database"
	"github.com/frahmantamala/storefront/internal/product"
	productpostgres "github.com/frahmantamala/storefront/internal/product/postgres"
	"github.com/frahmantamala/storefront/pkg/logger"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Import products into an empty catalog",
	Long:  `Import products from a JSON array. Nothing is imported when the catalog already has products.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(".")
		if err != nil {
			return err
		}
		if err := cfg.Database.Validate(); err != nil {
			return fmt.Errorf("database config: %w", err)
		}
		lg := logger.LoggerWrapper()

		raw, err := os.ReadFile(seedFile)
		if err != nil {
			return fmt.Errorf("read seed file: %w", err)
		}
		var items []product.SeedProduct
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("parse seed file: %w", err)
		}

		conns, err := database.Open(cfg.Database, lg)
		if err != nil {
			return err
		}
		defer conns.Close()

		svc := product.NewService(productpostgres.NewProductRepository(conns.Gorm), lg)
		created, err := svc.Seed(context.Background(), items)
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}

		fmt.Printf("Seeded %d of %d products\n", created, len(items))
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "products.json", "JSON file with the products to import")
}
