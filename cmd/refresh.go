package cmd

import (
	"context"
	"fmt"
	"os"

	"catalog-manager/core/config"
	"catalog-manager/core/database"
	"catalog-manager/core/logger"
	"catalog-manager/core/storage"
	"catalog-manager/feature/catalog"
	"catalog-manager/feature/catalog/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	refreshManifestFile   string
	refreshManifestObject string
)

// refreshCmd runs a one-shot catalog refresh for an owner.
var refreshCmd = &cobra.Command{
	Use:   "refresh [owner-key]",
	Short: "Refresh an owner's catalog from a manifest",
	Long: `Reconciles an owner's catalog against a refresh manifest, creating the
owner on first use.

The manifest is read from a local file (--file) or from object storage
(--object). Exactly one source must be given.

Examples:
  # Refresh from a local manifest
  catalog-manager refresh acme-corp --file ./manifest.json

  # Refresh from an archived manifest object
  catalog-manager refresh acme-corp --object manifests/acme-corp/20260301T120000Z.json`,
	Args: cobra.ExactArgs(1),
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().StringVar(&refreshManifestFile, "file", "", "Path to a local manifest file")
	refreshCmd.Flags().StringVar(&refreshManifestObject, "object", "", "Object name of a manifest in storage")

	RootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	ownerKey := args[0]

	if (refreshManifestFile == "") == (refreshManifestObject == "") {
		return fmt.Errorf("exactly one of --file or --object must be given")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logg.Sync()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	store, err := storage.NewClient(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage client: %w", err)
	}

	svc := catalog.NewService(db, store, cfg.Storage.Bucket, logg)

	var manifest *models.Manifest
	if refreshManifestFile != "" {
		manifest, err = catalog.LoadManifestFile(refreshManifestFile)
	} else {
		manifest, err = catalog.LoadManifestObject(ctx, store, cfg.Storage.Bucket, refreshManifestObject)
	}
	if err != nil {
		return err
	}

	logg.Info("Starting catalog refresh", zap.String("owner", ownerKey))
	result, err := svc.Refresh(ctx, ownerKey, manifest)
	if err != nil {
		logg.Error("Catalog refresh failed", zap.Error(err))
		os.Exit(1)
	}

	summary := result.Summary()

	// Pretty Console Output
	fmt.Println("\n--- Catalog Refresh ---")
	fmt.Printf("Owner:             %s\n", ownerKey)
	fmt.Println("-----------------------")
	fmt.Printf("Products created:  %d\n", summary.ProductsCreated)
	fmt.Printf("Products updated:  %d\n", summary.ProductsUpdated)
	fmt.Printf("Products skipped:  %d\n", summary.ProductsSkipped)
	fmt.Printf("Content created:   %d\n", summary.ContentCreated)
	fmt.Printf("Content updated:   %d\n", summary.ContentUpdated)
	fmt.Printf("Content skipped:   %d\n", summary.ContentSkipped)
	fmt.Println("-----------------------")

	return nil
}
