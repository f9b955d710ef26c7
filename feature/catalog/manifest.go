package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"catalog-manager/core/storage"
	"catalog-manager/feature/catalog/models"

	"github.com/minio/minio-go/v7"
)

// ParseManifest decodes a refresh manifest from JSON.
func ParseManifest(r io.Reader) (*models.Manifest, error) {
	var manifest models.Manifest
	if err := json.NewDecoder(r).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &manifest, nil
}

// LoadManifestFile reads a manifest from the local filesystem.
func LoadManifestFile(path string) (*models.Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest %s: %w", path, err)
	}
	defer f.Close()

	return ParseManifest(f)
}

// LoadManifestObject reads a manifest from object storage.
func LoadManifestObject(ctx context.Context, client storage.Client, bucket, objectName string) (*models.Manifest, error) {
	obj, err := client.GetObject(ctx, bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest object %s: %w", objectName, err)
	}
	defer obj.Close()

	return ParseManifest(obj)
}
