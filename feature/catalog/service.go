package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"catalog-manager/core/storage"
	"catalog-manager/feature/catalog/models"
	"catalog-manager/feature/catalog/refresh"
	"catalog-manager/feature/catalog/store"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrOwnerNotFound is returned by read operations for an unknown owner key.
var ErrOwnerNotFound = errors.New("owner not found")

// manifestPrefix is the object-name prefix under which received manifests
// are archived.
const manifestPrefix = "manifests"

// Service handles catalog operations for owners: running refreshes and
// reading back the resulting catalog.
type Service struct {
	db     *gorm.DB
	client storage.Client
	bucket string
	logger *zap.Logger

	owners   *store.OwnerStore
	products *store.ProductStore
	contents *store.ContentStore
}

// NewService creates a new catalog service.
func NewService(db *gorm.DB, client storage.Client, bucket string, logger *zap.Logger) *Service {
	return &Service{
		db:       db,
		client:   client,
		bucket:   bucket,
		logger:   logger,
		owners:   store.NewOwnerStore(),
		products: store.NewProductStore(),
		contents: store.NewContentStore(),
	}
}

// EnsureOwner returns the owner with the given key, creating it on first
// use.
func (s *Service) EnsureOwner(ctx context.Context, key string) (*models.Owner, error) {
	if key == "" {
		return nil, errors.New("owner key must not be empty")
	}

	owner, err := s.owners.FindByKey(ctx, s.db, key)
	if err != nil {
		return nil, err
	}
	if owner != nil {
		return owner, nil
	}

	owner = &models.Owner{
		ID:   uuid.NewString(),
		Key:  key,
		Name: key,
	}
	if err := s.owners.Create(ctx, s.db, owner); err != nil {
		return nil, err
	}

	s.logger.Info("Created owner", zap.String("owner", key))
	return owner, nil
}

// Refresh reconciles the owner's catalog against the given manifest and
// returns the per-entity outcome.
func (s *Service) Refresh(ctx context.Context, ownerKey string, manifest *models.Manifest) (*refresh.RefreshResult, error) {
	owner, err := s.EnsureOwner(ctx, ownerKey)
	if err != nil {
		return nil, err
	}

	worker := refresh.NewRefreshWorker(s.db, owner, s.products, s.contents, s.logger)

	if err := worker.AddSubscriptions(manifest.Subscriptions...); err != nil {
		return nil, err
	}
	if err := worker.AddProducts(manifest.Products...); err != nil {
		return nil, err
	}
	if err := worker.AddContent(manifest.Content...); err != nil {
		return nil, err
	}

	started := time.Now()
	result, err := worker.Execute(ctx)
	if err != nil {
		return nil, err
	}

	summary := result.Summary()
	s.logger.Info("Catalog refresh finished",
		zap.String("owner", ownerKey),
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("subscriptions", len(worker.Subscriptions())),
		zap.Int("products_created", summary.ProductsCreated),
		zap.Int("products_updated", summary.ProductsUpdated),
		zap.Int("products_skipped", summary.ProductsSkipped),
		zap.Int("content_created", summary.ContentCreated),
		zap.Int("content_updated", summary.ContentUpdated),
		zap.Int("content_skipped", summary.ContentSkipped),
	)

	return result, nil
}

// RefreshFromObject loads a manifest from object storage and runs the
// refresh with it.
func (s *Service) RefreshFromObject(ctx context.Context, ownerKey, objectName string) (*refresh.RefreshResult, error) {
	manifest, err := LoadManifestObject(ctx, s.client, s.bucket, objectName)
	if err != nil {
		return nil, err
	}
	return s.Refresh(ctx, ownerKey, manifest)
}

// ArchiveManifest stores a received manifest payload in object storage for
// audit, returning the object name.
func (s *Service) ArchiveManifest(ctx context.Context, ownerKey string, payload []byte) (string, error) {
	objectName := fmt.Sprintf("%s/%s/%s-%s.json",
		manifestPrefix, ownerKey, time.Now().UTC().Format("20060102T150405Z"), uuid.NewString())

	_, err := s.client.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("failed to archive manifest: %w", err)
	}

	return objectName, nil
}

// ListManifests returns the archived manifest object names for the given
// owner.
func (s *Service) ListManifests(ctx context.Context, ownerKey string) ([]string, error) {
	prefix := manifestPrefix + "/" + ownerKey + "/"

	var names []string
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, fmt.Errorf("failed to list manifests: %w", info.Err)
		}
		if strings.HasSuffix(info.Key, ".json") {
			names = append(names, info.Key)
		}
	}

	return names, nil
}

// ListProducts returns the owner's current product catalog.
func (s *Service) ListProducts(ctx context.Context, ownerKey string) ([]*models.Product, error) {
	owner, err := s.requireOwner(ctx, ownerKey)
	if err != nil {
		return nil, err
	}
	return s.products.ListForOwner(ctx, s.db, owner.ID)
}

// ListContent returns the owner's current content catalog.
func (s *Service) ListContent(ctx context.Context, ownerKey string) ([]*models.Content, error) {
	owner, err := s.requireOwner(ctx, ownerKey)
	if err != nil {
		return nil, err
	}
	return s.contents.ListForOwner(ctx, s.db, owner.ID)
}

func (s *Service) requireOwner(ctx context.Context, key string) (*models.Owner, error) {
	owner, err := s.owners.FindByKey(ctx, s.db, key)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, fmt.Errorf("%w: %s", ErrOwnerNotFound, key)
	}
	return owner, nil
}
