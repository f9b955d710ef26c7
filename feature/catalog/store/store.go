package store

import (
	"context"
	"fmt"
	"time"

	"catalog-manager/feature/catalog/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AutoMigrate creates or updates the catalog schema. Used by the CLI and the
// test suites; production deployments may manage the schema externally.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Owner{},
		&models.Content{},
		&models.Product{},
		&models.ProductContent{},
		&models.OwnerProduct{},
		&models.OwnerContent{},
	)
}

// OwnerStore provides access to owner records.
type OwnerStore struct{}

// NewOwnerStore creates a new OwnerStore.
func NewOwnerStore() *OwnerStore {
	return &OwnerStore{}
}

// FindByKey returns the owner with the given key, or nil if none exists.
func (s *OwnerStore) FindByKey(ctx context.Context, db *gorm.DB, key string) (*models.Owner, error) {
	var owner models.Owner
	err := db.WithContext(ctx).Where("key = ?", key).First(&owner).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up owner %q: %w", key, err)
	}
	return &owner, nil
}

// Create persists a new owner.
func (s *OwnerStore) Create(ctx context.Context, db *gorm.DB, owner *models.Owner) error {
	if err := db.WithContext(ctx).Create(owner).Error; err != nil {
		return fmt.Errorf("failed to create owner %q: %w", owner.Key, err)
	}
	return nil
}

// ProductStore provides access to product versions and the owner-product
// association rows.
type ProductStore struct{}

// NewProductStore creates a new ProductStore.
func NewProductStore() *ProductStore {
	return &ProductStore{}
}

// ListForOwner returns the product versions the given owner currently uses,
// with child references preloaded.
func (s *ProductStore) ListForOwner(ctx context.Context, db *gorm.DB, ownerID string) ([]*models.Product, error) {
	var products []*models.Product

	sub := db.Model(&models.OwnerProduct{}).
		Select("product_uuid").
		Where("owner_id = ?", ownerID)

	err := db.WithContext(ctx).
		Preload("DerivedProduct").
		Preload("ProvidedProducts").
		Preload("ProductContent").
		Preload("ProductContent.Content").
		Where("uuid IN (?)", sub).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list products for owner %s: %w", ownerID, err)
	}

	return products, nil
}

// VersionedByID returns every persisted version of the given logical product
// IDs, from any owner, keyed by logical ID. This is the candidate pool for
// version-sharing resolution.
func (s *ProductStore) VersionedByID(ctx context.Context, db *gorm.DB, ids []string) (map[string][]*models.Product, error) {
	if len(ids) == 0 {
		return map[string][]*models.Product{}, nil
	}

	var products []*models.Product
	err := db.WithContext(ctx).
		Preload("DerivedProduct").
		Preload("ProvidedProducts").
		Preload("ProductContent").
		Preload("ProductContent.Content").
		Where("product_id IN ?", ids).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch versioned products: %w", err)
	}

	versioned := make(map[string][]*models.Product, len(ids))
	for _, p := range products {
		versioned[p.ProductID] = append(versioned[p.ProductID], p)
	}

	return versioned, nil
}

// Create persists a new product version. A uniqueness violation on
// (product_id, entity_version) indicates a concurrent creator won the race;
// callers retry the surrounding transaction on that failure class.
func (s *ProductStore) Create(ctx context.Context, db *gorm.DB, product *models.Product) error {
	// Associations are linked by UUID columns already resolved by the caller;
	// creating them again here would duplicate shared rows.
	err := db.WithContext(ctx).
		Omit("DerivedProduct", "ProvidedProducts.*", "ProductContent.Content").
		Create(product).Error
	if err != nil {
		return fmt.Errorf("failed to create product %s: %w", product.ProductID, err)
	}
	return nil
}

// MapOwnerVersion points the owner at the given product version, replacing
// any previous association for the same logical ID.
func (s *ProductStore) MapOwnerVersion(ctx context.Context, db *gorm.DB, ownerID, productID, productUUID string) error {
	row := models.OwnerProduct{
		OwnerID:     ownerID,
		ProductID:   productID,
		ProductUUID: productUUID,
		UpdatedAt:   time.Now(),
	}

	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"product_uuid", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to map owner %s to product %s: %w", ownerID, productID, err)
	}
	return nil
}

// ContentStore provides access to content versions and the owner-content
// association rows.
type ContentStore struct{}

// NewContentStore creates a new ContentStore.
func NewContentStore() *ContentStore {
	return &ContentStore{}
}

// ListForOwner returns the content versions the given owner currently uses.
func (s *ContentStore) ListForOwner(ctx context.Context, db *gorm.DB, ownerID string) ([]*models.Content, error) {
	var contents []*models.Content

	sub := db.Model(&models.OwnerContent{}).
		Select("content_uuid").
		Where("owner_id = ?", ownerID)

	err := db.WithContext(ctx).
		Where("uuid IN (?)", sub).
		Find(&contents).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list content for owner %s: %w", ownerID, err)
	}

	return contents, nil
}

// VersionedByID returns every persisted version of the given logical content
// IDs, from any owner, keyed by logical ID.
func (s *ContentStore) VersionedByID(ctx context.Context, db *gorm.DB, ids []string) (map[string][]*models.Content, error) {
	if len(ids) == 0 {
		return map[string][]*models.Content{}, nil
	}

	var contents []*models.Content
	err := db.WithContext(ctx).
		Where("content_id IN ?", ids).
		Find(&contents).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch versioned content: %w", err)
	}

	versioned := make(map[string][]*models.Content, len(ids))
	for _, c := range contents {
		versioned[c.ContentID] = append(versioned[c.ContentID], c)
	}

	return versioned, nil
}

// Create persists a new content version. See ProductStore.Create for the
// uniqueness-race semantics.
func (s *ContentStore) Create(ctx context.Context, db *gorm.DB, content *models.Content) error {
	if err := db.WithContext(ctx).Create(content).Error; err != nil {
		return fmt.Errorf("failed to create content %s: %w", content.ContentID, err)
	}
	return nil
}

// MapOwnerVersion points the owner at the given content version, replacing
// any previous association for the same logical ID.
func (s *ContentStore) MapOwnerVersion(ctx context.Context, db *gorm.DB, ownerID, contentID, contentUUID string) error {
	row := models.OwnerContent{
		OwnerID:     ownerID,
		ContentID:   contentID,
		ContentUUID: contentUUID,
		UpdatedAt:   time.Now(),
	}

	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "content_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content_uuid", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to map owner %s to content %s: %w", ownerID, contentID, err)
	}
	return nil
}
