package refresh

import (
	"context"
	"fmt"
	"testing"

	"catalog-manager/feature/catalog/models"
	"catalog-manager/feature/catalog/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupRefreshDB creates an in-memory SQLite DB with the catalog schema.
func setupRefreshDB(t *testing.T, dbName string) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", dbName)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	if err := store.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	return db
}

func createTestOwner(t *testing.T, db *gorm.DB, key string) *models.Owner {
	t.Helper()

	owner := &models.Owner{ID: uuid.NewString(), Key: key, Name: key}
	require.NoError(t, db.Create(owner).Error)
	return owner
}

func newTestWorker(db *gorm.DB, owner *models.Owner) *RefreshWorker {
	return NewRefreshWorker(db, owner, store.NewProductStore(), store.NewContentStore(), zap.NewNop())
}

// testManifestProduct builds the standard fixture: product p1 carrying
// content c1 and c2, providing pp1, with derived product pd1.
func testManifestProduct() *models.ProductInfo {
	return &models.ProductInfo{
		ID:         "p1",
		Name:       strPtr("Product One"),
		Attributes: map[string]string{"support_level": "full"},
		DerivedProduct: &models.ProductInfo{
			ID:   "pd1",
			Name: strPtr("Derived One"),
		},
		ProvidedProducts: []*models.ProductInfo{
			{ID: "pp1", Name: strPtr("Provided One")},
		},
		ProductContent: []models.ProductContentInfo{
			{Content: &models.ContentInfo{ID: "c1", Label: strPtr("content-1"), Name: strPtr("Content One")}},
			{Content: &models.ContentInfo{ID: "c2", Label: strPtr("content-2")}, Enabled: boolPtr(false)},
		},
	}
}

func TestRefreshWorkerInitialRun(t *testing.T) {
	db := setupRefreshDB(t, "worker_initial")
	owner := createTestOwner(t, db, "owner-1")

	worker := newTestWorker(db, owner)
	require.NoError(t, worker.AddProducts(testManifestProduct()))

	result, err := worker.Execute(context.Background())
	require.NoError(t, err)

	summary := result.Summary()
	assert.Equal(t, 3, summary.ProductsCreated)
	assert.Equal(t, 2, summary.ContentCreated)
	assert.Zero(t, summary.ProductsUpdated)
	assert.Zero(t, summary.ProductsSkipped)

	// The owner now points at the created versions.
	products, err := store.NewProductStore().ListForOwner(context.Background(), db, owner.ID)
	require.NoError(t, err)
	assert.Len(t, products, 3)

	byID := make(map[string]*models.Product, len(products))
	for _, p := range products {
		byID[p.ProductID] = p
	}

	root := byID["p1"]
	require.NotNil(t, root)
	assert.Equal(t, "Product One", root.Name)
	require.NotNil(t, root.DerivedProductUUID)
	assert.Equal(t, byID["pd1"].UUID, *root.DerivedProductUUID)
	require.Len(t, root.ProvidedProducts, 1)
	assert.Equal(t, byID["pp1"].UUID, root.ProvidedProducts[0].UUID)

	require.Len(t, root.ProductContent, 2)
	enabled := map[string]bool{}
	for _, pc := range root.ProductContent {
		require.NotNil(t, pc.Content)
		enabled[pc.Content.ContentID] = pc.Enabled
	}
	assert.True(t, enabled["c1"])
	assert.False(t, enabled["c2"])
}

func TestRefreshWorkerIdempotent(t *testing.T) {
	db := setupRefreshDB(t, "worker_idempotent")
	owner := createTestOwner(t, db, "owner-1")

	first := newTestWorker(db, owner)
	require.NoError(t, first.AddProducts(testManifestProduct()))
	_, err := first.Execute(context.Background())
	require.NoError(t, err)

	second := newTestWorker(db, owner)
	require.NoError(t, second.AddProducts(testManifestProduct()))
	result, err := second.Execute(context.Background())
	require.NoError(t, err)

	summary := result.Summary()
	assert.Zero(t, summary.ProductsCreated)
	assert.Zero(t, summary.ProductsUpdated)
	assert.Equal(t, 3, summary.ProductsSkipped)
	assert.Equal(t, 2, summary.ContentSkipped)

	// No duplicate versions were persisted.
	var productCount int64
	require.NoError(t, db.Model(&models.Product{}).Count(&productCount).Error)
	assert.EqualValues(t, 3, productCount)

	var contentCount int64
	require.NoError(t, db.Model(&models.Content{}).Count(&contentCount).Error)
	assert.EqualValues(t, 2, contentCount)
}

func TestRefreshWorkerContentChangePropagates(t *testing.T) {
	db := setupRefreshDB(t, "worker_propagation")
	owner := createTestOwner(t, db, "owner-1")

	first := newTestWorker(db, owner)
	require.NoError(t, first.AddProducts(testManifestProduct()))
	_, err := first.Execute(context.Background())
	require.NoError(t, err)

	before, err := store.NewProductStore().ListForOwner(context.Background(), db, owner.ID)
	require.NoError(t, err)
	var oldRootUUID string
	for _, p := range before {
		if p.ProductID == "p1" {
			oldRootUUID = p.UUID
		}
	}
	require.NotEmpty(t, oldRootUUID)

	// Rename content c1; everything else is unchanged.
	manifest := testManifestProduct()
	manifest.ProductContent[0].Content.Name = strPtr("Content One Renamed")

	second := newTestWorker(db, owner)
	require.NoError(t, second.AddProducts(manifest))
	result, err := second.Execute(context.Background())
	require.NoError(t, err)

	_, category, ok := result.Content("c1")
	require.True(t, ok)
	assert.Equal(t, CategoryUpdated, category)

	_, category, ok = result.Content("c2")
	require.True(t, ok)
	assert.Equal(t, CategorySkipped, category)

	// The root product's own fields did not change, so it is reported as
	// skipped, but it still points at a fresh version linking the new
	// content.
	rootEntity, category, ok := result.Product("p1")
	require.True(t, ok)
	assert.Equal(t, CategorySkipped, category)
	assert.NotEqual(t, oldRootUUID, rootEntity.UUID)

	// Both versions of c1 exist; shared rows are never mutated in place.
	var c1Count int64
	require.NoError(t, db.Model(&models.Content{}).Where("content_id = ?", "c1").Count(&c1Count).Error)
	assert.EqualValues(t, 2, c1Count)

	// The owner mapping now picks the renamed version.
	after, err := store.NewContentStore().ListForOwner(context.Background(), db, owner.ID)
	require.NoError(t, err)
	for _, c := range after {
		if c.ContentID == "c1" {
			assert.Equal(t, "Content One Renamed", c.Name)
		}
	}
}

func TestRefreshWorkerDirectProductUpdate(t *testing.T) {
	db := setupRefreshDB(t, "worker_update")
	owner := createTestOwner(t, db, "owner-1")

	first := newTestWorker(db, owner)
	require.NoError(t, first.AddProducts(testManifestProduct()))
	_, err := first.Execute(context.Background())
	require.NoError(t, err)

	manifest := testManifestProduct()
	manifest.Attributes = map[string]string{"support_level": "none"}

	second := newTestWorker(db, owner)
	require.NoError(t, second.AddProducts(manifest))
	result, err := second.Execute(context.Background())
	require.NoError(t, err)

	updated, category, ok := result.Product("p1")
	require.True(t, ok)
	assert.Equal(t, CategoryUpdated, category)
	assert.Equal(t, "none", updated.Attributes["support_level"])

	// Untouched children keep their versions.
	_, category, ok = result.Product("pd1")
	require.True(t, ok)
	assert.Equal(t, CategorySkipped, category)
}

func TestRefreshWorkerCrossOwnerSharing(t *testing.T) {
	db := setupRefreshDB(t, "worker_sharing")
	owner1 := createTestOwner(t, db, "owner-1")
	owner2 := createTestOwner(t, db, "owner-2")

	first := newTestWorker(db, owner1)
	require.NoError(t, first.AddProducts(testManifestProduct()))
	_, err := first.Execute(context.Background())
	require.NoError(t, err)

	second := newTestWorker(db, owner2)
	require.NoError(t, second.AddProducts(testManifestProduct()))
	result, err := second.Execute(context.Background())
	require.NoError(t, err)

	// Everything is newly created from the second owner's perspective.
	summary := result.Summary()
	assert.Equal(t, 3, summary.ProductsCreated)
	assert.Equal(t, 2, summary.ContentCreated)

	// But the identical definitions were adopted, not re-persisted.
	var productCount int64
	require.NoError(t, db.Model(&models.Product{}).Count(&productCount).Error)
	assert.EqualValues(t, 3, productCount)

	owner1Products, err := store.NewProductStore().ListForOwner(context.Background(), db, owner1.ID)
	require.NoError(t, err)
	owner2Products, err := store.NewProductStore().ListForOwner(context.Background(), db, owner2.ID)
	require.NoError(t, err)

	uuidsOf := func(products []*models.Product) map[string]string {
		out := make(map[string]string, len(products))
		for _, p := range products {
			out[p.ProductID] = p.UUID
		}
		return out
	}
	assert.Equal(t, uuidsOf(owner1Products), uuidsOf(owner2Products))
}

func TestAddProductsCyclicDefinitions(t *testing.T) {
	worker := newTestWorker(nil, &models.Owner{ID: "o1", Key: "owner"})

	// Two definitions providing each other must map once each instead of
	// recursing forever.
	pa := &models.ProductInfo{ID: "pa"}
	pb := &models.ProductInfo{ID: "pb"}
	pa.ProvidedProducts = []*models.ProductInfo{pb}
	pb.ProvidedProducts = []*models.ProductInfo{pa}

	require.NoError(t, worker.AddProducts(pa))
	assert.Equal(t, []string{"pa", "pb"}, worker.productMapper.ImportedEntityIDs())
}

func TestRefreshWorkerSubscriptions(t *testing.T) {
	db := setupRefreshDB(t, "worker_subscriptions")
	owner := createTestOwner(t, db, "owner-1")

	worker := newTestWorker(db, owner)

	t.Run("RejectsMissingID", func(t *testing.T) {
		err := worker.AddSubscriptions(&models.SubscriptionInfo{Product: &models.ProductInfo{ID: "p1"}})
		assert.ErrorIs(t, err, ErrInvalidEntityID)
	})

	t.Run("RejectsMissingProduct", func(t *testing.T) {
		err := worker.AddSubscriptions(&models.SubscriptionInfo{ID: "s1"})
		assert.Error(t, err)
	})

	t.Run("MapsProductTree", func(t *testing.T) {
		sub := &models.SubscriptionInfo{
			ID:      "s1",
			Product: testManifestProduct(),
		}
		require.NoError(t, worker.AddSubscriptions(sub))

		result, err := worker.Execute(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 3, result.Summary().ProductsCreated)
		assert.Len(t, worker.Subscriptions(), 1)
	})
}

func TestRefreshWorkerExistingNotInBatch(t *testing.T) {
	db := setupRefreshDB(t, "worker_skip_local")
	owner := createTestOwner(t, db, "owner-1")

	first := newTestWorker(db, owner)
	require.NoError(t, first.AddProducts(testManifestProduct()))
	_, err := first.Execute(context.Background())
	require.NoError(t, err)

	// A later batch that only carries new content leaves the products alone.
	second := newTestWorker(db, owner)
	require.NoError(t, second.AddContent(&models.ContentInfo{ID: "c3", Label: strPtr("content-3")}))
	result, err := second.Execute(context.Background())
	require.NoError(t, err)

	summary := result.Summary()
	assert.Equal(t, 1, summary.ContentCreated)
	assert.Equal(t, 3, summary.ProductsSkipped)
	assert.Equal(t, 2, summary.ContentSkipped)
}

// racingContentStore fails Create with a duplicate-key error a fixed number
// of times, standing in for a concurrent refresh winning the version race.
type racingContentStore struct {
	*store.ContentStore
	failures int
	attempts int
}

func (s *racingContentStore) Create(ctx context.Context, db *gorm.DB, content *models.Content) error {
	s.attempts++
	if s.failures > 0 {
		s.failures--
		return gorm.ErrDuplicatedKey
	}
	return s.ContentStore.Create(ctx, db, content)
}

func TestRefreshWorkerRetriesLostVersionRace(t *testing.T) {
	db := setupRefreshDB(t, "refresh_retry")
	owner := createTestOwner(t, db, "owner-1")
	contents := &racingContentStore{ContentStore: store.NewContentStore(), failures: 1}
	worker := NewRefreshWorker(db, owner, store.NewProductStore(), contents, zap.NewNop())

	require.NoError(t, worker.AddContent(&models.ContentInfo{ID: "c1", Label: strPtr("one")}))

	result, err := worker.Execute(context.Background())
	require.NoError(t, err)

	// First attempt rolled back on the duplicate key; the second succeeded.
	assert.Equal(t, 2, contents.attempts)
	assert.Len(t, result.CreatedContent(), 1)

	listed, listErr := contents.ListForOwner(context.Background(), db, owner.ID)
	require.NoError(t, listErr)
	assert.Len(t, listed, 1)
}

func TestRefreshWorkerRetryExhaustion(t *testing.T) {
	db := setupRefreshDB(t, "refresh_retry_exhaustion")
	owner := createTestOwner(t, db, "owner-1")
	contents := &racingContentStore{ContentStore: store.NewContentStore(), failures: maxRefreshAttempts}
	worker := NewRefreshWorker(db, owner, store.NewProductStore(), contents, zap.NewNop())

	require.NoError(t, worker.AddContent(&models.ContentInfo{ID: "c1", Label: strPtr("one")}))

	_, err := worker.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	assert.Equal(t, maxRefreshAttempts, contents.attempts)
}

// brokenContentStore always fails Create with an error outside the
// duplicate-key class.
type brokenContentStore struct {
	*store.ContentStore
	attempts int
}

func (s *brokenContentStore) Create(ctx context.Context, db *gorm.DB, content *models.Content) error {
	s.attempts++
	return fmt.Errorf("storage unavailable")
}

func TestRefreshWorkerDoesNotRetryOtherErrors(t *testing.T) {
	db := setupRefreshDB(t, "refresh_no_retry")
	owner := createTestOwner(t, db, "owner-1")
	contents := &brokenContentStore{ContentStore: store.NewContentStore()}
	worker := NewRefreshWorker(db, owner, store.NewProductStore(), contents, zap.NewNop())

	require.NoError(t, worker.AddContent(&models.ContentInfo{ID: "c1", Label: strPtr("one")}))

	_, err := worker.Execute(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, gorm.ErrDuplicatedKey)
	assert.Equal(t, 1, contents.attempts)
}
