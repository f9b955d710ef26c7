package catalog_test

import (
	"context"
	"fmt"
	"testing"

	"catalog-manager/core/storage/mocks"
	"catalog-manager/feature/catalog"
	"catalog-manager/feature/catalog/models"
	"catalog-manager/feature/catalog/store"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupService(t *testing.T, dbName string) (*catalog.Service, *gorm.DB, *mocks.Client) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", dbName)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	require.NoError(t, store.AutoMigrate(db))

	mockClient := new(mocks.Client)
	return catalog.NewService(db, mockClient, "catalog", zap.NewNop()), db, mockClient
}

func TestEnsureOwner(t *testing.T) {
	svc, db, _ := setupService(t, "service_owner")
	ctx := context.Background()

	_, err := svc.EnsureOwner(ctx, "")
	assert.Error(t, err)

	owner, err := svc.EnsureOwner(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, owner)

	again, err := svc.EnsureOwner(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, owner.ID, again.ID)

	var count int64
	require.NoError(t, db.Model(&models.Owner{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestServiceRefresh(t *testing.T) {
	svc, _, _ := setupService(t, "service_refresh")
	ctx := context.Background()

	manifest := &models.Manifest{
		Subscriptions: []*models.SubscriptionInfo{
			{
				ID: "s1",
				Product: &models.ProductInfo{
					ID:   "p1",
					Name: strPtr("Product One"),
					ProductContent: []models.ProductContentInfo{
						{Content: &models.ContentInfo{ID: "c1", Label: strPtr("content-1")}},
					},
				},
			},
		},
		Content: []*models.ContentInfo{
			{ID: "c2", Label: strPtr("content-2")},
		},
	}

	result, err := svc.Refresh(ctx, "acme", manifest)
	require.NoError(t, err)

	summary := result.Summary()
	assert.Equal(t, 1, summary.ProductsCreated)
	assert.Equal(t, 2, summary.ContentCreated)

	products, err := svc.ListProducts(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, products, 1)

	content, err := svc.ListContent(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, content, 2)
}

func TestServiceListUnknownOwner(t *testing.T) {
	svc, _, _ := setupService(t, "service_unknown")

	_, err := svc.ListProducts(context.Background(), "ghost")
	assert.ErrorIs(t, err, catalog.ErrOwnerNotFound)

	_, err = svc.ListContent(context.Background(), "ghost")
	assert.ErrorIs(t, err, catalog.ErrOwnerNotFound)
}

func TestArchiveManifest(t *testing.T) {
	svc, _, mockClient := setupService(t, "service_archive")
	payload := []byte(`{"products": []}`)

	mockClient.On("PutObject", mock.Anything, "catalog", mock.AnythingOfType("string"),
		mock.Anything, int64(len(payload)), mock.Anything).
		Return(minio.UploadInfo{}, nil)

	name, err := svc.ArchiveManifest(context.Background(), "acme", payload)
	require.NoError(t, err)
	assert.Contains(t, name, "manifests/acme/")
	assert.Contains(t, name, ".json")
	mockClient.AssertExpectations(t)
}

func TestListManifests(t *testing.T) {
	svc, _, mockClient := setupService(t, "service_manifests")

	ch := make(chan minio.ObjectInfo, 2)
	ch <- minio.ObjectInfo{Key: "manifests/acme/run-1.json"}
	ch <- minio.ObjectInfo{Key: "manifests/acme/run-2.json"}
	close(ch)

	mockClient.On("ListObjects", mock.Anything, "catalog", mock.Anything).
		Return((<-chan minio.ObjectInfo)(ch))

	names, err := svc.ListManifests(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"manifests/acme/run-1.json", "manifests/acme/run-2.json"}, names)
}

func strPtr(s string) *string { return &s }
