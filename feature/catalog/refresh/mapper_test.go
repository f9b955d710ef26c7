package refresh

import (
	"testing"

	"catalog-manager/feature/catalog/models"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestEntityMapperImported(t *testing.T) {
	mapper := NewContentMapper(zap.NewNop())

	t.Run("EmptyIDRejected", func(t *testing.T) {
		err := mapper.AddImportedEntity("", &models.ContentInfo{})
		assert.ErrorIs(t, err, ErrInvalidEntityID)
	})

	t.Run("NilInfoIgnored", func(t *testing.T) {
		assert.NoError(t, mapper.AddImportedEntity("c1", nil))
		assert.Nil(t, mapper.ImportedEntity("c1"))
	})

	t.Run("LastWriteWins", func(t *testing.T) {
		first := &models.ContentInfo{ID: "c1", Name: strPtr("first")}
		second := &models.ContentInfo{ID: "c1", Name: strPtr("second")}

		assert.NoError(t, mapper.AddImportedEntity("c1", first))
		assert.NoError(t, mapper.AddImportedEntity("c1", second))
		assert.Equal(t, second, mapper.ImportedEntity("c1"))
		assert.Len(t, mapper.ImportedEntities(), 1)
	})
}

func TestEntityMapperEntityIDs(t *testing.T) {
	mapper := NewProductMapper(zap.NewNop())

	assert.NoError(t, mapper.AddImportedEntity("p2", &models.ProductInfo{ID: "p2"}))
	assert.NoError(t, mapper.AddImportedEntity("p1", &models.ProductInfo{ID: "p1"}))
	mapper.AddExistingEntities([]*models.Product{
		{UUID: "u3", ProductID: "p3"},
		{UUID: "u1", ProductID: "p1"},
		nil,
	})

	assert.Equal(t, []string{"p1", "p2", "p3"}, mapper.EntityIDs())
	assert.Equal(t, []string{"p1", "p2"}, mapper.ImportedEntityIDs())
	assert.Equal(t, "u1", mapper.ExistingEntity("p1").UUID)
	assert.Nil(t, mapper.ExistingEntity("p2"))
}

func TestEntityMapperClearRunData(t *testing.T) {
	mapper := NewProductMapper(zap.NewNop())

	assert.NoError(t, mapper.AddImportedEntity("p1", &models.ProductInfo{ID: "p1"}))
	mapper.AddExistingEntities([]*models.Product{{UUID: "u1", ProductID: "p1"}})
	mapper.SetCandidateEntitiesMap(map[string][]*models.Product{
		"p1": {{UUID: "u1", ProductID: "p1"}},
	})

	mapper.ClearRunData()

	assert.NotNil(t, mapper.ImportedEntity("p1"))
	assert.Nil(t, mapper.ExistingEntity("p1"))
	assert.Empty(t, mapper.CandidateEntities("p1"))

	mapper.Clear()
	assert.Nil(t, mapper.ImportedEntity("p1"))
}

func TestSubscriptionMapper(t *testing.T) {
	mapper := NewSubscriptionMapper(zap.NewNop())

	err := mapper.AddImportedEntity("", &models.SubscriptionInfo{})
	assert.ErrorIs(t, err, ErrInvalidEntityID)

	sub := &models.SubscriptionInfo{ID: "s1", Product: &models.ProductInfo{ID: "p1"}}
	assert.NoError(t, mapper.AddImportedEntity("s1", sub))
	assert.Len(t, mapper.ImportedEntities(), 1)

	mapper.Clear()
	assert.Empty(t, mapper.ImportedEntities())
}
