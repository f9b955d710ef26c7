package refresh

import (
	"context"
	"errors"
	"fmt"

	"catalog-manager/feature/catalog/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxRefreshAttempts bounds the transaction retry loop. Only a uniqueness
// violation on the (id, entity_version) index triggers a retry; it means a
// concurrent refresh persisted the same version first, and the next attempt
// adopts that row as a candidate.
const maxRefreshAttempts = 3

// ProductStorage is the product persistence surface the worker and its
// visitors require. *store.ProductStore satisfies it.
type ProductStorage interface {
	ProductPersistence
	ListForOwner(ctx context.Context, db *gorm.DB, ownerID string) ([]*models.Product, error)
	VersionedByID(ctx context.Context, db *gorm.DB, ids []string) (map[string][]*models.Product, error)
}

// ContentStorage is the content persistence surface the worker and its
// visitors require. *store.ContentStore satisfies it.
type ContentStorage interface {
	ContentPersistence
	ListForOwner(ctx context.Context, db *gorm.DB, ownerID string) ([]*models.Content, error)
	VersionedByID(ctx context.Context, db *gorm.DB, ids []string) (map[string][]*models.Content, error)
}

// RefreshWorker reconciles one owner's catalog against a batch of imported
// definitions. Feed it subscriptions, products, and content, then Execute
// once; the whole run commits in a single transaction.
type RefreshWorker struct {
	db    *gorm.DB
	owner *models.Owner
	log   *zap.Logger

	products ProductStorage
	contents ContentStorage

	productMapper      *ProductMapper
	contentMapper      *ContentMapper
	subscriptionMapper *SubscriptionMapper
}

// NewRefreshWorker creates a worker scoped to one owner.
func NewRefreshWorker(db *gorm.DB, owner *models.Owner, products ProductStorage,
	contents ContentStorage, log *zap.Logger) *RefreshWorker {

	log = log.Named("refresh").With(zap.String("owner", owner.Key))

	return &RefreshWorker{
		db:                 db,
		owner:              owner,
		log:                log,
		products:           products,
		contents:           contents,
		productMapper:      NewProductMapper(log),
		contentMapper:      NewContentMapper(log),
		subscriptionMapper: NewSubscriptionMapper(log),
	}
}

// Owner returns the owner this worker refreshes.
func (w *RefreshWorker) Owner() *models.Owner {
	return w.owner
}

// AddSubscriptions queues subscriptions for the run. The subscription itself
// is only collected, but its product tree is mapped for reconciliation. A
// subscription without an ID or without a product is rejected.
func (w *RefreshWorker) AddSubscriptions(subscriptions ...*models.SubscriptionInfo) error {
	for _, sub := range subscriptions {
		if sub == nil {
			continue
		}
		if sub.ID == "" {
			return fmt.Errorf("subscription: %w", ErrInvalidEntityID)
		}
		if sub.Product == nil {
			return fmt.Errorf("subscription %q does not contain a product", sub.ID)
		}

		if err := w.subscriptionMapper.AddImportedEntity(sub.ID, sub); err != nil {
			return err
		}

		if err := w.AddProducts(sub.Product); err != nil {
			return err
		}
		if sub.DerivedProduct != nil {
			if err := w.AddProducts(sub.DerivedProduct); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddProducts queues product definitions for the run, recursively mapping
// their derived products, provided products, and content. Definitions that
// reference each other cyclically are mapped once each.
func (w *RefreshWorker) AddProducts(products ...*models.ProductInfo) error {
	seen := make(map[*models.ProductInfo]struct{})
	for _, product := range products {
		if err := w.addProduct(product, seen); err != nil {
			return err
		}
	}
	return nil
}

func (w *RefreshWorker) addProduct(product *models.ProductInfo, seen map[*models.ProductInfo]struct{}) error {
	if product == nil {
		return nil
	}
	if _, done := seen[product]; done {
		return nil
	}
	seen[product] = struct{}{}

	if err := w.productMapper.AddImportedEntity(product.ID, product); err != nil {
		return err
	}

	if err := w.addProduct(product.DerivedProduct, seen); err != nil {
		return err
	}

	for _, provided := range product.ProvidedProducts {
		if err := w.addProduct(provided, seen); err != nil {
			return err
		}
	}

	for _, pc := range product.ProductContent {
		if pc.Content == nil {
			return fmt.Errorf("product %q: %w", product.ID, ErrIncompleteProductContent)
		}
		if err := w.AddContent(pc.Content); err != nil {
			return err
		}
	}
	return nil
}

// AddContent queues content definitions for the run.
func (w *RefreshWorker) AddContent(contents ...*models.ContentInfo) error {
	for _, content := range contents {
		if content == nil {
			continue
		}
		if err := w.contentMapper.AddImportedEntity(content.ID, content); err != nil {
			return err
		}
	}
	return nil
}

// Subscriptions returns the subscriptions collected for this run, keyed by
// ID, for the caller's pool synchronization.
func (w *RefreshWorker) Subscriptions() map[string]*models.SubscriptionInfo {
	return w.subscriptionMapper.ImportedEntities()
}

// Clear resets the worker for a fresh batch.
func (w *RefreshWorker) Clear() {
	w.productMapper.Clear()
	w.contentMapper.Clear()
	w.subscriptionMapper.Clear()
}

// Execute runs the refresh in a single transaction and returns the
// per-entity outcome. On a duplicate-key failure the attempt rolls back and
// the run is retried with freshly loaded state, up to maxRefreshAttempts.
func (w *RefreshWorker) Execute(ctx context.Context) (*RefreshResult, error) {
	var lastErr error

	for attempt := 1; attempt <= maxRefreshAttempts; attempt++ {
		result, err := w.executeOnce(ctx)
		if err == nil {
			return result, nil
		}

		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}

		lastErr = err
		w.log.Warn("refresh lost a version-creation race; retrying",
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	return nil, fmt.Errorf("refresh failed after %d attempts: %w", maxRefreshAttempts, lastErr)
}

func (w *RefreshWorker) executeOnce(ctx context.Context) (*RefreshResult, error) {
	// Drop state loaded by a previous attempt; the imported batch is kept.
	w.productMapper.ClearRunData()
	w.contentMapper.ClearRunData()

	var result *RefreshResult

	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existingProducts, err := w.products.ListForOwner(ctx, tx, w.owner.ID)
		if err != nil {
			return err
		}
		w.productMapper.AddExistingEntities(existingProducts)

		existingContent, err := w.contents.ListForOwner(ctx, tx, w.owner.ID)
		if err != nil {
			return err
		}
		w.contentMapper.AddExistingEntities(existingContent)

		productCandidates, err := w.products.VersionedByID(ctx, tx, w.productMapper.ImportedEntityIDs())
		if err != nil {
			return err
		}
		w.productMapper.SetCandidateEntitiesMap(productCandidates)

		contentCandidates, err := w.contents.VersionedByID(ctx, tx, w.contentMapper.ImportedEntityIDs())
		if err != nil {
			return err
		}
		w.contentMapper.SetCandidateEntitiesMap(contentCandidates)

		nodes := NewNodeMapper()
		factory := NewNodeFactory(w.owner, nodes, w.productMapper, w.contentMapper, w.log)

		for _, id := range w.productMapper.EntityIDs() {
			if _, err := factory.BuildProductNode(id); err != nil {
				return err
			}
		}
		for _, id := range w.contentMapper.EntityIDs() {
			if _, err := factory.BuildContentNode(id); err != nil {
				return err
			}
		}

		processor := NewNodeProcessor(nodes).
			AddVisitor(NewContentVisitor(w.owner, w.contents, w.log)).
			AddVisitor(NewProductVisitor(w.owner, nodes, w.products, w.log))

		if err := processor.ProcessNodes(); err != nil {
			return err
		}
		if err := processor.ApplyChanges(ctx, tx); err != nil {
			return err
		}

		result, err = processor.CompileResults()
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
