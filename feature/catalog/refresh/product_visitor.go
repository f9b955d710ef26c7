package refresh

import (
	"context"
	"fmt"

	"catalog-manager/feature/catalog/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProductVisitor resolves product nodes. Products reference other products
// and content, so beyond the field diff it propagates child changes: a
// product whose own fields are untouched still gets a new version when any
// descendant was created or updated, so that its references point at the
// descendants' new versions.
type ProductVisitor struct {
	owner    *models.Owner
	nodes    *NodeMapper
	products ProductPersistence
	log      *zap.Logger

	// logical product ID -> version UUID the owner must point at after the run
	pendingMappings map[string]string
}

// NewProductVisitor creates a product visitor for one refresh run.
func NewProductVisitor(owner *models.Owner, nodes *NodeMapper, products ProductPersistence, log *zap.Logger) *ProductVisitor {
	return &ProductVisitor{
		owner:           owner,
		nodes:           nodes,
		products:        products,
		log:             log.Named("product_visitor"),
		pendingMappings: make(map[string]string),
	}
}

// Kind returns KindProduct.
func (v *ProductVisitor) Kind() EntityKind {
	return KindProduct
}

// ProcessNode assigns the product node's state. A direct field change takes
// precedence over a child-driven one.
func (v *ProductVisitor) ProcessNode(node Node) error {
	product, ok := node.(*ProductNode)
	if !ok {
		return fmt.Errorf("product visitor received a %s node", node.Kind())
	}

	switch {
	case product.Imported() == nil:
		product.SetState(NodeStateSkipped)
	case product.Existing() == nil:
		product.SetState(NodeStateCreated)
	case ProductChangedBy(product.Existing(), product.Imported()):
		product.SetState(NodeStateUpdated)
	case anyChildChanged(product):
		product.SetState(NodeStateChildrenUpdated)
	default:
		product.SetState(NodeStateUnchanged)
	}

	return nil
}

func anyChildChanged(node Node) bool {
	for _, child := range node.Children() {
		if child.State().Changed() {
			return true
		}
	}
	return false
}

// ApplyChanges persists created and updated products. Existing rows are
// never mutated: updates and child-driven reversions build a fresh version
// with re-resolved child references.
func (v *ProductVisitor) ApplyChanges(ctx context.Context, tx *gorm.DB, node Node) error {
	product, ok := node.(*ProductNode)
	if !ok {
		return fmt.Errorf("product visitor received a %s node", node.Kind())
	}

	var entity *models.Product

	switch product.State() {
	case NodeStateCreated:
		entity = applyProductChanges(&models.Product{ProductID: product.EntityID(), Multiplier: 1}, product.Imported())
	case NodeStateUpdated:
		entity = applyProductChanges(product.Existing().Clone(), product.Imported())
	case NodeStateChildrenUpdated:
		entity = product.Existing().Clone()
	default:
		return nil
	}

	if err := v.resolveChildren(product, entity); err != nil {
		return err
	}

	return v.resolveProduct(ctx, tx, product, entity)
}

// resolveChildren repoints the entity's structural references at the
// versions its child nodes resolved to. For created and updated nodes the
// reference set comes from the imported definition; for child-driven
// reversions it is carried over from the existing version.
func (v *ProductVisitor) resolveChildren(node *ProductNode, entity *models.Product) error {
	imported := node.Imported()
	fromImport := node.State() != NodeStateChildrenUpdated && imported != nil

	// Derived product. A nil imported reference is an explicit removal.
	var derivedID string
	if fromImport {
		if imported.DerivedProduct != nil {
			derivedID = imported.DerivedProduct.ID
		}
	} else if entity.DerivedProduct != nil {
		derivedID = entity.DerivedProduct.ProductID
	}

	prevDerived := entity.DerivedProduct
	entity.DerivedProduct = nil
	entity.DerivedProductUUID = nil
	if derivedID != "" {
		resolved := v.resolvedProduct(derivedID, prevDerived)
		if resolved == nil {
			return fmt.Errorf("product %q references unresolvable derived product %q",
				entity.ProductID, derivedID)
		}
		entity.DerivedProduct = resolved
		entity.DerivedProductUUID = &resolved.UUID
	}

	// Provided products. A nil imported collection means "not provided" and
	// keeps the existing reference set.
	type providedRef struct {
		id       string
		fallback *models.Product
	}
	var provided []providedRef
	if fromImport && imported.ProvidedProducts != nil {
		for _, pp := range imported.ProvidedProducts {
			if pp != nil {
				provided = append(provided, providedRef{id: pp.ID})
			}
		}
	} else {
		for _, pp := range entity.ProvidedProducts {
			if pp != nil {
				provided = append(provided, providedRef{id: pp.ProductID, fallback: pp})
			}
		}
	}

	entity.ProvidedProducts = make([]*models.Product, 0, len(provided))
	for _, ref := range provided {
		resolved := v.resolvedProduct(ref.id, ref.fallback)
		if resolved == nil {
			v.log.Warn("dropping unresolvable provided product reference",
				zap.String("product_id", entity.ProductID),
				zap.String("provided_id", ref.id))
			continue
		}
		entity.ProvidedProducts = append(entity.ProvidedProducts, resolved)
	}

	// Content links. Same "not provided" rule as provided products.
	type contentRef struct {
		id       string
		enabled  bool
		fallback *models.Content
	}
	var links []contentRef
	if fromImport && imported.ProductContent != nil {
		for _, pc := range imported.ProductContent {
			if pc.Content == nil {
				return fmt.Errorf("product %q: %w", entity.ProductID, ErrIncompleteProductContent)
			}
			links = append(links, contentRef{
				id:      pc.Content.ID,
				enabled: pc.Enabled == nil || *pc.Enabled,
			})
		}
	} else {
		for _, pc := range entity.ProductContent {
			if pc.Content == nil {
				continue
			}
			links = append(links, contentRef{
				id:       pc.Content.ContentID,
				enabled:  pc.Enabled,
				fallback: pc.Content,
			})
		}
	}

	entity.ProductContent = make([]models.ProductContent, 0, len(links))
	for _, ref := range links {
		resolved := v.resolvedContent(ref.id, ref.fallback)
		if resolved == nil {
			v.log.Warn("dropping unresolvable content reference",
				zap.String("product_id", entity.ProductID),
				zap.String("content_id", ref.id))
			continue
		}
		entity.ProductContent = append(entity.ProductContent, models.ProductContent{
			ContentUUID: resolved.UUID,
			Enabled:     ref.enabled,
			Content:     resolved,
		})
	}

	return nil
}

// resolvedProduct returns the version of the given logical product this run
// settled on: the child node's merged entity when it changed, its existing
// entity when it did not, or the caller's fallback when the product was
// outside the graph entirely.
func (v *ProductVisitor) resolvedProduct(id string, fallback *models.Product) *models.Product {
	child, ok := v.nodes.Get(KindProduct, id).(*ProductNode)
	if !ok {
		return fallback
	}
	if child.Changed() {
		return child.Merged()
	}
	if child.Existing() != nil {
		return child.Existing()
	}
	return fallback
}

func (v *ProductVisitor) resolvedContent(id string, fallback *models.Content) *models.Content {
	child, ok := v.nodes.Get(KindContent, id).(*ContentNode)
	if !ok {
		return fallback
	}
	if child.Changed() {
		return child.Merged()
	}
	if child.Existing() != nil {
		return child.Existing()
	}
	return fallback
}

// resolveProduct fills in the entity version, adopts a matching candidate if
// one exists, and otherwise persists the entity as a new row. Child UUIDs
// are final by the time this runs, so the version hash covers them.
func (v *ProductVisitor) resolveProduct(ctx context.Context, tx *gorm.DB, node *ProductNode, entity *models.Product) error {
	entity.EntityVersion = entity.ComputeEntityVersion()

	for _, candidate := range node.Candidates() {
		if candidate.EntityVersion != entity.EntityVersion {
			continue
		}
		if !productsEquivalent(candidate, entity) {
			v.log.Warn("entity version collision on candidate product",
				zap.String("product_id", entity.ProductID),
				zap.Int64("entity_version", entity.EntityVersion))
			continue
		}

		node.SetMerged(candidate)
		v.pendingMappings[node.EntityID()] = candidate.UUID
		return nil
	}

	entity.UUID = uuid.NewString()
	for i := range entity.ProductContent {
		entity.ProductContent[i].ProductUUID = entity.UUID
	}

	if err := v.products.Create(ctx, tx, entity); err != nil {
		return fmt.Errorf("persisting product %q: %w", entity.ProductID, err)
	}

	node.SetMerged(entity)
	v.pendingMappings[node.EntityID()] = entity.UUID
	return nil
}

// Complete repoints the owner's product mappings at the versions resolved
// during the apply pass.
func (v *ProductVisitor) Complete(ctx context.Context, tx *gorm.DB) error {
	for productID, productUUID := range v.pendingMappings {
		if err := v.products.MapOwnerVersion(ctx, tx, v.owner.ID, productID, productUUID); err != nil {
			return fmt.Errorf("mapping owner %q to product %q: %w", v.owner.Key, productID, err)
		}
	}
	return nil
}

// applyProductChanges copies every provided scalar and attribute field of
// the imported definition onto the target. Structural references are handled
// separately by resolveChildren.
func applyProductChanges(target *models.Product, update *models.ProductInfo) *models.Product {
	if update == nil {
		return target
	}

	if update.Name != nil {
		target.Name = *update.Name
	}
	if update.Multiplier != nil {
		target.Multiplier = *update.Multiplier
	}
	if update.Attributes != nil {
		target.Attributes = make(map[string]string, len(update.Attributes))
		for k, val := range update.Attributes {
			target.Attributes[k] = val
		}
	}
	if update.DependentProductIDs != nil {
		target.DependentProductIDs = append([]string(nil), update.DependentProductIDs...)
	}
	if update.Branding != nil {
		target.Branding = append([]models.BrandingInfo(nil), update.Branding...)
	}

	return target
}
