package refresh

import (
	"fmt"

	"catalog-manager/feature/catalog/models"

	"go.uber.org/zap"
)

// NodeFactory recursively expands logical entity IDs into wired entity nodes.
// It consults the NodeMapper before building, so subgraphs shared between
// parents are constructed once, and it registers a node before expanding its
// children so a structural cycle resolves to the in-progress node instead of
// recursing forever.
type NodeFactory struct {
	owner *models.Owner
	nodes *NodeMapper
	log   *zap.Logger

	products *ProductMapper
	contents *ContentMapper
}

// NewNodeFactory creates a factory for one owner's refresh run.
func NewNodeFactory(owner *models.Owner, nodes *NodeMapper, products *ProductMapper,
	contents *ContentMapper, log *zap.Logger) *NodeFactory {

	return &NodeFactory{
		owner:    owner,
		nodes:    nodes,
		log:      log,
		products: products,
		contents: contents,
	}
}

// BuildProductNode returns the fully wired node for the given product ID,
// building it and its descendants on first request.
func (f *NodeFactory) BuildProductNode(id string) (*ProductNode, error) {
	if id == "" {
		return nil, fmt.Errorf("product: %w", ErrInvalidEntityID)
	}

	if existing := f.nodes.Get(KindProduct, id); existing != nil {
		return existing.(*ProductNode), nil
	}

	node := NewProductNode(f.owner, id).
		SetImported(f.products.ImportedEntity(id)).
		SetExisting(f.products.ExistingEntity(id)).
		SetCandidates(f.products.CandidateEntities(id))

	// Register before expanding children; this is the cycle guard.
	if err := f.nodes.Add(node); err != nil {
		return nil, err
	}

	imported := node.Imported()
	if imported == nil {
		// Existing-only or dangling node; nothing structural to expand.
		return node, nil
	}

	if derived := imported.DerivedProduct; derived != nil {
		child, err := f.BuildProductNode(derived.ID)
		if err != nil {
			return nil, err
		}
		node.AddChild(child)
	}

	for _, provided := range imported.ProvidedProducts {
		if provided == nil {
			continue
		}

		child, err := f.BuildProductNode(provided.ID)
		if err != nil {
			return nil, err
		}
		node.AddChild(child)
	}

	for _, pc := range imported.ProductContent {
		if pc.Content == nil {
			return nil, fmt.Errorf("product %s: %w", id, ErrIncompleteProductContent)
		}

		child, err := f.BuildContentNode(pc.Content.ID)
		if err != nil {
			return nil, err
		}
		node.AddChild(child)
	}

	return node, nil
}

// BuildContentNode returns the node for the given content ID, building it on
// first request. Content is a leaf kind and has no children.
func (f *NodeFactory) BuildContentNode(id string) (*ContentNode, error) {
	if id == "" {
		return nil, fmt.Errorf("content: %w", ErrInvalidEntityID)
	}

	if existing := f.nodes.Get(KindContent, id); existing != nil {
		return existing.(*ContentNode), nil
	}

	node := NewContentNode(f.owner, id).
		SetImported(f.contents.ImportedEntity(id)).
		SetExisting(f.contents.ExistingEntity(id)).
		SetCandidates(f.contents.CandidateEntities(id))

	if err := f.nodes.Add(node); err != nil {
		return nil, err
	}

	return node, nil
}
