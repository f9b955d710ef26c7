package refresh

import (
	"context"
	"fmt"

	"catalog-manager/feature/catalog/models"

	"gorm.io/gorm"
)

// ProductPersistence is the slice of product storage the product visitor
// needs: creating new versions and repointing owner associations.
type ProductPersistence interface {
	Create(ctx context.Context, db *gorm.DB, product *models.Product) error
	MapOwnerVersion(ctx context.Context, db *gorm.DB, ownerID, productID, productUUID string) error
}

// ContentPersistence is the slice of content storage the content visitor
// needs.
type ContentPersistence interface {
	Create(ctx context.Context, db *gorm.DB, content *models.Content) error
	MapOwnerVersion(ctx context.Context, db *gorm.DB, ownerID, contentID, contentUUID string) error
}

// NodeVisitor supplies the per-kind diff and apply logic invoked by the
// NodeProcessor.
type NodeVisitor interface {
	// Kind identifies the node kind this visitor handles.
	Kind() EntityKind

	// ProcessNode assigns the node's state. The processor guarantees every
	// child already has a state when this is called.
	ProcessNode(node Node) error

	// ApplyChanges persists the node's outcome inside the given transaction.
	// The processor guarantees the diff pass over the whole graph finished
	// first, and that children are applied before their parents.
	ApplyChanges(ctx context.Context, tx *gorm.DB, node Node) error

	// Complete flushes any work the visitor deferred until every node was
	// applied, such as owner association updates.
	Complete(ctx context.Context, tx *gorm.DB) error
}

// NodeProcessor walks the node graph: one post-order diff pass assigning
// states, one post-order apply pass persisting changes, then a completion
// step and result compilation. The two passes are kept separate so a parent
// never links to a child whose persisted identity is not final yet.
type NodeProcessor struct {
	nodes    *NodeMapper
	visitors map[EntityKind]NodeVisitor
}

// NewNodeProcessor creates a processor over the given node registry.
func NewNodeProcessor(nodes *NodeMapper) *NodeProcessor {
	return &NodeProcessor{
		nodes:    nodes,
		visitors: make(map[EntityKind]NodeVisitor),
	}
}

// AddVisitor registers the visitor for its kind and returns the processor
// for chaining.
func (p *NodeProcessor) AddVisitor(visitor NodeVisitor) *NodeProcessor {
	p.visitors[visitor.Kind()] = visitor
	return p
}

// ProcessNodes runs the diff pass: every node receives its state, children
// strictly before parents. Nodes reachable from multiple parents are
// processed once; the assigned state is the memo.
func (p *NodeProcessor) ProcessNodes() error {
	visiting := make(map[Node]struct{}, p.nodes.Len())
	for _, node := range p.nodes.Nodes() {
		if err := p.processNode(node, visiting); err != nil {
			return err
		}
	}
	return nil
}

func (p *NodeProcessor) processNode(node Node, visiting map[Node]struct{}) error {
	if node.State() != NodeStateUnprocessed {
		return nil
	}

	// A node already on the walk stack means a structural cycle; the frame
	// walking it assigns its state when it unwinds.
	if _, inProgress := visiting[node]; inProgress {
		return nil
	}
	visiting[node] = struct{}{}
	defer delete(visiting, node)

	for _, child := range node.Children() {
		if err := p.processNode(child, visiting); err != nil {
			return err
		}
	}

	visitor, ok := p.visitors[node.Kind()]
	if !ok {
		return fmt.Errorf("no visitor registered for node kind %q", node.Kind())
	}

	if err := visitor.ProcessNode(node); err != nil {
		return err
	}

	if node.State() == NodeStateUnprocessed {
		return fmt.Errorf("visitor left %s node %q without a state", node.Kind(), node.EntityID())
	}

	return nil
}

// ApplyChanges runs the apply pass over the processed graph, children before
// parents, then invokes each visitor's completion step.
func (p *NodeProcessor) ApplyChanges(ctx context.Context, tx *gorm.DB) error {
	applied := make(map[Node]struct{}, p.nodes.Len())

	for _, node := range p.nodes.Nodes() {
		if err := p.applyNode(ctx, tx, node, applied); err != nil {
			return err
		}
	}

	for _, visitor := range p.visitors {
		if err := visitor.Complete(ctx, tx); err != nil {
			return err
		}
	}

	return nil
}

func (p *NodeProcessor) applyNode(ctx context.Context, tx *gorm.DB, node Node, applied map[Node]struct{}) error {
	if _, done := applied[node]; done {
		return nil
	}
	applied[node] = struct{}{}

	if node.State() == NodeStateUnprocessed {
		return fmt.Errorf("attempting to apply changes to an unprocessed %s node %q",
			node.Kind(), node.EntityID())
	}

	for _, child := range node.Children() {
		if err := p.applyNode(ctx, tx, child, applied); err != nil {
			return err
		}
	}

	visitor, ok := p.visitors[node.Kind()]
	if !ok {
		return fmt.Errorf("no visitor registered for node kind %q", node.Kind())
	}

	return visitor.ApplyChanges(ctx, tx, node)
}

// CompileResults categorizes every processed node into the refresh result.
// Dangling nodes, which carry neither a local nor an imported entity, are
// omitted.
func (p *NodeProcessor) CompileResults() (*RefreshResult, error) {
	result := NewRefreshResult()

	for _, node := range p.nodes.Nodes() {
		switch typed := node.(type) {
		case *ProductNode:
			if err := compileNode(result.addProduct, typed); err != nil {
				return nil, err
			}
		case *ContentNode:
			if err := compileNode(result.addContent, typed); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unexpected node type for kind %q", node.Kind())
		}
	}

	return result, nil
}

func compileNode[E any, I any](add func(category ResultCategory, id string, entity *E) bool,
	node *EntityNode[E, I]) error {

	var category ResultCategory
	entity := node.Merged()

	switch node.State() {
	case NodeStateCreated:
		category = CategoryCreated
	case NodeStateUpdated:
		category = CategoryUpdated
	case NodeStateChildrenUpdated:
		// Re-persisted with relinked children, but its own fields did not
		// change; reported alongside the untouched entities.
		category = CategorySkipped
	case NodeStateUnchanged, NodeStateSkipped:
		category = CategorySkipped
		entity = node.Existing()
	default:
		return fmt.Errorf("node %s %q has no terminal state", node.Kind(), node.EntityID())
	}

	if entity == nil {
		// Dangling reference; legitimate no-op leaf.
		return nil
	}

	if !add(category, node.EntityID(), entity) {
		return fmt.Errorf("%s %q was categorized twice", node.Kind(), node.EntityID())
	}

	return nil
}
