package refresh

import (
	"fmt"

	"catalog-manager/feature/catalog/models"
)

// EntityKind identifies which kind of catalog entity a node represents.
type EntityKind string

const (
	// KindProduct marks product nodes.
	KindProduct EntityKind = "product"
	// KindContent marks content nodes.
	KindContent EntityKind = "content"
)

// NodeState is the classification of one entity for one refresh run,
// assigned bottom-up and terminal once set.
type NodeState int

const (
	// NodeStateUnprocessed is the zero value before the diff pass reaches the node.
	NodeStateUnprocessed NodeState = iota

	// NodeStateCreated marks an entity with no local version; a new version is
	// created or a matching candidate adopted.
	NodeStateCreated

	// NodeStateUpdated marks an entity whose own fields differ from the
	// imported definition.
	NodeStateUpdated

	// NodeStateUnchanged marks an entity whose fields match the imported
	// definition with no changed descendants.
	NodeStateUnchanged

	// NodeStateChildrenUpdated marks an entity whose own fields match but
	// which has at least one created or updated descendant; its child
	// references are re-resolved without touching its own fields.
	NodeStateChildrenUpdated

	// NodeStateSkipped marks an entity that exists locally but was not part
	// of the refresh batch; it is carried through unmodified.
	NodeStateSkipped
)

// String returns a readable name for the state.
func (s NodeState) String() string {
	switch s {
	case NodeStateUnprocessed:
		return "unprocessed"
	case NodeStateCreated:
		return "created"
	case NodeStateUpdated:
		return "updated"
	case NodeStateUnchanged:
		return "unchanged"
	case NodeStateChildrenUpdated:
		return "children_updated"
	case NodeStateSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Changed reports whether the state represents a modification that child
// references of a parent node must pick up.
func (s NodeState) Changed() bool {
	return s == NodeStateCreated || s == NodeStateUpdated || s == NodeStateChildrenUpdated
}

// Node is the kind-agnostic view of a graph vertex, used by the node mapper,
// factory, and processor. Visitors recover the concrete EntityNode type.
type Node interface {
	Kind() EntityKind
	EntityID() string
	Owner() *models.Owner
	Children() []Node
	ChildNode(kind EntityKind, id string) Node
	State() NodeState
	SetState(state NodeState)
}

// EntityNode is a graph vertex binding one logical entity ID to the owner's
// current version (if any), the imported definition (if any), the candidate
// versions usable for deduplication, and the node's resolved state.
type EntityNode[E any, I any] struct {
	owner *models.Owner
	kind  EntityKind
	id    string

	existing   *E
	imported   *I
	candidates []*E
	merged     *E

	children []Node
	state    NodeState
}

// ProductNode is the node type for product entities.
type ProductNode = EntityNode[models.Product, models.ProductInfo]

// ContentNode is the node type for content entities.
type ContentNode = EntityNode[models.Content, models.ContentInfo]

// NewProductNode creates an empty product node for the given owner and
// logical product ID.
func NewProductNode(owner *models.Owner, id string) *ProductNode {
	return &ProductNode{owner: owner, kind: KindProduct, id: id}
}

// NewContentNode creates an empty content node for the given owner and
// logical content ID.
func NewContentNode(owner *models.Owner, id string) *ContentNode {
	return &ContentNode{owner: owner, kind: KindContent, id: id}
}

// Kind returns the entity kind of this node.
func (n *EntityNode[E, I]) Kind() EntityKind {
	return n.kind
}

// EntityID returns the logical entity ID this node represents.
func (n *EntityNode[E, I]) EntityID() string {
	return n.id
}

// Owner returns the owner this refresh run is scoped to.
func (n *EntityNode[E, I]) Owner() *models.Owner {
	return n.owner
}

// Children returns the node's children in attachment order.
func (n *EntityNode[E, I]) Children() []Node {
	return n.children
}

// ChildNode returns the child with the given kind and ID, or nil.
func (n *EntityNode[E, I]) ChildNode(kind EntityKind, id string) Node {
	for _, child := range n.children {
		if child.Kind() == kind && child.EntityID() == id {
			return child
		}
	}
	return nil
}

// AddChild attaches a child node and returns the node for chaining.
func (n *EntityNode[E, I]) AddChild(child Node) *EntityNode[E, I] {
	n.children = append(n.children, child)
	return n
}

// State returns the node's resolved state, or NodeStateUnprocessed.
func (n *EntityNode[E, I]) State() NodeState {
	return n.state
}

// SetState assigns the node's state for this run.
func (n *EntityNode[E, I]) SetState(state NodeState) {
	n.state = state
}

// Changed reports whether this node's state requires parents to re-resolve
// their reference to it.
func (n *EntityNode[E, I]) Changed() bool {
	return n.state.Changed()
}

// Existing returns the owner's current version of the entity, or nil.
func (n *EntityNode[E, I]) Existing() *E {
	return n.existing
}

// SetExisting records the owner's current version of the entity.
func (n *EntityNode[E, I]) SetExisting(entity *E) *EntityNode[E, I] {
	n.existing = entity
	return n
}

// Imported returns the incoming definition for the entity, or nil.
func (n *EntityNode[E, I]) Imported() *I {
	return n.imported
}

// SetImported records the incoming definition for the entity.
func (n *EntityNode[E, I]) SetImported(info *I) *EntityNode[E, I] {
	n.imported = info
	return n
}

// Candidates returns every known persisted version of this entity's ID, from
// any owner, considered as reuse targets during reconciliation.
func (n *EntityNode[E, I]) Candidates() []*E {
	return n.candidates
}

// SetCandidates records the candidate version pool for this entity's ID.
func (n *EntityNode[E, I]) SetCandidates(candidates []*E) *EntityNode[E, I] {
	n.candidates = candidates
	return n
}

// Merged returns the entity this owner ends up pointing at after the apply
// pass: an adopted candidate or a newly persisted version. Nil for unchanged
// and skipped nodes.
func (n *EntityNode[E, I]) Merged() *E {
	return n.merged
}

// SetMerged records the final entity for this node.
func (n *EntityNode[E, I]) SetMerged(entity *E) *EntityNode[E, I] {
	n.merged = entity
	return n
}

type nodeKey struct {
	kind EntityKind
	id   string
}

// NodeMapper guarantees that each (kind, ID) pair is represented by exactly
// one node per refresh run, which is what turns the structure into a graph:
// a leaf reachable from many parents is diffed and persisted exactly once.
type NodeMapper struct {
	nodes map[nodeKey]Node
	order []Node
}

// NewNodeMapper creates an empty node registry.
func NewNodeMapper() *NodeMapper {
	return &NodeMapper{nodes: make(map[nodeKey]Node)}
}

// Get returns the registered node for the given kind and ID, or nil.
func (m *NodeMapper) Get(kind EntityKind, id string) Node {
	return m.nodes[nodeKey{kind: kind, id: id}]
}

// Add registers a node. Registering a second node for the same (kind, ID)
// pair is a programming error.
func (m *NodeMapper) Add(node Node) error {
	key := nodeKey{kind: node.Kind(), id: node.EntityID()}
	if _, exists := m.nodes[key]; exists {
		return fmt.Errorf("node already registered for %s %q", key.kind, key.id)
	}

	m.nodes[key] = node
	m.order = append(m.order, node)
	return nil
}

// Nodes returns every registered node in registration order.
func (m *NodeMapper) Nodes() []Node {
	return m.order
}

// Len returns the number of registered nodes.
func (m *NodeMapper) Len() int {
	return len(m.order)
}
