package refresh

import (
	"context"
	"testing"

	"catalog-manager/feature/catalog/models"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

// stubVisitor records traversal order and assigns a fixed state, standing in
// for the persistence-backed visitors.
type stubVisitor struct {
	kind      EntityKind
	state     NodeState
	processed *[]string
	applied   *[]string
	completed bool
}

func (v *stubVisitor) Kind() EntityKind { return v.kind }

func (v *stubVisitor) ProcessNode(node Node) error {
	*v.processed = append(*v.processed, string(node.Kind())+":"+node.EntityID())
	node.SetState(v.state)
	return nil
}

func (v *stubVisitor) ApplyChanges(ctx context.Context, tx *gorm.DB, node Node) error {
	*v.applied = append(*v.applied, string(node.Kind())+":"+node.EntityID())

	switch typed := node.(type) {
	case *ProductNode:
		typed.SetMerged(&models.Product{UUID: "u-" + node.EntityID(), ProductID: node.EntityID()})
	case *ContentNode:
		typed.SetMerged(&models.Content{UUID: "u-" + node.EntityID(), ContentID: node.EntityID()})
	}
	return nil
}

func (v *stubVisitor) Complete(ctx context.Context, tx *gorm.DB) error {
	v.completed = true
	return nil
}

func buildStubGraph(t *testing.T) *NodeMapper {
	t.Helper()
	owner := &models.Owner{ID: "o1", Key: "owner"}

	content := NewContentNode(owner, "c1")
	provided := NewProductNode(owner, "p2")
	root := NewProductNode(owner, "p1")
	root.AddChild(provided).AddChild(content)
	// Diamond: the provided product links the same content.
	provided.AddChild(content)

	nodes := NewNodeMapper()
	assert.NoError(t, nodes.Add(root))
	assert.NoError(t, nodes.Add(provided))
	assert.NoError(t, nodes.Add(content))
	return nodes
}

func TestNodeProcessorOrdering(t *testing.T) {
	nodes := buildStubGraph(t)

	var processed, applied []string
	products := &stubVisitor{kind: KindProduct, state: NodeStateCreated, processed: &processed, applied: &applied}
	contents := &stubVisitor{kind: KindContent, state: NodeStateCreated, processed: &processed, applied: &applied}

	processor := NewNodeProcessor(nodes).AddVisitor(products).AddVisitor(contents)

	assert.NoError(t, processor.ProcessNodes())
	// Children strictly before parents, every node exactly once.
	assert.Equal(t, []string{"content:c1", "product:p2", "product:p1"}, processed)

	assert.NoError(t, processor.ApplyChanges(context.Background(), nil))
	assert.Equal(t, []string{"content:c1", "product:p2", "product:p1"}, applied)
	assert.True(t, products.completed)
	assert.True(t, contents.completed)
}

func TestNodeProcessorCyclicGraph(t *testing.T) {
	owner := &models.Owner{ID: "o1", Key: "owner"}

	// Malformed data can make two products provide each other. The walk
	// must terminate and still assign both nodes a state.
	pa := NewProductNode(owner, "pa")
	pb := NewProductNode(owner, "pb")
	pa.AddChild(pb)
	pb.AddChild(pa)

	nodes := NewNodeMapper()
	assert.NoError(t, nodes.Add(pa))
	assert.NoError(t, nodes.Add(pb))

	var processed, applied []string
	products := &stubVisitor{kind: KindProduct, state: NodeStateCreated, processed: &processed, applied: &applied}
	processor := NewNodeProcessor(nodes).AddVisitor(products)

	assert.NoError(t, processor.ProcessNodes())
	assert.Len(t, processed, 2)
	assert.Equal(t, NodeStateCreated, pa.State())
	assert.Equal(t, NodeStateCreated, pb.State())

	assert.NoError(t, processor.ApplyChanges(context.Background(), nil))
	assert.Len(t, applied, 2)
}

func TestNodeProcessorMissingVisitor(t *testing.T) {
	nodes := buildStubGraph(t)

	var processed, applied []string
	products := &stubVisitor{kind: KindProduct, state: NodeStateCreated, processed: &processed, applied: &applied}

	processor := NewNodeProcessor(nodes).AddVisitor(products)
	assert.Error(t, processor.ProcessNodes())
}

func TestNodeProcessorApplyBeforeProcess(t *testing.T) {
	nodes := buildStubGraph(t)

	var processed, applied []string
	products := &stubVisitor{kind: KindProduct, state: NodeStateCreated, processed: &processed, applied: &applied}
	contents := &stubVisitor{kind: KindContent, state: NodeStateCreated, processed: &processed, applied: &applied}

	processor := NewNodeProcessor(nodes).AddVisitor(products).AddVisitor(contents)
	assert.Error(t, processor.ApplyChanges(context.Background(), nil))
}

func TestCompileResults(t *testing.T) {
	owner := &models.Owner{ID: "o1", Key: "owner"}
	nodes := NewNodeMapper()

	created := NewProductNode(owner, "p-created")
	created.SetState(NodeStateCreated)
	created.SetMerged(&models.Product{UUID: "u1", ProductID: "p-created"})

	updated := NewContentNode(owner, "c-updated")
	updated.SetState(NodeStateUpdated)
	updated.SetMerged(&models.Content{UUID: "u2", ContentID: "c-updated"})

	childrenUpdated := NewProductNode(owner, "p-children")
	childrenUpdated.SetState(NodeStateChildrenUpdated)
	childrenUpdated.SetMerged(&models.Product{UUID: "u3", ProductID: "p-children"})

	unchanged := NewContentNode(owner, "c-unchanged")
	unchanged.SetState(NodeStateUnchanged)
	unchanged.SetExisting(&models.Content{UUID: "u4", ContentID: "c-unchanged"})

	dangling := NewContentNode(owner, "c-dangling")
	dangling.SetState(NodeStateSkipped)

	for _, n := range []Node{created, updated, childrenUpdated, unchanged, dangling} {
		assert.NoError(t, nodes.Add(n))
	}

	result, err := NewNodeProcessor(nodes).CompileResults()
	assert.NoError(t, err)

	assert.Len(t, result.CreatedProducts(), 1)
	assert.Len(t, result.UpdatedContent(), 1)
	// A child-driven re-version is reported as skipped but still carries the
	// new entity.
	product, category, ok := result.Product("p-children")
	assert.True(t, ok)
	assert.Equal(t, CategorySkipped, category)
	assert.Equal(t, "u3", product.UUID)

	assert.Len(t, result.SkippedContent(), 1)

	// Dangling nodes with no entity are omitted entirely.
	_, _, ok = result.Content("c-dangling")
	assert.False(t, ok)

	summary := result.Summary()
	assert.Equal(t, 1, summary.ProductsCreated)
	assert.Equal(t, 1, summary.ProductsSkipped)
	assert.Equal(t, 1, summary.ContentUpdated)
	assert.Equal(t, 1, summary.ContentSkipped)
}

func TestCompileResultsUnprocessedNode(t *testing.T) {
	owner := &models.Owner{ID: "o1", Key: "owner"}
	nodes := NewNodeMapper()
	assert.NoError(t, nodes.Add(NewProductNode(owner, "p1")))

	_, err := NewNodeProcessor(nodes).CompileResults()
	assert.Error(t, err)
}

func TestRefreshResultCategoryExclusive(t *testing.T) {
	result := NewRefreshResult()

	assert.True(t, result.addProduct(CategoryCreated, "p1", &models.Product{ProductID: "p1"}))
	assert.False(t, result.addProduct(CategoryUpdated, "p1", &models.Product{ProductID: "p1"}))
	assert.False(t, result.addProduct(CategorySkipped, "p1", &models.Product{ProductID: "p1"}))

	_, category, ok := result.Product("p1")
	assert.True(t, ok)
	assert.Equal(t, CategoryCreated, category)
	assert.Len(t, result.ProcessedProducts(), 1)
}
