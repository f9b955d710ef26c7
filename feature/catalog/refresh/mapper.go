package refresh

import (
	"fmt"
	"reflect"
	"sort"

	"catalog-manager/feature/catalog/models"

	"go.uber.org/zap"
)

// EntityMapper accumulates the three views of one entity kind for a refresh
// run: the imported definitions by ID, the owner's existing versions by ID,
// and the candidate version pool by ID. One mapper instance serves one
// RefreshWorker and is cleared or discarded after Execute.
type EntityMapper[E any, I any] struct {
	kind EntityKind
	idOf func(*E) string
	log  *zap.Logger

	imported   map[string]*I
	existing   map[string]*E
	candidates map[string][]*E
}

// ProductMapper maps imported, existing, and candidate products.
type ProductMapper = EntityMapper[models.Product, models.ProductInfo]

// ContentMapper maps imported, existing, and candidate content.
type ContentMapper = EntityMapper[models.Content, models.ContentInfo]

// NewProductMapper creates an empty product mapper.
func NewProductMapper(log *zap.Logger) *ProductMapper {
	return newEntityMapper[models.Product, models.ProductInfo](KindProduct,
		func(p *models.Product) string { return p.ProductID }, log)
}

// NewContentMapper creates an empty content mapper.
func NewContentMapper(log *zap.Logger) *ContentMapper {
	return newEntityMapper[models.Content, models.ContentInfo](KindContent,
		func(c *models.Content) string { return c.ContentID }, log)
}

func newEntityMapper[E any, I any](kind EntityKind, idOf func(*E) string, log *zap.Logger) *EntityMapper[E, I] {
	return &EntityMapper[E, I]{
		kind:       kind,
		idOf:       idOf,
		log:        log,
		imported:   make(map[string]*I),
		existing:   make(map[string]*E),
		candidates: make(map[string][]*E),
	}
}

// AddImportedEntity inserts the imported definition under the given ID. If an
// entry with differing field values is already present, the previous entry is
// replaced and a warning logged; within one batch the most recently added
// definition wins.
func (m *EntityMapper[E, I]) AddImportedEntity(id string, info *I) error {
	if id == "" {
		return fmt.Errorf("%s: %w", m.kind, ErrInvalidEntityID)
	}

	if info == nil {
		return nil
	}

	if existing, ok := m.imported[id]; ok && !reflect.DeepEqual(existing, info) {
		m.log.Warn("multiple versions of the same entity received during refresh; discarding previous",
			zap.String("kind", string(m.kind)),
			zap.String("id", id))
	}

	m.imported[id] = info
	return nil
}

// ImportedEntity returns the imported definition for the given ID, or nil.
func (m *EntityMapper[E, I]) ImportedEntity(id string) *I {
	return m.imported[id]
}

// ImportedEntities returns the imported definitions keyed by ID.
func (m *EntityMapper[E, I]) ImportedEntities() map[string]*I {
	out := make(map[string]*I, len(m.imported))
	for id, info := range m.imported {
		out[id] = info
	}
	return out
}

// AddExistingEntities bulk-loads the owner's current entity versions, keyed
// by their logical IDs. Nil entries are ignored.
func (m *EntityMapper[E, I]) AddExistingEntities(entities []*E) {
	for _, entity := range entities {
		if entity == nil {
			continue
		}
		m.existing[m.idOf(entity)] = entity
	}
}

// ExistingEntity returns the owner's current version of the given ID, or nil.
func (m *EntityMapper[E, I]) ExistingEntity(id string) *E {
	return m.existing[id]
}

// SetCandidateEntitiesMap supplies, for IDs in the imported set, every
// persisted version of that ID known to exist for any owner.
func (m *EntityMapper[E, I]) SetCandidateEntitiesMap(candidates map[string][]*E) {
	m.candidates = make(map[string][]*E, len(candidates))
	for id, versions := range candidates {
		m.candidates[id] = versions
	}
}

// CandidateEntities returns the candidate version pool for the given ID.
func (m *EntityMapper[E, I]) CandidateEntities(id string) []*E {
	return m.candidates[id]
}

// EntityIDs returns the sorted union of imported and existing IDs. The sort
// keeps graph construction deterministic across runs.
func (m *EntityMapper[E, I]) EntityIDs() []string {
	seen := make(map[string]struct{}, len(m.imported)+len(m.existing))
	for id := range m.imported {
		seen[id] = struct{}{}
	}
	for id := range m.existing {
		seen[id] = struct{}{}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ImportedEntityIDs returns the sorted imported IDs. Candidate lookups are
// scoped to this set.
func (m *EntityMapper[E, I]) ImportedEntityIDs() []string {
	ids := make([]string, 0, len(m.imported))
	for id := range m.imported {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ClearRunData drops the existing and candidate views, keeping the imported
// batch. Called at the start of each transaction attempt so a retried run
// reloads fresh persisted state.
func (m *EntityMapper[E, I]) ClearRunData() {
	m.existing = make(map[string]*E)
	m.candidates = make(map[string][]*E)
}

// Clear resets the mapper entirely for reuse.
func (m *EntityMapper[E, I]) Clear() {
	m.imported = make(map[string]*I)
	m.ClearRunData()
}

// SubscriptionMapper accumulates the subscriptions of one refresh batch.
// Subscriptions are not persisted by the engine; the collected set is handed
// back to the caller for pool synchronization.
type SubscriptionMapper struct {
	log      *zap.Logger
	imported map[string]*models.SubscriptionInfo
}

// NewSubscriptionMapper creates an empty subscription mapper.
func NewSubscriptionMapper(log *zap.Logger) *SubscriptionMapper {
	return &SubscriptionMapper{
		log:      log,
		imported: make(map[string]*models.SubscriptionInfo),
	}
}

// AddImportedEntity inserts the subscription under its ID with the same
// last-write-wins conflict handling as the entity mappers.
func (m *SubscriptionMapper) AddImportedEntity(id string, sub *models.SubscriptionInfo) error {
	if id == "" {
		return fmt.Errorf("subscription: %w", ErrInvalidEntityID)
	}

	if sub == nil {
		return nil
	}

	if existing, ok := m.imported[id]; ok && !reflect.DeepEqual(existing, sub) {
		m.log.Warn("multiple versions of the same subscription received during refresh; discarding previous",
			zap.String("id", id))
	}

	m.imported[id] = sub
	return nil
}

// ImportedEntities returns the collected subscriptions keyed by ID.
func (m *SubscriptionMapper) ImportedEntities() map[string]*models.SubscriptionInfo {
	out := make(map[string]*models.SubscriptionInfo, len(m.imported))
	for id, sub := range m.imported {
		out[id] = sub
	}
	return out
}

// Clear resets the mapper for reuse.
func (m *SubscriptionMapper) Clear() {
	m.imported = make(map[string]*models.SubscriptionInfo)
}
