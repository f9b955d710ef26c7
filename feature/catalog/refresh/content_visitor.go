package refresh

import (
	"context"
	"fmt"

	"catalog-manager/feature/catalog/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ContentVisitor resolves content nodes. Content is a leaf kind, so its
// state depends only on the field diff between the local version and the
// imported definition.
type ContentVisitor struct {
	owner    *models.Owner
	contents ContentPersistence
	log      *zap.Logger

	// logical content ID -> version UUID the owner must point at after the run
	pendingMappings map[string]string
}

// NewContentVisitor creates a content visitor for one refresh run.
func NewContentVisitor(owner *models.Owner, contents ContentPersistence, log *zap.Logger) *ContentVisitor {
	return &ContentVisitor{
		owner:           owner,
		contents:        contents,
		log:             log.Named("content_visitor"),
		pendingMappings: make(map[string]string),
	}
}

// Kind returns KindContent.
func (v *ContentVisitor) Kind() EntityKind {
	return KindContent
}

// ProcessNode assigns the content node's state from the local/imported
// pairing.
func (v *ContentVisitor) ProcessNode(node Node) error {
	content, ok := node.(*ContentNode)
	if !ok {
		return fmt.Errorf("content visitor received a %s node", node.Kind())
	}

	switch {
	case content.Imported() == nil:
		// Not part of the batch; carried through untouched whether or not a
		// local version exists.
		content.SetState(NodeStateSkipped)
	case content.Existing() == nil:
		content.SetState(NodeStateCreated)
	case ContentChangedBy(content.Existing(), content.Imported()):
		content.SetState(NodeStateUpdated)
	default:
		content.SetState(NodeStateUnchanged)
	}

	return nil
}

// ApplyChanges persists created and updated content. Existing rows are never
// mutated: an update builds a fresh version and the owner mapping is
// repointed during Complete.
func (v *ContentVisitor) ApplyChanges(ctx context.Context, tx *gorm.DB, node Node) error {
	content, ok := node.(*ContentNode)
	if !ok {
		return fmt.Errorf("content visitor received a %s node", node.Kind())
	}

	switch content.State() {
	case NodeStateCreated:
		entity := applyContentChanges(&models.Content{ContentID: content.EntityID()}, content.Imported())
		return v.resolveContent(ctx, tx, content, entity)

	case NodeStateUpdated:
		entity := applyContentChanges(content.Existing().Clone(), content.Imported())
		return v.resolveContent(ctx, tx, content, entity)

	default:
		return nil
	}
}

// resolveContent fills in the entity version, adopts a matching candidate if
// one exists, and otherwise persists the entity as a new row.
func (v *ContentVisitor) resolveContent(ctx context.Context, tx *gorm.DB, node *ContentNode, entity *models.Content) error {
	entity.EntityVersion = entity.ComputeEntityVersion()

	for _, candidate := range node.Candidates() {
		if candidate.EntityVersion != entity.EntityVersion {
			continue
		}
		if !contentsEquivalent(candidate, entity) {
			v.log.Warn("entity version collision on candidate content",
				zap.String("content_id", entity.ContentID),
				zap.Int64("entity_version", entity.EntityVersion))
			continue
		}

		node.SetMerged(candidate)
		v.pendingMappings[node.EntityID()] = candidate.UUID
		return nil
	}

	entity.UUID = uuid.NewString()
	if err := v.contents.Create(ctx, tx, entity); err != nil {
		return fmt.Errorf("persisting content %q: %w", entity.ContentID, err)
	}

	node.SetMerged(entity)
	v.pendingMappings[node.EntityID()] = entity.UUID
	return nil
}

// Complete repoints the owner's content mappings at the versions resolved
// during the apply pass.
func (v *ContentVisitor) Complete(ctx context.Context, tx *gorm.DB) error {
	for contentID, contentUUID := range v.pendingMappings {
		if err := v.contents.MapOwnerVersion(ctx, tx, v.owner.ID, contentID, contentUUID); err != nil {
			return fmt.Errorf("mapping owner %q to content %q: %w", v.owner.Key, contentID, err)
		}
	}
	return nil
}

// applyContentChanges copies every provided field of the imported definition
// onto the target. Nil fields leave the target untouched.
func applyContentChanges(target *models.Content, update *models.ContentInfo) *models.Content {
	if update == nil {
		return target
	}

	if update.Type != nil {
		target.Type = *update.Type
	}
	if update.Label != nil {
		target.Label = *update.Label
	}
	if update.Name != nil {
		target.Name = *update.Name
	}
	if update.Vendor != nil {
		target.Vendor = *update.Vendor
	}
	if update.ContentURL != nil {
		target.ContentURL = *update.ContentURL
	}
	if update.GpgURL != nil {
		target.GpgURL = *update.GpgURL
	}
	if update.Arches != nil {
		target.Arches = *update.Arches
	}
	if update.ReleaseVersion != nil {
		target.ReleaseVersion = *update.ReleaseVersion
	}
	if update.RequiredTags != nil {
		target.RequiredTags = *update.RequiredTags
	}
	if update.MetadataExpiration != nil {
		exp := *update.MetadataExpiration
		target.MetadataExpiration = &exp
	}
	if update.RequiredProductIDs != nil {
		target.RequiredProductIDs = append([]string(nil), update.RequiredProductIDs...)
	}

	return target
}
