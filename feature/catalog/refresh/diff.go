package refresh

import (
	"catalog-manager/feature/catalog/models"
)

// Field comparison is deliberately an enumerated table per entity kind rather
// than reflection, so the versioning semantics stay auditable field by field.
// A nil incoming scalar means "not provided" and never counts as a change.
// Empty strings stand in for absent values on the persisted side, so an
// incoming empty value matching a local empty field is not a change.

type contentFieldCheck struct {
	field   string
	changed func(entity *models.Content, update *models.ContentInfo) bool
}

var contentFieldChecks = []contentFieldCheck{
	{"type", func(e *models.Content, u *models.ContentInfo) bool {
		return stringChanged(e.Type, u.Type)
	}},
	{"label", func(e *models.Content, u *models.ContentInfo) bool {
		return stringChanged(e.Label, u.Label)
	}},
	{"name", func(e *models.Content, u *models.ContentInfo) bool {
		return stringChanged(e.Name, u.Name)
	}},
	{"vendor", func(e *models.Content, u *models.ContentInfo) bool {
		return stringChanged(e.Vendor, u.Vendor)
	}},
	{"metadata_expiration", func(e *models.Content, u *models.ContentInfo) bool {
		if u.MetadataExpiration == nil {
			return false
		}
		return e.MetadataExpiration == nil || *e.MetadataExpiration != *u.MetadataExpiration
	}},
	{"arches", func(e *models.Content, u *models.ContentInfo) bool {
		return stringChanged(e.Arches, u.Arches)
	}},
	{"content_url", func(e *models.Content, u *models.ContentInfo) bool {
		return stringChanged(e.ContentURL, u.ContentURL)
	}},
	{"gpg_url", func(e *models.Content, u *models.ContentInfo) bool {
		return stringChanged(e.GpgURL, u.GpgURL)
	}},
	{"release_version", func(e *models.Content, u *models.ContentInfo) bool {
		return stringChanged(e.ReleaseVersion, u.ReleaseVersion)
	}},
	{"required_tags", func(e *models.Content, u *models.ContentInfo) bool {
		return stringChanged(e.RequiredTags, u.RequiredTags)
	}},
	{"required_product_ids", func(e *models.Content, u *models.ContentInfo) bool {
		if u.RequiredProductIDs == nil {
			return false
		}
		return !stringSetsEqual(e.RequiredProductIDs, u.RequiredProductIDs)
	}},
}

// ContentChangedBy reports whether applying the imported definition to the
// existing content would change any versioning-relevant field.
func ContentChangedBy(entity *models.Content, update *models.ContentInfo) bool {
	for _, check := range contentFieldChecks {
		if check.changed(entity, update) {
			return true
		}
	}
	return false
}

type productFieldCheck struct {
	field   string
	changed func(entity *models.Product, update *models.ProductInfo) bool
}

var productFieldChecks = []productFieldCheck{
	{"name", func(e *models.Product, u *models.ProductInfo) bool {
		return u.Name != nil && *u.Name != e.Name
	}},
	{"multiplier", func(e *models.Product, u *models.ProductInfo) bool {
		return u.Multiplier != nil && *u.Multiplier != e.Multiplier
	}},
	{"attributes", func(e *models.Product, u *models.ProductInfo) bool {
		return u.Attributes != nil && !stringMapsEqual(e.Attributes, u.Attributes)
	}},
	{"dependent_product_ids", func(e *models.Product, u *models.ProductInfo) bool {
		return u.DependentProductIDs != nil && !stringSetsEqual(e.DependentProductIDs, u.DependentProductIDs)
	}},
	{"product_content", func(e *models.Product, u *models.ProductInfo) bool {
		if u.ProductContent == nil {
			return false
		}

		existing := make(map[string]bool, len(e.ProductContent))
		for _, pc := range e.ProductContent {
			if pc.Content != nil {
				existing[pc.Content.ContentID] = pc.Enabled
			}
		}

		updated := make(map[string]bool, len(u.ProductContent))
		for _, pc := range u.ProductContent {
			if pc.Content != nil {
				updated[pc.Content.ID] = pc.Enabled == nil || *pc.Enabled
			}
		}

		return !boolMapsEqual(existing, updated)
	}},
	{"derived_product", func(e *models.Product, u *models.ProductInfo) bool {
		if u.DerivedProduct != nil {
			return e.DerivedProduct == nil || e.DerivedProduct.ProductID != u.DerivedProduct.ID
		}
		return e.DerivedProduct != nil
	}},
	{"provided_products", func(e *models.Product, u *models.ProductInfo) bool {
		if u.ProvidedProducts == nil {
			return false
		}

		existing := make([]string, 0, len(e.ProvidedProducts))
		for _, pp := range e.ProvidedProducts {
			if pp != nil {
				existing = append(existing, pp.ProductID)
			}
		}

		updated := make([]string, 0, len(u.ProvidedProducts))
		for _, pp := range u.ProvidedProducts {
			if pp != nil {
				updated = append(updated, pp.ID)
			}
		}

		return !stringSetsEqual(existing, updated)
	}},
	{"branding", func(e *models.Product, u *models.ProductInfo) bool {
		if u.Branding == nil {
			return false
		}

		return !stringSetsEqual(brandingKeys(e.Branding), brandingKeys(u.Branding))
	}},
}

// ProductChangedBy reports whether applying the imported definition to the
// existing product would change any versioning-relevant field, including its
// structural references.
func ProductChangedBy(entity *models.Product, update *models.ProductInfo) bool {
	for _, check := range productFieldChecks {
		if check.changed(entity, update) {
			return true
		}
	}
	return false
}

// contentsEquivalent reports whether two persisted content rows carry the
// same versioning-relevant field values. Used as a hash-collision guard when
// matching candidates.
func contentsEquivalent(a, b *models.Content) bool {
	if a.ContentID != b.ContentID ||
		a.Type != b.Type ||
		a.Label != b.Label ||
		a.Name != b.Name ||
		a.Vendor != b.Vendor ||
		a.ContentURL != b.ContentURL ||
		a.GpgURL != b.GpgURL ||
		a.Arches != b.Arches ||
		a.ReleaseVersion != b.ReleaseVersion ||
		a.RequiredTags != b.RequiredTags {
		return false
	}

	if (a.MetadataExpiration == nil) != (b.MetadataExpiration == nil) {
		return false
	}
	if a.MetadataExpiration != nil && *a.MetadataExpiration != *b.MetadataExpiration {
		return false
	}

	return stringSetsEqual(a.RequiredProductIDs, b.RequiredProductIDs)
}

// productsEquivalent reports whether two persisted product rows carry the
// same versioning-relevant field values and reference the same child
// versions.
func productsEquivalent(a, b *models.Product) bool {
	if a.ProductID != b.ProductID ||
		a.Name != b.Name ||
		a.Multiplier != b.Multiplier {
		return false
	}

	if !stringMapsEqual(a.Attributes, b.Attributes) {
		return false
	}

	if !stringSetsEqual(a.DependentProductIDs, b.DependentProductIDs) {
		return false
	}

	if !stringSetsEqual(brandingKeys(a.Branding), brandingKeys(b.Branding)) {
		return false
	}

	aDerived := ""
	if a.DerivedProductUUID != nil {
		aDerived = *a.DerivedProductUUID
	}
	bDerived := ""
	if b.DerivedProductUUID != nil {
		bDerived = *b.DerivedProductUUID
	}
	if aDerived != bDerived {
		return false
	}

	if !stringSetsEqual(providedUUIDs(a.ProvidedProducts), providedUUIDs(b.ProvidedProducts)) {
		return false
	}

	aLinks := make(map[string]bool, len(a.ProductContent))
	for _, pc := range a.ProductContent {
		aLinks[pc.ContentUUID] = pc.Enabled
	}
	bLinks := make(map[string]bool, len(b.ProductContent))
	for _, pc := range b.ProductContent {
		bLinks[pc.ContentUUID] = pc.Enabled
	}

	return boolMapsEqual(aLinks, bLinks)
}

// stringChanged reports whether the incoming value would change the existing
// one. A nil incoming value never does.
func stringChanged(existing string, incoming *string) bool {
	return incoming != nil && *incoming != existing
}

func stringSetsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	seen := make(map[string]int, len(a))
	for _, v := range a {
		seen[v]++
	}
	for _, v := range b {
		if seen[v] == 0 {
			return false
		}
		seen[v]--
	}
	return true
}

func stringMapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if other, ok := b[k]; !ok || other != v {
			return false
		}
	}
	return true
}

func boolMapsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if other, ok := b[k]; !ok || other != v {
			return false
		}
	}
	return true
}

func providedUUIDs(provided []*models.Product) []string {
	uuids := make([]string, 0, len(provided))
	for _, p := range provided {
		if p != nil {
			uuids = append(uuids, p.UUID)
		}
	}
	return uuids
}

func brandingKeys(branding []models.BrandingInfo) []string {
	keys := make([]string, 0, len(branding))
	for _, b := range branding {
		keys = append(keys, b.ProductID+":"+b.Type+":"+b.Name)
	}
	return keys
}
