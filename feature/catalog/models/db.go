package models

import (
	"fmt"
	"hash/fnv"
	"sort"
	"time"
)

// Owner is an isolated catalog namespace. Each owner points at exactly one
// version of a given logical entity ID via the OwnerProduct and OwnerContent
// mapping rows.
type Owner struct {
	ID        string `gorm:"primaryKey;size:36"`
	Key       string `gorm:"uniqueIndex;size:255"`
	Name      string `gorm:"size:255"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Content is one persisted version of a logical content entity. Rows are
// shared across owners: two owners whose upstream data carries identical
// field values point at the same row. The (content_id, entity_version) pair
// is unique, which is what concurrent creators of a new version race on.
type Content struct {
	UUID          string `gorm:"column:uuid;primaryKey;size:36"`
	ContentID     string `gorm:"size:255;uniqueIndex:idx_content_id_version"`
	EntityVersion int64 `gorm:"uniqueIndex:idx_content_id_version"`

	Type               string `gorm:"size:32"`
	Label              string `gorm:"size:255"`
	Name               string `gorm:"size:255"`
	Vendor             string `gorm:"size:255"`
	ContentURL         string `gorm:"size:255"`
	GpgURL             string `gorm:"size:255"`
	Arches             string `gorm:"size:255"`
	ReleaseVersion     string `gorm:"size:255"`
	RequiredTags       string `gorm:"size:255"`
	MetadataExpiration *int64
	RequiredProductIDs []string `gorm:"serializer:json"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName keeps the table name singular-free and explicit.
func (Content) TableName() string {
	return "contents"
}

// Clone returns a deep copy of the content with a cleared surrogate identity,
// suitable for building a new version from an existing one.
func (c *Content) Clone() *Content {
	clone := *c
	clone.UUID = ""
	clone.EntityVersion = 0
	clone.CreatedAt = time.Time{}
	clone.UpdatedAt = time.Time{}

	if c.MetadataExpiration != nil {
		exp := *c.MetadataExpiration
		clone.MetadataExpiration = &exp
	}

	clone.RequiredProductIDs = append([]string(nil), c.RequiredProductIDs...)
	return &clone
}

// ComputeEntityVersion hashes the versioning-relevant fields of the content.
// Surrogate identity and timestamps are excluded. The sum is truncated to
// int64; some SQL drivers reject unsigned 64-bit values with the high bit set.
func (c *Content) ComputeEntityVersion() int64 {
	h := fnv.New64a()

	write := func(parts ...string) {
		for _, p := range parts {
			h.Write([]byte(p))
			h.Write([]byte{0})
		}
	}

	write("content", c.ContentID, c.Type, c.Label, c.Name, c.Vendor,
		c.ContentURL, c.GpgURL, c.Arches, c.ReleaseVersion, c.RequiredTags)

	if c.MetadataExpiration != nil {
		write(fmt.Sprintf("mdexp:%d", *c.MetadataExpiration))
	}

	required := append([]string(nil), c.RequiredProductIDs...)
	sort.Strings(required)
	write(required...)

	return int64(h.Sum64())
}

// ProductContent is the join row binding a product version to a content
// version, with the per-product enabled flag.
type ProductContent struct {
	ProductUUID string `gorm:"primaryKey;size:36"`
	ContentUUID string `gorm:"primaryKey;size:36"`
	Enabled     bool

	Content *Content `gorm:"foreignKey:ContentUUID;references:UUID"`
}

// Product is one persisted version of a logical product entity. Like content,
// rows are shared across owners and identified by (product_id, entity_version).
type Product struct {
	UUID          string `gorm:"column:uuid;primaryKey;size:36"`
	ProductID     string `gorm:"size:255;uniqueIndex:idx_product_id_version"`
	EntityVersion int64 `gorm:"uniqueIndex:idx_product_id_version"`

	Name                string            `gorm:"size:255"`
	Multiplier          int64             `gorm:"default:1"`
	Attributes          map[string]string `gorm:"serializer:json"`
	DependentProductIDs []string          `gorm:"serializer:json"`
	Branding            []BrandingInfo    `gorm:"serializer:json"`

	DerivedProductUUID *string  `gorm:"size:36"`
	DerivedProduct     *Product `gorm:"foreignKey:DerivedProductUUID;references:UUID"`

	ProvidedProducts []*Product       `gorm:"many2many:product_provided_products;joinForeignKey:ProductUUID;joinReferences:ProvidedUUID"`
	ProductContent   []ProductContent `gorm:"foreignKey:ProductUUID;references:UUID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName keeps the table name explicit.
func (Product) TableName() string {
	return "products"
}

// Clone returns a deep copy of the product with a cleared surrogate identity.
// Child references are copied by pointer; callers re-resolve them before
// persisting.
func (p *Product) Clone() *Product {
	clone := *p
	clone.UUID = ""
	clone.EntityVersion = 0
	clone.CreatedAt = time.Time{}
	clone.UpdatedAt = time.Time{}

	if p.Attributes != nil {
		clone.Attributes = make(map[string]string, len(p.Attributes))
		for k, v := range p.Attributes {
			clone.Attributes[k] = v
		}
	}

	clone.DependentProductIDs = append([]string(nil), p.DependentProductIDs...)
	clone.Branding = append([]BrandingInfo(nil), p.Branding...)
	clone.ProvidedProducts = append([]*Product(nil), p.ProvidedProducts...)

	clone.ProductContent = make([]ProductContent, len(p.ProductContent))
	copy(clone.ProductContent, p.ProductContent)
	for i := range clone.ProductContent {
		clone.ProductContent[i].ProductUUID = ""
	}

	if p.DerivedProductUUID != nil {
		uuid := *p.DerivedProductUUID
		clone.DerivedProductUUID = &uuid
	}

	return &clone
}

// ComputeEntityVersion hashes the versioning-relevant fields of the product,
// including the identities of its resolved children. Children must already
// carry their final UUIDs when this is called.
func (p *Product) ComputeEntityVersion() int64 {
	h := fnv.New64a()

	write := func(parts ...string) {
		for _, part := range parts {
			h.Write([]byte(part))
			h.Write([]byte{0})
		}
	}

	write("product", p.ProductID, p.Name, fmt.Sprintf("mult:%d", p.Multiplier))

	attrKeys := make([]string, 0, len(p.Attributes))
	for k := range p.Attributes {
		attrKeys = append(attrKeys, k)
	}
	sort.Strings(attrKeys)
	for _, k := range attrKeys {
		write("attr:" + k + "=" + p.Attributes[k])
	}

	dependent := append([]string(nil), p.DependentProductIDs...)
	sort.Strings(dependent)
	write(dependent...)

	branding := make([]string, 0, len(p.Branding))
	for _, b := range p.Branding {
		branding = append(branding, "brand:"+b.ProductID+":"+b.Type+":"+b.Name)
	}
	sort.Strings(branding)
	write(branding...)

	if p.DerivedProductUUID != nil {
		write("derived:" + *p.DerivedProductUUID)
	}

	provided := make([]string, 0, len(p.ProvidedProducts))
	for _, pp := range p.ProvidedProducts {
		if pp != nil {
			provided = append(provided, "provided:"+pp.UUID)
		}
	}
	sort.Strings(provided)
	write(provided...)

	links := make([]string, 0, len(p.ProductContent))
	for _, pc := range p.ProductContent {
		links = append(links, fmt.Sprintf("content:%s:%t", pc.ContentUUID, pc.Enabled))
	}
	sort.Strings(links)
	write(links...)

	return int64(h.Sum64())
}

// OwnerProduct maps an owner to the product version it currently uses for a
// given logical product ID. One row per (owner, logical ID).
type OwnerProduct struct {
	OwnerID     string `gorm:"primaryKey;size:36"`
	ProductID   string `gorm:"primaryKey;size:255"`
	ProductUUID string `gorm:"size:36;index"`
	UpdatedAt   time.Time
}

// OwnerContent maps an owner to the content version it currently uses for a
// given logical content ID. One row per (owner, logical ID).
type OwnerContent struct {
	OwnerID     string `gorm:"primaryKey;size:36"`
	ContentID   string `gorm:"primaryKey;size:255"`
	ContentUUID string `gorm:"size:36;index"`
	UpdatedAt   time.Time
}
