package models

import "time"

// ContentInfo is the upstream view of a content entity. Scalar fields are
// pointers: a nil field means "not provided" and never counts as a change
// against the local version.
type ContentInfo struct {
	// ID is the stable logical identifier shared by all versions of this content.
	ID string `json:"id"`

	Type               *string  `json:"type,omitempty"`
	Label              *string  `json:"label,omitempty"`
	Name               *string  `json:"name,omitempty"`
	Vendor             *string  `json:"vendor,omitempty"`
	ContentURL         *string  `json:"content_url,omitempty"`
	GpgURL             *string  `json:"gpg_url,omitempty"`
	Arches             *string  `json:"arches,omitempty"`
	ReleaseVersion     *string  `json:"release_version,omitempty"`
	RequiredTags       *string  `json:"required_tags,omitempty"`
	MetadataExpiration *int64   `json:"metadata_expiration,omitempty"`
	RequiredProductIDs []string `json:"required_product_ids,omitempty"`
}

// ProductContentInfo links a product to one of its content entities.
// An incoming mapping without content is malformed and rejected up front.
type ProductContentInfo struct {
	Content *ContentInfo `json:"content"`
	Enabled *bool        `json:"enabled,omitempty"`
}

// BrandingInfo describes a product branding entry. Branding is compared and
// stored as a whole value; there is no per-field merge.
type BrandingInfo struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
}

// ProductInfo is the upstream view of a product, including its structural
// references to other products and content.
type ProductInfo struct {
	// ID is the stable logical identifier shared by all versions of this product.
	ID string `json:"id"`

	Name                *string           `json:"name,omitempty"`
	Multiplier          *int64            `json:"multiplier,omitempty"`
	Attributes          map[string]string `json:"attributes,omitempty"`
	DependentProductIDs []string          `json:"dependent_product_ids,omitempty"`
	Branding            []BrandingInfo    `json:"branding,omitempty"`

	DerivedProduct   *ProductInfo         `json:"derived_product,omitempty"`
	ProvidedProducts []*ProductInfo       `json:"provided_products,omitempty"`
	ProductContent   []ProductContentInfo `json:"product_content,omitempty"`
}

// SubscriptionInfo is the upstream view of a subscription. Subscriptions are
// collected and validated during a refresh so their nested products and
// content get reconciled, but the subscription itself is handed back to the
// caller for pool synchronization rather than persisted here.
type SubscriptionInfo struct {
	ID string `json:"id"`

	Quantity  *int64     `json:"quantity,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	Product        *ProductInfo `json:"product,omitempty"`
	DerivedProduct *ProductInfo `json:"derived_product,omitempty"`
}

// Manifest is one refresh batch as loaded from a manifest file or object.
type Manifest struct {
	Subscriptions []*SubscriptionInfo `json:"subscriptions,omitempty"`
	Products      []*ProductInfo      `json:"products,omitempty"`
	Content       []*ContentInfo      `json:"content,omitempty"`
}
