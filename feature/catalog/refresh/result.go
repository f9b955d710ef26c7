package refresh

import "catalog-manager/feature/catalog/models"

// ResultCategory labels the outcome bucket an entity landed in.
type ResultCategory string

const (
	CategoryCreated ResultCategory = "created"
	CategoryUpdated ResultCategory = "updated"
	CategorySkipped ResultCategory = "skipped"
)

// RefreshResult collects the per-entity outcome of a refresh run. Every
// entity ID appears in exactly one category per kind.
type RefreshResult struct {
	createdProducts map[string]*models.Product
	updatedProducts map[string]*models.Product
	skippedProducts map[string]*models.Product

	createdContent map[string]*models.Content
	updatedContent map[string]*models.Content
	skippedContent map[string]*models.Content
}

// NewRefreshResult creates an empty result.
func NewRefreshResult() *RefreshResult {
	return &RefreshResult{
		createdProducts: make(map[string]*models.Product),
		updatedProducts: make(map[string]*models.Product),
		skippedProducts: make(map[string]*models.Product),
		createdContent:  make(map[string]*models.Content),
		updatedContent:  make(map[string]*models.Content),
		skippedContent:  make(map[string]*models.Content),
	}
}

// addProduct files the product under the given category. It returns false if
// the ID is already present in any product category.
func (r *RefreshResult) addProduct(category ResultCategory, id string, product *models.Product) bool {
	if _, ok := r.createdProducts[id]; ok {
		return false
	}
	if _, ok := r.updatedProducts[id]; ok {
		return false
	}
	if _, ok := r.skippedProducts[id]; ok {
		return false
	}

	switch category {
	case CategoryCreated:
		r.createdProducts[id] = product
	case CategoryUpdated:
		r.updatedProducts[id] = product
	case CategorySkipped:
		r.skippedProducts[id] = product
	default:
		return false
	}
	return true
}

// addContent files the content under the given category. It returns false if
// the ID is already present in any content category.
func (r *RefreshResult) addContent(category ResultCategory, id string, content *models.Content) bool {
	if _, ok := r.createdContent[id]; ok {
		return false
	}
	if _, ok := r.updatedContent[id]; ok {
		return false
	}
	if _, ok := r.skippedContent[id]; ok {
		return false
	}

	switch category {
	case CategoryCreated:
		r.createdContent[id] = content
	case CategoryUpdated:
		r.updatedContent[id] = content
	case CategorySkipped:
		r.skippedContent[id] = content
	default:
		return false
	}
	return true
}

// CreatedProducts returns the products created during the run, keyed by
// product ID.
func (r *RefreshResult) CreatedProducts() map[string]*models.Product {
	return r.createdProducts
}

// UpdatedProducts returns the products whose definitions changed during the
// run.
func (r *RefreshResult) UpdatedProducts() map[string]*models.Product {
	return r.updatedProducts
}

// SkippedProducts returns the products the run left as they were.
func (r *RefreshResult) SkippedProducts() map[string]*models.Product {
	return r.skippedProducts
}

// CreatedContent returns the content created during the run, keyed by
// content ID.
func (r *RefreshResult) CreatedContent() map[string]*models.Content {
	return r.createdContent
}

// UpdatedContent returns the content whose definitions changed during the
// run.
func (r *RefreshResult) UpdatedContent() map[string]*models.Content {
	return r.updatedContent
}

// SkippedContent returns the content the run left as it was.
func (r *RefreshResult) SkippedContent() map[string]*models.Content {
	return r.skippedContent
}

// Product looks up a processed product by ID across all categories.
func (r *RefreshResult) Product(id string) (*models.Product, ResultCategory, bool) {
	if product, ok := r.createdProducts[id]; ok {
		return product, CategoryCreated, true
	}
	if product, ok := r.updatedProducts[id]; ok {
		return product, CategoryUpdated, true
	}
	if product, ok := r.skippedProducts[id]; ok {
		return product, CategorySkipped, true
	}
	return nil, "", false
}

// Content looks up processed content by ID across all categories.
func (r *RefreshResult) Content(id string) (*models.Content, ResultCategory, bool) {
	if content, ok := r.createdContent[id]; ok {
		return content, CategoryCreated, true
	}
	if content, ok := r.updatedContent[id]; ok {
		return content, CategoryUpdated, true
	}
	if content, ok := r.skippedContent[id]; ok {
		return content, CategorySkipped, true
	}
	return nil, "", false
}

// ProcessedProducts returns every product the run touched, regardless of
// category.
func (r *RefreshResult) ProcessedProducts() map[string]*models.Product {
	merged := make(map[string]*models.Product,
		len(r.createdProducts)+len(r.updatedProducts)+len(r.skippedProducts))
	for id, product := range r.createdProducts {
		merged[id] = product
	}
	for id, product := range r.updatedProducts {
		merged[id] = product
	}
	for id, product := range r.skippedProducts {
		merged[id] = product
	}
	return merged
}

// ProcessedContent returns every piece of content the run touched,
// regardless of category.
func (r *RefreshResult) ProcessedContent() map[string]*models.Content {
	merged := make(map[string]*models.Content,
		len(r.createdContent)+len(r.updatedContent)+len(r.skippedContent))
	for id, content := range r.createdContent {
		merged[id] = content
	}
	for id, content := range r.updatedContent {
		merged[id] = content
	}
	for id, content := range r.skippedContent {
		merged[id] = content
	}
	return merged
}

// Summary describes a refresh run in counts.
type Summary struct {
	ProductsCreated int `json:"products_created"`
	ProductsUpdated int `json:"products_updated"`
	ProductsSkipped int `json:"products_skipped"`
	ContentCreated  int `json:"content_created"`
	ContentUpdated  int `json:"content_updated"`
	ContentSkipped  int `json:"content_skipped"`
}

// Summary condenses the result into category counts.
func (r *RefreshResult) Summary() Summary {
	return Summary{
		ProductsCreated: len(r.createdProducts),
		ProductsUpdated: len(r.updatedProducts),
		ProductsSkipped: len(r.skippedProducts),
		ContentCreated:  len(r.createdContent),
		ContentUpdated:  len(r.updatedContent),
		ContentSkipped:  len(r.skippedContent),
	}
}
