package catalog

import (
	"bytes"
	"errors"
	"sort"

	"catalog-manager/core/logger"
	"catalog-manager/feature/catalog/refresh"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for the catalog.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the catalog routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/owners/:key")
	group.Post("/refresh", h.HandleRefresh)
	group.Get("/products", h.HandleListProducts)
	group.Get("/content", h.HandleListContent)
	group.Get("/manifests", h.HandleListManifests)
}

// RefreshResponse is the HTTP view of a refresh outcome.
type RefreshResponse struct {
	Owner           string          `json:"owner"`
	Summary         refresh.Summary `json:"summary"`
	CreatedProducts []string        `json:"created_products"`
	UpdatedProducts []string        `json:"updated_products"`
	SkippedProducts []string        `json:"skipped_products"`
	CreatedContent  []string        `json:"created_content"`
	UpdatedContent  []string        `json:"updated_content"`
	SkippedContent  []string        `json:"skipped_content"`
	ManifestObject  string          `json:"manifest_object,omitempty"`
}

// HandleRefresh runs a catalog refresh for the owner. The manifest comes
// either from the request body or, when the "object" query parameter is set,
// from object storage.
func (h *Handler) HandleRefresh(c *fiber.Ctx) error {
	ownerKey := c.Params("key")
	l := logger.WithRayID(h.service.logger, c)

	var (
		result         *refresh.RefreshResult
		manifestObject string
		err            error
	)

	if objectName := c.Query("object"); objectName != "" {
		manifestObject = objectName
		result, err = h.service.RefreshFromObject(c.Context(), ownerKey, objectName)
	} else {
		body := c.Body()
		manifest, parseErr := ParseManifest(bytes.NewReader(body))
		if parseErr != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": parseErr.Error(),
			})
		}

		// Archival is best effort; a refresh must not fail because the
		// audit copy could not be stored.
		if name, archiveErr := h.service.ArchiveManifest(c.Context(), ownerKey, body); archiveErr != nil {
			l.Warn("Failed to archive manifest", zap.Error(archiveErr))
		} else {
			manifestObject = name
		}

		result, err = h.service.Refresh(c.Context(), ownerKey, manifest)
	}

	if err != nil {
		l.Error("Catalog refresh failed", zap.String("owner", ownerKey), zap.Error(err))

		status := fiber.StatusInternalServerError
		if errors.Is(err, refresh.ErrInvalidEntityID) || errors.Is(err, refresh.ErrIncompleteProductContent) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(buildRefreshResponse(ownerKey, result, manifestObject))
}

// HandleListProducts returns the owner's current product catalog.
func (h *Handler) HandleListProducts(c *fiber.Ctx) error {
	return h.handleListing(c, func(c *fiber.Ctx, ownerKey string) (any, error) {
		return h.service.ListProducts(c.Context(), ownerKey)
	})
}

// HandleListContent returns the owner's current content catalog.
func (h *Handler) HandleListContent(c *fiber.Ctx) error {
	return h.handleListing(c, func(c *fiber.Ctx, ownerKey string) (any, error) {
		return h.service.ListContent(c.Context(), ownerKey)
	})
}

// HandleListManifests returns the owner's archived manifest object names.
func (h *Handler) HandleListManifests(c *fiber.Ctx) error {
	return h.handleListing(c, func(c *fiber.Ctx, ownerKey string) (any, error) {
		return h.service.ListManifests(c.Context(), ownerKey)
	})
}

func (h *Handler) handleListing(c *fiber.Ctx, list func(c *fiber.Ctx, ownerKey string) (any, error)) error {
	ownerKey := c.Params("key")
	l := logger.WithRayID(h.service.logger, c)

	payload, err := list(c, ownerKey)
	if err != nil {
		if errors.Is(err, ErrOwnerNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		l.Error("Catalog listing failed", zap.String("owner", ownerKey), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(payload)
}

func buildRefreshResponse(ownerKey string, result *refresh.RefreshResult, manifestObject string) RefreshResponse {
	return RefreshResponse{
		Owner:           ownerKey,
		Summary:         result.Summary(),
		CreatedProducts: sortedKeys(result.CreatedProducts()),
		UpdatedProducts: sortedKeys(result.UpdatedProducts()),
		SkippedProducts: sortedKeys(result.SkippedProducts()),
		CreatedContent:  sortedKeys(result.CreatedContent()),
		UpdatedContent:  sortedKeys(result.UpdatedContent()),
		SkippedContent:  sortedKeys(result.SkippedContent()),
		ManifestObject:  manifestObject,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
