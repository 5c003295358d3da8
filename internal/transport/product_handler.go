package transport

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"pos-register/internal/domain"
	"pos-register/internal/middleware"
	"pos-register/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPerPage = 100
	maxPerPage     = 500
)

// CategoryPayload is the nested category object inside a product listing
type CategoryPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProductPayload is one product as served to terminals
type ProductPayload struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	SKU      string           `json:"sku"`
	Price    float64          `json:"price"`
	Category *CategoryPayload `json:"category"`
	ImageURL string           `json:"image_url,omitempty"`
	Stock    int              `json:"stock"`
}

// PageMeta mirrors the paginator metadata the terminals iterate on
type PageMeta struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	Total       int `json:"total"`
	PerPage     int `json:"per_page"`
}

// ProductPage is the envelope for GET /api/products/infinite
type ProductPage struct {
	Data []ProductPayload `json:"data"`
	Meta PageMeta         `json:"meta"`
}

// ProductRequest is the admin payload for creating or updating a product
type ProductRequest struct {
	Name       string  `json:"name" validate:"required"`
	SKU        string  `json:"sku" validate:"required"`
	Price      float64 `json:"price" validate:"gte=0"`
	CategoryID string  `json:"category_id" validate:"omitempty,uuid"`
	ImageURL   string  `json:"image_url"`
	Stock      int     `json:"stock" validate:"gte=0"`
}

// CategoryRequest is the admin payload for creating a category
type CategoryRequest struct {
	Name string `json:"name" validate:"required"`
}

// ProductHandler serves the product catalog
type ProductHandler struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	logger     *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(products repository.ProductRepository, categories repository.CategoryRepository, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{products: products, categories: categories, logger: logger}
}

// RegisterRoutes registers catalog routes behind the auth middleware.
// Mutations are admin-only.
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/api/products/infinite", h.List)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.logger))
			r.Post("/api/products", h.Create)
			r.Put("/api/products/{id}", h.Update)
			r.Delete("/api/products/{id}", h.Delete)
			r.Get("/api/categories", h.ListCategories)
			r.Post("/api/categories", h.CreateCategory)
		})
	})
}

// List serves one page of the catalog, optionally filtered by search
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := intParam(q.Get("page"), 1)
	if page < 1 {
		page = 1
	}

	perPage := intParam(q.Get("per_page"), defaultPerPage)
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	search := q.Get("search")

	products, total, err := h.products.List(r.Context(), search, page, perPage)
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	lastPage := (total + perPage - 1) / perPage
	if lastPage < 1 {
		lastPage = 1
	}

	data := make([]ProductPayload, 0, len(products))
	for _, p := range products {
		payload := ProductPayload{
			ID:       p.ID.String(),
			Name:     p.Name,
			SKU:      p.SKU,
			Price:    p.Price,
			ImageURL: p.ImageURL,
			Stock:    p.Stock,
		}
		if p.CategoryID != nil && p.CategoryName != nil {
			payload.Category = &CategoryPayload{
				ID:   p.CategoryID.String(),
				Name: *p.CategoryName,
			}
		}
		data = append(data, payload)
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductPage{
		Data: data,
		Meta: PageMeta{
			CurrentPage: page,
			LastPage:    lastPage,
			Total:       total,
			PerPage:     perPage,
		},
	})
}

// Create adds a product to the catalog
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if verrs := middleware.FormatValidationErrors(err); len(verrs) > 0 {
			middleware.RespondWithValidationErrors(w, verrs)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	categoryID, err := h.resolveCategory(r, req.CategoryID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusUnprocessableEntity, "category not found")
		return
	}

	now := time.Now()
	product := &domain.Product{
		ID:         uuid.New(),
		Name:       req.Name,
		SKU:        req.SKU,
		Price:      req.Price,
		CategoryID: categoryID,
		ImageURL:   req.ImageURL,
		Stock:      req.Stock,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.products.Create(r.Context(), product); err != nil {
		h.logger.Error("Failed to create product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	h.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("sku", product.SKU),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// Update replaces a product's fields
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if verrs := middleware.FormatValidationErrors(err); len(verrs) > 0 {
			middleware.RespondWithValidationErrors(w, verrs)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	categoryID, err := h.resolveCategory(r, req.CategoryID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusUnprocessableEntity, "category not found")
		return
	}

	product := &domain.Product{
		ID:         id,
		Name:       req.Name,
		SKU:        req.SKU,
		Price:      req.Price,
		CategoryID: categoryID,
		ImageURL:   req.ImageURL,
		Stock:      req.Stock,
		UpdatedAt:  time.Now(),
	}

	if err := h.products.Update(r.Context(), product); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("Failed to update product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Delete removes a product from the catalog
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	if err := h.products.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("Failed to delete product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListCategories returns all categories
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list categories", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"data": categories})
}

// CreateCategory adds a category
func (h *ProductHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if verrs := middleware.FormatValidationErrors(err); len(verrs) > 0 {
			middleware.RespondWithValidationErrors(w, verrs)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category := &domain.Category{
		ID:        uuid.New(),
		Name:      req.Name,
		CreatedAt: time.Now(),
	}

	if err := h.categories.Create(r.Context(), category); err != nil {
		if errors.Is(err, repository.ErrCategoryAlreadyExists) {
			middleware.RespondWithError(w, http.StatusConflict, "category with this name already exists")
			return
		}
		h.logger.Error("Failed to create category", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to create category")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, category)
}

// resolveCategory parses an optional category id and checks it exists
func (h *ProductHandler) resolveCategory(r *http.Request, raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	if _, err := h.categories.FindByID(r.Context(), id); err != nil {
		return nil, err
	}
	return &id, nil
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
