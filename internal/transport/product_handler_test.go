package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pos-register/internal/domain"
	"pos-register/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type mockProductRepository struct {
	catalog    []*repository.CatalogProduct
	lastSearch string
	lastPage   int
	lastSize   int
	missing    bool
	created    []*domain.Product
	updated    []*domain.Product
	deleted    []uuid.UUID
}

type mockCategoryRepository struct {
	categories []*domain.Category
}

func (m *mockCategoryRepository) Create(ctx context.Context, c *domain.Category) error {
	for _, existing := range m.categories {
		if existing.Name == c.Name {
			return repository.ErrCategoryAlreadyExists
		}
	}
	m.categories = append(m.categories, c)
	return nil
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	return m.categories, nil
}

func (m *mockCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	for _, c := range m.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, repository.ErrCategoryNotFound
}

func (m *mockProductRepository) Create(ctx context.Context, p *domain.Product) error {
	m.created = append(m.created, p)
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, p *domain.Product) error {
	if m.missing {
		return repository.ErrProductNotFound
	}
	m.updated = append(m.updated, p)
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if m.missing {
		return repository.ErrProductNotFound
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return nil, repository.ErrProductNotFound
}

func (m *mockProductRepository) List(ctx context.Context, search string, page, perPage int) ([]*repository.CatalogProduct, int, error) {
	m.lastSearch = search
	m.lastPage = page
	m.lastSize = perPage

	start := (page - 1) * perPage
	if start >= len(m.catalog) {
		return nil, len(m.catalog), nil
	}
	end := start + perPage
	if end > len(m.catalog) {
		end = len(m.catalog)
	}
	return m.catalog[start:end], len(m.catalog), nil
}

func catalogOf(n int) []*repository.CatalogProduct {
	tools := "Tools"
	catalog := make([]*repository.CatalogProduct, n)
	for i := range catalog {
		catalog[i] = &repository.CatalogProduct{
			Product: domain.Product{
				ID:    uuid.New(),
				Name:  "Widget",
				SKU:   "W-1",
				Price: 9.99,
				Stock: 3,
			},
			CategoryName: &tools,
		}
		catalog[i].CategoryID = ptrUUID(uuid.New())
	}
	return catalog
}

func ptrUUID(id uuid.UUID) *uuid.UUID { return &id }

func listProducts(t *testing.T, repo *mockProductRepository, query string) ProductPage {
	t.Helper()
	handler := NewProductHandler(repo, &mockCategoryRepository{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/products/infinite"+query, nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var page ProductPage
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("Malformed page: %v", err)
	}
	return page
}

func TestListPaginationMeta(t *testing.T) {
	repo := &mockProductRepository{catalog: catalogOf(7)}

	page := listProducts(t, repo, "?per_page=3&page=2")

	if len(page.Data) != 3 {
		t.Errorf("Expected 3 products on page 2, got %d", len(page.Data))
	}
	meta := page.Meta
	if meta.CurrentPage != 2 || meta.PerPage != 3 || meta.Total != 7 {
		t.Errorf("Meta wrong: %+v", meta)
	}
	if meta.LastPage != 3 {
		t.Errorf("Expected last_page 3 for 7 items by 3, got %d", meta.LastPage)
	}
}

func TestListDefaultsAndBounds(t *testing.T) {
	repo := &mockProductRepository{catalog: catalogOf(1)}

	listProducts(t, repo, "")
	if repo.lastPage != 1 || repo.lastSize != 100 {
		t.Errorf("Defaults wrong: page %d size %d", repo.lastPage, repo.lastSize)
	}

	listProducts(t, repo, "?per_page=9999&page=-4")
	if repo.lastPage != 1 || repo.lastSize != 500 {
		t.Errorf("Bounds not applied: page %d size %d", repo.lastPage, repo.lastSize)
	}
}

func TestListSearchPassthrough(t *testing.T) {
	repo := &mockProductRepository{catalog: catalogOf(1)}

	listProducts(t, repo, "?search=widget")
	if repo.lastSearch != "widget" {
		t.Errorf("Search not forwarded: %q", repo.lastSearch)
	}
}

func TestListCategoryShape(t *testing.T) {
	tools := "Tools"
	withCategory := &repository.CatalogProduct{
		Product: domain.Product{ID: uuid.New(), Name: "Hammer", SKU: "H-1", Price: 5},
		CategoryName: &tools,
	}
	withCategory.CategoryID = ptrUUID(uuid.New())
	uncategorized := &repository.CatalogProduct{
		Product: domain.Product{ID: uuid.New(), Name: "Misc", SKU: "M-1", Price: 1},
	}
	repo := &mockProductRepository{catalog: []*repository.CatalogProduct{withCategory, uncategorized}}

	page := listProducts(t, repo, "")

	if page.Data[0].Category == nil || page.Data[0].Category.Name != "Tools" {
		t.Errorf("Expected nested category object, got %+v", page.Data[0].Category)
	}
	if page.Data[1].Category != nil {
		t.Errorf("Uncategorized product should serialize null category, got %+v", page.Data[1].Category)
	}
}

func TestListEmptyCatalog(t *testing.T) {
	repo := &mockProductRepository{}

	page := listProducts(t, repo, "")
	if len(page.Data) != 0 {
		t.Errorf("Expected empty data, got %d", len(page.Data))
	}
	if page.Meta.LastPage != 1 {
		t.Errorf("Empty catalog should report last_page 1, got %d", page.Meta.LastPage)
	}
}

func TestCreateProduct(t *testing.T) {
	repo := &mockProductRepository{}
	tools := &domain.Category{ID: uuid.New(), Name: "Tools"}
	handler := NewProductHandler(repo, &mockCategoryRepository{categories: []*domain.Category{tools}}, zap.NewNop())

	body := fmt.Sprintf(`{"name":"Hammer","sku":"H-1","price":12.50,"category_id":%q,"stock":4}`, tools.ID)
	req := httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(repo.created) != 1 {
		t.Fatalf("Expected one created product, got %d", len(repo.created))
	}
	p := repo.created[0]
	if p.SKU != "H-1" || p.Price != 12.50 || p.CategoryID == nil || *p.CategoryID != tools.ID {
		t.Errorf("Product stored wrong: %+v", p)
	}
}

func TestCreateProductUnknownCategory(t *testing.T) {
	repo := &mockProductRepository{}
	handler := NewProductHandler(repo, &mockCategoryRepository{}, zap.NewNop())

	body := fmt.Sprintf(`{"name":"Hammer","sku":"H-1","price":12.50,"category_id":%q}`, uuid.New())
	req := httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d", rec.Code)
	}
	if len(repo.created) != 0 {
		t.Errorf("Product should not be created")
	}
}

func TestCreateProductValidation(t *testing.T) {
	handler := NewProductHandler(&mockProductRepository{}, &mockCategoryRepository{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/products",
		strings.NewReader(`{"name":"","sku":"","price":-1}`))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateProductNotFound(t *testing.T) {
	handler := NewProductHandler(&mockProductRepository{missing: true}, &mockCategoryRepository{}, zap.NewNop())

	req := chiRequest(http.MethodPut, "/api/products/{id}", uuid.NewString(),
		`{"name":"Hammer","sku":"H-1","price":1}`)
	rec := httptest.NewRecorder()
	handler.Update(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
}

func TestDeleteProduct(t *testing.T) {
	repo := &mockProductRepository{}
	handler := NewProductHandler(repo, &mockCategoryRepository{}, zap.NewNop())

	id := uuid.New()
	req := chiRequest(http.MethodDelete, "/api/products/{id}", id.String(), "")
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != id {
		t.Errorf("Delete not forwarded: %v", repo.deleted)
	}
}

func TestCreateCategoryConflict(t *testing.T) {
	cats := &mockCategoryRepository{}
	handler := NewProductHandler(&mockProductRepository{}, cats, zap.NewNop())

	for i, want := range []int{http.StatusCreated, http.StatusConflict} {
		req := httptest.NewRequest(http.MethodPost, "/api/categories",
			strings.NewReader(`{"name":"Tools"}`))
		rec := httptest.NewRecorder()
		handler.CreateCategory(rec, req)

		if rec.Code != want {
			t.Fatalf("Request %d: expected %d, got %d", i, want, rec.Code)
		}
	}
	if len(cats.categories) != 1 {
		t.Errorf("Expected one category, got %d", len(cats.categories))
	}
}

// chiRequest builds a request with a chi URL parameter attached
func chiRequest(method, pattern, id, body string) *http.Request {
	req := httptest.NewRequest(method, strings.Replace(pattern, "{id}", id, 1), strings.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
