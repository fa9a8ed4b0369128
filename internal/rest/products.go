package rest

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"storefront-be/internal/product"
	"storefront-be/internal/utils"

	"github.com/shopspring/decimal"
)

const maxUploadBytes = 32 << 20

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := product.ListFilter{
		Category: strings.TrimSpace(q.Get("category")),
		Search:   strings.TrimSpace(q.Get("search")),
	}
	if v := q.Get("isActive"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: isActive must be true or false", errBadRequest))
			return
		}
		filter.IsActive = &active
	}

	products, err := h.products.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"count":    len(products),
		"products": products,
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"product": p})
}

// productForm holds the multipart fields shared by create and full update.
type productForm struct {
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Stock       int
	IsActive    bool
	Files       []*multipart.FileHeader
}

func parseProductForm(r *http.Request) (*productForm, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}

	f := &productForm{
		Name:        strings.TrimSpace(r.FormValue("name")),
		Description: r.FormValue("description"),
		Category:    strings.TrimSpace(r.FormValue("category")),
		IsActive:    true,
	}

	price, err := decimal.NewFromString(strings.TrimSpace(r.FormValue("price")))
	if err != nil {
		return nil, fmt.Errorf("%w: price must be a number", errBadRequest)
	}
	f.Price = price

	stock, err := strconv.Atoi(strings.TrimSpace(r.FormValue("stock")))
	if err != nil {
		return nil, fmt.Errorf("%w: stock must be an integer", errBadRequest)
	}
	f.Stock = stock

	if v := r.FormValue("isActive"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: isActive must be true or false", errBadRequest)
		}
		f.IsActive = active
	}

	if r.MultipartForm != nil {
		f.Files = r.MultipartForm.File["images"]
	}
	return f, nil
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	f, err := parseProductForm(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.products.Create(r.Context(), product.CreateInput{
		Name:        f.Name,
		Description: f.Description,
		Category:    f.Category,
		Price:       f.Price,
		Stock:       f.Stock,
		IsActive:    f.IsActive,
	}, f.Files)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, map[string]any{"product": p})
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	f, err := parseProductForm(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.products.Update(r.Context(), r.PathValue("id"), product.UpdateInput{
		Name:        f.Name,
		Description: f.Description,
		Category:    f.Category,
		Price:       f.Price,
		Stock:       f.Stock,
		IsActive:    f.IsActive,
	}, f.Files)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"product": p})
}

func (h *Handler) patchProduct(w http.ResponseWriter, r *http.Request) {
	var input product.PatchInput
	if err := decodeJSON(r, &input, true); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.products.Patch(r.Context(), r.PathValue("id"), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"product": p})
}

func (h *Handler) setProductStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IsActive *bool `json:"isActive"`
	}
	if err := decodeJSON(r, &body, false); err != nil {
		writeError(w, r, err)
		return
	}
	if body.IsActive == nil {
		writeError(w, r, fmt.Errorf("%w: isActive is required", errBadRequest))
		return
	}

	p, err := h.products.SetStatus(r.Context(), r.PathValue("id"), *body.IsActive)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"product": p})
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"message": "product deleted"})
}
