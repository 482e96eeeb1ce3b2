package server

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/jrsteele09/go-admin-console/catalog"
	"github.com/jrsteele09/go-admin-console/catalogmodel"
)

const multipartMemory = 8 << 20

// CreateProductResponse is returned when a product and all its images were
// stored.
type CreateProductResponse struct {
	TransactionID string                `json:"transaction_id"`
	Product       *catalogmodel.Product `json:"product"`
}

func (s *Server) ListProductsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts, err := listOptions(r)
		if err != nil {
			s.writeError(w, err)
			return
		}
		page, err := s.catalog.ListProducts(r.Context(), opts)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

// CreateProductHandler reads a multipart form with a "product" JSON field, any
// number of "images" files and an optional "primary_image" index, and creates
// everything as one transaction.
func (s *Server) CreateProductHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			writeJSONError(w, "invalid_request", "invalid multipart body: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		req, closeFiles, err := createProductRequest(r.MultipartForm)
		defer closeFiles()
		if err != nil {
			writeJSONError(w, "invalid_request", err.Error(), http.StatusBadRequest)
			return
		}

		result, err := s.coordinator.CreateProductWithImages(r.Context(), req)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, CreateProductResponse{TransactionID: result.TransactionID, Product: result.Product})
	}
}

func createProductRequest(form *multipart.Form) (catalog.CreateProductRequest, func(), error) {
	var files []multipart.File
	closeFiles := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	var req catalog.CreateProductRequest
	product := form.Value["product"]
	if len(product) != 1 {
		return req, closeFiles, fmt.Errorf("exactly one product field is required")
	}
	if err := json.Unmarshal([]byte(product[0]), &req.Product); err != nil {
		return req, closeFiles, fmt.Errorf("invalid product: %w", err)
	}

	if primary := form.Value["primary_image"]; len(primary) > 0 && primary[0] != "" {
		index, err := strconv.Atoi(primary[0])
		if err != nil {
			return req, closeFiles, fmt.Errorf("invalid primary_image %q", primary[0])
		}
		req.PrimaryImage = index
	}

	for _, header := range form.File["images"] {
		f, err := header.Open()
		if err != nil {
			return req, closeFiles, fmt.Errorf("open image %s: %w", header.Filename, err)
		}
		files = append(files, f)
		req.Images = append(req.Images, catalog.ImageUpload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        f,
		})
	}
	return req, closeFiles, nil
}

func (s *Server) UpdateProductHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var update catalogmodel.ProductUpdate
		if !decodeBody(w, r, &update) {
			return
		}
		product, err := s.coordinator.UpdateProduct(r.Context(), id, update)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, product)
	}
}

func (s *Server) DeleteProductHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := s.coordinator.DeleteProduct(r.Context(), id); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) ListOrdersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts, err := listOptions(r)
		if err != nil {
			s.writeError(w, err)
			return
		}
		page, err := s.catalog.ListOrders(r.Context(), opts)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func (s *Server) GetOrderHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		order, err := s.catalog.GetOrder(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

func (s *Server) UpdateOrderStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var update catalogmodel.OrderStatusUpdate
		if !decodeBody(w, r, &update) {
			return
		}
		if err := catalogmodel.Validate(update); err != nil {
			s.writeError(w, err)
			return
		}
		order, err := s.catalog.UpdateOrderStatus(r.Context(), id, update.Status)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

func (s *Server) DeleteOrderHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := s.catalog.DeleteOrder(r.Context(), id); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := s.catalog.DashboardSummary(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, "invalid_request", fmt.Sprintf("invalid id %q", raw), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func listOptions(r *http.Request) (catalogmodel.ListOptions, error) {
	q := r.URL.Query()
	opts := catalogmodel.ListOptions{
		Sort:   q.Get("sort"),
		Order:  catalogmodel.SortOrder(q.Get("order")),
		Search: q.Get("search"),
		Status: q.Get("status"),
	}
	var err error
	if v := q.Get("page"); v != "" {
		if opts.Page, err = strconv.Atoi(v); err != nil {
			return opts, fmt.Errorf("%w: page must be a number", catalog.ErrInvalidRequest)
		}
	}
	if v := q.Get("page_size"); v != "" {
		if opts.PageSize, err = strconv.Atoi(v); err != nil {
			return opts, fmt.Errorf("%w: page_size must be a number", catalog.ErrInvalidRequest)
		}
	}
	return opts, catalogmodel.Validate(opts)
}
