// Package invapi wires the HTTP surface of the inventory service: catalog
// reads, the signed stock adjuster, and the low-stock feed.
package invapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"log/slog"

	"github.com/tinoosan/backoffice/internal/client"
	"github.com/tinoosan/backoffice/internal/httpapi/mw"
	"github.com/tinoosan/backoffice/internal/httpapi/respond"
	"github.com/tinoosan/backoffice/internal/inventory"
	"github.com/tinoosan/backoffice/internal/service/stock"
)

// ReadyChecker is implemented by stores that can verify connectivity.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// Server wires handlers and middleware using chi.
type Server struct {
	svc   stock.Service
	ready ReadyChecker
	log   *slog.Logger
	rt    *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
func New(svc stock.Service, auth *client.AuthClient, ready ReadyChecker, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.Recoverer(logger))
	r.Use(mw.Metrics("inventory"))
	r.Use(client.RequireAuth(auth, "/health", "/readyz", "/metrics"))

	s := &Server{svc: svc, ready: ready, log: logger, rt: r}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

func (s *Server) routes() {
	s.rt.Route("/api/v1", func(r chi.Router) {
		r.With(client.RequirePermission("product:list")).Get("/products", s.listProducts)
		r.With(client.RequirePermission("product:read")).Get("/products/{id}", s.getProduct)
		r.With(client.RequirePermission("stock:update")).Put("/stock/{product}/{size}/adjust", s.adjust)
		r.With(client.RequirePermission("stock:read")).Get("/stock/low", s.lowStock)
		r.With(client.RequirePermission("stock:read")).Get("/stock/{product}/{size}/movements", s.movements)
	})
	s.rt.Get("/health", s.health)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Method(http.MethodGet, "/metrics", mw.MetricsHandler())
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
	defer cancel()
	if err := s.ready.Ready(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type productResponse struct {
	ID           uuid.UUID  `json:"id"`
	SKU          string     `json:"sku"`
	Name         string     `json:"name"`
	CostPrice    float64    `json:"cost_price"`
	SellingPrice float64    `json:"selling_price"`
	CategoryID   *uuid.UUID `json:"category_id,omitempty"`
	BrandID      *uuid.UUID `json:"brand_id,omitempty"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toProductResponse(p inventory.Product) productResponse {
	cost, _ := p.CostPrice.Float64()
	sell, _ := p.SellingPrice.Float64()
	return productResponse{
		ID:           p.ID,
		SKU:          p.SKU,
		Name:         p.Name,
		CostPrice:    cost,
		SellingPrice: sell,
		CategoryID:   p.CategoryID,
		BrandID:      p.BrandID,
		Active:       p.Active,
		CreatedAt:    p.CreatedAt,
	}
}

type stockItemResponse struct {
	ProductID    uuid.UUID `json:"product_id"`
	Size         string    `json:"size"`
	Quantity     int64     `json:"quantity"`
	ReorderLevel int64     `json:"reorder_level"`
	MaxLevel     int64     `json:"max_level"`
}

func toStockItemResponse(item inventory.StockItem) stockItemResponse {
	return stockItemResponse{
		ProductID:    item.ProductID,
		Size:         item.Size,
		Quantity:     item.Quantity,
		ReorderLevel: item.ReorderLevel,
		MaxLevel:     item.MaxLevel,
	}
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := stock.ProductFilter{Search: q.Get("search")}
	if v := q.Get("category_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respond.Detail(w, http.StatusBadRequest, "invalid category_id")
			return
		}
		f.CategoryID = &id
	}
	if v := q.Get("brand_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respond.Detail(w, http.StatusBadRequest, "invalid brand_id")
			return
		}
		f.BrandID = &id
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	products, total, err := s.svc.ListProducts(r.Context(), f)
	if err != nil {
		respond.Error(w, err)
		return
	}
	items := make([]productResponse, 0, len(products))
	for _, p := range products {
		items = append(items, toProductResponse(p))
	}
	respond.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Detail(w, http.StatusBadRequest, "invalid product id")
		return
	}
	p, err := s.svc.GetProduct(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, toProductResponse(p))
}

// adjust applies a signed quantity change to one (product, size) stock row.
// Parameters ride on the query string so POS can call it with an empty body.
func (s *Server) adjust(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "product"))
	if err != nil {
		respond.Detail(w, http.StatusBadRequest, "invalid product id")
		return
	}
	size := chi.URLParam(r, "size")
	q := r.URL.Query()
	delta, err := strconv.ParseInt(q.Get("quantity_change"), 10, 64)
	if err != nil {
		respond.Detail(w, http.StatusBadRequest, "quantity_change must be an integer")
		return
	}
	movementType := inventory.MovementType(q.Get("movement_type"))
	if movementType == "" {
		movementType = inventory.MovementAdjustment
	}
	item, err := s.svc.Adjust(r.Context(), productID, size, delta, movementType, q.Get("reference_id"))
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, toStockItemResponse(item))
}

func (s *Server) lowStock(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.LowStock(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}
	out := make([]stockItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toStockItemResponse(item))
	}
	respond.JSON(w, http.StatusOK, map[string]any{"items": out})
}

type movementResponse struct {
	ID             uuid.UUID              `json:"id"`
	ProductID      uuid.UUID              `json:"product_id"`
	Size           string                 `json:"size"`
	Type           inventory.MovementType `json:"type"`
	QuantityChange int64                  `json:"quantity_change"`
	Reference      string                 `json:"reference,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

func (s *Server) movements(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "product"))
	if err != nil {
		respond.Detail(w, http.StatusBadRequest, "invalid product id")
		return
	}
	ms, err := s.svc.Movements(r.Context(), productID, chi.URLParam(r, "size"))
	if err != nil {
		respond.Error(w, err)
		return
	}
	items := make([]movementResponse, 0, len(ms))
	for _, m := range ms {
		items = append(items, movementResponse{
			ID:             m.ID,
			ProductID:      m.ProductID,
			Size:           m.Size,
			Type:           m.Type,
			QuantityChange: m.QuantityChange,
			Reference:      m.Reference,
			CreatedAt:      m.CreatedAt,
		})
	}
	respond.JSON(w, http.StatusOK, map[string]any{"items": items})
}
