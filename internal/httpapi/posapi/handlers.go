package posapi

import (
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tinoosan/backoffice/internal/client"
	"github.com/tinoosan/backoffice/internal/httpapi/respond"
	"github.com/tinoosan/backoffice/internal/pos"
	"github.com/tinoosan/backoffice/internal/service/sale"
)

type saleItemRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	SKU       string    `json:"sku,omitempty"`
	Name      string    `json:"name"`
	Quantity  int64     `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	Discount  float64   `json:"discount,omitempty"`
	Tax       float64   `json:"tax,omitempty"`
	Size      string    `json:"size,omitempty"`
}

type saleRequest struct {
	Items          []saleItemRequest `json:"items"`
	PaymentMethod  pos.PaymentMethod `json:"payment_method"`
	DiscountAmount float64           `json:"discount_amount,omitempty"`
	TaxRate        *float64          `json:"tax_rate,omitempty"`
	Tendered       *float64          `json:"tendered,omitempty"`
	CustomerName   string            `json:"customer_name,omitempty"`
	Notes          string            `json:"notes,omitempty"`
}

func (req saleRequest) toInput() sale.Input {
	in := sale.Input{
		PaymentMethod:  req.PaymentMethod,
		DiscountAmount: decimal.NewFromFloat(req.DiscountAmount),
		CustomerName:   req.CustomerName,
		Notes:          req.Notes,
	}
	if req.TaxRate != nil {
		rate := decimal.NewFromFloat(*req.TaxRate)
		in.TaxRate = &rate
	}
	if req.Tendered != nil {
		t := decimal.NewFromFloat(*req.Tendered)
		in.Tendered = &t
	}
	for _, item := range req.Items {
		in.Lines = append(in.Lines, sale.LineInput{
			ProductID: item.ProductID,
			SKU:       item.SKU,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: decimal.NewFromFloat(item.UnitPrice),
			Discount:  decimal.NewFromFloat(item.Discount),
			Tax:       decimal.NewFromFloat(item.Tax),
			Size:      item.Size,
		})
	}
	return in
}

type saleItemResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	SKU       string    `json:"sku,omitempty"`
	Name      string    `json:"name"`
	Quantity  int64     `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	Discount  float64   `json:"discount"`
	Tax       float64   `json:"tax"`
	LineTotal float64   `json:"line_total"`
	Size      string    `json:"size,omitempty"`
}

type saleResponse struct {
	ID             uuid.UUID          `json:"id"`
	SaleNumber     string             `json:"sale_number"`
	Subtotal       float64            `json:"subtotal"`
	TaxAmount      float64            `json:"tax_amount"`
	DiscountAmount float64            `json:"discount_amount"`
	Total          float64            `json:"total"`
	PaymentMethod  pos.PaymentMethod  `json:"payment_method"`
	Tendered       *float64           `json:"tendered,omitempty"`
	Change         *float64           `json:"change,omitempty"`
	CustomerName   string             `json:"customer_name,omitempty"`
	Notes          string             `json:"notes,omitempty"`
	CashierName    string             `json:"cashier_name"`
	CreatedAt      time.Time          `json:"created_at"`
	SyncStatus     pos.SyncStatus     `json:"sync_status"`
	LedgerEntryID  *uuid.UUID         `json:"ledger_entry_id,omitempty"`
	Items          []saleItemResponse `json:"items"`
}

func f64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func optF64(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := f64(*d)
	return &f
}

func toSaleResponse(sl pos.Sale) saleResponse {
	out := saleResponse{
		ID:             sl.ID,
		SaleNumber:     sl.SaleNumber,
		Subtotal:       f64(sl.Subtotal),
		TaxAmount:      f64(sl.TaxAmount),
		DiscountAmount: f64(sl.DiscountAmount),
		Total:          f64(sl.Total),
		PaymentMethod:  sl.PaymentMethod,
		Tendered:       optF64(sl.Tendered),
		Change:         optF64(sl.Change),
		CustomerName:   sl.CustomerName,
		Notes:          sl.Notes,
		CashierName:    sl.CashierName,
		CreatedAt:      sl.CreatedAt,
		SyncStatus:     sl.Status,
		LedgerEntryID:  sl.LedgerEntryID,
	}
	for _, item := range sl.Items {
		out.Items = append(out.Items, saleItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			SKU:       item.SKU,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: f64(item.UnitPrice),
			Discount:  f64(item.Discount),
			Tax:       f64(item.Tax),
			LineTotal: f64(item.LineTotal),
			Size:      item.Size,
		})
	}
	return out
}

func (s *Server) postSale(w http.ResponseWriter, r *http.Request) {
	if !respond.RequireJSON(w, r) {
		return
	}
	var req saleRequest
	if !respond.Decode(w, r, &req) {
		return
	}
	profile, _ := client.ProfileFrom(r.Context())
	token, _ := client.TokenFrom(r.Context())
	created, err := s.svc.CreateSale(r.Context(), req.toInput(), profile, token)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, toSaleResponse(created))
}

func (s *Server) listSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f sale.Filter
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respond.Detail(w, http.StatusBadRequest, "invalid from date")
			return
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respond.Detail(w, http.StatusBadRequest, "invalid to date")
			return
		}
		f.To = &t
	}
	if v := q.Get("status"); v != "" {
		st := pos.SyncStatus(v)
		f.Status = &st
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	sales, total, err := s.svc.List(r.Context(), f)
	if err != nil {
		respond.Error(w, err)
		return
	}
	items := make([]saleResponse, 0, len(sales))
	for _, sl := range sales {
		items = append(items, toSaleResponse(sl))
	}
	respond.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (s *Server) getSale(w http.ResponseWriter, r *http.Request) {
	sl, err := s.svc.ByNumber(r.Context(), chi.URLParam(r, "sale_number"))
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, toSaleResponse(sl))
}

type adjustmentResponse struct {
	ID            uuid.UUID          `json:"id"`
	SaleID        uuid.UUID          `json:"sale_id"`
	Kind          pos.AdjustmentKind `json:"kind"`
	Amount        float64            `json:"amount"`
	LedgerEntryID *uuid.UUID         `json:"ledger_entry_id,omitempty"`
	CreatedBy     string             `json:"created_by"`
	CreatedAt     time.Time          `json:"created_at"`
}

func toAdjustmentResponse(a pos.SaleAdjustment) adjustmentResponse {
	return adjustmentResponse{
		ID:            a.ID,
		SaleID:        a.SaleID,
		Kind:          a.Kind,
		Amount:        f64(a.Amount),
		LedgerEntryID: a.LedgerEntryID,
		CreatedBy:     a.CreatedBy,
		CreatedAt:     a.CreatedAt,
	}
}

func (s *Server) voidSale(w http.ResponseWriter, r *http.Request) {
	saleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Detail(w, http.StatusBadRequest, "invalid sale id")
		return
	}
	profile, _ := client.ProfileFrom(r.Context())
	token, _ := client.TokenFrom(r.Context())
	adj, err := s.svc.Void(r.Context(), saleID, profile, token)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, toAdjustmentResponse(adj))
}

type refundRequest struct {
	Amount float64 `json:"amount"`
}

func (s *Server) refundSale(w http.ResponseWriter, r *http.Request) {
	if !respond.RequireJSON(w, r) {
		return
	}
	saleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Detail(w, http.StatusBadRequest, "invalid sale id")
		return
	}
	var req refundRequest
	if !respond.Decode(w, r, &req) {
		return
	}
	profile, _ := client.ProfileFrom(r.Context())
	token, _ := client.TokenFrom(r.Context())
	adj, err := s.svc.Refund(r.Context(), saleID, decimal.NewFromFloat(req.Amount), profile, token)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, toAdjustmentResponse(adj))
}

type settingsPayload struct {
	TaxRate           float64 `json:"tax_rate"`
	TaxInclusive      bool    `json:"tax_inclusive"`
	Currency          string  `json:"currency"`
	LowStockThreshold int64   `json:"low_stock_threshold"`
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.svc.Settings(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, settingsPayload{
		TaxRate:           f64(settings.TaxRate),
		TaxInclusive:      settings.TaxInclusive,
		Currency:          settings.Currency,
		LowStockThreshold: settings.LowStockThreshold,
	})
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	if !respond.RequireJSON(w, r) {
		return
	}
	var req settingsPayload
	if !respond.Decode(w, r, &req) {
		return
	}
	updated, err := s.svc.UpdateSettings(r.Context(), pos.Settings{
		TaxRate:           decimal.NewFromFloat(req.TaxRate),
		TaxInclusive:      req.TaxInclusive,
		Currency:          req.Currency,
		LowStockThreshold: req.LowStockThreshold,
	})
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, settingsPayload{
		TaxRate:           f64(updated.TaxRate),
		TaxInclusive:      updated.TaxInclusive,
		Currency:          updated.Currency,
		LowStockThreshold: updated.LowStockThreshold,
	})
}
