package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/backoffice/internal/errs"
)

// InventoryClient calls the inventory service's stock adjuster.
type InventoryClient struct {
	baseURL string
	http    *http.Client
}

func NewInventoryClient(baseURL string, timeout time.Duration) *InventoryClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &InventoryClient{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

// StockLevel is the adjuster's response projection.
type StockLevel struct {
	ProductID uuid.UUID `json:"product_id"`
	Size      string    `json:"size"`
	Quantity  int64     `json:"quantity"`
}

// Adjust applies a signed quantity change to (product, size), forwarding the
// caller's bearer token. Any non-2xx is an error; the POS pipeline treats a
// failure here as fatal to the sale.
func (c *InventoryClient) Adjust(ctx context.Context, token string, productID uuid.UUID, size string, delta int64, movementType, referenceID string) (StockLevel, error) {
	q := url.Values{}
	q.Set("quantity_change", strconv.FormatInt(delta, 10))
	q.Set("reference_id", referenceID)
	if movementType != "" {
		q.Set("movement_type", movementType)
	}
	endpoint := fmt.Sprintf("%s/api/v1/stock/%s/%s/adjust?%s", c.baseURL, productID, url.PathEscape(size), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, nil)
	if err != nil {
		return StockLevel{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.http.Do(req)
	if err != nil {
		return StockLevel{}, fmt.Errorf("%w: inventory unavailable: %s", errs.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusNotFound {
			return StockLevel{}, fmt.Errorf("%w: no stock row for product %s size %s", errs.ErrNotFound, productID, size)
		}
		return StockLevel{}, fmt.Errorf("%w: inventory adjust returned %d", errs.ErrUnavailable, resp.StatusCode)
	}
	var out StockLevel
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return StockLevel{}, fmt.Errorf("decode stock level: %w", err)
	}
	return out, nil
}
