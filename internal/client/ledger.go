package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/backoffice/internal/errs"
)

// LedgerClient posts journal entries on behalf of the POS worker.
type LedgerClient struct {
	baseURL string
	http    *http.Client
}

func NewLedgerClient(baseURL string, timeout time.Duration) *LedgerClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LedgerClient{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

// JournalLine is one wire line; Account is the exact account name and Amount
// a decimal-2 number.
type JournalLine struct {
	Account string  `json:"account"`
	Type    string  `json:"type"`
	Amount  float64 `json:"amount"`
}

// JournalRequest is the POST /transactions body.
type JournalRequest struct {
	Date        time.Time     `json:"date"`
	Description string        `json:"description"`
	Source      string        `json:"source"`
	Reference   string        `json:"reference,omitempty"`
	CreatedBy   string        `json:"created_by,omitempty"`
	Lines       []JournalLine `json:"lines"`
}

// JournalEntry is the slice of the ledger response the POS worker needs.
type JournalEntry struct {
	ID        uuid.UUID `json:"id"`
	Reference string    `json:"reference"`
}

// Post submits a journal entry. A 409 surfaces as ErrConflict so callers can
// treat a duplicate reference as already-posted.
func (c *LedgerClient) Post(ctx context.Context, token string, body JournalRequest) (JournalEntry, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return JournalEntry{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/transactions", bytes.NewReader(buf))
	if err != nil {
		return JournalEntry{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.http.Do(req)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("%w: ledger unavailable: %s", errs.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out JournalEntry
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return JournalEntry{}, fmt.Errorf("decode journal entry: %w", err)
		}
		return out, nil
	case resp.StatusCode == http.StatusConflict:
		return JournalEntry{}, fmt.Errorf("%w: duplicate reference %s", errs.ErrConflict, body.Reference)
	default:
		return JournalEntry{}, fmt.Errorf("%w: ledger post returned %d", errs.ErrUnavailable, resp.StatusCode)
	}
}

// FindByReference looks up a posted entry by (source, reference). The POS
// worker calls this before posting so duplicate deliveries stay safe.
func (c *LedgerClient) FindByReference(ctx context.Context, token, source, reference string) (JournalEntry, bool, error) {
	q := url.Values{}
	q.Set("source", source)
	q.Set("reference", reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/transactions?"+q.Encode(), nil)
	if err != nil {
		return JournalEntry{}, false, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.http.Do(req)
	if err != nil {
		return JournalEntry{}, false, fmt.Errorf("%w: ledger unavailable: %s", errs.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return JournalEntry{}, false, fmt.Errorf("%w: ledger lookup returned %d", errs.ErrUnavailable, resp.StatusCode)
	}
	var out struct {
		Items []JournalEntry `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return JournalEntry{}, false, fmt.Errorf("decode lookup: %w", err)
	}
	if len(out.Items) == 0 {
		return JournalEntry{}, false, nil
	}
	return out.Items[0], true, nil
}
