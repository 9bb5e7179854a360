package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"konterku/engine/internal/domain"
	"konterku/engine/internal/session"
)

// ServerError is a rejection the backend answered with. Message is the
// human-readable reason extracted from the error body when one was present.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server rejected request (%d): %s", e.Status, e.Message)
}

// Client talks to the shop backend over the REST contract: master lists,
// party lookups, transaction submission and dashboard counters. Every call
// sends the session's bearer token and makes exactly one attempt; retry
// policy belongs to the caller.
type Client struct {
	httpClient *http.Client
	sess       *session.Session
	logger     *zap.Logger
}

func New(sess *session.Session, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		sess:       sess,
		logger:     logger.Named("apiclient"),
	}
}

// WithHTTPClient overrides the underlying transport, mainly for tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.httpClient = h
	return c
}

// catalogRecord is the wire shape of a master-list row. Older backends expose
// the sale price under "price"; newer ones under "sale_price". The fallback
// is resolved here, once, so the rest of the engine only ever sees the
// canonical SalePrice.
type catalogRecord struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Barcode   string           `json:"barcode"`
	CostPrice decimal.Decimal  `json:"cost_price"`
	SalePrice *decimal.Decimal `json:"sale_price"`
	Price     *decimal.Decimal `json:"price"`
	Stock     int              `json:"stock"`
}

func (r catalogRecord) toDomain() domain.CatalogItem {
	sale := decimal.Zero
	switch {
	case r.SalePrice != nil:
		sale = *r.SalePrice
	case r.Price != nil:
		sale = *r.Price
	}
	return domain.CatalogItem{
		ID:        r.ID,
		Name:      r.Name,
		Barcode:   r.Barcode,
		CostPrice: r.CostPrice,
		SalePrice: sale,
		Stock:     r.Stock,
	}
}

// LoadCatalog fetches the master list for an item resource, e.g. resource
// "sparepart" hits GET /sparepart-master.
func (c *Client) LoadCatalog(ctx context.Context, resource string) ([]domain.CatalogItem, error) {
	var records []catalogRecord
	if err := c.getJSON(ctx, "/"+resource+"-master", nil, &records); err != nil {
		return nil, err
	}

	items := make([]domain.CatalogItem, 0, len(records))
	for _, rec := range records {
		items = append(items, rec.toDomain())
	}
	c.logger.Debug("catalog loaded", zap.String("resource", resource), zap.Int("items", len(items)))
	return items, nil
}

// SearchParties fetches candidate counterparties. The query is forwarded for
// backends that filter server-side, but callers still filter the result
// locally, so a bulk response is equally fine.
func (c *Client) SearchParties(ctx context.Context, source string, query string) ([]domain.PartySelection, error) {
	var path string
	switch source {
	case domain.PartySourceMember:
		path = "/member"
	case domain.PartySourceDownline:
		path = "/downline-master"
	default:
		return nil, fmt.Errorf("unknown party source %q", source)
	}

	params := url.Values{}
	if query != "" {
		params.Set("q", query)
	}

	var parties []domain.PartySelection
	if err := c.getJSON(ctx, path, params, &parties); err != nil {
		return nil, err
	}
	return parties, nil
}

// SubmitTransaction posts the order payload to the kind's transaction
// resource. Exactly one network call per invocation; no automatic retry.
func (c *Client) SubmitTransaction(ctx context.Context, resource string, payload domain.TransactionPayload) (domain.Confirmation, error) {
	if err := c.sess.Validate(); err != nil {
		return domain.Confirmation{}, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.Confirmation{}, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sess.BaseURL()+"/"+resource, bytes.NewReader(body))
	if err != nil {
		return domain.Confirmation{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.sess.Token())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Confirmation{}, fmt.Errorf("submit transaction: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Confirmation{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serverErr := &ServerError{Status: resp.StatusCode, Message: extractErrorMessage(raw)}
		c.logger.Warn("transaction rejected",
			zap.String("resource", resource),
			zap.Int("status", resp.StatusCode),
			zap.String("reason", serverErr.Message))
		return domain.Confirmation{}, serverErr
	}

	var envelope struct {
		Data domain.Confirmation `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return domain.Confirmation{}, fmt.Errorf("decode confirmation: %w", err)
	}
	c.logger.Info("transaction accepted",
		zap.String("resource", resource),
		zap.String("transaction_id", envelope.Data.TransactionID))
	return envelope.Data, nil
}

// FetchDashboardSummary returns the precomputed aggregate counters.
func (c *Client) FetchDashboardSummary(ctx context.Context) (domain.DashboardSummary, error) {
	var summary domain.DashboardSummary
	if err := c.getJSON(ctx, "/dashboard-summary", nil, &summary); err != nil {
		return domain.DashboardSummary{}, err
	}
	return summary, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.sess.Validate(); err != nil {
		return err
	}

	target := c.sess.BaseURL() + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.sess.Token())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &ServerError{Status: resp.StatusCode, Message: extractErrorMessage(raw)}
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Data == nil {
		// Some deployments return the list bare rather than wrapped.
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// extractErrorMessage pulls a human-readable reason out of an error body,
// preferring {"error": ...} over {"message": ...}, with a generic fallback.
func extractErrorMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return "request failed, please try again"
}
