// Package catalog reads listing documents from the catalog service's REST API.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Kilat-Marketplace/service-booking/internal/domain/entity"
	"github.com/Kilat-Marketplace/service-booking/internal/domain/listing"
	"github.com/Kilat-Marketplace/service-booking/pkg/httpx"
)

// Client fetches listing documents by entity type and id.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the catalog at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: httpx.Client()}
}

// envelope is the catalog's response wrapper. Bare documents are accepted too.
type envelope struct {
	Data entity.Document `json:"data"`
}

// FetchDocument GETs the listing's detail path. A 404 maps to ENTITY_NOT_FOUND.
func (c *Client) FetchDocument(ctx context.Context, cfg entity.Config, entityID string) (entity.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.DetailURL(c.baseURL, entityID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, listing.NotFound(string(cfg.Type), entityID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned %d for %s %s", resp.StatusCode, cfg.Type, entityID)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog response: %w", err)
	}

	var wrapped envelope
	if err := json.Unmarshal(body, &wrapped); err == nil && len(wrapped.Data) > 0 {
		return wrapped.Data, nil
	}
	var doc entity.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode catalog document: %w", err)
	}
	if doc == nil {
		doc = entity.Document{}
	}
	return doc, nil
}

// SetListingStatus PATCHes the listing's status path with {"status": status}.
// A 404 maps to ENTITY_NOT_FOUND; any other non-2xx status is an error.
func (c *Client) SetListingStatus(ctx context.Context, cfg entity.Config, entityID, status string) error {
	payload, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return fmt.Errorf("failed to encode status update: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, cfg.StatusURL(c.baseURL, entityID), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build catalog request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode == http.StatusNotFound {
		return listing.NotFound(string(cfg.Type), entityID)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("catalog returned %d setting %s %s to %s", resp.StatusCode, cfg.Type, entityID, status)
	}
	return nil
}
