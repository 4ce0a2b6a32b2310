// Package remote is the HTTP client for the hosted list store.
package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marcus/branger/internal/models"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// Client talks to the branger sync server.
type Client struct {
	BaseURL  string
	APIKey   string
	DeviceID string
	HTTP     *http.Client
}

// New creates a client with the default 30s timeout. DeviceID is sent with
// every write so the server can suppress echoing our own events back.
func New(baseURL, apiKey, deviceID string) *Client {
	return &Client{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		DeviceID: deviceID,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

// HealthResponse is the response from GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthCheck hits /healthz to verify server reachability. It doubles as
// the connectivity probe.
func (c *Client) HealthCheck() (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do("GET", "/healthz", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// insertRequest is the body for POST /v1/lists/{id}/items.
type insertRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Position    int    `json:"position"`
	RecipeID    string `json:"recipe_id,omitempty"`
	DeviceID    string `json:"device_id,omitempty"`
}

// ItemPatch is a partial update; nil fields are left untouched.
type ItemPatch struct {
	Checked  *bool `json:"checked,omitempty"`
	Position *int  `json:"position,omitempty"`
}

// InsertItem creates a row server-side and returns it with its durable id.
func (c *Client) InsertItem(p models.AddItemPayload) (*models.ListItem, error) {
	req := insertRequest{
		Name:        p.Name,
		Description: p.Description,
		Position:    p.Position,
		RecipeID:    p.RecipeID,
		DeviceID:    c.DeviceID,
	}
	var row models.ListItem
	if err := c.do("POST", fmt.Sprintf("/v1/lists/%s/items", p.ListID), req, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// UpdateItem applies a partial update to an item.
func (c *Client) UpdateItem(itemID string, patch ItemPatch) error {
	return c.do("PATCH", fmt.Sprintf("/v1/items/%s?device_id=%s", itemID, c.DeviceID), patch, nil)
}

// UpdateItemChecked sets only the checked state of an item.
func (c *Client) UpdateItemChecked(itemID string, checked bool) error {
	return c.UpdateItem(itemID, ItemPatch{Checked: &checked})
}

// DeleteItem removes an item. Deleting an absent item is a no-op, not an
// error: replay is at-least-once and duplicates must be tolerated.
func (c *Client) DeleteItem(itemID string) error {
	return c.do("DELETE", fmt.Sprintf("/v1/items/%s?device_id=%s", itemID, c.DeviceID), nil, nil)
}

// FetchItems returns the full authoritative item set for a list.
func (c *Client) FetchItems(listID string) ([]models.ListItem, error) {
	var items []models.ListItem
	if err := c.do("GET", fmt.Sprintf("/v1/lists/%s/items", listID), nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// FetchList returns the list record itself.
func (c *Client) FetchList(listID string) (*models.ShoppingList, error) {
	var list models.ShoppingList
	if err := c.do("GET", fmt.Sprintf("/v1/lists/%s", listID), nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// CreateList creates a new shopping list.
func (c *Client) CreateList(name string) (*models.ShoppingList, error) {
	body := map[string]string{"name": name}
	var list models.ShoppingList
	if err := c.do("POST", "/v1/lists", body, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// apiError is the standard error body from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

func (c *Client) do(method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Code != "" {
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
			case http.StatusForbidden:
				return fmt.Errorf("%w: %s", ErrForbidden, apiErr.Message)
			case http.StatusNotFound:
				return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
			default:
				return &apiErr
			}
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
