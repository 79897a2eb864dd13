// Package shopdir is the HTTP adapter for the external shop directory
// service, used to resolve which shops a user owns.
package shopdir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

var (
	// ErrDirectoryUnavailable covers transport failures and non-success
	// responses from the directory service.
	ErrDirectoryUnavailable = errors.New("shopdir: shop directory unavailable")
	// ErrNoShopsFound means the directory answered but the owner has no
	// shops. The API surfaces this as the same denial as
	// ErrDirectoryUnavailable; keep them separate internally for logging.
	ErrNoShopsFound = errors.New("shopdir: no shops found for owner")
)

// Shop is a shop record as returned by the directory service.
type Shop struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Client calls the shop directory over HTTP with a bounded timeout.
// The caller's own bearer credential is forwarded unchanged; this service
// never re-signs or substitutes credentials.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a directory client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ListOwnedShops returns the shops owned by the given user, in directory
// order. The order matters: product creation picks the first shop when an
// owner has several, with no way for the caller to choose a different one.
func (c *Client) ListOwnedShops(ctx context.Context, ownerID int64, credential string) ([]Shop, error) {
	reqURL := c.baseURL + "?owner_id=" + url.QueryEscape(strconv.FormatInt(ownerID, 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrDirectoryUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: directory returned status %d", ErrDirectoryUnavailable, resp.StatusCode)
	}

	shops, err := decodeShops(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrDirectoryUnavailable, err)
	}
	if len(shops) == 0 {
		return nil, ErrNoShopsFound
	}
	return shops, nil
}

// decodeShops accepts both response shapes the directory is known to emit:
// a bare JSON list of shops, or a paginated envelope with a "results" list.
func decodeShops(resp *http.Response) ([]Shop, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	var shops []Shop
	if err := json.Unmarshal(raw, &shops); err == nil {
		return shops, nil
	}

	var envelope struct {
		Results []Shop `json:"results"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	return envelope.Results, nil
}
