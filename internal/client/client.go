// Package client provides an HTTP client for the propchain REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/evcraddock/propchain/internal/apperr"
	"github.com/evcraddock/propchain/internal/bid"
	"github.com/evcraddock/propchain/internal/bidding"
	"github.com/evcraddock/propchain/internal/gallery"
	"github.com/evcraddock/propchain/internal/identity"
	"github.com/evcraddock/propchain/internal/property"
	"github.com/evcraddock/propchain/internal/review"
	"github.com/evcraddock/propchain/internal/reward"
)

// Client is an HTTP client for the propchain API.
type Client struct {
	baseURL    string
	token      string
	caller     identity.Caller
	httpClient *http.Client
}

// New creates a new API client. token is sent as a bearer token when set.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithCaller returns a copy of c that sends the caller as dev-mode identity
// headers on requests without a token.
func (c *Client) WithCaller(caller identity.Caller) *Client {
	cp := *c
	cp.caller = caller
	return &cp
}

// ShowResponse is the response from GET /api/properties/{id}.
type ShowResponse struct {
	Property      *property.Property `json:"property"`
	Reviews       []*review.Review   `json:"reviews"`
	Images        []*gallery.Image   `json:"images"`
	AverageRating float64            `json:"average_rating"`
}

// ListOptions controls filtering for ListProperties.
type ListOptions struct {
	Search        string
	AvailableOnly bool
}

// ListProperties returns all properties, optionally filtered.
func (c *Client) ListProperties(ctx context.Context, opts ListOptions) ([]*property.Property, error) {
	path := "/api/properties"
	params := url.Values{}
	if opts.Search != "" {
		params.Set("q", opts.Search)
	}
	if opts.AvailableOnly {
		params.Set("available", "true")
	}
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var props []*property.Property
	if err := c.get(ctx, path, &props); err != nil {
		return nil, err
	}
	return props, nil
}

// ShowProperty returns a property with its reviews and images.
func (c *Client) ShowProperty(ctx context.Context, id int64) (*ShowResponse, error) {
	var resp ShowResponse
	if err := c.get(ctx, fmt.Sprintf("/api/properties/%d", id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetProperty returns a single property.
func (c *Client) GetProperty(ctx context.Context, id int64) (*property.Property, error) {
	resp, err := c.ShowProperty(ctx, id)
	if err != nil {
		return nil, err
	}
	if resp.Property == nil {
		return nil, apperr.NotFound("property_not_found", fmt.Sprintf("property %d not found", id))
	}
	return resp.Property, nil
}

// SetAvailability updates a property's availability flag.
func (c *Client) SetAvailability(ctx context.Context, id int64, available bool) error {
	body := map[string]bool{"available": available}
	return c.send(ctx, http.MethodPut, fmt.Sprintf("/api/properties/%d/availability", id), body, nil)
}

// Reconcile asks the server to re-derive availability from the chain.
func (c *Client) Reconcile(ctx context.Context, id int64) (*bidding.ReconcileResult, error) {
	var res bidding.ReconcileResult
	if err := c.send(ctx, http.MethodPost, fmt.Sprintf("/api/properties/%d/reconcile", id), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SubmitReview adds a review and returns the server's review list afterwards.
func (c *Client) SubmitReview(ctx context.Context, id int64, rating int, text string) ([]*review.Review, error) {
	body := map[string]any{"rating": rating, "comment": text}
	if err := c.send(ctx, http.MethodPost, fmt.Sprintf("/api/properties/%d/reviews", id), body, nil); err != nil {
		return nil, err
	}
	return c.ListReviews(ctx, id)
}

// ListReviews returns reviews for a property.
func (c *Client) ListReviews(ctx context.Context, id int64) ([]*review.Review, error) {
	var reviews []*review.Review
	if err := c.get(ctx, fmt.Sprintf("/api/properties/%d/reviews", id), &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// ListImages returns images for a property.
func (c *Client) ListImages(ctx context.Context, id int64) ([]*gallery.Image, error) {
	var images []*gallery.Image
	if err := c.get(ctx, fmt.Sprintf("/api/properties/%d/images", id), &images); err != nil {
		return nil, err
	}
	return images, nil
}

// UploadImages uploads files to a property's gallery.
func (c *Client) UploadImages(ctx context.Context, id int64, uploads []gallery.Upload) ([]*gallery.Image, error) {
	parts := make([]filePart, 0, len(uploads))
	for _, u := range uploads {
		parts = append(parts, filePart{field: "file", name: u.Name, data: u.Data})
	}

	var images []*gallery.Image
	if err := c.postMultipart(ctx, fmt.Sprintf("/api/properties/%d/images", id), nil, parts, &images); err != nil {
		return nil, err
	}
	return images, nil
}

// ListBids returns a property's bid history, newest first.
func (c *Client) ListBids(ctx context.Context, id int64) ([]*bid.Entry, error) {
	var entries []*bid.Entry
	if err := c.get(ctx, fmt.Sprintf("/api/properties/%d/bids", id), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// AddCoins grants coins to a user.
func (c *Client) AddCoins(ctx context.Context, userID string) (*reward.CoinsResult, error) {
	var res reward.CoinsResult
	if err := c.send(ctx, http.MethodPost, "/api/add-coins", map[string]string{"userId": userID}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// TransferCoins moves coins between users.
func (c *Client) TransferCoins(ctx context.Context, req reward.TransferRequest) (*reward.TransferResult, error) {
	var res reward.TransferResult
	if err := c.send(ctx, http.MethodPost, "/api/transfer-coins", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// UploadReward uploads a photo and returns the user's new balance.
func (c *Client) UploadReward(ctx context.Context, userID, name string, photo []byte) (*reward.UploadResult, error) {
	fields := map[string]string{"userId": userID}
	parts := []filePart{{field: "file", name: name, data: photo}}

	var res reward.UploadResult
	if err := c.postMultipart(ctx, "/api/upload-reward", fields, parts, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Health checks that the server is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

// get performs a GET request and decodes the response.
func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, result)
}

// send performs a request with an optional JSON body and decodes the response.
func (c *Client) send(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, result)
}

type filePart struct {
	field string
	name  string
	data  []byte
}

// postMultipart performs a multipart/form-data POST.
func (c *Client) postMultipart(ctx context.Context, path string, fields map[string]string, files []filePart, result any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("writing field %s: %w", k, err)
		}
	}
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.name)
		if err != nil {
			return fmt.Errorf("creating form file: %w", err)
		}
		if _, err := fw.Write(f.data); err != nil {
			return fmt.Errorf("writing form file: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return c.do(req, result)
}

// do executes an HTTP request with identity headers and handles errors.
func (c *Client) do(req *http.Request, result any) error {
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.caller.ID != "":
		req.Header.Set(identity.HeaderUserID, c.caller.ID)
		if c.caller.Wallet != "" {
			req.Header.Set(identity.HeaderWallet, c.caller.Wallet)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Warn("closing response body", "error", cerr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return apperr.FromStatus(resp.StatusCode, errResp.Code, errResp.Error)
		}
		return apperr.FromStatus(resp.StatusCode, "", "server error: "+http.StatusText(resp.StatusCode))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
