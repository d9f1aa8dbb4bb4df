package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/evcraddock/propchain/internal/apperr"
	"github.com/evcraddock/propchain/internal/bid"
	"github.com/evcraddock/propchain/internal/gallery"
	"github.com/evcraddock/propchain/internal/identity"
	"github.com/evcraddock/propchain/internal/property"
	"github.com/evcraddock/propchain/internal/review"
)

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestAPIListProperties(t *testing.T) {
	env := newTestEnv(t)
	env.insertProperty(t, &property.Property{Address: "7760 Fay Ave", Broker: "COMPASS", Available: true})
	env.insertProperty(t, &property.Property{Address: "1 Sold Ct", Broker: "Coldwell", Available: false})

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"all", "", 2},
		{"available only", "?available=true", 1},
		{"search broker", "?q=compass", 1},
		{"search address", "?q=sold", 1},
		{"no match", "?q=nowhere", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := apiRequest(t, env.srv, http.MethodGet, "/api/properties"+tt.query, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			var props []*property.Property
			if err := json.NewDecoder(w.Body).Decode(&props); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(props) != tt.want {
				t.Errorf("got %d properties, want %d", len(props), tt.want)
			}
		})
	}
}

func TestAPIListPropertiesBadFilter(t *testing.T) {
	env := newTestEnv(t)
	w := apiRequest(t, env.srv, http.MethodGet, "/api/properties?available=maybe", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAPIGetProperty(t *testing.T) {
	env := newTestEnv(t)
	p := env.insertProperty(t, &property.Property{Address: "42 Elm St", Available: true})
	ctx := context.Background()

	reviews := review.NewRepository(env.db)
	for _, rating := range []int{4, 5} {
		if _, err := reviews.Add(ctx, p.ID, "someone", rating, "ok"); err != nil {
			t.Fatalf("add review: %v", err)
		}
	}

	w := apiRequest(t, env.srv, http.MethodGet, "/api/properties/"+itoa(p.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Property      *property.Property `json:"property"`
		Reviews       []*review.Review   `json:"reviews"`
		Images        []*gallery.Image   `json:"images"`
		AverageRating float64            `json:"average_rating"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Property.Address != "42 Elm St" {
		t.Errorf("address = %q", resp.Property.Address)
	}
	if len(resp.Reviews) != 2 {
		t.Errorf("reviews = %d, want 2", len(resp.Reviews))
	}
	if resp.Images == nil {
		t.Error("images should be an empty list, not null")
	}
	if resp.AverageRating != 4.5 {
		t.Errorf("average = %v, want 4.5", resp.AverageRating)
	}
}

func TestAPIGetPropertyErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"not found", http.MethodGet, "/api/properties/999", http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/properties/abc", http.StatusBadRequest},
		{"unknown sub-route", http.MethodGet, "/api/properties/1/visits", http.StatusNotFound},
		{"method not allowed", http.MethodDelete, "/api/properties/1", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := apiRequest(t, env.srv, tt.method, tt.path, nil)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestAPIAddReview(t *testing.T) {
	env := newTestEnv(t)
	p := env.insertProperty(t, &property.Property{Available: true})
	path := "/api/properties/" + itoa(p.ID) + "/reviews"

	w := apiRequest(t, env.srv, http.MethodPost, path,
		map[string]any{"rating": 5, "comment": "great light"},
		identity.HeaderUserID, "user_1")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var rv review.Review
	if err := json.NewDecoder(w.Body).Decode(&rv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rv.Author != "user_1" || rv.Rating != 5 {
		t.Errorf("review = %+v", rv)
	}
	if time.Since(rv.Date) > time.Minute {
		t.Errorf("date = %v, want server time", rv.Date)
	}

	w = apiRequest(t, env.srv, http.MethodGet, path, nil)
	var list []*review.Review
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("reviews = %d, want 1", len(list))
	}
}

func TestAPIAddReviewAnonymousAuthor(t *testing.T) {
	env := newTestEnv(t)
	p := env.insertProperty(t, &property.Property{})

	w := apiRequest(t, env.srv, http.MethodPost, "/api/properties/"+itoa(p.ID)+"/reviews",
		map[string]any{"rating": 3, "author": "visitor"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	var rv review.Review
	if err := json.NewDecoder(w.Body).Decode(&rv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rv.Author != "visitor" {
		t.Errorf("author = %q, want visitor", rv.Author)
	}
}

func TestAPIAddReviewValidation(t *testing.T) {
	env := newTestEnv(t)
	p := env.insertProperty(t, &property.Property{})

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"rating too high", "/api/properties/" + itoa(p.ID) + "/reviews", map[string]any{"rating": 6}, http.StatusBadRequest},
		{"rating zero", "/api/properties/" + itoa(p.ID) + "/reviews", map[string]any{"rating": 0}, http.StatusBadRequest},
		{"missing rating", "/api/properties/" + itoa(p.ID) + "/reviews", map[string]any{"comment": "hi"}, http.StatusBadRequest},
		{"unknown property", "/api/properties/999/reviews", map[string]any{"rating": 4}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := apiRequest(t, env.srv, http.MethodPost, tt.path, tt.body)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestAPIUploadImages(t *testing.T) {
	env := newTestEnv(t)
	p := env.insertProperty(t, &property.Property{})
	path := "/api/properties/" + itoa(p.ID) + "/images"

	w := multipartRequest(t, env.srv, path, nil,
		filePart{name: "Front Yard.jpg", data: []byte("\xff\xd8\xff\xe0jpeg")},
		filePart{name: "kitchen.png", data: []byte("\x89PNG\r\n\x1a\n")},
	)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var images []*gallery.Image
	if err := json.NewDecoder(w.Body).Decode(&images); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("images = %d, want 2", len(images))
	}
	if images[0].Description != "Front Yard.jpg" {
		t.Errorf("description = %q", images[0].Description)
	}
	if len(env.objects.keys) != 2 {
		t.Errorf("stored objects = %d, want 2", len(env.objects.keys))
	}

	w = apiRequest(t, env.srv, http.MethodGet, path, nil)
	var listed []*gallery.Image
	if err := json.NewDecoder(w.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 2 {
		t.Errorf("listed = %d, want 2", len(listed))
	}
}

func TestAPIUploadImagesNoFiles(t *testing.T) {
	env := newTestEnv(t)
	p := env.insertProperty(t, &property.Property{})

	w := multipartRequest(t, env.srv, "/api/properties/"+itoa(p.ID)+"/images", map[string]string{"note": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAPIListBids(t *testing.T) {
	env := newTestEnv(t)
	p := env.insertProperty(t, &property.Property{})
	repo := bid.NewRepository(env.db)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, status := range []bid.Status{bid.StatusPlaced, bid.StatusCancelled} {
		_, err := repo.Append(ctx, &bid.Entry{
			PropertyID: p.ID, WalletAddress: "0xB1", Amount: "1000",
			TxHash: "0x" + itoa(int64(i)), Status: status, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	w := apiRequest(t, env.srv, http.MethodGet, "/api/properties/"+itoa(p.ID)+"/bids", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var entries []*bid.Entry
	if err := json.NewDecoder(w.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 || entries[0].Status != bid.StatusCancelled {
		t.Errorf("entries = %+v, want newest first", entries)
	}
}

func TestAPISetAvailability(t *testing.T) {
	env := newTestEnv(t)
	p := env.insertProperty(t, &property.Property{Available: true, OwnerWallet: testOwner})
	path := "/api/properties/" + itoa(p.ID) + "/availability"

	tests := []struct {
		name    string
		body    any
		headers []string
		status  int
		code    string
	}{
		{"anonymous", map[string]bool{"available": false}, nil, http.StatusUnauthorized, "unauthenticated"},
		{"not owner", map[string]bool{"available": false}, []string{identity.HeaderUserID, "u2", identity.HeaderWallet, "0xAb8483F64d9C6d1EcF9b849Ae677dD3315835cb2"}, http.StatusForbidden, "not_owner"},
		{"missing field", map[string]any{}, []string{identity.HeaderUserID, "u1", identity.HeaderWallet, testOwner}, http.StatusBadRequest, "invalid_request"},
		{"owner lower-case wallet", map[string]bool{"available": false}, []string{identity.HeaderUserID, "u1", identity.HeaderWallet, "0x5b38da6a701c568545dcfcb03fcb875f56beddc4"}, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := apiRequest(t, env.srv, http.MethodPut, path, tt.body, tt.headers...)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
			if tt.code != "" {
				if _, code := decodeError(t, w); code != tt.code {
					t.Errorf("code = %q, want %q", code, tt.code)
				}
			}
		})
	}

	got, err := env.props.GetByID(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Available {
		t.Error("expected property to be unavailable")
	}
}

func TestAPIReconcile(t *testing.T) {
	env := newTestEnv(t)
	p := env.insertProperty(t, &property.Property{Available: true})
	path := "/api/properties/" + itoa(p.ID) + "/reconcile"

	w := apiRequest(t, env.srv, http.MethodPost, path, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var res struct {
		PropertyID int64 `json:"property_id"`
		Finalized  bool  `json:"finalized"`
	}
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.PropertyID != p.ID || !res.Finalized {
		t.Errorf("result = %+v", res)
	}

	env.recon.err = apperr.Upstream("ledger_failed", "reading finalization state", errors.New("rpc down"))
	w = apiRequest(t, env.srv, http.MethodPost, path, nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestAPIReconcileWithoutLedger(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Reconciler = nil })
	p := env.insertProperty(t, &property.Property{})

	w := apiRequest(t, env.srv, http.MethodPost, "/api/properties/"+itoa(p.ID)+"/reconcile", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}
