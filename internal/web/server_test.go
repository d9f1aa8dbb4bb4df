package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/evcraddock/propchain/internal/bid"
	"github.com/evcraddock/propchain/internal/bidding"
	"github.com/evcraddock/propchain/internal/db"
	"github.com/evcraddock/propchain/internal/gallery"
	"github.com/evcraddock/propchain/internal/identity"
	"github.com/evcraddock/propchain/internal/property"
	"github.com/evcraddock/propchain/internal/review"
	"github.com/evcraddock/propchain/internal/reward"
)

const testOwner = "0x5B38Da6a701c568545dCfcB03FcB875f56beddC4"

type fakeObjectStore struct {
	keys []string
}

func (f *fakeObjectStore) Put(_ context.Context, key string, _ []byte, _ string) (string, error) {
	f.keys = append(f.keys, key)
	return "https://cdn.example.com/property-images/" + key, nil
}

type fakeReconciler struct {
	result *bidding.ReconcileResult
	err    error
}

func (f *fakeReconciler) Reconcile(_ context.Context, id int64) (*bidding.ReconcileResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	res.PropertyID = id
	return &res, nil
}

type testEnv struct {
	srv     *Server
	db      *db.DB
	props   *property.Repository
	users   *identity.SQLStore
	objects *fakeObjectStore
	recon   *fakeReconciler
}

func newTestEnv(t *testing.T, mutate ...func(*Deps)) *testEnv {
	t.Helper()
	d, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if cerr := d.Close(); cerr != nil {
			t.Errorf("close db: %v", cerr)
		}
	})

	env := &testEnv{
		db:      d,
		props:   property.NewRepository(d),
		users:   identity.NewSQLStore(d),
		objects: &fakeObjectStore{},
		recon:   &fakeReconciler{result: &bidding.ReconcileResult{Finalized: true, Changed: true}},
	}

	deps := Deps{
		Properties: env.props,
		Reviews:    review.NewRepository(d),
		Gallery:    gallery.NewService(gallery.NewRepository(d), env.objects),
		Bids:       bid.NewRepository(d),
		Rewards:    reward.NewService(env.users, reward.Options{}),
		Reconciler: env.recon,
		DevMode:    true,
	}
	for _, m := range mutate {
		m(&deps)
	}
	env.srv = NewServer(deps)
	return env
}

func (e *testEnv) insertProperty(t *testing.T, p *property.Property) *property.Property {
	t.Helper()
	if p.Address == "" {
		p.Address = "1 Test Way"
	}
	saved, err := e.props.Insert(context.Background(), p)
	if err != nil {
		t.Fatalf("insert property: %v", err)
	}
	return saved
}

func (e *testEnv) createUser(t *testing.T, id, username string, coins int64) {
	t.Helper()
	ctx := context.Background()
	u, err := e.users.Create(ctx, id, username)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if coins > 0 {
		if err := e.users.UpdateMetadata(ctx, id, u.MetadataWithCoins(coins)); err != nil {
			t.Fatalf("set coins: %v", err)
		}
	}
}

// apiRequest sends a JSON request. headers are key/value pairs.
func apiRequest(t *testing.T, srv http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	reqBody := &bytes.Buffer{}
	if body != nil {
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}

	r := httptest.NewRequest(method, path, reqBody)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		r.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	return w
}

type filePart struct {
	name string
	data []byte
}

func multipartRequest(t *testing.T, srv http.Handler, path string, fields map[string]string, files ...filePart) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile("file", f.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(f.data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	r := httptest.NewRequest(http.MethodPost, path, &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) (msg, code string) {
	t.Helper()
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error, body.Code
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := apiRequest(t, env.srv, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.CORSOrigins = []string{"http://localhost:3000"} })

	r := httptest.NewRequest(http.MethodOptions, "/api/add-coins", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	env.srv.ServeHTTP(w, r)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allow origin = %q", got)
	}
}

func TestBearerTokenIdentity(t *testing.T) {
	const secret = "test-secret"
	env := newTestEnv(t, func(d *Deps) {
		d.Verifier = identity.NewVerifier(secret)
		d.DevMode = false
	})
	p := env.insertProperty(t, &property.Property{Available: true, OwnerWallet: testOwner})

	token, err := identity.IssueToken(secret, identity.Caller{ID: "user_owner", Wallet: testOwner}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	path := "/api/properties/" + itoa(p.ID) + "/availability"
	w := apiRequest(t, env.srv, http.MethodPut, path, map[string]bool{"available": false}, "Authorization", "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	w = apiRequest(t, env.srv, http.MethodPut, path, map[string]bool{"available": true}, "Authorization", "Bearer not-a-token")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", w.Code)
	}

	// Dev headers are ignored once a verifier is configured.
	w = apiRequest(t, env.srv, http.MethodPut, path, map[string]bool{"available": true}, identity.HeaderUserID, "user_owner", identity.HeaderWallet, testOwner)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("dev header status = %d, want 401", w.Code)
	}
}

func TestRecoverPanic(t *testing.T) {
	h := recoverPanic(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- env.srv.ListenAndServe(ctx, 0) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
