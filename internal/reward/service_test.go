package reward

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/evcraddock/propchain/internal/apperr"
	"github.com/evcraddock/propchain/internal/events"
	"github.com/evcraddock/propchain/internal/geo"
	"github.com/evcraddock/propchain/internal/identity"
)

// memStore is an in-memory identity.Store with failure injection.
type memStore struct {
	mu     sync.Mutex
	users  map[string]map[string]any
	names  map[string]string
	writes int

	// failWrite, when set, decides whether the nth write (1-based) fails.
	failWrite func(n int, id string) error
}

func newMemStore() *memStore {
	return &memStore{users: map[string]map[string]any{}, names: map[string]string{}}
}

func (m *memStore) add(id, username string, coins any) {
	md := map[string]any{}
	if coins != nil {
		md["coins"] = coins
	}
	m.users[id] = md
	m.names[username] = id
}

func (m *memStore) coins(id string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &identity.User{ID: id, Metadata: m.users[id]}
	return u.Coins()
}

func (m *memStore) GetUser(_ context.Context, id string) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	md, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user_not_found", "user not found")
	}
	cp := make(map[string]any, len(md))
	for k, v := range md {
		cp[k] = v
	}
	return &identity.User{ID: id, Metadata: cp}, nil
}

func (m *memStore) FindByUsername(ctx context.Context, username string) (*identity.User, error) {
	m.mu.Lock()
	id, ok := m.names[username]
	m.mu.Unlock()
	if !ok {
		return nil, apperr.NotFound("user_not_found", "user not found")
	}
	u, err := m.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Username = username
	return u, nil
}

func (m *memStore) UpdateMetadata(_ context.Context, id string, md map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.failWrite != nil {
		if err := m.failWrite(m.writes, id); err != nil {
			return err
		}
	}
	if _, ok := m.users[id]; !ok {
		return apperr.NotFound("user_not_found", "user not found")
	}
	m.users[id] = md
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingPublisher) Publish(_ context.Context, _, eventType string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	return nil
}

type fakeLocator struct {
	location string
	err      error
}

func (f fakeLocator) Locate(context.Context, []byte) (string, error) {
	return f.location, f.err
}

var photo = []byte("jpeg-bytes")

func TestTransferMovesCoins(t *testing.T) {
	store := newMemStore()
	store.add("user_a", "alice", float64(50))
	store.add("user_b", "bob", float64(10))
	svc := NewService(store, Options{})

	res, err := svc.TransferCoins(context.Background(), TransferRequest{SenderUserID: "user_a", ReceiverUsername: "bob", Amount: 30})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !res.Success || res.SenderCoins != 20 {
		t.Errorf("result = %+v, want success with 20", res)
	}
	if got := store.coins("user_a"); got != 20 {
		t.Errorf("sender coins = %d, want 20", got)
	}
	if got := store.coins("user_b"); got != 40 {
		t.Errorf("receiver coins = %d, want 40", got)
	}
}

func TestTransferConservesTotal(t *testing.T) {
	for _, amount := range []int64{1, 7, 25, 50} {
		t.Run(fmt.Sprint(amount), func(t *testing.T) {
			store := newMemStore()
			store.add("user_a", "alice", float64(50))
			store.add("user_b", "bob", "3")
			svc := NewService(store, Options{})

			if _, err := svc.TransferCoins(context.Background(), TransferRequest{SenderUserID: "user_a", ReceiverUsername: "bob", Amount: amount}); err != nil {
				t.Fatalf("transfer: %v", err)
			}
			if got := store.coins("user_a"); got != 50-amount {
				t.Errorf("sender = %d, want %d", got, 50-amount)
			}
			if got := store.coins("user_b"); got != 3+amount {
				t.Errorf("receiver = %d, want %d", got, 3+amount)
			}
		})
	}
}

func TestTransferInsufficientLeavesBalances(t *testing.T) {
	store := newMemStore()
	store.add("user_a", "alice", float64(20))
	store.add("user_b", "bob", float64(10))
	svc := NewService(store, Options{})

	_, err := svc.TransferCoins(context.Background(), TransferRequest{SenderUserID: "user_a", ReceiverUsername: "bob", Amount: 21})
	if !apperr.Is(err, apperr.KindInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if apperr.Status(err) != 400 {
		t.Errorf("status = %d, want 400", apperr.Status(err))
	}
	if store.writes != 0 {
		t.Errorf("writes = %d, want 0", store.writes)
	}
	if store.coins("user_a") != 20 || store.coins("user_b") != 10 {
		t.Error("balances changed")
	}
}

func TestTransferUnknownReceiver(t *testing.T) {
	store := newMemStore()
	store.add("user_a", "alice", float64(50))
	svc := NewService(store, Options{})

	_, err := svc.TransferCoins(context.Background(), TransferRequest{SenderUserID: "user_a", ReceiverUsername: "nobody", Amount: 5})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if apperr.CodeOf(err) != "receiver_not_found" {
		t.Errorf("code = %q, want receiver_not_found", apperr.CodeOf(err))
	}
	if store.writes != 0 || store.coins("user_a") != 50 {
		t.Error("expected no balance change")
	}
}

func TestTransferValidation(t *testing.T) {
	store := newMemStore()
	store.add("user_a", "alice", float64(50))
	svc := NewService(store, Options{})

	tests := []struct {
		name string
		req  TransferRequest
		code string
	}{
		{"missing sender", TransferRequest{ReceiverUsername: "bob", Amount: 1}, "missing_fields"},
		{"missing receiver", TransferRequest{SenderUserID: "user_a", Amount: 1}, "missing_fields"},
		{"zero amount", TransferRequest{SenderUserID: "user_a", ReceiverUsername: "bob"}, "missing_fields"},
		{"negative amount", TransferRequest{SenderUserID: "user_a", ReceiverUsername: "bob", Amount: -5}, "invalid_amount"},
		{"self transfer", TransferRequest{SenderUserID: "user_a", ReceiverUsername: "alice", Amount: 5}, "self_transfer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.TransferCoins(context.Background(), tt.req)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if apperr.CodeOf(err) != tt.code {
				t.Errorf("code = %q, want %q", apperr.CodeOf(err), tt.code)
			}
		})
	}
	if store.writes != 0 {
		t.Errorf("writes = %d, want 0", store.writes)
	}
}

func TestTransferUnknownSender(t *testing.T) {
	store := newMemStore()
	store.add("user_b", "bob", float64(10))
	svc := NewService(store, Options{})

	_, err := svc.TransferCoins(context.Background(), TransferRequest{SenderUserID: "ghost", ReceiverUsername: "bob", Amount: 5})
	if apperr.CodeOf(err) != "sender_not_found" {
		t.Errorf("code = %q, want sender_not_found (err %v)", apperr.CodeOf(err), err)
	}
}

func TestTransferCompensatesFailedCredit(t *testing.T) {
	store := newMemStore()
	store.add("user_a", "alice", float64(50))
	store.add("user_b", "bob", float64(10))
	store.failWrite = func(n int, id string) error {
		if id == "user_b" {
			return errors.New("identity provider timeout")
		}
		return nil
	}
	svc := NewService(store, Options{})

	_, err := svc.TransferCoins(context.Background(), TransferRequest{SenderUserID: "user_a", ReceiverUsername: "bob", Amount: 30})
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if apperr.CodeOf(err) != "identity_store" {
		t.Errorf("code = %q, want identity_store", apperr.CodeOf(err))
	}
	if got := store.coins("user_a"); got != 50 {
		t.Errorf("sender coins = %d, want 50 after refund", got)
	}
	if got := store.coins("user_b"); got != 10 {
		t.Errorf("receiver coins = %d, want 10", got)
	}
}

func TestTransferCompensationFailure(t *testing.T) {
	store := newMemStore()
	store.add("user_a", "alice", float64(50))
	store.add("user_b", "bob", float64(10))
	store.failWrite = func(n int, id string) error {
		if n > 1 {
			return errors.New("identity provider down")
		}
		return nil
	}
	svc := NewService(store, Options{})

	_, err := svc.TransferCoins(context.Background(), TransferRequest{SenderUserID: "user_a", ReceiverUsername: "bob", Amount: 30})
	if apperr.CodeOf(err) != "transfer_compensation_failed" {
		t.Fatalf("code = %q, want transfer_compensation_failed (err %v)", apperr.CodeOf(err), err)
	}
	if apperr.Status(err) != 500 {
		t.Errorf("status = %d, want 500", apperr.Status(err))
	}
}

func TestUploadRewardFromZero(t *testing.T) {
	store := newMemStore()
	store.add("user_a", "alice", nil)
	svc := NewService(store, Options{})

	res, err := svc.UploadReward(context.Background(), "user_a", photo)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !res.Success || res.Coins != 10 {
		t.Errorf("result = %+v, want success with 10", res)
	}
	if res.Location != "" {
		t.Errorf("location = %q, want empty without geotagging", res.Location)
	}
}

func TestUploadRewardMissingFields(t *testing.T) {
	store := newMemStore()
	store.add("user_a", "alice", float64(5))
	svc := NewService(store, Options{})

	tests := []struct {
		name   string
		userID string
		photo  []byte
	}{
		{"no file", "user_a", nil},
		{"no user", "", photo},
		{"neither", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UploadReward(context.Background(), tt.userID, tt.photo)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if store.writes != 0 {
		t.Errorf("writes = %d, want 0", store.writes)
	}
}

func TestUploadRewardEmptyFile(t *testing.T) {
	store := newMemStore()
	store.add("user_a", "alice", float64(5))
	svc := NewService(store, Options{})

	res, err := svc.UploadReward(context.Background(), "user_a", []byte{})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.Coins != 15 {
		t.Errorf("coins = %d, want 15", res.Coins)
	}
}

func TestUploadRewardGeotagging(t *testing.T) {
	tests := []struct {
		name     string
		locator  fakeLocator
		wantCode string
		wantLoc  string
	}{
		{"located", fakeLocator{location: "La Jolla, California"}, "", "La Jolla, California"},
		{"unknown location", fakeLocator{location: geo.UnknownLocation}, "", geo.UnknownLocation},
		{"no gps", fakeLocator{err: geo.ErrNoGPS}, "no_gps_data", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.add("user_a", "alice", float64(0))
			svc := NewService(store, Options{Locator: tt.locator})

			res, err := svc.UploadReward(context.Background(), "user_a", photo)
			if tt.wantCode != "" {
				if apperr.CodeOf(err) != tt.wantCode {
					t.Fatalf("code = %q, want %q", apperr.CodeOf(err), tt.wantCode)
				}
				if store.writes != 0 {
					t.Errorf("writes = %d, want 0", store.writes)
				}
				return
			}
			if err != nil {
				t.Fatalf("upload: %v", err)
			}
			if res.Location != tt.wantLoc {
				t.Errorf("location = %q, want %q", res.Location, tt.wantLoc)
			}
		})
	}
}

func TestAddCoinsAccumulates(t *testing.T) {
	store := newMemStore()
	store.add("user_a", "alice", float64(7))
	svc := NewService(store, Options{})

	const n = 5
	for i := 0; i < n; i++ {
		if _, err := svc.AddCoins(context.Background(), "user_a"); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if got := store.coins("user_a"); got != 7+100*n {
		t.Errorf("coins = %d, want %d", got, 7+100*n)
	}
}

func TestAddCoinsErrors(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, Options{})

	if _, err := svc.AddCoins(context.Background(), " "); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("blank id: expected validation error, got %v", err)
	}
	if _, err := svc.AddCoins(context.Background(), "ghost"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("unknown user: expected not found, got %v", err)
	}

	store.add("user_a", "alice", float64(1))
	store.failWrite = func(int, string) error { return errors.New("boom") }
	_, err := svc.AddCoins(context.Background(), "user_a")
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Errorf("write failure: expected upstream error, got %v", err)
	}
}

func TestMetadataPreserved(t *testing.T) {
	store := newMemStore()
	store.add("user_a", "alice", float64(1))
	store.users["user_a"]["theme"] = "dark"
	svc := NewService(store, Options{})

	if _, err := svc.AddCoins(context.Background(), "user_a"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if store.users["user_a"]["theme"] != "dark" {
		t.Error("expected unrelated metadata preserved")
	}
}

func TestEventsPublished(t *testing.T) {
	store := newMemStore()
	store.add("user_a", "alice", float64(50))
	store.add("user_b", "bob", float64(0))
	pub := &recordingPublisher{}
	svc := NewService(store, Options{Publisher: pub})

	if _, err := svc.AddCoins(context.Background(), "user_a"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.TransferCoins(context.Background(), TransferRequest{SenderUserID: "user_a", ReceiverUsername: "bob", Amount: 10}); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	want := []string{events.CoinsUpdated, events.CoinsUpdated, events.CoinsUpdated, events.CoinsTransferred}
	if len(pub.events) != len(want) {
		t.Fatalf("events = %v, want %v", pub.events, want)
	}
	for i := range want {
		if pub.events[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, pub.events[i], want[i])
		}
	}
}

func TestTransferBalanceOverflow(t *testing.T) {
	store := newMemStore()
	store.add("user_a", "alice", float64(50))
	store.add("user_b", "bob", int64(math.MaxInt64-5))
	svc := NewService(store, Options{})

	_, err := svc.TransferCoins(context.Background(), TransferRequest{
		SenderUserID: "user_a", ReceiverUsername: "bob", Amount: 30,
	})
	if apperr.CodeOf(err) != "balance_overflow" {
		t.Fatalf("code = %q, want balance_overflow (err %v)", apperr.CodeOf(err), err)
	}
	if apperr.Status(err) != 400 {
		t.Errorf("status = %d, want 400", apperr.Status(err))
	}
	if store.writes != 0 {
		t.Errorf("writes = %d, want 0", store.writes)
	}
	if got := store.coins("user_a"); got != 50 {
		t.Errorf("sender coins = %d, want 50", got)
	}
}

func TestAddCoinsBalanceOverflow(t *testing.T) {
	tests := []struct {
		name  string
		coins any
	}{
		{"near max", int64(math.MaxInt64 - 50)},
		{"beyond int64", float64(1e19)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.add("user_a", "alice", tt.coins)
			svc := NewService(store, Options{})

			res, err := svc.AddCoins(context.Background(), "user_a")
			if apperr.CodeOf(err) != "balance_overflow" {
				t.Fatalf("code = %q, want balance_overflow (result %+v)", apperr.CodeOf(err), res)
			}
			if store.writes != 0 {
				t.Errorf("writes = %d, want 0", store.writes)
			}
		})
	}
}
