package gallery

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/evcraddock/propchain/internal/apperr"
	"github.com/evcraddock/propchain/internal/db"
	"github.com/evcraddock/propchain/internal/property"
)

type fakeStore struct {
	keys  []string
	types []string
	err   error
}

func (f *fakeStore) Put(_ context.Context, key string, _ []byte, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	f.types = append(f.types, contentType)
	return "https://cdn.example.com/property-images/" + key, nil
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000000000")

func TestUploadRecordsImages(t *testing.T) {
	svc, store, propID := testSetup(t)
	ctx := context.Background()

	images, err := svc.Upload(ctx, propID, []Upload{
		{Name: "Front Porch.JPG", ContentType: "image/jpeg", Data: []byte("jpeg-bytes")},
		{Name: "yard.png", Data: pngHeader},
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("got %d images, want 2", len(images))
	}
	if images[0].Description != "Front Porch.JPG" {
		t.Errorf("description = %q, want file name", images[0].Description)
	}
	if !strings.HasSuffix(images[0].ImageURL, store.keys[0]) {
		t.Errorf("url %q does not end with key %q", images[0].ImageURL, store.keys[0])
	}
	if store.types[1] != "image/png" {
		t.Errorf("detected content type = %q, want image/png", store.types[1])
	}

	listed, err := svc.List(ctx, propID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 {
		t.Errorf("listed %d images, want 2", len(listed))
	}
}

func TestUploadValidation(t *testing.T) {
	svc, store, propID := testSetup(t)

	if _, err := svc.Upload(context.Background(), propID, nil); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("no files: expected validation error, got %v", err)
	}
	if _, err := svc.Upload(context.Background(), propID, []Upload{{Name: "empty.jpg"}}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("empty file: expected validation error, got %v", err)
	}
	if len(store.keys) != 0 {
		t.Errorf("expected no stored objects, got %d", len(store.keys))
	}
}

func TestUploadStoreFailure(t *testing.T) {
	svc, store, propID := testSetup(t)
	store.err = errors.New("bucket offline")

	_, err := svc.Upload(context.Background(), propID, []Upload{{Name: "a.jpg", Data: []byte("x")}})
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	images, err := svc.List(context.Background(), propID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(images) != 0 {
		t.Errorf("expected nothing recorded, got %d", len(images))
	}
}

func TestObjectKey(t *testing.T) {
	pattern := regexp.MustCompile(`^7/[0-9a-f-]{36}-front-porch\.jpg$`)
	key := ObjectKey(7, "Front Porch.JPG")
	if !pattern.MatchString(key) {
		t.Errorf("key %q does not match %s", key, pattern)
	}

	if key2 := ObjectKey(7, "Front Porch.JPG"); key2 == key {
		t.Error("expected unique keys for the same name")
	}

	if key := ObjectKey(3, "!!!.png"); !strings.HasSuffix(key, "-image.png") {
		t.Errorf("key %q: expected fallback base name", key)
	}
}

func TestS3StorePut(t *testing.T) {
	var gotPath, gotACL, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		gotPath = r.URL.Path
		gotACL = r.Header.Get("X-Amz-Acl")
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := NewS3Store(S3Config{
		Endpoint:  srv.URL,
		Region:    "us-east-1",
		Bucket:    "property-images",
		AccessKey: "test",
		SecretKey: "test",
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	url, err := store.Put(context.Background(), "1/abc-porch.jpg", []byte("jpeg"), "image/jpeg")
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	if gotPath != "/property-images/1/abc-porch.jpg" {
		t.Errorf("path = %q", gotPath)
	}
	if gotACL != "public-read" {
		t.Errorf("acl = %q, want public-read", gotACL)
	}
	if gotType != "image/jpeg" {
		t.Errorf("content type = %q", gotType)
	}
	if gotBody != "jpeg" {
		t.Errorf("body = %q", gotBody)
	}
	if url != srv.URL+"/property-images/1/abc-porch.jpg" {
		t.Errorf("url = %q", url)
	}
}

func TestPublicBaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  S3Config
		want string
	}{
		{"explicit", S3Config{PublicBaseURL: "https://cdn.example.com/imgs/", Bucket: "b"}, "https://cdn.example.com/imgs"},
		{"endpoint", S3Config{Endpoint: "http://minio:9000", Bucket: "property-images"}, "http://minio:9000/property-images"},
		{"aws", S3Config{Bucket: "property-images", Region: "us-west-2"}, "https://property-images.s3.us-west-2.amazonaws.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := publicBaseURL(tt.cfg); got != tt.want {
				t.Errorf("publicBaseURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func testSetup(t *testing.T) (*Service, *fakeStore, int64) {
	t.Helper()
	d, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})

	p, err := property.NewRepository(d).Insert(context.Background(), &property.Property{Address: "5 Gallery Ct"})
	if err != nil {
		t.Fatalf("insert property: %v", err)
	}

	store := &fakeStore{}
	return NewService(NewRepository(d), store), store, p.ID
}
