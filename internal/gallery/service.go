package gallery

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/evcraddock/propchain/internal/apperr"
)

// Service uploads images and records them against a property.
type Service struct {
	repo  *Repository
	store ObjectStore
}

// NewService creates a gallery service.
func NewService(repo *Repository, store ObjectStore) *Service {
	return &Service{repo: repo, store: store}
}

// List returns the images recorded for a property.
func (s *Service) List(ctx context.Context, propertyID int64) ([]*Image, error) {
	return s.repo.ListByPropertyID(ctx, propertyID)
}

// Upload stores each file under {propertyID}/ and records its public URL
// with the original file name as the description. It stops at the first failure;
// images stored before it stay recorded.
func (s *Service) Upload(ctx context.Context, propertyID int64, uploads []Upload) ([]*Image, error) {
	if len(uploads) == 0 {
		return nil, apperr.Validation("missing_fields", "at least one file is required")
	}
	if s.store == nil {
		return nil, apperr.Upstream("storage_unavailable", "image storage is not configured", nil)
	}

	images := make([]*Image, 0, len(uploads))
	for _, u := range uploads {
		if len(u.Data) == 0 {
			return images, apperr.Validation("empty_file", fmt.Sprintf("file %q is empty", u.Name))
		}

		contentType := u.ContentType
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = http.DetectContentType(u.Data)
		}

		key := ObjectKey(propertyID, u.Name)
		url, err := s.store.Put(ctx, key, u.Data, contentType)
		if err != nil {
			return images, apperr.Upstream("storage_failed", "uploading image", err)
		}

		img, err := s.repo.Add(ctx, propertyID, url, u.Name)
		if err != nil {
			return images, fmt.Errorf("recording image: %w", err)
		}
		slog.Info("image uploaded", "property_id", propertyID, "key", key)
		images = append(images, img)
	}

	return images, nil
}

// ObjectKey builds a unique object key for a property image.
func ObjectKey(propertyID int64, name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	base := slug.Make(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)))
	if base == "" {
		base = "image"
	}
	return fmt.Sprintf("%d/%s-%s%s", propertyID, uuid.NewString(), base, ext)
}
