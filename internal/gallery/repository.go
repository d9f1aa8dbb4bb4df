package gallery

import (
	"context"
	"fmt"

	"github.com/evcraddock/propchain/internal/db"
)

// Repository records image URLs per property.
type Repository struct {
	db *db.DB
}

// NewRepository creates an image repository.
func NewRepository(d *db.DB) *Repository {
	return &Repository{db: d}
}

// Add records an uploaded image.
func (r *Repository) Add(ctx context.Context, propertyID int64, imageURL, description string) (*Image, error) {
	var img Image
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO property_images (property_id, image_url, description) VALUES (?, ?, ?)
		RETURNING id, property_id, image_url, description, created_at`,
		propertyID, imageURL, description,
	).Scan(&img.ID, &img.PropertyID, &img.ImageURL, &img.Description, &img.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting image: %w", err)
	}
	return &img, nil
}

// ListByPropertyID returns a property's images in upload order.
func (r *Repository) ListByPropertyID(ctx context.Context, propertyID int64) (images []*Image, err error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, property_id, image_url, description, created_at FROM property_images WHERE property_id = ? ORDER BY id",
		propertyID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.PropertyID, &img.ImageURL, &img.Description, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning image: %w", err)
		}
		images = append(images, &img)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating images: %w", err)
	}

	return images, nil
}
