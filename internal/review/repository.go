package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/evcraddock/propchain/internal/apperr"
	"github.com/evcraddock/propchain/internal/db"
)

// Repository provides data access for reviews.
type Repository struct {
	db  *db.DB
	now func() time.Time
}

// NewRepository creates a review repository.
func NewRepository(d *db.DB) *Repository {
	return &Repository{db: d, now: time.Now}
}

// Add appends a review with a server-generated date.
// Callers check that the property exists.
func (r *Repository) Add(ctx context.Context, propertyID int64, author string, rating int, comment string) (*Review, error) {
	if rating < MinRating || rating > MaxRating {
		return nil, apperr.Validation("invalid_rating",
			fmt.Sprintf("rating must be %d-%d, got %d", MinRating, MaxRating, rating))
	}

	rv := &Review{
		PropertyID: propertyID,
		Author:     strings.TrimSpace(author),
		Rating:     rating,
		Comment:    strings.TrimSpace(comment),
		Date:       r.now().UTC().Truncate(time.Second),
	}

	err := r.db.QueryRowContext(ctx,
		"INSERT INTO reviews (property_id, author, rating, comment, date) VALUES (?, ?, ?, ?, ?) RETURNING id",
		rv.PropertyID, rv.Author, rv.Rating, rv.Comment, rv.Date,
	).Scan(&rv.ID)
	if err != nil {
		return nil, fmt.Errorf("inserting review: %w", err)
	}

	return rv, nil
}

// ListByPropertyID returns all reviews for a property, oldest first.
func (r *Repository) ListByPropertyID(ctx context.Context, propertyID int64) (reviews []*Review, err error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, property_id, author, rating, comment, date FROM reviews WHERE property_id = ? ORDER BY date, id",
		propertyID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing reviews: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		var rv Review
		if err := rows.Scan(&rv.ID, &rv.PropertyID, &rv.Author, &rv.Rating, &rv.Comment, &rv.Date); err != nil {
			return nil, fmt.Errorf("scanning review: %w", err)
		}
		reviews = append(reviews, &rv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reviews: %w", err)
	}

	return reviews, nil
}
