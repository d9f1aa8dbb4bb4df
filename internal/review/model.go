// Package review stores property reviews.
package review

import (
	"math"
	"time"
)

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// Review is a rating and comment left on a property. Reviews are append-only.
type Review struct {
	ID         int64     `json:"id"`
	PropertyID int64     `json:"property_id"`
	Author     string    `json:"author"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	Date       time.Time `json:"date"`
}

// Average returns the mean rating rounded to one decimal place, or 0 for no reviews.
func Average(reviews []*Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return math.Round(float64(sum)/float64(len(reviews))*10) / 10
}
