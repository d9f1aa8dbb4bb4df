// Package gallery stores property images in object storage and records their URLs.
package gallery

import "time"

// Image is an uploaded property photo.
type Image struct {
	ID          int64     `json:"id"`
	PropertyID  int64     `json:"property_id"`
	ImageURL    string    `json:"image_url"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Upload is one file to store.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}
