// Package geo extracts photo coordinates and resolves them to place names.
package geo

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/rwcarlsen/goexif/exif"
)

// ErrNoGPS means the image carries no usable GPS coordinates.
var ErrNoGPS = errors.New("no GPS data found in the photo")

// Coordinates is a WGS84 position in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Extract reads GPS coordinates from an image's EXIF block.
func Extract(data []byte) (Coordinates, error) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return Coordinates{}, fmt.Errorf("%w: %v", ErrNoGPS, err)
	}

	lat, lon, err := x.LatLong()
	if err != nil {
		return Coordinates{}, fmt.Errorf("%w: %v", ErrNoGPS, err)
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || math.Abs(lat) > 90 || math.Abs(lon) > 180 {
		return Coordinates{}, ErrNoGPS
	}

	return Coordinates{Lat: lat, Lon: lon}, nil
}
