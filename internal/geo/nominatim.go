package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultNominatimURL = "https://nominatim.openstreetmap.org/reverse"
	userAgent           = "propchain/1.0"

	// UnknownLocation is reported when a place name cannot be resolved.
	UnknownLocation = "Unknown Location"
)

// Geocoder resolves coordinates to a place name via Nominatim.
type Geocoder struct {
	httpClient *http.Client

	// Overridable for testing.
	reverseURL string
}

// NewGeocoder creates a reverse geocoder. An empty URL uses the public Nominatim service.
func NewGeocoder(reverseURL string) *Geocoder {
	if reverseURL == "" {
		reverseURL = defaultNominatimURL
	}
	return &Geocoder{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		reverseURL: reverseURL,
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// Reverse returns the display name for a position.
func (g *Geocoder) Reverse(ctx context.Context, c Coordinates) (name string, err error) {
	params := url.Values{
		"format": {"json"},
		"lat":    {strconv.FormatFloat(c.Lat, 'f', -1, 64)},
		"lon":    {strconv.FormatFloat(c.Lon, 'f', -1, 64)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.reverseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing body: %w", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var result reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if result.Error != "" {
		return "", errors.New(result.Error)
	}
	if result.DisplayName == "" {
		return "", errors.New("empty display name")
	}

	return result.DisplayName, nil
}

// Locator turns a photo into a place name.
type Locator struct {
	geocoder *Geocoder
}

// NewLocator creates a Locator using g.
func NewLocator(g *Geocoder) *Locator {
	return &Locator{geocoder: g}
}

// Locate extracts GPS from the photo and resolves it. A photo without GPS
// returns ErrNoGPS. A geocoder failure yields UnknownLocation.
func (l *Locator) Locate(ctx context.Context, photo []byte) (string, error) {
	coords, err := Extract(photo)
	if err != nil {
		return "", err
	}

	name, err := l.geocoder.Reverse(ctx, coords)
	if err != nil {
		slog.Warn("reverse geocoding failed", "lat", coords.Lat, "lon", coords.Lon, "error", err)
		return UnknownLocation, nil
	}
	return name, nil
}
