// Package property provides the listing model and data access.
package property

import (
	"strings"
	"time"
)

// Property is a marketplace listing.
type Property struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title,omitempty"`
	Address     string    `json:"address"`
	Broker      string    `json:"broker"`
	Price       string    `json:"price"`
	Beds        string    `json:"beds"`
	Baths       string    `json:"baths"`
	Sqft        string    `json:"sqft"`
	URL         string    `json:"url"`
	Available   bool      `json:"available"`
	OwnerWallet string    `json:"owner_wallet"`
	CreatedAt   time.Time `json:"created_at"`
}

// DisplayTitle returns the title, falling back to the address.
func (p *Property) DisplayTitle() string {
	if p.Title != "" {
		return p.Title
	}
	return p.Address
}

// scanProperty scans a property from a database row.
func scanProperty(row interface{ Scan(...any) error }) (*Property, error) {
	var p Property
	err := row.Scan(
		&p.ID, &p.Title, &p.Address, &p.Broker, &p.Price,
		&p.Beds, &p.Baths, &p.Sqft, &p.URL,
		&p.Available, &p.OwnerWallet, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FormatPrice normalises a price to digits grouped with commas.
// "108000000", "$108,000,000" and "108,000,000" all become "108,000,000".
// Input that is not a whole number is returned trimmed but otherwise unchanged.
func FormatPrice(s string) string {
	s = strings.TrimSpace(s)
	digits := strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if digits == "" {
		return s
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return s
		}
	}
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return "0"
	}
	return groupThousands(digits)
}

func groupThousands(digits string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}

	var b strings.Builder
	pre := n % 3
	if pre > 0 {
		b.WriteString(digits[:pre])
	}
	for i := pre; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
