package property

import (
	"context"
	"fmt"

	"github.com/evcraddock/propchain/internal/apperr"
)

// SeedListings are the demo listings the marketplace ships with.
var SeedListings = []Property{
	{ID: 1, Title: "Luxury Spindrift Estate", Address: "1900 Spindrift Dr, La Jolla, CA 92037", Broker: "COMPASS", Price: "108,000,000", Beds: "10", Baths: "17", Sqft: "12,981", URL: "https://www.zillow.com/homedetails/1900-Spindrift-Dr-La-Jolla-CA-92037/16839110_zpid/", Available: true},
	{ID: 2, Address: "801 La Jolla Rancho Rd, La Jolla, CA 92037", Broker: "BERKSHIRE HATHAWAY HOMESERVICES CALIFORNIA PROPERTIES", Price: "3,995,000", Beds: "3", Baths: "3", Sqft: "2,890", URL: "https://www.zillow.com/homedetails/801-La-Jolla-Rancho-Rd-La-Jolla-CA-92037/16855358_zpid/", Available: true},
	{ID: 3, Address: "6283 La Jolla Scenic Dr S, La Jolla, CA 92037", Broker: "EXP REALTY OF CALIFORNIA, INC.", Price: "22,500,000", Beds: "7", Baths: "10", Sqft: "12,842", URL: "https://www.zillow.com/homedetails/6283-La-Jolla-Scenic-Dr-S-La-Jolla-CA-92037/16852003_zpid/", Available: true},
	{ID: 4, Address: "6653 Neptune Pl, La Jolla, CA 92037", Broker: "PACASO INC.", Price: "1,300,000", Beds: "4", Baths: "5", Sqft: "3,124", URL: "https://www.zillow.com/homedetails/6653-Neptune-Pl-La-Jolla-CA-92037/16850262_zpid/", Available: true},
	{ID: 5, Address: "5740 La Jolla Corona Dr, La Jolla, CA 92037", Broker: "PACIFIC SOTHEBY'S INT'L REALTY", Price: "14,750,000", Beds: "6", Baths: "8", Sqft: "8,810", URL: "https://www.zillow.com/homedetails/5740-La-Jolla-Corona-Dr-La-Jolla-CA-92037/16856415_zpid/", Available: true},
	{ID: 6, Address: "7253 Monte Vista Ave, La Jolla, CA 92037", Broker: "COLDWELL BANKER REALTY", Price: "8,250,000", Beds: "4", Baths: "5", Sqft: "3,577", URL: "https://www.zillow.com/homedetails/7253-Monte-Vista-Ave-La-Jolla-CA-92037/16849344_zpid/", Available: true},
	{ID: 7, Address: "5633 Soledad Mountain Rd, La Jolla, CA 92037", Broker: "BIG BLOCK REALTY, INC.", Price: "2,795,000", Beds: "4", Baths: "3", Sqft: "2,638", URL: "https://www.zillow.com/homedetails/5633-Soledad-Mountain-Rd-La-Jolla-CA-92037/16857069_zpid/", Available: true},
	{ID: 8, Address: "7134 Olivetas Ave, La Jolla, CA 92037", Broker: "HEARTLAND REAL ESTATE", Price: "2,390,000", Beds: "2", Baths: "2", Sqft: "1,426", URL: "https://www.zillow.com/homedetails/7134-Olivetas-Ave-La-Jolla-CA-92037/16849457_zpid/", Available: true},
}

// Seed inserts the listings that are not already present and returns the new rows.
// A non-empty ownerWallet is assigned to every inserted listing and to
// existing listings that have no owner yet.
func Seed(ctx context.Context, repo *Repository, listings []Property, ownerWallet string) ([]*Property, error) {
	var inserted []*Property
	for _, l := range listings {
		if l.ID != 0 {
			existing, err := repo.GetByID(ctx, l.ID)
			if err == nil {
				if ownerWallet != "" && existing.OwnerWallet == "" {
					if err := repo.SetOwner(ctx, existing.ID, ownerWallet); err != nil {
						return inserted, fmt.Errorf("assigning owner to listing %d: %w", l.ID, err)
					}
				}
				continue
			}
			if !apperr.Is(err, apperr.KindNotFound) {
				return inserted, fmt.Errorf("checking listing %d: %w", l.ID, err)
			}
		}

		p := l
		if ownerWallet != "" {
			p.OwnerWallet = ownerWallet
		}
		saved, err := repo.Insert(ctx, &p)
		if err != nil {
			return inserted, fmt.Errorf("seeding %s: %w", l.Address, err)
		}
		inserted = append(inserted, saved)
	}
	return inserted, nil
}
