// Package geo ranks products by great-circle distance from an origin.
//
// This is an O(n) full scan with no spatial index, which is fine at the
// scale of a pre-filtered candidate set (available products, optionally
// narrowed by a name match) before ranking.
package geo

import (
	"math"
	"sort"

	"marketplace-catalog-service/internal/domain"
)

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// RankedProduct pairs a product with its distance from the search origin.
// DistanceKm is rounded to 3 decimal places for output; ranking itself is
// done at full precision.
type RankedProduct struct {
	Product    domain.Product
	DistanceKm float64
}

// DistanceKm computes the great-circle distance in kilometers between two
// coordinates using the haversine formula.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlng1 := lng1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	rlng2 := lng2 * math.Pi / 180

	dlat := rlat2 - rlat1
	dlng := rlng2 - rlng1

	a := math.Pow(math.Sin(dlat/2), 2) + math.Cos(rlat1)*math.Cos(rlat2)*math.Pow(math.Sin(dlng/2), 2)
	// Floating-point error can push a just above 1, which would take Asin
	// out of its domain.
	c := 2 * math.Asin(math.Min(1, math.Sqrt(a)))
	return earthRadiusKm * c
}

// Rank filters candidates to those within radiusKm of the origin and returns
// them sorted by ascending distance. Candidates without a recorded shop
// coordinate are excluded. Ties keep their input order. A candidate at
// exactly radiusKm is included.
func Rank(candidates []domain.Product, originLat, originLng, radiusKm float64) []RankedProduct {
	ranked := make([]RankedProduct, 0, len(candidates))
	for _, p := range candidates {
		if !p.HasCoordinates() {
			continue
		}
		dist := DistanceKm(originLat, originLng, *p.ShopLat, *p.ShopLng)
		if dist <= radiusKm {
			ranked = append(ranked, RankedProduct{Product: p, DistanceKm: dist})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceKm < ranked[j].DistanceKm
	})

	for i := range ranked {
		ranked[i].DistanceKm = roundTo3(ranked[i].DistanceKm)
	}
	return ranked
}

func roundTo3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
