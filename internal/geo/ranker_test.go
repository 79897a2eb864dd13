package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-catalog-service/internal/domain"
)

// kmPerDegreeLng is the east-west span of one degree of longitude at the
// equator for the Earth radius the ranker uses.
const kmPerDegreeLng = earthRadiusKm * math.Pi / 180

func productAt(name string, lat, lng float64) domain.Product {
	return domain.Product{Name: name, ShopLat: &lat, ShopLng: &lng}
}

func TestDistanceKm_ZeroForSamePoint(t *testing.T) {
	points := [][2]float64{{0, 0}, {51.5074, -0.1278}, {-33.8688, 151.2093}, {89.9, 10}}
	for _, p := range points {
		assert.InDelta(t, 0, DistanceKm(p[0], p[1], p[0], p[1]), 1e-9)
	}
}

func TestDistanceKm_Symmetric(t *testing.T) {
	d1 := DistanceKm(51.5074, -0.1278, 48.8566, 2.3522) // London <-> Paris
	d2 := DistanceKm(48.8566, 2.3522, 51.5074, -0.1278)
	assert.Equal(t, d1, d2)
	// Sanity: roughly 344 km.
	assert.InDelta(t, 344, d1, 2)
}

func TestRank_RadiusBoundary(t *testing.T) {
	candidate := productAt("edge", 0, 3.0/kmPerDegreeLng)
	exact := DistanceKm(0, 0, *candidate.ShopLat, *candidate.ShopLng)

	// A candidate at exactly the radius is included.
	included := Rank([]domain.Product{candidate}, 0, 0, exact)
	require.Len(t, included, 1)

	// Just inside the candidate's distance, it is excluded.
	excluded := Rank([]domain.Product{candidate}, 0, 0, exact-1e-9)
	assert.Empty(t, excluded)
}

func TestRank_OrdersByAscendingDistance(t *testing.T) {
	candidates := []domain.Product{
		productAt("mid", 0, 3.2/kmPerDegreeLng),
		productAt("near", 0, 1.0/kmPerDegreeLng),
		productAt("far", 0, 4.9/kmPerDegreeLng),
	}

	ranked := Rank(candidates, 0, 0, 5.0)

	require.Len(t, ranked, 3)
	assert.Equal(t, "near", ranked[0].Product.Name)
	assert.Equal(t, "mid", ranked[1].Product.Name)
	assert.Equal(t, "far", ranked[2].Product.Name)
	assert.InDelta(t, 1.0, ranked[0].DistanceKm, 0.001)
	assert.InDelta(t, 3.2, ranked[1].DistanceKm, 0.001)
	assert.InDelta(t, 4.9, ranked[2].DistanceKm, 0.001)
}

func TestRank_FiltersOutsideRadius(t *testing.T) {
	candidates := []domain.Product{
		productAt("inside", 0, 2.0/kmPerDegreeLng),
		productAt("outside", 0, 8.0/kmPerDegreeLng),
	}

	ranked := Rank(candidates, 0, 0, 5.0)

	require.Len(t, ranked, 1)
	assert.Equal(t, "inside", ranked[0].Product.Name)
}

func TestRank_SkipsCandidatesWithoutCoordinates(t *testing.T) {
	lat := 0.0
	candidates := []domain.Product{
		{Name: "no coords"},
		{Name: "lat only", ShopLat: &lat},
		productAt("located", 0, 0),
	}

	ranked := Rank(candidates, 0, 0, 5.0)

	require.Len(t, ranked, 1)
	assert.Equal(t, "located", ranked[0].Product.Name)
}

func TestRank_ReportsRoundedDistance(t *testing.T) {
	candidate := productAt("p", 0, 1.23456/kmPerDegreeLng)

	ranked := Rank([]domain.Product{candidate}, 0, 0, 5.0)

	require.Len(t, ranked, 1)
	// Rounded to 3 decimal places for the payload.
	assert.Equal(t, ranked[0].DistanceKm, roundTo3(ranked[0].DistanceKm))
	assert.InDelta(t, 1.235, ranked[0].DistanceKm, 0.001)
}

func TestRank_StableForEqualDistances(t *testing.T) {
	d := 2.0 / kmPerDegreeLng
	candidates := []domain.Product{
		productAt("first", 0, d),
		productAt("second", 0, -d),
		productAt("third", 0, d),
	}

	ranked := Rank(candidates, 0, 0, 5.0)

	require.Len(t, ranked, 3)
	// Equidistant candidates keep their input order.
	assert.Equal(t, "first", ranked[0].Product.Name)
	assert.Equal(t, "second", ranked[1].Product.Name)
	assert.Equal(t, "third", ranked[2].Product.Name)
}
