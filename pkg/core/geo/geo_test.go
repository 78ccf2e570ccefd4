package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMiles(t *testing.T) {
	austin := Point{Lat: 30.2672, Lon: -97.7431}
	dallas := Point{Lat: 32.7767, Lon: -96.7970}

	// Austin to Dallas is about 182 miles great-circle.
	assert.InDelta(t, 182, DistanceMiles(austin, dallas), 3)
}

func TestDistanceMilesSymmetric(t *testing.T) {
	a := Point{Lat: 51.5074, Lon: -0.1278}
	b := Point{Lat: 48.8566, Lon: 2.3522}

	assert.InDelta(t, DistanceMiles(a, b), DistanceMiles(b, a), 1e-9)
}

func TestDistanceMilesZeroForSamePoint(t *testing.T) {
	p := Point{Lat: 30.2672, Lon: -97.7431}

	assert.Zero(t, DistanceMiles(p, p))
}
