package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKm(t *testing.T) {
	// Brisbane CBD to Gold Coast, roughly 71 km.
	d := HaversineKm(-27.4698, 153.0251, -28.0167, 153.4000)
	assert.InDelta(t, 71, d, 3)

	// Zero distance.
	assert.InDelta(t, 0, HaversineKm(-27.5, 153.0, -27.5, 153.0), 1e-9)

	// Symmetry.
	a := HaversineKm(-27.0, 153.0, -28.0, 154.0)
	b := HaversineKm(-28.0, 154.0, -27.0, 153.0)
	assert.InDelta(t, a, b, 1e-9)
}
