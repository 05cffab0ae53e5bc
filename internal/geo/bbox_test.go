package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLongitude(t *testing.T) {
	cases := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero", 0, 0},
		{"in range negative", -118.2437, -118.2437},
		{"in range positive", 118.2437, 118.2437},
		{"wraps past east", 190, -170},
		{"wraps past west", -190, 170},
		{"full revolution", 360, 0},
		{"multiple revolutions", 725, 5},
		{"negative revolutions", -725, -5},
		{"boundary 180 wraps", 180, -180},
		{"boundary -180 stays", -180, -180},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeLongitude(tc.in)
			assert.InDelta(t, tc.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, -180.0)
			assert.Less(t, got, 180.0)
			assert.InDelta(t, got, NormalizeLongitude(got), 1e-9, "normalization must be idempotent")
		})
	}
}

func TestBoundingBoxValidate(t *testing.T) {
	valid := BoundingBox{South: 33.9, North: 34.2, West: -118.5, East: -118.1}
	require.NoError(t, valid.Validate())

	assert.Error(t, BoundingBox{South: 34.2, North: 33.9}.Validate(), "south >= north")
	assert.Error(t, BoundingBox{South: 10, North: 10}.Validate(), "degenerate box")
	assert.Error(t, BoundingBox{South: -95, North: 0}.Validate(), "latitude below range")
	assert.Error(t, BoundingBox{South: 0, North: 95}.Validate(), "latitude above range")

	// Antimeridian-straddling boxes are legal.
	assert.NoError(t, BoundingBox{South: 50, North: 55, West: 179, East: -179}.Validate())
}

func TestBoundingBoxString(t *testing.T) {
	box := BoundingBox{South: 34.0522, North: 34.1, West: -118.2437, East: -118.2}
	assert.Equal(t, "-118.2437,34.0522,-118.2,34.1", box.String())
}

func TestParseBoundingBox(t *testing.T) {
	box, err := ParseBoundingBox("34.0522, 34.1, -118.2437, 241.8")
	require.NoError(t, err)
	assert.Equal(t, 34.0522, box.South)
	assert.Equal(t, 34.1, box.North)
	assert.Equal(t, -118.2437, box.West)
	assert.InDelta(t, -118.2, box.East, 1e-9, "longitude should be normalized on parse")

	_, err = ParseBoundingBox("1,2,3")
	assert.Error(t, err)
	_, err = ParseBoundingBox("a,b,c,d")
	assert.Error(t, err)
	_, err = ParseBoundingBox("40,30,-118,-117")
	assert.Error(t, err, "inverted latitudes")
}

func TestSelectorKeepsLatestSelection(t *testing.T) {
	var sel Selector
	_, ok := sel.Selection()
	assert.False(t, ok, "fresh selector has no selection")

	first := BoundingBox{South: 1, North: 2, West: 3, East: 4}
	second := BoundingBox{South: 5, North: 6, West: 190, East: 200}
	require.NoError(t, sel.Select(first))
	require.NoError(t, sel.Select(second))

	got, ok := sel.Selection()
	require.True(t, ok)
	assert.Equal(t, 5.0, got.South)
	assert.InDelta(t, -170.0, got.West, 1e-9, "selection is stored normalized")

	sel.Clear()
	_, ok = sel.Selection()
	assert.False(t, ok)
}

func TestSelectorRejectsInvalidBox(t *testing.T) {
	var sel Selector
	require.NoError(t, sel.Select(BoundingBox{South: 1, North: 2}))
	err := sel.Select(BoundingBox{South: 2, North: 1})
	require.Error(t, err)

	got, ok := sel.Selection()
	require.True(t, ok, "failed select must not clobber the previous selection")
	assert.Equal(t, 1.0, got.South)
}
