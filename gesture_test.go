package rasedit

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGestureKind(t *testing.T) {
	for _, k := range GestureKinds {
		got, err := ParseGestureKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	k, err := ParseGestureKind("Freehand")
	require.NoError(t, err)
	assert.Equal(t, KindFreehand, k)
	_, err = ParseGestureKind("lasso")
	assert.ErrorIs(t, err, ErrUnknownGesture)
}

func TestParseGestureWkt(t *testing.T) {
	g, err := ParseGesture(KindLine, "LINESTRING(2 5, 8 5)", 1.5)
	require.NoError(t, err)
	lp, ok := g.(LinePick)
	require.True(t, ok)
	assert.Equal(t, orb.LineString{{2, 5}, {8, 5}}, lp.Line)
	assert.Equal(t, 1.5, lp.Buffer)

	g, err = ParseGesture(KindFreehand, "POLYGON((0 0, 2 0, 2 2, 0 0))", 0)
	require.NoError(t, err)
	assert.Equal(t, KindFreehand, g.Kind())

	_, err = ParseGesture(KindPixel, "LINESTRING(2 5, 8 5)", 0)
	assert.ErrorIs(t, err, ErrWrongGeoType)
	_, err = ParseGesture(KindPolygon, "POINT(1 1)", 0)
	assert.ErrorIs(t, err, ErrWrongGeoType)
	_, err = ParseGesture(KindPixel, "POINT(1", 0)
	assert.ErrorIs(t, err, ErrWrongGeoType)
}

func TestParseGestureGeoJSON(t *testing.T) {
	g, err := ParseGestureGeoJSON(KindPixel, []byte(`{"type":"Point","coordinates":[3.5,4.5]}`), 0)
	require.NoError(t, err)
	assert.Equal(t, PixelPick{Point: orb.Point{3.5, 4.5}}, g)

	feature := `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,2],[0,0]]]}}`
	g, err = ParseGestureGeoJSON(KindPolygon, []byte(feature), 0)
	require.NoError(t, err)
	pp, ok := g.(PolygonPick)
	require.True(t, ok)
	assert.Len(t, pp.Polygon[0], 4)

	_, err = ParseGestureGeoJSON(KindLine, []byte(`{"type":"Bogus"}`), 0)
	assert.ErrorIs(t, err, ErrWrongGeoType)
}

func TestNewGestureUnknownKind(t *testing.T) {
	_, err := NewGesture(GestureKind(9), orb.Point{}, 0)
	assert.ErrorIs(t, err, ErrUnknownGesture)
	_, err = NewGesture(KindPixel, nil, 0)
	assert.ErrorIs(t, err, ErrWrongGeoType)
}
