package render

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PenguinWatch.dashboard/internal/models"
	"PenguinWatch.dashboard/internal/reconcile"
)

func sample() reconcile.ChartState {
	return reconcile.Reconcile([]models.Measurement{
		{ID: "PNG-1", Weight: models.NewWeight(4.1), Date: "2024-01-01", Time: "08:00:00"},
		{ID: "PNG-2", Weight: models.ParseWeight("bad"), Date: "2024-01-02", Time: "08:00:00"},
		{ID: "PNG-2", Weight: models.NewWeight(3.9), Date: "2024-01-03", Time: "08:00:00"},
		{ID: "PNG-1", Weight: models.NewWeight(4.0), Date: "2024-01-04", Time: "08:00:00"},
	})
}

func TestPNG_Decodes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PNG(&buf, sample(), Options{Width: 640, Height: 320}))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 320, img.Bounds().Dy())
}

func TestPNG_NoValidDataIsBlank(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PNG(&buf, reconcile.Reconcile(nil), Options{}))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, DefaultWidth, img.Bounds().Dx())
}

func TestPNG_Deterministic(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, PNG(&a, sample(), Options{}))
	require.NoError(t, PNG(&b, sample(), Options{}))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestRuns_BreakOnNull(t *testing.T) {
	runs := contiguousRuns(sample())
	require.Len(t, runs, 2)
	assert.Equal(t, []float64{1, 1}, runs[0].xs, "single point doubled")
	assert.Equal(t, []float64{3, 4}, runs[1].xs)

	dots := subjectDots(sample())
	require.Len(t, dots, 2)
	assert.Equal(t, "PNG-1", dots[0].id)
	assert.Equal(t, reconcile.Palette[0], dots[0].color)
	assert.Equal(t, []float64{1, 4}, dots[0].xs)
}

func TestHTML_ContainsSeriesAndColors(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, sample(), Options{Title: "PNG weights"}))

	out := buf.String()
	assert.Contains(t, out, "weight-chart")
	assert.Contains(t, out, "PNG weights")
	assert.Contains(t, out, "PNG-1")
	assert.Contains(t, out, "PNG-2")
	assert.Contains(t, out, reconcile.Palette[1])
	assert.Contains(t, out, "Penguin ID: {a}")
	assert.Contains(t, out, "Jan 1, 2024, 08:00:00")
}

func TestHTML_BaseLineHasNoHoverSymbols(t *testing.T) {
	s := sample()
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, s, Options{}))

	out := buf.String()
	assert.Equal(t, len(s.Points), strings.Count(out, `"symbol":"none"`))
}
