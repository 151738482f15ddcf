package analysis

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"

	"github.com/synaptica-ai/radiology-console/pkg/serving/predictor"
)

// heatmapDataURL renders the per-cell deviation from the film mean as a
// red-over-grey PNG, returned as a data URL.
func heatmapDataURL(g *predictor.Grid) (string, error) {
	size := len(g)
	var mean float64
	for y := range g {
		for x := range g[y] {
			mean += g[y][x]
		}
	}
	mean /= float64(size * size)

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := range g {
		for x := range g[y] {
			base := uint8(g[y][x] * 255)
			heat := g[y][x] - mean
			if heat < 0 {
				heat = 0
			}
			r := uint8(min(255, float64(base)+heat*2*255))
			img.Set(x, y, color.RGBA{R: r, G: base / 2, B: base / 2, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
