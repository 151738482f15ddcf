package predictor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
)

const grid = 64

const (
	FeatureMean        = "mean_intensity"
	FeatureContrast    = "contrast"
	FeatureLowerZone   = "lower_zone_opacity"
	FeatureCardiacSize = "cardiac_width_ratio"
)

var FeatureNames = []string{FeatureMean, FeatureContrast, FeatureLowerZone, FeatureCardiacSize}

// Grid is a grayscale image resampled to grid x grid cells in [0,1].
type Grid [grid][grid]float64

// Decode reads a PNG, JPEG or GIF and resamples it.
func Decode(data []byte) (*Grid, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() < 8 || b.Dy() < 8 {
		return nil, "", fmt.Errorf("image too small: %dx%d", b.Dx(), b.Dy())
	}

	var g Grid
	for gy := 0; gy < grid; gy++ {
		y0 := b.Min.Y + gy*b.Dy()/grid
		y1 := b.Min.Y + (gy+1)*b.Dy()/grid
		if y1 <= y0 {
			y1 = y0 + 1
		}
		for gx := 0; gx < grid; gx++ {
			x0 := b.Min.X + gx*b.Dx()/grid
			x1 := b.Min.X + (gx+1)*b.Dx()/grid
			if x1 <= x0 {
				x1 = x0 + 1
			}
			var sum float64
			var n int
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					sum += float64(color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y) / 255
					n++
				}
			}
			g[gy][gx] = sum / float64(n)
		}
	}
	return &g, format, nil
}

// Features extracts the model inputs from a resampled image. Lower-zone
// opacity is the brightness of the lateral lower thirds relative to the
// whole film; cardiac width is the share of central columns in the lower
// half that are brighter than the film mean.
func (g *Grid) Features() map[string]float64 {
	var sum, sq float64
	for y := 0; y < grid; y++ {
		for x := 0; x < grid; x++ {
			sum += g[y][x]
			sq += g[y][x] * g[y][x]
		}
	}
	n := float64(grid * grid)
	mean := sum / n
	variance := sq/n - mean*mean
	if variance < 0 {
		variance = 0
	}

	var lower float64
	var lowerN int
	for y := 2 * grid / 3; y < grid; y++ {
		for x := 0; x < grid; x++ {
			if x < grid/3 || x >= 2*grid/3 {
				lower += g[y][x]
				lowerN++
			}
		}
	}
	lowerZone := clamp01(lower/float64(lowerN) - mean + 0.5)

	wide := 0
	for x := grid / 4; x < 3*grid/4; x++ {
		var col float64
		for y := grid / 2; y < grid; y++ {
			col += g[y][x]
		}
		if col/float64(grid/2) > mean {
			wide++
		}
	}

	return map[string]float64{
		FeatureMean:        mean,
		FeatureContrast:    math.Sqrt(variance),
		FeatureLowerZone:   lowerZone,
		FeatureCardiacSize: float64(wide) / float64(grid/2),
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
