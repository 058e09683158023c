package processing

import (
	"image"

	"github.com/disintegration/imaging"
)

const (
	// saliency is computed on a thumbnail of at most this size
	focusSampleSize = 128

	edgeWeight  = 0.4
	greenWeight = 0.6
)

// FocusCrop crops img to the square window, ratio times its shorter side,
// that holds the most leaf tissue. The window is never smaller than minSide
// unless the image itself is. A ratio outside (0,1) returns img as is.
func FocusCrop(img image.Image, ratio float64, minSide int) image.Image {
	if ratio <= 0 || ratio >= 1 {
		return img
	}
	return imaging.Crop(img, focusRegion(img, ratio, minSide))
}

// focusRegion slides a square window over a saliency map and returns the
// best window in img coordinates. Saliency mixes local edge strength with an
// excess-green vegetation index.
func focusRegion(img image.Image, ratio float64, minSide int) image.Rectangle {
	bounds := img.Bounds()
	small := imaging.Fit(img, focusSampleSize, focusSampleSize, imaging.Box)
	sw, sh := small.Bounds().Dx(), small.Bounds().Dy()

	side := int(ratio * float64(min(sw, sh)))
	if side < 1 {
		side = 1
	}

	integral := saliencyIntegral(small)
	windowSum := func(x, y int) float64 {
		return integral[y+side][x+side] - integral[y][x+side] - integral[y+side][x] + integral[y][x]
	}

	// start centred so a flat image keeps a centre crop
	bestX, bestY := (sw-side)/2, (sh-side)/2
	bestScore := windowSum(bestX, bestY)
	for y := 0; y <= sh-side; y++ {
		for x := 0; x <= sw-side; x++ {
			if score := windowSum(x, y); score > bestScore {
				bestScore, bestX, bestY = score, x, y
			}
		}
	}

	scaleX := float64(bounds.Dx()) / float64(sw)
	scaleY := float64(bounds.Dy()) / float64(sh)
	size := min(int(float64(side)*scaleX), int(float64(side)*scaleY))
	size = min(max(size, minSide), bounds.Dx(), bounds.Dy())

	x0 := bounds.Min.X + int(float64(bestX)*scaleX)
	y0 := bounds.Min.Y + int(float64(bestY)*scaleY)
	x0 = min(x0, bounds.Max.X-size)
	y0 = min(y0, bounds.Max.Y-size)

	return image.Rect(x0, y0, x0+size, y0+size)
}

// saliencyIntegral returns the summed-area table of the saliency map,
// with one extra leading row and column of zeros
func saliencyIntegral(img *image.NRGBA) [][]float64 {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	rgb := func(x, y int) (float64, float64, float64) {
		i := img.PixOffset(x, y)
		return float64(img.Pix[i]), float64(img.Pix[i+1]), float64(img.Pix[i+2])
	}

	integral := make([][]float64, h+1)
	for i := range integral {
		integral[i] = make([]float64, w+1)
	}

	for y := 0; y < h; y++ {
		var rowSum float64
		for x := 0; x < w; x++ {
			r, g, b := rgb(x, y)

			var edge float64
			var n int
			for _, d := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				r2, g2, b2 := rgb(nx, ny)
				edge += abs(r-r2) + abs(g-g2) + abs(b-b2)
				n++
			}
			if n > 0 {
				edge /= float64(n) * 3 * 255
			}

			green := (2*g - r - b) / (2 * 255)
			if green < 0 {
				green = 0
			}

			rowSum += edgeWeight*edge + greenWeight*green
			integral[y+1][x+1] = integral[y][x+1] + rowSum
		}
	}
	return integral
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
