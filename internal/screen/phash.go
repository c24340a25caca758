// Package screen maintains the "latest screen" snapshot: it captures the
// primary display, skips OCR on visually unchanged frames via a perceptual
// hash, extracts text, and persists text that stays stable across cycles.
package screen

import (
	"bytes"
	"image"

	"golang.org/x/image/draw"
)

// DefaultPhashGrid is the side length of the downscale grid used for the
// perceptual hash.
const DefaultPhashGrid = 32

// Phash is a mean-threshold perceptual hash: one bit per grid cell, set when
// the cell is brighter than the frame average. Two visually identical frames
// produce equal hashes even across JPEG artifacts and cursor blinks.
type Phash []byte

// Equal reports whether two hashes are identical.
func (p Phash) Equal(other Phash) bool {
	return bytes.Equal(p, other)
}

// HashImage computes the perceptual hash of img on a grid×grid luminance
// downscale.
func HashImage(img image.Image, grid int) Phash {
	if grid < 2 {
		grid = DefaultPhashGrid
	}

	small := image.NewGray(image.Rect(0, 0, grid, grid))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var sum uint64
	for _, px := range small.Pix {
		sum += uint64(px)
	}
	mean := uint8(sum / uint64(len(small.Pix)))

	hash := make(Phash, (grid*grid+7)/8)
	for i, px := range small.Pix {
		if px > mean {
			hash[i/8] |= 1 << (i % 8)
		}
	}
	return hash
}
