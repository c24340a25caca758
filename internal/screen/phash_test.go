package screen

import (
	"image"
	"image/color"
	"testing"
)

// patternImage draws a white block whose position depends on seed, so
// different seeds yield visually different frames.
func patternImage(seed int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	x0 := (seed * 40) % 200
	for y := 20; y < 120; y++ {
		for x := x0; x < x0+40; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func TestHashImage_IdenticalFramesMatch(t *testing.T) {
	a := HashImage(patternImage(1), 32)
	b := HashImage(patternImage(1), 32)
	if !a.Equal(b) {
		t.Error("identical frames produced different hashes")
	}
}

func TestHashImage_DifferentFramesDiffer(t *testing.T) {
	a := HashImage(patternImage(1), 32)
	b := HashImage(patternImage(3), 32)
	if a.Equal(b) {
		t.Error("visually different frames produced equal hashes")
	}
}

func TestHashImage_GridControlsSize(t *testing.T) {
	h := HashImage(patternImage(1), 16)
	if len(h) != 16*16/8 {
		t.Fatalf("hash size = %d bytes, want %d", len(h), 16*16/8)
	}
}

func TestHashImage_TinyGridFallsBack(t *testing.T) {
	h := HashImage(patternImage(1), 0)
	if len(h) != DefaultPhashGrid*DefaultPhashGrid/8 {
		t.Fatalf("hash size = %d, want default grid", len(h))
	}
}
