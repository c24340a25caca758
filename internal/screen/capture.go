package screen

import (
	"context"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// DisplayCapturer captures the primary display. It satisfies [Capturer].
type DisplayCapturer struct {
	// Display selects the display index; 0 is the primary.
	Display int
}

// Compile-time assertion.
var _ Capturer = (*DisplayCapturer)(nil)

// Capture grabs the full bounds of the configured display.
func (d *DisplayCapturer) Capture(_ context.Context) (image.Image, error) {
	if screenshot.NumActiveDisplays() <= d.Display {
		return nil, fmt.Errorf("screen: display %d not available", d.Display)
	}
	img, err := screenshot.CaptureRect(screenshot.GetDisplayBounds(d.Display))
	if err != nil {
		return nil, fmt.Errorf("screen: capture display %d: %w", d.Display, err)
	}
	return img, nil
}
