package emit

import (
	"context"
	"encoding/base64"
	"fmt"
)

// Capturer renders the current view to an image. It is an external
// collaborator and is only reached through the sketch command path.
type Capturer interface {
	Capture(ctx context.Context) (png []byte, err error)
}

// CapturerFunc adapts a function to Capturer.
type CapturerFunc func(ctx context.Context) ([]byte, error)

// Capture calls f.
func (f CapturerFunc) Capture(ctx context.Context) ([]byte, error) { return f(ctx) }

// DataURL encodes a PNG as a data URL for the sketch command payload.
func DataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}

// CaptureDataURL runs c and returns the image as a data URL.
func CaptureDataURL(ctx context.Context, c Capturer) (string, error) {
	if c == nil {
		return "", fmt.Errorf("no capturer configured")
	}
	png, err := c.Capture(ctx)
	if err != nil {
		return "", fmt.Errorf("capture view: %w", err)
	}
	return DataURL(png), nil
}
