package browser

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"

	"browser-pilot/internal/infrastructure/cdp"
)

const captureMaxWidth = 1024

// CaptureFrame takes a screenshot and downscales it for hashing and visual
// judgement. Wide frames are resized to keep payloads small without losing
// the layout the judge needs.
func CaptureFrame(ctx context.Context, conn *cdp.Client) ([]byte, error) {
	raw, err := conn.CaptureScreenshot(ctx, "jpeg")
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	if img.Bounds().Dx() > captureMaxWidth {
		img = imaging.Resize(img, captureMaxWidth, 0, imaging.Lanczos)
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
