// Package imageinfo probes image pixel dimensions without decoding pixels.
package imageinfo

import (
	"fmt"
	"image"
	"os"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Dimensions holds an image's pixel size.
type Dimensions struct {
	Width  int
	Height int
}

// Probe reads just enough of the file to determine its dimensions.
func Probe(path string) (Dimensions, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dimensions{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Dimensions{}, fmt.Errorf("read dimensions of %s: %w", path, err)
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}
