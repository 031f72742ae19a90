package common

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeImage decodes an encoded image into tightly packed RGBA pixel data.
// PNG, JPEG, GIF, BMP, TIFF and WebP are supported.
//
// Parameters:
//   - data: the raw encoded image bytes
//
// Returns:
//   - TextureStagingData: RGBA pixels (4 bytes per pixel, row-major) with the image dimensions
//   - error: error if the bytes cannot be decoded or the image is empty
func DecodeImage(data []byte) (TextureStagingData, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return TextureStagingData{}, fmt.Errorf("failed to decode image: %w", err)
	}
	return toStagingData(img, format)
}

// LoadImage reads and decodes an image file from disk.
//
// Parameters:
//   - path: the file path of the image
//
// Returns:
//   - TextureStagingData: RGBA pixels with the image dimensions
//   - error: error if the file cannot be read or decoded
func LoadImage(path string) (TextureStagingData, error) {
	file, err := os.Open(path)
	if err != nil {
		return TextureStagingData{}, fmt.Errorf("failed to open image file %s: %w", path, err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return TextureStagingData{}, fmt.Errorf("failed to decode image file %s: %w", path, err)
	}
	return toStagingData(img, format)
}

// toStagingData converts any decoded image into a straight-alpha RGBA staging buffer anchored at the origin.
func toStagingData(img image.Image, format string) (TextureStagingData, error) {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return TextureStagingData{}, fmt.Errorf("decoded %s image has zero size", format)
	}

	rgba := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	return TextureStagingData{
		Pixels: rgba.Pix,
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
	}, nil
}
