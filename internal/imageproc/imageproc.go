// Package imageproc re-encodes user uploads before they are handed to an AI provider.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

const (
	// VideoInputMaxSide bounds both sides of an image sent for video generation.
	VideoInputMaxSide = 768
	// VideoInputQuality is the JPEG quality used for video inputs.
	VideoInputQuality = 80
	// DefaultQuality matches the encoder default used for Gemini inputs.
	DefaultQuality = 80
)

var ErrEmptyImage = errors.New("empty image")

// PrepareVideoInput scales the image to fit inside 768x768 without enlarging it and
// encodes it as JPEG quality 80.
func PrepareVideoInput(data []byte) ([]byte, error) {
	return Fit(data, VideoInputMaxSide, VideoInputMaxSide, VideoInputQuality)
}

// Fit scales the image down to fit inside maxW x maxH, keeping the aspect ratio. Images
// already inside the box keep their size.
func Fit(data []byte, maxW, maxH, quality int) ([]byte, error) {
	src, err := decode(data)
	if err != nil {
		return nil, err
	}

	dst := imaging.Fit(src, maxW, maxH, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dst, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// ToJPEG re-encodes any supported image as JPEG at its original size.
func ToJPEG(data []byte) ([]byte, error) {
	src, err := decode(data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, src, imaging.JPEG, imaging.JPEGQuality(DefaultQuality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
