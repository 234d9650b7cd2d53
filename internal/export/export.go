// Package export encodes the annotation outputs handed to the
// report-submission pipeline: the edited visibility mask and the
// normalized selection record.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"

	"github.com/chai2010/webp"

	"sample-annotator/internal/selection"
)

// Payload is the per-image annotation bundle attached to a submission.
// Mask is omitted entirely when the mask was never edited, so the
// backend can tell "untouched" from "fully visible".
type Payload struct {
	ImageID   string                `json:"image_id"`
	Selection *selection.Descriptor `json:"selection,omitempty"`
	Mask      []byte                `json:"mask,omitempty"` // PNG bytes
}

// BuildPayload assembles a submission payload. mask may be nil.
func BuildPayload(imageID string, mask *image.Alpha, desc *selection.Descriptor) (*Payload, error) {
	p := &Payload{ImageID: imageID, Selection: desc}
	if mask != nil {
		enc, err := MaskPNG(mask)
		if err != nil {
			return nil, err
		}
		p.Mask = enc
	}
	return p, nil
}

// MaskPNG encodes a mask raster as a grayscale PNG.
func MaskPNG(mask *image.Alpha) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, maskGray(mask)); err != nil {
		return nil, fmt.Errorf("encode mask png: %w", err)
	}
	return buf.Bytes(), nil
}

// MaskWebP encodes a mask raster as a lossless WebP, the compact wire
// form used when the backend advertises WebP support.
func MaskWebP(mask *image.Alpha) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, maskGray(mask), &webp.Options{Lossless: true}); err != nil {
		return nil, fmt.Errorf("encode mask webp: %w", err)
	}
	return buf.Bytes(), nil
}

// DescriptorJSON encodes the selection record for submission.
func DescriptorJSON(d *selection.Descriptor) ([]byte, error) {
	out, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode selection: %w", err)
	}
	return out, nil
}

// maskGray reinterprets the mask's alpha channel as a grayscale image,
// which both encoders handle without an alpha pre-multiply pass.
func maskGray(mask *image.Alpha) *image.Gray {
	return &image.Gray{
		Pix:    mask.Pix,
		Stride: mask.Stride,
		Rect:   mask.Rect,
	}
}
