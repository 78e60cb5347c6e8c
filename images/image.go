package images

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
)

// Image is an encoded frame with its format and, once known, its dimensions.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// NewImage wraps encoded bytes, sniffing the format and reading the dimensions from the header.
//
// Arguments:
//   - data: The encoded image bytes.
//
// Returns:
//   - *Image: The image with Format, Width and Height populated.
//   - error: If the format is unknown or the header cannot be read.
func NewImage(data []byte) (*Image, error) {
	format := DetectFormat(data)
	if format == FormatUnknown {
		return nil, errors.New("unrecognized image format")
	}

	var (
		cfg image.Config
		err error
	)
	switch format {
	case FormatWebP:
		cfg, err = webp.DecodeConfig(bytes.NewReader(data))
	case FormatBMP:
		cfg, err = bmp.DecodeConfig(bytes.NewReader(data))
	default:
		cfg, _, err = image.DecodeConfig(bytes.NewReader(data))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s header", format)
	}

	return &Image{Format: format, Data: data, Width: cfg.Width, Height: cfg.Height}, nil
}

// Decode decodes the encoded bytes into an image.Image.
//
// Returns:
//   - image.Image: The decoded frame.
//   - error: If the data is empty or the decoder for the format fails.
func (i *Image) Decode() (image.Image, error) {
	if len(i.Data) == 0 {
		return nil, errors.New("empty image data")
	}

	r := bytes.NewReader(i.Data)

	var (
		img image.Image
		err error
	)
	switch i.Format {
	case FormatJPEG:
		img, err = jpeg.Decode(r)
	case FormatPNG:
		img, err = png.Decode(r)
	case FormatWebP:
		img, err = webp.Decode(r)
	case FormatBMP:
		img, err = bmp.Decode(r)
	default:
		return nil, errors.Errorf("unsupported image format: %q", i.Format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", i.Format)
	}

	return img, nil
}
