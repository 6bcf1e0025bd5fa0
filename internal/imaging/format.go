// Package imaging decodes, reshapes and re-encodes raster images.
//
// Only JPEG, GIF and PNG are handled. The format is decided once, when the
// header is inspected, and the same Format value drives decoding and
// encoding so a transform never changes an object's format.
package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"mime"
	"os"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("imaging: unsupported format")
	ErrDecode            = errors.New("imaging: cannot decode image")
	ErrInvalidSize       = errors.New("imaging: invalid target size")
)

// Format is the closed set of raster formats the engine understands.
type Format int

const (
	Unsupported Format = iota
	JPEG
	GIF
	PNG
)

// FormatFromMIME maps a MIME type (parameters allowed) to a Format.
func FormatFromMIME(m string) Format {
	if mt, _, err := mime.ParseMediaType(m); err == nil {
		m = mt
	}
	switch strings.ToLower(strings.TrimSpace(m)) {
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return JPEG
	case "image/gif":
		return GIF
	case "image/png", "image/x-png":
		return PNG
	}
	return Unsupported
}

func (f Format) MIME() string {
	switch f {
	case JPEG:
		return "image/jpeg"
	case GIF:
		return "image/gif"
	case PNG:
		return "image/png"
	}
	return ""
}

// Ext is the conventional file extension, without the dot.
func (f Format) Ext() string {
	switch f {
	case JPEG:
		return "jpg"
	case GIF:
		return "gif"
	case PNG:
		return "png"
	}
	return ""
}

func (f Format) String() string {
	switch f {
	case JPEG:
		return "jpeg"
	case GIF:
		return "gif"
	case PNG:
		return "png"
	}
	return "unsupported"
}

// Info is what the header alone tells about an image.
type Info struct {
	Width  int
	Height int
	Format Format
	MIME   string
}

// Inspect reads only the image header.
func Inspect(r io.Reader) (Info, error) {
	cfg, name, err := image.DecodeConfig(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Info{}, ErrUnsupportedFormat
		}
		return Info{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	f := FormatFromMIME("image/" + name)
	if f == Unsupported {
		return Info{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Info{}, fmt.Errorf("%w: zero dimensions", ErrDecode)
	}
	return Info{Width: cfg.Width, Height: cfg.Height, Format: f, MIME: f.MIME()}, nil
}

func InspectFile(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()
	return Inspect(f)
}

// Decode reads a full image of the given format.
func Decode(r io.Reader, f Format) (image.Image, error) {
	var (
		img image.Image
		err error
	)
	switch f {
	case JPEG:
		img, err = jpeg.Decode(r)
	case GIF:
		img, err = gif.Decode(r)
	case PNG:
		img, err = png.Decode(r)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// Encode writes img in format f. quality only applies to JPEG.
func Encode(w io.Writer, img image.Image, f Format, quality int) error {
	switch f {
	case JPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case GIF:
		return gif.Encode(w, img, &gif.Options{NumColors: 256})
	case PNG:
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		return enc.Encode(w, img)
	}
	return ErrUnsupportedFormat
}
