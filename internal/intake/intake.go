package intake

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"github.com/gen2brain/webp"
	"golang.org/x/image/draw"
)

var (
	ErrUnsupportedFile = errors.New("unsupported file, please upload a JPEG, PNG, GIF or WebP image")
	ErrFileTooLarge    = errors.New("file is too large")
	ErrProcessing      = errors.New("could not process image")
)

const OutputType = "image/jpeg"

// Upload is a normalized image ready to be sent to the AI provider.
type Upload struct {
	Blob        []byte
	DataURI     string
	ContentType string
	Width       int
	Height      int
}

// DefaultMaxPixels caps the decoded bitmap; compressed size says little about decoded size.
const DefaultMaxPixels = 50_000_000

// Normalizer bounds, resizes and re-encodes uploads.
type Normalizer struct {
	MaxBytes     int64
	MaxDimension int
	MaxPixels    int64
	Quality      int
}

func NewNormalizer(maxBytes int64, maxDimension, quality int) *Normalizer {
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	return &Normalizer{MaxBytes: maxBytes, MaxDimension: maxDimension, MaxPixels: DefaultMaxPixels, Quality: quality}
}

// Normalize validates data as an image under the size ceiling, scales its long edge down to
// MaxDimension and re-encodes it as JPEG. declaredType is the client supplied MIME type.
func (n *Normalizer) Normalize(data []byte, declaredType string) (*Upload, error) {
	if declaredType != "" && !strings.HasPrefix(strings.ToLower(declaredType), "image/") {
		return nil, fmt.Errorf("%w: declared type %s", ErrUnsupportedFile, declaredType)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnsupportedFile)
	}
	if n.MaxBytes > 0 && int64(len(data)) > n.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(data), n.MaxBytes)
	}

	src, err := decode(data, n.MaxPixels)
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	w, h := scaledSize(b.Dx(), b.Dy(), n.MaxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// JPEG has no alpha; flatten onto white.
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: n.Quality}); err != nil {
		return nil, fmt.Errorf("%w: encode jpeg: %v", ErrProcessing, err)
	}

	blob := buf.Bytes()
	return &Upload{
		Blob:        blob,
		DataURI:     EncodeDataURI(OutputType, blob),
		ContentType: OutputType,
		Width:       w,
		Height:      h,
	}, nil
}

// decode reads the header first so oversized bitmaps are refused before they are allocated.
func decode(data []byte, maxPixels int64) (image.Image, error) {
	sniffed := http.DetectContentType(data)
	var (
		cfg image.Config
		err error
	)
	switch sniffed {
	case "image/jpeg", "image/png", "image/gif":
		cfg, _, err = image.DecodeConfig(bytes.NewReader(data))
	case "image/webp":
		cfg, err = webp.DecodeConfig(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: detected %s", ErrUnsupportedFile, sniffed)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s header: %v", ErrUnsupportedFile, sniffed, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrProcessing)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrFileTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	var img image.Image
	if sniffed == "image/webp" {
		img, err = webp.Decode(bytes.NewReader(data))
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUnsupportedFile, sniffed, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrProcessing)
	}
	return img, nil
}

// scaledSize fits w x h inside a limit x limit box keeping the aspect ratio. Images already
// inside the box are left as they are.
func scaledSize(w, h, limit int) (int, int) {
	if limit <= 0 || (w <= limit && h <= limit) {
		return w, h
	}
	if w >= h {
		nh := h * limit / w
		if nh < 1 {
			nh = 1
		}
		return limit, nh
	}
	nw := w * limit / h
	if nw < 1 {
		nw = 1
	}
	return nw, limit
}
