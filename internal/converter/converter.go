// Package converter re-encodes decoded bitmaps or raster-URLs into requested image formats
package converter

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/UnendingLoop/Watermarkit/internal/blobstore"
	"github.com/UnendingLoop/Watermarkit/internal/model"
	"github.com/UnendingLoop/Watermarkit/internal/mwlogger"
	"github.com/disintegration/imaging"
	"github.com/gen2brain/avif"
	"github.com/gen2brain/webp"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp" // регистрация webp-декодера для image.Decode
)

type (
	OutputMode string
)

const (
	OutputURL    OutputMode = "url"    // результат кладется в blobstore, возвращается ключ
	OutputBase64 OutputMode = "base64" // результат возвращается как data-URI
)

type Options struct {
	Quality float64
	Output  OutputMode
}

// DefaultOptions - качество как у canvas.toBlob по умолчанию
func DefaultOptions() Options {
	return Options{Quality: 0.92, Output: OutputURL}
}

// Converter - один переиспользуемый холст на все конвертации.
// Доступ к холсту сериализуется мьютексом, каждый resize полностью сбрасывает пиксели.
type Converter struct {
	mu      sync.Mutex
	surface *image.RGBA
	blobs   *blobstore.Store
}

func New(blobs *blobstore.Store) *Converter {
	return &Converter{blobs: blobs}
}

// ConvertBitmap - кодирует готовый битмап в запрошенный формат
func (c *Converter) ConvertBitmap(ctx context.Context, img image.Image, format model.Format, opts Options) (string, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	res, err := c.convert(img, format, opts)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to convert bitmap")
		return "", model.ErrConversion
	}
	return res, nil
}

// ConvertURI - декодирует строковый источник (data-URI или blob-ключ) и кодирует его в запрошенный формат
func (c *Converter) ConvertURI(ctx context.Context, src string, format model.Format, opts Options) (string, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	img, err := c.decodeSource(src)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to decode string source for conversion")
		return "", model.ErrConversion
	}

	res, err := c.convert(img, format, opts)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to convert decoded source")
		return "", model.ErrConversion
	}
	return res, nil
}

func (c *Converter) convert(img image.Image, format model.Format, opts Options) (string, error) {
	if !model.EncodableFormatMap[format] {
		return "", fmt.Errorf("no encoder for format %q", format)
	}
	if opts.Quality <= 0 || opts.Quality > 1 {
		opts.Quality = DefaultOptions().Quality
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// рисуем источник на общий холст, предварительно очистив его
	surface := c.resizeSurface(img.Bounds().Dx(), img.Bounds().Dy())
	draw.Draw(surface, surface.Bounds(), img, img.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := encode(&buf, surface, format, opts.Quality); err != nil {
		return "", fmt.Errorf("encode to %s: %w", format, err)
	}

	mime := model.GetMIMEType[format]
	if opts.Output == OutputBase64 {
		return BuildDataURI(mime, buf.Bytes()), nil
	}
	return c.blobs.Create(buf.Bytes(), mime), nil
}

// resizeSurface - переиспользует общий RGBA-буфер, выделяя новый только при нехватке места.
// Вызывать только под c.mu.
func (c *Converter) resizeSurface(w, h int) *image.RGBA {
	need := w * h * 4
	if c.surface == nil || cap(c.surface.Pix) < need {
		c.surface = image.NewRGBA(image.Rect(0, 0, w, h))
		return c.surface
	}

	c.surface = &image.RGBA{
		Pix:    c.surface.Pix[:need],
		Stride: w * 4,
		Rect:   image.Rect(0, 0, w, h),
	}
	clear(c.surface.Pix)
	return c.surface
}

func (c *Converter) decodeSource(src string) (image.Image, error) {
	if blobstore.IsBlobKey(src) {
		data, _, err := c.blobs.Get(src)
		if err != nil {
			return nil, err
		}
		return imaging.Decode(bytes.NewReader(data))
	}

	data, _, err := ParseDataURI(src)
	if err != nil {
		return nil, err
	}
	return imaging.Decode(bytes.NewReader(data))
}

func encode(buf *bytes.Buffer, img image.Image, format model.Format, quality float64) error {
	q := int(quality * 100)

	switch format {
	case model.FormatPNG:
		return imaging.Encode(buf, img, imaging.PNG)
	case model.FormatJPEG:
		return imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(q))
	case model.FormatWEBP:
		return webp.Encode(buf, img, webp.Options{Quality: q})
	case model.FormatAVIF:
		return avif.Encode(buf, img, avif.Options{Quality: q})
	default:
		return fmt.Errorf("no encoder for format %q", format)
	}
}
