// Package decoder turns an uploaded file into an in-memory bitmap plus metadata
package decoder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"

	"github.com/UnendingLoop/Watermarkit/internal/converter"
	"github.com/UnendingLoop/Watermarkit/internal/model"
	"github.com/UnendingLoop/Watermarkit/internal/mwlogger"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/gen2brain/avif" // регистрация avif-декодера
	_ "golang.org/x/image/webp"   // регистрация webp-декодера
)

type Decoder struct {
	conv *converter.Converter
}

func New(conv *converter.Converter) *Decoder {
	return &Decoder{conv: conv}
}

// Decode - читает файл, грузит битмап, определяет формат по расширению имени.
// webp/avif перекодируются в png: движок layout не умеет вставлять их как растр напрямую.
func (d *Decoder) Decode(ctx context.Context, filename string, r io.Reader) (*model.DecodedImage, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	data, err := io.ReadAll(r)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read uploaded file")
		return nil, model.ErrRead
	}

	bitmap, err := loadBitmap(data)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load bitmap from uploaded file")
		return nil, model.ErrLoad
	}

	format, basename := InferFormat(filename)
	srcURI := converter.BuildDataURI(http.DetectContentType(data), data)

	// форматы, которые не встраиваются в layout - нормализуем через конвертер
	if format == model.FormatWEBP || format == model.FormatAVIF {
		srcURI, bitmap, err = d.normalize(ctx, bitmap)
		if err != nil {
			return nil, err
		}
	}

	return &model.DecodedImage{
		Bitmap:   bitmap,
		SrcURI:   srcURI,
		Width:    bitmap.Bounds().Dx(),
		Height:   bitmap.Bounds().Dy(),
		Filename: basename,
		Format:   format,
	}, nil
}

// normalize - перегоняет битмап в png data-URI и перечитывает его оттуда.
// Размеры дальше берутся именно с перечитанного битмапа.
func (d *Decoder) normalize(ctx context.Context, bitmap image.Image) (string, image.Image, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	uri, err := d.conv.ConvertBitmap(ctx, bitmap, model.FormatPNG, converter.Options{Output: converter.OutputBase64})
	if err != nil {
		return "", nil, err // конвертер уже свернул причину в ErrConversion
	}

	data, _, err := converter.ParseDataURI(uri)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to parse converted png data-URI")
		return "", nil, model.ErrLoad
	}

	converted, err := loadBitmap(data)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to reload bitmap from converted png")
		return "", nil, model.ErrLoad
	}

	return uri, converted, nil
}

// InferFormat - определяет тег формата по расширению имени файла и
// возвращает имя без расширения. Пустое/отсутствующее расширение - png,
// неизвестные расширения пропускаются как есть в нижнем регистре.
func InferFormat(filename string) (model.Format, string) {
	dot := strings.LastIndex(filename, ".")
	if dot < 0 {
		return model.FormatPNG, filename
	}

	ext := filename[dot+1:]
	basename := filename[:dot]
	if ext == "" {
		return model.FormatPNG, basename
	}

	return model.NormalizeExt(ext), basename
}

func loadBitmap(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode bitmap: %w", err)
	}
	return img, nil
}
