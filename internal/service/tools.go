package service

import (
	"context"
	"errors"
	"strings"

	"github.com/UnendingLoop/Watermarkit/internal/model"
)

func validateNormalizeSpec(spec *model.WatermarkSpec) error {
	// Пустые поля получают дефолты, явные неизвестные значения - ошибка
	def := model.DefaultWatermarkSpec()

	if spec.Type == "" {
		spec.Type = def.Type
	}
	if !model.WatermarkTypeMap[spec.Type] {
		return model.ErrBadSpec
	}

	if spec.FontFamily == "" {
		spec.FontFamily = def.FontFamily
	}
	if _, ok := model.GetFontName[spec.FontFamily]; !ok {
		return model.ErrBadSpec
	}

	if spec.FontWeight == "" {
		spec.FontWeight = def.FontWeight
	}
	if _, ok := model.GetFontWeight[spec.FontWeight]; !ok {
		return model.ErrBadSpec
	}

	if strings.TrimSpace(spec.Color) == "" {
		spec.Color = def.Color
	}

	// слайдеры на клиенте ограничены, сервер просто прижимает значения к границам
	spec.Opacity = clamp(spec.Opacity, 0, 1)
	spec.Scale = clamp(spec.Scale, 0.05, 0.2)

	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// resolveFormat - "original" разворачивается в формат исходника;
// теги без кодировщика (чужие расширения) откатываются в png
func resolveFormat(requested, original model.Format) model.Format {
	format := requested
	if format == "" || format == model.FormatOriginal {
		format = original
	}
	if !model.EncodableFormatMap[format] {
		return model.FormatPNG
	}
	return format
}

// Известные пользователю ошибки проходят как есть, все остальное сворачивается
// в generic-сообщение - сырые тексты исключений наружу не отдаем
var knownErrors = []error{
	model.ErrCommon500,
	model.ErrRead,
	model.ErrLoad,
	model.ErrPixelLimit,
	model.ErrConversion,
	model.ErrRenderTime,
	model.ErrRenderFail,
	model.ErrExport,
	model.ErrTooManyFiles,
	model.ErrFileTooLarge,
	model.ErrBadFileType,
	model.ErrBadSpec,
	model.ErrNoImage,
	model.ErrNoLayout,
}

func collapse(err error) error {
	for _, known := range knownErrors {
		if errors.Is(err, known) {
			return known
		}
	}
	return model.ErrUnknown
}

func isAbort(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
