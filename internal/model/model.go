// Package model provides data-structs for internal app-usage
package model

import (
	"errors"
	"image"
	"strings"
)

type (
	WatermarkType string
	FontFamily    string
	FontWeight    string
	Format        string
)

const (
	WMCorner  WatermarkType = "corner"
	WMCenter  WatermarkType = "center"
	WMCrossed WatermarkType = "crossed"
)

var WatermarkTypeMap = map[WatermarkType]bool{
	WMCorner:  true,
	WMCenter:  true,
	WMCrossed: true,
}

const (
	FontInter      FontFamily = "inter"
	FontRoboto     FontFamily = "roboto"
	FontMontserrat FontFamily = "montserrat"
)

// GetFontName - каноничное имя семейства для layout и растеризатора
var GetFontName = map[FontFamily]string{
	FontInter:      "Inter",
	FontRoboto:     "Roboto",
	FontMontserrat: "Montserrat",
}

const (
	WeightLight   FontWeight = "light"
	WeightRegular FontWeight = "regular"
	WeightBold    FontWeight = "bold"
)

// GetFontWeight - числовое значение веса для layout и растеризатора
var GetFontWeight = map[FontWeight]int{
	WeightLight:   300,
	WeightRegular: 400,
	WeightBold:    700,
}

//---------------------

const (
	FormatPNG      Format = "png"
	FormatJPEG     Format = "jpeg"
	FormatWEBP     Format = "webp"
	FormatAVIF     Format = "avif"
	FormatOriginal Format = "original" // passthrough формата исходника при экспорте
)

// EncodableFormatMap - форматы, в которые умеет кодировать конвертер
var EncodableFormatMap = map[Format]bool{
	FormatPNG:  true,
	FormatJPEG: true,
	FormatWEBP: true,
	FormatAVIF: true,
}

const (
	PNG  = "image/png"
	JPEG = "image/jpeg"
	WEBP = "image/webp"
	AVIF = "image/avif"
	SVG  = "image/svg+xml"
)

var InImageTypeMap = map[string]bool{
	PNG:  true,
	JPEG: true,
	WEBP: true,
	AVIF: true,
}

var GetMIMEType = map[Format]string{
	FormatPNG:  PNG,
	FormatJPEG: JPEG,
	FormatWEBP: WEBP,
	FormatAVIF: AVIF,
}

// NormalizeExt - приводит расширение файла к тегу формата: jpg и jpeg - одно и то же
func NormalizeExt(ext string) Format {
	ext = strings.ToLower(ext)
	if ext == "jpg" {
		return FormatJPEG
	}
	return Format(ext)
}

//---------------------

// Лимиты на загрузку - проверяются до любой генерации layout
const (
	MaxFileSize = 10 << 20    // 10 MB
	MaxPixels   = 2500 * 2500 // 6_250_000 px
	MaxSide     = 2500        // для текста ошибки
)

//---------------------

// DecodedImage - единственная живая картинка редактора, целиком заменяется следующей загрузкой
type DecodedImage struct {
	Bitmap   image.Image `json:"-"`
	SrcURI   string      `json:"-"` // data-URI, попадает в layout как источник растра
	Width    int         `json:"width"`
	Height   int         `json:"height"`
	Filename string      `json:"filename"` // без расширения
	Format   Format      `json:"format"`
}

// WatermarkSpec - параметры ватермарки; любое изменение инвалидирует layout
type WatermarkSpec struct {
	Type       WatermarkType `json:"type"`
	Text       string        `json:"text"`
	Opacity    float64       `json:"opacity"` // [0,1]
	Scale      float64       `json:"scale"`   // [0.05,0.2] от min(w,h)
	Color      string        `json:"color"`
	FontFamily FontFamily    `json:"font_family"`
	FontWeight FontWeight    `json:"font_weight"`
}

// DefaultWatermarkSpec - стартовые значения редактора
func DefaultWatermarkSpec() WatermarkSpec {
	return WatermarkSpec{
		Type:       WMCorner,
		Text:       "@fantasy42",
		Opacity:    0.5,
		Scale:      0.1,
		Color:      "#FFFFFF",
		FontFamily: FontInter,
		FontWeight: WeightBold,
	}
}

// ExportRequest - живет только на время одной операции экспорта
type ExportRequest struct {
	Layout       string `json:"-"`
	Filename     string `json:"filename"`
	TargetFormat Format `json:"format"`
}

// ------------------

// Ошибки показываются пользователю как есть - внутренние причины остаются только в логах
var (
	ErrCommon500    error = errors.New("something went wrong. Try again later")                   // 500
	ErrRead         error = errors.New("failed to read file")                                     // 400
	ErrLoad         error = errors.New("failed to load image")                                    // 400
	ErrPixelLimit   error = errors.New("image exceeds maximum size of 2500x2500 pixels")          // 400
	ErrConversion   error = errors.New("failed to convert image")                                 // 500
	ErrRenderTime   error = errors.New("the image took too long to render. Please try again")     // 504
	ErrRenderFail   error = errors.New("we couldn't download the image. Please try again")        // 500
	ErrExport       error = errors.New("failed to download the image")                            // 500
	ErrTooManyFiles error = errors.New("you can only upload one file at a time")                  // 400
	ErrFileTooLarge error = errors.New("the file is too big. The file must not exceed 10 MB")     // 400
	ErrBadFileType  error = errors.New("unsupported format. PNG, JPEG, WEBP, AVIF are supported") // 400
	ErrBadSpec      error = errors.New("incorrect watermark parameters")                          // 400
	ErrNoImage      error = errors.New("no image uploaded yet")                                   // 404
	ErrNoLayout     error = errors.New("watermark preview is not generated yet")                  // 404
	ErrUnknown      error = errors.New("unknown error occurred")                                  // 500
)
