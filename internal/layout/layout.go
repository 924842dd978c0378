// Package layout generates the vector document compositing the source image and the watermark
package layout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/UnendingLoop/Watermarkit/internal/model"
)

var ErrNoDimensions = errors.New("image dimensions are unknown")

// Дефолты "crossed"-паттерна - презентационные константы, не выводятся из инвариантов
const (
	DefaultBandCount    = 4
	DefaultRepeatFactor = 6
	DefaultPadding      = 24 // px, соответствует 1.5rem
)

// Builder - чистый генератор SVG: никакого состояния кроме настроек паттерна
type Builder struct {
	BandCount    int
	RepeatFactor int
	Padding      float64
}

func NewBuilder() *Builder {
	return &Builder{
		BandCount:    DefaultBandCount,
		RepeatFactor: DefaultRepeatFactor,
		Padding:      DefaultPadding,
	}
}

// Build - собирает SVG-документ: растр-источник + текстовая ватермарка по спеке.
// src - data-URI исходного битмапа.
func (b *Builder) Build(src string, width, height int, spec *model.WatermarkSpec) (string, error) {
	if width <= 0 || height <= 0 {
		return "", ErrNoDimensions
	}

	fontSize := float64(min(width, height)) * spec.Scale

	var sb strings.Builder
	fmt.Fprintf(&sb,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		width, height, width, height)
	fmt.Fprintf(&sb,
		`<image href="%s" x="0" y="0" width="%d" height="%d" preserveAspectRatio="xMidYMid meet"/>`,
		escape(src), width, height)

	switch spec.Type {
	case model.WMCenter:
		b.writeCenter(&sb, width, height, fontSize, spec)
	case model.WMCrossed:
		b.writeCrossed(&sb, width, height, fontSize, spec)
	default: // corner
		b.writeCorner(&sb, width, height, fontSize, spec)
	}

	sb.WriteString(`</svg>`)
	return sb.String(), nil
}

// writeCorner - текст прижат к правому нижнему углу с фиксированным отступом
func (b *Builder) writeCorner(sb *strings.Builder, width, height int, fontSize float64, spec *model.WatermarkSpec) {
	fmt.Fprintf(sb,
		`<text x="%s" y="%s" text-anchor="end" %s>%s</text>`,
		num(float64(width)-b.Padding), num(float64(height)-b.Padding),
		textAttrs(fontSize, spec), escape(spec.Text))
}

// writeCenter - текст по центру обеих осей
func (b *Builder) writeCenter(sb *strings.Builder, width, height int, fontSize float64, spec *model.WatermarkSpec) {
	fmt.Fprintf(sb,
		`<text x="%s" y="%s" text-anchor="middle" dominant-baseline="central" %s>%s</text>`,
		num(float64(width)/2), num(float64(height)/2),
		textAttrs(fontSize, spec), escape(spec.Text))
}

// writeCrossed - диагональные полосы на всю ширину холста; текст повторяется,
// чтобы покрытие не зависело от его длины, каждая строка смещена по вертикали
func (b *Builder) writeCrossed(sb *strings.Builder, width, height int, fontSize float64, spec *model.WatermarkSpec) {
	band := escape(strings.Repeat(spec.Text, b.RepeatFactor))
	cx := float64(width) / 2

	for i := range b.BandCount {
		y := (float64(i) + 0.5) * float64(height) / float64(b.BandCount)
		fmt.Fprintf(sb,
			`<text x="%s" y="%s" dominant-baseline="central" transform="rotate(-30 %s %s)" %s>%s</text>`,
			num(-float64(width)/2), num(y), num(cx), num(y),
			textAttrs(fontSize, spec), band)
	}
}

func textAttrs(fontSize float64, spec *model.WatermarkSpec) string {
	return fmt.Sprintf(
		`font-family="%s" font-weight="%d" font-size="%s" fill="%s" fill-opacity="%s"`,
		model.GetFontName[spec.FontFamily],
		model.GetFontWeight[spec.FontWeight],
		num(fontSize),
		escape(spec.Color),
		num(spec.Opacity))
}

func num(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escape(s string) string {
	return escaper.Replace(s)
}
