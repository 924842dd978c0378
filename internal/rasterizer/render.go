package rasterizer

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/UnendingLoop/Watermarkit/internal/converter"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
)

// FaceSource - поставщик готовых шрифтовых face нужного размера
type FaceSource interface {
	Face(family string, weight int, size float64) (font.Face, error)
}

// SVGRenderer - растеризует SVG-подмножество, которое генерирует layout.Builder:
// корневой svg, один image с data-URI и text-элементы с поворотом/прозрачностью
type SVGRenderer struct {
	fonts FaceSource
}

func NewSVGRenderer(fonts FaceSource) *SVGRenderer {
	return &SVGRenderer{fonts: fonts}
}

type svgRoot struct {
	XMLName xml.Name   `xml:"svg"`
	Width   float64    `xml:"width,attr"`
	Height  float64    `xml:"height,attr"`
	Images  []svgImage `xml:"image"`
	Texts   []svgText  `xml:"text"`
}

type svgImage struct {
	Href   string  `xml:"href,attr"`
	Width  float64 `xml:"width,attr"`
	Height float64 `xml:"height,attr"`
}

type svgText struct {
	X          float64 `xml:"x,attr"`
	Y          float64 `xml:"y,attr"`
	FontFamily string  `xml:"font-family,attr"`
	FontWeight int     `xml:"font-weight,attr"`
	FontSize   float64 `xml:"font-size,attr"`
	Fill       string  `xml:"fill,attr"`
	Opacity    string  `xml:"fill-opacity,attr"`
	Anchor     string  `xml:"text-anchor,attr"`
	Baseline   string  `xml:"dominant-baseline,attr"`
	Transform  string  `xml:"transform,attr"`
	Content    string  `xml:",chardata"`
}

// Render - документ в PNG-байты
func (r *SVGRenderer) Render(doc string) ([]byte, error) {
	var root svgRoot
	if err := xml.Unmarshal([]byte(doc), &root); err != nil {
		return nil, fmt.Errorf("parse layout document: %w", err)
	}
	if root.Width <= 0 || root.Height <= 0 {
		return nil, fmt.Errorf("layout document has no dimensions")
	}

	dc := gg.NewContext(int(root.Width), int(root.Height))

	for _, img := range root.Images {
		if err := r.drawImage(dc, img); err != nil {
			return nil, err
		}
	}
	for _, txt := range root.Texts {
		if err := r.drawText(dc, txt); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dc.Image(), imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode rendered pixels: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *SVGRenderer) drawImage(dc *gg.Context, el svgImage) error {
	data, _, err := converter.ParseDataURI(el.Href)
	if err != nil {
		return fmt.Errorf("image element source: %w", err)
	}

	bitmap, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode image element: %w", err)
	}

	// размеры обычно совпадают с битмапом, но атрибуты главнее
	w, h := int(el.Width), int(el.Height)
	if bitmap.Bounds().Dx() != w || bitmap.Bounds().Dy() != h {
		bitmap = imaging.Resize(bitmap, w, h, imaging.Lanczos)
	}

	dc.DrawImage(bitmap, 0, 0)
	return nil
}

func (r *SVGRenderer) drawText(dc *gg.Context, el svgText) error {
	if el.Content == "" || el.FontSize <= 0 {
		return nil
	}

	face, err := r.fonts.Face(el.FontFamily, el.FontWeight, el.FontSize)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)

	cr, cg, cb := parseHexColor(el.Fill)
	opacity := 1.0
	if el.Opacity != "" {
		if v, err := strconv.ParseFloat(el.Opacity, 64); err == nil {
			opacity = v
		}
	}
	dc.SetColor(color.NRGBA{R: cr, G: cg, B: cb, A: uint8(opacity*255 + 0.5)})

	ax := 0.0
	switch el.Anchor {
	case "middle":
		ax = 0.5
	case "end":
		ax = 1
	}
	ay := 0.0
	if el.Baseline == "central" {
		ay = 0.5
	}

	dc.Push()
	defer dc.Pop()

	if deg, cx, cy, ok := parseRotate(el.Transform); ok {
		dc.RotateAbout(gg.Radians(deg), cx, cy)
	}

	dc.DrawStringAnchored(el.Content, el.X, el.Y, ax, ay)
	return nil
}

// parseRotate - разбирает transform вида "rotate(-30 250 62.5)"
func parseRotate(transform string) (deg, cx, cy float64, ok bool) {
	if transform == "" {
		return 0, 0, 0, false
	}
	if _, err := fmt.Sscanf(transform, "rotate(%f %f %f)", &deg, &cx, &cy); err != nil {
		return 0, 0, 0, false
	}
	return deg, cx, cy, true
}

// parseHexColor - #RGB и #RRGGBB; все остальное рисуем белым
func parseHexColor(s string) (r, g, b uint8) {
	s = strings.TrimPrefix(s, "#")

	parse := func(sub string) uint8 {
		v, err := strconv.ParseUint(sub, 16, 8)
		if err != nil {
			return 0xFF
		}
		return uint8(v)
	}

	switch len(s) {
	case 3:
		return parse(s[0:1] + s[0:1]), parse(s[1:2] + s[1:2]), parse(s[2:3] + s[2:3])
	case 6:
		return parse(s[0:2]), parse(s[2:4]), parse(s[4:6])
	default:
		return 0xFF, 0xFF, 0xFF
	}
}
