package decoder

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/UnendingLoop/Watermarkit/internal/blobstore"
	"github.com/UnendingLoop/Watermarkit/internal/converter"
	"github.com/UnendingLoop/Watermarkit/internal/model"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

func testImageReader(t *testing.T, w, h int, format imaging.Format) *bytes.Reader {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 100, G: 100, B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	err := imaging.Encode(&buf, img, format)
	require.NoError(t, err)

	return bytes.NewReader(buf.Bytes())
}

func newTestDecoder() *Decoder {
	return New(converter.New(blobstore.NewStore()))
}

func TestInferFormat(t *testing.T) {
	tests := []struct {
		name         string
		filename     string
		wantFormat   model.Format
		wantBasename string
	}{
		{name: "multiple dots uppercase ext", filename: "a.b.PNG", wantFormat: model.FormatPNG, wantBasename: "a.b"},
		{name: "no extension", filename: "noext", wantFormat: model.FormatPNG, wantBasename: "noext"},
		{name: "trailing dot", filename: "trailing.", wantFormat: model.FormatPNG, wantBasename: "trailing"},
		{name: "jpg alias", filename: "x.JPG", wantFormat: model.FormatJPEG, wantBasename: "x"},
		{name: "hidden file", filename: ".hidden", wantFormat: model.Format("hidden"), wantBasename: ""},
		{name: "unknown ext passes through", filename: "scan.TIFF", wantFormat: model.Format("tiff"), wantBasename: "scan"},
		{name: "webp", filename: "photo.webp", wantFormat: model.FormatWEBP, wantBasename: "photo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, basename := InferFormat(tt.filename)
			require.Equal(t, tt.wantFormat, format)
			require.Equal(t, tt.wantBasename, basename)
		})
	}
}

func TestDecoder_Decode_OK(t *testing.T) {
	dec := newTestDecoder()

	img, err := dec.Decode(context.Background(), "holiday.png", testImageReader(t, 120, 80, imaging.PNG))
	require.NoError(t, err)

	require.Equal(t, 120, img.Width)
	require.Equal(t, 80, img.Height)
	require.Equal(t, "holiday", img.Filename)
	require.Equal(t, model.FormatPNG, img.Format)
	require.NotNil(t, img.Bitmap)
	require.True(t, strings.HasPrefix(img.SrcURI, "data:image/png;base64,"))
}

func TestDecoder_Decode_JPEGAlias(t *testing.T) {
	dec := newTestDecoder()

	img, err := dec.Decode(context.Background(), "IMG_0042.JPG", testImageReader(t, 60, 40, imaging.JPEG))
	require.NoError(t, err)
	require.Equal(t, model.FormatJPEG, img.Format)
	require.Equal(t, "IMG_0042", img.Filename)
}

// Форматы, которые layout не умеет встраивать, нормализуются в png:
// тег остается исходным, а src-URI и размеры берутся с перекодированного битмапа
func TestDecoder_Decode_NormalizesWebp(t *testing.T) {
	dec := newTestDecoder()

	img, err := dec.Decode(context.Background(), "photo.webp", testImageReader(t, 50, 30, imaging.PNG))
	require.NoError(t, err)

	require.Equal(t, model.FormatWEBP, img.Format)
	require.True(t, strings.HasPrefix(img.SrcURI, "data:image/png;base64,"))
	require.Equal(t, 50, img.Width)
	require.Equal(t, 30, img.Height)
}

func TestDecoder_Decode_Broken(t *testing.T) {
	dec := newTestDecoder()

	_, err := dec.Decode(context.Background(), "broken.png", bytes.NewReader([]byte("not-an-image")))
	require.ErrorIs(t, err, model.ErrLoad)
}

func TestDecoder_Decode_ReadFailure(t *testing.T) {
	dec := newTestDecoder()

	_, err := dec.Decode(context.Background(), "x.png", failingReader{})
	require.ErrorIs(t, err, model.ErrRead)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, bytes.ErrTooLarge
}
