package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/UnendingLoop/Watermarkit/internal/exporter"
	"github.com/UnendingLoop/Watermarkit/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"
)

func TestEditorHandler_Ping(t *testing.T) {
	r := gin.New()
	h := NewEditorHandler(nil)

	r.GET("/ping", func(c *gin.Context) {
		h.SimplePinger((*ginext.Context)(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "pong", body["message"])
}

func newUploadRequest(t *testing.T, files map[string][]byte) *http.Request {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, content := range files {
		fw, err := w.CreateFormFile(name, name+".png")
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/image", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestEditorHandler_Upload(t *testing.T) {
	tests := []struct {
		name       string
		req        *http.Request
		mock       *mockEditorService
		wantStatus int
	}{
		{
			name: "success",
			req:  newUploadRequest(t, map[string][]byte{"image": []byte("img")}),
			mock: &mockEditorService{
				uploadFn: func(ctx context.Context, filename string, size int64, ct string, fileCount int, r io.Reader) (*model.DecodedImage, error) {
					require.Equal(t, "image.png", filename)
					require.Equal(t, 1, fileCount)
					return &model.DecodedImage{Width: 400, Height: 300, Filename: "image", Format: model.FormatPNG}, nil
				},
			},
			wantStatus: 201,
		},
		{
			name:       "missing file field",
			req:        newUploadRequest(t, nil),
			mock:       &mockEditorService{},
			wantStatus: 400,
		},
		{
			name: "file too large",
			req:  newUploadRequest(t, map[string][]byte{"image": []byte("img")}),
			mock: &mockEditorService{
				uploadFn: func(ctx context.Context, filename string, size int64, ct string, fileCount int, r io.Reader) (*model.DecodedImage, error) {
					return nil, model.ErrFileTooLarge
				},
			},
			wantStatus: 400,
		},
		{
			name: "pixel limit",
			req:  newUploadRequest(t, map[string][]byte{"image": []byte("img")}),
			mock: &mockEditorService{
				uploadFn: func(ctx context.Context, filename string, size int64, ct string, fileCount int, r io.Reader) (*model.DecodedImage, error) {
					return nil, model.ErrPixelLimit
				},
			},
			wantStatus: 400,
		},
		{
			name: "internal failure",
			req:  newUploadRequest(t, map[string][]byte{"image": []byte("img")}),
			mock: &mockEditorService{
				uploadFn: func(ctx context.Context, filename string, size int64, ct string, fileCount int, r io.Reader) (*model.DecodedImage, error) {
					return nil, model.ErrUnknown
				},
			},
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewEditorHandler(tt.mock)

			r.POST("/image", func(c *gin.Context) {
				h.Upload((*ginext.Context)(c))
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, tt.req)

			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestEditorHandler_UpdateWatermark(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		mock       *mockEditorService
		wantStatus int
		wantCType  string
	}{
		{
			name: "success returns layout",
			body: `{"type":"center","text":"@someone","opacity":0.5,"scale":0.1}`,
			mock: &mockEditorService{
				updateWatermarkFn: func(ctx context.Context, spec *model.WatermarkSpec) (string, error) {
					require.Equal(t, model.WMCenter, spec.Type)
					return "<svg>@someone</svg>", nil
				},
			},
			wantStatus: 200,
			wantCType:  model.SVG,
		},
		{
			name:       "malformed json",
			body:       `{"type":`,
			mock:       &mockEditorService{},
			wantStatus: 400,
		},
		{
			name: "bad spec",
			body: `{"type":"spiral"}`,
			mock: &mockEditorService{
				updateWatermarkFn: func(ctx context.Context, spec *model.WatermarkSpec) (string, error) {
					return "", model.ErrBadSpec
				},
			},
			wantStatus: 400,
		},
		{
			name: "superseded run is not an error",
			body: `{"type":"center"}`,
			mock: &mockEditorService{
				updateWatermarkFn: func(ctx context.Context, spec *model.WatermarkSpec) (string, error) {
					return "", context.Canceled
				},
			},
			wantStatus: 204,
		},
		{
			name: "no image yet",
			body: `{"type":"center"}`,
			mock: &mockEditorService{
				updateWatermarkFn: func(ctx context.Context, spec *model.WatermarkSpec) (string, error) {
					return "", model.ErrNoImage
				},
			},
			wantStatus: 404,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewEditorHandler(tt.mock)

			r.PUT("/watermark", func(c *gin.Context) {
				h.UpdateWatermark((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodPut, "/watermark", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCType != "" {
				require.Equal(t, tt.wantCType, w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestEditorHandler_Preview(t *testing.T) {
	r := gin.New()
	h := NewEditorHandler(&mockEditorService{
		previewFn: func(ctx context.Context) (string, error) {
			return "<svg>preview</svg>", nil
		},
	})

	r.GET("/preview", func(c *gin.Context) {
		h.Preview((*ginext.Context)(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/preview", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	require.Equal(t, model.SVG, w.Header().Get("Content-Type"))
	require.Equal(t, "<svg>preview</svg>", w.Body.String())
}

func TestEditorHandler_Preview_NotReady(t *testing.T) {
	r := gin.New()
	h := NewEditorHandler(&mockEditorService{
		previewFn: func(ctx context.Context) (string, error) {
			return "", model.ErrNoLayout
		},
	})

	r.GET("/preview", func(c *gin.Context) {
		h.Preview((*ginext.Context)(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/preview", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, 404, w.Code)
}

func TestEditorHandler_Export(t *testing.T) {
	r := gin.New()
	h := NewEditorHandler(&mockEditorService{
		exportFn: func(ctx context.Context, format model.Format, sink exporter.Sink) error {
			require.Equal(t, model.FormatJPEG, format)
			return sink.Send(ctx, "Watermarkit_photo.jpeg", model.JPEG, strings.NewReader("jpeg-bytes"), 10)
		},
	})

	r.POST("/export", func(c *gin.Context) {
		h.Export((*ginext.Context)(c))
	})

	req := httptest.NewRequest(http.MethodPost, "/export?format=jpeg", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	require.Equal(t, `attachment; filename="Watermarkit_photo.jpeg"`, w.Header().Get("Content-Disposition"))
	require.Equal(t, model.JPEG, w.Header().Get("Content-Type"))
	require.Equal(t, "10", w.Header().Get("Content-Length"))
	require.Equal(t, "jpeg-bytes", w.Body.String())
}

func TestEditorHandler_Export_DefaultsToOriginal(t *testing.T) {
	r := gin.New()
	h := NewEditorHandler(&mockEditorService{
		exportFn: func(ctx context.Context, format model.Format, sink exporter.Sink) error {
			require.Equal(t, model.FormatOriginal, format)
			return sink.Send(ctx, "Watermarkit_photo.png", model.PNG, strings.NewReader("png"), 3)
		},
	})

	r.POST("/export", func(c *gin.Context) {
		h.Export((*ginext.Context)(c))
	})

	req := httptest.NewRequest(http.MethodPost, "/export", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
}

func TestEditorHandler_Export_FailsBeforeHeaders(t *testing.T) {
	r := gin.New()
	h := NewEditorHandler(&mockEditorService{
		exportFn: func(ctx context.Context, format model.Format, sink exporter.Sink) error {
			return model.ErrNoLayout // падение до первого байта - обычный json с ошибкой
		},
	})

	r.POST("/export", func(c *gin.Context) {
		h.Export((*ginext.Context)(c))
	})

	req := httptest.NewRequest(http.MethodPost, "/export", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, 404, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, model.ErrNoLayout.Error(), body["error"])
}

func TestEditorHandler_Export_FailsMidStream(t *testing.T) {
	r := gin.New()
	h := NewEditorHandler(&mockEditorService{
		exportFn: func(ctx context.Context, format model.Format, sink exporter.Sink) error {
			// заголовки уже ушли, затем доставка оборвалась
			_ = sink.Send(ctx, "Watermarkit_photo.png", model.PNG, strings.NewReader("png"), 3)
			return model.ErrExport
		},
	})

	r.POST("/export", func(c *gin.Context) {
		h.Export((*ginext.Context)(c))
	})

	req := httptest.NewRequest(http.MethodPost, "/export", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// статус не переписывается задним числом
	require.Equal(t, 200, w.Code)
	require.NotContains(t, w.Body.String(), "error")
}

func TestEditorHandler_Status(t *testing.T) {
	r := gin.New()
	h := NewEditorHandler(&mockEditorService{
		lastErrorFn: func() string { return model.ErrPixelLimit.Error() },
	})

	r.GET("/status", func(c *gin.Context) {
		h.Status((*ginext.Context)(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, model.ErrPixelLimit.Error(), body["error"])
}
