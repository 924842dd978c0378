package transport

import (
	"context"
	"io"

	"github.com/UnendingLoop/Watermarkit/internal/exporter"
	"github.com/UnendingLoop/Watermarkit/internal/model"
	"github.com/gin-gonic/gin"
)

type mockEditorService struct {
	uploadFn          func(ctx context.Context, filename string, size int64, ct string, fileCount int, r io.Reader) (*model.DecodedImage, error)
	updateWatermarkFn func(ctx context.Context, spec *model.WatermarkSpec) (string, error)
	previewFn         func(ctx context.Context) (string, error)
	exportFn          func(ctx context.Context, format model.Format, sink exporter.Sink) error
	lastErrorFn       func() string
}

func (m *mockEditorService) Upload(ctx context.Context, filename string, size int64, ct string, fileCount int, r io.Reader) (*model.DecodedImage, error) {
	return m.uploadFn(ctx, filename, size, ct, fileCount, r)
}

func (m *mockEditorService) UpdateWatermark(ctx context.Context, spec *model.WatermarkSpec) (string, error) {
	return m.updateWatermarkFn(ctx, spec)
}

func (m *mockEditorService) Preview(ctx context.Context) (string, error) {
	return m.previewFn(ctx)
}

func (m *mockEditorService) Export(ctx context.Context, format model.Format, sink exporter.Sink) error {
	return m.exportFn(ctx, format, sink)
}

func (m *mockEditorService) LastError() string {
	return m.lastErrorFn()
}

func init() {
	gin.SetMode(gin.TestMode)
}
