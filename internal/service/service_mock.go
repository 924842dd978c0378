package service

import (
	"context"
	"io"

	"github.com/UnendingLoop/Watermarkit/internal/exporter"
	"github.com/UnendingLoop/Watermarkit/internal/layout"
	"github.com/UnendingLoop/Watermarkit/internal/model"
)

// MOCK DECODER

type mockDecoder struct {
	decodeFn func(ctx context.Context, filename string, r io.Reader) (*model.DecodedImage, error)
}

func (m *mockDecoder) Decode(ctx context.Context, filename string, r io.Reader) (*model.DecodedImage, error) {
	return m.decodeFn(ctx, filename, r)
}

// MOCK FONT LOADER

type mockFontLoader struct {
	loadFn func(ctx context.Context) ([]layout.FontAsset, error)
}

func (m *mockFontLoader) Load(ctx context.Context) ([]layout.FontAsset, error) {
	return m.loadFn(ctx)
}

// MOCK LAYOUT BUILDER

type mockLayoutBuilder struct {
	buildFn func(src string, width, height int, spec *model.WatermarkSpec) (string, error)
}

func (m *mockLayoutBuilder) Build(src string, width, height int, spec *model.WatermarkSpec) (string, error) {
	return m.buildFn(src, width, height, spec)
}

// MOCK EXPORTER

type mockExporter struct {
	exportFn func(ctx context.Context, req *model.ExportRequest, sink exporter.Sink) error
}

func (m *mockExporter) Export(ctx context.Context, req *model.ExportRequest, sink exporter.Sink) error {
	return m.exportFn(ctx, req, sink)
}
