package main

import (
	"context"
	"io"

	"github.com/UnendingLoop/Watermarkit/internal/exporter"
	"github.com/UnendingLoop/Watermarkit/internal/model"
)

type EditorAPIService interface {
	Upload(ctx context.Context, filename string, size int64, contentType string, fileCount int, r io.Reader) (*model.DecodedImage, error)
	UpdateWatermark(ctx context.Context, spec *model.WatermarkSpec) (string, error)
	Preview(ctx context.Context) (string, error)
	Export(ctx context.Context, format model.Format, sink exporter.Sink) error
	LastError() string
	Close()
}
