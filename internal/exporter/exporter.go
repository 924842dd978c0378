// Package exporter orchestrates rasterization, format conversion and the download hand-off
package exporter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/UnendingLoop/Watermarkit/internal/blobstore"
	"github.com/UnendingLoop/Watermarkit/internal/converter"
	"github.com/UnendingLoop/Watermarkit/internal/model"
	"github.com/UnendingLoop/Watermarkit/internal/mwlogger"
)

// Rasterizer - контракт воркера растеризации
type Rasterizer interface {
	Rasterize(ctx context.Context, doc string) (string, error)
}

// Sink - получатель скачивания; Send возвращает управление только после полной передачи
type Sink interface {
	Send(ctx context.Context, filename, contentType string, data io.Reader, size int64) error
}

type Exporter struct {
	raster Rasterizer
	conv   *converter.Converter
	blobs  *blobstore.Store
}

func New(raster Rasterizer, conv *converter.Converter, blobs *blobstore.Store) *Exporter {
	return &Exporter{raster: raster, conv: conv, blobs: blobs}
}

// Export - растеризует документ, при необходимости конвертирует PNG в целевой формат
// и отдает результат в sink. Созданные blob-ключи отзываются на всех путях выхода.
func (e *Exporter) Export(ctx context.Context, req *model.ExportRequest, sink Sink) error {
	logger := mwlogger.LoggerFromContext(ctx)

	url, err := e.raster.Rasterize(ctx, req.Layout)
	if err != nil {
		if isAbort(err) {
			return err // отмена - не ошибка экспорта
		}
		logger.Error().Err(err).Msg("Failed to rasterize layout for export")
		return model.ErrExport
	}
	defer e.blobs.Revoke(url)

	format := req.TargetFormat
	if format != model.FormatPNG {
		converted, err := e.conv.ConvertURI(ctx, url, format, converter.DefaultOptions())
		if err != nil {
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to convert export to %q", format))
			return model.ErrExport
		}
		// владение переходит к итоговому ключу, промежуточный png отзывается в defer выше
		defer e.blobs.Revoke(converted)
		url = converted
	}

	data, ctype, err := e.blobs.Get(url)
	if err != nil {
		logger.Error().Err(err).Msg("Export blob disappeared before download")
		return model.ErrExport
	}

	filename := fmt.Sprintf("Watermarkit_%s.%s", req.Filename, format)
	if err := sink.Send(ctx, filename, ctype, bytes.NewReader(data), int64(len(data))); err != nil {
		if isAbort(err) {
			return err
		}
		logger.Error().Err(err).Msg("Failed to hand export over to download sink")
		return model.ErrExport
	}

	return nil
}

func isAbort(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
