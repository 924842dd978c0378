// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"io"

	"github.com/UnendingLoop/Watermarkit/internal/exporter"
	"github.com/UnendingLoop/Watermarkit/internal/model"
	"github.com/wb-go/wbf/ginext"
)

type EditorHandler struct {
	service EditorService
}

type EditorService interface {
	Upload(ctx context.Context, filename string, size int64, contentType string, fileCount int, r io.Reader) (*model.DecodedImage, error)
	UpdateWatermark(ctx context.Context, spec *model.WatermarkSpec) (string, error) // вернуть свежий layout
	Preview(ctx context.Context) (string, error)                                   // последний layout
	Export(ctx context.Context, format model.Format, sink exporter.Sink) error     // прям скачать результат
	LastError() string
}

func NewEditorHandler(svc EditorService) *EditorHandler {
	return &EditorHandler{
		service: svc,
	}
}

func (h EditorHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

func (h EditorHandler) Upload(ctx *ginext.Context) {
	file, header, err := ctx.Request.FormFile("image")
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "image is required"})
		return
	}
	defer closeFileFlow(file)

	// сколько файлов реально пришло в поле - лимит один за операцию
	fileCount := 1
	if form := ctx.Request.MultipartForm; form != nil {
		fileCount = len(form.File["image"])
	}

	img, err := h.service.Upload(ctx.Request.Context(),
		header.Filename,
		header.Size,
		header.Header.Get("Content-Type"),
		fileCount,
		file,
	)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(201, img)
}

func (h EditorHandler) UpdateWatermark(ctx *ginext.Context) {
	var spec model.WatermarkSpec
	if err := ctx.BindJSON(&spec); err != nil {
		ctx.JSON(400, map[string]string{"error": model.ErrBadSpec.Error()})
		return
	}

	svg, err := h.service.UpdateWatermark(ctx.Request.Context(), &spec)
	if err != nil {
		if isAbort(err) {
			ctx.Status(204) // прогон вытеснен более свежим - результата нет, но это не ошибка
			return
		}
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Data(200, model.SVG, []byte(svg))
}

func (h EditorHandler) Preview(ctx *ginext.Context) {
	svg, err := h.service.Preview(ctx.Request.Context())
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Data(200, model.SVG, []byte(svg))
}

func (h EditorHandler) Export(ctx *ginext.Context) {
	format := model.Format(ctx.DefaultQuery("format", string(model.FormatOriginal)))

	sink := newAttachmentSink(ctx)
	if err := h.service.Export(ctx.Request.Context(), format, sink); err != nil {
		if sink.sent {
			return // заголовки уже ушли клиенту, остается только лог внутри сервиса
		}
		if isAbort(err) {
			ctx.Status(204)
			return
		}
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
	}
}

func (h EditorHandler) Status(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"error": h.service.LastError()})
}
