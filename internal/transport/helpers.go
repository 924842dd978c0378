package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"

	"github.com/UnendingLoop/Watermarkit/internal/model"
	"github.com/wb-go/wbf/ginext"
)

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrCommon500),
		errors.Is(err, model.ErrConversion),
		errors.Is(err, model.ErrRenderFail),
		errors.Is(err, model.ErrExport),
		errors.Is(err, model.ErrUnknown):
		return 500
	case errors.Is(err, model.ErrRenderTime):
		return 504
	case errors.Is(err, model.ErrNoImage),
		errors.Is(err, model.ErrNoLayout):
		return 404
	case errors.Is(err, model.ErrRead),
		errors.Is(err, model.ErrLoad),
		errors.Is(err, model.ErrPixelLimit),
		errors.Is(err, model.ErrTooManyFiles),
		errors.Is(err, model.ErrFileTooLarge),
		errors.Is(err, model.ErrBadFileType),
		errors.Is(err, model.ErrBadSpec):
		return 400
	default:
		return 500
	}
}

func isAbort(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func closeFileFlow(res io.Closer) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		log.Println("Handler failed to close fileflow:", err)
	}
}

// attachmentSink - передача результата экспорта как браузерного скачивания.
// Send возвращается только после полной записи ответа - аналог ожидания
// завершения клика по ссылке скачивания.
type attachmentSink struct {
	ctx  *ginext.Context
	sent bool
}

func newAttachmentSink(ctx *ginext.Context) *attachmentSink {
	return &attachmentSink{ctx: ctx}
}

func (s *attachmentSink) Send(ctx context.Context, filename, contentType string, data io.Reader, size int64) error {
	s.sent = true

	s.ctx.Writer.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	s.ctx.Writer.Header().Set("Content-Type", contentType)
	s.ctx.Writer.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	s.ctx.Writer.WriteHeader(200)

	if n, err := io.Copy(s.ctx.Writer, data); err != nil {
		return fmt.Errorf("download interrupted at byte %d: %w", n, err)
	}
	return nil
}
