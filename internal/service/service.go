// Package service provides business-logic for the app
package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/UnendingLoop/Watermarkit/internal/blobstore"
	"github.com/UnendingLoop/Watermarkit/internal/exporter"
	"github.com/UnendingLoop/Watermarkit/internal/layout"
	"github.com/UnendingLoop/Watermarkit/internal/model"
	"github.com/UnendingLoop/Watermarkit/internal/mwlogger"
)

// ImageDecoder - контракт декодера загрузки
type ImageDecoder interface {
	Decode(ctx context.Context, filename string, r io.Reader) (*model.DecodedImage, error)
}

// FontLoader - контракт кэша шрифтов
type FontLoader interface {
	Load(ctx context.Context) ([]layout.FontAsset, error)
}

// LayoutBuilder - контракт генератора layout-документа
type LayoutBuilder interface {
	Build(src string, width, height int, spec *model.WatermarkSpec) (string, error)
}

// ImageExporter - контракт экспорта
type ImageExporter interface {
	Export(ctx context.Context, req *model.ExportRequest, sink exporter.Sink) error
}

// EditorSession - координатор одной сессии редактора: единственная живая картинка,
// текущие параметры ватермарки, последний успешно сгенерированный layout и один
// слот ошибки. Каждая новая генерация отменяет предыдущую незавершенную.
type EditorSession struct {
	decoder  ImageDecoder
	fonts    FontLoader
	layout   LayoutBuilder
	exporter ImageExporter
	blobs    *blobstore.Store
	debounce time.Duration

	mu        sync.Mutex
	image     *model.DecodedImage
	spec      model.WatermarkSpec
	svg       string
	errMsg    string
	runSeq    uint64
	cancelRun context.CancelFunc
}

func NewEditorSession(dec ImageDecoder, fonts FontLoader, lb LayoutBuilder, exp ImageExporter, blobs *blobstore.Store, debounce time.Duration) *EditorSession {
	return &EditorSession{
		decoder:  dec,
		fonts:    fonts,
		layout:   lb,
		exporter: exp,
		blobs:    blobs,
		debounce: debounce,
		spec:     model.DefaultWatermarkSpec(),
	}
}

// Upload - валидирует лимиты, декодирует файл и целиком заменяет текущую картинку.
// Превью перегенерируется в фоне.
func (s *EditorSession) Upload(ctx context.Context, filename string, size int64, contentType string, fileCount int, r io.Reader) (*model.DecodedImage, error) {
	s.clearError()

	// отдельное сообщение на каждую причину отказа
	if fileCount > 1 {
		return nil, s.fail(model.ErrTooManyFiles)
	}
	if !model.InImageTypeMap[contentType] {
		return nil, s.fail(model.ErrBadFileType)
	}
	if size <= 0 || size > model.MaxFileSize {
		return nil, s.fail(model.ErrFileTooLarge)
	}

	img, err := s.decoder.Decode(ctx, filename, r)
	if err != nil {
		return nil, s.fail(collapse(err))
	}

	// лимит пикселей проверяется до любой генерации layout
	if img.Width*img.Height > model.MaxPixels {
		return nil, s.fail(model.ErrPixelLimit)
	}

	s.mu.Lock()
	s.image = img
	s.svg = "" // layout предыдущей картинки недействителен
	s.mu.Unlock()

	go func() {
		_, _ = s.Regenerate(context.Background())
	}()

	return img, nil
}

// UpdateWatermark - применяет новые параметры и запускает перегенерацию.
// Возвращает свежий layout либо ошибку отмены, если прилетел еще более новый запрос.
func (s *EditorSession) UpdateWatermark(ctx context.Context, raw *model.WatermarkSpec) (string, error) {
	s.clearError()

	if err := validateNormalizeSpec(raw); err != nil {
		return "", s.fail(err)
	}

	s.mu.Lock()
	s.spec = *raw
	s.mu.Unlock()

	return s.Regenerate(ctx)
}

// Regenerate - один прогон генерации layout. Прогон владеет своим контекстом отмены;
// старт нового прогона отменяет предыдущий, отмена проверяется на каждой точке
// ожидания и перед коммитом, чтобы устаревший результат не перетер свежий.
func (s *EditorSession) Regenerate(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.image == nil {
		s.mu.Unlock()
		return "", s.fail(model.ErrNoImage)
	}
	img := s.image
	spec := s.spec

	if s.cancelRun != nil {
		s.cancelRun()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRun = cancel
	s.runSeq++
	seq := s.runSeq
	s.mu.Unlock()

	runCtx = mwlogger.ContextWithRunLogger(runCtx, seq)
	logger := mwlogger.LoggerFromContext(runCtx)

	// коалесценция шквала правок: прогоны, отмененные за время паузы, работу не начинают
	if s.debounce > 0 {
		select {
		case <-time.After(s.debounce):
		case <-runCtx.Done():
			return "", runCtx.Err()
		}
	}

	// общий кэш шрифтов переживает отмену этого прогона, прерывается только ожидание
	if _, err := s.fonts.Load(runCtx); err != nil {
		if isAbort(err) {
			return "", err
		}
		logger.Error().Err(err).Msg("Failed to load fonts for layout generation")
		return "", s.fail(collapse(err))
	}

	svg, err := s.layout.Build(img.SrcURI, img.Width, img.Height, &spec)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build layout")
		return "", s.fail(collapse(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if runCtx.Err() != nil || s.runSeq != seq {
		return "", context.Canceled // прогон устарел, результат не коммитим
	}
	s.svg = svg
	return svg, nil
}

// Preview - последний успешно сгенерированный layout
func (s *EditorSession) Preview(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.image == nil {
		return "", model.ErrNoImage
	}
	if s.svg == "" {
		return "", model.ErrNoLayout
	}
	return s.svg, nil
}

// Export - запускает экспорт текущего layout в указанном формате
func (s *EditorSession) Export(ctx context.Context, format model.Format, sink exporter.Sink) error {
	s.clearError()

	s.mu.Lock()
	img := s.image
	svg := s.svg
	s.mu.Unlock()

	if img == nil {
		return s.fail(model.ErrNoImage)
	}
	if svg == "" {
		return s.fail(model.ErrNoLayout)
	}

	req := &model.ExportRequest{
		Layout:       svg,
		Filename:     img.Filename,
		TargetFormat: resolveFormat(format, img.Format),
	}

	if err := s.exporter.Export(ctx, req, sink); err != nil {
		if isAbort(err) {
			return err // отмена молча гасит доставку результата
		}
		return s.fail(collapse(err))
	}
	return nil
}

// LastError - содержимое слота ошибки для показа пользователю
func (s *EditorSession) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Close - завершение сессии: гасим незавершенный прогон и чистим blob-реестр
func (s *EditorSession) Close() {
	s.mu.Lock()
	if s.cancelRun != nil {
		s.cancelRun()
	}
	s.mu.Unlock()

	s.blobs.Close()
}

func (s *EditorSession) fail(err error) error {
	s.mu.Lock()
	s.errMsg = err.Error()
	s.mu.Unlock()
	return err
}

func (s *EditorSession) clearError() {
	s.mu.Lock()
	s.errMsg = ""
	s.mu.Unlock()
}
