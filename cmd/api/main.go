// Package main (in api-subfolder) provides launch of the whole application
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/Watermarkit/internal/blobstore"
	"github.com/UnendingLoop/Watermarkit/internal/converter"
	"github.com/UnendingLoop/Watermarkit/internal/decoder"
	"github.com/UnendingLoop/Watermarkit/internal/exporter"
	"github.com/UnendingLoop/Watermarkit/internal/layout"
	"github.com/UnendingLoop/Watermarkit/internal/mwlogger"
	"github.com/UnendingLoop/Watermarkit/internal/rasterizer"
	"github.com/UnendingLoop/Watermarkit/internal/service"
	"github.com/UnendingLoop/Watermarkit/internal/transport"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/считать энвы
	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	// стартуем логгер
	zlog.InitConsole()
	if err := zlog.SetLevel("info"); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// готовим заранее слушатель прерываний - контекст для всего приложения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := appConfig.GetString("APP_PORT")

	// собираем пайплайн: blob-реестр -> конвертер -> декодер -> layout -> воркер -> экспортер
	blobs := blobstore.NewStore()
	conv := converter.New(blobs)
	dec := decoder.New(conv)

	fontsBase := appConfig.GetString("FONTS_BASE_URL")
	if fontsBase == "" {
		fontsBase = "http://localhost:" + port // шрифты по умолчанию раздаем сами
	}
	fonts := layout.NewFontCache(fontsBase)
	builder := layout.NewBuilder()

	raster := rasterizer.NewClient(
		rasterizer.NewSVGRenderer(fonts),
		blobs,
		time.Duration(appConfig.GetInt("RASTER_TIMEOUT_MS"))*time.Millisecond,
	)
	exp := exporter.New(raster, conv, blobs)

	debounce := time.Duration(appConfig.GetInt("EDIT_DEBOUNCE_MS")) * time.Millisecond

	// создаем экземпляр сессии редактора
	var svc EditorAPIService = service.NewEditorSession(dec, fonts, builder, exp, blobs, debounce)
	// cоздаем экземпляр хендлера HTTP
	handlers := transport.NewEditorHandler(svc)
	// сетапим сервер
	mode := appConfig.GetString("GIN_MODE")
	engine := ginext.New(mode)

	engine.GET("/ping", handlers.SimplePinger)
	engine.POST("/image", handlers.Upload)             // загрузка исходника
	engine.PUT("/watermark", handlers.UpdateWatermark) // параметры ватермарки + свежий layout
	engine.GET("/preview", handlers.Preview)           // последний layout
	engine.POST("/export", handlers.Export)            // скачивание результата
	engine.GET("/status", handlers.Status)             // слот ошибки редактора

	fontsDir := appConfig.GetString("FONTS_DIR")
	if fontsDir == "" {
		fontsDir = "./internal/web/fonts"
	}
	engine.Static("/fonts", fontsDir)
	engine.Static("/web", "./internal/web")

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: mwlogger.NewMWLogger(engine),
	}

	// Server launch
	go func() {
		log.Printf("Server running on http://localhost%s\n", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				log.Println("Server gracefully stopping...")
			default:
				log.Printf("Server stopped: %v", err)
				stop()
			}
		}
	}()

	// ждем отмены контекста для запуска грейсфул закрытия
	<-ctx.Done()

	shutdown(srv, raster, svc)
	log.Println("Exiting app...")
}

func shutdown(srv *http.Server, raster *rasterizer.Client, svc EditorAPIService) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("Failed to stop HTTP-server correctly:", err)
	}
	log.Println("HTTP-server stopped.")

	// воркер растеризации: все ожидающие запросы получают отказ
	raster.Close()
	log.Println("Rasterizer worker stopped.")

	// сессия редактора: снимаем незавершенные прогоны и чистим blob-реестр
	svc.Close()
	log.Println("Editor session closed.")
}
