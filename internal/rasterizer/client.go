// Package rasterizer turns a vector layout document into a pixel image off the caller's goroutine
package rasterizer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/UnendingLoop/Watermarkit/internal/blobstore"
	"github.com/UnendingLoop/Watermarkit/internal/model"
	"github.com/wb-go/wbf/zlog"
)

const DefaultTimeout = 60 * time.Second

// Протокол воркера: ровно один ответ на каждый id
type request struct {
	ID  uint64
	Doc string
}

type response struct {
	ID     uint64
	Pixels []byte // PNG, передается во владение получателю
	Err    string
}

type Renderer interface {
	Render(doc string) ([]byte, error)
}

type result struct {
	url string
	err error
}

// Client - обвязка вокруг изолированного воркер-контекста: корреляция id -> ожидающий
// вызов, сторожевой таймер на каждый запрос, единообразный отказ всем ожидающим
// при падении воркера. Несколько запросов могут быть в полете одновременно.
type Client struct {
	renderer Renderer
	blobs    *blobstore.Store
	timeout  time.Duration

	requests  chan request
	responses chan response

	mu      sync.Mutex
	pending map[uint64]func(result)

	nextID    atomic.Uint64
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(renderer Renderer, blobs *blobstore.Store, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		renderer:  renderer,
		blobs:     blobs,
		timeout:   timeout,
		requests:  make(chan request, 16),
		responses: make(chan response, 16),
		pending:   make(map[uint64]func(result)),
		done:      make(chan struct{}),
	}

	go c.workerLoop()
	go c.dispatchLoop()

	return c
}

// Rasterize - рендерит документ в PNG и возвращает blob-ключ результата.
// Владелец ключа - вызывающий. Отмена ctx снимает ожидание без ошибки рендера.
func (c *Client) Rasterize(ctx context.Context, doc string) (string, error) {
	id := c.nextID.Add(1)
	resCh := make(chan result, 1)

	// сторожевой таймер живет независимо от канала воркера
	timer := time.AfterFunc(c.timeout, func() {
		if c.take(id) != nil {
			resCh <- result{err: model.ErrRenderTime}
		}
	})

	c.mu.Lock()
	c.pending[id] = func(r result) {
		timer.Stop()
		resCh <- r
	}
	c.mu.Unlock()

	select {
	case c.requests <- request{ID: id, Doc: doc}:
	case <-c.done:
		timer.Stop()
		c.take(id)
		return "", model.ErrRenderFail
	case <-ctx.Done():
		timer.Stop()
		c.take(id)
		return "", ctx.Err()
	}

	select {
	case res := <-resCh:
		return res.url, res.err
	case <-ctx.Done():
		timer.Stop()
		c.take(id)
		return "", ctx.Err()
	}
}

// Close - завершает воркера; все ожидающие запросы получают единый отказ
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.failAll()
	})
}

func (c *Client) workerLoop() {
	for {
		select {
		case <-c.done:
			return
		case req := <-c.requests:
			pixels, err := c.render(req.Doc)
			resp := response{ID: req.ID, Pixels: pixels}
			if err != nil {
				resp = response{ID: req.ID, Err: err.Error()}
			}

			select {
			case c.responses <- resp:
			case <-c.done:
				return
			}
		}
	}
}

// render - паника рендера не валит воркера, а превращается в ответ-ошибку по id
func (c *Client) render(doc string) (pixels []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Logger.Error().Any("panic", r).Msg("Rasterizer worker panicked")
			pixels, err = nil, model.ErrRenderFail
		}
	}()

	return c.renderer.Render(doc)
}

func (c *Client) dispatchLoop() {
	for {
		select {
		case <-c.done:
			return
		case resp := <-c.responses:
			deliver := c.take(resp.ID)
			if deliver == nil {
				continue // неизвестный или повторный ответ молча игнорируется
			}

			if resp.Err != "" {
				zlog.Logger.Error().Str("cause", resp.Err).Msg("Rasterizer worker reported failure")
				deliver(result{err: model.ErrRenderFail})
				continue
			}

			url := c.blobs.Create(resp.Pixels, model.PNG)
			deliver(result{url: url})
		}
	}
}

// take - атомарно снимает ожидающий колбэк; nil если id уже обслужен
func (c *Client) take(id uint64) func(result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deliver, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return deliver
}

func (c *Client) failAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, deliver := range c.pending {
		delete(c.pending, id)
		deliver(result{err: model.ErrRenderFail})
	}
}

func (c *Client) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
