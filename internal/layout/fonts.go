package layout

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/UnendingLoop/Watermarkit/internal/model"
	"github.com/golang/freetype/truetype"
	"github.com/wb-go/wbf/retry"
	"golang.org/x/image/font"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// FontAsset - один скачанный шрифтовой бинарь из манифеста
type FontAsset struct {
	Family model.FontFamily
	Weight model.FontWeight
	Style  string
	Data   []byte
}

type manifestEntry struct {
	family model.FontFamily
	weight model.FontWeight
	path   string
}

// Манифест фиксированный: 3 семейства x 3 веса
var fontManifest = []manifestEntry{
	{model.FontInter, model.WeightLight, "/fonts/inter-300-normal.ttf"},
	{model.FontInter, model.WeightRegular, "/fonts/inter-400-normal.ttf"},
	{model.FontInter, model.WeightBold, "/fonts/inter-700-normal.ttf"},
	{model.FontMontserrat, model.WeightLight, "/fonts/montserrat-300-normal.ttf"},
	{model.FontMontserrat, model.WeightRegular, "/fonts/montserrat-400-normal.ttf"},
	{model.FontMontserrat, model.WeightBold, "/fonts/montserrat-700-normal.ttf"},
	{model.FontRoboto, model.WeightLight, "/fonts/roboto-300-normal.ttf"},
	{model.FontRoboto, model.WeightRegular, "/fonts/roboto-400-normal.ttf"},
	{model.FontRoboto, model.WeightBold, "/fonts/roboto-700-normal.ttf"},
}

// FontCache - лениво наполняемый кэш шрифтов на все время жизни сессии.
// Наполнение идет через singleflight: сколько бы конкурентных вызовов ни пришло,
// скачивание запускается один раз. Неудачное скачивание не кэшируется.
type FontCache struct {
	baseURL  string
	client   *http.Client
	strategy retry.Strategy
	group    singleflight.Group

	mu    sync.RWMutex
	fonts []FontAsset
	faces map[string]*truetype.Font
}

func NewFontCache(baseURL string) *FontCache {
	return &FontCache{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		strategy: retry.Strategy{
			Attempts: 3,
			Delay:    1 * time.Second,
			Backoff:  2,
		},
		faces: make(map[string]*truetype.Font),
	}
}

// Load - возвращает все 9 шрифтов, при первом вызове скачивая их конкурентно.
// Отмена ctx вызывающего не прерывает общее скачивание - оно завершится и
// наполнит кэш для следующих вызовов, а вызывающий получит ctx.Err().
func (c *FontCache) Load(ctx context.Context) ([]FontAsset, error) {
	c.mu.RLock()
	cached := c.fonts
	c.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	ch := c.group.DoChan("fonts", func() (any, error) {
		return c.fetchAll()
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]FontAsset), nil
	}
}

// fetchAll - намеренно без контекста вызывающего: скачивание общее для всех
func (c *FontCache) fetchAll() ([]FontAsset, error) {
	fonts := make([]FontAsset, len(fontManifest))

	var g errgroup.Group
	for i, entry := range fontManifest {
		g.Go(func() error {
			data, err := c.fetchOne(entry.path)
			if err != nil {
				return err
			}
			fonts[i] = FontAsset{
				Family: entry.family,
				Weight: entry.weight,
				Style:  "normal",
				Data:   data,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.fonts = fonts
	c.mu.Unlock()

	return fonts, nil
}

func (c *FontCache) fetchOne(path string) ([]byte, error) {
	var data []byte

	err := retry.Do(func() error {
		resp, err := c.client.Get(c.baseURL + path)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("failed to load font %s: status %d", path, resp.StatusCode)
		}

		data, err = io.ReadAll(resp.Body)
		return err
	}, c.strategy)
	if err != nil {
		return nil, err
	}

	return data, nil
}

// Face - отдает готовый font.Face нужного размера для растеризатора.
// Разобранные truetype-шрифты мемоизируются, face создается на каждый размер.
func (c *FontCache) Face(family string, weight int, size float64) (font.Face, error) {
	asset, ok := c.lookup(family, weight)
	if !ok {
		return nil, fmt.Errorf("font %s %d is not in the manifest", family, weight)
	}

	key := fmt.Sprintf("%s|%d", family, weight)

	c.mu.Lock()
	parsed, ok := c.faces[key]
	c.mu.Unlock()

	if !ok {
		var err error
		parsed, err = truetype.Parse(asset.Data)
		if err != nil {
			return nil, fmt.Errorf("parse font %s: %w", key, err)
		}
		c.mu.Lock()
		c.faces[key] = parsed
		c.mu.Unlock()
	}

	return truetype.NewFace(parsed, &truetype.Options{Size: size, DPI: 72}), nil
}

func (c *FontCache) lookup(family string, weight int) (FontAsset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, f := range c.fonts {
		if model.GetFontName[f.Family] == family && model.GetFontWeight[f.Weight] == weight {
			return f, true
		}
	}
	return FontAsset{}, false
}
