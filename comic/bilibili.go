package comic

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	nhttp "github.com/chaos-io/momotalk/util/http"
)

const (
	searchRetry = 3
	detailRetry = 10

	typeDraw = 2
)

var ErrAPI = errors.New("bilibili api error")

// Bilibili 空间动态搜索与动态详情接口
type Bilibili struct {
	cli      nhttp.IClient
	apiURL   string
	referrer string
	minDelay time.Duration
	maxDelay time.Duration
	logger   *zap.Logger
}

func NewBilibili(cli nhttp.IClient, apiURL, referrer string, minDelay, maxDelay time.Duration, logger *zap.Logger) *Bilibili {
	return &Bilibili{
		cli:      cli,
		apiURL:   strings.TrimRight(apiURL, "/"),
		referrer: referrer,
		minDelay: minDelay,
		maxDelay: maxDelay,
		logger:   logger,
	}
}

// jitter 请求前额外等待 [0, maxDelay-minDelay)，minDelay 由客户端的 limiter 保证
func (b *Bilibili) jitter(ctx context.Context) error {
	span := b.maxDelay - b.minDelay
	if span <= 0 {
		return nil
	}
	d := time.Duration(rand.Int64N(int64(span)))
	b.logger.Debug("sleeping before request", zap.Duration("delay", b.minDelay+d))

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// get 请求并检查返回码，返回 data 字段。接口报错或响应不完整时整体重试
func (b *Bilibili) get(ctx context.Context, path string, query url.Values, retry int, check func(gjson.Result) error) (gjson.Result, error) {
	var err error
	for i := 0; i < retry; i++ {
		if err = b.jitter(ctx); err != nil {
			return gjson.Result{}, err
		}

		var data []byte
		err = b.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
			RequestURI: b.apiURL + path,
			Method:     "GET",
			Query:      query,
			Header: map[string]string{
				"Accept":          "application/json, text/plain, */*",
				"Accept-Language": "zh-CN,zh;q=0.8,zh-TW;q=0.7,zh-HK;q=0.5,en-US;q=0.3,en;q=0.2",
				"Referer":         b.referrer,
			},
			Response: &data,
		})
		if err == nil {
			resp := gjson.ParseBytes(data)
			if code := resp.Get("code").Int(); code != 0 {
				err = fmt.Errorf("%w: code %d: %s", ErrAPI, code, resp.Get("message").String())
			} else if err = check(resp.Get("data")); err == nil {
				return resp.Get("data"), nil
			}
		}
		if ctx.Err() != nil {
			return gjson.Result{}, ctx.Err()
		}
		b.logger.Warn("bilibili request failed", zap.String("path", path), zap.Int("attempt", i+1), zap.Error(err))
	}
	return gjson.Result{}, fmt.Errorf("%s after %d attempts: %w", path, retry, err)
}

func searchQuery(t Target, page, size int) url.Values {
	return url.Values{
		"keyword": {t.Keyword},
		"mid":     {strconv.FormatInt(t.MID, 10)},
		"pn":      {strconv.Itoa(page)},
		"ps":      {strconv.Itoa(size)},
	}
}

// Total 搜索结果总数
func (b *Bilibili) Total(ctx context.Context, t Target) (int, error) {
	data, err := b.get(ctx, "/x/space/dynamic/search", searchQuery(t, 1, 1), searchRetry, func(d gjson.Result) error {
		if !d.Get("total").Exists() {
			return errors.New("no total in response")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(data.Get("total").Int()), nil
}

// Search 第 page 页中的图片动态
func (b *Bilibili) Search(ctx context.Context, t Target, page, size int) ([]Dynamic, error) {
	data, err := b.get(ctx, "/x/space/dynamic/search", searchQuery(t, page, size), searchRetry, func(d gjson.Result) error {
		if !d.Get("cards").IsArray() {
			return errors.New("no cards in response")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []Dynamic
	for _, card := range data.Get("cards").Array() {
		if card.Get("desc.type").Int() != typeDraw {
			continue
		}
		// card 字段是 JSON 字符串
		item := gjson.Parse(card.Get("card").String()).Get("item")
		out = append(out, Dynamic{
			DynamicID:     card.Get("desc.dynamic_id").Int(),
			Description:   item.Get("description").String(),
			Pictures:      rawOrEmpty(item.Get("pictures")),
			PicturesCount: int(item.Get("pictures_count").Int()),
		})
	}
	return out, nil
}

// Detail 单条动态
func (b *Bilibili) Detail(ctx context.Context, id int64) (Dynamic, error) {
	const modulePath = "item.modules.module_dynamic"
	data, err := b.get(ctx, "/x/polymer/web-dynamic/v1/detail", url.Values{"id": {strconv.FormatInt(id, 10)}}, detailRetry, func(d gjson.Result) error {
		if !d.Get(modulePath + ".major.draw.items").IsArray() {
			return errors.New("dynamic has no pictures")
		}
		return nil
	})
	if err != nil {
		return Dynamic{}, err
	}

	module := data.Get(modulePath)
	items := module.Get("major.draw.items")
	return Dynamic{
		DynamicID:     id,
		Description:   module.Get("desc.text").String(),
		Pictures:      rawOrEmpty(items),
		PicturesCount: len(items.Array()),
	}, nil
}

func rawOrEmpty(r gjson.Result) []byte {
	if !r.Exists() {
		return []byte("[]")
	}
	return []byte(r.Raw)
}
