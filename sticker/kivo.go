package sticker

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/chaos-io/momotalk/util"
	nhttp "github.com/chaos-io/momotalk/util/http"
)

const kivoOK = 2000

// KivoGallery 从 Kivo 学生详情的图集中取表情
type KivoGallery struct {
	cli   nhttp.IClient
	hosts []string
	retry int
}

// NewKivoGallery hosts 依次尝试，通常为主站与备用站
func NewKivoGallery(cli nhttp.IClient, retry int, hosts ...string) *KivoGallery {
	trimmed := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h != "" {
			trimmed = append(trimmed, strings.TrimRight(h, "/"))
		}
	}
	return &KivoGallery{cli: cli, hosts: trimmed, retry: retry}
}

func (k *KivoGallery) detail(ctx context.Context, kivoID int64) ([]byte, error) {
	var lastErr error
	for _, host := range k.hosts {
		var data []byte
		err := k.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
			RequestURI: fmt.Sprintf("%s/%d", host, kivoID),
			Method:     "GET",
			Response:   &data,
			Retry:      k.retry,
		})
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no kivo host configured")
	}
	return nil, fmt.Errorf("kivo student %d: %w", kivoID, lastErr)
}

// Stickers 标题不含「图像」的图集
func (k *KivoGallery) Stickers(ctx context.Context, kivoID int64) ([]string, error) {
	data, err := k.detail(ctx, kivoID)
	if err != nil {
		return nil, err
	}

	resp := gjson.ParseBytes(data)
	if code := resp.Get("code").Int(); code != kivoOK {
		return nil, fmt.Errorf("kivo student %d: code %d (%s)", kivoID, code, resp.Get("codename").String())
	}

	urls := []string{}
	resp.Get("data.gallery").ForEach(func(_, gallery gjson.Result) bool {
		if strings.Contains(gallery.Get("title").String(), "图像") {
			return true
		}
		gallery.Get("images").ForEach(func(_, img gjson.Result) bool {
			urls = append(urls, util.Unquote("https:"+img.String()))
			return true
		})
		return true
	})
	return urls, nil
}
