package avatar

import (
	"context"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chaos-io/momotalk/util/crawler"
	nhttp "github.com/chaos-io/momotalk/util/http"
)

const (
	FandomPrefix = "/fandom"
	FandomDir    = "Avatars/Fandom"
)

// FandomURLs 挑出 /fandom 开头的头像并换成 Fandom CDN 地址
func FandomURLs(avatars [][]string, baseURL string) []string {
	baseURL = strings.TrimRight(baseURL, "/")

	var urls []string
	for _, list := range avatars {
		for _, a := range list {
			if strings.HasPrefix(a, FandomPrefix) {
				urls = append(urls, baseURL+strings.TrimPrefix(a, FandomPrefix))
			}
		}
	}
	return urls
}

// Batch 并发下载，单个文件失败只记录日志
type Batch struct {
	cli    nhttp.IClient
	dir    string
	limit  int
	logger *zap.Logger
}

func NewBatch(cli nhttp.IClient, dir string, limit int, logger *zap.Logger) *Batch {
	return &Batch{cli: cli, dir: dir, limit: limit, logger: logger}
}

// Download 返回成功下载的文件数
func (b *Batch) Download(ctx context.Context, urls []string) (int, error) {
	var (
		g  errgroup.Group
		ok atomic.Int64
	)
	g.SetLimit(b.limit)

	for _, url := range urls {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			file, err := crawler.Download(ctx, b.cli, url, b.dir)
			if err != nil {
				b.logger.Warn("avatar download failed", zap.String("url", url), zap.Error(err))
				return nil
			}
			ok.Add(1)
			b.logger.Debug("avatar downloaded", zap.String("file", file))
			return nil
		})
	}

	err := g.Wait()
	return int(ok.Load()), err
}
