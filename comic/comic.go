// Package comic 抓取 B 站上连载的官方漫画动态，写入 Comics/<target>.json。
package comic

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"go.uber.org/zap"

	"github.com/chaos-io/momotalk/util"
)

const (
	Dir       = "Comics"
	CacheFile = "cache.json"
)

type Runner struct {
	api      *Bilibili
	pageSize int
	root     string
	cache    []Dynamic
	logger   *zap.Logger
}

func NewRunner(api *Bilibili, pageSize int, root string, logger *zap.Logger) *Runner {
	return &Runner{api: api, pageSize: pageSize, root: root, logger: logger}
}

// LoadCache 读取 Comics/cache.json，文件不存在时缓存为空
func (r *Runner) LoadCache() error {
	var cache []Dynamic
	err := util.ReadJSON(filepath.Join(r.root, Dir, CacheFile), &cache)
	if errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("comic cache not found")
		return nil
	}
	if err != nil {
		return err
	}
	r.cache = cache
	return nil
}

// Run 依次抓取 targets
func (r *Runner) Run(ctx context.Context, targets []Target) error {
	if err := r.LoadCache(); err != nil {
		return err
	}
	for _, t := range targets {
		if err := r.Download(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// Download 抓取一个系列并写入文件
func (r *Runner) Download(ctx context.Context, t Target) error {
	defer util.Trace(r.logger.With(zap.String("target", t.Name)), "comic download")()

	dynamics, err := r.Collect(ctx, t)
	if err != nil {
		return err
	}
	if err := util.WriteJSON(filepath.Join(r.root, Dir, t.Name+".json"), dynamics); err != nil {
		return err
	}
	r.logger.Info("comic saved", zap.String("target", t.Name), zap.Int("count", len(dynamics)))
	return nil
}

// Collect 搜索全部分页，剔除 Exclude，补上 Include，按动态 id 排序
func (r *Runner) Collect(ctx context.Context, t Target) ([]Dynamic, error) {
	total, err := r.api.Total(ctx, t)
	if err != nil {
		return nil, err
	}
	r.logger.Info("comic search total", zap.String("target", t.Name), zap.Int("total", total))

	dynamics := []Dynamic{}
	pages := (total + r.pageSize - 1) / r.pageSize
	for page := 1; page <= pages; page++ {
		found, err := r.api.Search(ctx, t, page, r.pageSize)
		if err != nil {
			return nil, err
		}
		dynamics = append(dynamics, found...)
		r.logger.Debug("comic page downloaded", zap.Int("done", min(total, page*r.pageSize)), zap.Int("total", total))
	}

	dynamics = slices.DeleteFunc(dynamics, func(d Dynamic) bool {
		return slices.Contains(t.Exclude, d.DynamicID)
	})
	for _, id := range t.Include {
		d, err := r.dynamic(ctx, id)
		if err != nil {
			return nil, err
		}
		dynamics = append(dynamics, d)
	}

	sort.SliceStable(dynamics, func(i, j int) bool {
		return dynamics[i].DynamicID < dynamics[j].DynamicID
	})
	return dynamics, nil
}

func (r *Runner) dynamic(ctx context.Context, id int64) (Dynamic, error) {
	if idx := slices.IndexFunc(r.cache, func(d Dynamic) bool { return d.DynamicID == id }); idx >= 0 {
		return r.cache[idx], nil
	}
	return r.api.Detail(ctx, id)
}
