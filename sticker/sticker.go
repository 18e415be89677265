// Package sticker 为每个学生收集 GameKee 与 Kivo 上的表情图，写入 Stories/<id>/Stickers.json。
package sticker

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/chaos-io/momotalk/bondstory"
	"github.com/chaos-io/momotalk/student"
	"github.com/chaos-io/momotalk/util"
)

// hostPrefixes 图片地址改写为本地反向代理路径
var hostPrefixes = []struct{ host, prefix string }{
	{"https://static.kivo.wiki/images", "/kivo"},
	{"https://cdnimg-v2.gamekee.com/wiki2.0/images", "/gamekee"},
}

func rewriteHost(u string) string {
	for _, p := range hostPrefixes {
		if strings.HasPrefix(u, p.host) {
			u = strings.ReplaceAll(u, p.host, p.prefix)
		}
	}
	return u
}

type Runner struct {
	gamekee *GameKee
	kivo    *KivoGallery
	root    string
	logger  *zap.Logger
}

func NewRunner(gamekee *GameKee, kivo *KivoGallery, root string, logger *zap.Logger) *Runner {
	return &Runner{gamekee: gamekee, kivo: kivo, root: root, logger: logger}
}

// Run 填充 GameKee id 并下载尚未完成的学生的表情列表。
// 映射表在结束时写回，出错时也会先写回已更新的部分。
func (r *Runner) Run(ctx context.Context) (err error) {
	idMapPath := filepath.Join(r.root, filepath.FromSlash(student.IDMapFile))
	idMap, err := student.LoadIDMap(idMapPath)
	if err != nil {
		return err
	}
	defer func() {
		if saveErr := idMap.Save(idMapPath); saveErr != nil && err == nil {
			err = saveErr
		}
	}()

	entries, err := r.gamekee.Entries(ctx)
	if err != nil {
		return err
	}
	r.gamekee.FillIDs(idMap, entries)

	for _, id := range idMap.IDs() {
		item := idMap[id]
		if item.StickerDownloadFlag[0] && item.StickerDownloadFlag[1] {
			continue
		}
		if err := r.collect(ctx, id, item); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) collect(ctx context.Context, id int64, item *student.KivoStudent) error {
	log := r.logger.With(zap.Int64("id", id), zap.String("name", item.NameJP))

	stickers := []string{}
	if item.GameKeeID == 0 {
		log.Warn("no gamekee id, gamekee stickers skipped")
	} else if gk, err := r.gamekee.Stickers(ctx, item.GameKeeID); err != nil {
		log.Error("gamekee stickers failed", zap.Int64("gamekee_id", item.GameKeeID), zap.Error(err))
	} else {
		item.StickerDownloadFlag[1] = true
		stickers = append(stickers, gk...)
	}

	kivo, err := r.kivo.Stickers(ctx, item.KivoID)
	if err != nil {
		return fmt.Errorf("student %d: %w", id, err)
	}
	item.StickerDownloadFlag[0] = true
	stickers = append(stickers, kivo...)

	for i, s := range stickers {
		stickers[i] = rewriteHost(s)
	}
	path := filepath.Join(r.root, bondstory.StoriesDir, fmt.Sprint(id), bondstory.StickerFile)
	if err := util.WriteJSON(path, stickers); err != nil {
		return err
	}
	log.Info("stickers saved", zap.Int("count", len(stickers)))
	return nil
}
