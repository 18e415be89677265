// Package avatar 下载学生头像并转存为 webp，以及 Fandom 头像的批量下载。
package avatar

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/chai2010/webp"
	"go.uber.org/zap"

	"github.com/chaos-io/momotalk/util"
	nhttp "github.com/chaos-io/momotalk/util/http"
)

// KivoDir Kivo 头像在输出根目录下的位置
const KivoDir = "Avatars/Kivo/Released"

// APIPrefix 前端访问输出目录时的前缀
const APIPrefix = "/api/"

type Store struct {
	cli     nhttp.IClient
	root    string
	dir     string
	maxSize int
	logger  *zap.Logger
}

// NewStore maxSize <= 0 时保留原图尺寸
func NewStore(cli nhttp.IClient, root string, maxSize int, logger *zap.Logger) *Store {
	return &Store{
		cli:     cli,
		root:    root,
		dir:     KivoDir,
		maxSize: maxSize,
		logger:  logger,
	}
}

// Save 保存为 <dir>/<id>.webp 并返回 /api/ 路径；文件已存在时直接返回
func (s *Store) Save(ctx context.Context, url string, id int64) (string, error) {
	rel := path.Join(s.dir, fmt.Sprintf("%d.webp", id))
	apiPath := APIPrefix + rel
	file := filepath.Join(s.root, filepath.FromSlash(rel))

	if util.Exists(file) {
		s.logger.Debug("avatar already exists", zap.Int64("id", id))
		return apiPath, nil
	}

	img, err := util.DownloadImage(ctx, s.cli, url)
	if err != nil {
		return "", err
	}

	buf := &bytes.Buffer{}
	if err := webp.Encode(buf, Fit(img, s.maxSize), &webp.Options{Quality: Quality}); err != nil {
		return "", fmt.Errorf("encode avatar %d: %w", id, err)
	}
	if err := util.WriteFile(file, buf.Bytes()); err != nil {
		return "", err
	}

	s.logger.Info("avatar saved", zap.Int64("id", id), zap.String("path", apiPath))
	return apiPath, nil
}
