package bondstory

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/chaos-io/momotalk/util"
)

const (
	IndexFile   = "index.json"
	StickerFile = "Stickers.json"
)

var languageKeys = []string{"MessageJP", "MessageKR", "MessageTW", "MessageEN"}

// StoryFileName <charID><seq:02>.json
func StoryFileName(charID int64, seq int) string {
	return fmt.Sprintf("%d%02d.json", charID, seq)
}

// WriteStory 写入 <dir>/<charID>/<charID><seq>.json，返回文件路径
func WriteStory(dir string, charID int64, seq int, story *Story) (string, error) {
	path := filepath.Join(dir, fmt.Sprint(charID), StoryFileName(charID, seq))
	if err := util.WriteJSON(path, story); err != nil {
		return "", err
	}
	return path, nil
}

// Languages 返回剧情第三个元素中非空的语言字段，顺序与文件中的字段顺序一致
func Languages(data []byte) ([]string, error) {
	first := gjson.GetBytes(data, "2")
	if !first.IsObject() {
		return nil, fmt.Errorf("story has no third element")
	}

	langs := []string{}
	first.ForEach(func(key, value gjson.Result) bool {
		if slices.Contains(languageKeys, key.String()) && value.String() != "" {
			langs = append(langs, key.String())
		}
		return true
	})
	return langs, nil
}

// BuildIndex 统计学生目录下每个剧情文件可用的语言
func BuildIndex(charDir string, logger *zap.Logger) (map[string][]string, error) {
	entries, err := os.ReadDir(charDir)
	if err != nil {
		return nil, err
	}

	index := make(map[string][]string)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == IndexFile || name == StickerFile || filepath.Ext(name) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(charDir, name))
		if err != nil {
			return nil, err
		}
		langs, err := Languages(data)
		if err != nil {
			logger.Warn("skip story in index", zap.String("file", name), zap.Error(err))
			continue
		}
		index[strings.SplitN(name, ".", 2)[0]] = langs
	}
	return index, nil
}

// WriteIndexes 为 root 下每个学生目录写入 index.json，三个字符的目录名不处理
func WriteIndexes(root string, logger *zap.Logger) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() || len(e.Name()) == 3 {
			continue
		}
		charDir := filepath.Join(root, e.Name())
		index, err := BuildIndex(charDir, logger)
		if err != nil {
			return fmt.Errorf("index %s: %w", charDir, err)
		}
		if err := util.WriteJSON(filepath.Join(charDir, IndexFile), index); err != nil {
			return err
		}
		logger.Debug("index written", zap.String("dir", e.Name()), zap.Int("stories", len(index)))
	}
	return nil
}
