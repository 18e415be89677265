// Package student 同步 students.json：学生基础数据来自数据 dump 仓库，中文信息与头像来自 Kivo。
package student

import (
	"context"
	"path/filepath"
	"regexp"
	"slices"

	"go.uber.org/zap"
)

// 输出根目录下的文件
const (
	StudentsFile  = "Momotalk/students.json"
	SkinTableFile = "Momotalk/prefixTable.json"
	IDMapFile     = "scripts/id_map.json"
)

// skipIDs 不写入 students.json 的学生（临战星野的盾形态）
var skipIDs = []int64{10099}

var skinName = regexp.MustCompile(`^(.*?)（(.*)）`)

type Syncer struct {
	github *GitHubSource
	filler *KivoFiller
	root   string
	logger *zap.Logger
}

func NewSyncer(github *GitHubSource, filler *KivoFiller, root string, logger *zap.Logger) *Syncer {
	return &Syncer{github: github, filler: filler, root: root, logger: logger}
}

func (s *Syncer) path(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// Run 合并远端学生数据到 students.json，并写回 id_map.json
func (s *Syncer) Run(ctx context.Context) error {
	existing, err := LoadStudents(s.path(StudentsFile))
	if err != nil {
		return err
	}

	raw, err := s.github.Load(ctx)
	if err != nil {
		return err
	}
	tables, err := BuildTables(raw)
	if err != nil {
		return err
	}
	remote, err := Merge(raw, tables)
	if err != nil {
		return err
	}
	s.logger.Info("github students loaded", zap.Int("count", len(remote)))

	if err := s.filler.LoadLatest(ctx); err != nil {
		return err
	}

	updated, err := s.merge(ctx, existing, remote)
	if err != nil {
		return err
	}

	if err := writeStudents(s.path(StudentsFile), updated); err != nil {
		return err
	}
	if err := s.filler.IDMap().Save(s.path(IDMapFile)); err != nil {
		return err
	}
	s.logger.Info("students synchronized", zap.Int("total", len(updated)), zap.Int("added", len(updated)-len(existing)))
	return nil
}

func (s *Syncer) merge(ctx context.Context, existing, remote []Student) ([]Student, error) {
	updated := make([]Student, len(existing))
	for i, st := range existing {
		updated[i] = st.Clone()
	}

	for _, gs := range remote {
		if slices.Contains(skipIDs, gs.ID) {
			continue
		}
		log := s.logger.With(zap.Int64("id", gs.ID), zap.String("name", gs.Name["jp"]))

		idx := slices.IndexFunc(updated, func(st Student) bool { return st.ID == gs.ID })
		if idx < 0 {
			log.Info("new student, filling from kivo")
			added, err := s.filler.Fill(ctx, gs)
			if err != nil {
				return nil, err
			}
			if err := s.relateSkin(&added, remote, log); err != nil {
				return nil, err
			}
			updated = append(updated, added)
			continue
		}

		cur := &updated[idx]
		_, hasTW := cur.Name["tw"]
		_, remoteTW := gs.Name["tw"]
		if !hasTW && remoteTW {
			log.Info("student released on global server")
			cur.Name = withZH(gs.Name, cur.Name)
			cur.Bio = withZH(gs.Bio, cur.Bio)
		}
	}
	return updated, nil
}

// withZH 使用 text 的内容，保留 old 中的 zh
func withZH(text, old LocalizedText) LocalizedText {
	out := cloneText(text)
	out["zh"] = old["zh"]
	return out
}

// relateSkin 名字形如「名前（皮肤）」时关联到本体并登记皮肤
func (s *Syncer) relateSkin(st *Student, remote []Student, log *zap.Logger) error {
	m := skinName.FindStringSubmatch(st.Name["jp"])
	if m == nil {
		return nil
	}
	originName, skin := m[1], m[2]

	idx := slices.IndexFunc(remote, func(r Student) bool { return r.Name["jp"] == originName })
	if idx < 0 {
		log.Warn("origin student of skin not found", zap.String("origin", originName))
		return nil
	}
	st.Related = &Related{ItemID: remote[idx].ID, ItemType: skin}

	added, err := RegisterSkin(s.path(SkinTableFile), skin)
	if err != nil {
		return err
	}
	if added {
		log.Info("skin registered", zap.String("skin", skin))
	}
	return nil
}
