// Package bondstory 把 AcademyMessanger 表转换为前端使用的 MomoTalk 羁绊对话文件。
package bondstory

import (
	"context"
	"errors"
	"path/filepath"

	"go.uber.org/zap"
)

// StoriesDir 输出根目录下的剧情目录
const StoriesDir = "Stories"

type Runner struct {
	source  *Source
	builder *Builder
	outDir  string
	logger  *zap.Logger
}

func NewRunner(source *Source, builder *Builder, root string, logger *zap.Logger) *Runner {
	return &Runner{
		source:  source,
		builder: builder,
		outDir:  filepath.Join(root, StoriesDir),
		logger:  logger,
	}
}

// Run 下载、生成并写入所有剧情，最后重建索引
func (r *Runner) Run(ctx context.Context) error {
	students, err := r.source.FetchStudents(ctx)
	if err != nil {
		return err
	}
	r.logger.Info("student list loaded", zap.Int("count", len(students)))

	tables, err := r.source.FetchTables(ctx)
	if err != nil {
		return err
	}
	r.logger.Info("bond story tables loaded", zap.Int("count", len(tables)))

	written := 0
	for _, table := range tables {
		for _, block := range Split(table.DataList) {
			ok, err := r.writeBlock(block, students)
			if err != nil {
				return err
			}
			if ok {
				written++
			}
		}
	}
	r.logger.Info("bond stories written", zap.Int("count", written))

	return WriteIndexes(r.outDir, r.logger)
}

func (r *Runner) writeBlock(block Block, students map[int64]StudentName) (bool, error) {
	log := r.logger.With(zap.Int64("character", block.CharacterID), zap.Int("seq", block.Seq))

	student, ok := students[block.CharacterID]
	if !ok {
		log.Warn("student not found, story skipped")
		return false, nil
	}

	story, err := r.builder.Build(block.Records, student)
	if errors.Is(err, ErrEmptyBlock) {
		log.Warn("empty story skipped")
		return false, nil
	}
	if err != nil {
		return false, err
	}

	path, err := WriteStory(r.outDir, block.CharacterID, block.Seq, story)
	if err != nil {
		return false, err
	}
	log.Debug("story saved", zap.String("path", path), zap.String("student", student.JP))
	return true, nil
}
