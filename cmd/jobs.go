package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chaos-io/momotalk/avatar"
	"github.com/chaos-io/momotalk/bondstory"
	"github.com/chaos-io/momotalk/comic"
	"github.com/chaos-io/momotalk/config"
	"github.com/chaos-io/momotalk/sticker"
	"github.com/chaos-io/momotalk/student"
	"github.com/chaos-io/momotalk/util"
	nhttp "github.com/chaos-io/momotalk/util/http"
)

type runFunc func(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error

type job struct {
	use   string
	short string
	run   runFunc
}

var jobs = []job{
	{use: "bondstory", short: "Build bond story conversations from AcademyMessanger tables", run: runBondStory},
	{use: "students", short: "Sync students.json from the data dump repository and Kivo", run: runStudents},
	{use: "stickers", short: "Resolve GameKee ids and collect sticker lists", run: runStickers},
	{use: "comics [target...]", short: "Scrape comic dynamics from Bilibili", run: runComics},
	{use: "avatars", short: "Download Fandom avatars referenced by students.json", run: runAvatars},
}

func findJob(name string) (job, bool) {
	for _, j := range jobs {
		if jobName(j) == name {
			return j, true
		}
	}
	return job{}, false
}

func jobName(j job) string {
	name, _, _ := strings.Cut(j.use, " ")
	return name
}

func (a *app) jobCmd(j job) *cobra.Command {
	return &cobra.Command{
		Use:   j.use,
		Short: j.short,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := a.runLogger(jobName(j))
			defer util.Trace(logger, jobName(j))()
			return j.run(cmd.Context(), a.cfg, logger, args)
		},
	}
}

func newClient(cfg *config.Config, opts ...nhttp.Option) nhttp.IClient {
	base := []nhttp.Option{
		nhttp.WithTimeout(cfg.HTTP.Timeout),
		nhttp.WithHeader("User-Agent", cfg.HTTP.UserAgent),
	}
	return nhttp.NewHTTPClient(append(base, opts...)...)
}

func rootPath(cfg *config.Config, rel string) string {
	return filepath.Join(cfg.Root, filepath.FromSlash(rel))
}

func runBondStory(ctx context.Context, cfg *config.Config, logger *zap.Logger, _ []string) error {
	cli := newClient(cfg)
	source := bondstory.NewSource(cli, cfg.Schale.BaseURL, cfg.Schale.BADataURL, cfg.HTTP.Retry)
	runner := bondstory.NewRunner(source, bondstory.NewBuilder(cfg.Story.StickerBaseURL), cfg.Root, logger)
	return runner.Run(ctx)
}

func runStudents(ctx context.Context, cfg *config.Config, logger *zap.Logger, _ []string) error {
	if err := cfg.ValidateGitHub(); err != nil {
		return err
	}
	cli := newClient(cfg)

	idMap, err := student.LoadIDMap(rootPath(cfg, student.IDMapFile))
	if err != nil {
		return err
	}
	kivo := student.NewKivoSource(cli, cfg.Kivo.BaseURL, cfg.Kivo.Pages, cfg.Kivo.PageSize, cfg.HTTP.Retry)
	filler := student.NewKivoFiller(kivo, avatar.NewStore(cli, cfg.Root, cfg.Kivo.AvatarMaxSize, logger), idMap, logger)
	github := student.NewGitHubSource(cli, cfg.GitHub.RawURL(), cfg.HTTP.Retry)

	return student.NewSyncer(github, filler, cfg.Root, logger).Run(ctx)
}

func runStickers(ctx context.Context, cfg *config.Config, logger *zap.Logger, _ []string) error {
	cli := newClient(cfg)
	gamekee := sticker.NewGameKee(cli, cfg.GameKee.APIURL, cfg.GameKee.PageURL, cfg.HTTP.Retry, logger)
	kivo := sticker.NewKivoGallery(cli, cfg.HTTP.Retry, cfg.Kivo.BaseURL, cfg.Kivo.FallbackURL)
	return sticker.NewRunner(gamekee, kivo, cfg.Root, logger).Run(ctx)
}

// selectTargets 未指定时抓取全部系列
func selectTargets(names []string) ([]comic.Target, error) {
	if len(names) == 0 {
		return comic.Targets, nil
	}
	targets := make([]comic.Target, 0, len(names))
	for _, name := range names {
		t, ok := comic.FindTarget(name)
		if !ok {
			return nil, fmt.Errorf("unknown comic target %q", name)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func runComics(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	targets, err := selectTargets(args)
	if err != nil {
		return err
	}

	var opts []nhttp.Option
	if cfg.Comic.MinDelay > 0 {
		opts = append(opts, nhttp.WithLimiter(rate.NewLimiter(rate.Every(cfg.Comic.MinDelay), 1)))
	}
	api := comic.NewBilibili(newClient(cfg, opts...), cfg.Comic.APIURL, cfg.Comic.Referrer, cfg.Comic.MinDelay, cfg.Comic.MaxDelay, logger)
	return comic.NewRunner(api, cfg.Comic.PageSize, cfg.Root, logger).Run(ctx, targets)
}

func runAvatars(ctx context.Context, cfg *config.Config, logger *zap.Logger, _ []string) error {
	students, err := student.LoadStudents(rootPath(cfg, student.StudentsFile))
	if err != nil {
		return err
	}
	urls := avatar.FandomURLs(student.Avatars(students), cfg.Fandom.BaseURL)

	cli := newClient(cfg, nhttp.WithProxy(cfg.Fandom.Proxy))
	n, err := avatar.NewBatch(cli, rootPath(cfg, avatar.FandomDir), cfg.Fandom.Concurrency, logger).Download(ctx, urls)
	logger.Info("fandom avatars downloaded", zap.Int("ok", n), zap.Int("total", len(urls)))
	return err
}
