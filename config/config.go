package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 所有任务共用的配置
type Config struct {
	Root    string        `mapstructure:"root"`
	Log     LogConfig     `mapstructure:"log"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	GitHub  GitHubConfig  `mapstructure:"github"`
	Schale  SchaleConfig  `mapstructure:"schale"`
	Kivo    KivoConfig    `mapstructure:"kivo"`
	GameKee GameKeeConfig `mapstructure:"gamekee"`
	Story   StoryConfig   `mapstructure:"story"`
	Comic   ComicConfig   `mapstructure:"comic"`
	Fandom  FandomConfig  `mapstructure:"fandom"`
	Serve   ServeConfig   `mapstructure:"serve"`
	Cron    CronConfig    `mapstructure:"cron"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	Retry     int           `mapstructure:"retry"`
	UserAgent string        `mapstructure:"useragent"`
}

// GitHubConfig 数据 dump 仓库，REPO_OWNER / REPO_NAME 必填
type GitHubConfig struct {
	RawBase   string `mapstructure:"rawbase"`
	RepoOwner string `mapstructure:"repoowner"`
	RepoName  string `mapstructure:"reponame"`
}

// RawURL 仓库 raw 文件根地址
func (g GitHubConfig) RawURL() string {
	return strings.TrimRight(g.RawBase, "/") + "/" + g.RepoOwner + "/" + g.RepoName
}

type SchaleConfig struct {
	BaseURL   string `mapstructure:"baseurl"`
	BADataURL string `mapstructure:"badataurl"`
}

type KivoConfig struct {
	BaseURL     string `mapstructure:"baseurl"`
	FallbackURL string `mapstructure:"fallbackurl"`
	Pages       int    `mapstructure:"pages"`
	PageSize    int    `mapstructure:"pagesize"`

	// AvatarMaxSize 头像最长边上限，0 为保留原图
	AvatarMaxSize int `mapstructure:"avatarmaxsize"`
}

type GameKeeConfig struct {
	APIURL  string `mapstructure:"apiurl"`
	PageURL string `mapstructure:"pageurl"`
}

type StoryConfig struct {
	StickerBaseURL string `mapstructure:"stickerbaseurl"`
}

type ComicConfig struct {
	APIURL   string        `mapstructure:"apiurl"`
	Referrer string        `mapstructure:"referrer"`
	PageSize int           `mapstructure:"pagesize"`
	MinDelay time.Duration `mapstructure:"mindelay"`
	MaxDelay time.Duration `mapstructure:"maxdelay"`
}

type FandomConfig struct {
	BaseURL     string `mapstructure:"baseurl"`
	Proxy       string `mapstructure:"proxy"`
	Concurrency int    `mapstructure:"concurrency"`
}

type ServeConfig struct {
	Addr string `mapstructure:"addr"`
}

type CronConfig struct {
	Spec string   `mapstructure:"spec"`
	Jobs []string `mapstructure:"jobs"`
}

var ErrMissingRepo = errors.New("REPO_OWNER and REPO_NAME must be set")

// ValidateGitHub 仅 students 任务需要数据仓库
func (c *Config) ValidateGitHub() error {
	if c.GitHub.RepoOwner == "" || c.GitHub.RepoName == "" {
		return ErrMissingRepo
	}
	return nil
}

func (c *Config) Validate() error {
	if c.HTTP.Retry < 0 {
		return fmt.Errorf("http.retry must not be negative, got %d", c.HTTP.Retry)
	}
	if c.Comic.PageSize <= 0 {
		return fmt.Errorf("comic.pagesize must be positive, got %d", c.Comic.PageSize)
	}
	if c.Comic.MaxDelay < c.Comic.MinDelay {
		return fmt.Errorf("comic.maxdelay (%s) is below comic.mindelay (%s)", c.Comic.MaxDelay, c.Comic.MinDelay)
	}
	if c.Fandom.Concurrency <= 0 {
		return fmt.Errorf("fandom.concurrency must be positive, got %d", c.Fandom.Concurrency)
	}
	if c.Kivo.Pages <= 0 || c.Kivo.PageSize <= 0 {
		return errors.New("kivo.pages and kivo.pagesize must be positive")
	}
	if c.Kivo.AvatarMaxSize < 0 {
		return fmt.Errorf("kivo.avatarmaxsize must not be negative, got %d", c.Kivo.AvatarMaxSize)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("root", ".")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.retry", 2)
	v.SetDefault("http.useragent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/96.0.4664.110 Safari/537.36")

	v.SetDefault("github.rawbase", "https://raw.githubusercontent.com")

	v.SetDefault("schale.baseurl", "https://schaledb.com")
	v.SetDefault("schale.badataurl", "https://raw.gitmirror.com/ba-data")

	v.SetDefault("kivo.baseurl", "https://api.kivo.wiki/api/v1/data/students")
	v.SetDefault("kivo.fallbackurl", "https://api.kivo.fun/api/v1/data/students")
	v.SetDefault("kivo.pages", 2)
	v.SetDefault("kivo.pagesize", 10)
	v.SetDefault("kivo.avatarmaxsize", 0)

	v.SetDefault("gamekee.apiurl", "https://ba.gamekee.com/v1/wiki/entry")
	v.SetDefault("gamekee.pageurl", "https://www.gamekee.com/ba")

	v.SetDefault("story.stickerbaseurl", "https://bluearcbox.github.io/resources/Stickers")

	v.SetDefault("comic.apiurl", "https://api.bilibili.com")
	v.SetDefault("comic.referrer", "https://space.bilibili.com/436037759/dynamic")
	v.SetDefault("comic.pagesize", 30)
	v.SetDefault("comic.mindelay", "15s")
	v.SetDefault("comic.maxdelay", "30s")

	v.SetDefault("fandom.baseurl", "https://static.wikia.nocookie.net/blue-archive/images")
	v.SetDefault("fandom.proxy", "")
	v.SetDefault("fandom.concurrency", 8)

	v.SetDefault("serve.addr", ":8080")

	v.SetDefault("cron.spec", "0 4 * * *")
	v.SetDefault("cron.jobs", []string{"students", "stickers", "bondstory"})
}
