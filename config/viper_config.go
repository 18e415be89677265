package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig 优先级：环境变量 > .env > 配置文件 > 默认值
func LoadConfig(configPath, envPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("momotalk")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(configPath == "" && errors.Is(err, fs.ErrNotExist)) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := mergeDotEnv(v, envPath); err != nil {
		return nil, err
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("MOMOTALK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("github.repoowner", "REPO_OWNER", "MOMOTALK_GITHUB_REPOOWNER")
	_ = v.BindEnv("github.reponame", "REPO_NAME", "MOMOTALK_GITHUB_REPONAME")
	_ = v.BindEnv("log.level", "LOG_LEVEL", "MOMOTALK_LOG_LEVEL")
	_ = v.BindEnv("fandom.proxy", "HTTP_PROXY_FANDOM", "MOMOTALK_FANDOM_PROXY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// mergeDotEnv .env 中的 REPO_OWNER / REPO_NAME 映射到 github.* 配置
func mergeDotEnv(v *viper.Viper, envPath string) error {
	if envPath == "" {
		return nil
	}
	env := viper.New()
	env.SetConfigFile(envPath)
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error reading %s: %w", envPath, err)
	}

	mapping := map[string]string{
		"repo_owner": "github.repoowner",
		"repo_name":  "github.reponame",
		"log_level":  "log.level",
	}
	for envKey, key := range mapping {
		// 已存在的环境变量优先于 .env
		if _, ok := os.LookupEnv(strings.ToUpper(envKey)); ok {
			continue
		}
		if env.IsSet(envKey) {
			v.Set(key, env.GetString(envKey))
		}
	}
	return nil
}
