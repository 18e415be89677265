// Package cmd momotalk 命令行入口，每个数据任务对应一个子命令。
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chaos-io/momotalk/config"
	"github.com/chaos-io/momotalk/util"
)

type app struct {
	configPath string
	envPath    string
	root       string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCmd 构建完整的命令树
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "momotalk",
		Short:         "Data toolkit for the MomoTalk front-end",
		Long:          "momotalk fetches game data mirrors and rewrites them into the JSON files served to the MomoTalk front-end.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (default: ./momotalk.yaml or ./config/momotalk.yaml)")
	flags.StringVar(&a.envPath, "env", ".env", "dotenv file")
	flags.StringVarP(&a.root, "root", "r", "", "output root directory (overrides config)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	for _, j := range jobs {
		rootCmd.AddCommand(a.jobCmd(j))
	}
	rootCmd.AddCommand(a.serveCmd(), a.cronCmd())
	return rootCmd
}

func (a *app) init() error {
	cfg, err := config.LoadConfig(a.configPath, a.envPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.root != "" {
		cfg.Root = a.root
	}

	level := cfg.Log.Level
	if a.verbose {
		level = "debug"
	}
	logger, err := util.NewLogger(level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

// runLogger 每次任务运行带一个独立的 run id
func (a *app) runLogger(job string) *zap.Logger {
	return a.logger.With(zap.String("job", job), zap.String("run", ksuid.New().String()))
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
