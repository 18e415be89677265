package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chaos-io/momotalk/config"
	"github.com/chaos-io/momotalk/server"
)

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the output directory under /api",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Run(cmd.Context(), a.cfg.Serve.Addr, server.New(a.cfg.Root, a.logger), a.logger)
		},
	}
}

func (a *app) cronCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cron",
		Short: "Run the configured jobs on the cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.schedule(cmd.Context(), a.cfg.Cron)
			if err != nil {
				return err
			}
			c.Start()
			a.logger.Info("cron started", zap.String("spec", a.cfg.Cron.Spec), zap.Strings("jobs", a.cfg.Cron.Jobs))

			<-cmd.Context().Done()
			<-c.Stop().Done()
			return nil
		},
	}
}

// schedule 按配置注册任务，任务依次执行，上一轮未结束时跳过本轮
func (a *app) schedule(ctx context.Context, cc config.CronConfig) (*cron.Cron, error) {
	if len(cc.Jobs) == 0 {
		return nil, errors.New("cron.jobs is empty")
	}
	selected := make([]job, 0, len(cc.Jobs))
	for _, name := range cc.Jobs {
		j, ok := findJob(name)
		if !ok {
			return nil, fmt.Errorf("unknown cron job %q", name)
		}
		selected = append(selected, j)
	}

	cl := cronLogger{a.logger.Sugar()}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	_, err := c.AddFunc(cc.Spec, func() {
		for _, j := range selected {
			if ctx.Err() != nil {
				return
			}
			logger := a.runLogger(jobName(j))
			if err := j.run(ctx, a.cfg, logger, nil); err != nil {
				logger.Error("cron job failed", zap.Error(err))
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("cron spec %q: %w", cc.Spec, err)
	}
	return c, nil
}

// cronLogger 把 cron 的日志接到 zap
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
