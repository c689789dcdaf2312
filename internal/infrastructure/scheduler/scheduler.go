package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kirillkom/pollen-vision/internal/core/ports"
)

// parser accepts the standard 5-field cron expression
// (minute hour day-of-month month day-of-week), e.g. "0 3 * * *".
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// BackupScheduler snapshots the history log on a cron schedule.
type BackupScheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	backup   ports.HistoryBackup
	logger   *slog.Logger
	timeout  time.Duration
	onResult func(key string, err error)
}

func NewBackupScheduler(spec string, backup ports.HistoryBackup, timeout time.Duration, logger *slog.Logger) (*BackupScheduler, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("backup schedule is empty")
	}
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse backup schedule %q: %w", spec, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	s := &BackupScheduler{
		schedule: schedule,
		backup:   backup,
		logger:   logger,
		timeout:  timeout,
	}
	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
	)
	s.cron.Schedule(schedule, cron.FuncJob(s.runOnce))
	return s, nil
}

// OnResult registers a callback invoked after every backup attempt.
func (s *BackupScheduler) OnResult(fn func(key string, err error)) {
	s.onResult = fn
}

func (s *BackupScheduler) Next(from time.Time) time.Time {
	return s.schedule.Next(from)
}

// Run starts the scheduler and blocks until ctx is cancelled and the running job finished.
func (s *BackupScheduler) Run(ctx context.Context) {
	s.logger.Info("history backup scheduled", "next_run", s.Next(time.Now()))
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}

func (s *BackupScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	key, err := s.backup.Backup(ctx)
	if err != nil {
		s.logger.Error("history backup failed", "error", err)
	} else {
		s.logger.Info("history backup written", "key", key)
	}
	if s.onResult != nil {
		s.onResult(key, err)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
