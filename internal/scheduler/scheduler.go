package scheduler

import (
	"context"
	"fmt"
	"time"

	"artifact-publisher/internal/config"
	"artifact-publisher/internal/notification"
	"artifact-publisher/internal/publish"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	defaultPublishTimeout = 30 * time.Minute
	notifyTimeout         = 30 * time.Second
)

type Scheduler struct {
	publishService      *publish.Service
	notificationService *notification.Service
	config              *config.Config
	cron                *cron.Cron
	entryID             cron.EntryID
	timeout             time.Duration
}

func NewScheduler(publishService *publish.Service, notificationService *notification.Service, cfg *config.Config) *Scheduler {
	// タイムゾーン設定
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logrus.Warnf("Failed to load timezone %s, using UTC: %v", cfg.Timezone, err)
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))

	return &Scheduler{
		publishService:      publishService,
		notificationService: notificationService,
		config:              cfg,
		cron:                c,
		timeout:             publishTimeout(cfg),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	entryID, err := s.cron.AddFunc(s.config.CronSchedule, s.runPublish)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.entryID = entryID

	s.cron.Start()

	logrus.Infof("Scheduler started with schedule: %s (timezone: %s)",
		s.GetSchedule(), s.config.Timezone)
	logrus.Infof("Next publish at %s", s.GetNextRun().Format(time.RFC3339))

	// コンテキストのキャンセルを待機
	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	// 実行中のジョブの完了を待つ
	stopCtx := s.cron.Stop()

	select {
	case <-stopCtx.Done():
		logrus.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while stopping scheduler")
	}
}

func publishTimeout(cfg *config.Config) time.Duration {
	if cfg.PublishTimeout <= 0 {
		return defaultPublishTimeout
	}
	return time.Duration(cfg.PublishTimeout) * time.Minute
}

func (s *Scheduler) runPublish() {
	startTime := time.Now()
	logrus.Info("Starting scheduled publish")

	// タイムアウト時はアップロード済みのファイルがそのまま残る
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	result, err := s.publishService.PublishDir(ctx)

	// 公開が期限切れでも通知は送る
	notifyCtx, notifyCancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer notifyCancel()

	if err != nil {
		duration := time.Since(startTime)
		logrus.Errorf("Publish failed: %v", err)

		if notifyErr := s.notificationService.NotifyPublishFailure(notifyCtx, result, err, duration); notifyErr != nil {
			logrus.Errorf("Failed to send failure notification: %v", notifyErr)
		}
		return
	}

	if len(result.URLs) == 0 {
		return
	}

	if notifyErr := s.notificationService.NotifyPublishSuccess(notifyCtx, result); notifyErr != nil {
		logrus.Errorf("Failed to send success notification: %v", notifyErr)
	}

	logrus.Infof("Scheduled publish completed successfully in %v (next: %s)",
		result.Duration, s.GetNextRun().Format(time.RFC3339))
}

// GetNextRun は次の公開実行時刻を取得します
func (s *Scheduler) GetNextRun() time.Time {
	return s.cron.Entry(s.entryID).Next
}

// GetSchedule は現在のスケジュール設定を取得します
func (s *Scheduler) GetSchedule() string {
	return s.config.CronSchedule
}
