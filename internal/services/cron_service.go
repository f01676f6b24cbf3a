package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/servicehub/booking-backend/internal/config"
	"github.com/servicehub/booking-backend/internal/database"
	"github.com/servicehub/booking-backend/internal/metrics"
	"github.com/servicehub/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// AlertSummarizer counts open reconciliation alerts
type AlertSummarizer interface {
	CountOpenByReason(ctx context.Context) ([]database.AlertCount, error)
}

// AuditPurger removes old webhook audit rows
type AuditPurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

const cronJobTimeout = 2 * time.Minute

// CronService manages scheduled background jobs
type CronService struct {
	cron   *cron.Cron
	alerts AlertSummarizer
	audits AuditPurger
	config config.CronConfig
	now    func() time.Time
	logger *logrus.Logger
}

// NewCronService creates a new CronService
func NewCronService(alerts AlertSummarizer, audits AuditPurger, cfg config.CronConfig, logger *logrus.Logger) *CronService {
	// Cron format: second minute hour day month weekday
	c := cron.New(cron.WithSeconds())

	return &CronService{
		cron:   c,
		alerts: alerts,
		audits: audits,
		config: cfg,
		now:    time.Now,
		logger: logger,
	}
}

// Start schedules all jobs and starts the scheduler
func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.config.AlertDigestSchedule, s.alertDigestJob); err != nil {
		return fmt.Errorf("failed to schedule alert digest job: %w", err)
	}
	s.logger.WithField("schedule", s.config.AlertDigestSchedule).Info("Scheduled: reconciliation alert digest")

	if _, err := s.cron.AddFunc(s.config.AuditRetentionSchedule, s.purgeAuditsJob); err != nil {
		return fmt.Errorf("failed to schedule audit retention job: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"schedule":       s.config.AuditRetentionSchedule,
		"retention_days": s.config.AuditRetentionDays,
	}).Info("Scheduled: webhook audit retention")

	s.cron.Start()
	s.logger.Info("Cron service started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// alertDigestJob logs the open alert backlog so it is visible to whoever watches the logs
func (s *CronService) alertDigestJob() {
	ctx, cancel := context.WithTimeout(context.Background(), cronJobTimeout)
	defer cancel()

	counts, err := s.alerts.CountOpenByReason(ctx)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Failed to count open reconciliation alerts")
		return
	}

	// reasons without open alerts have no row but must still read zero
	open := make(map[models.AlertReason]int)
	for _, reason := range models.AlertReasons() {
		open[reason] = 0
	}

	total := 0
	fields := logrus.Fields{}
	for _, c := range counts {
		total += c.Count
		fields[string(c.Reason)] = c.Count
		open[c.Reason] = c.Count
	}
	for reason, count := range open {
		metrics.SetOpenAlerts(string(reason), count)
	}

	if total == 0 {
		s.logger.Debug("[CRON] No open reconciliation alerts")
		return
	}

	s.logger.WithFields(fields).WithField("total", total).Warn("[CRON] Open reconciliation alerts need operator attention")
}

// purgeAuditsJob deletes webhook audits past the retention window
func (s *CronService) purgeAuditsJob() {
	ctx, cancel := context.WithTimeout(context.Background(), cronJobTimeout)
	defer cancel()

	startTime := s.now()
	cutoff := startTime.AddDate(0, 0, -s.config.AuditRetentionDays)

	deleted, err := s.audits.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Failed to purge webhook audits")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"deleted":  deleted,
		"cutoff":   cutoff.Format(time.RFC3339),
		"duration": time.Since(startTime).String(),
	}).Info("[CRON] Purged old webhook audits")
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
