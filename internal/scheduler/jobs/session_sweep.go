package jobs

import (
	"context"

	"github.com/wonny/stratplan/pkg/logger"
)

// Sweeper drops idle review sessions and reports how many were removed
type Sweeper interface {
	SweepExpired() int
}

// SessionSweepJob evicts review sessions past their TTL
type SessionSweepJob struct {
	sweeper  Sweeper
	schedule string
	logger   *logger.Logger
}

// NewSessionSweepJob creates a new session sweep job
func NewSessionSweepJob(sweeper Sweeper, schedule string, log *logger.Logger) *SessionSweepJob {
	if schedule == "" {
		schedule = "0 */10 * * * *"
	}
	return &SessionSweepJob{
		sweeper:  sweeper,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *SessionSweepJob) Name() string {
	return "session_sweep"
}

// Schedule returns the cron schedule
func (j *SessionSweepJob) Schedule() string {
	return j.schedule
}

// Run executes the sweep
func (j *SessionSweepJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled session sweep")

	count := j.sweeper.SweepExpired()

	if count > 0 {
		j.logger.WithField("removed", count).Info("Session sweep completed")
	}

	return nil
}
