package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/stratplan/internal/plan"
	"github.com/wonny/stratplan/pkg/logger"
)

// PlanIntegrityJob reloads the plan file and compares it with the plan the
// process is serving. The registry is immutable, so a changed file only
// takes effect after a restart; the job makes that drift visible.
type PlanIntegrityJob struct {
	path     string
	expected string
	logger   *logger.Logger
}

// NewPlanIntegrityJob creates a new plan integrity job. expected is the
// hash of the loaded registry.
func NewPlanIntegrityJob(path, expected string, log *logger.Logger) *PlanIntegrityJob {
	return &PlanIntegrityJob{
		path:     path,
		expected: expected,
		logger:   log,
	}
}

// Name returns the job name
func (j *PlanIntegrityJob) Name() string {
	return "plan_integrity"
}

// Schedule returns the cron schedule (hourly)
func (j *PlanIntegrityJob) Schedule() string {
	return "0 0 * * * *"
}

// Run executes the check
func (j *PlanIntegrityJob) Run(ctx context.Context) error {
	p, _, err := plan.Load(j.path)
	if err != nil {
		return fmt.Errorf("reload plan: %w", err)
	}

	hash, err := plan.Hash(p)
	if err != nil {
		return fmt.Errorf("hash plan: %w", err)
	}

	if hash != j.expected {
		j.logger.WithFields(map[string]interface{}{
			"path":    j.path,
			"serving": j.expected,
			"on_disk": hash,
		}).Warn("Plan file changed since startup, restart to apply")
		return fmt.Errorf("plan drift: serving %s, file has %s", short(j.expected), short(hash))
	}

	j.logger.WithField("hash", short(hash)).Debug("Plan integrity verified")
	return nil
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
