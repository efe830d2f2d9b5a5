package scheduler

import (
	"context"
	"time"
)

// historyLimit caps the results kept per job
const historyLimit = 100

// Job is a periodic maintenance task such as the review session sweep
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	Name() string

	// Run executes the job. ctx is cancelled when the scheduler stops.
	Run(ctx context.Context) error

	// Schedule returns a cron expression with a seconds field,
	// e.g. "0 */10 * * * *" for every ten minutes
	Schedule() string
}

// JobResult is one run of a job, retries included
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// runLog holds the recent results of one job. Counters cover every run,
// including the ones already trimmed from recent.
type runLog struct {
	recent      []JobResult
	runs        int
	failures    int
	lastSuccess time.Time
	lastFailure time.Time
}

func (l *runLog) record(r JobResult) {
	l.runs++
	if r.Success {
		l.lastSuccess = r.StartTime
	} else {
		l.failures++
		l.lastFailure = r.StartTime
	}

	l.recent = append(l.recent, r)
	if over := len(l.recent) - historyLimit; over > 0 {
		l.recent = append(l.recent[:0:0], l.recent[over:]...)
	}
}

func (l *runLog) stats(name, schedule string) JobStats {
	st := JobStats{
		JobName:      name,
		Schedule:     schedule,
		TotalRuns:    l.runs,
		SuccessCount: l.runs - l.failures,
		FailureCount: l.failures,
	}
	if l.runs == 0 {
		return st
	}
	st.SuccessRate = float64(st.SuccessCount) / float64(l.runs)

	last := l.recent[len(l.recent)-1].StartTime
	st.LastRun = &last
	if !l.lastSuccess.IsZero() {
		ok := l.lastSuccess
		st.LastSuccess = &ok
	}
	if !l.lastFailure.IsZero() {
		failed := l.lastFailure
		st.LastFailure = &failed
	}
	return st
}
