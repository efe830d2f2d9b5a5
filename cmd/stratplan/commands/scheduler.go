package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/stratplan/internal/plan"
	"github.com/wonny/stratplan/internal/review"
	"github.com/wonny/stratplan/internal/scheduler"
	"github.com/wonny/stratplan/internal/scheduler/jobs"
	"github.com/wonny/stratplan/pkg/logger"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Inspect and run scheduled jobs",
	Long: `Lists the jobs the API server schedules and runs one on demand.

The jobs themselves run inside the api command, because review sessions
live in the server's memory. Running session_sweep here only sweeps an
empty local store and is useful as a smoke test.

Subcommands:
  list  - registered jobs and schedules
  run   - run a job now and print its result

Example:
  go run ./cmd/stratplan scheduler list
  go run ./cmd/stratplan scheduler run plan_integrity`,
}

var (
	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run a job now",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

// initScheduler registers the same jobs as the api command over a local
// session store
func initScheduler() (*scheduler.Scheduler, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg)

	registry, err := plan.LoadRegistry(cfg.Plan.Path)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}

	svc := review.NewService(review.Deps{
		Catalog: registry,
		Store:   review.NewStore(cfg.Review.SessionTTL),
		Logger:  log,
	})

	sched := scheduler.New(log, 0, time.Second)
	if err := sched.AddJob(jobs.NewSessionSweepJob(svc, cfg.Review.SweepSchedule, log)); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewPlanIntegrityJob(cfg.Plan.Path, registry.Hash(), log)); err != nil {
		return nil, err
	}
	return sched, nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	stats := sched.GetJobStats()
	widths := []int{16, 20}
	PrintTableHeader([]string{"JOB", "SCHEDULE"}, widths)
	for _, name := range sched.GetAllJobs() {
		PrintTableRow([]string{name, stats[name].Schedule}, widths)
	}
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Printf("Running job: %s\n", jobName)
	result, err := sched.RunJob(jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	if !result.Success {
		PrintError(fmt.Sprintf("%s failed after %v: %s", jobName, result.Duration, result.Error))
		return fmt.Errorf("job %s failed", jobName)
	}
	PrintSuccess(fmt.Sprintf("%s completed in %v", jobName, result.Duration))
	return nil
}
