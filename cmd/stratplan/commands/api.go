package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/stratplan/internal/api"
	"github.com/wonny/stratplan/internal/api/handlers"
	"github.com/wonny/stratplan/internal/scheduler"
	"github.com/wonny/stratplan/internal/scheduler/jobs"
	"github.com/wonny/stratplan/pkg/ratelimit"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server together with its in-process jobs.

Review sessions live in memory, so the session sweep runs inside the
server process. The plan integrity check warns when the plan file on disk
no longer matches the plan being served.

Endpoints:
  GET  /health
  GET  /api/plan, /api/plan/kras/{kraId}, /api/plan/targets
  POST /api/achievement/aggregate, /api/achievement/evaluate
  GET  /api/progress, /api/progress/entries
  POST /api/reviews and /api/reviews/{id}/...

Example:
  go run ./cmd/stratplan api
  go run ./cmd/stratplan api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort         string
	shutdownTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default is PORT)")
	apiCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "graceful shutdown timeout")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== stratplan API Server ===")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	// 1. Handlers and router
	h := api.Handlers{
		Review:      handlers.NewReviewHandler(a.review, a.log),
		Plan:        handlers.NewPlanHandler(a.registry, a.log),
		Achievement: handlers.NewAchievementHandler(a.registry, a.log),
		Progress:    handlers.NewProgressHandler(a.progress, a.repo, a.log),
	}
	limiter := ratelimit.NewKeyed(a.cfg.RateLimit.RPS, a.cfg.RateLimit.Burst, a.cfg.RateLimit.IdleTTL)
	router := api.NewRouter(h, limiter, a.log)

	// 2. In-process jobs
	sched := scheduler.New(a.log, 0, time.Minute)
	if err := sched.AddJob(jobs.NewSessionSweepJob(a.review, a.cfg.Review.SweepSchedule, a.log)); err != nil {
		return fmt.Errorf("schedule session sweep: %w", err)
	}
	if err := sched.AddJob(jobs.NewPlanIntegrityJob(a.cfg.Plan.Path, a.registry.Hash(), a.log)); err != nil {
		return fmt.Errorf("schedule plan integrity: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	// 3. Serve until interrupted
	server := api.New(a.cfg, a.log, router)

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Printf("   Plan: %s (%s)\n", a.registry.Title(), a.registry.Hash()[:12])
	fmt.Printf("   Progress source: %s\n", a.cfg.Review.ProgressSource)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := server.Run(ctx, shutdownTimeout); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
