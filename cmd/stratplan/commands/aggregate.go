package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/stratplan/internal/achievement"
	"github.com/wonny/stratplan/internal/contracts"
	"github.com/wonny/stratplan/internal/progress"
)

// aggregateCmd represents the aggregate command
var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Aggregate activities offline",
	Long: `Aggregates activities read from a JSON file ("-" for stdin).

Without --year the file is one aggregation input with an explicit target:
  {"targetType":"count","targetValue":10,"activities":[{"reported":4}]}

With --year the file is a list of activities. Targets are resolved from the
plan and the result is the document-local achievement summary.

Example:
  go run ./cmd/stratplan aggregate --file input.json
  go run ./cmd/stratplan aggregate --file activities.json --year 2025 --plan plan.yaml`,
	RunE: runAggregate,
}

var (
	aggregateFile string
	aggregateYear int
	aggregateJSON bool
)

func init() {
	rootCmd.AddCommand(aggregateCmd)

	aggregateCmd.Flags().StringVarP(&aggregateFile, "file", "f", "-", "input JSON file")
	aggregateCmd.Flags().IntVar(&aggregateYear, "year", 0, "report year; resolves targets from the plan")
	aggregateCmd.Flags().BoolVar(&aggregateJSON, "json", false, "print the result as JSON")
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func runAggregate(cmd *cobra.Command, args []string) error {
	data, err := readInput(aggregateFile)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	if aggregateYear > 0 {
		return aggregateDocument(data)
	}

	var in achievement.Input
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}

	res := achievement.Aggregate(in)
	if aggregateJSON {
		return PrintJSON(res)
	}

	PrintHeader("Aggregation")
	PrintKeyValue("Type", string(in.TargetType), 12)
	PrintKeyValue("Reported", strconv.FormatFloat(res.TotalReported, 'f', -1, 64), 12)
	PrintKeyValue("Target", strconv.FormatFloat(res.TotalTarget, 'f', -1, 64), 12)
	PrintKeyValue("Achievement", formatPercent(res.AchievementPercent), 12)
	PrintKeyValue("Counted", strconv.Itoa(res.Counted), 12)
	if res.Discarded > 0 {
		PrintKeyValue("Discarded", strconv.Itoa(res.Discarded), 12)
	}
	return nil
}

func aggregateDocument(data []byte) error {
	var activities []contracts.Activity
	if err := json.Unmarshal(data, &activities); err != nil {
		return fmt.Errorf("decode activities: %w", err)
	}

	registry, err := openRegistry()
	if err != nil {
		return err
	}

	summary := progress.Evaluate(registry, aggregateYear, activities, nil)
	if aggregateJSON {
		return PrintJSON(summary)
	}

	PrintHeader(fmt.Sprintf("Document achievement (%d)", aggregateYear))
	widths := []int{8, 14, 12, 12, 12, 10}
	PrintTableHeader([]string{"KRA", "KPI", "REPORTED", "TARGET", "ACHIEVED", "ACTIVITIES"}, widths)
	for _, g := range summary.Groups {
		PrintTableRow([]string{
			g.Key.KRAID,
			g.Key.InitiativeID,
			strconv.FormatFloat(g.Progress.NewTotal, 'f', -1, 64),
			strconv.FormatFloat(g.Progress.Target, 'f', -1, 64),
			formatPercent(g.Progress.DisplayedAchievement),
			strconv.Itoa(len(g.Indices)),
		}, widths)
	}
	PrintSeparator()
	PrintKeyValue("Overall", formatPercent(summary.DocumentAchievement), 10)
	for _, key := range summary.Unresolved {
		PrintWarning(fmt.Sprintf("%s / %s has no target in the plan", key.KRAID, key.InitiativeID))
	}
	return nil
}
