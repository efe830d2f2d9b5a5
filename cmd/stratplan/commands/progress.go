package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wonny/stratplan/internal/contracts"
	"github.com/wonny/stratplan/internal/progress"
	"github.com/wonny/stratplan/pkg/database"
)

// progressCmd represents the progress command
var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Manage committed KPI progress",
	Long: `Reads and imports committed progress in the Postgres store.

Subcommands:
  show    - print the records and quarterly entries of a KRA
  import  - upsert quarterly entries from a YAML or JSON file

Example:
  go run ./cmd/stratplan progress show "KRA 1" 2025
  go run ./cmd/stratplan progress import --file entries.yaml`,
}

var (
	progressShowCmd = &cobra.Command{
		Use:   "show [kra_id] [year]",
		Short: "Print committed progress",
		Args:  cobra.ExactArgs(2),
		RunE:  runProgressShow,
	}

	progressImportCmd = &cobra.Command{
		Use:   "import",
		Short: "Import quarterly entries",
		RunE:  runProgressImport,
	}

	importFile string
)

func init() {
	rootCmd.AddCommand(progressCmd)
	progressCmd.AddCommand(progressShowCmd)
	progressCmd.AddCommand(progressImportCmd)

	progressImportCmd.Flags().StringVarP(&importFile, "file", "f", "", "entries file (list of kraId/kpiId/year/quarter/value)")
	_ = progressImportCmd.MarkFlagRequired("file")
}

// openRepository connects to DATABASE_URL regardless of PROGRESS_SOURCE
func openRepository(ctx context.Context) (*progress.Repository, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}

	db, err := database.New(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return progress.NewRepository(db.Pool), db.Close, nil
}

func runProgressShow(cmd *cobra.Command, args []string) error {
	year, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("year must be an integer: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, closeDB, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	records, err := repo.Fetch(ctx, args[0], year)
	if err != nil {
		return err
	}
	entries, err := repo.Entries(ctx, args[0], year)
	if err != nil {
		return err
	}

	quarters := make(map[string][4]string)
	for _, e := range entries {
		q := quarters[e.KPIID]
		if e.Quarter >= 1 && e.Quarter <= 4 {
			q[e.Quarter-1] = strconv.FormatFloat(e.Value, 'f', -1, 64)
		}
		quarters[e.KPIID] = q
	}

	PrintHeader(fmt.Sprintf("%s progress (%d)", args[0], year))
	widths := []int{14, 10, 10, 8, 8, 8, 8, 8}
	PrintTableHeader([]string{"KPI", "CURRENT", "TARGET", "Q1", "Q2", "Q3", "Q4", "VERSION"}, widths)
	for _, r := range records {
		q := quarters[r.KPIID]
		row := []string{
			r.KPIID,
			strconv.FormatFloat(r.Current, 'f', -1, 64),
			strconv.FormatFloat(r.Target, 'f', -1, 64),
		}
		for _, v := range q {
			if v == "" {
				v = "-"
			}
			row = append(row, v)
		}
		row = append(row, strconv.FormatInt(r.Version, 10))
		PrintTableRow(row, widths)
	}
	if len(records) == 0 {
		PrintWarning("No committed progress")
	}
	return nil
}

func runProgressImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(importFile)
	if err != nil {
		return fmt.Errorf("read entries: %w", err)
	}

	// JSON is a subset of YAML
	var entries []contracts.ProgressEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decode entries: %w", err)
	}
	if err := checkEntries(entries); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	repo, closeDB, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	if err := repo.SaveEntries(ctx, entries); err != nil {
		PrintError("Import failed")
		return err
	}

	PrintSuccess(fmt.Sprintf("Imported %d entries", len(entries)))
	return nil
}

// checkEntries rejects incomplete rows before anything is written
func checkEntries(entries []contracts.ProgressEntry) error {
	for i, e := range entries {
		if e.KRAID == "" || e.KPIID == "" || e.Year <= 0 || e.Quarter < 1 || e.Quarter > 4 {
			return fmt.Errorf("entry %d: kraId, kpiId, year and quarter 1-4 are required", i+1)
		}
	}
	return nil
}
