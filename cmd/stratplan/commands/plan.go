package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/stratplan/internal/plan"
	"github.com/wonny/stratplan/pkg/config"
)

// planCmd represents the plan command
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Inspect the strategic plan",
	Long: `Validates and inspects a strategic plan file without starting the
server. The file comes from --plan, or PLAN_PATH when the flag is empty.

Subcommands:
  validate  - check ids and target specs, print the plan hash
  show      - list KRAs and their KPIs
  resolve   - resolve the target of a KPI for a year

Example:
  go run ./cmd/stratplan plan validate --plan plan.yaml
  go run ./cmd/stratplan plan resolve "KRA 1" KRA1-KPI1 2025`,
}

var (
	planValidateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Validate the plan file",
		RunE:  runPlanValidate,
	}

	planShowCmd = &cobra.Command{
		Use:   "show",
		Short: "List KRAs and KPIs",
		RunE:  runPlanShow,
	}

	planResolveCmd = &cobra.Command{
		Use:   "resolve [kra_id] [kpi_id] [year]",
		Short: "Resolve a KPI target for a year",
		Args:  cobra.ExactArgs(3),
		RunE:  runPlanResolve,
	}

	resolveJSON bool
)

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.AddCommand(planValidateCmd)
	planCmd.AddCommand(planShowCmd)
	planCmd.AddCommand(planResolveCmd)

	planResolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "print the target as JSON")
}

// resolvePlanPath prefers --plan and falls back to PLAN_PATH. Plan commands
// must work without the rest of the configuration being valid.
func resolvePlanPath() (string, error) {
	if planFile != "" {
		return planFile, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("no --plan given and %w", err)
	}
	return cfg.Plan.Path, nil
}

func openRegistry() (*plan.Registry, error) {
	path, err := resolvePlanPath()
	if err != nil {
		return nil, err
	}
	return plan.LoadRegistry(path)
}

func runPlanValidate(cmd *cobra.Command, args []string) error {
	path, err := resolvePlanPath()
	if err != nil {
		return err
	}

	registry, err := plan.LoadRegistry(path)
	if err != nil {
		var verr plan.ValidationError
		if errors.As(err, &verr) {
			PrintError("Plan is invalid")
		}
		return err
	}

	initiatives := 0
	for _, kra := range registry.KRAs() {
		initiatives += len(kra.Initiatives)
	}

	PrintHeader("Strategic plan")
	PrintKeyValue("File", path, 11)
	PrintKeyValue("Title", registry.Title(), 11)
	PrintKeyValue("KRAs", strconv.Itoa(len(registry.KRAs())), 11)
	PrintKeyValue("KPIs", strconv.Itoa(initiatives), 11)
	PrintKeyValue("Hash", registry.Hash(), 11)
	PrintSeparator()
	PrintSuccess("Plan is valid")
	return nil
}

func runPlanShow(cmd *cobra.Command, args []string) error {
	registry, err := openRegistry()
	if err != nil {
		return err
	}

	PrintHeader(registry.Title())
	widths := []int{8, 14, 16, 14, 10}
	PrintTableHeader([]string{"KRA", "KPI", "TYPE", "SCOPE", "YEARS"}, widths)

	for _, kra := range registry.KRAs() {
		for _, ini := range kra.Initiatives {
			years := "-"
			if n := len(ini.Targets.Timeline); n > 0 {
				years = fmt.Sprintf("%d-%d", ini.Targets.Timeline[0].Year, ini.Targets.Timeline[n-1].Year)
			}
			scope := ini.Targets.Scope
			if scope == "" {
				scope = "-"
			}
			PrintTableRow([]string{kra.KRAID, ini.ID, string(ini.Targets.Type), scope, years}, widths)
		}
	}
	return nil
}

func runPlanResolve(cmd *cobra.Command, args []string) error {
	year, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("year must be an integer: %w", err)
	}

	registry, err := openRegistry()
	if err != nil {
		return err
	}

	target := registry.ResolveTarget(args[0], args[1], year)
	if resolveJSON {
		return PrintJSON(target)
	}

	if !target.Resolved() {
		PrintWarning(fmt.Sprintf("%s / %s is not in the plan", args[0], args[1]))
		return nil
	}

	PrintHeader(fmt.Sprintf("%s / %s (%d)", target.KRAID, target.InitiativeID, year))
	PrintKeyValue("Type", string(target.Type), 14)
	PrintKeyValue("Value", formatFloat(target.Value), 14)
	if target.Text != "" {
		PrintKeyValue("Text", target.Text, 14)
	}
	PrintKeyValue("Scope", string(target.Scope), 14)
	if target.UnitBasis != "" {
		PrintKeyValue("Unit basis", target.UnitBasis, 14)
		PrintKeyValue("Units", formatFloat(target.UnitMultiplier), 14)
	}
	if target.TimelineYear != 0 && target.TimelineYear != year {
		PrintKeyValue("From year", strconv.Itoa(target.TimelineYear), 14)
	}
	return nil
}
