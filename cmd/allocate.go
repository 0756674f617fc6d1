package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetdispatch/app"
	"github.com/kilianp07/fleetdispatch/config"
	"github.com/kilianp07/fleetdispatch/core/model"
)

var (
	allocateDrivers   int
	allocateStartTime string
	allocateMaxHours  float64
)

var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Run one allocation pass and print the result",
	RunE:  runAllocate,
}

func init() {
	allocateCmd.Flags().IntVar(&allocateDrivers, "drivers", 0, "cap the driver pool to the first N drivers")
	allocateCmd.Flags().StringVar(&allocateStartTime, "start-time", "", "route start time (HH:MM)")
	allocateCmd.Flags().Float64Var(&allocateMaxHours, "max-hours", 0, "maximum shift hours per driver per day")
	rootCmd.AddCommand(allocateCmd)
}

func runAllocate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	params := model.AllocationParams{RouteStartTime: allocateStartTime}
	if cmd.Flags().Changed("drivers") {
		params.NumAvailableDrivers = &allocateDrivers
	}
	if cmd.Flags().Changed("max-hours") {
		params.MaxHoursPerDriverPerDay = &allocateMaxHours
	}

	result, err := svc.Engine.AssignOrders(ctx, params)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
