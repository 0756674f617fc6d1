package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetdispatch/app"
	"github.com/kilianp07/fleetdispatch/config"
	"github.com/kilianp07/fleetdispatch/infra/ingest"
)

var ingestDir string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load fleet CSV exports into the store",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "./data", "directory holding drivers.csv, orders.csv and routes.csv")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// the service is only used for its configured store here
	cfg.Ingest.LoadOnStart = false
	cfg.MQTT.Enabled = false
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	loader := ingest.NewLoader(svc.Fleet)
	ctx := context.Background()
	nd, err := loader.LoadDrivers(ctx, ingestDir+"/drivers.csv")
	if err != nil {
		return err
	}
	nr, err := loader.LoadRoutes(ctx, ingestDir+"/routes.csv")
	if err != nil {
		return err
	}
	no, err := loader.LoadOrders(ctx, ingestDir+"/orders.csv")
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "loaded %d drivers, %d routes, %d orders\n", nd, nr, no)
	return nil
}
