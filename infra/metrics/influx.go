package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/infra/logger"
)

// InfluxSink writes allocation outcomes to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg coremetrics.Config) *InfluxSink {
	client := influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg coremetrics.Config) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordAssignments writes one point per assignment decision.
func (s *InfluxSink) RecordAssignments(events []coremetrics.AssignmentEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, ev := range events {
		p := write.NewPointWithMeasurement("assignment_event").
			AddTag("run_id", ev.RunID).
			AddTag("driver_id", ev.DriverID).
			AddTag("route_id", ev.RouteID).
			AddTag("on_time", strconv.FormatBool(ev.OnTime)).
			AddField("profit", ev.Profit).
			AddField("fuel_cost", ev.FuelCost).
			AddField("penalty", ev.Penalty).
			AddField("bonus", ev.Bonus).
			SetTime(ev.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordRun writes the run-level KPI snapshot as a single point.
func (s *InfluxSink) RecordRun(run model.SimulationRun) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("allocation_run").
		AddTag("run_id", run.ID).
		AddField("total_profit", run.KPIs.TotalProfit).
		AddField("efficiency_score", run.KPIs.EfficiencyScore).
		AddField("total_deliveries", run.KPIs.TotalDeliveries).
		AddField("on_time_deliveries", run.KPIs.OnTimeDeliveries).
		AddField("late_deliveries", run.KPIs.LateDeliveries).
		AddField("total_fuel_cost", run.KPIs.TotalFuelCost).
		AddField("total_penalties", run.KPIs.TotalPenalties).
		AddField("total_bonuses", run.KPIs.TotalBonuses).
		SetTime(run.Timestamp)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close shuts down the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }
