package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	coreallocation "github.com/kilianp07/fleetdispatch/core/allocation"
	"github.com/kilianp07/fleetdispatch/core/model"
	corenotify "github.com/kilianp07/fleetdispatch/core/notify"
	corestore "github.com/kilianp07/fleetdispatch/core/store"
	"github.com/kilianp07/fleetdispatch/infra/history"
	"github.com/kilianp07/fleetdispatch/infra/logger"
	"github.com/kilianp07/fleetdispatch/infra/notify"
	"github.com/kilianp07/fleetdispatch/infra/store"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

func waitForMQTTReady(broker string, timeout time.Duration) error {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("probe")
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		cli := paho.NewClient(opts)
		token := cli.Connect()
		token.Wait()
		if token.Error() == nil {
			cli.Disconnect(100)
			return nil
		}
		lastErr = token.Error()
		time.Sleep(100 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for broker")
	}
	return lastErr
}

func startMosquitto(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	conf := `listener 1883
allow_anonymous true
persistence false
log_dest stdout
log_type error
log_type warning
`
	dir := t.TempDir()
	path := filepath.Join(dir, "mosquitto.conf")
	if err := os.WriteFile(path, []byte(conf), 0644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{
			{
				HostFilePath:      path,
				ContainerFilePath: "/mosquitto/config/mosquitto.conf",
				FileMode:          0644,
			},
		},
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("container start: %v", err)
	}
	host, err := cont.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := cont.MappedPort(ctx, "1883")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	broker := fmt.Sprintf("tcp://%s:%s", host, port.Port())
	if err := waitForMQTTReady(broker, 5*time.Second); err != nil {
		t.Logf("mosquitto not ready: %v", err)
		t.Skip("Mosquitto not ready after retries")
	}
	return cont, broker
}

// A full allocation run against real stores must publish one notification
// per assigned driver to the broker.
func TestAllocationNotifiesDriversOverMQTT(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed")
	}
	ctx := context.Background()

	cont, broker := startMosquitto(ctx, t)
	defer func() { _ = cont.Terminate(ctx) }()

	received := make(chan corenotify.DriverNotification, 4)
	subOpts := paho.NewClientOptions().AddBroker(broker).SetClientID("driver-app")
	subCli := paho.NewClient(subOpts)
	if token := subCli.Connect(); token.Wait() && token.Error() != nil {
		t.Skipf("subscriber connect: %v", token.Error())
	}
	defer subCli.Disconnect(100)
	if token := subCli.Subscribe("fleet/drivers/+/assignments", 1, func(_ paho.Client, m paho.Message) {
		var n corenotify.DriverNotification
		if err := json.Unmarshal(m.Payload(), &n); err == nil {
			received <- n
		}
	}); token.Wait() && token.Error() != nil {
		t.Fatalf("subscribe: %v", token.Error())
	}

	dir := t.TempDir()
	fleet, err := store.NewSQLiteStore(filepath.Join(dir, "fleet.db"))
	if err != nil {
		t.Fatalf("fleet store: %v", err)
	}
	defer func() { _ = fleet.Close() }()
	runs, err := history.NewJSONLStore(filepath.Join(dir, "runs.log"))
	if err != nil {
		t.Fatalf("history store: %v", err)
	}
	defer func() { _ = runs.Close() }()

	if err := fleet.UpsertDriver(ctx, model.Driver{ID: "1", Name: "Amit", ShiftHoursToday: 4, HoursWorkedPastWeek: 35}); err != nil {
		t.Fatalf("seed driver: %v", err)
	}
	if err := fleet.UpsertRoute(ctx, model.Route{ID: "R1", DistanceKm: 10, TrafficLevel: "low", BaseTimeMinutes: 30}); err != nil {
		t.Fatalf("seed route: %v", err)
	}
	if err := fleet.UpsertOrder(ctx, model.Order{ID: "O1", Value: 500, RouteID: "R1", DeliveryTime: time.Now().Add(2 * time.Hour)}); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	engine, err := coreallocation.NewEngine(fleet, runs, nil, eventbus.New(), logger.NopLogger{})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	defer func() { _ = engine.Close() }()
	notifier, err := notify.NewMQTTNotifier(notify.Config{Enabled: true, Broker: broker, ClientID: "dispatcher", QoS: 1})
	if err != nil {
		t.Skipf("notifier connect: %v", err)
	}
	engine.SetNotifier(notifier)

	result, err := engine.AssignOrders(ctx, model.AllocationParams{})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if len(result.AssignmentsByDriver["1"]) != 1 {
		t.Fatalf("expected one assignment, got %+v", result.AssignmentsByDriver)
	}

	select {
	case n := <-received:
		if n.DriverID != "1" || len(n.OrderIDs) != 1 || n.OrderIDs[0] != "O1" {
			t.Fatalf("unexpected notification: %+v", n)
		}
		if n.RunID != result.RunID {
			t.Fatalf("run id mismatch: %s vs %s", n.RunID, result.RunID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no notification received")
	}

	// the run must also be visible through the persisted surfaces
	stored, err := runs.Query(ctx, corestore.RunQuery{})
	if err != nil {
		t.Fatalf("history query: %v", err)
	}
	if len(stored) != 1 || stored[0].ID != result.RunID {
		t.Fatalf("history mismatch: %+v", stored)
	}
	assignments, err := fleet.ListAssignments(ctx)
	if err != nil {
		t.Fatalf("assignments: %v", err)
	}
	if len(assignments) != 1 || assignments[0].DriverID != "1" {
		t.Fatalf("assignment mismatch: %+v", assignments)
	}
}
