package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fieldrover/rovermon/internal/telemetry"
	"github.com/fieldrover/rovermon/pkg/models"
	"github.com/gorilla/websocket"
)

// stubSnapshots returns a fixed snapshot or error.
type stubSnapshots struct {
	snapshot *models.Snapshot
	err      error
}

func (s *stubSnapshots) Read() (*models.Snapshot, error) { return s.snapshot, s.err }

func newTestServer(t *testing.T, snapshots SnapshotReader) (*Server, *telemetry.StateHub, *httptest.Server) {
	t.Helper()
	hub := telemetry.NewStateHub()
	srv, err := New(":0", hub, snapshots)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, hub, ts
}

func TestHealthz(t *testing.T) {
	_, _, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestIngest(t *testing.T) {
	_, hub, ts := newTestServer(t, nil)

	state := models.RobotState{
		Pose:             models.Pose{X: 2, Y: 3},
		LinearVelocity:   models.Vector3{X: 0.5},
		MinObstacleRange: 1.2,
	}
	body, _ := json.Marshal(state)

	resp, err := http.Post(ts.URL+"/api/state", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	got, ok := hub.Current()
	if !ok {
		t.Fatal("expected state in the hub")
	}
	if got.Pose.X != 2 || got.MinObstacleRange != 1.2 {
		t.Fatalf("unexpected state: %+v", got)
	}
	if got.Source != "ingest" {
		t.Fatalf("expected source defaulted to ingest, got %q", got.Source)
	}
	if got.Time.IsZero() {
		t.Fatal("expected time defaulted")
	}
}

func TestIngest_InvalidBody(t *testing.T) {
	_, _, ts := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/api/state", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSnapshot(t *testing.T) {
	snapshot := &models.Snapshot{RunID: "run-1", Time: time.Now().UTC()}
	_, _, ts := newTestServer(t, &stubSnapshots{snapshot: snapshot})

	resp, err := http.Get(ts.URL + "/api/snapshot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got models.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if got.RunID != "run-1" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestSnapshot_NoneYet(t *testing.T) {
	_, _, ts := newTestServer(t, &stubSnapshots{})

	resp, err := http.Get(ts.URL + "/api/snapshot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSnapshot_ReadError(t *testing.T) {
	_, _, ts := newTestServer(t, &stubSnapshots{err: fmt.Errorf("disk gone")})

	resp, err := http.Get(ts.URL + "/api/snapshot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}

func TestStream(t *testing.T) {
	_, hub, ts := newTestServer(t, nil)

	hub.Update(models.RobotState{Pose: models.Pose{X: 1}})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/telemetry"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer conn.Close()

	// The current state is sent immediately on connect.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var first models.RobotState
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("reading first frame: %v", err)
	}
	if first.Pose.X != 1 {
		t.Fatalf("unexpected first frame: %+v", first)
	}

	// Subsequent updates are streamed.
	hub.Update(models.RobotState{Pose: models.Pose{X: 2}})
	var second models.RobotState
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("reading second frame: %v", err)
	}
	if second.Pose.X != 2 {
		t.Fatalf("unexpected second frame: %+v", second)
	}
}

func TestNew_RequiresHub(t *testing.T) {
	if _, err := New(":0", nil, nil); err == nil {
		t.Fatal("expected error for nil hub")
	}
}
