package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/firesim/internal/agents"
	"github.com/talgya/firesim/internal/engine"
	"github.com/talgya/firesim/internal/persistence"
)

const testKey = "secret"

func testServer(t *testing.T) *Server {
	t.Helper()
	p := engine.DefaultParams()
	p.Days = 1
	p.Width, p.Height = 30, 24
	p.Civilians = 5
	p.Arsonists = []agents.Profile{agents.ProfileVandal}
	return &Server{
		Eng:      engine.NewEngine(engine.Build(p), engine.Speed4x),
		AdminKey: testKey,
	}
}

func get(t *testing.T, h http.Handler, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v\n%s", path, err, rec.Body)
		}
	}
	return rec.Code
}

func control(h http.Handler, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/control", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatus_ReportsRun(t *testing.T) {
	s := testServer(t)
	var st struct {
		Tick     uint64 `json:"tick"`
		Phase    string `json:"phase"`
		Speed    string `json:"speed"`
		Scenario string `json:"scenario"`
		MaxTicks uint64 `json:"max_ticks"`
	}
	if code := get(t, s.Handler(), "/api/v1/status", &st); code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if st.Tick != 0 || st.Phase != "not_started" || st.Speed != "4x" || st.Scenario != "NORMAL" {
		t.Errorf("status = %+v", st)
	}
	if st.MaxTicks != engine.TicksPerDay {
		t.Errorf("max ticks = %d", st.MaxTicks)
	}
}

func TestGrid_ReturnsDimensions(t *testing.T) {
	s := testServer(t)
	var g struct {
		Width  int               `json:"width"`
		Height int               `json:"height"`
		Cells  []json.RawMessage `json:"cells"`
	}
	get(t, s.Handler(), "/api/v1/grid", &g)
	if g.Width != 30 || g.Height != 24 || len(g.Cells) != 30*24 {
		t.Errorf("grid %dx%d with %d cells", g.Width, g.Height, len(g.Cells))
	}
}

func TestAgents_FiltersByKind(t *testing.T) {
	s := testServer(t)
	h := s.Handler()

	type agentView struct {
		Kind string `json:"kind"`
	}
	var all, police []agentView
	get(t, h, "/api/v1/agents", &all)
	get(t, h, "/api/v1/agents?kind=police", &police)
	if len(all) == 0 || len(police) == 0 || len(police) >= len(all) {
		t.Fatalf("all = %d police = %d", len(all), len(police))
	}
	for _, v := range police {
		if v.Kind != agents.KindPolice.String() {
			t.Fatalf("filtered list holds %v", v.Kind)
		}
	}
	if code := get(t, h, "/api/v1/agents?kind=mayor", nil); code != http.StatusBadRequest {
		t.Errorf("unknown kind code = %d", code)
	}
}

func TestEvents_Limit(t *testing.T) {
	s := testServer(t)
	if err := s.Eng.RunToEnd(context.Background()); err != nil {
		t.Fatal(err)
	}
	var events []engine.Event
	get(t, s.Handler(), "/api/v1/events?limit=1", &events)
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Description != "Simulation ended after 1 days." {
		t.Errorf("newest event = %q", events[0].Description)
	}
	if code := get(t, s.Handler(), "/api/v1/events?limit=x", nil); code != http.StatusBadRequest {
		t.Errorf("bad limit code = %d", code)
	}
}

func TestControl_RequiresToken(t *testing.T) {
	s := testServer(t)
	h := s.Handler()
	if rec := control(h, "", `{"action":"pause"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token code = %d", rec.Code)
	}
	if rec := control(h, "wrong", `{"action":"pause"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token code = %d", rec.Code)
	}

	s.AdminKey = ""
	if rec := control(s.Handler(), testKey, `{"action":"pause"}`); rec.Code != http.StatusForbidden {
		t.Errorf("disabled admin code = %d", rec.Code)
	}
}

func TestControl_Actions(t *testing.T) {
	s := testServer(t)
	h := s.Handler()

	if rec := control(h, testKey, `{"action":"pause"}`); rec.Code != http.StatusConflict {
		t.Errorf("pause before start code = %d", rec.Code)
	}
	s.Eng.View(func(sim *engine.Simulation) { sim.Start() })

	if rec := control(h, testKey, `{"action":"pause"}`); rec.Code != http.StatusOK {
		t.Fatalf("pause code = %d: %s", rec.Code, rec.Body)
	}
	if s.Eng.Phase() != engine.PhasePaused {
		t.Fatalf("phase = %v", s.Eng.Phase())
	}
	if rec := control(h, testKey, `{"action":"resume"}`); rec.Code != http.StatusOK {
		t.Fatalf("resume code = %d", rec.Code)
	}
	if rec := control(h, testKey, `{"action":"speed","speed":"2x"}`); rec.Code != http.StatusOK {
		t.Fatalf("speed code = %d", rec.Code)
	}
	if s.Eng.Speed() != engine.Speed2x {
		t.Errorf("speed = %v", s.Eng.Speed())
	}
	if rec := control(h, testKey, `{"action":"speed","speed":"9x"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad speed code = %d", rec.Code)
	}
	if rec := control(h, testKey, `{"action":"explode"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad action code = %d", rec.Code)
	}
	if rec := control(h, testKey, `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body code = %d", rec.Code)
	}
	if rec := control(h, testKey, `{"action":"reset"}`); rec.Code != http.StatusOK {
		t.Errorf("reset code = %d", rec.Code)
	}
	if s.Eng.Tick() != 0 || s.Eng.Phase() != engine.PhaseRunning {
		t.Errorf("after reset tick %d phase %v", s.Eng.Tick(), s.Eng.Phase())
	}
}

func TestControl_RateLimited(t *testing.T) {
	s := testServer(t)
	s.ControlLimit = 1
	h := s.Handler()
	s.Eng.View(func(sim *engine.Simulation) { sim.Start() })

	if rec := control(h, testKey, `{"action":"pause"}`); rec.Code != http.StatusOK {
		t.Fatalf("first request code = %d", rec.Code)
	}
	rec := control(h, testKey, `{"action":"resume"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request code = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func TestRuns_ArchiveEndpoints(t *testing.T) {
	s := testServer(t)
	if code := get(t, s.Handler(), "/api/v1/runs", nil); code != http.StatusServiceUnavailable {
		t.Fatalf("disabled archive code = %d", code)
	}

	db, err := persistence.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	s.DB = db

	if err := s.Eng.RunToEnd(context.Background()); err != nil {
		t.Fatal(err)
	}
	var run persistence.Run
	s.Eng.View(func(sim *engine.Simulation) { run, err = db.SaveRun(sim, time.Now()) })
	if err != nil {
		t.Fatal(err)
	}

	h := s.Handler()
	var runs []persistence.Run
	get(t, h, "/api/v1/runs", &runs)
	if len(runs) != 1 || runs[0].ID != run.ID {
		t.Fatalf("runs = %+v", runs)
	}
	var hist []engine.HistorySample
	if code := get(t, h, "/api/v1/runs/"+run.ID+"/history", &hist); code != http.StatusOK {
		t.Fatalf("history code = %d", code)
	}
	if len(hist) != engine.TicksPerDay/engine.TicksPerHour {
		t.Errorf("history = %d samples", len(hist))
	}
	if code := get(t, h, "/api/v1/runs/missing/history", nil); code != http.StatusNotFound {
		t.Errorf("missing run code = %d", code)
	}
}

func TestStream_SendsGridThenFrames(t *testing.T) {
	s := testServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first struct {
		Type string `json:"type"`
		Data struct {
			Width int `json:"width"`
		} `json:"data"`
	}
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatal(err)
	}
	if first.Type != "grid" || first.Data.Width != 30 {
		t.Fatalf("first message = %+v", first)
	}

	// The subscription exists once the grid has been sent.
	if err := s.Eng.RunToEnd(context.Background()); err != nil {
		t.Fatal(err)
	}

	var next struct {
		Type string `json:"type"`
		Data struct {
			Tick uint64 `json:"tick"`
		} `json:"data"`
	}
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatal(err)
	}
	if next.Type != "frame" || next.Data.Tick != 1 {
		t.Fatalf("second message type %q tick %d", next.Type, next.Data.Tick)
	}
}
