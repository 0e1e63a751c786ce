package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/gridsim/internal/controller"
	"github.com/banshee-data/gridsim/internal/gridmap"
	"github.com/banshee-data/gridsim/internal/pointcloud"
	"github.com/banshee-data/gridsim/internal/render"
	"github.com/banshee-data/gridsim/internal/robot"
	"github.com/banshee-data/gridsim/internal/sensing"
	"github.com/banshee-data/gridsim/internal/simdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSource(t *testing.T) *controller.Controller {
	t.Helper()
	c, err := controller.New(controller.Config{
		RunID:  "monitor-run",
		Grid:   gridmap.DefaultConfig().WithSize(10).WithCellSize(1),
		Start:  robot.NewPose(0.5, -0.5, 0),
		Sensor: sensing.Static{Cloud: pointcloud.FromXY(5.5, -0.5)},
	})
	require.NoError(t, err)
	_, err = c.Tick(100 * time.Millisecond)
	require.NoError(t, err)
	return c
}

func newTestServer(t *testing.T, store SnapshotStore) (*WebServer, *controller.Controller) {
	t.Helper()
	src := newTestSource(t)
	rc := render.DefaultConfig()
	rc.Width, rc.Height = 120, 120
	cfg := WebServerConfig{
		Address: "127.0.0.1:0",
		Source:  src,
		Walls:   sensing.BoxWorld(0, -10, 10, 0).Walls(),
		Render:  rc,
	}
	if store != nil {
		cfg.Store = store
	}
	ws, err := NewWebServer(cfg)
	require.NoError(t, err)
	return ws, src
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewWebServerRequiresSource(t *testing.T) {
	_, err := NewWebServer(WebServerConfig{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	ws, _ := newTestServer(t, nil)
	rec := get(t, ws.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "monitor-run", body["run_id"])
}

func TestStatusPage(t *testing.T) {
	ws, _ := newTestServer(t, nil)
	rec := get(t, ws.Handler(), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "monitor-run")
	assert.Contains(t, body, ".....#????")

	rec = get(t, ws.Handler(), "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFrameEndpoint(t *testing.T) {
	ws, _ := newTestServer(t, nil)
	rec := get(t, ws.Handler(), "/api/frame")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var f frameJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
	assert.Equal(t, "monitor-run", f.RunID)
	assert.Equal(t, uint64(1), f.Tick)
	assert.Equal(t, uint64(1), f.Seq)
	assert.Equal(t, poseJSON{X: 0.5, Y: -0.5}, f.Pose)
	assert.Equal(t, [][2]float64{{5.5, -0.5}}, f.Points)
	assert.Equal(t, gridmap.Counts{Unknown: 94, Freespace: 5, Occupied: 1}, f.Counts)
}

func TestFrameEndpointRejectsPost(t *testing.T) {
	ws, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/frame", nil)
	rec := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGridEndpoint(t *testing.T) {
	ws, _ := newTestServer(t, nil)
	rec := get(t, ws.Handler(), "/api/grid")
	require.Equal(t, http.StatusOK, rec.Code)

	var g gridJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &g))
	assert.Equal(t, 10, g.Size)
	assert.Equal(t, 1.0, g.CellSize)
	require.Len(t, g.Rows, 10)
	assert.Equal(t, ".....#????", g.Rows[0])
	assert.Equal(t, "??????????", g.Rows[1])
}

func TestGridCellEndpoint(t *testing.T) {
	ws, _ := newTestServer(t, nil)

	rec := get(t, ws.Handler(), "/api/grid/cell?row=0&col=5")
	require.Equal(t, http.StatusOK, rec.Code)
	var c cellJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Equal(t, "occupied", c.State)
	assert.Equal(t, uint32(1), c.Hits)
	assert.Equal(t, uint64(1), c.LastTick)
	assert.Equal(t, 5.5, c.CenterX)
	assert.Equal(t, -0.5, c.CenterY)

	tests := []struct {
		target string
		code   int
	}{
		{"/api/grid/cell?row=0&col=2", http.StatusOK},
		{"/api/grid/cell?row=0", http.StatusBadRequest},
		{"/api/grid/cell?row=a&col=1", http.StatusBadRequest},
		{"/api/grid/cell?row=1&col=x", http.StatusBadRequest},
		{"/api/grid/cell?row=10&col=0", http.StatusNotFound},
		{"/api/grid/cell?row=-1&col=0", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.code, get(t, ws.Handler(), tt.target).Code)
		})
	}
}

func TestSnapshotsWithoutStore(t *testing.T) {
	ws, _ := newTestServer(t, nil)
	rec := get(t, ws.Handler(), "/api/snapshots")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSnapshotsEndpoint(t *testing.T) {
	db, err := simdb.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.MigrateUp())

	ws, src := newTestServer(t, db)
	ctx := context.Background()
	f := src.Snapshot()
	require.NoError(t, db.CreateRun(ctx, simdb.Run{ID: f.RunID, StartedAt: time.Unix(0, 0)}))
	id, err := db.InsertGridSnapshot(ctx, f.RunID, f.Tick, f.Pose, f.Grid, time.Unix(10, 0))
	require.NoError(t, err)

	rec := get(t, ws.Handler(), "/api/snapshots")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		RunID     string                     `json:"run_id"`
		Snapshots []simdb.GridSnapshotRecord `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, "monitor-run", list.RunID)
	require.Len(t, list.Snapshots, 1)
	assert.Equal(t, id, list.Snapshots[0].ID)

	rec = get(t, ws.Handler(), "/api/snapshots?run_id=other")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"snapshots":[]`)

	rec = get(t, ws.Handler(), "/api/snapshots?id="+jsonInt(id))
	require.Equal(t, http.StatusOK, rec.Code)
	var one struct {
		Tick uint64   `json:"tick"`
		Rows []string `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	assert.Equal(t, uint64(1), one.Tick)
	require.Len(t, one.Rows, 10)
	assert.Equal(t, ".....#????", one.Rows[0])

	assert.Equal(t, http.StatusNotFound, get(t, ws.Handler(), "/api/snapshots?id=999").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, ws.Handler(), "/api/snapshots?id=abc").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, ws.Handler(), "/api/snapshots?limit=0").Code)
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestGridPNG(t *testing.T) {
	ws, _ := newTestServer(t, nil)
	rec := get(t, ws.Handler(), "/debug/grid.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	_, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	assert.NoError(t, err)
}

func TestGridChart(t *testing.T) {
	ws, _ := newTestServer(t, nil)
	rec := get(t, ws.Handler(), "/debug/grid/chart")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.True(t, strings.Contains(rec.Body.String(), "echarts"))
}

func TestAdminRoutesMounted(t *testing.T) {
	called := false
	_, err := NewWebServer(WebServerConfig{
		Source: newTestSource(t),
		AdminRoutes: func(mux *http.ServeMux) error {
			called = true
			mux.HandleFunc("/debug/extra", func(w http.ResponseWriter, r *http.Request) {})
			return nil
		},
	})
	require.NoError(t, err)
	assert.True(t, called)

	_, err = NewWebServer(WebServerConfig{
		Source:      newTestSource(t),
		AdminRoutes: func(*http.ServeMux) error { return assert.AnError },
	})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ws, _ := newTestServer(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ws.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestStartReportsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ws, err := NewWebServer(WebServerConfig{Address: ln.Addr().String(), Source: newTestSource(t)})
	require.NoError(t, err)
	assert.Error(t, ws.Start(context.Background()))
}
