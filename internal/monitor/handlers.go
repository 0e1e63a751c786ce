package monitor

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/gridsim/internal/controller"
	"github.com/banshee-data/gridsim/internal/gridmap"
	"github.com/banshee-data/gridsim/internal/httputil"
	"github.com/banshee-data/gridsim/internal/render"
	"github.com/banshee-data/gridsim/internal/robot"
	"github.com/banshee-data/gridsim/internal/simdb"
	"github.com/banshee-data/gridsim/internal/version"
)

type poseJSON struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

func toPoseJSON(p robot.Pose) poseJSON {
	return poseJSON{X: p.Position.X, Y: p.Position.Y, Heading: p.Heading}
}

type frameJSON struct {
	RunID  string              `json:"run_id"`
	Tick   uint64              `json:"tick"`
	Seq    uint64              `json:"seq"`
	Pose   poseJSON            `json:"pose"`
	Points [][2]float64        `json:"points"`
	Counts gridmap.Counts      `json:"counts"`
	Stats  gridmap.UpdateStats `json:"stats"`
}

type gridJSON struct {
	Seq      uint64         `json:"seq"`
	Size     int            `json:"size"`
	CellSize float64        `json:"cell_size"`
	AnchorX  float64        `json:"anchor_x"`
	AnchorY  float64        `json:"anchor_y"`
	Rows     []string       `json:"rows"`
	Counts   gridmap.Counts `json:"counts"`
}

type cellJSON struct {
	Row      int     `json:"row"`
	Col      int     `json:"col"`
	State    string  `json:"state"`
	Hits     uint32  `json:"hits"`
	LastTick uint64  `json:"last_tick"`
	CenterX  float64 `json:"center_x"`
	CenterY  float64 `json:"center_y"`
}

func toFrameJSON(f controller.Frame) frameJSON {
	out := frameJSON{
		RunID:  f.RunID,
		Tick:   f.Tick,
		Pose:   toPoseJSON(f.Pose),
		Points: make([][2]float64, 0, f.Cloud.Len()),
		Stats:  f.Stats,
	}
	for p := range f.Cloud.All() {
		out.Points = append(out.Points, [2]float64{p.Pos.X, p.Pos.Y})
	}
	if f.Grid != nil {
		out.Seq = f.Grid.Seq
		out.Counts = f.Grid.Counts()
	}
	return out
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status": "ok", "service": "gridsim", "version": %q, "run_id": %q}`,
		version.Version, ws.source.Snapshot().RunID)
}

func (ws *WebServer) handleFrame(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGet(w, r) {
		return
	}
	httputil.WriteJSONOK(w, toFrameJSON(ws.source.Snapshot()))
}

func (ws *WebServer) handleGrid(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGet(w, r) {
		return
	}
	s := ws.source.Snapshot().Grid
	if s == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no grid yet")
		return
	}
	httputil.WriteJSONOK(w, gridJSON{
		Seq:      s.Seq,
		Size:     s.Size,
		CellSize: s.CellSize,
		AnchorX:  s.Anchor.X,
		AnchorY:  s.Anchor.Y,
		Rows:     s.Rows(),
		Counts:   s.Counts(),
	})
}

func (ws *WebServer) handleGridCell(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGet(w, r) {
		return
	}
	q := r.URL.Query()
	if q.Get("row") == "" || q.Get("col") == "" {
		httputil.BadRequest(w, "row and col are required")
		return
	}
	row, ok := httputil.IntParam(r, "row", 0)
	if !ok {
		httputil.BadRequest(w, "invalid row")
		return
	}
	col, ok := httputil.IntParam(r, "col", 0)
	if !ok {
		httputil.BadRequest(w, "invalid col")
		return
	}
	s := ws.source.Snapshot().Grid
	if s == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no grid yet")
		return
	}
	cell, ok := s.CellState(row, col)
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("cell (%d, %d) outside %dx%d grid", row, col, s.Size, s.Size))
		return
	}
	c := s.CellCenter(row, col)
	httputil.WriteJSONOK(w, cellJSON{
		Row:      row,
		Col:      col,
		State:    cell.State.String(),
		Hits:     cell.Hits,
		LastTick: cell.LastTick,
		CenterX:  c.X,
		CenterY:  c.Y,
	})
}

type snapshotJSON struct {
	simdb.GridSnapshotRecord
	Rows []string `json:"rows,omitempty"`
}

// handleSnapshots lists stored snapshots for the current run, or returns one
// snapshot with its rows when id is given.
func (ws *WebServer) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGet(w, r) {
		return
	}
	if ws.store == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "snapshot store not configured")
		return
	}

	if idStr := r.URL.Query().Get("id"); idStr != "" {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			httputil.BadRequest(w, "invalid id")
			return
		}
		rec, err := ws.store.GridSnapshotByID(r.Context(), id)
		if errors.Is(err, simdb.ErrNotFound) {
			httputil.NotFound(w, fmt.Sprintf("snapshot %d not found", id))
			return
		}
		if err != nil {
			opsf("load snapshot %d: %v", id, err)
			httputil.InternalServerError(w, "failed to load snapshot")
			return
		}
		out := snapshotJSON{GridSnapshotRecord: *rec}
		if rec.Grid != nil {
			out.Rows = rec.Grid.Rows()
		}
		httputil.WriteJSONOK(w, out)
		return
	}

	limit, ok := httputil.IntParam(r, "limit", 20)
	if !ok || limit <= 0 {
		httputil.BadRequest(w, "invalid limit")
		return
	}
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		runID = ws.source.Snapshot().RunID
	}
	recs, err := ws.store.ListGridSnapshots(r.Context(), runID, limit)
	if err != nil {
		opsf("list snapshots for %s: %v", runID, err)
		httputil.InternalServerError(w, "failed to list snapshots")
		return
	}
	if recs == nil {
		recs = []simdb.GridSnapshotRecord{}
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"run_id":    runID,
		"snapshots": recs,
	})
}

func (ws *WebServer) scene() (render.Scene, bool) {
	f := ws.source.Snapshot()
	if f.Grid == nil {
		return render.Scene{}, false
	}
	return render.SceneFromFrame(f, ws.walls), true
}

func (ws *WebServer) handleGridPNG(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGet(w, r) {
		return
	}
	scene, ok := ws.scene()
	if !ok {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no grid yet")
		return
	}
	var buf bytes.Buffer
	if err := ws.plot.Render(&buf, scene); err != nil {
		opsf("render png: %v", err)
		httputil.InternalServerError(w, "render failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (ws *WebServer) handleGridChart(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGet(w, r) {
		return
	}
	scene, ok := ws.scene()
	if !ok {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no grid yet")
		return
	}
	var buf bytes.Buffer
	if err := ws.chart.Render(&buf, scene); err != nil {
		opsf("render chart: %v", err)
		httputil.InternalServerError(w, "render failed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
