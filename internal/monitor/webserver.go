// Package monitor serves the live simulation state over HTTP: a status page,
// JSON views of the current frame and grid, rendered images and stored
// snapshots.
package monitor

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/banshee-data/gridsim/internal/controller"
	"github.com/banshee-data/gridsim/internal/geometry"
	"github.com/banshee-data/gridsim/internal/gridmap"
	"github.com/banshee-data/gridsim/internal/render"
	"github.com/banshee-data/gridsim/internal/simdb"
)

//go:embed status.html
var statusHTML embed.FS

var statusTemplate = template.Must(template.ParseFS(statusHTML, "status.html"))

// FrameSource provides the latest committed frame.
type FrameSource interface {
	Snapshot() controller.Frame
}

// SnapshotStore lists and loads persisted grid snapshots.
type SnapshotStore interface {
	ListGridSnapshots(ctx context.Context, runID string, limit int) ([]simdb.GridSnapshotRecord, error)
	GridSnapshotByID(ctx context.Context, id int64) (*simdb.GridSnapshotRecord, error)
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address string
	Source  FrameSource   // required
	Store   SnapshotStore // optional; /api/snapshots answers 503 without it
	Walls   []geometry.Line
	Render  render.Config
	// AdminRoutes, if set, is called with the mux to mount debug routes
	// such as the database console.
	AdminRoutes func(mux *http.ServeMux) error
	// RefreshSeconds is the status page reload period (default: 2).
	RefreshSeconds int
}

// WebServer handles the HTTP interface.
type WebServer struct {
	address string
	source  FrameSource
	store   SnapshotStore
	walls   []geometry.Line
	plot    *render.PlotRenderer
	chart   *render.ChartRenderer
	refresh int
	server  *http.Server
	handler http.Handler
}

// NewWebServer builds the server and its routes.
func NewWebServer(cfg WebServerConfig) (*WebServer, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("web server requires a frame source")
	}
	refresh := cfg.RefreshSeconds
	if refresh <= 0 {
		refresh = 2
	}
	ws := &WebServer{
		address: cfg.Address,
		source:  cfg.Source,
		store:   cfg.Store,
		walls:   cfg.Walls,
		plot:    render.NewPlotRenderer(cfg.Render),
		chart:   render.NewChartRenderer(cfg.Render),
		refresh: refresh,
	}

	mux := ws.setupRoutes()
	if cfg.AdminRoutes != nil {
		if err := cfg.AdminRoutes(mux); err != nil {
			return nil, fmt.Errorf("admin routes: %w", err)
		}
	}
	ws.handler = logRequests(mux)
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           ws.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws, nil
}

// Handler returns the root handler, for tests and embedding.
func (ws *WebServer) Handler() http.Handler { return ws.handler }

// Start serves until ctx is cancelled, then shuts down gracefully. It
// returns an error only if the listener fails.
func (ws *WebServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ws.address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", ws.address, err)
	}
	return ws.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (ws *WebServer) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		diagf("starting HTTP server on %s", ln.Addr())
		if err := ws.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			opsf("HTTP server failed: %v", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}
	diagf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		opsf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			opsf("HTTP server force close error: %v", err)
		}
	}
	diagf("HTTP server routine stopped")
	return nil
}

func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/", ws.handleStatus)
	mux.HandleFunc("/api/frame", ws.handleFrame)
	mux.HandleFunc("/api/grid", ws.handleGrid)
	mux.HandleFunc("/api/grid/cell", ws.handleGridCell)
	mux.HandleFunc("/api/snapshots", ws.handleSnapshots)
	mux.HandleFunc("/debug/grid.png", ws.handleGridPNG)
	mux.HandleFunc("/debug/grid/chart", ws.handleGridChart)

	return mux
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (s *statusWriter) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		tracef("%s %s %d %s", r.Method, r.URL.Path, sw.code, time.Since(start))
	})
}

type statusPage struct {
	RunID          string
	Tick           uint64
	Pose           string
	Points         int
	Counts         gridmap.Counts
	Size           int
	CellSize       float64
	Rows           []string
	RefreshSeconds int
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	f := ws.source.Snapshot()
	page := statusPage{
		RunID:          f.RunID,
		Tick:           f.Tick,
		Pose:           f.Pose.String(),
		Points:         f.Cloud.Len(),
		RefreshSeconds: ws.refresh,
	}
	if f.Grid != nil {
		page.Counts = f.Grid.Counts()
		page.Size = f.Grid.Size
		page.CellSize = f.Grid.CellSize
		// Large grids are not dumped as text.
		if f.Grid.Size <= 200 {
			page.Rows = f.Grid.Rows()
		}
	}

	var buf bytes.Buffer
	if err := statusTemplate.Execute(&buf, page); err != nil {
		opsf("status template: %v", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
