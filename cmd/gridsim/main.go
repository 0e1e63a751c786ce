// Command gridsim drives a simulated range-sensing robot through a walled
// world, builds an occupancy grid from its scans, and serves the live state
// over HTTP and gRPC.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/gridsim/internal/config"
	"github.com/banshee-data/gridsim/internal/controller"
	"github.com/banshee-data/gridsim/internal/export"
	"github.com/banshee-data/gridsim/internal/geometry"
	"github.com/banshee-data/gridsim/internal/gridmap"
	"github.com/banshee-data/gridsim/internal/monitor"
	"github.com/banshee-data/gridsim/internal/render"
	"github.com/banshee-data/gridsim/internal/robot"
	"github.com/banshee-data/gridsim/internal/sensing"
	"github.com/banshee-data/gridsim/internal/simdb"
	"github.com/banshee-data/gridsim/internal/timeutil"
	"github.com/banshee-data/gridsim/internal/version"
	"github.com/banshee-data/gridsim/internal/visualiser"
)

var (
	configPath  = flag.String("config", "", "Scenario file (.json, .yaml or .yml); defaults to "+config.DefaultConfigPath+" if present")
	listen      = flag.String("listen", ":8080", "HTTP listen address (empty disables)")
	grpcListen  = flag.String("grpc-listen", "localhost:50051", "gRPC visualiser listen address (empty disables)")
	dbPath      = flag.String("db", "gridsim.db", "SQLite database for grid snapshots (empty disables)")
	pngPath     = flag.String("png", "", "Final grid image path (default: gridsim-<run id>.png)")
	ticks       = flag.Uint64("ticks", 0, "Stop after this many ticks; overrides max_ticks when > 0")
	verbose     = flag.Bool("v", false, "Enable diagnostic logging")
	traceLog    = flag.Bool("trace", false, "Enable per-tick trace logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// logWriters maps the verbosity flags to the ops, diag and trace streams.
// Ops always goes to w.
func logWriters(w io.Writer, verbose, trace bool) (ops, diag, tr io.Writer) {
	ops = w
	if verbose || trace {
		diag = w
	}
	if trace {
		tr = w
	}
	return ops, diag, tr
}

func setLogWriters(ops, diag, trace io.Writer) {
	gridmap.SetLogWriters(ops, diag, trace)
	controller.SetLogWriters(ops, diag, trace)
	simdb.SetLogWriters(ops, diag, trace)
	monitor.SetLogWriters(ops, diag, trace)
	visualiser.SetLogWriters(ops, diag, trace)
}

// loadConfig reads path, or the default scenario file when path is empty.
// A missing default file yields built-in defaults.
func loadConfig(path string) (*config.SimConfig, error) {
	if path != "" {
		return config.LoadSimConfig(path)
	}
	cfg, err := config.LoadSimConfig(config.DefaultConfigPath)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("no %s, using built-in defaults", config.DefaultConfigPath)
		return config.EmptySimConfig(), nil
	}
	return cfg, err
}

// simulation is everything built from a scenario.
type simulation struct {
	world *sensing.World
	ctrl  *controller.Controller
}

func (s *simulation) walls() []geometry.Line { return s.world.Walls() }

// buildSimulation constructs the world, sensor, kinematics, grid and
// controller described by cfg.
func buildSimulation(cfg *config.SimConfig, runID string, maxTicks uint64) (*simulation, error) {
	var walls []geometry.Line
	for _, w := range cfg.GetWalls() {
		walls = append(walls, geometry.NewLine(geometry.NewPoint(w.X1, w.Y1), geometry.NewPoint(w.X2, w.Y2)))
	}
	world := sensing.NewWorld(walls...)

	sensor, err := sensing.NewRangeSensor(world, sensing.Config{
		BeamCount:   cfg.GetBeamCount(),
		FieldOfView: cfg.GetFieldOfView(),
		MaxRange:    cfg.GetMaxRange(),
		RangeNoise:  cfg.GetRangeNoise(),
		Seed:        cfg.GetNoiseSeed(),
	})
	if err != nil {
		return nil, fmt.Errorf("sensor: %w", err)
	}

	policy, err := gridmap.PolicyByName(cfg.GetOccupancyPolicy())
	if err != nil {
		return nil, err
	}
	ax, ay := cfg.GetAnchor()
	grid := gridmap.DefaultConfig().
		WithSize(cfg.GetGridSize()).
		WithCellSize(cfg.GetCellSize()).
		WithAnchor(geometry.NewVector(ax, ay)).
		WithPolicy(policy)

	if maxTicks == 0 {
		maxTicks = cfg.GetMaxTicks()
	}
	sx, sy, sh := cfg.GetStart()
	ctrl, err := controller.New(controller.Config{
		RunID: runID,
		Grid:  grid,
		Start: robot.NewPose(sx, sy, sh),
		Kinematics: robot.Unicycle{
			LinearVelocity:  cfg.GetLinearVelocity(),
			AngularVelocity: cfg.GetAngularVelocity(),
		},
		Sensor:   sensor,
		MaxTicks: maxTicks,
	})
	if err != nil {
		return nil, err
	}
	return &simulation{world: world, ctrl: ctrl}, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	setLogWriters(logWriters(os.Stderr, *verbose, *traceLog))
	log.Printf("%s starting", version.String())

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sim, err := buildSimulation(cfg, "", *ticks)
	if err != nil {
		log.Fatalf("failed to build simulation: %v", err)
	}
	runID := sim.ctrl.RunID()
	log.Printf("run %s: %dx%d grid @ %gm, %d beams, tick %v",
		runID, cfg.GetGridSize(), cfg.GetGridSize(), cfg.GetCellSize(), cfg.GetBeamCount(), cfg.GetTickInterval())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	publisher := visualiser.NewPublisher()
	sinks := controller.MultiSink{publisher}

	var (
		db       *simdb.DB
		snapSink *simdb.SnapshotSink
	)
	if *dbPath != "" {
		db, err = simdb.Open(*dbPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()
		if err := db.MigrateUp(); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		cfgJSON, err := json.Marshal(cfg)
		if err != nil {
			log.Fatalf("failed to encode config: %v", err)
		}
		if err := db.CreateRun(ctx, simdb.Run{ID: runID, StartedAt: timeutil.RealClock{}.Now(), ConfigJSON: string(cfgJSON)}); err != nil {
			log.Fatalf("failed to record run: %v", err)
		}
		snapSink = simdb.NewSnapshotSink(db, cfg.GetSnapshotEvery())
		sinks = append(sinks, snapSink)
	}

	g, gctx := errgroup.WithContext(ctx)

	// The simulation loop ends the process when it finishes or fails.
	g.Go(func() error {
		defer publisher.Close()
		err := sim.ctrl.Run(gctx, timeutil.RealClock{}, cfg.GetTickInterval(), sinks)
		if err != nil {
			return fmt.Errorf("simulation: %w", err)
		}
		log.Printf("run %s finished at tick %d", runID, sim.ctrl.Snapshot().Tick)
		stop()
		return nil
	})

	if *listen != "" {
		wsCfg := monitor.WebServerConfig{
			Address: *listen,
			Source:  sim.ctrl,
			Walls:   sim.walls(),
			Render:  render.DefaultConfig(),
		}
		if db != nil {
			wsCfg.Store = db
			wsCfg.AdminRoutes = db.AttachAdminRoutes
		}
		ws, err := monitor.NewWebServer(wsCfg)
		if err != nil {
			log.Fatalf("failed to create web server: %v", err)
		}
		g.Go(func() error { return ws.Start(gctx) })
	}

	if *grpcListen != "" {
		ln, err := net.Listen("tcp", *grpcListen)
		if err != nil {
			log.Fatalf("failed to listen on %s: %v", *grpcListen, err)
		}
		srv := visualiser.NewServer(sim.ctrl, publisher)
		g.Go(func() error { return visualiser.Serve(gctx, ln, srv) })
	}

	runErr := g.Wait()

	final := sim.ctrl.Snapshot()
	if snapSink != nil {
		if err := snapSink.Flush(context.Background(), final); err != nil {
			log.Printf("failed to store final snapshot: %v", err)
		}
	}
	out := *pngPath
	if out == "" {
		out = export.DefaultPNGName(runID)
	}
	scene := render.SceneFromFrame(final, sim.walls())
	if err := export.WriteScene(export.OSFileSystem{}, out, render.NewPlotRenderer(render.DefaultConfig()), scene); err != nil {
		log.Printf("failed to write %s: %v", out, err)
	} else {
		log.Printf("wrote %s", out)
	}

	if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
		log.Fatalf("gridsim: %v", runErr)
	}
	log.Printf("graceful shutdown complete")
}
