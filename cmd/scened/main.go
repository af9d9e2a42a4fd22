package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cogentcore.org/core/math32"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/l1jgo/scene/internal/config"
	"github.com/l1jgo/scene/internal/core/event"
	coresys "github.com/l1jgo/scene/internal/core/system"
	"github.com/l1jgo/scene/internal/data"
	"github.com/l1jgo/scene/internal/metrics"
	"github.com/l1jgo/scene/internal/persist"
	"github.com/l1jgo/scene/internal/render"
	"github.com/l1jgo/scene/internal/scripting"
	"github.com/l1jgo/scene/internal/spatial"
	"github.com/l1jgo/scene/internal/system"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

// ── Main loop ─────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/scened.toml"
	if p := os.Getenv("SCENED_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Scene and spatial index
	printSection("Scene")
	grid := spatial.NewGrid(spatial.Config{
		Origin:           math32.Vec3(cfg.Scene.Origin[0], cfg.Scene.Origin[1], cfg.Scene.Origin[2]),
		CellSize:         cfg.Scene.CellSize,
		SmallCellDivisor: cfg.Scene.SmallCellDivisor,
	})
	scene := render.NewScene(grid,
		render.WithGrowSlack(cfg.Scene.GrowSlack),
		render.WithLogger(log.Named("scene")))

	if cfg.Driver.ManifestPath != "" {
		manifest, err := data.LoadManifest(cfg.Driver.ManifestPath)
		if err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
		tx, ids := manifest.Build(scene.AllocateID)
		scene.EnqueueTransaction(tx)
		printStat("Manifest items", len(ids))
	}

	// 4. Optional database
	var store system.SnapshotStore
	if cfg.Database.Enabled {
		printSection("Database")
		dbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		db, err := persist.NewDB(dbCtx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		if err := persist.RunMigrations(dbCtx, db.Pool); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("Migrations applied")

		repo := persist.NewSnapshotRepo(db, cfg.Database.SnapshotKeep)
		if cfg.Driver.ManifestPath == "" {
			rows, err := repo.LoadLatest(dbCtx)
			if err != nil {
				return fmt.Errorf("load snapshot: %w", err)
			}
			tx, ids := persist.RestoreTransaction(rows, scene.AllocateID)
			scene.EnqueueTransaction(tx)
			printStat("Restored items", len(ids))
		}
		store = repo
	}

	// 5. Producers
	engine, err := scripting.NewEngine(cfg.Driver.ScriptsDir, scene, log.Named("lua"))
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()
	printOK("Lua producers loaded")

	// 6. Systems
	bus := event.NewBus()
	runner := coresys.NewRunner()
	view := math32.Box3{
		Min: math32.Vec3(cfg.Driver.ViewMin[0], cfg.Driver.ViewMin[1], cfg.Driver.ViewMin[2]),
		Max: math32.Vec3(cfg.Driver.ViewMax[0], cfg.Driver.ViewMax[1], cfg.Driver.ViewMax[2]),
	}
	runner.Register(system.NewProduceSystem(engine, bus, runner.Frames, log))
	runner.Register(system.NewCommitSystem(scene, bus, runner.Frames, log))
	runner.Register(system.NewCullSystem(scene, bus, runner.Frames, view))
	runner.Register(system.NewDispatchSystem(bus))
	var snapshots *system.SnapshotSystem
	if store != nil {
		snapshots = system.NewSnapshotSystem(scene, store, bus, runner.Frames, log, cfg.Driver.SnapshotInterval)
		runner.Register(snapshots)
	}
	system.SubscribeLogging(bus, log)

	g, ctx := errgroup.WithContext(ctx)

	// 7. Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		m := metrics.New(reg, scene.NumPending)
		m.Subscribe(bus)

		srv := &http.Server{
			Addr:              cfg.Metrics.BindAddress,
			Handler:           metrics.Handler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		printOK(fmt.Sprintf("Metrics on http://%s/metrics", cfg.Metrics.BindAddress))
	}

	// 8. Frame loop
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Driver.FrameRate)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				runner.Tick(cfg.Driver.FrameRate)
			case <-ctx.Done():
				system.Flush(runner, snapshots)
				return nil
			}
		}
	})
	printOK(fmt.Sprintf("Frame loop running (frame: %s)", cfg.Driver.FrameRate))
	fmt.Println()

	err = g.Wait()
	log.Info("scene driver stopped",
		zap.Uint64("frames", runner.Frames()),
		zap.Uint64("allocated", uint64(scene.NumAllocated())))
	return err
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
