// Package main provides navd's CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/orneryd/navpath/pkg/audit"
	"github.com/orneryd/navpath/pkg/config"
	"github.com/orneryd/navpath/pkg/routecache"
	"github.com/orneryd/navpath/pkg/search"
	"github.com/orneryd/navpath/pkg/server"
	"github.com/orneryd/navpath/pkg/snapshot"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "navd",
		Short: "navd - tile-graph navigation engine",
		Long: `navd loads a precomputed navigation graph snapshot and tile
index, then answers shortest-path queries over it with a
requirement-gated, landmark-accelerated A* search.`,
	}
	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file (env vars always override)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("navd v%s (%s)\n", version, commit)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the navd HTTP server",
		RunE:  runServe,
	}
	rootCmd.AddCommand(serveCmd)

	routeCmd := &cobra.Command{
		Use:   "route",
		Short: "Resolve one route and print a summary (status, cost, expansions, action count)",
		RunE:  runRoute,
	}
	routeCmd.Flags().Int32("start-x", 0, "start x")
	routeCmd.Flags().Int32("start-y", 0, "start y")
	routeCmd.Flags().Int32("start-plane", 0, "start plane")
	routeCmd.Flags().Int32("goal-x", 0, "goal x")
	routeCmd.Flags().Int32("goal-y", 0, "goal y")
	routeCmd.Flags().Int32("goal-plane", 0, "goal plane")
	routeCmd.Flags().Float32("weight", 1.0, "weighted-A* inflation factor, [1.0, 1.5]")
	rootCmd.AddCommand(routeCmd)

	tileCmd := &cobra.Command{
		Use:   "tile",
		Short: "Resolve a world coordinate to its node id",
		RunE:  runTile,
	}
	tileCmd.Flags().Int32("x", 0, "x")
	tileCmd.Flags().Int32("y", 0, "y")
	tileCmd.Flags().Int32("plane", 0, "plane")
	rootCmd.AddCommand(tileCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print summary statistics about the loaded snapshot",
		RunE:  runInspect,
	}
	rootCmd.AddCommand(inspectCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.LoadFromEnvOrFile(path)
}

func openGraph(cfg *config.Config) (*snapshot.Graph, error) {
	return snapshot.Open(cfg.Snapshot.Path, cfg.Snapshot.TilesPath)
}

// reloader rebuilds the engine from disk on demand (§6.5 admin reload).
type reloader struct {
	cfg *config.Config
	srv *server.Server

	mu     sync.Mutex
	engine *search.Engine
}

func (r *reloader) Reload(ctx context.Context) error {
	g, err := openGraph(r.cfg)
	if err != nil {
		return err
	}
	engine := search.NewEngine(g, r.cfg.Search.WorkerThreads, r.cfg.Search.MaxExpansions, r.cfg.Search.JitterMaxFraction)

	r.mu.Lock()
	r.engine = engine
	r.mu.Unlock()

	r.srv.SetEngine(engine)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	fmt.Printf("navd v%s starting\n", version)
	fmt.Printf("  snapshot: %s\n", cfg.Snapshot.Path)
	fmt.Printf("  tiles:    %s\n", cfg.Snapshot.TilesPath)
	fmt.Printf("  http:     %s:%d\n", cfg.Server.Address, cfg.Server.Port)

	auditLogger, err := audit.NewLogger(audit.Config{
		Enabled:       true,
		LogPath:       cfg.Audit.Path,
		SyncWrites:    false,
		AlertOnEvents: audit.DefaultConfig().AlertOnEvents,
	})
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	defer auditLogger.Close()

	g, err := openGraph(cfg)
	if err != nil {
		auditLogger.LogError(audit.EventSnapshotCorrupt, cfg.Snapshot.Path, err.Error())
		return fmt.Errorf("loading snapshot: %w", err)
	}
	fmt.Printf("  graph:    %d nodes\n", g.N())

	engine := search.NewEngine(g, cfg.Search.WorkerThreads, cfg.Search.MaxExpansions, cfg.Search.JitterMaxFraction)

	cache, err := routecache.Open(routecache.Options{
		Enabled: cfg.Cache.Enabled,
		DataDir: cfg.Cache.Dir,
		LRUSize: cfg.Cache.LRUSize,
		TTL:     cfg.Cache.TTL,
	})
	if err != nil {
		return fmt.Errorf("route cache: %w", err)
	}
	defer cache.Close()

	srv, err := server.New(engine, server.FromAppConfig(cfg))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.SetAuditLogger(auditLogger)
	srv.SetCache(cache)
	srv.SetReloader(&reloader{cfg: cfg, srv: srv, engine: engine})

	if err := srv.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	fmt.Println()
	fmt.Println("navd is ready")
	fmt.Printf("  POST http://%s/route\n", srv.Addr())
	fmt.Printf("  GET  http://%s/tile\n", srv.Addr())
	fmt.Printf("  GET  http://%s/health\n", srv.Addr())
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		return fmt.Errorf("stopping server: %w", err)
	}
	fmt.Println("stopped")
	return nil
}

func runRoute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	g, err := openGraph(cfg)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	engine := search.NewEngine(g, cfg.Search.WorkerThreads, cfg.Search.MaxExpansions, cfg.Search.JitterMaxFraction)

	sx, _ := cmd.Flags().GetInt32("start-x")
	sy, _ := cmd.Flags().GetInt32("start-y")
	sp, _ := cmd.Flags().GetInt32("start-plane")
	gx, _ := cmd.Flags().GetInt32("goal-x")
	gy, _ := cmd.Flags().GetInt32("goal-y")
	gp, _ := cmd.Flags().GetInt32("goal-plane")
	weight, _ := cmd.Flags().GetFloat32("weight")

	req := search.Request{
		Start:   snapshot.Point{X: sx, Y: sy, Plane: sp},
		Goal:    snapshot.Point{X: gx, Y: gy, Plane: gp},
		Options: search.Options{ReturnGeometry: true, Weight: weight},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err := engine.Route(ctx, req)
	if err != nil {
		return fmt.Errorf("route: %w", err)
	}

	fmt.Printf("status: %s\n", result.Status)
	fmt.Printf("cost_ms: %d\n", result.CostMS)
	fmt.Printf("expanded: %d\n", result.Stats.Expanded)
	fmt.Printf("actions: %d\n", len(result.Actions))
	return nil
}

func runTile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	g, err := openGraph(cfg)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	x, _ := cmd.Flags().GetInt32("x")
	y, _ := cmd.Flags().GetInt32("y")
	plane, _ := cmd.Flags().GetInt32("plane")

	node, ok := g.Tiles.Lookup(x, y, plane)
	if !ok {
		fmt.Println("no node at that coordinate")
		return nil
	}
	fmt.Printf("node_id: %d\n", uint32(node))
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	g, err := openGraph(cfg)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	fmt.Printf("nodes:            %d\n", g.N())
	fmt.Printf("landmarks:        %d\n", g.LandmarkCount)
	fmt.Printf("base_step_cost:   %d ms\n", g.BaseStepCostMS)
	fmt.Printf("global edges:     %d\n", len(g.GlobalEdges))
	fmt.Printf("predicates:       %d\n", len(g.Predicates))
	return nil
}
