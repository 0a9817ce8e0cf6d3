package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chazu/obstacled/pkg/config"
	"github.com/chazu/obstacled/pkg/engine"
	"github.com/chazu/obstacled/pkg/kernel/sdfx"
	"github.com/chazu/obstacled/pkg/logging"
	"github.com/chazu/obstacled/pkg/obstacle"
	"github.com/chazu/obstacled/pkg/planner"
	"github.com/chazu/obstacled/pkg/transport"
)

var serveFlags struct {
	host  string
	port  int
	scene string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC server",
	Long: `Start the obstacle registry server.

Settings come from the built-in defaults, then the --config file, then
OBSTACLED_HOST, OBSTACLED_PORT, OBSTACLED_LOG_LEVEL and OBSTACLED_SCENE,
then the flags below.

Examples:
  obstacled serve
  obstacled serve --config obstacled.toml
  obstacled serve --port 9500 --scene scenes/warehouse.zy`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveFlags.host, "host", "", "listen host")
	serveCmd.Flags().IntVar(&serveFlags.port, "port", 0, "listen port")
	serveCmd.Flags().StringVar(&serveFlags.scene, "scene", "", "scene script evaluated at startup")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)

	d, err := newDaemon(cfg, logger)
	if err != nil {
		return err
	}

	ctx := logging.WithLogger(cmd.Context(), logger)
	if cfg.Scene.Path != "" {
		if err := d.loadScene(ctx, cfg.Scene.Path); err != nil {
			return err
		}
	}

	if err := d.server.StartAsync(); err != nil {
		return err
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	d.server.StopWithTimeout(shutdownCtx)
	return nil
}

// loadConfig layers defaults, the config file, the environment and flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = serveFlags.host
	}
	if flags.Changed("port") {
		cfg.Server.Port = serveFlags.port
	}
	if flags.Changed("scene") {
		cfg.Scene.Path = serveFlags.scene
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// daemon is the wired server: one registry, its planner and kernel, the
// script engine and the gRPC front end.
type daemon struct {
	registry *obstacle.Registry
	planner  *planner.Planner
	engine   *engine.Engine
	server   *transport.Server
	logger   *slog.Logger
}

func newDaemon(cfg *config.Config, logger *slog.Logger) (*daemon, error) {
	p := planner.New()
	k := sdfx.New()
	r := obstacle.New(k, p, obstacle.WithLogger(logger))
	eng := engine.NewEngine(engine.Local{Registry: r},
		engine.WithTimeout(cfg.Scene.EvalTimeout.Duration),
		engine.WithMaxConcurrent(cfg.Scene.MaxConcurrent),
		engine.WithLogger(logger.With("component", "engine")),
	)

	svc := transport.NewService(r, p, k, eng, transport.WithHiddenMeshes(cfg.Planner.IncludeHidden))
	srv := transport.NewServer(transport.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		MaxRecvMsgSize:    cfg.Server.MaxRecvMsgSize,
		MaxSendMsgSize:    cfg.Server.MaxSendMsgSize,
		EnableReflection:  cfg.Server.EnableReflection,
		KeepaliveInterval: cfg.Server.KeepaliveInterval.Duration,
		KeepaliveTimeout:  cfg.Server.KeepaliveTimeout.Duration,
	}, svc, logger)

	return &daemon{
		registry: r,
		planner:  p,
		engine:   eng,
		server:   srv,
		logger:   logger,
	}, nil
}

// loadScene evaluates a scene script before the server accepts calls. Any
// script error aborts startup.
func (d *daemon) loadScene(ctx context.Context, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read scene: %w", err)
	}
	res, evalErrs, err := d.engine.Evaluate(ctx, string(src))
	if err != nil {
		return fmt.Errorf("scene %s: %w", path, err)
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			d.logger.Error("scene error", "path", path, "line", e.Line, "error", e.Message)
		}
		return fmt.Errorf("scene %s: %w", path, evalErrs[0])
	}
	logging.FromContext(ctx).Info("scene loaded",
		"path", path,
		"calls", len(res.Calls),
		"polyhedra", len(d.registry.Polyhedra()),
		"active", len(d.planner.Obstacles()),
	)
	return nil
}
