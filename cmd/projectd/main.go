package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/ritzau/projectd/pkg/compiler"
	"github.com/ritzau/projectd/pkg/config"
	"github.com/ritzau/projectd/pkg/inspect"
	"github.com/ritzau/projectd/pkg/logging"
	"github.com/ritzau/projectd/pkg/paths"
	"github.com/ritzau/projectd/pkg/pubsub"
	"github.com/ritzau/projectd/pkg/service"
	"github.com/ritzau/projectd/pkg/watcher"
)

func main() {
	flags := pflag.NewFlagSet("projectd", pflag.ExitOnError)
	flags.String("workspace", ".", "Path to the workspace root")
	flags.Int("port", 7830, "Port for the inspection server")
	flags.Bool("watch", true, "Watch the workspace for changes")
	flags.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	flags.Bool("single-inferred", false, "Use one shared inferred project")
	flags.String("typings-cache", "", "Global typings cache location")
	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyVerbosity(cfg.Verbosity)

	workspace, err := filepath.Abs(cfg.Workspace)
	if err != nil {
		logging.Fatal("cannot resolve workspace", "error", err)
	}
	workspace = paths.NormalizeSlashes(workspace)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var watchHost watcher.Host
	if cfg.Watch {
		fsHost, err := watcher.NewFSHost(ctx)
		if err != nil {
			logging.Fatal("cannot create file watcher", "error", err)
		}
		watchHost = fsHost
	}

	pub := pubsub.NewSSEPublisher()
	pub.ConfigureTopic("projects", pubsub.TopicConfig{BufferSize: 16, ReplayAll: false})

	svc := service.NewService(service.Options{
		Config:           cfg,
		Watch:            watchHost,
		Pub:              pub,
		CurrentDirectory: workspace,
	})
	defer svc.Shutdown()

	if err := openWorkspace(svc, workspace); err != nil {
		logging.Fatal("cannot open workspace", "workspace", workspace, "error", err)
	}

	server := inspect.NewServer(svc, pub)
	go func() {
		if err := server.Start(cfg.Port); err != nil {
			logging.Fatal("inspection server failed", "error", err)
		}
	}()

	logging.Info("projectd running", "workspace", workspace, "port", cfg.Port)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
	logging.Info("shutting down")
}

// openWorkspace creates the initial project: a configured project when the
// workspace carries a tsconfig.json, otherwise an external project over the
// discovered sources.
func openWorkspace(svc *service.Service, workspace string) error {
	configPath := paths.Join(workspace, "tsconfig.json")
	if _, err := os.Stat(configPath); err == nil {
		_, err := svc.OpenConfiguredProject(configPath)
		return err
	}

	roots, err := discoverSourceFiles(workspace)
	if err != nil {
		return err
	}
	p := svc.OpenExternalProject(workspace, roots, &compiler.Options{AllowJs: true}, "")
	logging.Info("external project opened", "project", p.Name(), "roots", len(roots))
	return nil
}

// discoverSourceFiles walks the workspace for source files, skipping
// node_modules and dot directories.
func discoverSourceFiles(workspace string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(workspace, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if name == "node_modules" || (strings.HasPrefix(name, ".") && path != workspace) {
				return filepath.SkipDir
			}
			return nil
		}
		name := paths.NormalizeSlashes(path)
		if paths.HasTsExtension(name) || paths.HasJsExtension(name) {
			out = append(out, name)
		}
		return nil
	})
	return out, err
}

func applyVerbosity(verbosity string) {
	switch strings.ToLower(verbosity) {
	case "trace":
		logging.SetLevel(logging.LevelTrace)
	case "debug":
		logging.SetLevel(slog.LevelDebug)
	case "warn":
		logging.SetLevel(slog.LevelWarn)
	case "error":
		logging.SetLevel(slog.LevelError)
	case "", "info":
		// default level
	default:
		logging.Warn("unknown verbosity", "verbosity", verbosity)
	}
}
