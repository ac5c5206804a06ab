package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/objfs/internal/logger"
	"github.com/marmos91/objfs/pkg/config"
	"github.com/marmos91/objfs/pkg/fs"
	"github.com/marmos91/objfs/pkg/metrics"
	metricsProm "github.com/marmos91/objfs/pkg/metrics/prometheus"
	"github.com/marmos91/objfs/pkg/objstore"
	"github.com/marmos91/objfs/pkg/sys"
)

// seedInitialStructure populates a freshly formatted namespace with a small
// directory tree so a new deployment has something to look at.
func seedInitialStructure(ctx context.Context, mounted *sys.FS) error {
	if err := mounted.Mkdir(ctx, "/docs", 0o755, 0); err != nil {
		return fmt.Errorf("failed to create docs directory: %w", err)
	}

	textFiles := []struct {
		path    string
		content string
	}{
		{"/readme.txt", "Welcome to objfs.\n"},
		{"/docs/getting-started.txt", "Mount, open, read, write.\n"},
	}

	for _, txt := range textFiles {
		h, err := mounted.Open(ctx, txt.path, fs.KindFile,
			fs.OpenCreate|fs.OpenWrite, 0o644, nil)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", txt.path, err)
		}
		if _, err := mounted.Write(ctx, h, 0, []byte(txt.content)); err != nil {
			_ = mounted.Close(ctx, h)
			return fmt.Errorf("failed to write %s: %w", txt.path, err)
		}
		if err := mounted.Close(ctx, h); err != nil {
			return fmt.Errorf("failed to close %s: %w", txt.path, err)
		}
	}

	if err := mounted.Symlink(ctx, "/readme.txt", "/docs/readme"); err != nil {
		return fmt.Errorf("failed to create symlink: %w", err)
	}

	return nil
}

// serveMetrics exposes the Prometheus registry over HTTP.
func serveMetrics(listen string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Metrics endpoint listening on %s", listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics endpoint error: %v", err)
		}
	}()

	return srv
}

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	logLevel := flag.String("log-level", "", "Log level override (DEBUG, INFO, WARN, ERROR)")
	format := flag.Bool("format", false, "Format a new namespace and print its root identity")
	rootArg := flag.String("root", "", "Root object identity of an existing namespace")
	seed := flag.Bool("seed", false, "Populate a freshly formatted namespace with sample files")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	logger.SetLevel(cfg.Logging.Level)

	fmt.Println("objfs - POSIX namespace over an object store")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := config.CreateObjectStore(ctx, &cfg.Store)
	if err != nil {
		log.Fatalf("Failed to create object store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close store: %v", err)
		}
	}()

	conn := objstore.Connection{Pool: cfg.Store.Pool, Container: cfg.Store.Container}

	var rootID objstore.ObjectID
	switch {
	case *format:
		rootID, err = fs.Format(ctx, store, 0o755)
		if err != nil {
			log.Fatalf("Failed to format namespace: %v", err)
		}
		fmt.Printf("Formatted namespace, root identity: %s\n", rootID)
	case *rootArg != "":
		rootID, err = uuid.Parse(*rootArg)
		if err != nil {
			log.Fatalf("Invalid root identity %q: %v", *rootArg, err)
		}
	default:
		log.Fatalf("Either -format or -root is required")
	}

	var recorder metrics.FSMetrics
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		recorder = metricsProm.NewFSMetrics(reg)
		metricsSrv = serveMetrics(cfg.Metrics.Listen, reg)
	}

	uid, gid := mountIdentity(cfg)
	mounted, err := sys.Mount(ctx, store, conn, rootID, sys.MountOptions{
		ReadOnly: cfg.Mount.ReadOnly,
		Flags:    mountSysFlags(cfg),
		UID:      uid,
		GID:      gid,
		Metrics:  recorder,
	})
	if err != nil {
		log.Fatalf("Failed to mount namespace: %v", err)
	}

	if *seed {
		if err := seedInitialStructure(ctx, mounted); err != nil {
			log.Fatalf("Failed to seed namespace: %v", err)
		}
		logger.Info("Initial file structure created")
	}

	logger.Info("Namespace mounted. Press Ctrl+C to unmount.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Unmounting...")
	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		shutdownCancel()
	}
	if err := mounted.Umount(ctx); err != nil {
		logger.Error("Unmount failed: %v", err)
	}
}

// mountIdentity resolves the configured identity, falling back to the
// current process credentials for the -1 sentinel.
func mountIdentity(cfg *config.Config) (uint32, uint32) {
	uid := cfg.Mount.UID
	gid := cfg.Mount.GID
	if uid < 0 {
		uid = int64(os.Getuid())
	}
	if gid < 0 {
		gid = int64(os.Getgid())
	}
	return uint32(uid), uint32(gid)
}

// mountSysFlags translates config switches to facade flags.
func mountSysFlags(cfg *config.Config) sys.SysFlags {
	var flags sys.SysFlags
	if cfg.Mount.NoCache {
		flags |= sys.NoCache
	}
	if cfg.Mount.NoLock {
		flags |= sys.NoLock
	}
	return flags
}
