package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"clipd/internal/blob"
	"clipd/internal/clipboard"
	"clipd/internal/config"
	"clipd/internal/extract"
	"clipd/internal/server"
	"clipd/internal/service"
	"clipd/internal/storage"
	"clipd/internal/storage/sqlite"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:          "clipd",
		Short:        "Clipboard history daemon",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ~/.clipd/config.json)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(runCmd(), stopCmd(), statusCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, string, error) {
	baseDir, err := config.BaseDir()
	if err != nil {
		return nil, "", err
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create base directory: %w", err)
	}

	path := configPath
	if path == "" {
		path = filepath.Join(baseDir, "config.json")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(baseDir, "clipd.db")
	}
	if cfg.BlobPath == "" {
		cfg.BlobPath = baseDir
	}
	return cfg, baseDir, nil
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)

			cfg, baseDir, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := sqlite.New(storage.Config{DBPath: cfg.DBPath})
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer store.Close()

			blobs, err := blob.New(cfg.BlobPath)
			if err != nil {
				return fmt.Errorf("failed to initialize blob store: %w", err)
			}

			monitor, err := clipboard.NewMonitor(time.Duration(cfg.PollIntervalMS) * time.Millisecond)
			if err != nil {
				return fmt.Errorf("failed to initialize clipboard monitor: %w", err)
			}

			pid, err := server.NewPIDFile(baseDir)
			if err != nil {
				return err
			}

			svc := service.New(service.Options{
				Monitor:       monitor,
				Store:         store,
				Blobs:         blobs,
				Extractor:     extract.New(blobs),
				Presence:      pid,
				Logger:        logger,
				HistoryLimit:  cfg.HistoryLimit,
				AutoClearDays: cfg.AutoClearDays,
				ReapInterval:  time.Duration(cfg.ReapIntervalMin) * time.Minute,
			})

			if cfg.ServiceEnabled {
				if err := svc.Start(); err != nil {
					return fmt.Errorf("failed to start clipboard service: %w", err)
				}
			} else {
				logger.Info("monitoring disabled by config, serving history only")
			}

			srv := server.New(svc, server.Config{Port: cfg.APIPort}, logger)
			if err := srv.Start(); err != nil {
				svc.Stop()
				return err
			}

			logger.Info("clipd started", "db", cfg.DBPath, "blobs", cfg.BlobPath)

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			<-sigChan

			logger.Info("shutting down")
			if err := srv.Stop(); err != nil {
				logger.Error("error stopping server", "error", err)
			}
			if err := svc.Stop(); err != nil {
				logger.Error("error stopping service", "error", err)
			}
			return nil
		},
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := daemonPID()
			if err != nil {
				return err
			}
			if pid == 0 {
				fmt.Println("clipd is not running")
				return nil
			}
			if err := server.Terminate(pid); err != nil {
				return err
			}
			fmt.Printf("sent stop signal to pid %d\n", pid)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the daemon is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := daemonPID()
			if err != nil {
				return err
			}
			if pid == 0 {
				fmt.Println("clipd is not running")
				return nil
			}
			fmt.Printf("clipd is running (pid %d)\n", pid)
			return nil
		},
	}
}

// daemonPID resolves the live daemon's pid, returning 0 when none is
// running. A stale pid file (process gone) also counts as not running.
func daemonPID() (int, error) {
	baseDir, err := config.BaseDir()
	if err != nil {
		return 0, err
	}
	pidFile, err := server.NewPIDFile(baseDir)
	if err != nil {
		return 0, err
	}
	pid, err := pidFile.Read()
	if err != nil {
		return 0, err
	}
	if pid == 0 || !server.IsRunning(pid) {
		return 0, nil
	}
	return pid, nil
}
