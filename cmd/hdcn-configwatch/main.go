package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/hdcn/ledenportaal/pkg/audit"
	"github.com/hdcn/ledenportaal/pkg/config"
	"github.com/hdcn/ledenportaal/pkg/storage"
)

var (
	validateOnly = flag.Bool("validate", false, "validate the role table once and exit")
	debounce     = flag.Duration("debounce", 500*time.Millisecond, "delay before revalidating after a change")
)

// The portal reads the role table once at boot, so this watcher cannot
// apply changes. What it can do is catch a broken table the moment it
// lands, before a restart turns it into an outage.
func main() {
	flag.Parse()
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := setupLogger(cfg.Observability.LogLevel.String())

	if cfg.RoleTablePath == "" {
		logger.Fatal("HDCN_ROLE_TABLE is not set, nothing to watch")
	}

	if *validateOnly {
		table, tableVersion, err := config.LoadRoleTable(cfg.RoleTablePath)
		if err != nil {
			logger.Fatalf("Role table %s is invalid: %v", cfg.RoleTablePath, err)
		}
		fmt.Printf("role table %q valid, %d roles\n", tableVersion, len(table.Roles()))
		return
	}

	// Postgres is only dialed when the audit sink actually writes there.
	var db *sql.DB
	if cfg.Audit.Sink == "db" || cfg.Audit.Sink == "multi" {
		cm, err := storage.NewConnectionManager(cfg.Storage)
		if err != nil {
			logger.Fatalf("Failed to connect to postgres: %v", err)
		}
		defer cm.Close()
		db = cm.Primary()
	}
	auditLogger, err := config.NewAuditLogger(cfg.Audit, db)
	if err != nil {
		logger.Fatalf("Failed to initialize audit logging: %v", err)
	}
	if auditLogger != nil {
		defer auditLogger.Close()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file. Editors and ConfigMap updates
	// replace the file, and a watch on the old inode goes quiet.
	dir := filepath.Dir(cfg.RoleTablePath)
	base := filepath.Base(cfg.RoleTablePath)
	if err := watcher.Add(dir); err != nil {
		logger.Fatalf("Failed to watch %s: %v", dir, err)
	}

	ctx := context.Background()

	// Initial pass so a table that is already broken gets reported
	// without waiting for a change.
	revalidate(ctx, cfg.RoleTablePath, logger, auditLogger)

	logger.Infof("Watching %s for role table changes", cfg.RoleTablePath)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var pending *time.Timer
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			// Kubernetes swaps the ..data symlink when a ConfigMap updates.
			if name != base && name != "..data" {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(*debounce, func() {
				revalidate(ctx, cfg.RoleTablePath, logger, auditLogger)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.WithError(err).Error("Watcher error")
		case <-sigChan:
			logger.Info("Shutting down")
			if pending != nil {
				pending.Stop()
			}
			return
		}
	}
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

// revalidate parses the role table and reports the outcome. Validation
// failures are loud: the next portal restart would refuse to boot.
func revalidate(ctx context.Context, path string, logger *logrus.Logger, auditLogger audit.Logger) {
	table, tableVersion, err := config.LoadRoleTable(path)
	if err != nil {
		logger.WithError(err).Error("Role table change is invalid, portal restarts will fail")
		recordReload(ctx, auditLogger, fmt.Sprintf("role table at %s failed validation", path), err)
		return
	}

	logger.Infof("Role table %q valid, %d roles. Restart portal instances to apply.", tableVersion, len(table.Roles()))
	recordReload(ctx, auditLogger, fmt.Sprintf("role table %q revalidated, %d roles", tableVersion, len(table.Roles())), nil)
}

func recordReload(ctx context.Context, auditLogger audit.Logger, message string, err error) {
	if auditLogger == nil {
		return
	}
	_ = auditLogger.Log(ctx, audit.NewConfigEvent(audit.EventTypeConfigRoleTableReload, message, err))
}
