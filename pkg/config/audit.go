package config

import (
	"database/sql"
	"fmt"

	"github.com/hdcn/ledenportaal/pkg/audit"
)

// NewAuditLogger assembles the audit backend selected by cfg.Sink. The
// "noop" sink returns a nil Logger; callers skip audit wiring entirely
// in that case. db may be nil when the sink does not write to the
// database.
func NewAuditLogger(cfg AuditConfig, db *sql.DB) (audit.Logger, error) {
	fileConfig := audit.FileLoggerConfig{
		Path:        cfg.FilePath,
		MaxSize:     int64(cfg.MaxSizeMB) * 1024 * 1024,
		MaxBackups:  cfg.MaxBackups,
		SyncOnWrite: cfg.FlushOnEach,
	}

	switch cfg.Sink {
	case "file":
		return audit.NewFileLogger(fileConfig)
	case "db":
		if db == nil {
			return nil, fmt.Errorf("audit sink %q requires a database connection", cfg.Sink)
		}
		return audit.NewDBLogger(db)
	case "multi":
		if db == nil {
			return nil, fmt.Errorf("audit sink %q requires a database connection", cfg.Sink)
		}
		fileLogger, err := audit.NewFileLogger(fileConfig)
		if err != nil {
			return nil, err
		}
		dbLogger, err := audit.NewDBLogger(db)
		if err != nil {
			return nil, err
		}
		return audit.NewMultiLogger(fileLogger, dbLogger), nil
	case "noop":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown audit sink %q", cfg.Sink)
	}
}
