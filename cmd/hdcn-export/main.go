package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/hdcn/ledenportaal/pkg/audit"
	"github.com/hdcn/ledenportaal/pkg/authz"
	"github.com/hdcn/ledenportaal/pkg/config"
	"github.com/hdcn/ledenportaal/pkg/contextkeys"
	"github.com/hdcn/ledenportaal/pkg/exports"
	"github.com/hdcn/ledenportaal/pkg/members"
	"github.com/hdcn/ledenportaal/pkg/observability"
	"github.com/hdcn/ledenportaal/pkg/parameters"
	"github.com/hdcn/ledenportaal/pkg/storage"
)

var (
	runOnce    = flag.Bool("run-once", false, "run a single export pass and exit")
	exportKind = flag.String("kind", "address-list", "what to export: address-list, full-dump or both")
	oneRegion  = flag.String("region", "", "restrict the pass to a single region")
)

func main() {
	flag.Parse()

	switch *exportKind {
	case "address-list", "full-dump", "both":
	default:
		log.Fatalf("Unknown export kind %q, want address-list, full-dump or both", *exportKind)
	}

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	table, tableVersion, err := config.LoadRoleTable(cfg.RoleTablePath)
	if err != nil {
		log.Fatalf("Failed to load role table: %v", err)
	}
	evaluator := authz.New(table)

	cm, err := storage.NewConnectionManager(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer cm.Close()

	memberStore, err := members.NewPostgresStore(cm.Primary())
	if err != nil {
		log.Fatalf("Failed to initialize member store: %v", err)
	}
	parameterStore, err := parameters.NewPostgresStore(cm.Primary())
	if err != nil {
		log.Fatalf("Failed to initialize parameter store: %v", err)
	}

	auditLogger, err := config.NewAuditLogger(cfg.Audit, cm.Primary())
	if err != nil {
		log.Fatalf("Failed to initialize audit logging: %v", err)
	}
	if auditLogger != nil {
		defer auditLogger.Close()
	}

	// The runner reports through context loggers, so seed both here.
	ctx := contextkeys.WithLogger(context.Background(), logger)
	if auditLogger != nil {
		ctx = audit.WithLogger(ctx, auditLogger)
	}

	sink, err := config.NewExportSink(ctx, cfg, parameterStore)
	if err != nil {
		log.Fatalf("Failed to initialize export sink: %v", err)
	}

	w := &worker{
		runner: exports.NewRunner(memberStore, sink, evaluator, exports.RunnerOptions{
			Workers: cfg.Export.Concurrency,
		}),
		params: parameterStore,
		logger: logger,
		kind:   *exportKind,
		region: *oneRegion,
	}

	logger.Infof("Export worker: role table %q, kind %s, sink %s", tableVersion, w.kind, cfg.Export.Sink)

	if *runOnce {
		if err := w.pass(ctx); err != nil {
			log.Fatalf("Export pass failed: %v", err)
		}
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Export.Schedule, func() {
		if err := w.pass(ctx); err != nil {
			logger.WithError(err).Error("scheduled export pass failed")
		}
	}); err != nil {
		log.Fatalf("Invalid export schedule %q: %v", cfg.Export.Schedule, err)
	}
	c.Start()
	logger.Infof("Export worker scheduled: %q", cfg.Export.Schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down, waiting for running jobs to finish")
	stopCtx := c.Stop()
	<-stopCtx.Done()
}

type worker struct {
	runner *exports.Runner
	params parameters.Store
	logger *observability.Logger
	kind   string
	region string
}

// pass runs one export cycle. Address lists are produced per region so
// each committee gets its own file; the full dump is a single national
// archive.
func (w *worker) pass(ctx context.Context) error {
	// The worker runs under a service identity holding the secretariat
	// role, which carries the export grant for every region.
	principal := &authz.User{
		ID:     "export-worker",
		Email:  "export-worker@hdcn.nl",
		Groups: []string{authz.RoleSecretariaat},
	}

	var firstErr error

	if w.kind == "address-list" || w.kind == "both" {
		regions := w.regions(ctx)
		runs, err := w.runner.RunAll(ctx, exports.KindAddressList, principal, regions)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		w.logger.Infof("Address list pass finished: %d of %d regions", len(runs), len(regions))
	}

	if w.kind == "full-dump" || w.kind == "both" {
		region := authz.RegionAll
		if w.region != "" {
			region = authz.Region(w.region)
		}
		run, err := w.runner.Run(ctx, exports.Request{
			Kind:   exports.KindFullDump,
			Region: region,
			User:   principal,
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if run != nil && run.Status == exports.StatusCompleted {
			w.logger.Infof("Full dump finished: %d rows in %s", run.RowCount, run.Location)
		}
	}

	return firstErr
}

// regions resolves the region list for the pass: the -region flag when
// set, the configured region parameters otherwise, the built-in list as
// a last resort.
func (w *worker) regions(ctx context.Context) []authz.Region {
	if w.region != "" {
		return []authz.Region{authz.Region(w.region)}
	}

	names, err := w.params.Regions(ctx)
	if err != nil || len(names) == 0 {
		if err != nil {
			w.logger.Warnf("Falling back to built-in regions: %v", err)
		}
		return authz.DefaultRegions()
	}

	out := make([]authz.Region, 0, len(names))
	for _, name := range names {
		out = append(out, authz.Region(name))
	}
	return out
}
