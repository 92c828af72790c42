package exports

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hdcn/ledenportaal/pkg/audit"
	"github.com/hdcn/ledenportaal/pkg/authz"
	"github.com/hdcn/ledenportaal/pkg/members"
	"github.com/hdcn/ledenportaal/pkg/observability"
)

const (
	defaultWorkers  = 4
	defaultPageSize = 500

	// maxRuns bounds the in-memory run registry. The scheduled worker
	// produces a file per region per night, so the oldest entries age
	// out long after anyone asks about them.
	maxRuns = 200
)

// RunnerOptions tune a Runner. Zero values take the defaults.
type RunnerOptions struct {
	// Workers bounds concurrent per-region runs in RunAll.
	Workers int

	// PageSize is how many members are fetched per store page.
	PageSize int
}

// Runner produces extract files and remembers recent runs for status
// lookups. Permission checks go through the evaluator and audit events
// through the context logger, so the same Runner serves both the API
// and the scheduled worker.
type Runner struct {
	store     members.Store
	sink      Sink
	evaluator *authz.Evaluator
	workers   int
	pageSize  int

	mu   sync.Mutex
	runs map[string]*Export
}

// NewRunner creates a Runner reading from store and writing to sink. A
// nil evaluator falls back to the default permission table.
func NewRunner(store members.Store, sink Sink, evaluator *authz.Evaluator, opts RunnerOptions) *Runner {
	if evaluator == nil {
		evaluator = authz.New(nil)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &Runner{
		store:     store,
		sink:      sink,
		evaluator: evaluator,
		workers:   workers,
		pageSize:  pageSize,
		runs:      make(map[string]*Export),
	}
}

// Run executes a single export and blocks until it finishes. The run is
// denied unless req.User may export members in req.Region. Region may
// be the wildcard for a national extract, which requires a grant scoped
// to all regions.
func (r *Runner) Run(ctx context.Context, req Request) (*Export, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}
	if req.Region == "" {
		return nil, fmt.Errorf("export region is required")
	}

	var userID string
	if req.User != nil {
		userID = req.User.ID
	}

	if !r.evaluator.Check(req.User, authz.ResourceMembers, authz.ActionExport, req.Region) {
		recordExportEvent(ctx, audit.EventTypeExportFailed, req, userID, "export denied", ErrPermissionDenied)
		return nil, fmt.Errorf("%s export for region %s: %w", req.Kind, req.Region, ErrPermissionDenied)
	}

	now := time.Now().UTC()
	run := &Export{
		ID:          uuid.New().String(),
		Kind:        req.Kind,
		Region:      req.Region,
		Status:      StatusRunning,
		RequestedBy: userID,
		StartedAt:   now,
	}
	run.FileName = exportFileName(req.Kind, req.Region, run.ID, now)
	r.register(run)

	logger := observability.GetLogger(ctx).WithFields(map[string]interface{}{
		"export_id": run.ID,
		"kind":      string(req.Kind),
		"region":    string(req.Region),
	})
	logger.Info("export started")
	recordExportEvent(ctx, audit.EventTypeExportStart, req, userID, "export started", nil)

	result, err := r.generate(ctx, req, run.FileName)

	completed := time.Now().UTC()
	r.mu.Lock()
	run.CompletedAt = &completed
	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
	} else {
		run.Status = StatusCompleted
		run.Location = result.location
		run.RowCount = result.rows
		run.SizeBytes = result.size
	}
	snapshot := *run
	r.mu.Unlock()

	if err != nil {
		logger.WithError(err).Error("export failed")
		recordExportEvent(ctx, audit.EventTypeExportFailed, req, userID, "export failed", err)
		return &snapshot, err
	}

	logger.WithField("rows", result.rows).Info("export completed")
	recordExportEvent(ctx, audit.EventTypeExportComplete, req, userID,
		fmt.Sprintf("exported %d rows to %s", result.rows, result.location), nil)
	return &snapshot, nil
}

// RunAll produces one extract per given region, bounded by the worker
// limit. Regions the user may not export are skipped rather than
// failed, so a regional admin can still kick off the regions they do
// hold. Partial results are returned alongside the first error.
//
// Callers pass concrete regions (typically the configured region
// parameters). The wildcard is skipped here; use Run for a single
// national extract.
func (r *Runner) RunAll(ctx context.Context, kind Kind, user *authz.User, regions []authz.Region) ([]*Export, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	allowed := make([]authz.Region, 0, len(regions))
	for _, region := range regions {
		if region == authz.RegionAll {
			continue
		}
		if r.evaluator.Check(user, authz.ResourceMembers, authz.ActionExport, region) {
			allowed = append(allowed, region)
		}
	}

	// Each goroutine writes only its own slot.
	results := make([]*Export, len(allowed))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.workers)

	for i, region := range allowed {
		i, region := i, region
		eg.Go(func() error {
			run, err := r.Run(ctx, Request{Kind: kind, Region: region, User: user})
			if run != nil {
				results[i] = run
			}
			return err
		})
	}

	err := eg.Wait()

	out := make([]*Export, 0, len(results))
	for _, run := range results {
		if run != nil {
			out = append(out, run)
		}
	}
	return out, err
}

// Get returns a copy of the run with the given ID.
func (r *Runner) Get(id string) (*Export, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("export %s: %w", id, ErrNotFound)
	}
	snapshot := *run
	return &snapshot, nil
}

// Open streams a completed run's file back from the sink. The caller
// closes the reader.
func (r *Runner) Open(ctx context.Context, id string) (*Export, io.ReadCloser, error) {
	run, err := r.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if run.Status != StatusCompleted {
		return run, nil, fmt.Errorf("export %s is %s: %w", id, run.Status, ErrNotReady)
	}

	reader, err := r.sink.Open(ctx, run.FileName)
	if err != nil {
		return run, nil, err
	}
	return run, reader, nil
}

// List returns copies of all remembered runs, newest first.
func (r *Runner) List() []*Export {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Export, 0, len(r.runs))
	for _, run := range r.runs {
		snapshot := *run
		out = append(out, &snapshot)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// register adds a run to the registry, evicting the oldest entry when
// the registry is full.
func (r *Runner) register(run *Export) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[run.ID] = run
	if len(r.runs) <= maxRuns {
		return
	}

	var oldest *Export
	for _, candidate := range r.runs {
		if oldest == nil || candidate.StartedAt.Before(oldest.StartedAt) {
			oldest = candidate
		}
	}
	delete(r.runs, oldest.ID)
}

type generateResult struct {
	rows     int
	size     int64
	location string
}

// generate pages the member store into a CSV buffer and hands the
// finished file to the sink. Address lists only carry active members.
func (r *Runner) generate(ctx context.Context, req Request, fileName string) (generateResult, error) {
	var buf bytes.Buffer
	cw, err := newCSVWriter(req.Kind, &buf)
	if err != nil {
		return generateResult{}, err
	}

	filter := members.Filter{
		Regions: []authz.Region{req.Region},
		Limit:   r.pageSize,
	}
	if req.Kind == KindAddressList {
		active := true
		filter.Active = &active
	}

	for {
		page, err := r.store.List(ctx, filter)
		if err != nil {
			return generateResult{}, fmt.Errorf("failed to list members: %w", err)
		}
		for _, m := range page {
			if err := cw.writeMember(m); err != nil {
				return generateResult{}, err
			}
		}
		if len(page) < r.pageSize {
			break
		}
		filter.Offset += r.pageSize
	}

	if err := cw.flush(); err != nil {
		return generateResult{}, err
	}

	// The sink drains the buffer, so take the size first.
	size := int64(buf.Len())
	location, err := r.sink.Store(ctx, fileName, &buf)
	if err != nil {
		return generateResult{}, err
	}

	return generateResult{rows: cw.rows, size: size, location: location}, nil
}

// exportFileName builds "<kind>-<region>-<date>-<short id>.csv" so
// files sort by kind, region and day in the bucket listing.
func exportFileName(kind Kind, region authz.Region, id string, t time.Time) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s-%s-%s-%s.csv", kind, region, t.Format("2006-01-02"), short)
}

func recordExportEvent(ctx context.Context, eventType audit.EventType, req Request, userID, message string, err error) {
	_ = audit.FromContext(ctx).Log(ctx, audit.NewExportEvent(eventType, userID, string(req.Kind), string(req.Region), message, err))
}
