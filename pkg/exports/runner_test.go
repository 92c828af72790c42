package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hdcn/ledenportaal/pkg/audit"
	"github.com/hdcn/ledenportaal/pkg/authz"
	"github.com/hdcn/ledenportaal/pkg/contextkeys"
	"github.com/hdcn/ledenportaal/pkg/members"
	"github.com/hdcn/ledenportaal/pkg/observability"
)

// fakeMemberStore serves List from an in-memory slice with the same
// region, active and paging semantics as the real store.
type fakeMemberStore struct {
	mu      sync.Mutex
	members []*members.Member
	lists   int
	listErr error
}

func (f *fakeMemberStore) Create(ctx context.Context, m *members.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *m
	f.members = append(f.members, &copied)
	return nil
}

func (f *fakeMemberStore) Get(ctx context.Context, memberNumber string) (*members.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if m.MemberNumber == memberNumber {
			copied := *m
			return &copied, nil
		}
	}
	return nil, members.ErrNotFound
}

func (f *fakeMemberStore) Update(ctx context.Context, memberNumber string, updates *members.UpdateMemberRequest) error {
	return members.ErrNotFound
}

func (f *fakeMemberStore) Delete(ctx context.Context, memberNumber string) error {
	return members.ErrNotFound
}

func (f *fakeMemberStore) List(ctx context.Context, filter members.Filter) ([]*members.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}

	var out []*members.Member
	for _, m := range f.members {
		if !regionInFilter(filter.Regions, m.Region) {
			continue
		}
		if filter.Active != nil && m.Active != *filter.Active {
			continue
		}
		copied := *m
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberNumber < out[j].MemberNumber })

	if filter.Limit > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		end := filter.Offset + filter.Limit
		if end > len(out) {
			end = len(out)
		}
		out = out[filter.Offset:end]
	}
	return out, nil
}

func (f *fakeMemberStore) Count(ctx context.Context, filter members.Filter) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.members), nil
}

func regionInFilter(regions []authz.Region, region string) bool {
	if len(regions) == 0 {
		return true
	}
	for _, r := range regions {
		if r == authz.RegionAll || string(r) == region {
			return true
		}
	}
	return false
}

// fakeSink keeps stored files in memory.
type fakeSink struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func (s *fakeSink) Store(ctx context.Context, fileName string, content io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files == nil {
		s.files = make(map[string][]byte)
	}
	s.files[fileName] = data
	return "fake://" + fileName, nil
}

func (s *fakeSink) Open(ctx context.Context, fileName string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[fileName]
	if !ok {
		return nil, fmt.Errorf("no stored file %q", fileName)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeSink) file(name string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[name]
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// captureLogger records audit events for assertions.
type captureLogger struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (l *captureLogger) Log(ctx context.Context, event *audit.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *captureLogger) Close() error { return nil }

func (l *captureLogger) all() []*audit.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*audit.Event(nil), l.events...)
}

func testContext() (context.Context, *captureLogger) {
	capture := &captureLogger{}
	ctx := audit.WithLogger(context.Background(), capture)
	ctx = contextkeys.WithLogger(ctx, observability.NewLogger(observability.ErrorLevel, io.Discard))
	return ctx, capture
}

func regionalAdmin(region string) *authz.User {
	return &authz.User{
		ID:     "admin-" + region,
		Groups: []string{authz.RegionAdminRole(authz.Region(region))},
	}
}

func secretariat() *authz.User {
	return &authz.User{ID: "secretariaat-1", Groups: []string{authz.RoleSecretariaat}}
}

// seedStore holds four members: 2041 and 2042 active in utrecht, 2043
// inactive in utrecht, 2044 active in limburg.
func seedStore() *fakeMemberStore {
	store := &fakeMemberStore{}
	inactive := exportMember("2043", "utrecht")
	inactive.Active = false
	store.members = []*members.Member{
		exportMember("2041", "utrecht"),
		exportMember("2042", "utrecht"),
		inactive,
		exportMember("2044", "limburg"),
	}
	return store
}

func TestRunner_Run_AddressList(t *testing.T) {
	store := seedStore()
	sink := &fakeSink{}
	runner := NewRunner(store, sink, nil, RunnerOptions{})
	ctx, capture := testContext()

	run, err := runner.Run(ctx, Request{Kind: KindAddressList, Region: "utrecht", User: regionalAdmin("utrecht")})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, 2, run.RowCount)
	assert.Equal(t, authz.Region("utrecht"), run.Region)
	assert.Equal(t, "admin-utrecht", run.RequestedBy)
	assert.Equal(t, "fake://"+run.FileName, run.Location)
	require.NotNil(t, run.CompletedAt)
	assert.False(t, run.CompletedAt.Before(run.StartedAt))

	data := sink.file(run.FileName)
	require.NotNil(t, data)
	assert.Equal(t, int64(len(data)), run.SizeBytes)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "2041", records[1][0])
	assert.Equal(t, "2042", records[2][0])

	events := capture.all()
	require.Len(t, events, 2)
	assert.Equal(t, audit.EventTypeExportStart, events[0].EventType)
	assert.Equal(t, audit.EventTypeExportComplete, events[1].EventType)
	assert.Equal(t, "utrecht", events[1].Region)
	assert.Equal(t, "address-list", events[1].Metadata["kind"])
	assert.Equal(t, "admin-utrecht", events[1].UserID)
}

func TestRunner_Run_FullDumpIncludesInactive(t *testing.T) {
	store := seedStore()
	sink := &fakeSink{}
	runner := NewRunner(store, sink, nil, RunnerOptions{})
	ctx, _ := testContext()

	run, err := runner.Run(ctx, Request{Kind: KindFullDump, Region: "utrecht", User: secretariat()})
	require.NoError(t, err)
	assert.Equal(t, 3, run.RowCount)

	records, err := csv.NewReader(bytes.NewReader(sink.file(run.FileName))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Len(t, records[0], 13)
}

func TestRunner_Run_NationalWildcard(t *testing.T) {
	store := seedStore()
	sink := &fakeSink{}
	runner := NewRunner(store, sink, nil, RunnerOptions{})
	ctx, _ := testContext()

	// The secretariat holds an all-region grant, so it may request the
	// wildcard and gets every region's active members in one file.
	run, err := runner.Run(ctx, Request{Kind: KindAddressList, Region: authz.RegionAll, User: secretariat()})
	require.NoError(t, err)
	assert.Equal(t, 3, run.RowCount)
}

func TestRunner_Run_PermissionDenied(t *testing.T) {
	tests := []struct {
		name string
		user *authz.User
	}{
		{"ordinary member", &authz.User{ID: "lid-1", Groups: []string{authz.RoleLeden}}},
		{"admin of another region", regionalAdmin("limburg")},
		{"no session", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seedStore()
			sink := &fakeSink{}
			runner := NewRunner(store, sink, nil, RunnerOptions{})
			ctx, capture := testContext()

			run, err := runner.Run(ctx, Request{Kind: KindAddressList, Region: "utrecht", User: tt.user})
			require.ErrorIs(t, err, ErrPermissionDenied)
			assert.Nil(t, run)
			assert.Equal(t, 0, sink.count())
			assert.Empty(t, runner.List())

			events := capture.all()
			require.Len(t, events, 1)
			assert.Equal(t, audit.EventTypeExportFailed, events[0].EventType)
			assert.Equal(t, audit.EventStatusFailure, events[0].Status)
		})
	}
}

func TestRunner_Run_Validation(t *testing.T) {
	runner := NewRunner(seedStore(), &fakeSink{}, nil, RunnerOptions{})
	ctx, _ := testContext()

	_, err := runner.Run(ctx, Request{Kind: Kind("spreadsheet"), Region: "utrecht", User: secretariat()})
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = runner.Run(ctx, Request{Kind: KindAddressList, User: secretariat()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region is required")
}

func TestRunner_Run_PagesThroughStore(t *testing.T) {
	store := &fakeMemberStore{}
	for i := 0; i < 5; i++ {
		store.members = append(store.members, exportMember(fmt.Sprintf("30%02d", i), "utrecht"))
	}
	sink := &fakeSink{}
	runner := NewRunner(store, sink, nil, RunnerOptions{PageSize: 2})
	ctx, _ := testContext()

	run, err := runner.Run(ctx, Request{Kind: KindAddressList, Region: "utrecht", User: regionalAdmin("utrecht")})
	require.NoError(t, err)
	assert.Equal(t, 5, run.RowCount)
	assert.Equal(t, 3, store.lists)
}

func TestRunner_Run_StoreError(t *testing.T) {
	store := seedStore()
	store.listErr = errors.New("connection reset")
	runner := NewRunner(store, &fakeSink{}, nil, RunnerOptions{})
	ctx, capture := testContext()

	run, err := runner.Run(ctx, Request{Kind: KindAddressList, Region: "utrecht", User: regionalAdmin("utrecht")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list members")

	require.NotNil(t, run)
	assert.Equal(t, StatusFailed, run.Status)
	assert.NotEmpty(t, run.Error)
	require.NotNil(t, run.CompletedAt)

	// The failed run stays visible for status lookups.
	got, err := runner.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)

	events := capture.all()
	require.Len(t, events, 2)
	assert.Equal(t, audit.EventTypeExportStart, events[0].EventType)
	assert.Equal(t, audit.EventTypeExportFailed, events[1].EventType)
}

func TestRunner_Run_SinkError(t *testing.T) {
	sink := &fakeSink{err: errors.New("bucket unavailable")}
	runner := NewRunner(seedStore(), sink, nil, RunnerOptions{})
	ctx, _ := testContext()

	run, err := runner.Run(ctx, Request{Kind: KindAddressList, Region: "utrecht", User: regionalAdmin("utrecht")})
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Contains(t, run.Error, "bucket unavailable")
}

func TestRunner_RunAll(t *testing.T) {
	store := seedStore()
	sink := &fakeSink{}
	runner := NewRunner(store, sink, nil, RunnerOptions{Workers: 2})
	ctx, capture := testContext()

	regions := []authz.Region{"utrecht", "limburg", "zeeland"}
	runs, err := runner.RunAll(ctx, KindAddressList, secretariat(), regions)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	rowsByRegion := make(map[authz.Region]int)
	for _, run := range runs {
		assert.Equal(t, StatusCompleted, run.Status)
		rowsByRegion[run.Region] = run.RowCount
	}
	assert.Equal(t, map[authz.Region]int{"utrecht": 2, "limburg": 1, "zeeland": 0}, rowsByRegion)

	assert.Equal(t, 3, sink.count())
	assert.Len(t, capture.all(), 6)
	assert.Len(t, runner.List(), 3)
}

func TestRunner_RunAll_SkipsDeniedRegions(t *testing.T) {
	store := seedStore()
	sink := &fakeSink{}
	runner := NewRunner(store, sink, nil, RunnerOptions{})
	ctx, capture := testContext()

	// The wildcard entry is skipped, limburg is not granted; only the
	// admin's own region runs and no denial is recorded.
	regions := []authz.Region{"utrecht", authz.RegionAll, "limburg"}
	runs, err := runner.RunAll(ctx, KindAddressList, regionalAdmin("utrecht"), regions)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, authz.Region("utrecht"), runs[0].Region)
	assert.Len(t, capture.all(), 2)
}

func TestRunner_RunAll_UnknownKind(t *testing.T) {
	runner := NewRunner(seedStore(), &fakeSink{}, nil, RunnerOptions{})
	ctx, _ := testContext()

	_, err := runner.RunAll(ctx, Kind("spreadsheet"), secretariat(), []authz.Region{"utrecht"})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestRunner_GetAndList(t *testing.T) {
	runner := NewRunner(seedStore(), &fakeSink{}, nil, RunnerOptions{})
	ctx, _ := testContext()

	first, err := runner.Run(ctx, Request{Kind: KindAddressList, Region: "utrecht", User: secretariat()})
	require.NoError(t, err)
	second, err := runner.Run(ctx, Request{Kind: KindFullDump, Region: "limburg", User: secretariat()})
	require.NoError(t, err)

	got, err := runner.Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, KindAddressList, got.Kind)

	_, err = runner.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	list := runner.List()
	require.Len(t, list, 2)
	ids := []string{list[0].ID, list[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
}

func TestRunner_Open(t *testing.T) {
	store := seedStore()
	sink := &fakeSink{}
	runner := NewRunner(store, sink, nil, RunnerOptions{})
	ctx, _ := testContext()

	run, err := runner.Run(ctx, Request{Kind: KindAddressList, Region: "utrecht", User: regionalAdmin("utrecht")})
	require.NoError(t, err)

	got, reader, err := runner.Open(ctx, run.ID)
	require.NoError(t, err)
	defer reader.Close()
	assert.Equal(t, run.ID, got.ID)

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, sink.file(run.FileName), data)

	_, _, err = runner.Open(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunner_Open_NotReady(t *testing.T) {
	store := seedStore()
	store.listErr = errors.New("connection reset")
	runner := NewRunner(store, &fakeSink{}, nil, RunnerOptions{})
	ctx, _ := testContext()

	run, err := runner.Run(ctx, Request{Kind: KindAddressList, Region: "utrecht", User: regionalAdmin("utrecht")})
	require.Error(t, err)
	require.NotNil(t, run)

	got, reader, err := runner.Open(ctx, run.ID)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Nil(t, reader)
	require.NotNil(t, got)
	assert.Equal(t, StatusFailed, got.Status)
}

func TestRunner_RegistryEviction(t *testing.T) {
	runner := NewRunner(&fakeMemberStore{}, &fakeSink{}, nil, RunnerOptions{})
	ctx, _ := testContext()

	for i := 0; i < maxRuns+5; i++ {
		_, err := runner.Run(ctx, Request{Kind: KindAddressList, Region: "utrecht", User: secretariat()})
		require.NoError(t, err)
	}
	assert.Len(t, runner.List(), maxRuns)
}

func TestExportFileName(t *testing.T) {
	ts := time.Date(2026, 3, 7, 14, 30, 0, 0, time.UTC)

	name := exportFileName(KindAddressList, "utrecht", "0a1b2c3d-4e5f-6789-abcd-ef0123456789", ts)
	assert.Equal(t, "address-list-utrecht-2026-03-07-0a1b2c3d.csv", name)

	assert.Equal(t, "full-dump-all-2026-03-07-abc.csv", exportFileName(KindFullDump, authz.RegionAll, "abc", ts))
}
