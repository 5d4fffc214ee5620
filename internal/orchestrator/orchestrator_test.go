package orchestrator_test

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/onenotify/onenotify/internal/config"
	"github.com/onenotify/onenotify/internal/details"
	"github.com/onenotify/onenotify/internal/extraction"
	"github.com/onenotify/onenotify/internal/orchestrator"
	"github.com/onenotify/onenotify/internal/portal"
	"github.com/onenotify/onenotify/internal/runs"
	"github.com/onenotify/onenotify/internal/session"
	"github.com/onenotify/onenotify/internal/tasks"
)

type fakeProcess struct{ terminated bool }

func (p *fakeProcess) Terminate() error { p.terminated = true; return nil }
func (p *fakeProcess) Alive() bool      { return !p.terminated }

type fakeBrowser struct{ closed bool }

func (b *fakeBrowser) NewPage() (portal.Page, error) { return &fakePage{}, nil }
func (b *fakeBrowser) Close() error                  { b.closed = true; return nil }
func (b *fakeBrowser) IsConnected() bool             { return !b.closed }

type fakePage struct{ closed bool }

func (p *fakePage) Goto(string, time.Duration) error                       { return nil }
func (p *fakePage) GoBack() error                                          { return nil }
func (p *fakePage) URL() string                                            { return "" }
func (p *fakePage) WaitForLoadState(portal.LoadState, time.Duration) error { return nil }
func (p *fakePage) Locator(string) portal.Locator                          { return &fakeLocator{} }
func (p *fakePage) ExpectDownload(func() error, time.Duration) (portal.Download, error) {
	return nil, portal.ErrTimeout
}
func (p *fakePage) Close() error   { p.closed = true; return nil }
func (p *fakePage) IsClosed() bool { return p.closed }

type fakeLocator struct{}

func (l *fakeLocator) Locator(string) portal.Locator  { return l }
func (l *fakeLocator) First() portal.Locator          { return l }
func (l *fakeLocator) Nth(int) portal.Locator         { return l }
func (l *fakeLocator) All() ([]portal.Locator, error) { return nil, nil }
func (l *fakeLocator) Count() (int, error)            { return 0, nil }
func (l *fakeLocator) Click() error                   { return nil }
func (l *fakeLocator) Check() error                   { return nil }
func (l *fakeLocator) IsChecked() (bool, error)       { return false, nil }
func (l *fakeLocator) InnerText() (string, error)     { return "", nil }
func (l *fakeLocator) Attribute(string) (string, error) {
	return "", errors.New("absent")
}
func (l *fakeLocator) WaitFor(portal.WaitState, time.Duration) error { return portal.ErrTimeout }

type fakeFlow struct {
	logins  int
	handles []*portal.Handle
}

func (f *fakeFlow) Login(context.Context) (*portal.Handle, error) {
	f.logins++
	h := &portal.Handle{
		Browser: &fakeBrowser{},
		Page:    &fakePage{},
		Process: &fakeProcess{},
	}
	f.handles = append(f.handles, h)
	return h, nil
}

type failingFlow struct{ logins int }

func (f *failingFlow) Login(context.Context) (*portal.Handle, error) {
	f.logins++
	return nil, errors.New("sso window never appeared")
}

// fakeStore scripts CountPending responses and returns canned claim batches.
type fakeStore struct {
	tasks.System
	counts    []int
	calls     int
	groups    []tasks.TaskGroup
	claims    int
	processed []string
}

func (s *fakeStore) CountPending(context.Context) (int, error) {
	i := s.calls
	s.calls++
	if i >= len(s.counts) {
		i = len(s.counts) - 1
	}
	return s.counts[i], nil
}

func (s *fakeStore) ClaimBatch(context.Context, int) ([]tasks.TaskGroup, error) {
	s.claims++
	return s.groups, nil
}

func (s *fakeStore) ResetStale(context.Context) (int, error) { return 0, nil }

func (s *fakeStore) ProcessedNPJs(context.Context) ([]string, error) {
	return s.processed, nil
}

type fakeRunLog struct {
	saved []*runs.Summary
}

func (f *fakeRunLog) Save(_ context.Context, s *runs.Summary) error {
	f.saved = append(f.saved, s)
	return nil
}

func (f *fakeRunLog) Recent(context.Context, int) ([]runs.Summary, error) { return nil, nil }

// fakeProcessStage scripts per-batch outcomes.
type batchResult struct {
	stats details.BatchStats
	err   error
}

type fakeProcessStage struct {
	results []batchResult
	calls   int
}

func (f *fakeProcessStage) ProcessBatch(_ context.Context, sess *session.Session, _ []tasks.TaskGroup) (details.BatchStats, *session.Session, error) {
	i := f.calls
	f.calls++
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i].stats, sess, f.results[i].err
}

type fakeExtractStage struct {
	stats extraction.Stats
	err   error
	pages []portal.Page
	acked []string
}

func (f *fakeExtractStage) Run(_ context.Context, page portal.Page) (extraction.Stats, error) {
	f.pages = append(f.pages, page)
	return f.stats, f.err
}

func (f *fakeExtractStage) AcknowledgeProcessed(_ context.Context, page portal.Page, npjs []string) (int, error) {
	f.pages = append(f.pages, page)
	f.acked = npjs
	return len(npjs), nil
}

func sessionManager(flow portal.LoginFlow, attempts int) *session.Manager {
	cfg := &config.SessionConfig{
		Budget:        "25m",
		LoginAttempts: attempts,
		LoginBackoff:  "0s",
		SettleDelay:   "0s",
		LogoutTimeout: "0s",
	}
	return session.New(flow, cfg, slog.New(slog.DiscardHandler))
}

func newOrchestrator(flow portal.LoginFlow, extract *fakeExtractStage, process *fakeProcessStage, store *fakeStore, runLog *fakeRunLog) *orchestrator.Orchestrator {
	return orchestratorWithManager(sessionManager(flow, 1), extract, process, store, runLog)
}

func orchestratorWithManager(m *session.Manager, extract *fakeExtractStage, process *fakeProcessStage, store *fakeStore, runLog *fakeRunLog) *orchestrator.Orchestrator {
	proc := &config.ProcessingConfig{
		BatchSize:       20,
		MaxAttempts:     3,
		WindowDays:      3,
		DownloadTimeout: "60s",
	}
	return orchestrator.NewWithMigrator(m, extract, process, store, runLog,
		nil, proc, slog.New(slog.DiscardHandler),
		func(*sql.DB) error { return nil })
}

func group(npj string) tasks.TaskGroup {
	return tasks.TaskGroup{
		NPJ:              npj,
		NotificationDate: time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestExtractionCycleClosesSession(t *testing.T) {
	flow := &fakeFlow{}
	extract := &fakeExtractStage{stats: extraction.Stats{Saved: 4, Acknowledged: 4}}
	o := newOrchestrator(flow, extract, &fakeProcessStage{}, &fakeStore{counts: []int{0}}, &fakeRunLog{})

	stats, err := o.ExtractionCycle(context.Background())
	if err != nil {
		t.Fatalf("ExtractionCycle error: %v", err)
	}
	if stats.Saved != 4 {
		t.Errorf("Saved = %d, want 4", stats.Saved)
	}
	if len(extract.pages) != 1 || extract.pages[0] == nil {
		t.Fatal("extraction stage did not receive a page")
	}

	proc := flow.handles[0].Process.(*fakeProcess)
	if !proc.terminated {
		t.Error("extraction session was not closed")
	}
}

func TestProcessingLoopDrainsQueue(t *testing.T) {
	flow := &fakeFlow{}
	store := &fakeStore{
		counts: []int{2, 0},
		groups: []tasks.TaskGroup{group("2023/0000001-001"), group("2023/0000002-001")},
	}
	process := &fakeProcessStage{results: []batchResult{
		{stats: details.BatchStats{Succeeded: 2, DocketEntries: 3, Documents: 1}},
	}}
	o := newOrchestrator(flow, &fakeExtractStage{}, process, store, &fakeRunLog{})

	summary := runs.NewSummary(time.Now())
	if err := o.ProcessingLoop(context.Background(), summary); err != nil {
		t.Fatalf("ProcessingLoop error: %v", err)
	}

	if summary.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2", summary.Succeeded)
	}
	if summary.DocketCount != 3 || summary.Documents != 1 {
		t.Errorf("counts = %d/%d, want 3/1", summary.DocketCount, summary.Documents)
	}
	if store.claims != 1 {
		t.Errorf("claims = %d, want 1", store.claims)
	}
}

func TestProcessingLoopStopsWithoutProgress(t *testing.T) {
	flow := &fakeFlow{}
	store := &fakeStore{
		counts: []int{2, 2},
		groups: []tasks.TaskGroup{group("2023/0000001-001")},
	}
	process := &fakeProcessStage{results: []batchResult{
		{stats: details.BatchStats{Failed: 1}},
	}}
	o := newOrchestrator(flow, &fakeExtractStage{}, process, store, &fakeRunLog{})

	summary := runs.NewSummary(time.Now())
	if err := o.ProcessingLoop(context.Background(), summary); err != nil {
		t.Fatalf("ProcessingLoop error: %v", err)
	}

	if process.calls != 1 {
		t.Errorf("batches processed = %d, want 1 before the guard stops the loop", process.calls)
	}
	if summary.Failed != 1 {
		t.Errorf("Failed = %d, want 1", summary.Failed)
	}
}

func TestRunStopsOnUnrecoverableLogin(t *testing.T) {
	flow := &failingFlow{}
	store := &fakeStore{counts: []int{5}}
	runLog := &fakeRunLog{}
	o := orchestratorWithManager(sessionManager(flow, 3),
		&fakeExtractStage{}, &fakeProcessStage{}, store, runLog)

	err := o.Run(context.Background())
	if !errors.Is(err, session.ErrUnrecoverable) {
		t.Fatalf("Run error = %v, want ErrUnrecoverable", err)
	}

	// the exhausted login budget must not be spent again by the
	// processing loop, pending work or not
	if flow.logins != 3 {
		t.Errorf("logins = %d, want the single exhausted budget of 3", flow.logins)
	}

	if len(runLog.saved) != 1 {
		t.Fatalf("run summaries saved = %d, want 1", len(runLog.saved))
	}
	if !runLog.saved[0].Fatal {
		t.Error("fatal run not recorded as fatal")
	}
}

func TestAcknowledgeOnly(t *testing.T) {
	flow := &fakeFlow{}
	store := &fakeStore{processed: []string{"2023/0000001-001", "2023/0000002-001"}}
	extract := &fakeExtractStage{}
	o := newOrchestrator(flow, extract, &fakeProcessStage{}, store, &fakeRunLog{})

	if err := o.AcknowledgeOnly(context.Background()); err != nil {
		t.Fatalf("AcknowledgeOnly error: %v", err)
	}

	if !slices.Equal(extract.acked, store.processed) {
		t.Errorf("acknowledged = %v, want %v", extract.acked, store.processed)
	}

	proc := flow.handles[0].Process.(*fakeProcess)
	if !proc.terminated {
		t.Error("acknowledgement session was not closed")
	}
}

func TestAcknowledgeOnlySkipsLoginWithoutWork(t *testing.T) {
	flow := &fakeFlow{}
	extract := &fakeExtractStage{}
	o := newOrchestrator(flow, extract, &fakeProcessStage{}, &fakeStore{}, &fakeRunLog{})

	if err := o.AcknowledgeOnly(context.Background()); err != nil {
		t.Fatalf("AcknowledgeOnly error: %v", err)
	}
	if flow.logins != 0 {
		t.Errorf("logins = %d, want no session for an empty processed set", flow.logins)
	}
	if extract.acked != nil {
		t.Errorf("acked = %v, want untouched stage", extract.acked)
	}
}

func TestProcessingLoopRenewsOnExpiry(t *testing.T) {
	flow := &fakeFlow{}
	store := &fakeStore{
		counts: []int{2, 2, 0},
		groups: []tasks.TaskGroup{group("2023/0000001-001"), group("2023/0000002-001")},
	}
	process := &fakeProcessStage{results: []batchResult{
		{stats: details.BatchStats{Failed: 1}, err: session.ErrExpired},
		{stats: details.BatchStats{Succeeded: 2}},
	}}
	o := newOrchestrator(flow, &fakeExtractStage{}, process, store, &fakeRunLog{})

	summary := runs.NewSummary(time.Now())
	if err := o.ProcessingLoop(context.Background(), summary); err != nil {
		t.Fatalf("ProcessingLoop error: %v", err)
	}

	// initial open plus the forced renewal after expiry
	if flow.logins != 2 {
		t.Errorf("logins = %d, want 2", flow.logins)
	}
	if summary.Succeeded != 2 || summary.Failed != 1 {
		t.Errorf("summary = %d succeeded / %d failed, want 2/1", summary.Succeeded, summary.Failed)
	}
}
