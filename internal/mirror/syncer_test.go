package mirror

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"yesan/internal/core"
	"yesan/internal/services"
	"yesan/internal/sheets/memory"
	"yesan/internal/storage"
)

type fixture struct {
	svc    *services.ExpenseService
	store  *memory.Store
	syncer *Syncer
}

func newFixture(t *testing.T, store *memory.Store, start bool) fixture {
	t.Helper()
	svc := services.NewExpenseService(storage.NewMemoryRepository(), core.DefaultBudget())
	var remote *memory.Store
	s := NewSyncer(svc, nil, Config{Debounce: 20 * time.Millisecond}, nil)
	if store != nil {
		remote = store
		s = NewSyncer(svc, remote, Config{Debounce: 20 * time.Millisecond}, nil)
	}
	svc.SetNotifier(s)
	if start {
		ctx, cancel := context.WithCancel(context.Background())
		if err := s.Start(ctx); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() {
			_ = s.Stop(context.Background())
			cancel()
		})
	}
	return fixture{svc: svc, store: remote, syncer: s}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func draft(desc string) services.Draft {
	return services.Draft{
		Date:        core.NewDate(2026, 5, 5),
		Category:    "행사비",
		Description: desc,
		Amount:      core.NewMoney(10000),
	}
}

func remoteExpense(id string) core.Expense {
	return core.Expense{ID: id, Date: core.NewDate(2026, 1, 1), Category: "예배비", Amount: core.NewMoney(5000)}
}

func TestStartPullsWithoutPushingBack(t *testing.T) {
	store := memory.NewStore(remoteExpense("r1"), remoteExpense("r2"))
	f := newFixture(t, store, true)

	list, _ := f.svc.List(context.Background())
	if len(list) != 2 || list[0].ID != "r1" {
		t.Fatalf("local list must mirror the remote after start: %+v", list)
	}
	time.Sleep(80 * time.Millisecond)
	if store.Saves() != 0 {
		t.Fatalf("a pull must not be pushed back, got %d saves", store.Saves())
	}
	if st := f.syncer.Status(); !st.Loaded || st.Dirty || st.LastPull.IsZero() {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestDebouncedPushCoalesces(t *testing.T) {
	store := memory.NewStore()
	f := newFixture(t, store, true)
	ctx := context.Background()

	for _, d := range []string{"a", "b", "c", "d"} {
		if _, err := f.svc.Create(ctx, draft(d)); err != nil {
			t.Fatal(err)
		}
	}
	eventually(t, "push", func() bool { return store.Saves() > 0 })
	time.Sleep(60 * time.Millisecond)
	if store.Saves() != 1 {
		t.Fatalf("rapid changes must coalesce into one push, got %d", store.Saves())
	}
	if items := store.Items(); len(items) != 4 || items[0].Description != "d" {
		t.Fatalf("remote must hold the full list newest first: %+v", items)
	}
}

func TestGateHoldsPushesUntilPull(t *testing.T) {
	store := memory.NewStore(remoteExpense("r1"))
	store.Fail(errors.New("offline"), nil, nil)
	f := newFixture(t, store, true)
	ctx := context.Background()

	if st := f.syncer.Status(); st.Loaded || !strings.Contains(st.LastError, "offline") {
		t.Fatalf("failed initial pull must leave the gate closed: %+v", st)
	}
	_, _ = f.svc.Create(ctx, draft("local"))
	time.Sleep(80 * time.Millisecond)
	if store.Saves() != 0 {
		t.Fatal("nothing may be pushed before a successful pull")
	}
	if err := f.syncer.Sync(ctx); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}

	store.Fail(nil, nil, nil)
	if err := f.syncer.Pull(ctx); err != nil {
		t.Fatal(err)
	}
	list, _ := f.svc.List(ctx)
	if len(list) != 1 || list[0].ID != "r1" {
		t.Fatalf("pull must replace the local list: %+v", list)
	}
	_, _ = f.svc.Create(ctx, draft("after"))
	eventually(t, "push after pull", func() bool { return store.Saves() == 1 })
}

func TestResetPushesBeforeLoad(t *testing.T) {
	store := memory.NewStore(remoteExpense("r1"))
	store.Fail(errors.New("offline"), nil, nil)
	f := newFixture(t, store, true)

	if err := f.svc.Reset(context.Background()); err != nil {
		t.Fatal(err)
	}
	eventually(t, "reset push", func() bool { return store.Saves() == 1 })
	if len(store.Items()) != 0 {
		t.Fatalf("remote must be emptied, got %+v", store.Items())
	}
}

func TestFailedPushStaysDirty(t *testing.T) {
	store := memory.NewStore()
	f := newFixture(t, store, true)
	ctx := context.Background()

	store.Fail(nil, errors.New("quota"), nil)
	_, _ = f.svc.Create(ctx, draft("one"))
	eventually(t, "failed push", func() bool { return f.syncer.Status().LastError != "" })
	if st := f.syncer.Status(); !st.Dirty {
		t.Fatalf("failed push must leave the list dirty: %+v", st)
	}

	store.Fail(nil, nil, nil)
	_, _ = f.svc.Create(ctx, draft("two"))
	eventually(t, "retry", func() bool { return store.Saves() == 1 })
	if got := len(store.Items()); got != 2 {
		t.Fatalf("retry must push both records, got %d", got)
	}
	if st := f.syncer.Status(); st.Dirty || st.LastError != "" || st.LastPush.IsZero() {
		t.Fatalf("unexpected status after retry %+v", st)
	}
}

func TestPushUploadsInlineReceipts(t *testing.T) {
	store := memory.NewStore()
	f := newFixture(t, store, false)
	ctx := context.Background()
	if err := f.syncer.Pull(ctx); err != nil {
		t.Fatal(err)
	}

	d := draft("교재")
	d.ReceiptURL = core.Receipt{MimeType: "image/png", Data: []byte("png")}.DataURL()
	e, _ := f.svc.Create(ctx, d)

	if err := f.syncer.PushNow(ctx); err != nil {
		t.Fatal(err)
	}
	got, _ := f.svc.Get(ctx, e.ID)
	if !strings.HasPrefix(got.ReceiptURL, core.DriveViewURL) {
		t.Fatalf("local receipt must be replaced by the public reference, got %q", got.ReceiptURL)
	}
	if items := store.Items(); items[0].ReceiptURL != got.ReceiptURL {
		t.Fatalf("remote must hold the public reference, got %q", items[0].ReceiptURL)
	}
	for _, r := range store.Receipts() {
		if r.Filename != "2026-05-05_행사비_교재_10,000원.png" || string(r.Data) != "png" {
			t.Fatalf("unexpected upload %+v", r)
		}
	}
}

func TestFailedUploadKeepsInlineImage(t *testing.T) {
	store := memory.NewStore()
	f := newFixture(t, store, false)
	ctx := context.Background()
	_ = f.syncer.Pull(ctx)

	d := draft("x")
	d.ReceiptURL = core.Receipt{MimeType: "image/png", Data: []byte("png")}.DataURL()
	e, _ := f.svc.Create(ctx, d)
	store.Fail(nil, nil, errors.New("drive down"))

	if err := f.syncer.PushNow(ctx); err != nil {
		t.Fatal(err)
	}
	got, _ := f.svc.Get(ctx, e.ID)
	if got.ReceiptURL != d.ReceiptURL {
		t.Fatal("inline image must be kept when the upload fails")
	}
}

func TestPushBeforePullBypassesGate(t *testing.T) {
	store := memory.NewStore()
	f := newFixture(t, store, false)
	ctx := context.Background()

	_, _ = f.svc.Create(ctx, draft("교재"))
	if err := f.syncer.Sync(ctx); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded from Sync, got %v", err)
	}
	if store.Saves() != 0 {
		t.Fatalf("gated sync must not write, saves = %d", store.Saves())
	}
	if err := f.syncer.PushNow(ctx); err != nil {
		t.Fatalf("explicit push before pull: %v", err)
	}
	if items := store.Items(); len(items) != 1 || items[0].Description != "교재" {
		t.Fatalf("remote = %+v", items)
	}
}

func TestDisabledSyncer(t *testing.T) {
	f := newFixture(t, nil, true)
	ctx := context.Background()

	if st := f.syncer.Status(); st.Enabled || !st.Loaded {
		t.Fatalf("disabled syncer must count as loaded: %+v", st)
	}
	_, _ = f.svc.Create(ctx, draft("x"))
	if err := f.syncer.PushNow(ctx); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if err := f.syncer.Pull(ctx); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestStartTwiceAndStopIdle(t *testing.T) {
	f := newFixture(t, memory.NewStore(), true)
	if err := f.syncer.Start(context.Background()); err == nil {
		t.Fatal("expected error when starting twice")
	}

	idle := NewSyncer(nil, nil, Config{}, nil)
	if err := idle.Stop(context.Background()); err != nil {
		t.Fatalf("stopping an idle syncer must not fail: %v", err)
	}
	if idle.config.Debounce != DefaultDebounce {
		t.Fatalf("expected default debounce, got %v", idle.config.Debounce)
	}
}

// editingLocal records a local edit right after the pull replaced the list,
// the window in which a user save can race the initial load.
type editingLocal struct {
	*services.ExpenseService
	once sync.Once
	edit func()
}

func (l *editingLocal) ReplaceAll(ctx context.Context, list []core.Expense, origin core.Origin) error {
	if err := l.ExpenseService.ReplaceAll(ctx, list, origin); err != nil {
		return err
	}
	l.once.Do(l.edit)
	return nil
}

func TestEditDuringPullIsPushed(t *testing.T) {
	ctx := context.Background()
	svc := services.NewExpenseService(storage.NewMemoryRepository(), core.DefaultBudget())
	store := memory.NewStore(remoteExpense("r1"))
	local := &editingLocal{ExpenseService: svc}
	s := NewSyncer(local, store, Config{Debounce: 20 * time.Millisecond}, nil)
	svc.SetNotifier(s)
	local.edit = func() {
		if _, err := svc.Create(ctx, draft("saved while loading")); err != nil {
			t.Error(err)
		}
	}

	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	eventually(t, "edit pushed", func() bool { return len(store.Items()) == 2 })
	if st := s.Status(); !st.Loaded || st.Dirty {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestFailedPullKeepsDirty(t *testing.T) {
	store := memory.NewStore()
	f := newFixture(t, store, false)
	ctx := context.Background()

	_, _ = f.svc.Create(ctx, draft("local"))
	store.Fail(errors.New("offline"), nil, nil)
	if err := f.syncer.Pull(ctx); err == nil {
		t.Fatal("expected pull error")
	}
	if st := f.syncer.Status(); !st.Dirty || st.Loaded {
		t.Fatalf("a failed pull must keep pending changes: %+v", st)
	}
}

func TestStopAfterTimeout(t *testing.T) {
	f := newFixture(t, memory.NewStore(), false)
	if err := f.syncer.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	expired, cancel := context.WithCancel(context.Background())
	cancel()
	_ = f.syncer.Stop(expired)

	if err := f.syncer.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if err := f.syncer.Start(context.Background()); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
	if err := f.syncer.Stop(context.Background()); err != nil {
		t.Fatalf("stop after restart: %v", err)
	}
}
