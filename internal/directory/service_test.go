package directory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"yesan/internal/cache"
	"yesan/internal/csvtable"
	"yesan/internal/sheets/memory"
)

const sample = "학원명,설립자-성명,학원주소,등록번호\n" +
	"스카이학원,김철수,하남시,R-1\n" +
	"김박사어학원,박영희,서울,R-2\n"

func TestServiceLoadAndSearch(t *testing.T) {
	ctx := context.Background()
	src := memory.NewTableFromCSV(sample, "하남 학원조회 자료 (2026.01.17.기준)")
	svc := NewService(src, WithTitleSource(src), WithAsOf("fallback"))

	if _, err := svc.Snapshot(); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded before load, got %v", err)
	}

	got, err := svc.Search(ctx, "김")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Name != "김박사어학원" {
		t.Fatalf("unexpected result %v", names(got))
	}
	snap, _ := svc.Snapshot()
	if snap.AsOf != "2026. 1. 17. (토) 기준" {
		t.Fatalf("asOf = %q", snap.AsOf)
	}

	a, ok, err := svc.Get(ctx, " 스카이학원 ")
	if err != nil || !ok || a.ID != "R-1" {
		t.Fatalf("get: %+v %v %v", a, ok, err)
	}
	if _, ok, _ := svc.Get(ctx, "없는학원"); ok {
		t.Fatalf("unexpected hit")
	}
}

func TestServiceFailedReloadKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	src := memory.NewTableFromCSV(sample, "")
	svc := NewService(src, WithAsOf("2026. 1. 1. (목) 기준"))

	if _, err := svc.Load(ctx); err != nil {
		t.Fatal(err)
	}
	src.FailWith(errors.New("network down"))
	if _, err := svc.Load(ctx); err == nil {
		t.Fatalf("expected reload error")
	}
	snap, err := svc.Snapshot()
	if err != nil || len(snap.Academies) != 2 {
		t.Fatalf("previous snapshot must survive: %v %v", snap, err)
	}
	if snap.AsOf != "2026. 1. 1. (목) 기준" {
		t.Fatalf("asOf = %q", snap.AsOf)
	}
}

type titleFunc func(context.Context) (string, error)

func (f titleFunc) Title(ctx context.Context) (string, error) { return f(ctx) }

func TestServiceAsOfFallback(t *testing.T) {
	const fallback = "2025. 12. 31. (수) 기준"
	tests := []struct {
		name  string
		title titleFunc
		want  string
	}{
		{
			name:  "dated title",
			title: func(context.Context) (string, error) { return "하남 학원조회 자료 (2026.01.17.기준)", nil },
			want:  "2026. 1. 17. (토) 기준",
		},
		{
			name:  "title without date",
			title: func(context.Context) (string, error) { return "하남 학원조회 자료", nil },
			want:  fallback,
		},
		{
			name:  "title unavailable",
			title: func(context.Context) (string, error) { return "", errors.New("403") },
			want:  fallback,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(memory.NewTableFromCSV(sample, ""), WithTitleSource(tt.title), WithAsOf(fallback))
			snap, err := svc.Load(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if snap.AsOf != tt.want {
				t.Errorf("asOf = %q, want %q", snap.AsOf, tt.want)
			}
		})
	}
}

func TestServiceInitialFailure(t *testing.T) {
	src := memory.NewTable(csvtable.Table{}, "")
	src.FailWith(errors.New("404"))
	svc := NewService(src)
	if _, err := svc.Search(context.Background(), "a"); err == nil {
		t.Fatalf("expected error when nothing is loaded")
	}
}

type slowSource struct {
	mu    sync.Mutex
	calls int
	gate  chan struct{}
}

func (s *slowSource) FetchTable(ctx context.Context) (csvtable.Table, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	select {
	case <-s.gate:
	case <-ctx.Done():
		return csvtable.Table{}, ctx.Err()
	}
	return csvtable.FromRows([][]string{{"학원명"}, {"하나"}}), nil
}

func TestServiceCoalescesConcurrentLoads(t *testing.T) {
	src := &slowSource{gate: make(chan struct{})}
	svc := NewService(src)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Load(context.Background()); err != nil {
				t.Error(err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	src.mu.Lock()
	defer src.mu.Unlock()
	if src.calls != 1 {
		t.Fatalf("expected one shared fetch, got %d", src.calls)
	}
}

func TestServiceLoadSurvivesCallerCancel(t *testing.T) {
	src := &slowSource{gate: make(chan struct{})}
	svc := NewService(src)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := svc.Load(ctx)
		first <- err
	}()
	time.Sleep(20 * time.Millisecond)

	second := make(chan error, 1)
	go func() {
		_, err := svc.Load(context.Background())
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	close(src.gate)
	if err := <-first; err != nil {
		t.Fatalf("first caller: %v", err)
	}
	if err := <-second; err != nil {
		t.Fatalf("joined caller: %v", err)
	}
	if _, err := svc.Snapshot(); err != nil {
		t.Fatalf("snapshot after cancelled caller: %v", err)
	}
}

func TestGateLogin(t *testing.T) {
	ctx := context.Background()
	secret := memory.NewTableFromCSV("\" 1234 \"\n", "")
	sessions := cache.NewLRUCache[Session](16, time.Hour)
	g := NewGate(secret, sessions, nil)

	if _, err := g.Login(ctx, "0000"); !errors.Is(err, ErrBadSecret) {
		t.Fatalf("expected ErrBadSecret, got %v", err)
	}
	token, err := g.Login(ctx, "1234")
	if err != nil {
		t.Fatal(err)
	}
	if !g.Valid(token) {
		t.Fatalf("fresh session should be valid")
	}
	if g.Valid("") || g.Valid("forged") {
		t.Fatalf("unknown tokens must be rejected")
	}
	g.Logout(token)
	if g.Valid(token) {
		t.Fatalf("logout should end the session")
	}
}

func TestGateEmptySecret(t *testing.T) {
	g := NewGate(memory.NewTableFromCSV("", ""), cache.NewLRUCache[Session](1, time.Hour), nil)
	if _, err := g.Login(context.Background(), ""); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
}

func TestGateSourceFailure(t *testing.T) {
	src := memory.NewTableFromCSV("pw\n", "")
	src.FailWith(errors.New("offline"))
	g := NewGate(src, cache.NewLRUCache[Session](1, time.Hour), nil)
	if _, err := g.Login(context.Background(), "pw"); err == nil || errors.Is(err, ErrBadSecret) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}
