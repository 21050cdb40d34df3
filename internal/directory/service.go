package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	applog "yesan/internal/log"
	"yesan/internal/sheets"
)

// ErrNotLoaded is returned while no snapshot has been loaded yet.
var ErrNotLoaded = errors.New("directory not loaded")

// Snapshot is one loaded copy of the register.
type Snapshot struct {
	Academies []Academy `json:"academies"`
	AsOf      string    `json:"asOf"`
	LoadedAt  time.Time `json:"loadedAt"`
}

// Service owns the loaded register. Readers always see a complete snapshot;
// a failed reload leaves the previous one in place.
type Service struct {
	source sheets.TableSource
	titles sheets.TitleSource
	asOf   string
	now    func() time.Time
	logger *applog.Logger

	group singleflight.Group

	mu   sync.RWMutex
	snap *Snapshot
}

// Option configures a Service.
type Option func(*Service)

// WithTitleSource derives the "as of" label from the spreadsheet title.
func WithTitleSource(ts sheets.TitleSource) Option {
	return func(s *Service) { s.titles = ts }
}

// WithAsOf sets the label used when the title carries none.
func WithAsOf(label string) Option {
	return func(s *Service) { s.asOf = label }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *applog.Logger) Option {
	return func(s *Service) { s.logger = l.WithComponent(applog.ComponentDirectory) }
}

func NewService(source sheets.TableSource, opts ...Option) *Service {
	s := &Service{
		source: source,
		now:    time.Now,
		logger: applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentDirectory),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load fetches and transforms the export. Concurrent callers share a single
// fetch, which outlives the cancellation of whichever caller started it.
func (s *Service) Load(ctx context.Context) (*Snapshot, error) {
	v, err, shared := s.group.Do("load", func() (any, error) {
		return s.load(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.DebugContext(ctx, "Directory load shared with concurrent caller")
	}
	return v.(*Snapshot), nil
}

func (s *Service) load(ctx context.Context) (*Snapshot, error) {
	start := s.now()
	t, err := s.source.FetchTable(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Directory load failed", applog.FieldOperation, applog.OpLoad, applog.FieldError, err)
		return nil, fmt.Errorf("fetch directory: %w", err)
	}
	snap := &Snapshot{
		Academies: Transform(t),
		AsOf:      s.asOfLabel(ctx),
		LoadedAt:  s.now(),
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Directory loaded",
		applog.FieldAcademies, len(snap.Academies),
		"rows", len(t.Rows),
		applog.FieldDuration, s.now().Sub(start).Milliseconds())
	return snap, nil
}

func (s *Service) asOfLabel(ctx context.Context) string {
	if s.titles == nil {
		return s.asOf
	}
	title, err := s.titles.Title(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Spreadsheet title unavailable", applog.FieldError, err)
		return s.asOf
	}
	if label := AsOfFromTitle(title); label != "" {
		return label
	}
	return s.asOf
}

// Snapshot returns the current snapshot or ErrNotLoaded.
func (s *Service) Snapshot() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return nil, ErrNotLoaded
	}
	return s.snap, nil
}

// Ensure returns the current snapshot, loading it first if necessary.
func (s *Service) Ensure(ctx context.Context) (*Snapshot, error) {
	if snap, err := s.Snapshot(); err == nil {
		return snap, nil
	}
	return s.Load(ctx)
}

func (s *Service) Search(ctx context.Context, q string) ([]Academy, error) {
	snap, err := s.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	return Search(snap.Academies, q), nil
}

func (s *Service) Suggest(ctx context.Context, q string) ([]Academy, error) {
	snap, err := s.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	return Suggest(snap.Academies, q), nil
}

// Get looks an academy up by its exact (trimmed) name.
func (s *Service) Get(ctx context.Context, name string) (Academy, bool, error) {
	snap, err := s.Ensure(ctx)
	if err != nil {
		return Academy{}, false, err
	}
	name = strings.TrimSpace(name)
	for _, a := range snap.Academies {
		if a.Name == name {
			return a, true, nil
		}
	}
	return Academy{}, false, nil
}
