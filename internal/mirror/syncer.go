// Package mirror keeps a remote copy of the expense list in step with the
// local one: an initial pull, then debounced full-list pushes.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"yesan/internal/core"
	applog "yesan/internal/log"
	"yesan/internal/sheets"
)

var (
	// ErrNotLoaded is returned by a push attempted before the first
	// successful pull.
	ErrNotLoaded = errors.New("mirror not loaded yet")
	ErrDisabled  = errors.New("mirror not configured")
)

const DefaultDebounce = time.Second

// Local is the authoritative list the syncer mirrors.
type Local interface {
	List(ctx context.Context) ([]core.Expense, error)
	ReplaceAll(ctx context.Context, list []core.Expense, origin core.Origin) error
	UpdateReceipt(ctx context.Context, id, from, to string, origin core.Origin) (bool, error)
}

// Status is a snapshot of the syncer state.
type Status struct {
	Enabled   bool      `json:"enabled"`
	Loaded    bool      `json:"loaded"`
	Syncing   bool      `json:"syncing"`
	Dirty     bool      `json:"dirty"`
	LastPull  time.Time `json:"lastPull"`
	LastPush  time.Time `json:"lastPush"`
	LastError string    `json:"lastError,omitempty"`
}

type Config struct {
	// Debounce is the quiet period after a local change before pushing
	// (default 1s).
	Debounce time.Duration
}

// Syncer pushes local changes to the remote store. Nothing is pushed until a
// pull succeeded, so an empty local list never overwrites the remote one.
type Syncer struct {
	local  Local
	remote sheets.MirrorStore
	config Config
	now    func() time.Time
	logger *applog.Logger

	// opMu serializes pulls and pushes.
	opMu sync.Mutex

	mu        sync.Mutex
	loaded    bool
	dirty     bool
	syncing   bool
	immediate bool
	lastPull  time.Time
	lastPush  time.Time
	lastErr   error

	running bool
	kick    chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncer builds a syncer. A nil remote disables mirroring: the syncer
// then counts as loaded and every call is a no-op.
func NewSyncer(local Local, remote sheets.MirrorStore, config Config, logger *applog.Logger) *Syncer {
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	return &Syncer{
		local:  local,
		remote: remote,
		config: config,
		now:    time.Now,
		logger: logger.WithComponent(applog.ComponentMirror),
		loaded: remote == nil,
		kick:   make(chan struct{}, 1),
	}
}

func (s *Syncer) Enabled() bool { return s.remote != nil }

// Start performs the initial pull and starts the push loop. A failed pull is
// logged and leaves automatic pushes suspended until Pull succeeds.
func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("mirror syncer is already running")
	}
	s.running = true
	stopCh, doneCh := make(chan struct{}), make(chan struct{})
	s.stopCh, s.doneCh = stopCh, doneCh
	s.mu.Unlock()

	if s.Enabled() {
		if err := s.Pull(ctx); err != nil {
			s.logger.WarnContext(ctx, "Initial mirror pull failed, automatic push suspended", applog.FieldError, err)
		}
	}

	go s.runLoop(ctx, stopCh, doneCh)

	s.logger.InfoContext(ctx, "Mirror syncer started",
		"enabled", s.Enabled(),
		"debounce", s.config.Debounce)
	return nil
}

// Stop ends the push loop and waits for an in-flight push to finish.
func (s *Syncer) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.stopCh = nil
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		s.logger.InfoContext(ctx, "Mirror syncer stopped")
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Mirror syncer stop timed out")
		return ctx.Err()
	}
}

// Notify records a change of the local list. Changes that came from the
// remote are not pushed back. A reset is pushed right away and opens the
// gate.
func (s *Syncer) Notify(ctx context.Context, change core.Change) {
	if !s.Enabled() || change.Origin == core.OriginRemote {
		return
	}
	s.mu.Lock()
	s.dirty = true
	if change.Reset {
		s.loaded = true
		s.immediate = true
	}
	s.mu.Unlock()
	s.wake()
}

func (s *Syncer) wake() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Syncer) runLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(s.config.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-s.kick:
			s.mu.Lock()
			now := s.immediate
			s.immediate = false
			s.mu.Unlock()
			if now {
				timer.Stop()
				s.flush(ctx)
				continue
			}
			timer.Reset(s.config.Debounce)
		case <-timer.C:
			s.flush(ctx)
		}
	}
}

func (s *Syncer) flush(ctx context.Context) {
	if err := s.Sync(ctx); err != nil && !errors.Is(err, ErrNotLoaded) {
		s.logger.WarnContext(ctx, "Mirror push failed", applog.FieldOperation, applog.OpPush, applog.FieldError, err)
	}
}

// Sync pushes pending local changes if the gate is open. A failed push leaves
// the list dirty, so the next local change retries it.
func (s *Syncer) Sync(ctx context.Context) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	s.mu.Lock()
	dirty, loaded := s.dirty, s.loaded
	s.mu.Unlock()
	switch {
	case !loaded:
		return ErrNotLoaded
	case !dirty:
		return nil
	}
	return s.push(ctx)
}

// PushNow pushes the current list regardless of the load gate.
func (s *Syncer) PushNow(ctx context.Context) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	return s.push(ctx)
}

// Pull replaces the local list with the remote one and opens the push gate.
func (s *Syncer) Pull(ctx context.Context) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	defer s.beginSync()()

	// Local changes made after this point stay dirty and are pushed once
	// the pull completes.
	s.mu.Lock()
	wasDirty := s.dirty
	s.dirty = false
	s.mu.Unlock()

	list, err := s.remote.List(ctx)
	if err == nil {
		err = s.local.ReplaceAll(ctx, list, core.OriginRemote)
	}
	if err != nil {
		s.mu.Lock()
		s.dirty = s.dirty || wasDirty
		s.mu.Unlock()
		return s.fail(fmt.Errorf("pull: %w", err))
	}

	s.mu.Lock()
	s.loaded = true
	s.lastPull = s.now()
	s.lastErr = nil
	pending := s.dirty
	s.mu.Unlock()
	if pending {
		s.wake()
	}

	s.logger.InfoContext(ctx, "Mirror pulled", applog.FieldOperation, applog.OpPull, applog.FieldCount, len(list))
	return nil
}

func (s *Syncer) push(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	defer s.beginSync()()

	// Changes made while pushing mark the list dirty again.
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()

	list, err := s.local.List(ctx)
	if err != nil {
		return s.failDirty(fmt.Errorf("push: %w", err))
	}
	list = s.uploadReceipts(ctx, list)

	if err := s.remote.Save(ctx, list); err != nil {
		return s.failDirty(fmt.Errorf("push: %w", err))
	}

	s.mu.Lock()
	s.lastPush = s.now()
	s.lastErr = nil
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Mirror pushed", applog.FieldOperation, applog.OpPush, applog.FieldCount, len(list))
	return nil
}

// uploadReceipts uploads inline receipt images and writes the public
// references back locally. A failed upload keeps the inline image, which
// the next push tries again.
func (s *Syncer) uploadReceipts(ctx context.Context, list []core.Expense) []core.Expense {
	out := make([]core.Expense, len(list))
	copy(out, list)
	for i, e := range out {
		if !core.IsPendingReceipt(e.ReceiptURL) {
			continue
		}
		mime, data, err := core.ParseDataURL(e.ReceiptURL)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping malformed inline receipt", applog.FieldExpenseID, e.ID, applog.FieldError, err)
			continue
		}
		ref, err := s.remote.UploadReceipt(ctx, core.Receipt{
			Filename: core.ReceiptFilename(e, mime),
			MimeType: mime,
			Data:     data,
		})
		if err != nil {
			s.logger.WarnContext(ctx, "Receipt upload failed, keeping inline image",
				applog.FieldOperation, applog.OpUpload, applog.FieldExpenseID, e.ID, applog.FieldError, err)
			continue
		}
		if _, err := s.local.UpdateReceipt(ctx, e.ID, e.ReceiptURL, ref, core.OriginRemote); err != nil {
			s.logger.WarnContext(ctx, "Failed to store receipt reference", applog.FieldExpenseID, e.ID, applog.FieldError, err)
		}
		out[i].ReceiptURL = ref
	}
	return out
}

func (s *Syncer) beginSync() func() {
	s.mu.Lock()
	s.syncing = true
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.syncing = false
		s.mu.Unlock()
	}
}

func (s *Syncer) fail(err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	return err
}

func (s *Syncer) failDirty(err error) error {
	s.mu.Lock()
	s.dirty = true
	s.lastErr = err
	s.mu.Unlock()
	return err
}

func (s *Syncer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Enabled:  s.Enabled(),
		Loaded:   s.loaded,
		Syncing:  s.syncing,
		Dirty:    s.dirty,
		LastPull: s.lastPull,
		LastPush: s.lastPush,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
