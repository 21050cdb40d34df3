// Package worker applies sync messages from the server to the worker's own
// mirror syncer.
package worker

import (
	"context"
	"errors"
	"fmt"

	"yesan/internal/amqp"
	"yesan/internal/core"
	applog "yesan/internal/log"
	"yesan/internal/mirror"
)

// Syncer is the part of mirror.Syncer the worker drives.
type Syncer interface {
	Notify(ctx context.Context, change core.Change)
	Pull(ctx context.Context) error
	PushNow(ctx context.Context) error
}

var _ Syncer = (*mirror.Syncer)(nil)

type SyncWorker struct {
	syncer Syncer
	logger *applog.Logger
}

func NewSyncWorker(syncer Syncer, logger *applog.Logger) *SyncWorker {
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	return &SyncWorker{syncer: syncer, logger: logger.WithComponent(applog.ComponentWorker)}
}

// HandleSyncMessage applies one message. Mirror failures are logged and
// acknowledged: the syncer keeps the list dirty and its status records the
// error, so requeueing would only spin.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.SyncMessage) error {
	w.logger.DebugContext(ctx, "Processing sync message",
		applog.FieldMessageKind, string(msg.Kind),
		applog.FieldOrigin, msg.Origin,
		"timestamp", msg.Timestamp)

	var err error
	switch msg.Kind {
	case amqp.KindChange, amqp.KindReset:
		change, cerr := msg.Change()
		if cerr != nil {
			return fmt.Errorf("decode change: %w", cerr)
		}
		w.syncer.Notify(ctx, change)
		return nil
	case amqp.KindPull:
		err = w.syncer.Pull(ctx)
	case amqp.KindPush:
		err = w.syncer.PushNow(ctx)
	default:
		return fmt.Errorf("unknown message kind %q", msg.Kind)
	}

	switch {
	case err == nil:
		w.logger.InfoContext(ctx, "Sync message applied", applog.FieldMessageKind, string(msg.Kind))
	case errors.Is(err, mirror.ErrDisabled):
		w.logger.WarnContext(ctx, "Mirror not configured, ignoring message", applog.FieldMessageKind, string(msg.Kind))
	default:
		w.logger.ErrorContext(ctx, "Sync message failed", applog.FieldMessageKind, string(msg.Kind), applog.FieldError, err)
	}
	return nil
}
