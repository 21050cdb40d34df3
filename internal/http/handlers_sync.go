package http

import (
	"net/http"

	applog "yesan/internal/log"
	"yesan/internal/mirror"
)

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if s.sync == nil {
		NewResponse().JSON(mirror.Status{Loaded: true}).Write(w)
		return
	}
	NewResponse().JSON(s.sync.Status()).Write(w)
}

func (s *Server) handleSyncPull(w http.ResponseWriter, r *http.Request) {
	s.syncAction(w, r, applog.OpPull, func(c SyncController) error { return c.Pull(r.Context()) })
}

func (s *Server) handleSyncPush(w http.ResponseWriter, r *http.Request) {
	s.syncAction(w, r, applog.OpPush, func(c SyncController) error { return c.PushNow(r.Context()) })
}

func (s *Server) syncAction(w http.ResponseWriter, r *http.Request, op string, run func(SyncController) error) {
	if s.sync == nil {
		s.fail(w, r, op, mirror.ErrDisabled)
		return
	}
	if err := run(s.sync); err != nil {
		s.fail(w, r, op, err)
		return
	}
	NewResponse().JSON(s.sync.Status()).Write(w)
}
