package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"yesan/internal/directory"
	applog "yesan/internal/log"
	"yesan/internal/middleware/security"
)

const sessionCookie = "yesan_session"

// searchResponse is the payload of the search and suggest routes.
type searchResponse struct {
	Query   string              `json:"query"`
	Count   int                 `json:"count"`
	Results []directory.Academy `json:"results"`
	AsOf    string              `json:"asOf"`
}

func (s *Server) directoryReady(w http.ResponseWriter) bool {
	if s.directory == nil || s.gate == nil {
		ErrorResponse(http.StatusServiceUnavailable, "directory not configured").Write(w)
		return false
	}
	return true
}

// requireSession admits requests carrying a live session cookie. Directory
// responses hold personal data and are never cached.
func (s *Server) requireSession(next http.HandlerFunc) http.Handler {
	return security.NoStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.directoryReady(w) {
			return
		}
		c, err := r.Cookie(sessionCookie)
		if err != nil || !s.gate.Valid(c.Value) {
			UnauthorizedError("login required").Write(w)
			return
		}
		next(w, r)
	}))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.directoryReady(w) {
		return
	}
	p := NewRequestBodyParser(w, r, maxBodyBytes)
	if err := p.Parse(); err != nil {
		s.fail(w, r, applog.OpLogin, err)
		return
	}

	token, err := s.gate.Login(r.Context(), p.Get("password"))
	if err != nil {
		if errors.Is(err, directory.ErrBadSecret) {
			applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).WarnContext(r.Context(), "Wrong directory password",
				applog.FieldClientIP, s.detector.ExtractClientIP(r))
		}
		s.fail(w, r, applog.OpLogin, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/api/directory",
		MaxAge:   int(s.opts.SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	NewResponse().JSON(map[string]bool{"ok": true}).Write(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !s.directoryReady(w) {
		return
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		s.gate.Logout(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/api/directory",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.search(w, r, s.directory.Search)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	s.search(w, r, s.directory.Suggest)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, find func(context.Context, string) ([]directory.Academy, error)) {
	q := sanitizeInput(r.URL.Query().Get("q"))
	results, err := find(r.Context(), q)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	snap, err := s.directory.Snapshot()
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	if results == nil {
		results = []directory.Academy{}
	}
	NewResponse().JSON(searchResponse{Query: q, Count: len(results), Results: results, AsOf: snap.AsOf}).Write(w)
}

func (s *Server) handleAcademy(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	a, ok, err := s.directory.Get(r.Context(), name)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	if !ok {
		NotFoundError("academy not found").Write(w)
		return
	}
	NewResponse().JSON(a).Write(w)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	snap, err := s.directory.Load(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpLoad, err)
		return
	}
	NewResponse().JSON(map[string]any{
		"academies": len(snap.Academies),
		"asOf":      snap.AsOf,
		"loadedAt":  snap.LoadedAt,
	}).Write(w)
}
