package directory

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"yesan/internal/cache"
	applog "yesan/internal/log"
	"yesan/internal/sheets"
)

var (
	ErrBadSecret = errors.New("wrong password")
	ErrNoSecret  = errors.New("password sheet is empty")
)

// Session is an authenticated browser session.
type Session struct {
	CreatedAt time.Time
}

// Gate checks the shared secret kept in the password sheet and hands out
// session tokens. Sessions live in memory only.
type Gate struct {
	secret   sheets.TableSource
	sessions cache.Cache[Session]
	now      func() time.Time
	logger   *applog.Logger
}

func NewGate(secret sheets.TableSource, sessions cache.Cache[Session], logger *applog.Logger) *Gate {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Gate{
		secret:   secret,
		sessions: sessions,
		now:      time.Now,
		logger:   logger.WithComponent(applog.ComponentAuth),
	}
}

// Login compares attempt with the current secret and opens a session on
// success. The secret is read on every attempt so a changed password takes
// effect immediately.
func (g *Gate) Login(ctx context.Context, attempt string) (string, error) {
	t, err := g.secret.FetchTable(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch password: %w", err)
	}
	want := strings.TrimSpace(t.FirstCell())
	if want == "" {
		return "", ErrNoSecret
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(attempt)), []byte(want)) != 1 {
		g.logger.WarnContext(ctx, "Login rejected", applog.FieldOperation, applog.OpLogin)
		return "", ErrBadSecret
	}

	token, err := newToken()
	if err != nil {
		return "", err
	}
	g.sessions.Set(token, Session{CreatedAt: g.now()})
	g.logger.InfoContext(ctx, "Login accepted", applog.FieldOperation, applog.OpLogin, "sessions", g.sessions.Size())
	return token, nil
}

// Valid reports whether token belongs to a live session and extends it.
func (g *Gate) Valid(token string) bool {
	if token == "" {
		return false
	}
	return g.sessions.Touch(token)
}

func (g *Gate) Logout(token string) {
	if token != "" {
		g.sessions.Delete(token)
	}
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
