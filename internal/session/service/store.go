// Package service implements the session-scoped ephemeral store.
package service

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/gatekeeper/internal/errors"
	sessionDomain "github.com/allisson/gatekeeper/internal/session/domain"
)

const maxNameLength = 64

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Store tracks sessions in memory and keeps their artifacts on disk under a
// root directory. The registry lock only guards the map; every filesystem
// change for a session happens under that session's own lock.
type Store struct {
	root   string
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	mu      sync.Mutex
	session sessionDomain.Session
	counter uint64
	closed  bool
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates root (0700) if needed and returns a Store rooted at its
// real path.
func NewStore(root string, logger *slog.Logger, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create ephemeral root: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ephemeral root: %w", err)
	}

	s := &Store{
		root:     realRoot,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*sessionEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func registryKey(principalID, sessionID string) string {
	return principalID + "\x00" + sessionID
}

func (s *Store) lookup(principalID, sessionID string) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[registryKey(principalID, sessionID)]
}

func (s *Store) unregister(e *sessionEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := registryKey(e.session.PrincipalID, e.session.ID)
	if s.sessions[key] == e {
		delete(s.sessions, key)
	}
}

// EnsureSession returns the session, creating its directory on first use and
// refreshing LastAccessedAt on every call.
func (s *Store) EnsureSession(principalID, sessionID string) (sessionDomain.Session, error) {
	if principalID == "" || sessionID == "" {
		return sessionDomain.Session{}, sessionDomain.ErrInvalidSession
	}
	key := registryKey(principalID, sessionID)

	for {
		s.mu.Lock()
		e, ok := s.sessions[key]
		if !ok {
			e = &sessionEntry{session: sessionDomain.Session{ID: sessionID, PrincipalID: principalID}}
			s.sessions[key] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		if e.closed {
			// Cleaned up between lookup and lock; register a fresh one.
			e.mu.Unlock()
			continue
		}

		now := s.now()
		if e.session.EphemeralDir == "" {
			dir := filepath.Join(s.root, uuid.NewString())
			if err := os.Mkdir(dir, 0o700); err != nil {
				e.closed = true
				e.mu.Unlock()
				s.unregister(e)
				return sessionDomain.Session{}, fmt.Errorf("failed to create session directory: %w", err)
			}
			e.session.EphemeralDir = dir
			e.session.CreatedAt = now
		}
		e.session.LastAccessedAt = now
		session := e.session
		e.mu.Unlock()
		return session, nil
	}
}

// WriteArtifact stores plaintext in a new file of the session. Names are never
// reused within a session.
func (s *Store) WriteArtifact(
	session sessionDomain.Session,
	resourceRef string,
	plaintext []byte,
) (sessionDomain.Artifact, error) {
	e := s.lookup(session.PrincipalID, session.ID)
	if e == nil {
		return sessionDomain.Artifact{}, sessionDomain.ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return sessionDomain.Artifact{}, sessionDomain.ErrSessionNotFound
	}

	e.counter++
	name := fmt.Sprintf("%s.%06d", artifactBaseName(resourceRef), e.counter)

	root, err := os.OpenRoot(e.session.EphemeralDir)
	if err != nil {
		return sessionDomain.Artifact{}, fmt.Errorf("failed to open session directory: %w", err)
	}
	defer func() {
		_ = root.Close()
	}()

	f, err := root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return sessionDomain.Artifact{}, fmt.Errorf("failed to create artifact: %w", err)
	}
	if _, err := f.Write(plaintext); err != nil {
		_ = f.Close()
		return sessionDomain.Artifact{}, fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return sessionDomain.Artifact{}, fmt.Errorf("failed to close artifact: %w", err)
	}

	now := s.now()
	e.session.LastAccessedAt = now
	return sessionDomain.Artifact{Path: name, ResourceRef: resourceRef, CreatedAt: now}, nil
}

// ReadArtifact returns the content of path (relative to the session directory,
// or absolute). The symlink-resolved path must stay inside the session
// directory; otherwise ErrPathEscape is returned and logged as a security fault.
// The session directory itself is not an artifact and yields ErrArtifactNotFound.
func (s *Store) ReadArtifact(ctx context.Context, session sessionDomain.Session, path string) ([]byte, error) {
	e := s.lookup(session.PrincipalID, session.ID)
	if e == nil {
		return nil, sessionDomain.ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, sessionDomain.ErrSessionNotFound
	}
	dir := e.session.EphemeralDir

	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(dir, candidate)
	}
	candidate = filepath.Clean(candidate)
	if candidate == dir {
		return nil, sessionDomain.ErrArtifactNotFound
	}
	if !isDescendant(dir, candidate) {
		return nil, s.pathEscape(ctx, e.session, path, candidate)
	}

	real, err := filepath.EvalSymlinks(candidate)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, sessionDomain.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve artifact path: %w", err)
	}
	if real == dir {
		return nil, sessionDomain.ErrArtifactNotFound
	}
	if !isDescendant(dir, real) {
		return nil, s.pathEscape(ctx, e.session, path, real)
	}

	rel, err := filepath.Rel(dir, real)
	if err != nil {
		return nil, s.pathEscape(ctx, e.session, path, real)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open session directory: %w", err)
	}
	defer func() {
		_ = root.Close()
	}()

	data, err := root.ReadFile(rel)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, sessionDomain.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	e.session.LastAccessedAt = s.now()
	return data, nil
}

func (s *Store) pathEscape(ctx context.Context, session sessionDomain.Session, requested, resolved string) error {
	s.logger.LogAttrs(ctx, slog.LevelError, "artifact path escapes session directory",
		slog.Bool("security_fault", true),
		slog.String("principal_id", session.PrincipalID),
		slog.String("session_id", session.ID),
		slog.String("requested_path", requested),
		slog.String("resolved_path", resolved),
	)
	return sessionDomain.ErrPathEscape
}

// CleanupSession deletes the session directory and forgets the session.
// Calling it for an unknown or already cleaned session is a no-op.
func (s *Store) CleanupSession(principalID, sessionID string) error {
	e := s.lookup(principalID, sessionID)
	if e == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return s.destroyLocked(e)
}

// destroyLocked removes the directory of e. The caller holds e.mu.
func (s *Store) destroyLocked(e *sessionEntry) error {
	if e.closed {
		return nil
	}
	if e.session.EphemeralDir != "" {
		if err := os.RemoveAll(e.session.EphemeralDir); err != nil {
			return fmt.Errorf("failed to remove session directory: %w", err)
		}
	}
	e.closed = true
	s.unregister(e)
	return nil
}

// SweepExpired cleans every session idle for longer than timeout and returns
// how many were removed.
func (s *Store) SweepExpired(timeout time.Duration) int {
	s.mu.Lock()
	candidates := make([]*sessionEntry, 0, len(s.sessions))
	for _, e := range s.sessions {
		candidates = append(candidates, e)
	}
	s.mu.Unlock()

	cutoff := s.now().Add(-timeout)
	removed := 0
	for _, e := range candidates {
		e.mu.Lock()
		if !e.closed && e.session.LastAccessedAt.Before(cutoff) {
			if err := s.destroyLocked(e); err != nil {
				s.logger.Error("failed to sweep session",
					slog.String("session_id", e.session.ID),
					slog.Any("error", err),
				)
			} else {
				removed++
			}
		}
		e.mu.Unlock()
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval, timeout time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.SweepExpired(timeout); n > 0 {
				s.logger.Info("swept idle sessions", slog.Int("count", n))
			}
		}
	}
}

// Lookup returns a registered session without refreshing it.
func (s *Store) Lookup(principalID, sessionID string) (sessionDomain.Session, bool) {
	e := s.lookup(principalID, sessionID)
	if e == nil {
		return sessionDomain.Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return sessionDomain.Session{}, false
	}
	return e.session, true
}

func isDescendant(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func artifactBaseName(resourceRef string) string {
	name := unsafeNameChars.ReplaceAllString(resourceRef, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = "artifact"
	}
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	return name
}
