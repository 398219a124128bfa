// Package session runs dataset validations in the background and keeps
// their results for polling clients.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cropmodel/dataset/internal/dataset"
	"github.com/cropmodel/dataset/internal/logging"
	"github.com/cropmodel/dataset/internal/models"
)

// DefaultMaxSessions limits concurrent sessions to bound memory use.
const DefaultMaxSessions = 10

// KeepAliveWindow is how long a recently polled session survives cleanup.
const KeepAliveWindow = 5 * time.Minute

var (
	// ErrTooManySessions is returned when every slot holds a running session.
	ErrTooManySessions = errors.New("too many active validation sessions")
	// ErrSessionNotFound is returned for unknown or expired session ids.
	ErrSessionNotFound = errors.New("session not found")
)

// RunSaver records finished reports.
type RunSaver interface {
	SaveRun(ctx context.Context, rep *models.DatasetReport) error
}

// Manager handles background validation sessions.
type Manager struct {
	sessions    map[string]*state
	mu          sync.RWMutex
	newDataset  func() *dataset.Dataset
	saver       RunSaver
	maxSessions int
	logger      *zap.Logger
}

// state holds the session and its bookkeeping.
type state struct {
	session      models.ValidationSession
	lastAccessed time.Time
	finishedAt   time.Time
	done         chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithSaver records every completed report.
func WithSaver(s RunSaver) Option {
	return func(m *Manager) {
		m.saver = s
	}
}

// WithMaxSessions sets the session limit.
func WithMaxSessions(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxSessions = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logging.OrNop(l).Named("session")
	}
}

// NewManager creates a session manager. newDataset supplies a fresh
// dataset for every session.
func NewManager(newDataset func() *dataset.Dataset, opts ...Option) *Manager {
	m := &Manager{
		sessions:    make(map[string]*state),
		newDataset:  newDataset,
		maxSessions: DefaultMaxSessions,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.newDataset == nil {
		m.newDataset = func() *dataset.Dataset { return dataset.New(dataset.WithLogger(m.logger)) }
	}
	return m
}

// StartSession begins validating dir in the background.
func (m *Manager) StartSession(dir string) (models.ValidationSession, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return models.ValidationSession{}, err
	}

	m.mu.Lock()
	if !m.makeRoomLocked() {
		m.mu.Unlock()
		return models.ValidationSession{}, ErrTooManySessions
	}
	st := &state{
		session:      *models.NewValidationSession(uuid.NewString(), abs),
		lastAccessed: time.Now(),
		done:         make(chan struct{}),
	}
	m.sessions[st.session.ID] = st
	snapshot := st.session
	m.mu.Unlock()

	go m.run(st.session.ID, abs, st.done)
	return snapshot, nil
}

func (m *Manager) run(id, dir string, done chan struct{}) {
	defer close(done)
	defer func() {
		// Recover from panics to keep the server alive.
		if r := recover(); r != nil {
			m.logger.Error("validation panicked", zap.String("session", id), zap.Any("panic", r))
			m.fail(id, fmt.Sprintf("validation panicked: %v", r))
		}
	}()

	start := time.Now()
	m.setStatus(id, models.SessionStatusScanning)
	m.logger.Info("session started", zap.String("session", id), zap.String("dir", dir))

	ds := m.newDataset()
	if err := ds.Scan(dir); err != nil {
		m.logger.Warn("scan failed", zap.String("session", id), zap.Error(err))
		m.fail(id, err.Error())
		return
	}

	m.mu.Lock()
	if st, ok := m.sessions[id]; ok {
		st.session.Status = models.SessionStatusValidating
		st.session.Files = len(ds.Records())
	}
	m.mu.Unlock()

	rep := ds.Validate(nil, nil)
	if m.saver != nil {
		if err := m.saver.SaveRun(context.Background(), rep); err != nil {
			m.logger.Warn("saving run failed", zap.String("session", id), zap.Error(err))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[id]
	if !ok {
		return
	}
	st.session.Status = models.SessionStatusComplete
	st.session.Report = rep
	st.session.ProcessingTimeMs = time.Since(start).Milliseconds()
	st.finishedAt = time.Now()
	m.logger.Info("session complete",
		zap.String("session", id),
		zap.Bool("valid", rep.Valid),
		zap.Int64("ms", st.session.ProcessingTimeMs))
}

func (m *Manager) setStatus(id string, status models.SessionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.sessions[id]; ok {
		st.session.Status = status
	}
}

func (m *Manager) fail(id, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.sessions[id]; ok {
		st.session.Status = models.SessionStatusError
		st.session.Error = reason
		st.finishedAt = time.Now()
	}
}

// makeRoomLocked drops the oldest finished sessions until a slot is free.
// It reports false when every slot holds a running session.
func (m *Manager) makeRoomLocked() bool {
	for len(m.sessions) >= m.maxSessions {
		var oldestID string
		var oldest time.Time
		for id, st := range m.sessions {
			if !st.session.Status.Done() {
				continue
			}
			if oldestID == "" || st.finishedAt.Before(oldest) {
				oldestID, oldest = id, st.finishedAt
			}
		}
		if oldestID == "" {
			return false
		}
		delete(m.sessions, oldestID)
		m.logger.Debug("evicted session", zap.String("session", oldestID))
	}
	return true
}

// CleanupOldSessions drops finished sessions older than maxAge that have
// not been polled within KeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, st := range m.sessions {
		if !st.session.Status.Done() {
			continue
		}
		if now.Sub(st.lastAccessed) < KeepAliveWindow {
			continue
		}
		if now.Sub(st.finishedAt) >= maxAge {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("cleaned up sessions", zap.Int("removed", removed))
	}
	return removed
}

// RunCleanup calls CleanupOldSessions every interval until ctx is cancelled.
func (m *Manager) RunCleanup(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupOldSessions(maxAge)
		}
	}
}

// GetSession returns a snapshot of the session and marks it as accessed.
func (m *Manager) GetSession(id string) (models.ValidationSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[id]
	if !ok {
		return models.ValidationSession{}, false
	}
	st.lastAccessed = time.Now()
	return st.session, true
}

// Wait blocks until the session finishes or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (models.ValidationSession, error) {
	m.mu.RLock()
	st, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return models.ValidationSession{}, ErrSessionNotFound
	}

	select {
	case <-st.done:
	case <-ctx.Done():
		return models.ValidationSession{}, ctx.Err()
	}

	s, ok := m.GetSession(id)
	if !ok {
		return models.ValidationSession{}, ErrSessionNotFound
	}
	return s, nil
}

// Len returns the number of tracked sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
