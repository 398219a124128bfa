package session

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cropmodel/dataset/internal/dataset"
	"github.com/cropmodel/dataset/internal/models"
)

func writeDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(`{"experiments": {"e1": {"exname": "SITE_1"}}, "soils": {}, "weathers": {}}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.aceb"), buf.Bytes(), 0644))
	return dir
}

type recordingSaver struct {
	mu   sync.Mutex
	runs []string
}

func (s *recordingSaver) SaveRun(_ context.Context, rep *models.DatasetReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, rep.RunID)
	return nil
}

func waitFor(t *testing.T, m *Manager, id string) models.ValidationSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := m.Wait(ctx, id)
	require.NoError(t, err)
	return s
}

func TestSessionManager_Complete(t *testing.T) {
	defer goleak.VerifyNone(t)

	saver := &recordingSaver{}
	m := NewManager(nil, WithSaver(saver))
	dir := writeDataset(t)

	started, err := m.StartSession(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, started.Dir)
	assert.NotEmpty(t, started.ID)

	s := waitFor(t, m, started.ID)
	assert.Equal(t, models.SessionStatusComplete, s.Status)
	assert.Equal(t, 1, s.Files)
	require.NotNil(t, s.Report)
	assert.True(t, s.Report.Valid)
	assert.Equal(t, []string{s.Report.RunID}, saver.runs)
}

func TestSessionManager_ScanError(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewManager(nil)
	started, err := m.StartSession(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)

	s := waitFor(t, m, started.ID)
	assert.Equal(t, models.SessionStatusError, s.Status)
	assert.Contains(t, s.Error, "missing")
	assert.Nil(t, s.Report)
}

func TestSessionManager_Limit(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	m := NewManager(func() *dataset.Dataset {
		<-release
		return dataset.New()
	}, WithMaxSessions(2))
	dir := writeDataset(t)

	first, err := m.StartSession(dir)
	require.NoError(t, err)
	second, err := m.StartSession(dir)
	require.NoError(t, err)

	_, err = m.StartSession(dir)
	assert.True(t, errors.Is(err, ErrTooManySessions))

	close(release)
	waitFor(t, m, first.ID)
	waitFor(t, m, second.ID)

	// Finished sessions make room; the oldest is evicted.
	third, err := m.StartSession(dir)
	require.NoError(t, err)
	waitFor(t, m, third.ID)
	assert.Equal(t, 2, m.Len())
}

func TestSessionManager_Cleanup(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewManager(nil)
	started, err := m.StartSession(writeDataset(t))
	require.NoError(t, err)
	waitFor(t, m, started.ID)

	// Recently polled sessions survive.
	assert.Equal(t, 0, m.CleanupOldSessions(0))

	m.mu.Lock()
	m.sessions[started.ID].lastAccessed = time.Now().Add(-2 * KeepAliveWindow)
	m.mu.Unlock()
	assert.Equal(t, 0, m.CleanupOldSessions(time.Hour))
	assert.Equal(t, 1, m.CleanupOldSessions(0))

	_, ok := m.GetSession(started.ID)
	assert.False(t, ok)
}

func TestSessionManager_WaitUnknown(t *testing.T) {
	m := NewManager(nil)
	_, err := m.Wait(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestSessionManager_RunCleanupStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewManager(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RunCleanup(ctx, time.Millisecond, time.Hour)
		close(done)
	}()
	cancel()
	<-done
}
