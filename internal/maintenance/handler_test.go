package maintenance

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCleaner struct {
	cleared int64
	cutoff  time.Time
}

func (f *fakeCleaner) ClearExpiredRefreshTokens(_ context.Context, cutoff time.Time, _ int) (int64, error) {
	f.cutoff = cutoff
	return f.cleared, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestCleanupHandler(t *testing.T) {
	t.Parallel()

	cleaner := &fakeCleaner{cleared: 3}
	handler := NewCleanupHandler(cleaner, discardLogger(), "cron-secret", 14*24*time.Hour, 500)

	req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body["cleared"])
	assert.WithinDuration(t, time.Now().UTC().Add(-14*24*time.Hour), cleaner.cutoff, time.Minute)
}

func TestCleanupHandler_WrongSecret(t *testing.T) {
	t.Parallel()

	handler := NewCleanupHandler(&fakeCleaner{}, discardLogger(), "cron-secret", time.Hour, 500)

	req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCleanupHandler_DisabledWithoutSecret(t *testing.T) {
	t.Parallel()

	handler := NewCleanupHandler(&fakeCleaner{}, discardLogger(), "", time.Hour, 500)

	req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
