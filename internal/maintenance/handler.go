package maintenance

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// TokenCleaner clears refresh tokens whose expiry passed before the cutoff.
type TokenCleaner interface {
	ClearExpiredRefreshTokens(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

// CleanupHandler sweeps long-expired refresh tokens off user records. Expiry
// is enforced lazily at refresh time, so this is hygiene, not correctness;
// the endpoint is hidden unless a cron secret is configured.
type CleanupHandler struct {
	cleaner    TokenCleaner
	logger     *slog.Logger
	cronSecret string
	retention  time.Duration
	batchSize  int
}

func NewCleanupHandler(cleaner TokenCleaner, logger *slog.Logger, cronSecret string, retention time.Duration, batchSize int) *CleanupHandler {
	return &CleanupHandler{
		cleaner:    cleaner,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		retention:  retention,
		batchSize:  batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	cutoff := time.Now().UTC().Add(-h.retention)
	cleared, err := h.cleaner.ClearExpiredRefreshTokens(r.Context(), cutoff, h.batchSize)
	if err != nil {
		h.logger.Error("refresh_token_cleanup_failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	h.logger.Info("refresh_token_cleanup_completed", "cleared", cleared)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "cleared": cleared})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
