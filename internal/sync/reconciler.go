package sync

import (
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/store"
)

const checkpointPrincipal = "last_principal"

// Reconciler keeps sync checkpoints and finds cached rows the remote index
// no longer vouches for.
type Reconciler struct {
	db     *store.DB
	logger *zap.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(db *store.DB, logger *zap.Logger) *Reconciler {
	return &Reconciler{db: db, logger: logger}
}

// UpdateCheckpoint updates a sync checkpoint value.
func (r *Reconciler) UpdateCheckpoint(key, value string) error {
	now := time.Now().UnixMilli()
	_, err := r.db.Exec(`
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	return err
}

// GetCheckpoint retrieves a sync checkpoint value. A missing key yields "".
func (r *Reconciler) GetCheckpoint(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// LastPrincipal returns the principal of the most recent session.
func (r *Reconciler) LastPrincipal() (string, error) {
	return r.GetCheckpoint(checkpointPrincipal)
}

// SetLastPrincipal records the principal being synced.
func (r *Reconciler) SetLastPrincipal(principal string) error {
	return r.UpdateCheckpoint(checkpointPrincipal, principal)
}

// Stale returns cached conversation ids missing from the index. They were
// cached by an earlier run and no listener will ever remove them.
func (r *Reconciler) Stale(index map[string]bool) ([]string, error) {
	ids, err := r.db.ConversationIDs()
	if err != nil {
		return nil, err
	}
	var stale []string
	for _, id := range ids {
		if !index[id] {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		r.logger.Info("pruning conversations no longer indexed", zap.Int("count", len(stale)))
	}
	return stale, nil
}
