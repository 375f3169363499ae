package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"kisaanconnect/internal/types"
)

// SessionRepository provides data access for the sessions table.
// Sessions are keyed by the SHA-256 hash of the raw bearer token; the raw
// token never touches the database.
type SessionRepository struct {
	db DBTX
}

// NewSessionRepository creates a new SessionRepository backed by the given
// database connection (pool or transaction).
func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session row.
func (r *SessionRepository) Create(ctx context.Context, session *types.Session) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (token_hash, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, COALESCE($4, NOW()))`,
		session.TokenHash,
		session.UserID,
		session.ExpiresAt,
		nilIfZeroTime(session.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create session", err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
// Returns ErrCodeAuthTokenInvalid if no session exists; expiry is checked by
// the caller against its clock so tests can control time.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*types.Session, error) {
	var s types.Session
	err := r.db.QueryRow(ctx,
		`SELECT token_hash, user_id, expires_at, created_at
		 FROM sessions WHERE token_hash = $1`,
		tokenHash,
	).Scan(&s.TokenHash, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid session token", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve session", err)
	}
	return &s, nil
}

// Delete removes a session by its token hash. Deleting an already-absent
// session is not an error; logout is idempotent.
func (r *SessionRepository) Delete(ctx context.Context, tokenHash string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM sessions WHERE token_hash = $1`,
		tokenHash,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete session", err)
	}
	return nil
}

// DeleteExpired removes all sessions past their expiry. Invoked lazily when
// an expired session is presented and periodically from the entry point.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete expired sessions", err)
	}
	return tag.RowsAffected(), nil
}
