// Package sessions declares the repository contract for the session store:
// one row per live refresh token, keyed by the token's one-way hash.
package sessions

import (
	"context"

	"github.com/dmitrijs2005/chatter/internal/server/models"
)

// Repository persists sessions. Each operation is atomic with respect to
// other operations on the same row; rotation-critical callers combine
// ConsumeByHash and Create inside one transaction via dbx.WithTx.
type Repository interface {
	// Create inserts a new session row. The session's TokenHash must be
	// unique across all live sessions; a duplicate returns
	// common.ErrDuplicateHash, which callers must treat as a consistency
	// failure rather than a client error.
	Create(ctx context.Context, session *models.Session) (*models.Session, error)

	// FindByHash returns the live session with the given token hash.
	// Expired rows are reported as common.ErrorNotFound: an expired session
	// must never authorize anything, deleted or not.
	FindByHash(ctx context.Context, tokenHash string) (*models.Session, error)

	// ConsumeByHash atomically deletes the session with the given token hash
	// and returns it, expired or not (the caller decides how to treat an
	// expired row it just consumed). Of two racing calls with the same hash,
	// exactly one receives the session; the other gets common.ErrorNotFound.
	ConsumeByHash(ctx context.Context, tokenHash string) (*models.Session, error)

	// DeleteByID removes a single session. Absence is not an error.
	DeleteByID(ctx context.Context, id string) error

	// DeleteByHash removes the session with the given token hash and reports
	// how many rows went away. Absence is not an error, which makes logout
	// idempotent.
	DeleteByHash(ctx context.Context, tokenHash string) (int64, error)

	// DeleteAllByUser removes every session owned by userID in one bulk
	// statement and reports the count.
	DeleteAllByUser(ctx context.Context, userID string) (int64, error)

	// DeleteExpired removes rows past their expiry and reports the count.
	DeleteExpired(ctx context.Context) (int64, error)
}
