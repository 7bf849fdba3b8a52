package models

import "time"

// Session is the persisted unit of truth for one issued refresh token.
// TokenHash is the SHA-256 digest of the raw token; the raw token itself is
// never stored. TokenHash is unique across all sessions; that uniqueness is
// what lets a replayed token be recognized as reuse.
//
// UserAgent and ClientAddr are audit metadata only and never participate in
// authorization decisions.
type Session struct {
	ID         string
	UserID     string
	TokenHash  string
	UserAgent  string
	ClientAddr string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}
