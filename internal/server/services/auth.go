package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/chatter/internal/common"
	"github.com/dmitrijs2005/chatter/internal/dbx"
	"github.com/dmitrijs2005/chatter/internal/logging"
	"github.com/dmitrijs2005/chatter/internal/server/auth"
	"github.com/dmitrijs2005/chatter/internal/server/models"
	"github.com/dmitrijs2005/chatter/internal/server/repositories/repomanager"
)

// TokenPair is an access/refresh token pair minted for one session.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// DeviceInfo is audit metadata recorded on the session row.
type DeviceInfo struct {
	UserAgent  string
	ClientAddr string
}

// RefreshOutcome classifies the result of a refresh attempt. Every attempt
// resolves to exactly one outcome; errors are reserved for storage failures.
type RefreshOutcome int

const (
	// OutcomeRotated means the presented token was live and single-use
	// consumed, and a new pair was issued.
	OutcomeRotated RefreshOutcome = iota
	// OutcomeExpired means the token was genuine but past its lifetime.
	OutcomeExpired
	// OutcomeInvalid means the token was malformed or forged.
	OutcomeInvalid
	// OutcomeReuseDetected means a genuine token was presented after it had
	// already been consumed. All sessions of its owner are revoked.
	OutcomeReuseDetected
)

func (o RefreshOutcome) String() string {
	switch o {
	case OutcomeRotated:
		return "rotated"
	case OutcomeExpired:
		return "expired"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeReuseDetected:
		return "reuse_detected"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// RefreshResult carries the outcome of one refresh attempt. Pair is set only
// for OutcomeRotated; RevokedSessions only for OutcomeReuseDetected.
type RefreshResult struct {
	Outcome         RefreshOutcome
	User            *models.User
	Pair            *TokenPair
	RevokedSessions int64
}

// AuthService owns account registration, login and the refresh token
// rotation lifecycle.
type AuthService struct {
	db     *sql.DB
	repo   repomanager.RepositoryManager
	codec  *auth.Codec
	logger logging.Logger
	now    func() time.Time
}

func NewAuthService(db *sql.DB, repo repomanager.RepositoryManager, codec *auth.Codec, logger logging.Logger) *AuthService {
	return &AuthService{db: db, repo: repo, codec: codec, logger: logger, now: time.Now}
}

const bcryptCost = 10

// Register creates an account and starts its first session. avatarKey is
// optional and names an object already uploaded through the media presign
// flow.
func (s *AuthService) Register(ctx context.Context, email string, username string, password string, avatarKey string, device DeviceInfo) (*models.User, *TokenPair, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &models.User{Email: email, Username: username, PasswordHash: hash, AvatarKey: avatarKey}

	var pair *TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		user, err = s.repo.Users(tx).Create(ctx, user)
		if err != nil {
			return err
		}
		pair, err = s.startSession(ctx, tx, user, device)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	return user, pair, nil
}

// Login verifies credentials and starts a new session. The identifier may be
// either the email or the username.
func (s *AuthService) Login(ctx context.Context, identifier string, password string, device DeviceInfo) (*models.User, *TokenPair, error) {
	user, err := s.repo.Users(s.db).GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrorUnauthorized
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, nil, common.ErrorUnauthorized
	}

	pair, err := s.startSession(ctx, s.db, user, device)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh consumes the presented refresh token and, if it was live, rotates
// it into a fresh pair. The consume and the replacement insert happen in one
// transaction, so a failure on either side leaves the old session intact.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*RefreshResult, error) {
	tokenHash := auth.HashToken(rawToken)

	var result *RefreshResult
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		sessions := s.repo.Sessions(tx)

		sess, err := sessions.ConsumeByHash(ctx, tokenHash)
		if errors.Is(err, common.ErrorNotFound) {
			result, err = s.handleUnknownToken(ctx, tx, rawToken)
			return err
		}
		if err != nil {
			return err
		}

		if sess.ExpiresAt.Before(s.now()) {
			// The expired row is gone after the consume; keep the delete.
			result = &RefreshResult{Outcome: OutcomeExpired}
			return nil
		}

		user, err := s.repo.Users(tx).GetByID(ctx, sess.UserID)
		if err != nil {
			return fmt.Errorf("loading session owner: %w", err)
		}

		pair, err := s.startSession(ctx, tx, user, DeviceInfo{UserAgent: sess.UserAgent, ClientAddr: sess.ClientAddr})
		if err != nil {
			return err
		}

		result = &RefreshResult{Outcome: OutcomeRotated, User: user, Pair: pair}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Outcome == OutcomeReuseDetected {
		s.logger.Warn(ctx, "refresh token reuse detected, revoking all sessions",
			"revoked", result.RevokedSessions)
	}
	return result, nil
}

// handleUnknownToken classifies a refresh token that matched no stored
// session. A token that still verifies was single-use consumed earlier:
// that is a replay, and the whole family of the owner's sessions is revoked.
func (s *AuthService) handleUnknownToken(ctx context.Context, tx dbx.DBTX, rawToken string) (*RefreshResult, error) {
	userID, err := s.codec.VerifyRefreshToken(rawToken)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return &RefreshResult{Outcome: OutcomeExpired}, nil
		}
		return &RefreshResult{Outcome: OutcomeInvalid}, nil
	}

	revoked, err := s.repo.Sessions(tx).DeleteAllByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("revoking sessions after reuse: %w", err)
	}
	return &RefreshResult{Outcome: OutcomeReuseDetected, RevokedSessions: revoked}, nil
}

// Logout revokes the session behind the presented refresh token. It is
// idempotent: an unknown or already-revoked token is not an error.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	n, err := s.repo.Sessions(s.db).DeleteByHash(ctx, auth.HashToken(rawToken))
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Debug(ctx, "session revoked on logout")
	}
	return nil
}

// RevokeAll revokes every session of the given user.
func (s *AuthService) RevokeAll(ctx context.Context, userID string) (int64, error) {
	return s.repo.Sessions(s.db).DeleteAllByUser(ctx, userID)
}

// SweepExpired removes sessions whose lifetime has passed. It is meant to be
// run periodically; expired rows are already invisible to lookups.
func (s *AuthService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.Sessions(s.db).DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info(ctx, "expired sessions swept", "count", n)
	}
	return n, nil
}

// GetUser loads a user by id.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.repo.Users(s.db).GetByID(ctx, userID)
}

// VerifyAccessToken checks an access token and returns its claims.
func (s *AuthService) VerifyAccessToken(raw string) (*auth.Claims, error) {
	return s.codec.VerifyAccessToken(raw)
}

// AccessTTL reports the configured access token lifetime.
func (s *AuthService) AccessTTL() time.Duration { return s.codec.AccessTTL() }

// RefreshTTL reports the configured refresh token lifetime.
func (s *AuthService) RefreshTTL() time.Duration { return s.codec.RefreshTTL() }

// startSession mints a token pair for the user and records the session row
// keyed by the refresh token hash.
func (s *AuthService) startSession(ctx context.Context, db dbx.DBTX, user *models.User, device DeviceInfo) (*TokenPair, error) {
	access, err := s.codec.IssueAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("issuing access token: %w", err)
	}
	refresh, err := s.codec.IssueRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("issuing refresh token: %w", err)
	}

	session := &models.Session{
		UserID:     user.ID,
		TokenHash:  auth.HashToken(refresh),
		UserAgent:  device.UserAgent,
		ClientAddr: device.ClientAddr,
		ExpiresAt:  s.now().Add(s.codec.RefreshTTL()),
	}
	if _, err := s.repo.Sessions(db).Create(ctx, session); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
