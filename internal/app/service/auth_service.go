package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"bildung/internal/common"
	"bildung/internal/common/security"
	"bildung/internal/domain/model"
	"bildung/internal/domain/repository"
)

// AuthService owns the session lifecycle: issuing tokens on login,
// resolving users from tokens, and expiring sessions lazily.
//
// Failed authentication (unknown user, wrong password, expired or missing
// session) is a normal empty result, never an error. Errors are reserved
// for storage failures.
type AuthService struct {
	sessions repository.SessionRepository
	throttle *LoginThrottle
	expiry   time.Duration
}

func NewAuthService(sessions repository.SessionRepository, throttle *LoginThrottle, expiry time.Duration) *AuthService {
	return &AuthService{sessions: sessions, throttle: throttle, expiry: expiry}
}

// Login verifies the credentials and returns a session token, or "" when
// authentication fails. A second login while a session is live renews that
// session instead of minting a parallel one, so concurrent logins collapse
// onto a single token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	if !s.throttle.Allow(ctx, username) {
		log.Printf("INFO: login throttled for username %q", username)
		return "", nil
	}

	user, err := s.sessions.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.throttle.RecordFailure(ctx, username)
			return "", nil
		}
		return "", fmt.Errorf("AuthService.Login: %w", err)
	}

	if !security.CheckPassword(password, user.PasswordHash) {
		s.throttle.RecordFailure(ctx, username)
		return "", nil
	}
	s.throttle.Reset(ctx, username)

	expires := time.Now().UTC().Add(s.expiry)
	if user.Session != nil {
		if err := s.sessions.Renew(ctx, user.Session.Token, expires); err != nil {
			return "", fmt.Errorf("AuthService.Login renew: %w", err)
		}
		return user.Session.Token, nil
	}

	token, err := security.GenerateSessionToken()
	if err != nil {
		return "", fmt.Errorf("AuthService.Login: %w", err)
	}
	if err := s.sessions.Create(ctx, user.ID, token, expires); err != nil {
		return "", fmt.Errorf("AuthService.Login create: %w", err)
	}
	return token, nil
}

// ValidateSession resolves the user behind a session token. An expired
// session is deleted as a side effect (lazy expiry; there is no background
// sweep) and treated as absent.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*model.User, error) {
	user, err := s.sessions.FindUserByToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("AuthService.ValidateSession: %w", err)
	}

	if !user.Session.Expires.After(time.Now().UTC()) {
		// Best-effort cleanup; the session is invalid either way.
		if err := s.sessions.DeleteByToken(ctx, token); err != nil {
			log.Printf("ERROR: deleting expired session: %v", err)
		}
		return nil, nil
	}
	return user, nil
}

// Logout removes all sessions of the user. Idempotent.
func (s *AuthService) Logout(ctx context.Context, userID int) error {
	if err := s.sessions.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("AuthService.Logout: %w", err)
	}
	return nil
}
