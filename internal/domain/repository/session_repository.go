package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bildung/internal/common"
	"bildung/internal/domain/model"
)

// SessionRepository persists session rows and resolves users through them.
// The read paths return the user joined with session and role set so the
// authentication service never needs a second round trip per lookup.
type SessionRepository interface {
	Create(ctx context.Context, userID int, token string, expires time.Time) error
	Renew(ctx context.Context, token string, expires time.Time) error
	DeleteByUser(ctx context.Context, userID int) error
	DeleteByToken(ctx context.Context, token string) error
	FindUserByToken(ctx context.Context, token string) (*model.User, error)
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
}

type pgSessionRepository struct {
	db *sql.DB
}

func NewPgSessionRepository(db *sql.DB) SessionRepository {
	return &pgSessionRepository{db: db}
}

func (r *pgSessionRepository) Create(ctx context.Context, userID int, token string, expires time.Time) error {
	query := `INSERT INTO sessions (session_id, user_id, expires) VALUES ($1, $2, $3)`
	_, err := r.db.ExecContext(ctx, query, token, userID, expires)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("session token already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgSessionRepository.Create: %w", err)
	}
	return nil
}

// Renew pushes the expiry of an existing session forward. An absent token is
// not an error; the caller decides whether absence is meaningful.
func (r *pgSessionRepository) Renew(ctx context.Context, token string, expires time.Time) error {
	query := `UPDATE sessions SET expires = $2 WHERE session_id = $1`
	_, err := r.db.ExecContext(ctx, query, token, expires)
	if err != nil {
		return fmt.Errorf("pgSessionRepository.Renew: %w", err)
	}
	return nil
}

func (r *pgSessionRepository) DeleteByUser(ctx context.Context, userID int) error {
	query := `DELETE FROM sessions WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("pgSessionRepository.DeleteByUser: %w", err)
	}
	return nil
}

func (r *pgSessionRepository) DeleteByToken(ctx context.Context, token string) error {
	query := `DELETE FROM sessions WHERE session_id = $1`
	_, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return fmt.Errorf("pgSessionRepository.DeleteByToken: %w", err)
	}
	return nil
}

func (r *pgSessionRepository) FindUserByToken(ctx context.Context, token string) (*model.User, error) {
	query := `SELECT u.id, u.username, u.password_hash, s.session_id, s.expires
	          FROM users u JOIN sessions s ON u.id = s.user_id
	          WHERE s.session_id = $1`
	user := &model.User{}
	session := &model.Session{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &session.Token, &session.Expires,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSessionRepository.FindUserByToken: %w", err)
	}
	session.UserID = user.ID
	user.Session = session

	if err := r.loadRoles(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *pgSessionRepository) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT u.id, u.username, u.password_hash, s.session_id, s.expires
	          FROM users u LEFT JOIN sessions s ON u.id = s.user_id
	          WHERE u.username = $1`
	user := &model.User{}
	var token sql.NullString
	var expires sql.NullTime
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &token, &expires,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSessionRepository.FindUserByUsername: %w", err)
	}
	if token.Valid {
		user.Session = &model.Session{Token: token.String, UserID: user.ID, Expires: expires.Time}
	}

	if err := r.loadRoles(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *pgSessionRepository) loadRoles(ctx context.Context, user *model.User) error {
	rows, err := r.db.QueryContext(ctx, `SELECT role FROM roles WHERE user_id = $1`, user.ID)
	if err != nil {
		return fmt.Errorf("pgSessionRepository.loadRoles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var role model.Role
		if err := rows.Scan(&role); err != nil {
			return fmt.Errorf("pgSessionRepository.loadRoles scan: %w", err)
		}
		user.Roles = append(user.Roles, role)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("pgSessionRepository.loadRoles rows.Err: %w", err)
	}
	return nil
}
