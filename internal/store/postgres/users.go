package postgres

import (
	"context"
	"strings"
	"time"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/store"
)

const userColumns = `username, password, role, active, commission_type, commission_percent, commission_fixed_cents, created_at`

func scanUser(row interface{ Scan(...any) error }) (domain.UserAccount, error) {
	var u domain.UserAccount
	err := row.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CommissionType, &u.CommissionPercent, &u.CommissionFixedCents, &u.CreatedAt)
	u.CreatedAt = u.CreatedAt.UTC()
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.Invalid("username and password are required")
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CommissionType == "" {
		user.CommissionType = domain.CommissionNone
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1,$2,$3,true,$4,$5,$6,$7)
	`, user.Username, user.Password, user.Role, user.CommissionType, user.CommissionPercent, user.CommissionFixedCents, user.CreatedAt)
	if isUniqueViolation(err) {
		return store.Wrap(store.ErrConflict, "user %s already exists", user.Username)
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) GetUser(ctx context.Context, username string) (*domain.UserAccount, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return nil, notFound(err, "user", username)
	}
	return &u, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.Invalid("username and password are required")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password = $2 WHERE username = $1`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.NotFound("user", username)
	}
	return nil
}

func (s *Store) UpdateUserCommission(ctx context.Context, username string, req domain.CommissionUpdateRequest) (*domain.UserAccount, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users
		SET commission_type = $2, commission_percent = $3, commission_fixed_cents = $4
		WHERE username = $1
		RETURNING `+userColumns, username, req.Type, req.Percent, req.FixedCents))
	if err != nil {
		return nil, notFound(err, "user", username)
	}
	return &u, nil
}
