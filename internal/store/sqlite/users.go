package sqlite

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"caixa/backend/internal/domain"
	"caixa/backend/internal/store"
)

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
	user.Active = true

	row := newUserRow(user)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicate(err) {
			return store.Wrap(store.ErrConflict, "user %s already exists", user.Username)
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	var rows []userRow
	if err := s.db.WithContext(ctx).Order("username").Find(&rows).Error; err != nil {
		return nil, err
	}
	return convert(rows, userRow.toDomain), nil
}

func (s *Store) GetUser(ctx context.Context, username string) (*domain.UserAccount, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	var row userRow
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&row).Error; err != nil {
		return nil, notFound(err, "user", username)
	}
	u := row.toDomain()
	return &u, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.Invalid("username and password are required")
	}
	res := s.db.WithContext(ctx).Model(&userRow{}).Where("username = ?", username).Update("password", password)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.NotFound("user", username)
	}
	return nil
}

func (s *Store) UpdateUserCommission(ctx context.Context, username string, req domain.CommissionUpdateRequest) (*domain.UserAccount, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	var out domain.UserAccount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row userRow
		if err := tx.Where("username = ?", username).First(&row).Error; err != nil {
			return notFound(err, "user", username)
		}
		row.CommissionType = req.Type
		row.CommissionPercent = req.Percent
		row.CommissionFixedCents = req.FixedCents
		if err := saveColumns(tx, &row); err != nil {
			return err
		}
		out = row.toDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
