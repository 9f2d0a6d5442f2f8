package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lifequest-app/lifequest/lifequest/database/models"
	"github.com/uptrace/bun"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, userID int64) (*models.User, error)
	AddXP(ctx context.Context, userID int64, amount int) (*models.User, error)
	UpdateLevel(ctx context.Context, userID int64, level int) error
}

type userRepository struct {
	db *bun.DB
}

func NewUserRepository(db *bun.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	if user.Level == 0 {
		user.Level = 1
	}
	_, err := r.db.NewInsert().Model(user).Exec(ctx)
	return err
}

func (r *userRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("id = ?", userID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %d", userID)
		}
		return nil, err
	}

	return user, nil
}

// AddXP applies the grant as a single atomic increment and returns the
// updated row, so concurrent awards never lose updates.
func (r *userRepository) AddXP(ctx context.Context, userID int64, amount int) (*models.User, error) {
	user := new(models.User)
	_, err := r.db.NewUpdate().
		Model(user).
		Set("xp = xp + ?", amount).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", userID).
		Returning("*").
		Exec(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to add xp: %w", err)
	}

	return user, nil
}

func (r *userRepository) UpdateLevel(ctx context.Context, userID int64, level int) error {
	_, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("level = ?", level).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", userID).
		Exec(ctx)

	return err
}
