package repositories

import (
	"context"
	"time"

	"github.com/lifequest-app/lifequest/lifequest/database/models"
	"github.com/uptrace/bun"
)

type HabitRepository interface {
	Create(ctx context.Context, habit *models.Habit) error
	GetActiveByUserID(ctx context.Context, userID int64) ([]*models.Habit, error)
}

type habitRepository struct {
	db *bun.DB
}

func NewHabitRepository(db *bun.DB) HabitRepository {
	return &habitRepository{db: db}
}

func (r *habitRepository) Create(ctx context.Context, habit *models.Habit) error {
	habit.CreatedAt = time.Now()
	habit.UpdatedAt = time.Now()
	habit.Active = true
	_, err := r.db.NewInsert().Model(habit).Exec(ctx)
	return err
}

func (r *habitRepository) GetActiveByUserID(ctx context.Context, userID int64) ([]*models.Habit, error) {
	var habits []*models.Habit
	err := r.db.NewSelect().
		Model(&habits).
		Where("user_id = ?", userID).
		Where("active = ?", true).
		Order("name ASC").
		Scan(ctx)

	return habits, err
}
