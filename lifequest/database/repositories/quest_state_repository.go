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

type QuestStateRepository interface {
	Get(ctx context.Context, userID int64) (*models.UserQuestState, error)
	TouchGenerated(ctx context.Context, userID int64, questType string, at time.Time) error
}

type questStateRepository struct {
	db *bun.DB
}

func NewQuestStateRepository(db *bun.DB) QuestStateRepository {
	return &questStateRepository{db: db}
}

// Get returns nil without error when the user has never generated quests.
func (r *questStateRepository) Get(ctx context.Context, userID int64) (*models.UserQuestState, error) {
	state := new(models.UserQuestState)
	err := r.db.NewSelect().
		Model(state).
		Where("user_id = ?", userID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return state, nil
}

// TouchGenerated upserts the per-type generation timestamp. The row is
// created lazily on the user's first generation.
func (r *questStateRepository) TouchGenerated(ctx context.Context, userID int64, questType string, at time.Time) error {
	state := &models.UserQuestState{
		UserID:    userID,
		CreatedAt: at,
		UpdatedAt: at,
	}

	column := "last_daily_generated_at"
	if questType == models.QuestTypeWeekly {
		column = "last_weekly_generated_at"
		state.LastWeeklyGeneratedAt = &at
	} else {
		state.LastDailyGeneratedAt = &at
	}

	_, err := r.db.NewInsert().
		Model(state).
		On("CONFLICT (user_id) DO UPDATE").
		Set(fmt.Sprintf("%s = EXCLUDED.%s", column, column)).
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	return err
}
