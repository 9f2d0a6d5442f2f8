package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lifequest-app/lifequest/lifequest/database/models"
	"github.com/uptrace/bun"
)

type QuestRepository interface {
	// Quests
	GetByID(ctx context.Context, questID int64) (*models.Quest, error)
	GetUserQuests(ctx context.Context, userID int64, status, questType string) ([]*models.Quest, error)
	GetActiveQuestsWithCriteria(ctx context.Context, userID int64) ([]*models.Quest, error)
	CountActiveByType(ctx context.Context, userID int64, questType string) (int, error)
	UpdateStatus(ctx context.Context, questID int64, from, to string) (bool, error)
	ReplaceAvailableBatch(ctx context.Context, userID int64, questType string, quests []*models.Quest) (int64, error)

	// Criteria
	GetCriteria(ctx context.Context, questID int64) ([]*models.QuestCriterion, error)
	IncrementCriterionProgress(ctx context.Context, criterionID int64, delta int) (*models.QuestCriterion, error)
	SetCriterionOutcome(ctx context.Context, criterionID int64, met bool) (*models.QuestCriterion, error)
	CountUnmetCriteria(ctx context.Context, questID int64) (int, error)
}

type questRepository struct {
	db *bun.DB
}

func NewQuestRepository(db *bun.DB) QuestRepository {
	return &questRepository{db: db}
}

func (r *questRepository) GetByID(ctx context.Context, questID int64) (*models.Quest, error) {
	quest := new(models.Quest)
	err := r.db.NewSelect().
		Model(quest).
		Relation("Criteria").
		Where("q.id = ?", questID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return quest, nil
}

func (r *questRepository) GetUserQuests(ctx context.Context, userID int64, status, questType string) ([]*models.Quest, error) {
	var quests []*models.Quest
	q := r.db.NewSelect().
		Model(&quests).
		Relation("Criteria").
		Where("q.user_id = ?", userID)

	if status != "" {
		q = q.Where("q.status = ?", status)
	}
	if questType != "" {
		q = q.Where("q.type = ?", questType)
	}

	err := q.Order("q.created_at DESC").Scan(ctx)
	return quests, err
}

func (r *questRepository) GetActiveQuestsWithCriteria(ctx context.Context, userID int64) ([]*models.Quest, error) {
	var quests []*models.Quest
	err := r.db.NewSelect().
		Model(&quests).
		Relation("Criteria").
		Where("q.user_id = ?", userID).
		Where("q.status = ?", models.QuestStatusActive).
		Order("q.activated_at ASC").
		Scan(ctx)

	return quests, err
}

func (r *questRepository) CountActiveByType(ctx context.Context, userID int64, questType string) (int, error) {
	return r.db.NewSelect().
		Model((*models.Quest)(nil)).
		Where("user_id = ?", userID).
		Where("type = ?", questType).
		Where("status = ?", models.QuestStatusActive).
		Count(ctx)
}

// UpdateStatus performs the conditional status transition. The write only
// applies while the row still holds the expected prior status; zero affected
// rows means another request won the race. The timestamp column matching the
// destination status is stamped in the same statement.
func (r *questRepository) UpdateStatus(ctx context.Context, questID int64, from, to string) (bool, error) {
	now := time.Now()

	q := r.db.NewUpdate().
		Model((*models.Quest)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", now).
		Where("id = ?", questID).
		Where("status = ?", from)

	switch to {
	case models.QuestStatusActive:
		q = q.Set("activated_at = ?", now)
	case models.QuestStatusClaimable:
		q = q.Set("claimable_at = ?", now)
	case models.QuestStatusCompleted:
		q = q.Set("completed_at = ?", now)
	case models.QuestStatusCancelled:
		q = q.Set("cancelled_at = ?", now)
	}

	result, err := q.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to update quest status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows > 0, nil
}

// ReplaceAvailableBatch swaps a user's available quests of one type for a
// freshly generated batch inside a single transaction: stale offers and
// their criteria are deleted, new quests inserted, and the provisional
// quest ids mapped to durable ones so the criteria batch references real
// rows. A failure anywhere rolls the whole swap back, so the user either
// keeps the prior offers or gets the complete new batch, never neither.
func (r *questRepository) ReplaceAvailableBatch(ctx context.Context, userID int64, questType string, quests []*models.Quest) (int64, error) {
	if len(quests) == 0 {
		return 0, errors.New("empty quest batch")
	}

	now := time.Now()
	for _, q := range quests {
		q.CreatedAt = now
		q.UpdatedAt = now
	}

	var deleted int64
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.QuestCriterion)(nil)).
			Where("quest_id IN (SELECT id FROM quests WHERE user_id = ? AND type = ? AND status = ?)",
				userID, questType, models.QuestStatusAvailable).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete stale criteria: %w", err)
		}

		result, err := tx.NewDelete().
			Model((*models.Quest)(nil)).
			Where("user_id = ?", userID).
			Where("type = ?", questType).
			Where("status = ?", models.QuestStatusAvailable).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete available quests: %w", err)
		}
		if deleted, err = result.RowsAffected(); err != nil {
			return err
		}

		if _, err := tx.NewInsert().Model(&quests).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert quest batch: %w", err)
		}

		idByTemp := make(map[string]int64, len(quests))
		for _, q := range quests {
			if q.TempID != "" {
				idByTemp[q.TempID] = q.ID
			}
		}

		var criteria []*models.QuestCriterion
		for _, q := range quests {
			for _, c := range q.Criteria {
				ref := c.TempQuestRef
				if ref == "" {
					ref = q.TempID
				}
				id, ok := idByTemp[ref]
				if !ok {
					return fmt.Errorf("criterion references unknown quest %q", ref)
				}
				c.QuestID = id
				c.CreatedAt = now
				c.UpdatedAt = now
				criteria = append(criteria, c)
			}
		}

		if len(criteria) == 0 {
			return errors.New("quest batch has no criteria")
		}

		if _, err := tx.NewInsert().Model(&criteria).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert criteria batch: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return deleted, nil
}

func (r *questRepository) GetCriteria(ctx context.Context, questID int64) ([]*models.QuestCriterion, error) {
	var criteria []*models.QuestCriterion
	err := r.db.NewSelect().
		Model(&criteria).
		Where("quest_id = ?", questID).
		Order("id ASC").
		Scan(ctx)

	return criteria, err
}

// IncrementCriterionProgress applies the increment and the met-flag
// evaluation in a single statement so concurrent progress events cannot
// lose updates. Postgres evaluates every SET expression against the old
// row, so is_met compares the incremented value against the target.
func (r *questRepository) IncrementCriterionProgress(ctx context.Context, criterionID int64, delta int) (*models.QuestCriterion, error) {
	criterion := new(models.QuestCriterion)
	_, err := r.db.NewUpdate().
		Model(criterion).
		Set("current_progress = LEAST(current_progress + ?, target_count)", delta).
		Set("is_met = current_progress + ? >= target_count", delta).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", criterionID).
		Returning("*").
		Exec(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to increment criterion progress: %w", err)
	}

	return criterion, nil
}

// SetCriterionOutcome records a binary pass/fail evaluation, e.g.
// finance_under_allowance. Progress snaps to the target on pass so the
// is_met invariant holds either way.
func (r *questRepository) SetCriterionOutcome(ctx context.Context, criterionID int64, met bool) (*models.QuestCriterion, error) {
	criterion := new(models.QuestCriterion)
	_, err := r.db.NewUpdate().
		Model(criterion).
		Set("is_met = ?", met).
		Set("current_progress = CASE WHEN ? THEN target_count ELSE current_progress END", met).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", criterionID).
		Returning("*").
		Exec(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to set criterion outcome: %w", err)
	}

	return criterion, nil
}

func (r *questRepository) CountUnmetCriteria(ctx context.Context, questID int64) (int, error) {
	count, err := r.db.NewSelect().
		Model((*models.QuestCriterion)(nil)).
		Where("quest_id = ?", questID).
		Where("is_met = ?", false).
		Count(ctx)

	if err != nil {
		slog.Error("Failed to count unmet criteria",
			slog.String("type", "db"),
			slog.Int64("quest_id", questID),
			slog.Any("error", err))
		return 0, err
	}

	return count, nil
}
